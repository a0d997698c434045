package group_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/studyhub/core"
	"github.com/trezcool/studyhub/core/group"
	"github.com/trezcool/studyhub/core/match"
	"github.com/trezcool/studyhub/core/quiz"
	"github.com/trezcool/studyhub/tests"
)

var errStorage = errors.New("storage unavailable")

// failingRepo fails the membership writes named in fail.
type failingRepo struct {
	group.Repository
	fail map[string]bool
}

func (repo *failingRepo) AddMember(ctx context.Context, mbr group.Member) (group.Member, error) {
	if repo.fail["AddMember"] {
		return group.Member{}, errStorage
	}
	return repo.Repository.AddMember(ctx, mbr)
}

func (repo *failingRepo) DeleteMember(ctx context.Context, groupID, userID string) error {
	if repo.fail["DeleteMember"] {
		return errStorage
	}
	return repo.Repository.DeleteMember(ctx, groupID, userID)
}

func newApp(t *testing.T) *testutil.App {
	env, err := testutil.NewApp()
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })
	return env
}

func TestService_Create(t *testing.T) {
	env := newApp(t)
	ctx := context.Background()
	owner := testutil.CreateStudent(t, env.Stores.Users, "owner01")

	grp, err := env.Groups.Create(ctx, owner.ID, group.NewGroup{Name: "Calculus"})
	require.NoError(t, err)
	assert.Equal(t, group.DefaultMaxMembers, grp.MaxMembers)
	assert.True(t, grp.IsPublic)
	assert.Equal(t, []string{}, grp.Tags)
	assert.Equal(t, 1, grp.MemberCount)

	mbr, err := env.Groups.Member(ctx, grp.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, group.RoleOwner, mbr.Role)

	t.Run("owner membership failure rolls back the group", func(t *testing.T) {
		repo := &failingRepo{Repository: env.Stores.Groups, fail: map[string]bool{"AddMember": true}}
		svc := group.NewService(repo, env.Stores.Tx, env.Cache, env.Conf)

		_, err := svc.Create(ctx, owner.ID, group.NewGroup{Name: "Linear Algebra"})
		assert.Equal(t, errStorage, errors.Cause(err))
		assert.Equal(t, 1, env.DB.Count("study_group"))
		assert.Equal(t, 1, env.DB.Count("group_member"))
	})
}

func TestService_membership(t *testing.T) {
	env := newApp(t)
	ctx := context.Background()
	owner := testutil.CreateStudent(t, env.Stores.Users, "owner01")
	alice := testutil.CreateStudent(t, env.Stores.Users, "alice01")
	bob := testutil.CreateStudent(t, env.Stores.Users, "bob0001")
	carol := testutil.CreateStudent(t, env.Stores.Users, "carol01")

	grp, err := env.Groups.Create(ctx, owner.ID, group.NewGroup{Name: "Duo", MaxMembers: 2})
	require.NoError(t, err)

	_, err = env.Groups.Join(ctx, grp.ID, alice.ID)
	require.NoError(t, err)
	_, err = env.Groups.Join(ctx, grp.ID, alice.ID)
	assert.Equal(t, group.ErrAlreadyMember, errors.Cause(err))
	_, err = env.Groups.Join(ctx, grp.ID, bob.ID)
	assert.Equal(t, group.ErrGroupFull, errors.Cause(err))
	_, err = env.Groups.Join(ctx, "unknown", bob.ID)
	assert.Equal(t, group.ErrNotFound, errors.Cause(err))

	three := 1
	_, err = env.Groups.Update(ctx, grp.ID, group.UpdateGroup{MaxMembers: &three})
	assert.Equal(t, group.ErrMaxMembersTooLow, errors.Cause(err))

	private := false
	three = 3
	_, err = env.Groups.Update(ctx, grp.ID, group.UpdateGroup{MaxMembers: &three, IsPublic: &private})
	require.NoError(t, err)
	_, err = env.Groups.Join(ctx, grp.ID, bob.ID)
	assert.Equal(t, group.ErrGroupPrivate, errors.Cause(err))

	assert.Equal(t, group.ErrOwnerCannotLeave, errors.Cause(env.Groups.Leave(ctx, grp.ID, owner.ID)))
	assert.Equal(t, group.ErrCannotRemoveOwner, errors.Cause(env.Groups.RemoveMember(ctx, grp.ID, owner.ID)))
	assert.Equal(t, group.ErrMemberNotFound, errors.Cause(env.Groups.Leave(ctx, grp.ID, carol.ID)))

	mbr, err := env.Groups.SetRole(ctx, grp.ID, alice.ID, group.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, mbr.CanManage())
	_, err = env.Groups.SetRole(ctx, grp.ID, owner.ID, group.RoleMember)
	assert.Equal(t, group.ErrCannotChangeOwner, errors.Cause(err))
	_, err = env.Groups.SetRole(ctx, grp.ID, alice.ID, group.RoleOwner)
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))

	ids, err := env.Groups.MemberIDs(ctx, grp.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{owner.ID, alice.ID}, ids)

	require.NoError(t, env.Groups.Leave(ctx, grp.ID, alice.ID))
	ok, err := env.Groups.IsMember(ctx, grp.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

// seedContent gives alice a note and a quiz submission in the group, and the owner a note.
func seedContent(t *testing.T, env *testutil.App) (ownerID, aliceID, groupID string) {
	ctx := context.Background()
	owner := testutil.CreateStudent(t, env.Stores.Users, "owner01")
	alice := testutil.CreateStudent(t, env.Stores.Users, "alice01")
	grp := testutil.CreateGroup(t, env.Groups, owner.ID, "Economics", alice.ID)

	note := testutil.CreateNote(t, env.Materials, grp.ID, owner.ID, "Supply", "Supply rises when prices rise. Demand falls when prices rise.")
	testutil.CreateNote(t, env.Materials, grp.ID, alice.ID, "Alice's notes", "Elasticity measures responsiveness.")
	qz, err := env.Quizzes.Create(ctx, quiz.NewQuiz{MaterialID: note.ID, GroupID: grp.ID, UserID: owner.ID})
	require.NoError(t, err)
	_, err = env.Quizzes.Submit(ctx, qz.ID, alice.ID, make([]int, len(qz.Questions)))
	require.NoError(t, err)
	_, err = env.Quizzes.Submit(ctx, qz.ID, owner.ID, make([]int, len(qz.Questions)))
	require.NoError(t, err)
	return owner.ID, alice.ID, grp.ID
}

func TestService_RemoveMember_purgesContent(t *testing.T) {
	env := newApp(t)
	ctx := context.Background()
	ownerID, aliceID, groupID := seedContent(t, env)
	require.Equal(t, 2, env.DB.Count("material"))
	require.Equal(t, 2, env.DB.Count("quiz_submission"))

	require.NoError(t, env.Groups.RemoveMember(ctx, groupID, aliceID))

	assert.Equal(t, 1, env.DB.Count("material"))
	assert.Equal(t, 1, env.DB.Count("quiz_submission"))
	mats, err := env.Materials.List(ctx, groupID, "")
	require.NoError(t, err)
	require.Len(t, mats, 1)
	assert.Equal(t, ownerID, mats[0].UserID)
	subs, err := env.Quizzes.Submissions(ctx, mustQuizID(t, env, groupID), aliceID)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestService_RemoveMember_failureKeepsEverything(t *testing.T) {
	env := newApp(t)
	ctx := context.Background()
	_, aliceID, groupID := seedContent(t, env)

	repo := &failingRepo{Repository: env.Stores.Groups, fail: map[string]bool{"DeleteMember": true}}
	svc := group.NewService(repo, env.Stores.Tx, env.Cache, env.Conf, env.Materials, env.Quizzes)

	err := svc.RemoveMember(ctx, groupID, aliceID)
	assert.Equal(t, errStorage, errors.Cause(err))

	// the purge is rolled back with the failed membership delete
	assert.Equal(t, 2, env.DB.Count("material"))
	assert.Equal(t, 2, env.DB.Count("quiz_submission"))
	ok, err := env.Groups.IsMember(ctx, groupID, aliceID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestService_Delete_cascades(t *testing.T) {
	env := newApp(t)
	ctx := context.Background()
	_, _, groupID := seedContent(t, env)

	require.NoError(t, env.Groups.Delete(ctx, groupID))
	for _, table := range []string{"study_group", "group_member", "material", "quiz", "quiz_question", "quiz_submission", "todo"} {
		assert.Equal(t, 0, env.DB.Count(table), table)
	}
	_, err := env.Groups.Get(ctx, groupID)
	assert.Equal(t, group.ErrNotFound, errors.Cause(err))
}

func TestService_Recommend(t *testing.T) {
	env := newApp(t)
	ctx := context.Background()
	owner := testutil.CreateStudent(t, env.Stores.Users, "owner01")
	alice := testutil.CreateStudent(t, env.Stores.Users, "alice01")
	bob := testutil.CreateStudent(t, env.Stores.Users, "bob0001")
	carol := testutil.CreateStudent(t, env.Stores.Users, "carol01")

	hidden := false
	math, err := env.Groups.Create(ctx, owner.ID, group.NewGroup{Name: "Maths", Tags: []string{"mathematics", "undergraduate"}})
	require.NoError(t, err)
	for _, id := range []string{bob.ID, carol.ID} {
		_, err = env.Groups.Join(ctx, math.ID, id)
		require.NoError(t, err)
	}
	history, err := env.Groups.Create(ctx, owner.ID, group.NewGroup{Name: "History", Tags: []string{"history"}})
	require.NoError(t, err)
	_, err = env.Groups.Create(ctx, owner.ID, group.NewGroup{Name: "Secret maths", Tags: []string{"mathematics"}, IsPublic: &hidden})
	require.NoError(t, err)
	mine, err := env.Groups.Create(ctx, alice.ID, group.NewGroup{Name: "Alice's maths", Tags: []string{"mathematics"}})
	require.NoError(t, err)

	profile := match.Profile{Subjects: []string{"Mathematics"}, EducationLevel: "Undergraduate"}
	recs, err := env.Groups.Recommend(ctx, alice.ID, profile, "")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, math.ID, recs[0].Group.ID)
	assert.InDelta(t, 16.6, recs[0].Score, 1e-9)
	assert.Equal(t, history.ID, recs[1].Group.ID)
	assert.InDelta(t, 0.7, recs[1].Score, 1e-9)
	for _, rec := range recs {
		assert.NotEqual(t, mine.ID, rec.Group.ID)
	}

	t.Run("cached until a group changes", func(t *testing.T) {
		_, err := env.Groups.Join(ctx, history.ID, bob.ID)
		require.NoError(t, err)
		recs, err := env.Groups.Recommend(ctx, alice.ID, profile, "recommended")
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.InDelta(t, 0.9, recs[1].Score, 1e-9)
	})

	t.Run("rescored when the profile changes", func(t *testing.T) {
		_, err := env.Groups.Recommend(ctx, alice.ID, profile, "")
		require.NoError(t, err)

		changed := match.Profile{Subjects: []string{"History"}, EducationLevel: "Undergraduate"}
		recs, err := env.Groups.Recommend(ctx, alice.ID, changed, "")
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, history.ID, recs[0].Group.ID)
		assert.InDelta(t, 10.9, recs[0].Score, 1e-9)
	})
}

func mustQuizID(t *testing.T, env *testutil.App, groupID string) string {
	quizzes, err := env.Quizzes.List(context.Background(), groupID)
	require.NoError(t, err)
	require.NotEmpty(t, quizzes)
	return quizzes[0].ID
}
