package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/studyhub/core/session"
	"github.com/trezcool/studyhub/tests"
)

var errUpdateFailed = errors.New("connection reset")

// flakyRepo fails the next n request updates.
type flakyRepo struct {
	session.Repository
	failures int
}

func (repo *flakyRepo) UpdateRequest(ctx context.Context, req session.Request) (session.Request, error) {
	if repo.failures > 0 {
		repo.failures--
		return session.Request{}, errUpdateFailed
	}
	return repo.Repository.UpdateRequest(ctx, req)
}

type fixture struct {
	env   *testutil.App
	repo  *flakyRepo
	svc   *session.Service
	owner string
	req   session.Request
}

func setup(t *testing.T) fixture {
	env, err := testutil.NewApp()
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })

	repo := &flakyRepo{Repository: env.Stores.Sessions}
	svc := session.NewService(repo, env.Stores.Tx, env.Groups, env.Users, env.Mail, env.Logger, env.Conf)

	owner := testutil.CreateStudent(t, env.Stores.Users, "owner01")
	alice := testutil.CreateStudent(t, env.Stores.Users, "alice01")
	grp := testutil.CreateGroup(t, env.Groups, owner.ID, "Geometry", alice.ID)

	req, err := svc.CreateRequest(context.Background(), grp.ID, alice.ID, session.NewRequest{
		Topic:     "Triangles",
		Date:      time.Now().AddDate(0, 0, 3).Format("2006-01-02"),
		StartTime: "17:00",
		EndTime:   "18:00",
	})
	require.NoError(t, err)
	return fixture{env: env, repo: repo, svc: svc, owner: owner.ID, req: req}
}

func TestService_AcceptRequest(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	link := "https://meet.example.com/tri"
	topic := "Triangles and circles"
	sess, err := f.svc.AcceptRequest(ctx, f.req.ID, f.owner, session.AcceptRequest{MeetingLink: &link, Topic: &topic})
	require.NoError(t, err)

	assert.Equal(t, f.req.ID, sess.RequestID)
	assert.Equal(t, session.StatusUpcoming, sess.Status)
	assert.Equal(t, topic, sess.Topic)
	assert.Equal(t, f.req.Date, sess.Date)
	assert.Equal(t, f.req.StartTime, sess.StartTime)
	assert.Equal(t, link, sess.MeetingLink)
	assert.Equal(t, f.owner, sess.CreatedBy)
	assert.Equal(t, 1, f.env.DB.Count("study_session"))

	req, err := f.svc.GetRequest(ctx, f.req.ID)
	require.NoError(t, err)
	assert.Equal(t, session.RequestAccepted, req.Status)
	assert.Equal(t, sess.ID, req.SessionID)

	_, err = f.svc.AcceptRequest(ctx, f.req.ID, f.owner, session.AcceptRequest{})
	assert.Equal(t, session.ErrRequestNotPending, errors.Cause(err))
	_, err = f.svc.RejectRequest(ctx, f.req.ID)
	assert.Equal(t, session.ErrRequestNotPending, errors.Cause(err))
	assert.Equal(t, 1, f.env.DB.Count("study_session"))
}

func TestService_AcceptRequest_updateFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.repo.failures = 1
	_, err := f.svc.AcceptRequest(ctx, f.req.ID, f.owner, session.AcceptRequest{})
	require.Error(t, err)
	assert.Equal(t, errUpdateFailed, errors.Cause(err))

	// the session insert is rolled back with the failed update
	assert.Equal(t, 0, f.env.DB.Count("study_session"))
	req, err := f.svc.GetRequest(ctx, f.req.ID)
	require.NoError(t, err)
	assert.Equal(t, session.RequestPending, req.Status)
	assert.Empty(t, req.SessionID)

	// retrying creates exactly one session
	sess, err := f.svc.AcceptRequest(ctx, f.req.ID, f.owner, session.AcceptRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.env.DB.Count("study_session"))

	_, err = f.svc.AcceptRequest(ctx, f.req.ID, f.owner, session.AcceptRequest{})
	assert.Equal(t, session.ErrRequestNotPending, errors.Cause(err))
	assert.Equal(t, 1, f.env.DB.Count("study_session"))

	req, err = f.svc.GetRequest(ctx, f.req.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, req.SessionID)
}

func TestService_RejectRequest(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	req, err := f.svc.RejectRequest(ctx, f.req.ID)
	require.NoError(t, err)
	assert.Equal(t, session.RequestRejected, req.Status)
	assert.Empty(t, req.SessionID)
	assert.Equal(t, 0, f.env.DB.Count("study_session"))

	_, err = f.svc.AcceptRequest(ctx, f.req.ID, f.owner, session.AcceptRequest{})
	assert.Equal(t, session.ErrRequestNotPending, errors.Cause(err))
	assert.Equal(t, 0, f.env.DB.Count("study_session"))

	_, err = f.svc.RejectRequest(ctx, "unknown")
	assert.Equal(t, session.ErrRequestNotFound, errors.Cause(err))
}

func TestService_ListUpcoming(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	sessions, err := f.svc.ListUpcoming(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	grpID := f.req.GroupID
	past, err := f.svc.CreateSession(ctx, grpID, f.owner, session.NewSession{Topic: "Past", Date: "2000-01-01", StartTime: "10:00"})
	require.NoError(t, err)
	soon, err := f.svc.CreateSession(ctx, grpID, f.owner, session.NewSession{
		Topic: "Soon", Date: time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02"), StartTime: "10:00",
	})
	require.NoError(t, err)
	later, err := f.svc.CreateSession(ctx, grpID, f.owner, session.NewSession{
		Topic: "Later", Date: time.Now().UTC().AddDate(0, 1, 0).Format("2006-01-02"), StartTime: "10:00",
	})
	require.NoError(t, err)

	sessions, err = f.svc.ListUpcoming(ctx, grpID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, soon.ID, sessions[0].ID)
	assert.Equal(t, later.ID, sessions[1].ID)

	cancelled := session.StatusCancelled
	_, err = f.svc.UpdateSession(ctx, soon.ID, session.UpdateSession{Status: &cancelled})
	require.NoError(t, err)
	sessions, err = f.svc.ListUpcoming(ctx, grpID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, later.ID, sessions[0].ID)
	assert.NotEqual(t, past.ID, sessions[0].ID)
}
