package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/studyhub/core/group"
)

type groupRepository struct {
	db *DB
}

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db *DB) group.Repository {
	return &groupRepository{db: db}
}

func (repo *groupRepository) withCount(grp group.Group) group.Group {
	grp.MemberCount = repo.db.t.memberCount(grp.ID)
	return grp
}

func (repo *groupRepository) CreateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	defer repo.db.lock(ctx)()

	grp.Tags = copyStrings(grp.Tags)
	repo.db.t.groups[grp.ID] = grp
	return repo.withCount(grp), nil
}

func (repo *groupRepository) GetGroup(ctx context.Context, id string) (group.Group, error) {
	defer repo.db.lock(ctx)()

	grp, ok := repo.db.t.groups[id]
	if !ok {
		return group.Group{}, group.ErrNotFound
	}
	return repo.withCount(grp), nil
}

func (repo *groupRepository) GetGroupForUpdate(ctx context.Context, id string) (group.Group, error) {
	return repo.GetGroup(ctx, id)
}

func (repo *groupRepository) QueryGroups(ctx context.Context, filter group.QueryFilter) ([]group.Group, error) {
	defer repo.db.lock(ctx)()

	search := strings.ToLower(filter.Search)
	groups := make([]group.Group, 0)
	for _, grp := range repo.db.t.groups {
		if filter.PublicOnly && !grp.IsPublic {
			continue
		}
		if filter.UserID != "" {
			if _, ok := repo.db.t.members[memberKey{grp.ID, filter.UserID}]; !ok {
				continue
			}
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(grp.Name), search) &&
			!strings.Contains(strings.ToLower(grp.Description), search) {
			continue
		}
		groups = append(groups, repo.withCount(grp))
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].CreatedAt.After(groups[j].CreatedAt) })
	return groups, nil
}

func (repo *groupRepository) QueryCandidates(ctx context.Context, userID string) ([]group.Candidate, error) {
	defer repo.db.lock(ctx)()

	candidates := make([]group.Candidate, 0)
	for _, grp := range repo.db.t.groups {
		if !grp.IsPublic {
			continue
		}
		_, isMember := repo.db.t.members[memberKey{grp.ID, userID}]
		candidates = append(candidates, group.Candidate{
			Group:         repo.withCount(grp),
			IsMember:      isMember,
			OwnerTimezone: repo.db.t.users[grp.OwnerID].Timezone,
		})
	}
	return candidates, nil
}

func (repo *groupRepository) UpdateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.groups[grp.ID]; !ok {
		return group.Group{}, group.ErrNotFound
	}
	grp.Tags = copyStrings(grp.Tags)
	repo.db.t.groups[grp.ID] = grp
	return repo.withCount(grp), nil
}

func (repo *groupRepository) DeleteGroup(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.groups[id]; !ok {
		return group.ErrNotFound
	}
	repo.db.t.deleteGroup(id)
	return nil
}

func (repo *groupRepository) AddMember(ctx context.Context, mbr group.Member) (group.Member, error) {
	defer repo.db.lock(ctx)()

	key := memberKey{mbr.GroupID, mbr.UserID}
	if _, ok := repo.db.t.members[key]; ok {
		return group.Member{}, group.ErrAlreadyMember
	}
	if _, ok := repo.db.t.groups[mbr.GroupID]; !ok {
		return group.Member{}, group.ErrNotFound
	}
	mbr.Name, mbr.Username = "", ""
	repo.db.t.members[key] = mbr
	return mbr, nil
}

func (repo *groupRepository) GetMember(ctx context.Context, groupID, userID string) (group.Member, error) {
	defer repo.db.lock(ctx)()

	mbr, ok := repo.db.t.members[memberKey{groupID, userID}]
	if !ok {
		return group.Member{}, group.ErrMemberNotFound
	}
	return repo.withUser(mbr), nil
}

func (repo *groupRepository) withUser(mbr group.Member) group.Member {
	usr := repo.db.t.users[mbr.UserID]
	mbr.Name, mbr.Username = usr.Name, usr.Username
	return mbr
}

func (repo *groupRepository) QueryMembers(ctx context.Context, groupID string) ([]group.Member, error) {
	defer repo.db.lock(ctx)()

	members := make([]group.Member, 0)
	for k, mbr := range repo.db.t.members {
		if k.groupID == groupID {
			members = append(members, repo.withUser(mbr))
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].JoinedAt.Before(members[j].JoinedAt) })
	return members, nil
}

func (repo *groupRepository) UpdateMember(ctx context.Context, mbr group.Member) (group.Member, error) {
	defer repo.db.lock(ctx)()

	key := memberKey{mbr.GroupID, mbr.UserID}
	if _, ok := repo.db.t.members[key]; !ok {
		return group.Member{}, group.ErrMemberNotFound
	}
	name, uname := mbr.Name, mbr.Username
	mbr.Name, mbr.Username = "", ""
	repo.db.t.members[key] = mbr
	mbr.Name, mbr.Username = name, uname
	return mbr, nil
}

func (repo *groupRepository) DeleteMember(ctx context.Context, groupID, userID string) error {
	defer repo.db.lock(ctx)()

	key := memberKey{groupID, userID}
	if _, ok := repo.db.t.members[key]; !ok {
		return group.ErrMemberNotFound
	}
	delete(repo.db.t.members, key)
	return nil
}

func (repo *groupRepository) QueryUserGroupIDs(ctx context.Context, userID string) ([]string, error) {
	defer repo.db.lock(ctx)()

	ids := make([]string, 0)
	for k := range repo.db.t.members {
		if k.userID == userID {
			ids = append(ids, k.groupID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
