package sqlxrepos

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/studyhub/core/group"
)

var groupColumns = []string{
	"g.id", "g.name", "g.description", "g.owner_id", "g.max_members", "g.tags", "g.is_public", "g.created_at", "g.updated_at",
	"(SELECT COUNT(*) FROM group_member gm WHERE gm.group_id = g.id) AS member_count",
}

type groupRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	OwnerID     string         `db:"owner_id"`
	MaxMembers  int            `db:"max_members"`
	Tags        pq.StringArray `db:"tags"`
	IsPublic    bool           `db:"is_public"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
	MemberCount int            `db:"member_count"`
}

func (r groupRow) toGroup() group.Group {
	return group.Group{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		OwnerID:     r.OwnerID,
		MaxMembers:  r.MaxMembers,
		Tags:        []string(r.Tags),
		IsPublic:    r.IsPublic,
		MemberCount: r.MemberCount,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type memberRow struct {
	GroupID  string      `db:"group_id"`
	UserID   string      `db:"user_id"`
	Role     string      `db:"role"`
	JoinedAt time.Time   `db:"joined_at"`
	Name     null.String `db:"name"`
	Username null.String `db:"username"`
}

func (r memberRow) toMember() group.Member {
	return group.Member{
		GroupID:  r.GroupID,
		UserID:   r.UserID,
		Role:     r.Role,
		JoinedAt: r.JoinedAt.UTC(),
		Name:     r.Name.String,
		Username: r.Username.String,
	}
}

type groupRepository struct {
	db *sqlx.DB
}

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db *sqlx.DB) group.Repository {
	return &groupRepository{db: db}
}

func (repo *groupRepository) selectGroups() sq.SelectBuilder {
	return psql.Select(groupColumns...).From("study_group g")
}

func (repo *groupRepository) CreateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	qb := psql.Insert("study_group").
		Columns("id", "name", "description", "owner_id", "max_members", "tags", "is_public", "created_at", "updated_at").
		Values(grp.ID, grp.Name, grp.Description, grp.OwnerID, grp.MaxMembers, textArray(grp.Tags), grp.IsPublic,
			grp.CreatedAt, grp.UpdatedAt)
	if _, err := exec(ctx, repo.db, qb); err != nil {
		return group.Group{}, err
	}
	return grp, nil
}

func (repo *groupRepository) getGroup(ctx context.Context, id string, forUpdate bool) (group.Group, error) {
	qb := repo.selectGroups().Where(sq.Eq{"g.id": id})
	if forUpdate && inTx(ctx) {
		qb = qb.Suffix("FOR UPDATE OF g")
	}
	var row groupRow
	if err := get(ctx, repo.db, &row, qb); err != nil {
		return group.Group{}, notFound(err, group.ErrNotFound)
	}
	return row.toGroup(), nil
}

func (repo *groupRepository) GetGroup(ctx context.Context, id string) (group.Group, error) {
	return repo.getGroup(ctx, id, false)
}

func (repo *groupRepository) GetGroupForUpdate(ctx context.Context, id string) (group.Group, error) {
	return repo.getGroup(ctx, id, true)
}

func (repo *groupRepository) QueryGroups(ctx context.Context, filter group.QueryFilter) ([]group.Group, error) {
	qb := repo.selectGroups().OrderBy("g.created_at DESC")
	if filter.PublicOnly {
		qb = qb.Where(sq.Eq{"g.is_public": true})
	}
	if filter.UserID != "" {
		qb = qb.Where("EXISTS (SELECT 1 FROM group_member m WHERE m.group_id = g.id AND m.user_id = ?)", filter.UserID)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		qb = qb.Where(sq.Or{
			sq.Expr("LOWER(g.name) LIKE ?", pattern),
			sq.Expr("LOWER(g.description) LIKE ?", pattern),
		})
	}

	var rows []groupRow
	if err := selectRows(ctx, repo.db, &rows, qb); err != nil {
		return nil, err
	}
	groups := make([]group.Group, 0, len(rows))
	for _, r := range rows {
		groups = append(groups, r.toGroup())
	}
	return groups, nil
}

func (repo *groupRepository) QueryCandidates(ctx context.Context, userID string) ([]group.Candidate, error) {
	qb := repo.selectGroups().
		Column("u.timezone AS owner_timezone").
		Column(sq.Expr("EXISTS (SELECT 1 FROM group_member m WHERE m.group_id = g.id AND m.user_id = ?) AS is_member", userID)).
		Join(`"user" u ON u.id = g.owner_id`).
		Where(sq.Eq{"g.is_public": true})

	var rows []struct {
		groupRow
		OwnerTimezone string `db:"owner_timezone"`
		IsMember      bool   `db:"is_member"`
	}
	if err := selectRows(ctx, repo.db, &rows, qb); err != nil {
		return nil, err
	}
	candidates := make([]group.Candidate, 0, len(rows))
	for _, r := range rows {
		candidates = append(candidates, group.Candidate{
			Group:         r.toGroup(),
			IsMember:      r.IsMember,
			OwnerTimezone: r.OwnerTimezone,
		})
	}
	return candidates, nil
}

func (repo *groupRepository) UpdateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	qb := psql.Update("study_group").
		SetMap(map[string]interface{}{
			"name":        grp.Name,
			"description": grp.Description,
			"max_members": grp.MaxMembers,
			"tags":        textArray(grp.Tags),
			"is_public":   grp.IsPublic,
			"updated_at":  grp.UpdatedAt,
		}).
		Where(sq.Eq{"id": grp.ID})
	n, err := exec(ctx, repo.db, qb)
	if err != nil {
		return group.Group{}, err
	}
	if n == 0 {
		return group.Group{}, group.ErrNotFound
	}
	return grp, nil
}

func (repo *groupRepository) DeleteGroup(ctx context.Context, id string) error {
	n, err := exec(ctx, repo.db, psql.Delete("study_group").Where(sq.Eq{"id": id}))
	if err != nil {
		return err
	}
	if n == 0 {
		return group.ErrNotFound
	}
	return nil
}

func (repo *groupRepository) AddMember(ctx context.Context, mbr group.Member) (group.Member, error) {
	qb := psql.Insert("group_member").
		Columns("group_id", "user_id", "role", "joined_at").
		Values(mbr.GroupID, mbr.UserID, mbr.Role, mbr.JoinedAt)
	if _, err := exec(ctx, repo.db, qb); err != nil {
		if isUniqueViolation(err) {
			return group.Member{}, group.ErrAlreadyMember
		}
		return group.Member{}, err
	}
	return mbr, nil
}

func (repo *groupRepository) selectMembers() sq.SelectBuilder {
	return psql.Select("m.group_id", "m.user_id", "m.role", "m.joined_at", "u.name", "u.username").
		From("group_member m").
		LeftJoin(`"user" u ON u.id = m.user_id`)
}

func (repo *groupRepository) GetMember(ctx context.Context, groupID, userID string) (group.Member, error) {
	var row memberRow
	qb := repo.selectMembers().Where(sq.Eq{"m.group_id": groupID, "m.user_id": userID})
	if err := get(ctx, repo.db, &row, qb); err != nil {
		return group.Member{}, notFound(err, group.ErrMemberNotFound)
	}
	return row.toMember(), nil
}

func (repo *groupRepository) QueryMembers(ctx context.Context, groupID string) ([]group.Member, error) {
	var rows []memberRow
	qb := repo.selectMembers().Where(sq.Eq{"m.group_id": groupID}).OrderBy("m.joined_at ASC")
	if err := selectRows(ctx, repo.db, &rows, qb); err != nil {
		return nil, err
	}
	members := make([]group.Member, 0, len(rows))
	for _, r := range rows {
		members = append(members, r.toMember())
	}
	return members, nil
}

func (repo *groupRepository) UpdateMember(ctx context.Context, mbr group.Member) (group.Member, error) {
	qb := psql.Update("group_member").
		Set("role", mbr.Role).
		Where(sq.Eq{"group_id": mbr.GroupID, "user_id": mbr.UserID})
	n, err := exec(ctx, repo.db, qb)
	if err != nil {
		return group.Member{}, err
	}
	if n == 0 {
		return group.Member{}, group.ErrMemberNotFound
	}
	return mbr, nil
}

func (repo *groupRepository) DeleteMember(ctx context.Context, groupID, userID string) error {
	n, err := exec(ctx, repo.db, psql.Delete("group_member").Where(sq.Eq{"group_id": groupID, "user_id": userID}))
	if err != nil {
		return err
	}
	if n == 0 {
		return group.ErrMemberNotFound
	}
	return nil
}

func (repo *groupRepository) QueryUserGroupIDs(ctx context.Context, userID string) ([]string, error) {
	ids := make([]string, 0)
	qb := psql.Select("group_id").From("group_member").Where(sq.Eq{"user_id": userID}).OrderBy("group_id")
	if err := selectRows(ctx, repo.db, &ids, qb); err != nil {
		return nil, err
	}
	return ids, nil
}
