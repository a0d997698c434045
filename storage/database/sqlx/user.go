package sqlxrepos

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/studyhub/core"
	"github.com/trezcool/studyhub/core/user"
)

const userColumns = `id, name, username, email, password_hash, is_active, roles, subjects, education_level,
	study_style, timezone, bio, avatar_path, created_at, updated_at, last_login`

var userOrderFields = map[string]bool{
	"name": true, "username": true, "email": true, "is_active": true, "created_at": true, "last_login": true,
}

type userRow struct {
	ID             string         `db:"id"`
	Name           string         `db:"name"`
	Username       null.String    `db:"username"`
	Email          null.String    `db:"email"`
	PasswordHash   []byte         `db:"password_hash"`
	IsActive       bool           `db:"is_active"`
	Roles          pq.StringArray `db:"roles"`
	Subjects       pq.StringArray `db:"subjects"`
	EducationLevel string         `db:"education_level"`
	StudyStyle     string         `db:"study_style"`
	Timezone       string         `db:"timezone"`
	Bio            string         `db:"bio"`
	AvatarPath     string         `db:"avatar_path"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
	LastLogin      null.Time      `db:"last_login"`
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:             r.ID,
		Name:           r.Name,
		Username:       r.Username.String,
		Email:          r.Email.String,
		IsActive:       r.IsActive,
		Roles:          []string(r.Roles),
		Subjects:       []string(r.Subjects),
		EducationLevel: r.EducationLevel,
		StudyStyle:     r.StudyStyle,
		Timezone:       r.Timezone,
		Bio:            r.Bio,
		AvatarPath:     r.AvatarPath,
		PasswordHash:   r.PasswordHash,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
		LastLogin:      r.LastLogin.Time.UTC(),
	}
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func nullTime(t time.Time) null.Time {
	return null.NewTime(t, !t.IsZero())
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	or := sq.Or{}
	if username != "" {
		or = append(or, sq.Eq{"username": username})
	}
	if email != "" {
		or = append(or, sq.Eq{"email": email})
	}
	if len(or) == 0 {
		return nil
	}
	qb := psql.Select("username", "email").From(`"user"`).Where(or).Limit(1)
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		qb = qb.Where(sq.NotEq{"id": ids})
	}

	var row struct {
		Username null.String `db:"username"`
		Email    null.String `db:"email"`
	}
	if err := get(ctx, repo.db, &row, qb); err != nil {
		return notFound(err, nil)
	}
	if username != "" && row.Username.String == username {
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	qb := psql.Insert(`"user"`).
		Columns("id", "name", "username", "email", "password_hash", "is_active", "roles", "subjects",
			"education_level", "study_style", "timezone", "bio", "avatar_path", "created_at", "updated_at", "last_login").
		Values(usr.ID, usr.Name, nullString(usr.Username), nullString(usr.Email), usr.PasswordHash, usr.IsActive,
			textArray(usr.Roles), textArray(usr.Subjects), usr.EducationLevel, usr.StudyStyle, usr.Timezone, usr.Bio,
			usr.AvatarPath, usr.CreatedAt, usr.UpdatedAt, nullTime(usr.LastLogin))
	if _, err := exec(ctx, repo.db, qb); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrUsernameExists
		}
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	qb := psql.Select(userColumns).From(`"user"`).Limit(1)
	switch {
	case filter.ID != "":
		qb = qb.Where(sq.Eq{"id": filter.ID})
	case filter.Username != "":
		qb = qb.Where(sq.Eq{"username": filter.Username})
	case filter.Email != "":
		qb = qb.Where(sq.Eq{"email": filter.Email})
	case filter.UsernameOrEmail != "":
		qb = qb.Where(sq.Or{sq.Eq{"username": filter.UsernameOrEmail}, sq.Eq{"email": filter.UsernameOrEmail}})
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := get(ctx, repo.db, &row, qb); err != nil {
		return user.User{}, notFound(err, user.ErrNotFound)
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUsers(ctx context.Context, ids ...string) ([]user.User, error) {
	if len(ids) == 0 {
		return []user.User{}, nil
	}
	var rows []userRow
	if err := selectRows(ctx, repo.db, &rows, psql.Select(userColumns).From(`"user"`).Where(sq.Eq{"id": ids})); err != nil {
		return nil, err
	}
	return toUsers(rows), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	qb := psql.Select(userColumns).From(`"user"`)
	if filter != nil {
		if filter.Search != "" {
			pattern := "%" + strings.ToLower(filter.Search) + "%"
			qb = qb.Where(sq.Or{
				sq.Expr("LOWER(name) LIKE ?", pattern),
				sq.Expr("LOWER(username) LIKE ?", pattern),
				sq.Expr("LOWER(email) LIKE ?", pattern),
			})
		}
		if len(filter.Roles) > 0 {
			or := sq.Or{}
			for _, role := range filter.Roles {
				or = append(or, sq.Expr("EXISTS (SELECT 1 FROM unnest(roles) r WHERE r LIKE ?)", role+"%"))
			}
			qb = qb.Where(or)
		}
		if filter.IsActive != nil {
			qb = qb.Where(sq.Eq{"is_active": *filter.IsActive})
		}
		if !filter.CreatedFrom.IsZero() {
			qb = qb.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
		}
		if !filter.CreatedTo.IsZero() {
			qb = qb.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
		}
	}
	if clauses := orderBy(ordering, userOrderFields); len(clauses) > 0 {
		qb = qb.OrderBy(clauses...)
	} else {
		qb = qb.OrderBy("created_at DESC")
	}

	var rows []userRow
	if err := selectRows(ctx, repo.db, &rows, qb); err != nil {
		return nil, err
	}
	return toUsers(rows), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	qb := psql.Update(`"user"`).
		SetMap(map[string]interface{}{
			"name":            usr.Name,
			"username":        nullString(usr.Username),
			"email":           nullString(usr.Email),
			"password_hash":   usr.PasswordHash,
			"is_active":       usr.IsActive,
			"roles":           textArray(usr.Roles),
			"subjects":        textArray(usr.Subjects),
			"education_level": usr.EducationLevel,
			"study_style":     usr.StudyStyle,
			"timezone":        usr.Timezone,
			"bio":             usr.Bio,
			"avatar_path":     usr.AvatarPath,
			"updated_at":      usr.UpdatedAt,
			"last_login":      nullTime(usr.LastLogin),
		}).
		Where(sq.Eq{"id": usr.ID})
	n, err := exec(ctx, repo.db, qb)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrUsernameExists
		}
		return user.User{}, err
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsers(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := exec(ctx, repo.db, psql.Delete(`"user"`).Where(sq.Eq{"id": ids}))
	return err
}

func toUsers(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users
}
