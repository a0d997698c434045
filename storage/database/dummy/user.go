package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/studyhub/core"
	"github.com/trezcool/studyhub/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.t.users))
	for _, u := range repo.db.t.users {
		users = append(users, u)
	}
	return users
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	defer repo.db.lock(ctx)()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}
	for _, usr := range repo.db.t.users {
		if excluded[usr.ID] {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	defer repo.db.lock(ctx)()

	usr.Roles = copyStrings(usr.Roles)
	usr.Subjects = copyStrings(usr.Subjects)
	repo.db.t.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	defer repo.db.lock(ctx)()

	if filter.ID != "" {
		if usr, ok := repo.db.t.users[filter.ID]; ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.t.users {
		switch {
		case filter.Username != "":
			if usr.Username == filter.Username {
				return usr, nil
			}
		case filter.Email != "":
			if usr.Email == filter.Email {
				return usr, nil
			}
		case filter.UsernameOrEmail != "":
			if usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUsers(ctx context.Context, ids ...string) ([]user.User, error) {
	defer repo.db.lock(ctx)()

	users := make([]user.User, 0, len(ids))
	for _, id := range ids {
		if usr, ok := repo.db.t.users[id]; ok {
			users = append(users, usr)
		}
	}
	return users, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	defer repo.db.lock(ctx)()

	users := repo.query()
	if filter != nil {
		filtered := make([]user.User, 0, len(users))
		for _, u := range users {
			if matchUser(u, filter) {
				filtered = append(filtered, u)
			}
		}
		users = filtered
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: false}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			a, b := userField(users[i], ord.Field), userField(users[j], ord.Field)
			if a == b {
				continue
			}
			if ord.Ascending {
				return a < b
			}
			return a > b
		}
		return false
	})
	return users, nil
}

func matchUser(u user.User, filter *user.QueryFilter) bool {
	if filter.Search != "" {
		s := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(u.Username), s) &&
			!strings.Contains(strings.ToLower(u.Email), s) &&
			!strings.Contains(strings.ToLower(u.Name), s) {
			return false
		}
	}
	if len(filter.Roles) > 0 {
		found := false
		for _, r := range filter.Roles {
			if u.RoleStartsWith(r) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.IsActive != nil && u.IsActive != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && u.CreatedAt.Before(filter.CreatedFrom.UTC()) {
		return false
	}
	if !filter.CreatedTo.IsZero() && u.CreatedAt.After(filter.CreatedTo.UTC()) {
		return false
	}
	return true
}

// userField returns a sortable representation of a User column.
func userField(u user.User, field string) string {
	switch field {
	case "name":
		return strings.ToLower(u.Name)
	case "username":
		return u.Username
	case "email":
		return u.Email
	case "is_active":
		if u.IsActive {
			return "1"
		}
		return "0"
	case "last_login":
		return u.LastLogin.Format("20060102150405.000000000")
	default:
		return u.CreatedAt.Format("20060102150405.000000000")
	}
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	usr.Roles = copyStrings(usr.Roles)
	usr.Subjects = copyStrings(usr.Subjects)
	repo.db.t.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) DeleteUsers(ctx context.Context, ids ...string) error {
	defer repo.db.lock(ctx)()
	for _, id := range ids {
		repo.db.t.deleteUser(id)
	}
	return nil
}
