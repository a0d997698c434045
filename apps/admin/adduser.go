package main

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/studyhub/core"
	"github.com/trezcool/studyhub/core/user"
)

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(name, uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	now := time.Now().UTC()

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: uname})
	exists := err == nil
	if err != nil && err != user.ErrNotFound {
		return err
	}
	if !exists {
		usr = user.User{
			ID:        uuid.New().String(),
			Username:  uname,
			Roles:     []string{user.RoleStudent},
			Subjects:  []string{},
			CreatedAt: now,
		}
	}
	if err = cli.usrRepo.CheckUniqueness(ctx, uname, email, usr); err != nil {
		return err
	}

	usr.Email = email
	if name = core.CleanString(name); name != "" {
		usr.Name = name
	}
	if isAdmin {
		usr.Roles = user.AllRoles
	}
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if exists {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	return err
}
