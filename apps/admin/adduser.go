package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/user"
)

// addUser creates an admin or promotes the user matching uname or email.
func (cli *commandLine) addUser(ctx context.Context, name, uname, email, pwd string) (user.User, error) {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrSvc.Get(ctx, user.GetFilter{UsernameOrEmail: []string{uname, email}})
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return user.User{}, err
		}
		return cli.usrSvc.Create(ctx, user.NewUser{
			Name:            name,
			Username:        uname,
			Email:           email,
			Password:        pwd,
			PasswordConfirm: pwd,
			Role:            user.RoleAdmin,
		})
	}

	usr.Role = user.RoleAdmin
	usr.Status = user.StatusActive
	usr.Verified = true
	usr.Grade, usr.Class, usr.Shift = 0, "", ""
	if err := usr.SetPassword(pwd); err != nil {
		return user.User{}, err
	}
	return cli.usrRepo.UpdateUser(ctx, usr)
}
