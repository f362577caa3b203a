package main

import (
	"context"

	"github.com/trezcool/sciencequest/core/user"
)

// resetPassword sets pwd without the password policy; admins may need to unlock anyone.
func (cli *commandLine) resetPassword(ctx context.Context, uname, pwd string) error {
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return err
	}
	return nil
}

func (cli *commandLine) approve(ctx context.Context, uname string) (user.User, error) {
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return user.User{}, err
	}
	return cli.usrSvc.Approve(ctx, usr.ID)
}
