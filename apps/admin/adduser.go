package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/user"
)

// addUser creates the user, or sets the role of the existing user with the same email.
func (cli *commandLine) addUser(ctx context.Context, nu user.NewUser) (user.User, error) {
	usr, err := cli.usrSvc.GetByEmail(ctx, nu.Email)
	if err == nil {
		return cli.usrSvc.SetRole(ctx, usr.ID, core.CleanString(nu.Role, true /* lower */))
	}
	if !core.IsNotFound(err) {
		return user.User{}, errors.Wrap(err, "finding user by email")
	}

	if err = nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return user.User{}, err
	}
	return cli.usrSvc.Create(ctx, nu)
}
