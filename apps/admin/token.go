package main

import (
	"context"
	"time"

	echoapi "github.com/trezcool/skolar/apps/api/echo"
)

// token mints a JWT for the user, the way the identity provider would.
func (cli *commandLine) token(ctx context.Context, email string, ttl time.Duration) (string, error) {
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return echoapi.GenerateToken(echoapi.GetUserClaims(usr, cli.conf, ttl), cli.conf.SecretKey)
}
