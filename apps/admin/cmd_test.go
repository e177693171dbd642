package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/skolar/apps/api/echo"
	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/user"
	"github.com/trezcool/skolar/services/email"
	"github.com/trezcool/skolar/tests"
)

var stack *testutil.Stack

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	if stack == nil {
		stack = testutil.NewStack()
	}
	stack.Reset()

	out := new(bytes.Buffer)
	return &commandLine{
		conf:     stack.Conf,
		out:      out,
		validate: stack.Validate,
		usrSvc:   stack.UserSvc,
		notifSvc: stack.NotificationSvc,
	}, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				if !assert.Error(t, err) {
					return
				}
				if tt.wantErr == errHelp {
					assert.Equal(t, errHelp, err)
				} else {
					assert.Equal(t, tt.wantErr.Error(), err.Error())
				}
			case tt.wantErrStr != "":
				if assert.Error(t, err) {
					assert.Contains(t, err.Error(), tt.wantErrStr)
				}
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, out := setup(t)
	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	})
	assert.Contains(t, out.String(), "Usage:")
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var calls []string
	migrateFunc = func(_ context.Context, _ *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		calls = append(calls, strings.TrimSpace(command+" "+strings.Join(args, " ")))
		return nil
	}

	runCLITests(t, cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "coupons", "sql"}},
	})
	assert.Equal(t, []string{"up", "up-to 2", "down", "status", "create coupons sql"}, calls)
}

func Test_commandLine_addUser(t *testing.T) {
	cli, out := setup(t)
	ctx := context.Background()

	runCLITests(t, cli, []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no first name", args: []string{"adduser", "-email", "ann@test.cd"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"adduser", "-lol", "x"}, wantErr: errHelp},
		{name: "bad email", args: []string{"adduser", "-email", "lol", "-first", "Ann"}, wantErrStr: "email"},
		{name: "bad role", args: []string{"adduser", "-email", "ann@test.cd", "-first", "Ann", "-role", "king"}, wantErrStr: "role"},
		{name: "created", args: []string{"adduser", "-email", " Ann@Test.cd ", "-first", "Ann", "-last", "Mbuyi", "-role", "instructor"}},
	})

	usr, err := cli.usrSvc.GetByEmail(ctx, "ann@test.cd")
	require.NoError(t, err)
	assert.Equal(t, "Ann", usr.FirstName)
	assert.Equal(t, "Mbuyi", usr.LastName)
	assert.Equal(t, user.RoleInstructor, usr.Role)
	assert.Contains(t, out.String(), usr.ID)

	t.Run("existing user gets the new role", func(t *testing.T) {
		require.NoError(t, cli.run([]string{"admin", "adduser", "-email", "ann@test.cd", "-first", "Whoever", "-role", "admin"}))
		got, err := cli.usrSvc.GetByEmail(ctx, "ann@test.cd")
		require.NoError(t, err)
		assert.Equal(t, usr.ID, got.ID)
		assert.Equal(t, "Ann", got.FirstName)
		assert.Equal(t, user.RoleAdmin, got.Role)
	})

	t.Run("existing user with a bad role", func(t *testing.T) {
		err := cli.run([]string{"admin", "adduser", "-email", "ann@test.cd", "-first", "Ann", "-role", "king"})
		var vErr *core.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})
}

func Test_commandLine_token(t *testing.T) {
	cli, out := setup(t)
	usr := testutil.CreateUser(t, stack.UserRepo, "Ann", "ann@test.cd", user.RoleStudent)

	runCLITests(t, cli, []cliTest{
		{name: "no args", args: []string{"token"}, wantErr: errHelp},
		{name: "bad ttl", args: []string{"token", "-email", usr.Email, "-ttl", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"token", "-email", "lol@test.cd"}, wantErr: user.ErrNotFound},
	})

	out.Reset()
	require.NoError(t, cli.run([]string{"admin", "token", "-email", "ANN@test.cd", "-ttl", "1h"}))
	tokenStr := strings.TrimSpace(out.String())

	claims := new(echoapi.Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testutil.SecretKey), nil
	}, jwt.WithAudience(testutil.Audience))
	require.NoError(t, err)
	assert.True(t, token.Valid)
	assert.Equal(t, usr.ID, claims.Subject)
	assert.Equal(t, usr.Email, claims.Email)
}

func Test_commandLine_notify(t *testing.T) {
	cli, _ := setup(t)
	usr := testutil.CreateUser(t, stack.UserRepo, "Ann", "ann@test.cd", user.RoleStudent)

	runCLITests(t, cli, []cliTest{
		{name: "no args", args: []string{"notify"}, wantErr: errHelp},
		{name: "no title", args: []string{"notify", "-email", usr.Email}, wantErr: errHelp},
		{name: "user not found", args: []string{"notify", "-email", "lol@test.cd", "-title", "Hi"}, wantErr: user.ErrNotFound},
		{name: "blank title", args: []string{"notify", "-email", usr.Email, "-title", "  "}, wantErrStr: "title"},
		{name: "sent", args: []string{"notify", "-email", usr.Email, "-title", "Maintenance", "-message", "Back soon"}},
	})

	unread, err := stack.NotificationSvc.UnreadCount(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	sent := emailsvc.LastSentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Maintenance", sent[0].Subject)
	assert.Equal(t, usr.Email, sent[0].To[0].Address)
}
