package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/notification"
	"github.com/trezcool/skolar/core/user"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf     *core.Config
	db       *sqlx.DB
	out      io.Writer
	validate *validator.Validate
	usrSvc   *user.Service
	notifSvc *notification.Service
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  adduser -email EMAIL -first NAME [-last NAME] [-role ROLE] - create a user or update its role")
	fmt.Fprintln(cli.out, "  token -email EMAIL [-ttl DURATION] - print a JWT for the user")
	fmt.Fprintln(cli.out, "  notify -email EMAIL -title TITLE [-message MESSAGE] - notify and email the user")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserFirst := addUserCmd.String("first", "", "The user's first name.")
	addUserLast := addUserCmd.String("last", "", "The user's last name.")
	addUserRole := addUserCmd.String("role", user.RoleStudent, "One of student, instructor, admin.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenEmail := tokenCmd.String("email", "", "The user's email.")
	tokenTTL := tokenCmd.Duration("ttl", 24*time.Hour, "How long the token is valid.")

	notifyCmd := flag.NewFlagSet("notify", flag.ContinueOnError)
	notifyEmail := notifyCmd.String("email", "", "The user's email.")
	notifyTitle := notifyCmd.String("title", "", "The notification title.")
	notifyMessage := notifyCmd.String("message", "", "The notification message.")

	for _, fs := range []*flag.FlagSet{addUserCmd, tokenCmd, notifyCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserEmail == "" || *addUserFirst == "" {
			addUserCmd.Usage()
			return errHelp
		}
		usr, err := cli.addUser(ctx, user.NewUser{
			FirstName: *addUserFirst,
			LastName:  *addUserLast,
			Email:     *addUserEmail,
			Role:      *addUserRole,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "%s <%s> is %s (%s)\n", usr.FullName(), usr.Email, usr.Role, usr.ID)
		return nil

	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *tokenEmail == "" {
			tokenCmd.Usage()
			return errHelp
		}
		token, err := cli.token(ctx, *tokenEmail, *tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cli.out, token)
		return nil

	case "notify":
		if err := notifyCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *notifyEmail == "" || *notifyTitle == "" {
			notifyCmd.Usage()
			return errHelp
		}
		n, err := cli.notify(ctx, *notifyEmail, *notifyTitle, *notifyMessage)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "notification %s sent\n", n.ID)
		return nil

	default:
		cli.printUsage()
		return errHelp
	}
}
