package main

import (
	"context"

	"github.com/trezcool/skolar/core/notification"
)

func (cli *commandLine) notify(ctx context.Context, email, title, message string) (notification.Notification, error) {
	nn := notification.NewNotification{Title: title, Message: message}
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return notification.Notification{}, err
	}
	nn.UserID = usr.ID
	if err = nn.Validate(cli.validate); err != nil {
		return notification.Notification{}, err
	}
	return cli.notifSvc.Notify(ctx, usr, nn.Title, nn.Message)
}
