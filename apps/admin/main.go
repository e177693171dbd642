package main

import (
	"context"
	"log"
	"os"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/notification"
	"github.com/trezcool/skolar/core/user"
	emailsvc "github.com/trezcool/skolar/services/email"
	filesvc "github.com/trezcool/skolar/services/filestore"
	logsvc "github.com/trezcool/skolar/services/logger"
	"github.com/trezcool/skolar/storage/database"
	sqlxrepos "github.com/trezcool/skolar/storage/database/sqlx"
)

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %+v", err)
	}
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	defer logger.Close()

	// set up DB
	ctx := context.Background()
	if err = database.CreateIfNotExist(ctx, conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer func() { _ = db.Close() }()

	files, err := filesvc.New(ctx, conf.Storage)
	if err != nil {
		logger.Fatal("setting up file storage", err)
	}
	var mailer core.EmailService
	if conf.Debug || conf.SendgridApiKey == "" {
		mailer = emailsvc.NewConsoleService(conf, log.New(os.Stdout, "EMAIL : ", log.LstdFlags))
	} else {
		mailer = emailsvc.NewSendgridService(conf, logger)
	}

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		conf:     conf,
		db:       db,
		out:      os.Stdout,
		validate: validate,
		usrSvc:   user.NewService(sqlxrepos.NewUserRepository(db), files, logger),
		notifSvc: notification.NewService(sqlxrepos.NewNotificationRepository(db), mailer),
	}
	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		logger.Close()
		os.Exit(1)
	}
}
