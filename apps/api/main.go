package main

import (
	"context"
	"expvar"
	"fmt"
	"io"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	echoapi "github.com/trezcool/skolar/apps/api/echo"
	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/catalog"
	"github.com/trezcool/skolar/core/commerce"
	"github.com/trezcool/skolar/core/media"
	"github.com/trezcool/skolar/core/notification"
	"github.com/trezcool/skolar/core/progress"
	"github.com/trezcool/skolar/core/user"
	emailsvc "github.com/trezcool/skolar/services/email"
	filesvc "github.com/trezcool/skolar/services/filestore"
	logsvc "github.com/trezcool/skolar/services/logger"
	paymentsvc "github.com/trezcool/skolar/services/payment"
	"github.com/trezcool/skolar/services/ratelimit"
	videosvc "github.com/trezcool/skolar/services/video"
	"github.com/trezcool/skolar/storage/database"
	inmemdb "github.com/trezcool/skolar/storage/database/inmem"
	sqlxrepos "github.com/trezcool/skolar/storage/database/sqlx"
)

const logFlags = log.LstdFlags | log.Lmicroseconds | log.Lshortfile

// stores groups the repositories of one database backend.
type stores struct {
	tx           core.TxRunner
	users        user.Repository
	catalog      catalog.Repository
	commerce     commerce.Repository
	progress     progress.Repository
	media        media.Repository
	notification notification.Repository
	close        func() error
}

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %+v", err)
	}

	// =========================================================================
	// Set up Dependencies

	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "API : ", logFlags), conf)
	defer logger.Close()
	dbLogger := logsvc.NewRollbarLogger(log.New(os.Stdout, "DB : ", logFlags), conf)

	ctx := context.Background()

	st, err := openStores(ctx, conf, dbLogger)
	if err != nil {
		logger.Fatal("setting up database", err)
	}
	defer func() {
		if err = st.close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	files, err := filesvc.New(ctx, conf.Storage)
	if err != nil {
		logger.Fatal("setting up file storage", err)
	}
	if closer, ok := files.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	var mailer core.EmailService
	if conf.Debug || conf.SendgridApiKey == "" {
		mailer = emailsvc.NewConsoleService(conf, log.New(os.Stdout, "EMAIL : ", logFlags))
	} else {
		mailer = emailsvc.NewSendgridService(conf, logger)
	}

	var gateway commerce.PaymentGateway
	if conf.Stripe.SecretKey == "" {
		logger.Warn("stripe secret key not set: using the fake payment gateway")
		gateway = paymentsvc.NewFakeGateway()
	} else {
		gateway = paymentsvc.NewStripeGateway(conf.Stripe)
	}

	var platform media.VideoPlatform
	if conf.Mux.TokenID == "" {
		logger.Warn("mux token not set: using the fake video platform")
		platform = videosvc.NewFakePlatform()
	} else {
		platform = videosvc.NewMuxPlatform(conf.Mux)
	}

	var limiter ratelimit.Limiter
	if conf.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: conf.Redis.Addr, Password: conf.Redis.Password, DB: conf.Redis.DB})
		defer func() { _ = rdb.Close() }()
		if err = rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable: rate limits are kept in memory", err)
			limiter = ratelimit.NewMemoryLimiter(conf.RateLimit.Requests, conf.RateLimit.Window)
		} else {
			limiter = ratelimit.NewRedisLimiter(rdb, conf.RateLimit.Requests, conf.RateLimit.Window)
		}
	} else {
		limiter = ratelimit.NewMemoryLimiter(conf.RateLimit.Requests, conf.RateLimit.Window)
	}

	usrSvc := user.NewService(st.users, files, logger)
	catalogSvc := catalog.NewService(st.tx, st.catalog, files, platform, logger)
	notifSvc := notification.NewService(st.notification, mailer)
	commerceSvc := commerce.NewService(commerce.ServiceDeps{
		Tx:              st.tx,
		Repo:            st.commerce,
		Catalog:         catalogSvc,
		Enroller:        st.catalog,
		Notifier:        st.notification,
		Users:           usrSvc,
		Gateway:         gateway,
		Mailer:          mailer,
		Logger:          logger,
		Currency:        conf.Stripe.Currency,
		FrontendBaseURL: conf.FrontendBaseURL,
	})
	progressSvc := progress.NewService(st.progress, catalogSvc)
	mediaSvc := media.NewService(media.ServiceDeps{
		Repo:          st.media,
		Files:         files,
		Platform:      platform,
		Lessons:       catalogSvc,
		Logger:        logger,
		CorsOrigin:    conf.Mux.CorsOrigin,
		WebhookSecret: conf.Mux.WebhookSecret,
		PollInterval:  conf.Mux.PollInterval,
		PollTimeout:   conf.Mux.PollTimeout,
	})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	catalog.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error("debug server closed", err)
		}
	}()

	// =========================================================================
	// Start API Service

	deps := &echoapi.Deps{
		Conf:            conf,
		Logger:          logger,
		Validate:        validate,
		Translator:      translator,
		Limiter:         limiter,
		UserSvc:         usrSvc,
		CatalogSvc:      catalogSvc,
		CommerceSvc:     commerceSvc,
		ProgressSvc:     progressSvc,
		MediaSvc:        mediaSvc,
		NotificationSvc: notifSvc,
	}
	if conf.Storage.Backend == "disk" || conf.Storage.Backend == "" {
		deps.MediaRoot = conf.Storage.DiskRoot
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(conf.Server.Address(), shutdown, deps)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API listening on " + conf.Server.Address())
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", err)
		}

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err = server.Stop(ctx); err != nil {
			logger.Error("could not stop server gracefully", err)
		}
	}
}

// openStores returns the in-memory stores when the database engine is "memory",
// the postgres ones otherwise (creating and migrating the database first).
func openStores(ctx context.Context, conf *core.Config, logger core.Logger) (*stores, error) {
	if conf.Database.Engine == "memory" {
		logger.Warn("using the in-memory database: data is lost on exit")
		db := inmemdb.Open()
		return &stores{
			tx:           db,
			users:        inmemdb.NewUserRepository(db),
			catalog:      inmemdb.NewCatalogRepository(db),
			commerce:     inmemdb.NewCommerceRepository(db),
			progress:     inmemdb.NewProgressRepository(db),
			media:        inmemdb.NewMediaRepository(db),
			notification: inmemdb.NewNotificationRepository(db),
			close:        func() error { return nil },
		}, nil
	}

	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, errors.Wrap(err, "creating database")
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(ctx, db, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("database ready")
	return sqlStores(db), nil
}

func sqlStores(db *sqlx.DB) *stores {
	return &stores{
		tx:           database.NewTransactor(db),
		users:        sqlxrepos.NewUserRepository(db),
		catalog:      sqlxrepos.NewCatalogRepository(db),
		commerce:     sqlxrepos.NewCommerceRepository(db),
		progress:     sqlxrepos.NewProgressRepository(db),
		media:        sqlxrepos.NewMediaRepository(db),
		notification: sqlxrepos.NewNotificationRepository(db),
		close:        db.Close,
	}
}
