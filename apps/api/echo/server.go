package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/catalog"
	"github.com/trezcool/skolar/core/commerce"
	"github.com/trezcool/skolar/core/media"
	"github.com/trezcool/skolar/core/notification"
	"github.com/trezcool/skolar/core/progress"
	"github.com/trezcool/skolar/core/user"
	"github.com/trezcool/skolar/services/ratelimit"
)

type (
	Deps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		Limiter    ratelimit.Limiter

		UserSvc         *user.Service
		CatalogSvc      *catalog.Service
		CommerceSvc     *commerce.Service
		ProgressSvc     *progress.Service
		MediaSvc        *media.Service
		NotificationSvc *notification.Service

		// MediaRoot is served under /media when files are stored on the local disk.
		MediaRoot string
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		address string
		app     *echo.Echo
	}
)

var _ Server = (*server)(nil) // interface compliance check

func NewServer(address string, shutdown chan os.Signal, deps *Deps) Server {
	s := &server{
		address: address,
		app:     echo.New(),
	}
	s.setup(shutdown, deps)
	return s
}

func (s *server) setup(shutdown chan os.Signal, deps *Deps) {
	conf := deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{conf.FrontendBaseURL},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	s.app.Use(middleware.BodyLimit("200M"))

	signalShutdown := func() {
		if shutdown != nil {
			shutdown <- syscall.SIGTERM
		}
	}
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, deps.Translator, signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home(conf))
	if deps.MediaRoot != "" {
		s.app.Static("/media", deps.MediaRoot)
	}

	v1 := s.app.Group("/v1")
	jwt := jwtMiddleware(conf)

	registerUserAPI(v1, jwt, deps)
	registerCatalogAPI(v1, jwt, deps)
	registerCommerceAPI(v1, jwt, deps)
	registerProgressAPI(v1, jwt, deps)
	registerMediaAPI(v1, jwt, deps)
	registerNotificationAPI(v1, jwt, deps)
}

func (s *server) Start() error {
	return s.app.Start(s.address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(conf *core.Config) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return ctx.String(http.StatusOK, "Welcome to "+conf.AppName+" API!")
	}
}
