package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/catalog"
	"github.com/trezcool/skolar/core/commerce"
	"github.com/trezcool/skolar/core/media"
	"github.com/trezcool/skolar/core/notification"
	"github.com/trezcool/skolar/core/progress"
	"github.com/trezcool/skolar/core/user"
	"github.com/trezcool/skolar/services/email"
	"github.com/trezcool/skolar/services/filestore"
	"github.com/trezcool/skolar/services/logger"
	"github.com/trezcool/skolar/services/payment"
	"github.com/trezcool/skolar/services/video"
	"github.com/trezcool/skolar/storage/database/inmem"
)

const (
	SecretKey     = "test-secret-key"
	Audience      = "authenticated"
	WebhookSecret = "mux-test-secret"
)

// Config returns the configuration used by tests; nothing is read from the environment.
func Config() *core.Config {
	return &core.Config{
		Env:             "test",
		AppName:         "Skolar",
		TestMode:        true,
		SecretKey:       SecretKey,
		FrontendBaseURL: "http://localhost:3000",
		Server:          core.ServerConfig{JWTAudience: Audience},
		Stripe:          core.StripeConfig{Currency: "thb"},
		Mux:             core.MuxConfig{WebhookSecret: WebhookSecret, PollInterval: 10 * time.Millisecond, PollTimeout: time.Second},
		RateLimit:       core.RateLimitConfig{Requests: 1000, Window: time.Minute},
	}
}

// Stack wires every service on the in-memory database and the fake platforms.
type Stack struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

	DB       *inmemdb.DB
	Files    *filesvc.MemoryStorage
	Gateway  *paymentsvc.FakeGateway
	Platform *videosvc.FakePlatform

	UserRepo         user.Repository
	CatalogRepo      catalog.Repository
	CommerceRepo     commerce.Repository
	NotificationRepo notification.Repository

	UserSvc         *user.Service
	CatalogSvc      *catalog.Service
	CommerceSvc     *commerce.Service
	ProgressSvc     *progress.Service
	MediaSvc        *media.Service
	NotificationSvc *notification.Service
}

func NewStack() *Stack {
	conf := Config()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	catalog.InitValidators(validate, translator)

	db := inmemdb.Open()
	files := filesvc.NewMemoryStorage()
	gateway := paymentsvc.NewFakeGateway()
	platform := videosvc.NewFakePlatform()
	mailer := emailsvc.NewConsoleServiceMock(conf)

	usrRepo := inmemdb.NewUserRepository(db)
	catalogRepo := inmemdb.NewCatalogRepository(db)
	commerceRepo := inmemdb.NewCommerceRepository(db)
	notifRepo := inmemdb.NewNotificationRepository(db)

	usrSvc := user.NewService(usrRepo, files, logger)
	catalogSvc := catalog.NewService(db, catalogRepo, files, platform, logger)

	return &Stack{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,

		DB:       db,
		Files:    files,
		Gateway:  gateway,
		Platform: platform,

		UserRepo:         usrRepo,
		CatalogRepo:      catalogRepo,
		CommerceRepo:     commerceRepo,
		NotificationRepo: notifRepo,

		UserSvc:    usrSvc,
		CatalogSvc: catalogSvc,
		CommerceSvc: commerce.NewService(commerce.ServiceDeps{
			Tx:              db,
			Repo:            commerceRepo,
			Catalog:         catalogSvc,
			Enroller:        catalogRepo,
			Notifier:        notifRepo,
			Users:           usrSvc,
			Gateway:         gateway,
			Mailer:          mailer,
			Logger:          logger,
			Currency:        conf.Stripe.Currency,
			FrontendBaseURL: conf.FrontendBaseURL,
		}),
		ProgressSvc: progress.NewService(inmemdb.NewProgressRepository(db), catalogSvc),
		MediaSvc: media.NewService(media.ServiceDeps{
			Repo:          inmemdb.NewMediaRepository(db),
			Files:         files,
			Platform:      platform,
			Lessons:       catalogSvc,
			Logger:        logger,
			WebhookSecret: conf.Mux.WebhookSecret,
			PollInterval:  conf.Mux.PollInterval,
			PollTimeout:   conf.Mux.PollTimeout,
		}),
		NotificationSvc: notification.NewService(notifRepo, mailer),
	}
}

// Reset empties the database and the captured emails.
func (s *Stack) Reset() {
	s.DB.Reset()
	emailsvc.ResetSentMessages()
}

func CreateUser(t *testing.T, repo user.Repository, firstName, email, role string, createdAt ...time.Time) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if role == "" {
		role = user.RoleStudent
	}
	usr, err := repo.CreateUser(context.Background(), user.User{
		ID:        uuid.New().String(),
		FirstName: firstName,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(t *testing.T, svc *catalog.Service, instructor user.User, title string, price float64) catalog.Course {
	t.Helper()
	c, err := svc.CreateCourse(context.Background(), catalog.NewCourse{
		Title:   title,
		Price:   price,
		Level:   catalog.LevelBeginner,
		Subject: catalog.SubjectCoding,
	}, instructor)
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return c
}

func CreateChapter(t *testing.T, svc *catalog.Service, courseID, title string) catalog.Chapter {
	t.Helper()
	ch, err := svc.CreateChapter(context.Background(), courseID, catalog.NewChapter{Title: title})
	if err != nil {
		t.Fatalf("CreateChapter() failed: %v", err)
	}
	return ch
}

func CreateLesson(t *testing.T, svc *catalog.Service, courseID, chapterID, title string) catalog.Lesson {
	t.Helper()
	l, err := svc.CreateLesson(context.Background(), courseID, chapterID, catalog.NewLesson{Title: title})
	if err != nil {
		t.Fatalf("CreateLesson() failed: %v", err)
	}
	return l
}

// Enroll adds the student to the course.
func Enroll(t *testing.T, svc *catalog.Service, courseID, userID string) {
	t.Helper()
	if _, err := svc.AddStudent(context.Background(), courseID, userID); err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
}
