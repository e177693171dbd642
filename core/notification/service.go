package notification

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/user"
)

const DefaultPageLimit = 10

var ErrNotFound = core.NewNotFoundError("notification not found")

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"` // UTC
	IsRead    bool      `json:"is_read"`
}

type NewNotification struct {
	UserID  string `json:"user_id" validate:"required,uuid"`
	Title   string `json:"title" validate:"required,notblank,max=200"`
	Message string `json:"message" validate:"max=2000"`
}

func (nn *NewNotification) Validate(validate *validator.Validate) error {
	nn.UserID = core.CleanString(nn.UserID, true /* lower */)
	nn.Title = core.CleanString(nn.Title)
	nn.Message = core.CleanString(nn.Message)
	return validate.Struct(nn)
}

type Page struct {
	Notifications []Notification  `json:"notifications"`
	Pagination    core.Pagination `json:"pagination"`
}

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification, exec ...core.DBExecutor) (Notification, error)
		// QueryNotifications returns a page of the user notifications, most recent first.
		QueryNotifications(ctx context.Context, userID string, page core.Page, exec ...core.DBExecutor) ([]Notification, error)
		CountNotifications(ctx context.Context, userID string, unreadOnly bool, exec ...core.DBExecutor) (int, error)
		// MarkRead reports whether a notification of the user matched id.
		MarkRead(ctx context.Context, userID, id string, exec ...core.DBExecutor) (bool, error)
		MarkAllRead(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		repo    Repository
		mailer  core.EmailService
		nowFunc func() time.Time
	}
)

func NewService(repo Repository, mailer core.EmailService) *Service {
	return &Service{
		repo:    repo,
		mailer:  mailer,
		nowFunc: time.Now,
	}
}

// New builds a notification with a fresh id, for repositories called inside another service transaction.
func New(userID, title, message string, now time.Time) Notification {
	return Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Timestamp: now.UTC(),
	}
}

func (svc *Service) Create(ctx context.Context, nn NewNotification) (Notification, error) {
	return svc.repo.CreateNotification(ctx, New(nn.UserID, nn.Title, nn.Message, svc.nowFunc()))
}

// Notify creates the notification and emails it to the user.
func (svc *Service) Notify(ctx context.Context, usr user.User, title, message string) (Notification, error) {
	n, err := svc.repo.CreateNotification(ctx, New(usr.ID, title, message, svc.nowFunc()))
	if err != nil {
		return Notification{}, errors.Wrap(err, "creating notification")
	}
	svc.mailer.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:      title,
		TemplateName: "notification",
		TemplateData: map[string]string{"Name": usr.FullName(), "Title": title, "Message": message},
	})
	return n, nil
}

// List returns the page (1-based) of the user notifications, most recent first.
func (svc *Service) List(ctx context.Context, userID string, page core.Page) (Page, error) {
	total, err := svc.repo.CountNotifications(ctx, userID, false)
	if err != nil {
		return Page{}, errors.Wrap(err, "counting notifications")
	}
	items, err := svc.repo.QueryNotifications(ctx, userID, page)
	if err != nil {
		return Page{}, errors.Wrap(err, "querying notifications")
	}
	if items == nil {
		items = []Notification{}
	}
	return Page{Notifications: items, Pagination: core.NewPagination(page, total)}, nil
}

func (svc *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return svc.repo.CountNotifications(ctx, userID, true)
}

// MarkRead only updates a notification owned by the user.
func (svc *Service) MarkRead(ctx context.Context, userID, id string) error {
	found, err := svc.repo.MarkRead(ctx, userID, id)
	if err != nil {
		return errors.Wrap(err, "marking notification as read")
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

func (svc *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return svc.repo.MarkAllRead(ctx, userID)
}
