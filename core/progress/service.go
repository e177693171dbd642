package progress

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core"
)

var ErrNotFound = core.NewNotFoundError("progress not found")

// Key identifies the progress of a user on a lesson of a course.
type Key struct {
	CourseID string `json:"course_id" validate:"required,uuid"`
	UserID   string `json:"user_id" validate:"required,uuid"`
	LessonID string `json:"lesson_id" validate:"required,uuid"`
}

func (k *Key) Validate(validate *validator.Validate) error {
	k.CourseID = core.CleanString(k.CourseID, true /* lower */)
	k.UserID = core.CleanString(k.UserID, true /* lower */)
	k.LessonID = core.CleanString(k.LessonID, true /* lower */)
	return validate.Struct(k)
}

type Progress struct {
	ID          string     `json:"id"`
	CourseID    string     `json:"course_id"`
	UserID      string     `json:"user_id"`
	LessonID    string     `json:"lesson_id"`
	Playhead    float64    `json:"playhead"` // seconds
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"` // UTC
	CreatedAt   time.Time  `json:"created_at"`             // UTC
	UpdatedAt   time.Time  `json:"updated_at"`             // UTC
}

func (p Progress) Key() Key {
	return Key{CourseID: p.CourseID, UserID: p.UserID, LessonID: p.LessonID}
}

// PlayheadUpdate is sent by players while a lesson plays.
type PlayheadUpdate struct {
	Playhead float64 `json:"playhead" validate:"gte=0"`
}

func (pu *PlayheadUpdate) Validate(validate *validator.Validate) error {
	return validate.Struct(pu)
}

type Summary struct {
	CourseID  string  `json:"course_id"`
	UserID    string  `json:"user_id"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Ratio     float64 `json:"ratio"`
}

type (
	Repository interface {
		GetProgress(ctx context.Context, key Key, exec ...core.DBExecutor) (Progress, error)
		// CreateProgress inserts p unless a row already exists for its key; the stored row is returned.
		CreateProgress(ctx context.Context, p Progress, exec ...core.DBExecutor) (Progress, error)
		// AdvancePlayhead never moves the stored playhead backwards.
		AdvancePlayhead(ctx context.Context, key Key, playhead float64, at time.Time, exec ...core.DBExecutor) (Progress, error)
		// MarkCompleted reports whether this call set the completion.
		MarkCompleted(ctx context.Context, key Key, playhead float64, at time.Time, exec ...core.DBExecutor) (Progress, bool, error)
		DeleteProgress(ctx context.Context, key Key, exec ...core.DBExecutor) error
		// QueryProgress lists the rows of a course, of a single user when userID is set.
		QueryProgress(ctx context.Context, courseID, userID string, exec ...core.DBExecutor) ([]Progress, error)
	}

	// LessonCounter is implemented by *catalog.Service.
	LessonCounter interface {
		CountLessons(ctx context.Context, courseID string) (int, error)
	}

	Service struct {
		repo    Repository
		lessons LessonCounter
		nowFunc func() time.Time
	}
)

func NewService(repo Repository, lessons LessonCounter) *Service {
	return &Service{
		repo:    repo,
		lessons: lessons,
		nowFunc: time.Now,
	}
}

func (svc *Service) now() time.Time {
	return svc.nowFunc().UTC()
}

// Start returns the progress of the key, creating it with a zero playhead when missing.
func (svc *Service) Start(ctx context.Context, key Key) (Progress, error) {
	p, err := svc.repo.GetProgress(ctx, key)
	if err == nil {
		return p, nil
	}
	if !core.IsNotFound(err) {
		return Progress{}, errors.Wrap(err, "getting progress")
	}
	now := svc.now()
	return svc.repo.CreateProgress(ctx, Progress{
		ID:        uuid.New().String(),
		CourseID:  key.CourseID,
		UserID:    key.UserID,
		LessonID:  key.LessonID,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) Get(ctx context.Context, key Key) (Progress, error) {
	return svc.repo.GetProgress(ctx, key)
}

// UpdatePlayhead starts the progress when needed then advances its playhead.
func (svc *Service) UpdatePlayhead(ctx context.Context, key Key, playhead float64) (Progress, error) {
	if _, err := svc.Start(ctx, key); err != nil {
		return Progress{}, err
	}
	return svc.repo.AdvancePlayhead(ctx, key, playhead, svc.now())
}

// Complete marks the lesson completed; completed reports whether this call did it.
func (svc *Service) Complete(ctx context.Context, key Key, playhead float64) (p Progress, completed bool, err error) {
	if _, err = svc.Start(ctx, key); err != nil {
		return Progress{}, false, err
	}
	return svc.repo.MarkCompleted(ctx, key, playhead, svc.now())
}

func (svc *Service) Delete(ctx context.Context, key Key) error {
	return svc.repo.DeleteProgress(ctx, key)
}

func (svc *Service) ListByCourse(ctx context.Context, courseID string) ([]Progress, error) {
	return svc.repo.QueryProgress(ctx, courseID, "")
}

func (svc *Service) ListForUser(ctx context.Context, courseID, userID string) ([]Progress, error) {
	return svc.repo.QueryProgress(ctx, courseID, userID)
}

func (svc *Service) CourseSummary(ctx context.Context, courseID, userID string) (Summary, error) {
	total, err := svc.lessons.CountLessons(ctx, courseID)
	if err != nil {
		return Summary{}, err
	}
	rows, err := svc.repo.QueryProgress(ctx, courseID, userID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying progress")
	}
	s := Summary{CourseID: courseID, UserID: userID, Total: total}
	for _, p := range rows {
		if p.Completed {
			s.Completed++
		}
	}
	if total > 0 {
		s.Ratio = float64(s.Completed) / float64(total)
	}
	return s, nil
}
