package media

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/catalog"
)

var (
	// errors
	ErrAttachmentNotFound = core.NewNotFoundError("attachment not found")
	ErrVideoNotFound      = core.NewNotFoundError("video not found")

	errNoFile = errors.New("no file provided")
)

type (
	Repository interface {
		CreateAttachment(ctx context.Context, a Attachment, exec ...core.DBExecutor) (Attachment, error)
		GetAttachment(ctx context.Context, id string, exec ...core.DBExecutor) (Attachment, error)
		// QueryAttachments returns the attachments of a lesson, oldest first.
		QueryAttachments(ctx context.Context, lessonID string, exec ...core.DBExecutor) ([]Attachment, error)
		UpdateAttachment(ctx context.Context, a Attachment, exec ...core.DBExecutor) (Attachment, error)
		DeleteAttachment(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateVideo(ctx context.Context, v Video, exec ...core.DBExecutor) (Video, error)
		GetVideo(ctx context.Context, id string, exec ...core.DBExecutor) (Video, error)
		// QueryVideos returns videos most recent first, of a single user when userID is set.
		QueryVideos(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Video, error)
		UpdateVideo(ctx context.Context, v Video, exec ...core.DBExecutor) (Video, error)
		DeleteVideo(ctx context.Context, id string, exec ...core.DBExecutor) error
		// SetVideoStatusByAsset returns the number of updated videos.
		SetVideoStatusByAsset(ctx context.Context, assetID, status string, exec ...core.DBExecutor) (int, error)
	}

	// LessonVideoSetter is implemented by *catalog.Service.
	LessonVideoSetter interface {
		GetLessonCourse(ctx context.Context, lessonID string) (catalog.Lesson, catalog.Course, error)
		LessonsByAsset(ctx context.Context, assetID string) ([]catalog.Lesson, error)
		SetLessonVideo(ctx context.Context, lessonID, assetID, playbackID string) (catalog.Lesson, error)
		SetPlaybackByAsset(ctx context.Context, assetID, playbackID string) (int, error)
	}

	ServiceDeps struct {
		Repo     Repository
		Files    core.FileStorage
		Platform VideoPlatform
		Lessons  LessonVideoSetter
		Logger   core.Logger

		CorsOrigin    string
		WebhookSecret string
		PollInterval  time.Duration
		PollTimeout   time.Duration
	}

	Service struct {
		ServiceDeps
		nowFunc func() time.Time
	}
)

func NewService(deps ServiceDeps) *Service {
	if deps.CorsOrigin == "" {
		deps.CorsOrigin = "*"
	}
	if deps.PollInterval <= 0 {
		deps.PollInterval = 2 * time.Second
	}
	if deps.PollTimeout <= 0 {
		deps.PollTimeout = 2 * time.Minute
	}
	return &Service{ServiceDeps: deps, nowFunc: time.Now}
}

func (svc *Service) now() time.Time {
	return svc.nowFunc().UTC()
}

// Attachments

// GetLessonCourse returns a lesson with its course, for authorization checks.
func (svc *Service) GetLessonCourse(ctx context.Context, lessonID string) (catalog.Lesson, catalog.Course, error) {
	return svc.Lessons.GetLessonCourse(ctx, lessonID)
}

// UploadAttachment stores the file in the attachments bucket under a timestamped name
// and records it on the lesson.
func (svc *Service) UploadAttachment(ctx context.Context, lessonID string, na NewAttachment, file core.File) (Attachment, error) {
	if file.Content == nil || file.Name == "" {
		return Attachment{}, core.NewValidationError(errNoFile, core.FieldError{Field: "file", Error: errNoFile.Error()})
	}
	if _, _, err := svc.Lessons.GetLessonCourse(ctx, lessonID); err != nil {
		return Attachment{}, err
	}

	now := svc.now()
	name := core.TimestampedName(now, file.Name)
	if err := svc.Files.Upload(ctx, core.BucketAttachments, name, file.Content, file.ContentType); err != nil {
		return Attachment{}, errors.Wrap(err, "uploading attachment")
	}

	a, err := svc.Repo.CreateAttachment(ctx, Attachment{
		ID:        uuid.New().String(),
		Title:     na.Title,
		URL:       svc.Files.PublicURL(core.BucketAttachments, name),
		LessonID:  lessonID,
		CreatedAt: now,
	})
	if err != nil {
		if rmErr := svc.Files.Remove(context.WithoutCancel(ctx), core.BucketAttachments, name); rmErr != nil {
			svc.Logger.Warn("removing orphan attachment object", errors.Wrap(rmErr, name))
		}
		return Attachment{}, errors.Wrap(err, "creating attachment")
	}
	return a, nil
}

func (svc *Service) ListAttachments(ctx context.Context, lessonID string) ([]Attachment, error) {
	return svc.Repo.QueryAttachments(ctx, lessonID)
}

func (svc *Service) GetAttachment(ctx context.Context, id string) (Attachment, error) {
	return svc.Repo.GetAttachment(ctx, id)
}

func (svc *Service) RenameAttachment(ctx context.Context, id string, ua UpdateAttachment) (Attachment, error) {
	a, err := svc.Repo.GetAttachment(ctx, id)
	if err != nil {
		return Attachment{}, err
	}
	a.Title = ua.Title
	return svc.Repo.UpdateAttachment(ctx, a)
}

// DeleteAttachment removes the stored object then the row.
func (svc *Service) DeleteAttachment(ctx context.Context, id string) error {
	a, err := svc.Repo.GetAttachment(ctx, id)
	if err != nil {
		return err
	}
	if err = svc.Files.Remove(ctx, core.BucketAttachments, core.ObjectName(a.URL)); err != nil {
		return errors.Wrap(err, "removing attachment object")
	}
	return errors.Wrap(svc.Repo.DeleteAttachment(ctx, id), "deleting attachment")
}

// Videos

// UploadVideo stores the file in the videos bucket and records it for the user.
func (svc *Service) UploadVideo(ctx context.Context, userID string, nv NewVideo, file core.File) (Video, error) {
	if file.Content == nil || file.Name == "" {
		return Video{}, core.NewValidationError(errNoFile, core.FieldError{Field: "video", Error: errNoFile.Error()})
	}

	now := svc.now()
	name := core.TimestampedName(now, file.Name)
	if err := svc.Files.Upload(ctx, core.BucketVideos, name, file.Content, file.ContentType); err != nil {
		return Video{}, errors.Wrap(err, "uploading video")
	}

	title := nv.Title
	if title == "" {
		title = core.SanitizeFilename(file.Name)
	}
	v, err := svc.Repo.CreateVideo(ctx, Video{
		ID:          uuid.New().String(),
		Title:       title,
		Description: nv.Description,
		URL:         svc.Files.PublicURL(core.BucketVideos, name),
		UserID:      userID,
		LessonID:    nv.LessonID,
		MuxAssetID:  nv.MuxAssetID,
		Status:      VideoStatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		if rmErr := svc.Files.Remove(context.WithoutCancel(ctx), core.BucketVideos, name); rmErr != nil {
			svc.Logger.Warn("removing orphan video object", errors.Wrap(rmErr, name))
		}
		return Video{}, errors.Wrap(err, "creating video")
	}
	return v, nil
}

func (svc *Service) ListVideos(ctx context.Context, userID string) ([]Video, error) {
	return svc.Repo.QueryVideos(ctx, userID)
}

func (svc *Service) GetVideo(ctx context.Context, id string) (Video, error) {
	return svc.Repo.GetVideo(ctx, id)
}

func (svc *Service) UpdateVideo(ctx context.Context, id string, uv UpdateVideo) (Video, error) {
	v, err := svc.Repo.GetVideo(ctx, id)
	if err != nil {
		return Video{}, err
	}
	if uv.Title != nil {
		v.Title = *uv.Title
	}
	if uv.Description != nil {
		v.Description = *uv.Description
	}
	v.UpdatedAt = svc.now()
	return svc.Repo.UpdateVideo(ctx, v)
}

// DeleteVideo removes the stored object then the row.
func (svc *Service) DeleteVideo(ctx context.Context, id string) error {
	v, err := svc.Repo.GetVideo(ctx, id)
	if err != nil {
		return err
	}
	if err = svc.Files.Remove(ctx, core.BucketVideos, core.ObjectName(v.URL)); err != nil {
		return errors.Wrap(err, "removing video object")
	}
	return errors.Wrap(svc.Repo.DeleteVideo(ctx, id), "deleting video")
}
