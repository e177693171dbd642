package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/catalog"
	"github.com/trezcool/skolar/core/media"
)

var (
	attachmentColumns = []string{"id", "title", "url", "lesson_id", "created_at"}
	videoColumns      = []string{"id", "title", "description", "url", "user_id", "lesson_id", "mux_asset_id", "status", "created_at", "updated_at"}
)

type (
	attachmentRow struct {
		ID        string    `db:"id"`
		Title     string    `db:"title"`
		URL       string    `db:"url"`
		LessonID  string    `db:"lesson_id"`
		CreatedAt time.Time `db:"created_at"`
	}

	videoRow struct {
		ID          string      `db:"id"`
		Title       string      `db:"title"`
		Description string      `db:"description"`
		URL         string      `db:"url"`
		UserID      string      `db:"user_id"`
		LessonID    null.String `db:"lesson_id"`
		MuxAssetID  null.String `db:"mux_asset_id"`
		Status      string      `db:"status"`
		CreatedAt   time.Time   `db:"created_at"`
		UpdatedAt   time.Time   `db:"updated_at"`
	}
)

func (row attachmentRow) toAttachment() media.Attachment {
	return media.Attachment{
		ID:        row.ID,
		Title:     row.Title,
		URL:       row.URL,
		LessonID:  row.LessonID,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

func (row videoRow) toVideo() media.Video {
	return media.Video{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		URL:         row.URL,
		UserID:      row.UserID,
		LessonID:    row.LessonID.String,
		MuxAssetID:  row.MuxAssetID.String,
		Status:      row.Status,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

type mediaRepository struct {
	repo
}

var _ media.Repository = (*mediaRepository)(nil) // interface compliance check

func NewMediaRepository(exec core.DBExecutor) *mediaRepository {
	return &mediaRepository{repo{exec: exec}}
}

// Attachments

func (r mediaRepository) CreateAttachment(ctx context.Context, a media.Attachment, exec ...core.DBExecutor) (media.Attachment, error) {
	q := psql.Insert("attachments").
		Columns(attachmentColumns...).
		Values(a.ID, a.Title, a.URL, a.LessonID, a.CreatedAt.UTC())
	if _, err := r.execute(ctx, exec, q); err != nil {
		if isForeignKeyViolation(err) {
			return media.Attachment{}, catalog.ErrLessonNotFound
		}
		return media.Attachment{}, errors.Wrap(err, "inserting attachment")
	}
	return r.GetAttachment(ctx, a.ID, exec...)
}

func (r mediaRepository) GetAttachment(ctx context.Context, id string, exec ...core.DBExecutor) (media.Attachment, error) {
	if !validUUID(id) {
		return media.Attachment{}, media.ErrAttachmentNotFound
	}
	var row attachmentRow
	if err := r.get(ctx, exec, &row, psql.Select(attachmentColumns...).From("attachments").Where(sq.Eq{"id": id})); err != nil {
		return media.Attachment{}, trapNoRowsErr(err, media.ErrAttachmentNotFound, "finding attachment")
	}
	return row.toAttachment(), nil
}

func (r mediaRepository) QueryAttachments(ctx context.Context, lessonID string, exec ...core.DBExecutor) ([]media.Attachment, error) {
	items := make([]media.Attachment, 0)
	if !validUUID(lessonID) {
		return items, nil
	}
	var rows []attachmentRow
	q := psql.Select(attachmentColumns...).From("attachments").Where(sq.Eq{"lesson_id": lessonID}).OrderBy("created_at", "id")
	if err := r.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying attachments")
	}
	for _, row := range rows {
		items = append(items, row.toAttachment())
	}
	return items, nil
}

func (r mediaRepository) UpdateAttachment(ctx context.Context, a media.Attachment, exec ...core.DBExecutor) (media.Attachment, error) {
	if !validUUID(a.ID) {
		return media.Attachment{}, media.ErrAttachmentNotFound
	}
	n, err := r.execute(ctx, exec, psql.Update("attachments").Set("title", a.Title).Where(sq.Eq{"id": a.ID}))
	if err != nil {
		return media.Attachment{}, errors.Wrap(err, "updating attachment")
	}
	if n == 0 {
		return media.Attachment{}, media.ErrAttachmentNotFound
	}
	return r.GetAttachment(ctx, a.ID, exec...)
}

func (r mediaRepository) DeleteAttachment(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validUUID(id) {
		return nil
	}
	_, err := r.execute(ctx, exec, psql.Delete("attachments").Where(sq.Eq{"id": id}))
	return errors.Wrap(err, "deleting attachment")
}

// Videos

func (r mediaRepository) CreateVideo(ctx context.Context, v media.Video, exec ...core.DBExecutor) (media.Video, error) {
	q := psql.Insert("videos").
		Columns(videoColumns...).
		Values(
			v.ID, v.Title, v.Description, v.URL, v.UserID,
			null.NewString(v.LessonID, v.LessonID != ""),
			null.NewString(v.MuxAssetID, v.MuxAssetID != ""),
			v.Status, v.CreatedAt.UTC(), v.UpdatedAt.UTC(),
		)
	if _, err := r.execute(ctx, exec, q); err != nil {
		if isForeignKeyViolation(err) {
			return media.Video{}, catalog.ErrLessonNotFound
		}
		return media.Video{}, errors.Wrap(err, "inserting video")
	}
	return r.GetVideo(ctx, v.ID, exec...)
}

func (r mediaRepository) GetVideo(ctx context.Context, id string, exec ...core.DBExecutor) (media.Video, error) {
	if !validUUID(id) {
		return media.Video{}, media.ErrVideoNotFound
	}
	var row videoRow
	if err := r.get(ctx, exec, &row, psql.Select(videoColumns...).From("videos").Where(sq.Eq{"id": id})); err != nil {
		return media.Video{}, trapNoRowsErr(err, media.ErrVideoNotFound, "finding video")
	}
	return row.toVideo(), nil
}

func (r mediaRepository) QueryVideos(ctx context.Context, userID string, exec ...core.DBExecutor) ([]media.Video, error) {
	items := make([]media.Video, 0)
	q := psql.Select(videoColumns...).From("videos").OrderBy("created_at DESC", "id")
	if userID != "" {
		if !validUUID(userID) {
			return items, nil
		}
		q = q.Where(sq.Eq{"user_id": userID})
	}
	var rows []videoRow
	if err := r.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying videos")
	}
	for _, row := range rows {
		items = append(items, row.toVideo())
	}
	return items, nil
}

func (r mediaRepository) UpdateVideo(ctx context.Context, v media.Video, exec ...core.DBExecutor) (media.Video, error) {
	if !validUUID(v.ID) {
		return media.Video{}, media.ErrVideoNotFound
	}
	q := psql.Update("videos").
		SetMap(map[string]interface{}{
			"title":        v.Title,
			"description":  v.Description,
			"lesson_id":    null.NewString(v.LessonID, v.LessonID != ""),
			"mux_asset_id": null.NewString(v.MuxAssetID, v.MuxAssetID != ""),
			"status":       v.Status,
			"updated_at":   v.UpdatedAt.UTC(),
		}).
		Where(sq.Eq{"id": v.ID})
	n, err := r.execute(ctx, exec, q)
	if err != nil {
		return media.Video{}, errors.Wrap(err, "updating video")
	}
	if n == 0 {
		return media.Video{}, media.ErrVideoNotFound
	}
	return r.GetVideo(ctx, v.ID, exec...)
}

func (r mediaRepository) DeleteVideo(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validUUID(id) {
		return nil
	}
	_, err := r.execute(ctx, exec, psql.Delete("videos").Where(sq.Eq{"id": id}))
	return errors.Wrap(err, "deleting video")
}

func (r mediaRepository) SetVideoStatusByAsset(ctx context.Context, assetID, status string, exec ...core.DBExecutor) (int, error) {
	if assetID == "" {
		return 0, nil
	}
	q := psql.Update("videos").
		Set("status", status).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"mux_asset_id": assetID})
	n, err := r.execute(ctx, exec, q)
	return n, errors.Wrap(err, "updating videos status")
}
