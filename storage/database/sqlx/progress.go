package sqlxrepos

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/progress"
)

var progressColumns = []string{"id", "course_id", "user_id", "lesson_id", "playhead", "completed", "completed_at", "created_at", "updated_at"}

type progressRow struct {
	ID          string    `db:"id"`
	CourseID    string    `db:"course_id"`
	UserID      string    `db:"user_id"`
	LessonID    string    `db:"lesson_id"`
	Playhead    float64   `db:"playhead"`
	Completed   bool      `db:"completed"`
	CompletedAt null.Time `db:"completed_at"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (row progressRow) toProgress() progress.Progress {
	p := progress.Progress{
		ID:        row.ID,
		CourseID:  row.CourseID,
		UserID:    row.UserID,
		LessonID:  row.LessonID,
		Playhead:  row.Playhead,
		Completed: row.Completed,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
	if row.CompletedAt.Valid {
		at := row.CompletedAt.Time.UTC()
		p.CompletedAt = &at
	}
	return p
}

type progressRepository struct {
	repo
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(exec core.DBExecutor) *progressRepository {
	return &progressRepository{repo{exec: exec}}
}

func keyEq(key progress.Key) sq.Eq {
	return sq.Eq{"course_id": key.CourseID, "user_id": key.UserID, "lesson_id": key.LessonID}
}

func validKey(key progress.Key) bool {
	return validUUID(key.CourseID) && validUUID(key.UserID) && validUUID(key.LessonID)
}

func (r progressRepository) GetProgress(ctx context.Context, key progress.Key, exec ...core.DBExecutor) (progress.Progress, error) {
	if !validKey(key) {
		return progress.Progress{}, progress.ErrNotFound
	}
	var row progressRow
	if err := r.get(ctx, exec, &row, psql.Select(progressColumns...).From("progresses").Where(keyEq(key))); err != nil {
		return progress.Progress{}, trapNoRowsErr(err, progress.ErrNotFound, "finding progress")
	}
	return row.toProgress(), nil
}

func (r progressRepository) CreateProgress(ctx context.Context, p progress.Progress, exec ...core.DBExecutor) (progress.Progress, error) {
	q := psql.Insert("progresses").
		Columns(progressColumns...).
		Values(p.ID, p.CourseID, p.UserID, p.LessonID, p.Playhead, p.Completed, null.TimeFromPtr(p.CompletedAt), p.CreatedAt.UTC(), p.UpdatedAt.UTC()).
		Suffix("ON CONFLICT (course_id, user_id, lesson_id) DO NOTHING")
	if _, err := r.execute(ctx, exec, q); err != nil {
		return progress.Progress{}, errors.Wrap(err, "inserting progress")
	}
	return r.GetProgress(ctx, p.Key(), exec...)
}

func (r progressRepository) returning(ctx context.Context, exec []core.DBExecutor, q sq.UpdateBuilder) (progress.Progress, error) {
	var row progressRow
	if err := r.get(ctx, exec, &row, q.Suffix("RETURNING "+strings.Join(progressColumns, ", "))); err != nil {
		return progress.Progress{}, trapNoRowsErr(err, progress.ErrNotFound, "updating progress")
	}
	return row.toProgress(), nil
}

func (r progressRepository) AdvancePlayhead(ctx context.Context, key progress.Key, playhead float64, at time.Time, exec ...core.DBExecutor) (progress.Progress, error) {
	if !validKey(key) {
		return progress.Progress{}, progress.ErrNotFound
	}
	q := psql.Update("progresses").
		Set("playhead", sq.Expr("GREATEST(playhead, ?)", playhead)).
		Set("updated_at", at.UTC()).
		Where(keyEq(key))
	return r.returning(ctx, exec, q)
}

// MarkCompleted only flips rows not completed yet, so concurrent calls transition once.
func (r progressRepository) MarkCompleted(ctx context.Context, key progress.Key, playhead float64, at time.Time, exec ...core.DBExecutor) (progress.Progress, bool, error) {
	if !validKey(key) {
		return progress.Progress{}, false, progress.ErrNotFound
	}
	q := psql.Update("progresses").
		Set("playhead", sq.Expr("GREATEST(playhead, ?)", playhead)).
		Set("completed", true).
		Set("completed_at", at.UTC()).
		Set("updated_at", at.UTC()).
		Where(keyEq(key)).
		Where(sq.Eq{"completed": false})
	p, err := r.returning(ctx, exec, q)
	if err == nil {
		return p, true, nil
	}
	if !core.IsNotFound(err) {
		return progress.Progress{}, false, err
	}

	p, err = r.AdvancePlayhead(ctx, key, playhead, at, exec...)
	return p, false, err
}

func (r progressRepository) DeleteProgress(ctx context.Context, key progress.Key, exec ...core.DBExecutor) error {
	if !validKey(key) {
		return progress.ErrNotFound
	}
	n, err := r.execute(ctx, exec, psql.Delete("progresses").Where(keyEq(key)))
	if err != nil {
		return errors.Wrap(err, "deleting progress")
	}
	if n == 0 {
		return progress.ErrNotFound
	}
	return nil
}

func (r progressRepository) QueryProgress(ctx context.Context, courseID, userID string, exec ...core.DBExecutor) ([]progress.Progress, error) {
	items := make([]progress.Progress, 0)
	if !validUUID(courseID) || (userID != "" && !validUUID(userID)) {
		return items, nil
	}
	where := sq.Eq{"course_id": courseID}
	if userID != "" {
		where["user_id"] = userID
	}
	var rows []progressRow
	if err := r.selectAll(ctx, exec, &rows, psql.Select(progressColumns...).From("progresses").Where(where).OrderBy("created_at", "id")); err != nil {
		return nil, errors.Wrap(err, "querying progress")
	}
	for _, row := range rows {
		items = append(items, row.toProgress())
	}
	return items, nil
}
