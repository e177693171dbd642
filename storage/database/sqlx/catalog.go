package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/catalog"
)

var (
	courseColumns = []string{
		"c.id", "c.title", "c.description", "c.cover", "c.instructor", "c.instructor_id", "c.duration",
		"c.level", "c.subject", "c.tags", "c.price", "c.stripe_product_id", "c.stripe_price_id",
		"c.created_at", "c.updated_at",
		"ARRAY(SELECT cs.user_id::text FROM course_students cs WHERE cs.course_id = c.id ORDER BY cs.created_at, cs.user_id) AS student_id",
		`ARRAY(SELECT ch.id::text FROM chapters ch WHERE ch.course_id = c.id ORDER BY ch."index") AS chapters`,
	}
	chapterColumns = []string{"id", "title", "course_id", `"index"`, "created_at", "updated_at"}
	lessonColumns  = []string{"id", "title", "chapter_id", `"index"`, "asset_id", "playback_id", "created_at", "updated_at"}
)

type (
	courseRow struct {
		ID              string         `db:"id"`
		Title           string         `db:"title"`
		Description     string         `db:"description"`
		Cover           string         `db:"cover"`
		Instructor      pq.StringArray `db:"instructor"`
		InstructorID    pq.StringArray `db:"instructor_id"`
		Duration        int            `db:"duration"`
		Level           string         `db:"level"`
		Subject         string         `db:"subject"`
		Tags            pq.StringArray `db:"tags"`
		Price           float64        `db:"price"`
		StripeProductID null.String    `db:"stripe_product_id"`
		StripePriceID   null.String    `db:"stripe_price_id"`
		CreatedAt       time.Time      `db:"created_at"`
		UpdatedAt       time.Time      `db:"updated_at"`
		StudentIDs      pq.StringArray `db:"student_id"`
		ChapterIDs      pq.StringArray `db:"chapters"`
	}

	chapterRow struct {
		ID        string    `db:"id"`
		Title     string    `db:"title"`
		CourseID  string    `db:"course_id"`
		Index     int       `db:"index"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	lessonRow struct {
		ID         string      `db:"id"`
		Title      string      `db:"title"`
		ChapterID  string      `db:"chapter_id"`
		Index      int         `db:"index"`
		AssetID    null.String `db:"asset_id"`
		PlaybackID null.String `db:"playback_id"`
		CreatedAt  time.Time   `db:"created_at"`
		UpdatedAt  time.Time   `db:"updated_at"`
	}
)

func stringSlice(a pq.StringArray) []string {
	if a == nil {
		return []string{}
	}
	return []string(a)
}

func (row courseRow) toCourse() catalog.Course {
	return catalog.Course{
		ID:              row.ID,
		Title:           row.Title,
		Description:     row.Description,
		Cover:           row.Cover,
		Instructor:      stringSlice(row.Instructor),
		InstructorID:    stringSlice(row.InstructorID),
		Duration:        row.Duration,
		Level:           row.Level,
		Subject:         row.Subject,
		Tags:            stringSlice(row.Tags),
		Price:           row.Price,
		StripeProductID: row.StripeProductID.String,
		StripePriceID:   row.StripePriceID.String,
		StudentIDs:      stringSlice(row.StudentIDs),
		ChapterIDs:      stringSlice(row.ChapterIDs),
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
}

func (row chapterRow) toChapter() catalog.Chapter {
	return catalog.Chapter{
		ID:        row.ID,
		Title:     row.Title,
		CourseID:  row.CourseID,
		Index:     row.Index,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

func (row lessonRow) toLesson() catalog.Lesson {
	return catalog.Lesson{
		ID:         row.ID,
		Title:      row.Title,
		ChapterID:  row.ChapterID,
		Index:      row.Index,
		AssetID:    row.AssetID.String,
		PlaybackID: row.PlaybackID.String,
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}
}

type catalogRepository struct {
	repo
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(exec core.DBExecutor) *catalogRepository {
	return &catalogRepository{repo{exec: exec}}
}

// Courses

func (r catalogRepository) QueryCourses(ctx context.Context, filter catalog.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]catalog.Course, error) {
	q := psql.Select(courseColumns...).From("courses c")

	if filter.IDs != nil {
		q = q.Where(sq.Eq{"c.id": validUUIDs(filter.IDs)})
	}
	if filter.InstructorID != "" {
		q = q.Where("? = ANY(c.instructor_id)", filter.InstructorID)
	}
	if filter.Subject != "" {
		q = q.Where(sq.Eq{"c.subject": filter.Subject})
	}
	if filter.Level != "" {
		q = q.Where(sq.Eq{"c.level": filter.Level})
	}
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		q = q.Where(sq.Or{sq.ILike{"c.title": val}, sq.ILike{"c.description": val}})
	}

	orderings := make([]core.DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		orderings = append(orderings, core.DBOrdering{Field: "c." + ord.Field, Ascending: ord.Ascending})
	}
	q = q.OrderBy(orderBy(orderings, "c.created_at DESC", "c.id")...)

	var rows []courseRow
	if err := r.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]catalog.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toCourse())
	}
	return courses, nil
}

func (r catalogRepository) GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (catalog.Course, error) {
	if !validUUID(id) {
		return catalog.Course{}, catalog.ErrCourseNotFound
	}
	var row courseRow
	q := psql.Select(courseColumns...).From("courses c").Where(sq.Eq{"c.id": id})
	if err := r.get(ctx, exec, &row, q); err != nil {
		return catalog.Course{}, trapNoRowsErr(err, catalog.ErrCourseNotFound, "finding course")
	}
	return row.toCourse(), nil
}

func (r catalogRepository) courseValues(c catalog.Course) map[string]interface{} {
	return map[string]interface{}{
		"title":             c.Title,
		"description":       c.Description,
		"cover":             c.Cover,
		"instructor":        pq.StringArray(stringSlice(c.Instructor)),
		"instructor_id":     pq.StringArray(stringSlice(c.InstructorID)),
		"duration":          c.Duration,
		"level":             c.Level,
		"subject":           c.Subject,
		"tags":              pq.StringArray(stringSlice(c.Tags)),
		"price":             c.Price,
		"stripe_product_id": null.NewString(c.StripeProductID, c.StripeProductID != ""),
		"stripe_price_id":   null.NewString(c.StripePriceID, c.StripePriceID != ""),
		"updated_at":        c.UpdatedAt.UTC(),
	}
}

func (r catalogRepository) CreateCourse(ctx context.Context, c catalog.Course, exec ...core.DBExecutor) (catalog.Course, error) {
	values := r.courseValues(c)
	values["id"] = c.ID
	values["created_at"] = c.CreatedAt.UTC()
	if _, err := r.execute(ctx, exec, psql.Insert("courses").SetMap(values)); err != nil {
		return catalog.Course{}, errors.Wrap(err, "inserting course")
	}
	return r.GetCourse(ctx, c.ID, exec...)
}

func (r catalogRepository) UpdateCourse(ctx context.Context, c catalog.Course, exec ...core.DBExecutor) (catalog.Course, error) {
	if !validUUID(c.ID) {
		return catalog.Course{}, catalog.ErrCourseNotFound
	}
	n, err := r.execute(ctx, exec, psql.Update("courses").SetMap(r.courseValues(c)).Where(sq.Eq{"id": c.ID}))
	if err != nil {
		return catalog.Course{}, errors.Wrap(err, "updating course")
	}
	if n == 0 {
		return catalog.Course{}, catalog.ErrCourseNotFound
	}
	return r.GetCourse(ctx, c.ID, exec...)
}

func (r catalogRepository) DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validUUID(id) {
		return nil
	}
	for _, table := range []string{"carts", "wishlist", "course_students", "progresses"} {
		if _, err := r.execute(ctx, exec, psql.Delete(table).Where(sq.Eq{"course_id": id})); err != nil {
			return errors.Wrapf(err, "deleting course %s", table)
		}
	}
	if _, err := r.execute(ctx, exec, psql.Delete("courses").Where(sq.Eq{"id": id})); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return nil
}

// Chapters

func (r catalogRepository) QueryChapters(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]catalog.Chapter, error) {
	if !validUUID(courseID) {
		return []catalog.Chapter{}, nil
	}
	var rows []chapterRow
	q := psql.Select(chapterColumns...).From("chapters").Where(sq.Eq{"course_id": courseID}).OrderBy(`"index"`)
	if err := r.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying chapters")
	}
	chapters := make([]catalog.Chapter, 0, len(rows))
	for _, row := range rows {
		chapters = append(chapters, row.toChapter())
	}
	return chapters, nil
}

func (r catalogRepository) GetChapter(ctx context.Context, id string, exec ...core.DBExecutor) (catalog.Chapter, error) {
	if !validUUID(id) {
		return catalog.Chapter{}, catalog.ErrChapterNotFound
	}
	var row chapterRow
	q := psql.Select(chapterColumns...).From("chapters").Where(sq.Eq{"id": id})
	if err := r.get(ctx, exec, &row, q); err != nil {
		return catalog.Chapter{}, trapNoRowsErr(err, catalog.ErrChapterNotFound, "finding chapter")
	}
	return row.toChapter(), nil
}

func (r catalogRepository) CreateChapter(ctx context.Context, ch catalog.Chapter, exec ...core.DBExecutor) (catalog.Chapter, error) {
	q := psql.Insert("chapters").
		Columns(chapterColumns...).
		Values(ch.ID, ch.Title, ch.CourseID, ch.Index, ch.CreatedAt.UTC(), ch.UpdatedAt.UTC())
	if _, err := r.execute(ctx, exec, q); err != nil {
		if isForeignKeyViolation(err) {
			return catalog.Chapter{}, catalog.ErrCourseNotFound
		}
		return catalog.Chapter{}, errors.Wrap(err, "inserting chapter")
	}
	return r.GetChapter(ctx, ch.ID, exec...)
}

func (r catalogRepository) UpdateChapter(ctx context.Context, ch catalog.Chapter, exec ...core.DBExecutor) (catalog.Chapter, error) {
	q := psql.Update("chapters").
		Set("title", ch.Title).
		Set(`"index"`, ch.Index).
		Set("updated_at", ch.UpdatedAt.UTC()).
		Where(sq.Eq{"id": ch.ID})
	n, err := r.execute(ctx, exec, q)
	if err != nil {
		return catalog.Chapter{}, errors.Wrap(err, "updating chapter")
	}
	if n == 0 {
		return catalog.Chapter{}, catalog.ErrChapterNotFound
	}
	return r.GetChapter(ctx, ch.ID, exec...)
}

func (r catalogRepository) DeleteChapters(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	if ids = validUUIDs(ids); len(ids) == 0 {
		return nil
	}
	_, err := r.execute(ctx, exec, psql.Delete("chapters").Where(sq.Eq{"id": ids}))
	return errors.Wrap(err, "deleting chapters")
}

// Lessons

func (r catalogRepository) QueryLessons(ctx context.Context, chapterIDs []string, exec ...core.DBExecutor) ([]catalog.Lesson, error) {
	if chapterIDs = validUUIDs(chapterIDs); len(chapterIDs) == 0 {
		return []catalog.Lesson{}, nil
	}
	var rows []lessonRow
	q := psql.Select(lessonColumns...).From("lessons").Where(sq.Eq{"chapter_id": chapterIDs}).OrderBy("chapter_id", `"index"`)
	if err := r.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	lessons := make([]catalog.Lesson, 0, len(rows))
	for _, row := range rows {
		lessons = append(lessons, row.toLesson())
	}
	return lessons, nil
}

func (r catalogRepository) GetLesson(ctx context.Context, id string, exec ...core.DBExecutor) (catalog.Lesson, error) {
	if !validUUID(id) {
		return catalog.Lesson{}, catalog.ErrLessonNotFound
	}
	var row lessonRow
	q := psql.Select(lessonColumns...).From("lessons").Where(sq.Eq{"id": id})
	if err := r.get(ctx, exec, &row, q); err != nil {
		return catalog.Lesson{}, trapNoRowsErr(err, catalog.ErrLessonNotFound, "finding lesson")
	}
	return row.toLesson(), nil
}

func (r catalogRepository) CreateLesson(ctx context.Context, l catalog.Lesson, exec ...core.DBExecutor) (catalog.Lesson, error) {
	q := psql.Insert("lessons").
		Columns(lessonColumns...).
		Values(
			l.ID, l.Title, l.ChapterID, l.Index,
			null.NewString(l.AssetID, l.AssetID != ""), null.NewString(l.PlaybackID, l.PlaybackID != ""),
			l.CreatedAt.UTC(), l.UpdatedAt.UTC(),
		)
	if _, err := r.execute(ctx, exec, q); err != nil {
		if isForeignKeyViolation(err) {
			return catalog.Lesson{}, catalog.ErrChapterNotFound
		}
		return catalog.Lesson{}, errors.Wrap(err, "inserting lesson")
	}
	return r.GetLesson(ctx, l.ID, exec...)
}

func (r catalogRepository) UpdateLesson(ctx context.Context, l catalog.Lesson, exec ...core.DBExecutor) (catalog.Lesson, error) {
	q := psql.Update("lessons").
		Set("title", l.Title).
		Set(`"index"`, l.Index).
		Set("asset_id", null.NewString(l.AssetID, l.AssetID != "")).
		Set("playback_id", null.NewString(l.PlaybackID, l.PlaybackID != "")).
		Set("updated_at", l.UpdatedAt.UTC()).
		Where(sq.Eq{"id": l.ID})
	n, err := r.execute(ctx, exec, q)
	if err != nil {
		return catalog.Lesson{}, errors.Wrap(err, "updating lesson")
	}
	if n == 0 {
		return catalog.Lesson{}, catalog.ErrLessonNotFound
	}
	return r.GetLesson(ctx, l.ID, exec...)
}

func (r catalogRepository) DeleteLessons(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]string, error) {
	if ids = validUUIDs(ids); len(ids) == 0 {
		return []string{}, nil
	}

	var urls []string
	q := psql.Select("url").From("attachments").Where(sq.Eq{"lesson_id": ids}).OrderBy("url")
	if err := r.selectAll(ctx, exec, &urls, q); err != nil {
		return nil, errors.Wrap(err, "querying lesson attachments")
	}
	for _, table := range []string{"attachments", "progresses"} {
		if _, err := r.execute(ctx, exec, psql.Delete(table).Where(sq.Eq{"lesson_id": ids})); err != nil {
			return nil, errors.Wrapf(err, "deleting lesson %s", table)
		}
	}
	if _, err := r.execute(ctx, exec, psql.Update("videos").Set("lesson_id", nil).Where(sq.Eq{"lesson_id": ids})); err != nil {
		return nil, errors.Wrap(err, "detaching lesson videos")
	}
	if _, err := r.execute(ctx, exec, psql.Delete("lessons").Where(sq.Eq{"id": ids})); err != nil {
		return nil, errors.Wrap(err, "deleting lessons")
	}
	if urls == nil {
		urls = []string{}
	}
	return urls, nil
}

func (r catalogRepository) QueryLessonsByAsset(ctx context.Context, assetID string, exec ...core.DBExecutor) ([]catalog.Lesson, error) {
	if assetID == "" {
		return []catalog.Lesson{}, nil
	}
	var rows []lessonRow
	q := psql.Select(lessonColumns...).From("lessons").Where(sq.Eq{"asset_id": assetID}).OrderBy("id")
	if err := r.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying asset lessons")
	}
	lessons := make([]catalog.Lesson, 0, len(rows))
	for _, row := range rows {
		lessons = append(lessons, row.toLesson())
	}
	return lessons, nil
}

func (r catalogRepository) SetPlaybackByAsset(ctx context.Context, assetID, playbackID string, exec ...core.DBExecutor) (int, error) {
	if assetID == "" {
		return 0, nil
	}
	q := psql.Update("lessons").
		Set("playback_id", null.NewString(playbackID, playbackID != "")).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"asset_id": assetID})
	n, err := r.execute(ctx, exec, q)
	return n, errors.Wrap(err, "updating lessons playback")
}

// Enrollment

func (r catalogRepository) AddStudent(ctx context.Context, courseID, userID string, exec ...core.DBExecutor) (bool, error) {
	if !validUUID(courseID) {
		return false, catalog.ErrCourseNotFound
	}
	q := psql.Insert("course_students").
		Columns("course_id", "user_id").
		Values(courseID, userID).
		Suffix("ON CONFLICT DO NOTHING")
	n, err := r.execute(ctx, exec, q)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, catalog.ErrCourseNotFound
		}
		return false, errors.Wrap(err, "inserting student")
	}
	return n > 0, nil
}

func (r catalogRepository) RemoveStudent(ctx context.Context, courseID, userID string, exec ...core.DBExecutor) (bool, error) {
	if !validUUID(courseID) || !validUUID(userID) {
		return false, nil
	}
	n, err := r.execute(ctx, exec, psql.Delete("course_students").Where(sq.Eq{"course_id": courseID, "user_id": userID}))
	if err != nil {
		return false, errors.Wrap(err, "deleting student")
	}
	return n > 0, nil
}

func (r catalogRepository) HasStudent(ctx context.Context, courseID, userID string, exec ...core.DBExecutor) (bool, error) {
	if !validUUID(courseID) || !validUUID(userID) {
		return false, nil
	}
	var found bool
	q := psql.Select("true").From("course_students").Where(sq.Eq{"course_id": courseID, "user_id": userID})
	if err := r.get(ctx, exec, &found, q); err != nil {
		return false, trapNoRowsErr(err, nil, "checking enrollment")
	}
	return found, nil
}
