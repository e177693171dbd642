package catalog

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/user"
)

var (
	// errors
	ErrCourseNotFound  = core.NewNotFoundError("course not found")
	ErrChapterNotFound = core.NewNotFoundError("chapter not found")
	ErrLessonNotFound  = core.NewNotFoundError("lesson not found")

	errIndexTaken       = errors.New("index already taken")
	errReorderMismatch  = errors.New("ids must list every item exactly once")
	errStripeIDsMissing = errors.New("stripe product and price ids are required")
)

type (
	Repository interface {
		QueryCourses(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Course, error)
		GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		CreateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		UpdateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		// DeleteCourse removes the course with its enrollments, cart and wishlist entries.
		DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error

		// QueryChapters returns the chapters of a course ordered by index.
		QueryChapters(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]Chapter, error)
		GetChapter(ctx context.Context, id string, exec ...core.DBExecutor) (Chapter, error)
		CreateChapter(ctx context.Context, ch Chapter, exec ...core.DBExecutor) (Chapter, error)
		UpdateChapter(ctx context.Context, ch Chapter, exec ...core.DBExecutor) (Chapter, error)
		DeleteChapters(ctx context.Context, ids []string, exec ...core.DBExecutor) error

		// QueryLessons returns the lessons of the chapters ordered by chapter then index.
		QueryLessons(ctx context.Context, chapterIDs []string, exec ...core.DBExecutor) ([]Lesson, error)
		GetLesson(ctx context.Context, id string, exec ...core.DBExecutor) (Lesson, error)
		CreateLesson(ctx context.Context, l Lesson, exec ...core.DBExecutor) (Lesson, error)
		UpdateLesson(ctx context.Context, l Lesson, exec ...core.DBExecutor) (Lesson, error)
		// DeleteLessons removes the lessons with their attachments and progress rows,
		// and returns the URLs of the removed attachments.
		DeleteLessons(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]string, error)
		// QueryLessonsByAsset returns the lessons whose video is the asset.
		QueryLessonsByAsset(ctx context.Context, assetID string, exec ...core.DBExecutor) ([]Lesson, error)
		SetPlaybackByAsset(ctx context.Context, assetID, playbackID string, exec ...core.DBExecutor) (int, error)

		// AddStudent and RemoveStudent report whether a row was changed.
		AddStudent(ctx context.Context, courseID, userID string, exec ...core.DBExecutor) (bool, error)
		RemoveStudent(ctx context.Context, courseID, userID string, exec ...core.DBExecutor) (bool, error)
		HasStudent(ctx context.Context, courseID, userID string, exec ...core.DBExecutor) (bool, error)
	}

	// AssetRemover deletes hosted video assets.
	AssetRemover interface {
		DeleteAsset(ctx context.Context, assetID string) error
	}

	Service struct {
		tx      core.TxRunner
		repo    Repository
		files   core.FileStorage
		assets  AssetRemover
		logger  core.Logger
		nowFunc func() time.Time
	}
)

func NewService(tx core.TxRunner, repo Repository, files core.FileStorage, assets AssetRemover, logger core.Logger) *Service {
	return &Service{
		tx:      tx,
		repo:    repo,
		files:   files,
		assets:  assets,
		logger:  logger,
		nowFunc: time.Now,
	}
}

func (svc *Service) now() time.Time {
	return svc.nowFunc().UTC()
}

// Courses

func (svc *Service) QueryCourses(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	ordering = core.FilterOrderings(ordering, "title", "price", "duration", "created_at", "updated_at")
	return svc.repo.QueryCourses(ctx, filter, ordering)
}

// QueryCoursesByIDs returns the existing courses among ids, most recent first.
func (svc *Service) QueryCoursesByIDs(ctx context.Context, ids []string) ([]Course, error) {
	if len(ids) == 0 {
		return []Course{}, nil
	}
	return svc.repo.QueryCourses(ctx, QueryFilter{IDs: ids}, nil)
}

func (svc *Service) GetCourse(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

// CreateCourse creates a course taught by the instructor (added to the instructors when missing).
func (svc *Service) CreateCourse(ctx context.Context, nc NewCourse, instructor user.User) (Course, error) {
	now := svc.now()
	c := Course{
		ID:           uuid.New().String(),
		Title:        nc.Title,
		Description:  nc.Description,
		Cover:        nc.Cover,
		Instructor:   nc.Instructor,
		InstructorID: nc.InstructorID,
		Duration:     nc.Duration,
		Level:        nc.Level,
		Subject:      nc.Subject,
		Tags:         nc.Tags,
		Price:        nc.Price,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !instructor.IsAdmin() && !c.HasInstructor(instructor.ID) {
		c.InstructorID = append(c.InstructorID, instructor.ID)
		if name := instructor.FullName(); name != "" {
			c.Instructor = append(c.Instructor, name)
		}
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return svc.repo.CreateCourse(ctx, c)
}

func (svc *Service) UpdateCourse(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	c = uc.apply(c)
	c.UpdatedAt = svc.now()
	return svc.repo.UpdateCourse(ctx, c)
}

// SetStripeProduct stores the payment platform product and price of the course.
func (svc *Service) SetStripeProduct(ctx context.Context, id, productID, priceID string) (Course, error) {
	if productID == "" || priceID == "" {
		return Course{}, core.NewValidationError(errStripeIDsMissing)
	}
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	c.StripeProductID = productID
	c.StripePriceID = priceID
	c.UpdatedAt = svc.now()
	return svc.repo.UpdateCourse(ctx, c)
}

// SetCover uploads the image to the cover bucket and replaces the course cover.
func (svc *Service) SetCover(ctx context.Context, id string, file core.File) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}

	name := core.RandomImageName(svc.nowFunc(), file.Name)
	if err = svc.files.Upload(ctx, core.BucketCoverImages, name, file.Content, file.ContentType); err != nil {
		return Course{}, errors.Wrap(err, "uploading cover")
	}

	prevCover := c.Cover
	c.Cover = svc.files.PublicURL(core.BucketCoverImages, name)
	c.UpdatedAt = svc.now()
	if c, err = svc.repo.UpdateCourse(ctx, c); err != nil {
		return Course{}, errors.Wrap(err, "updating course")
	}

	if prevCover != "" && prevCover != c.Cover && prevCover == svc.files.PublicURL(core.BucketCoverImages, core.ObjectName(prevCover)) {
		if err := svc.files.Remove(ctx, core.BucketCoverImages, core.ObjectName(prevCover)); err != nil {
			svc.logger.Warn("removing previous cover", errors.Wrap(err, prevCover))
		}
	}
	return c, nil
}

// DeleteCourse removes the course and everything under it in one transaction.
// Hosted assets and attachment objects are cleaned up after commit.
func (svc *Service) DeleteCourse(ctx context.Context, id string) error {
	var assetIDs, attachmentURLs []string
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.repo.GetCourse(ctx, id, exec); err != nil {
			return err
		}
		chapters, err := svc.repo.QueryChapters(ctx, id, exec)
		if err != nil {
			return errors.Wrap(err, "querying chapters")
		}
		chapterIDs := make([]string, 0, len(chapters))
		for _, ch := range chapters {
			chapterIDs = append(chapterIDs, ch.ID)
		}

		if assetIDs, attachmentURLs, err = svc.deleteLessons(ctx, chapterIDs, exec); err != nil {
			return err
		}
		if err = svc.repo.DeleteChapters(ctx, chapterIDs, exec); err != nil {
			return errors.Wrap(err, "deleting chapters")
		}
		return errors.Wrap(svc.repo.DeleteCourse(ctx, id, exec), "deleting course")
	})
	if err != nil {
		return err
	}

	svc.cleanup(ctx, assetIDs, attachmentURLs)
	return nil
}

// deleteLessons removes every lesson of the chapters and returns their asset ids and attachment URLs.
func (svc *Service) deleteLessons(ctx context.Context, chapterIDs []string, exec core.DBExecutor) ([]string, []string, error) {
	if len(chapterIDs) == 0 {
		return nil, nil, nil
	}
	lessons, err := svc.repo.QueryLessons(ctx, chapterIDs, exec)
	if err != nil {
		return nil, nil, errors.Wrap(err, "querying lessons")
	}
	if len(lessons) == 0 {
		return nil, nil, nil
	}

	lessonIDs := make([]string, 0, len(lessons))
	assetIDs := make([]string, 0)
	for _, l := range lessons {
		lessonIDs = append(lessonIDs, l.ID)
		if l.AssetID != "" {
			assetIDs = append(assetIDs, l.AssetID)
		}
	}
	urls, err := svc.repo.DeleteLessons(ctx, lessonIDs, exec)
	if err != nil {
		return nil, nil, errors.Wrap(err, "deleting lessons")
	}
	return assetIDs, urls, nil
}

// cleanup is best effort: failures are logged and never undo the database changes.
func (svc *Service) cleanup(ctx context.Context, assetIDs, attachmentURLs []string) {
	ctx = context.WithoutCancel(ctx)
	for _, assetID := range assetIDs {
		if err := svc.assets.DeleteAsset(ctx, assetID); err != nil {
			svc.logger.Warn("deleting video asset", errors.Wrap(err, assetID))
		}
	}
	if len(attachmentURLs) > 0 {
		names := make([]string, 0, len(attachmentURLs))
		for _, u := range attachmentURLs {
			names = append(names, core.ObjectName(u))
		}
		if err := svc.files.Remove(ctx, core.BucketAttachments, names...); err != nil {
			svc.logger.Warn("removing attachment objects", err, map[string]interface{}{"objects": names})
		}
	}
}

// Chapters

func (svc *Service) ListChapters(ctx context.Context, courseID string) ([]Chapter, error) {
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	return svc.repo.QueryChapters(ctx, courseID)
}

// GetChapter returns the chapter if it belongs to the course.
func (svc *Service) GetChapter(ctx context.Context, courseID, chapterID string, exec ...core.DBExecutor) (Chapter, error) {
	ch, err := svc.repo.GetChapter(ctx, chapterID, exec...)
	if err != nil {
		return Chapter{}, err
	}
	if ch.CourseID != courseID {
		return Chapter{}, ErrChapterNotFound
	}
	return ch, nil
}

// CreateChapter appends the chapter to the course unless an explicit free index is given.
func (svc *Service) CreateChapter(ctx context.Context, courseID string, nc NewChapter) (Chapter, error) {
	var ch Chapter
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.repo.GetCourse(ctx, courseID, exec); err != nil {
			return err
		}
		siblings, err := svc.repo.QueryChapters(ctx, courseID, exec)
		if err != nil {
			return errors.Wrap(err, "querying chapters")
		}
		indexes := make([]int, 0, len(siblings))
		for _, s := range siblings {
			indexes = append(indexes, s.Index)
		}
		index, err := pickIndex(nc.Index, indexes)
		if err != nil {
			return err
		}

		now := svc.now()
		ch, err = svc.repo.CreateChapter(ctx, Chapter{
			ID:        uuid.New().String(),
			Title:     nc.Title,
			CourseID:  courseID,
			Index:     index,
			CreatedAt: now,
			UpdatedAt: now,
		}, exec)
		return err
	})
	return ch, err
}

func (svc *Service) UpdateChapter(ctx context.Context, courseID, chapterID string, uc UpdateChapter) (Chapter, error) {
	var ch Chapter
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if ch, err = svc.GetChapter(ctx, courseID, chapterID, exec); err != nil {
			return err
		}
		if uc.Index != nil && *uc.Index != ch.Index {
			siblings, err := svc.repo.QueryChapters(ctx, courseID, exec)
			if err != nil {
				return errors.Wrap(err, "querying chapters")
			}
			for _, s := range siblings {
				if s.Index == *uc.Index {
					return core.NewValidationError(errIndexTaken, core.FieldError{Field: "index", Error: errIndexTaken.Error()})
				}
			}
			ch.Index = *uc.Index
		}
		if uc.Title != nil {
			ch.Title = *uc.Title
		}
		ch.UpdatedAt = svc.now()
		ch, err = svc.repo.UpdateChapter(ctx, ch, exec)
		return err
	})
	return ch, err
}

// DeleteChapter removes the chapter with its lessons in one transaction.
func (svc *Service) DeleteChapter(ctx context.Context, courseID, chapterID string) error {
	var assetIDs, attachmentURLs []string
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.GetChapter(ctx, courseID, chapterID, exec); err != nil {
			return err
		}
		var err error
		if assetIDs, attachmentURLs, err = svc.deleteLessons(ctx, []string{chapterID}, exec); err != nil {
			return err
		}
		return errors.Wrap(svc.repo.DeleteChapters(ctx, []string{chapterID}, exec), "deleting chapter")
	})
	if err != nil {
		return err
	}

	svc.cleanup(ctx, assetIDs, attachmentURLs)
	return nil
}

// ReorderChapters sets chapter indexes to their position in ids.
func (svc *Service) ReorderChapters(ctx context.Context, courseID string, ids []string) ([]Chapter, error) {
	var chapters []Chapter
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.repo.GetCourse(ctx, courseID, exec); err != nil {
			return err
		}
		siblings, err := svc.repo.QueryChapters(ctx, courseID, exec)
		if err != nil {
			return errors.Wrap(err, "querying chapters")
		}
		byID := make(map[string]Chapter, len(siblings))
		for _, s := range siblings {
			byID[s.ID] = s
		}
		if !sameIDs(ids, byID) {
			return core.NewValidationError(errReorderMismatch, core.FieldError{Field: "ids", Error: errReorderMismatch.Error()})
		}

		now := svc.now()
		chapters = make([]Chapter, 0, len(ids))
		for i, id := range ids {
			ch := byID[id]
			if ch.Index != i {
				ch.Index = i
				ch.UpdatedAt = now
				if ch, err = svc.repo.UpdateChapter(ctx, ch, exec); err != nil {
					return errors.Wrap(err, "updating chapter")
				}
			}
			chapters = append(chapters, ch)
		}
		return nil
	})
	return chapters, err
}

// Lessons

func (svc *Service) ListLessons(ctx context.Context, courseID, chapterID string) ([]Lesson, error) {
	if _, err := svc.GetChapter(ctx, courseID, chapterID); err != nil {
		return nil, err
	}
	return svc.repo.QueryLessons(ctx, []string{chapterID})
}

// ListCourseLessons returns every lesson of the course ordered by chapter and lesson index.
func (svc *Service) ListCourseLessons(ctx context.Context, courseID string) ([]Lesson, error) {
	chapters, err := svc.ListChapters(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if len(chapters) == 0 {
		return []Lesson{}, nil
	}
	chapterIDs := make([]string, 0, len(chapters))
	for _, ch := range chapters {
		chapterIDs = append(chapterIDs, ch.ID)
	}
	lessons, err := svc.repo.QueryLessons(ctx, chapterIDs)
	if err != nil {
		return nil, err
	}
	position := make(map[string]int, len(chapters))
	for i, ch := range chapters {
		position[ch.ID] = i
	}
	sort.SliceStable(lessons, func(i, j int) bool {
		if pi, pj := position[lessons[i].ChapterID], position[lessons[j].ChapterID]; pi != pj {
			return pi < pj
		}
		return lessons[i].Index < lessons[j].Index
	})
	return lessons, nil
}

// CountLessons returns the number of lessons of the course.
func (svc *Service) CountLessons(ctx context.Context, courseID string) (int, error) {
	lessons, err := svc.ListCourseLessons(ctx, courseID)
	if err != nil {
		return 0, err
	}
	return len(lessons), nil
}

// GetLesson returns the lesson if it belongs to the chapter of the course.
func (svc *Service) GetLesson(ctx context.Context, courseID, chapterID, lessonID string, exec ...core.DBExecutor) (Lesson, error) {
	if _, err := svc.GetChapter(ctx, courseID, chapterID, exec...); err != nil {
		return Lesson{}, err
	}
	l, err := svc.repo.GetLesson(ctx, lessonID, exec...)
	if err != nil {
		return Lesson{}, err
	}
	if l.ChapterID != chapterID {
		return Lesson{}, ErrLessonNotFound
	}
	return l, nil
}

// GetLessonCourse returns a lesson with the course it belongs to.
func (svc *Service) GetLessonCourse(ctx context.Context, lessonID string) (Lesson, Course, error) {
	l, err := svc.repo.GetLesson(ctx, lessonID)
	if err != nil {
		return Lesson{}, Course{}, err
	}
	ch, err := svc.repo.GetChapter(ctx, l.ChapterID)
	if err != nil {
		return Lesson{}, Course{}, errors.Wrap(err, "getting lesson chapter")
	}
	c, err := svc.repo.GetCourse(ctx, ch.CourseID)
	if err != nil {
		return Lesson{}, Course{}, errors.Wrap(err, "getting lesson course")
	}
	return l, c, nil
}

// CreateLesson appends the lesson to the chapter, which must belong to the course.
func (svc *Service) CreateLesson(ctx context.Context, courseID, chapterID string, nl NewLesson) (Lesson, error) {
	var l Lesson
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.GetChapter(ctx, courseID, chapterID, exec); err != nil {
			return err
		}
		siblings, err := svc.repo.QueryLessons(ctx, []string{chapterID}, exec)
		if err != nil {
			return errors.Wrap(err, "querying lessons")
		}
		indexes := make([]int, 0, len(siblings))
		for _, s := range siblings {
			indexes = append(indexes, s.Index)
		}
		index, err := pickIndex(nl.Index, indexes)
		if err != nil {
			return err
		}

		now := svc.now()
		l, err = svc.repo.CreateLesson(ctx, Lesson{
			ID:         uuid.New().String(),
			Title:      nl.Title,
			ChapterID:  chapterID,
			Index:      index,
			AssetID:    nl.AssetID,
			PlaybackID: nl.PlaybackID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}, exec)
		return err
	})
	return l, err
}

func (svc *Service) UpdateLesson(ctx context.Context, courseID, chapterID, lessonID string, ul UpdateLesson) (Lesson, error) {
	var l Lesson
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if l, err = svc.GetLesson(ctx, courseID, chapterID, lessonID, exec); err != nil {
			return err
		}
		if ul.Index != nil && *ul.Index != l.Index {
			siblings, err := svc.repo.QueryLessons(ctx, []string{chapterID}, exec)
			if err != nil {
				return errors.Wrap(err, "querying lessons")
			}
			for _, s := range siblings {
				if s.Index == *ul.Index {
					return core.NewValidationError(errIndexTaken, core.FieldError{Field: "index", Error: errIndexTaken.Error()})
				}
			}
			l.Index = *ul.Index
		}
		if ul.Title != nil {
			l.Title = *ul.Title
		}
		l.UpdatedAt = svc.now()
		l, err = svc.repo.UpdateLesson(ctx, l, exec)
		return err
	})
	return l, err
}

// DeleteLesson removes the lesson with its attachments and progress rows in one transaction.
func (svc *Service) DeleteLesson(ctx context.Context, courseID, chapterID, lessonID string) error {
	var assetIDs, attachmentURLs []string
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		l, err := svc.GetLesson(ctx, courseID, chapterID, lessonID, exec)
		if err != nil {
			return err
		}
		if l.AssetID != "" {
			assetIDs = []string{l.AssetID}
		}
		attachmentURLs, err = svc.repo.DeleteLessons(ctx, []string{lessonID}, exec)
		return errors.Wrap(err, "deleting lesson")
	})
	if err != nil {
		return err
	}

	svc.cleanup(ctx, assetIDs, attachmentURLs)
	return nil
}

// ReorderLessons sets lesson indexes to their position in ids.
func (svc *Service) ReorderLessons(ctx context.Context, courseID, chapterID string, ids []string) ([]Lesson, error) {
	var lessons []Lesson
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.GetChapter(ctx, courseID, chapterID, exec); err != nil {
			return err
		}
		siblings, err := svc.repo.QueryLessons(ctx, []string{chapterID}, exec)
		if err != nil {
			return errors.Wrap(err, "querying lessons")
		}
		byID := make(map[string]Lesson, len(siblings))
		for _, s := range siblings {
			byID[s.ID] = s
		}
		if !sameIDs(ids, byID) {
			return core.NewValidationError(errReorderMismatch, core.FieldError{Field: "ids", Error: errReorderMismatch.Error()})
		}

		now := svc.now()
		lessons = make([]Lesson, 0, len(ids))
		for i, id := range ids {
			l := byID[id]
			if l.Index != i {
				l.Index = i
				l.UpdatedAt = now
				if l, err = svc.repo.UpdateLesson(ctx, l, exec); err != nil {
					return errors.Wrap(err, "updating lesson")
				}
			}
			lessons = append(lessons, l)
		}
		return nil
	})
	return lessons, err
}

// SetLessonVideo stores the hosted asset of the lesson; the previous asset is deleted afterwards.
func (svc *Service) SetLessonVideo(ctx context.Context, lessonID, assetID, playbackID string) (Lesson, error) {
	l, err := svc.repo.GetLesson(ctx, lessonID)
	if err != nil {
		return Lesson{}, err
	}
	prevAsset := l.AssetID
	l.AssetID = assetID
	l.PlaybackID = playbackID
	l.UpdatedAt = svc.now()
	if l, err = svc.repo.UpdateLesson(ctx, l); err != nil {
		return Lesson{}, errors.Wrap(err, "updating lesson")
	}
	if prevAsset != "" && prevAsset != assetID {
		svc.cleanup(ctx, []string{prevAsset}, nil)
	}
	return l, nil
}

func (svc *Service) LessonsByAsset(ctx context.Context, assetID string) ([]Lesson, error) {
	return svc.repo.QueryLessonsByAsset(ctx, assetID)
}

// SetPlaybackByAsset stores the playback id on every lesson carrying the asset.
func (svc *Service) SetPlaybackByAsset(ctx context.Context, assetID, playbackID string) (int, error) {
	return svc.repo.SetPlaybackByAsset(ctx, assetID, playbackID)
}

// Enrollment

func (svc *Service) AddStudent(ctx context.Context, courseID, userID string) (EnrollmentResult, error) {
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		return EnrollmentResult{}, err
	}
	added, err := svc.repo.AddStudent(ctx, courseID, userID)
	if err != nil {
		return EnrollmentResult{}, errors.Wrap(err, "adding student")
	}
	if !added {
		return EnrollmentResult{Status: StatusFailed, Text: "Student already in course, no need to update"}, nil
	}
	return EnrollmentResult{Status: StatusSuccess, Text: "Student added to course successfully"}, nil
}

func (svc *Service) RemoveStudent(ctx context.Context, courseID, userID string) (EnrollmentResult, error) {
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		return EnrollmentResult{}, err
	}
	removed, err := svc.repo.RemoveStudent(ctx, courseID, userID)
	if err != nil {
		return EnrollmentResult{}, errors.Wrap(err, "removing student")
	}
	if !removed {
		return EnrollmentResult{Status: StatusFailed, Text: "Student not in course, no need to update"}, nil
	}
	return EnrollmentResult{Status: StatusSuccess, Text: "Student removed from course successfully"}, nil
}

func (svc *Service) ListStudents(ctx context.Context, courseID string) ([]string, error) {
	c, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if c.StudentIDs == nil {
		return []string{}, nil
	}
	return c.StudentIDs, nil
}

func (svc *Service) IsEnrolled(ctx context.Context, courseID, userID string) (bool, error) {
	return svc.repo.HasStudent(ctx, courseID, userID)
}

// pickIndex returns the requested index when free, max+1 otherwise.
func pickIndex(requested *int, taken []int) (int, error) {
	if requested != nil {
		for _, i := range taken {
			if i == *requested {
				return 0, core.NewValidationError(errIndexTaken, core.FieldError{Field: "index", Error: errIndexTaken.Error()})
			}
		}
		return *requested, nil
	}
	next := 0
	for _, i := range taken {
		if i >= next {
			next = i + 1
		}
	}
	return next, nil
}

func sameIDs[T any](ids []string, byID map[string]T) bool {
	if len(ids) != len(byID) {
		return false
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := byID[id]; !ok || seen[id] {
			return false
		}
		seen[id] = true
	}
	return true
}
