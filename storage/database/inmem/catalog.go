package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/catalog"
)

type catalogRepository struct {
	db *DB
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *DB) *catalogRepository {
	return &catalogRepository{db: db}
}

// course fills the computed lists of a stored course. Callers hold the read lock.
func (repo *catalogRepository) course(r row[catalog.Course]) catalog.Course {
	c := r.val
	c.Instructor = cloneStrings(c.Instructor)
	c.InstructorID = cloneStrings(c.InstructorID)
	c.Tags = cloneStrings(c.Tags)

	type seqID struct {
		id  string
		seq int64
	}
	students := make([]seqID, 0)
	for k, s := range repo.db.t.students {
		if k.courseID == c.ID {
			students = append(students, seqID{k.userID, s.seq})
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].seq < students[j].seq })
	c.StudentIDs = make([]string, 0, len(students))
	for _, s := range students {
		c.StudentIDs = append(c.StudentIDs, s.id)
	}

	chapters := repo.chapters(c.ID)
	c.ChapterIDs = make([]string, 0, len(chapters))
	for _, ch := range chapters {
		c.ChapterIDs = append(c.ChapterIDs, ch.ID)
	}
	return c
}

func (repo *catalogRepository) chapters(courseID string) []catalog.Chapter {
	chapters := make([]catalog.Chapter, 0)
	for _, r := range repo.db.t.chapters {
		if r.val.CourseID == courseID {
			chapters = append(chapters, r.val)
		}
	}
	sort.Slice(chapters, func(i, j int) bool { return chapters[i].Index < chapters[j].Index })
	return chapters
}

func (repo *catalogRepository) QueryCourses(_ context.Context, filter catalog.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]catalog.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	search := strings.ToLower(filter.Search)
	rows := make([]row[catalog.Course], 0, len(repo.db.t.courses))
	for _, r := range repo.db.t.courses {
		c := r.val
		switch {
		case filter.IDs != nil && !core.StringInSlice(c.ID, filter.IDs),
			filter.InstructorID != "" && !c.HasInstructor(filter.InstructorID),
			filter.Subject != "" && c.Subject != filter.Subject,
			filter.Level != "" && c.Level != filter.Level,
			search != "" && !strings.Contains(strings.ToLower(c.Title), search) && !strings.Contains(strings.ToLower(c.Description), search):
			continue
		}
		rows = append(rows, r)
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].val, rows[j].val
		for _, ord := range ordering {
			cmp := compareCourses(a, b, ord.Field)
			if cmp == 0 {
				continue
			}
			if ord.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return rows[i].seq > rows[j].seq
	})

	courses := make([]catalog.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, repo.course(r))
	}
	return courses, nil
}

func compareCourses(a, b catalog.Course, field string) int {
	switch field {
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "price":
		return compareOrdered(a.Price, b.Price)
	case "duration":
		return compareOrdered(a.Duration, b.Duration)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func compareOrdered[T int | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (repo *catalogRepository) GetCourse(_ context.Context, id string, _ ...core.DBExecutor) (catalog.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	r, ok := repo.db.t.courses[id]
	if !ok {
		return catalog.Course{}, catalog.ErrCourseNotFound
	}
	return repo.course(r), nil
}

func (repo *catalogRepository) CreateCourse(_ context.Context, c catalog.Course, exec ...core.DBExecutor) (catalog.Course, error) {
	defer repo.db.lockWrite(exec)()

	if _, ok := repo.db.t.courses[c.ID]; ok {
		return catalog.Course{}, errors.Errorf("duplicate course id %q", c.ID)
	}
	r := row[catalog.Course]{val: c, seq: repo.db.nextSeq()}
	r.val.Instructor = cloneStrings(c.Instructor)
	r.val.InstructorID = cloneStrings(c.InstructorID)
	r.val.Tags = cloneStrings(c.Tags)
	r.val.StudentIDs, r.val.ChapterIDs = nil, nil
	repo.db.t.courses[c.ID] = r
	return repo.course(r), nil
}

func (repo *catalogRepository) UpdateCourse(_ context.Context, c catalog.Course, exec ...core.DBExecutor) (catalog.Course, error) {
	defer repo.db.lockWrite(exec)()

	r, ok := repo.db.t.courses[c.ID]
	if !ok {
		return catalog.Course{}, catalog.ErrCourseNotFound
	}
	c.CreatedAt = r.val.CreatedAt
	c.Instructor = cloneStrings(c.Instructor)
	c.InstructorID = cloneStrings(c.InstructorID)
	c.Tags = cloneStrings(c.Tags)
	c.StudentIDs, c.ChapterIDs = nil, nil
	r.val = c
	repo.db.t.courses[c.ID] = r
	return repo.course(r), nil
}

func (repo *catalogRepository) DeleteCourse(_ context.Context, id string, exec ...core.DBExecutor) error {
	defer repo.db.lockWrite(exec)()

	for k := range repo.db.t.students {
		if k.courseID == id {
			delete(repo.db.t.students, k)
		}
	}
	for k := range repo.db.t.carts {
		if k.courseID == id {
			delete(repo.db.t.carts, k)
		}
	}
	for k := range repo.db.t.wishlist {
		if k.courseID == id {
			delete(repo.db.t.wishlist, k)
		}
	}
	for k := range repo.db.t.progresses {
		if k.CourseID == id {
			delete(repo.db.t.progresses, k)
		}
	}
	delete(repo.db.t.courses, id)
	return nil
}

// Chapters

func (repo *catalogRepository) QueryChapters(_ context.Context, courseID string, _ ...core.DBExecutor) ([]catalog.Chapter, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.chapters(courseID), nil
}

func (repo *catalogRepository) GetChapter(_ context.Context, id string, _ ...core.DBExecutor) (catalog.Chapter, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	r, ok := repo.db.t.chapters[id]
	if !ok {
		return catalog.Chapter{}, catalog.ErrChapterNotFound
	}
	return r.val, nil
}

func (repo *catalogRepository) CreateChapter(_ context.Context, ch catalog.Chapter, exec ...core.DBExecutor) (catalog.Chapter, error) {
	defer repo.db.lockWrite(exec)()

	if _, ok := repo.db.t.courses[ch.CourseID]; !ok {
		return catalog.Chapter{}, catalog.ErrCourseNotFound
	}
	repo.db.t.chapters[ch.ID] = row[catalog.Chapter]{val: ch, seq: repo.db.nextSeq()}
	return ch, nil
}

func (repo *catalogRepository) UpdateChapter(_ context.Context, ch catalog.Chapter, exec ...core.DBExecutor) (catalog.Chapter, error) {
	defer repo.db.lockWrite(exec)()

	r, ok := repo.db.t.chapters[ch.ID]
	if !ok {
		return catalog.Chapter{}, catalog.ErrChapterNotFound
	}
	ch.CreatedAt = r.val.CreatedAt
	r.val = ch
	repo.db.t.chapters[ch.ID] = r
	return ch, nil
}

func (repo *catalogRepository) DeleteChapters(_ context.Context, ids []string, exec ...core.DBExecutor) error {
	defer repo.db.lockWrite(exec)()

	for _, id := range ids {
		delete(repo.db.t.chapters, id)
	}
	return nil
}

// Lessons

func (repo *catalogRepository) QueryLessons(_ context.Context, chapterIDs []string, _ ...core.DBExecutor) ([]catalog.Lesson, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	lessons := make([]catalog.Lesson, 0)
	for _, r := range repo.db.t.lessons {
		if core.StringInSlice(r.val.ChapterID, chapterIDs) {
			lessons = append(lessons, r.val)
		}
	}
	sort.Slice(lessons, func(i, j int) bool {
		if lessons[i].ChapterID != lessons[j].ChapterID {
			return lessons[i].ChapterID < lessons[j].ChapterID
		}
		return lessons[i].Index < lessons[j].Index
	})
	return lessons, nil
}

func (repo *catalogRepository) GetLesson(_ context.Context, id string, _ ...core.DBExecutor) (catalog.Lesson, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	r, ok := repo.db.t.lessons[id]
	if !ok {
		return catalog.Lesson{}, catalog.ErrLessonNotFound
	}
	return r.val, nil
}

func (repo *catalogRepository) CreateLesson(_ context.Context, l catalog.Lesson, exec ...core.DBExecutor) (catalog.Lesson, error) {
	defer repo.db.lockWrite(exec)()

	if _, ok := repo.db.t.chapters[l.ChapterID]; !ok {
		return catalog.Lesson{}, catalog.ErrChapterNotFound
	}
	repo.db.t.lessons[l.ID] = row[catalog.Lesson]{val: l, seq: repo.db.nextSeq()}
	return l, nil
}

func (repo *catalogRepository) UpdateLesson(_ context.Context, l catalog.Lesson, exec ...core.DBExecutor) (catalog.Lesson, error) {
	defer repo.db.lockWrite(exec)()

	r, ok := repo.db.t.lessons[l.ID]
	if !ok {
		return catalog.Lesson{}, catalog.ErrLessonNotFound
	}
	l.CreatedAt = r.val.CreatedAt
	r.val = l
	repo.db.t.lessons[l.ID] = r
	return l, nil
}

func (repo *catalogRepository) DeleteLessons(_ context.Context, ids []string, exec ...core.DBExecutor) ([]string, error) {
	defer repo.db.lockWrite(exec)()

	urls := make([]string, 0)
	for id, r := range repo.db.t.attachments {
		if core.StringInSlice(r.val.LessonID, ids) {
			urls = append(urls, r.val.URL)
			delete(repo.db.t.attachments, id)
		}
	}
	for k := range repo.db.t.progresses {
		if core.StringInSlice(k.LessonID, ids) {
			delete(repo.db.t.progresses, k)
		}
	}
	for id, r := range repo.db.t.videos {
		if r.val.LessonID != "" && core.StringInSlice(r.val.LessonID, ids) {
			r.val.LessonID = ""
			repo.db.t.videos[id] = r
		}
	}
	for _, id := range ids {
		delete(repo.db.t.lessons, id)
	}
	sort.Strings(urls)
	return urls, nil
}

func (repo *catalogRepository) QueryLessonsByAsset(_ context.Context, assetID string, _ ...core.DBExecutor) ([]catalog.Lesson, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	lessons := make([]catalog.Lesson, 0)
	for _, r := range repo.db.t.lessons {
		if assetID != "" && r.val.AssetID == assetID {
			lessons = append(lessons, r.val)
		}
	}
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].ID < lessons[j].ID })
	return lessons, nil
}

func (repo *catalogRepository) SetPlaybackByAsset(_ context.Context, assetID, playbackID string, exec ...core.DBExecutor) (int, error) {
	defer repo.db.lockWrite(exec)()

	n := 0
	for id, r := range repo.db.t.lessons {
		if assetID != "" && r.val.AssetID == assetID {
			r.val.PlaybackID = playbackID
			repo.db.t.lessons[id] = r
			n++
		}
	}
	return n, nil
}

// Enrollment

func (repo *catalogRepository) AddStudent(_ context.Context, courseID, userID string, exec ...core.DBExecutor) (bool, error) {
	defer repo.db.lockWrite(exec)()

	if _, ok := repo.db.t.courses[courseID]; !ok {
		return false, catalog.ErrCourseNotFound
	}
	k := pair{courseID: courseID, userID: userID}
	if _, ok := repo.db.t.students[k]; ok {
		return false, nil
	}
	repo.db.t.students[k] = row[struct{}]{seq: repo.db.nextSeq()}
	return true, nil
}

func (repo *catalogRepository) RemoveStudent(_ context.Context, courseID, userID string, exec ...core.DBExecutor) (bool, error) {
	defer repo.db.lockWrite(exec)()

	k := pair{courseID: courseID, userID: userID}
	if _, ok := repo.db.t.students[k]; !ok {
		return false, nil
	}
	delete(repo.db.t.students, k)
	return true, nil
}

func (repo *catalogRepository) HasStudent(_ context.Context, courseID, userID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	_, ok := repo.db.t.students[pair{courseID: courseID, userID: userID}]
	return ok, nil
}
