package catalog_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/catalog"
	"github.com/trezcool/skolar/core/media"
	"github.com/trezcool/skolar/core/progress"
	"github.com/trezcool/skolar/core/user"
	"github.com/trezcool/skolar/tests"
)

func attach(t *testing.T, stack *testutil.Stack, lessonID, name string) media.Attachment {
	t.Helper()
	a, err := stack.MediaSvc.UploadAttachment(context.Background(), lessonID, media.NewAttachment{Title: name}, core.File{
		Name:        name,
		ContentType: "application/pdf",
		Content:     strings.NewReader("%PDF"),
	})
	require.NoError(t, err)
	return a
}

func TestService_DeleteCourse(t *testing.T) {
	stack := testutil.NewStack()
	ctx := context.Background()
	teacher := testutil.CreateUser(t, stack.UserRepo, "Teach", "teach@test.cd", user.RoleInstructor)
	student := testutil.CreateUser(t, stack.UserRepo, "Ann", "ann@test.cd", user.RoleStudent)

	c := testutil.CreateCourse(t, stack.CatalogSvc, teacher, "Learn Go", 10)
	ch1 := testutil.CreateChapter(t, stack.CatalogSvc, c.ID, "One")
	ch2 := testutil.CreateChapter(t, stack.CatalogSvc, c.ID, "Two")
	l1 := testutil.CreateLesson(t, stack.CatalogSvc, c.ID, ch1.ID, "a")
	l2 := testutil.CreateLesson(t, stack.CatalogSvc, c.ID, ch1.ID, "b")
	testutil.CreateLesson(t, stack.CatalogSvc, c.ID, ch1.ID, "c")
	lessons, err := stack.CatalogRepo.QueryLessons(ctx, []string{ch1.ID, ch2.ID})
	require.NoError(t, err)
	require.Len(t, lessons, 3)
	_, err = stack.CatalogSvc.SetLessonVideo(ctx, l1.ID, "asset-1", "pb-1")
	require.NoError(t, err)
	attach(t, stack, l1.ID, "a.pdf")
	attach(t, stack, l2.ID, "b.pdf")
	key := progress.Key{CourseID: c.ID, UserID: student.ID, LessonID: l2.ID}
	_, err = stack.ProgressSvc.Start(ctx, key)
	require.NoError(t, err)

	other := testutil.CreateCourse(t, stack.CatalogSvc, teacher, "Learn Rust", 10)
	och := testutil.CreateChapter(t, stack.CatalogSvc, other.ID, "One")
	ol := testutil.CreateLesson(t, stack.CatalogSvc, other.ID, och.ID, "a")
	kept := attach(t, stack, ol.ID, "kept.pdf")

	require.NoError(t, stack.CatalogSvc.DeleteCourse(ctx, c.ID))

	_, err = stack.CatalogSvc.GetCourse(ctx, c.ID)
	assert.ErrorIs(t, err, catalog.ErrCourseNotFound)
	chapters, err := stack.CatalogRepo.QueryChapters(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, chapters)
	lessons, err = stack.CatalogRepo.QueryLessons(ctx, []string{ch1.ID, ch2.ID})
	require.NoError(t, err)
	assert.Empty(t, lessons)
	_, err = stack.ProgressSvc.Get(ctx, key)
	assert.True(t, core.IsNotFound(err))

	assert.Equal(t, []string{"asset-1"}, stack.Platform.DeletedAssets())
	assert.Equal(t, []string{core.ObjectName(kept.URL)}, stack.Files.Names(core.BucketAttachments))

	t.Run("unknown course", func(t *testing.T) {
		err := stack.CatalogSvc.DeleteCourse(ctx, c.ID)
		assert.ErrorIs(t, err, catalog.ErrCourseNotFound)
	})
}

func TestService_chapters(t *testing.T) {
	stack := testutil.NewStack()
	ctx := context.Background()
	teacher := testutil.CreateUser(t, stack.UserRepo, "Teach", "teach@test.cd", user.RoleInstructor)
	c := testutil.CreateCourse(t, stack.CatalogSvc, teacher, "Learn Go", 10)

	ch0 := testutil.CreateChapter(t, stack.CatalogSvc, c.ID, "Zero")
	ch1 := testutil.CreateChapter(t, stack.CatalogSvc, c.ID, "One")
	assert.Equal(t, 0, ch0.Index)
	assert.Equal(t, 1, ch1.Index)

	taken := 1
	_, err := stack.CatalogSvc.CreateChapter(ctx, c.ID, catalog.NewChapter{Title: "Dup", Index: &taken})
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)

	chapters, err := stack.CatalogSvc.ReorderChapters(ctx, c.ID, []string{ch1.ID, ch0.ID})
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, ch1.ID, chapters[0].ID)
	assert.Equal(t, 0, chapters[0].Index)
	assert.Equal(t, 1, chapters[1].Index)

	_, err = stack.CatalogSvc.ReorderChapters(ctx, c.ID, []string{ch1.ID})
	require.ErrorAs(t, err, &vErr)

	t.Run("delete chapter keeps the others", func(t *testing.T) {
		l := testutil.CreateLesson(t, stack.CatalogSvc, c.ID, ch0.ID, "a")
		require.NoError(t, stack.CatalogSvc.DeleteChapter(ctx, c.ID, ch0.ID))

		_, err := stack.CatalogSvc.GetLesson(ctx, c.ID, ch0.ID, l.ID)
		assert.True(t, core.IsNotFound(err))
		chapters, err := stack.CatalogSvc.ListChapters(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, chapters, 1)
		assert.Equal(t, ch1.ID, chapters[0].ID)
	})
}
