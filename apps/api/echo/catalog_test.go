package echoapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/skolar/core/catalog"
	"github.com/trezcool/skolar/core/user"
	"github.com/trezcool/skolar/tests"
)

func Test_catalogApi_create(t *testing.T) {
	stack.Reset()
	student := testutil.CreateUser(t, stack.UserRepo, "Ann", "ann@test.cd", user.RoleStudent)
	teacher := testutil.CreateUser(t, stack.UserRepo, "Teach", "teach@test.cd", user.RoleInstructor)

	runHTTPTests(t, []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/v1/courses", body: []byte(`{}`), wantCode: http.StatusUnauthorized, wantData: marshallObj(t, missingTokenErr)},
		{
			name: "instructor required", method: http.MethodPost, path: "/v1/courses", body: []byte(`{"title": "Go"}`),
			token: getToken(t, student), wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "instructor role required"}),
		},
		{
			name: "title required", method: http.MethodPost, path: "/v1/courses", body: []byte(`{"price": 10}`),
			token: getToken(t, teacher), wantCode: http.StatusBadRequest, wantData: []byte(`{"title": "this field is required"}`),
		},
	})

	t.Run("created", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses", getToken(t, teacher),
			[]byte(`{"title": " Go 101 ", "price": 990, "level": "Advanced", "tags": ["go"]}`))
		serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var c catalog.Course
		unmarshall(t, rec, &c)
		assert.Equal(t, "Go 101", c.Title)
		assert.Equal(t, catalog.LevelAdvanced, c.Level)
		assert.Equal(t, catalog.SubjectOther, c.Subject)
		assert.Equal(t, []string{teacher.ID}, c.InstructorID)
		assert.Equal(t, []string{"Teach"}, c.Instructor)
		assert.Equal(t, 990.0, c.Price)
	})
}

func Test_catalogApi_query(t *testing.T) {
	stack.Reset()
	teacher := testutil.CreateUser(t, stack.UserRepo, "Teach", "teach@test.cd", user.RoleInstructor)
	other := testutil.CreateUser(t, stack.UserRepo, "Other", "other@test.cd", user.RoleInstructor)
	goCourse := testutil.CreateCourse(t, stack.CatalogSvc, teacher, "Learn Go", 100)
	rustCourse := testutil.CreateCourse(t, stack.CatalogSvc, other, "Learn Rust", 50)

	runHTTPTests(t, []httpTest{
		{name: "public", path: "/v1/courses?ordering=price", wantCode: http.StatusOK, wantData: marshallObj(t, []catalog.Course{rustCourse, goCourse})},
		{name: "search", path: "/v1/courses?search=go", wantCode: http.StatusOK, wantData: marshallObj(t, []catalog.Course{goCourse})},
		{name: "by instructor", path: "/v1/courses?instructor_id=" + other.ID, wantCode: http.StatusOK, wantData: marshallObj(t, []catalog.Course{rustCourse})},
		{name: "retrieve", path: "/v1/courses/" + goCourse.ID, wantCode: http.StatusOK, wantData: marshallObj(t, goCourse)},
		{
			name: "not found", path: "/v1/courses/" + uuid.New().String(), wantCode: http.StatusNotFound,
			wantData: marshallObj(t, httpErr{Error: "course not found"}),
		},
	})
}

func Test_catalogApi_permissions(t *testing.T) {
	stack.Reset()
	teacher := testutil.CreateUser(t, stack.UserRepo, "Teach", "teach@test.cd", user.RoleInstructor)
	other := testutil.CreateUser(t, stack.UserRepo, "Other", "other@test.cd", user.RoleInstructor)
	admin := testutil.CreateUser(t, stack.UserRepo, "Admin", "admin@test.cd", user.RoleAdmin)
	student := testutil.CreateUser(t, stack.UserRepo, "Ann", "ann@test.cd", user.RoleStudent)
	outsider := testutil.CreateUser(t, stack.UserRepo, "Bob", "bob@test.cd", user.RoleStudent)

	c := testutil.CreateCourse(t, stack.CatalogSvc, teacher, "Learn Go", 100)
	ch := testutil.CreateChapter(t, stack.CatalogSvc, c.ID, "Basics")
	l := testutil.CreateLesson(t, stack.CatalogSvc, c.ID, ch.ID, "Hello")
	testutil.Enroll(t, stack.CatalogSvc, c.ID, student.ID)

	coursePath := "/v1/courses/" + c.ID
	lessons := marshallObj(t, []catalog.Lesson{l})

	runHTTPTests(t, []httpTest{
		{name: "chapters are public", path: coursePath + "/chapters", wantCode: http.StatusOK, wantData: marshallObj(t, []catalog.Chapter{ch})},
		{name: "lessons need auth", path: coursePath + "/lessons", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, missingTokenErr)},
		{name: "outsider cannot view", path: coursePath + "/lessons", token: getToken(t, outsider), wantCode: http.StatusForbidden, wantData: marshallObj(t, forbiddenErr)},
		{name: "student views", path: coursePath + "/lessons", token: getToken(t, student), wantCode: http.StatusOK, wantData: lessons},
		{name: "instructor views", path: coursePath + "/lessons", token: getToken(t, teacher), wantCode: http.StatusOK, wantData: lessons},
		{name: "admin views", path: coursePath + "/lessons", token: getToken(t, admin), wantCode: http.StatusOK, wantData: lessons},
		{
			name: "student cannot edit", method: http.MethodPut, path: coursePath, body: []byte(`{"title": "Mine"}`),
			token: getToken(t, student), wantCode: http.StatusForbidden, wantData: marshallObj(t, forbiddenErr),
		},
		{
			name: "other instructor cannot edit", method: http.MethodPut, path: coursePath, body: []byte(`{"title": "Mine"}`),
			token: getToken(t, other), wantCode: http.StatusForbidden, wantData: marshallObj(t, forbiddenErr),
		},
		{
			name: "unknown course", method: http.MethodPut, path: "/v1/courses/" + uuid.New().String(), body: []byte(`{"title": "Mine"}`),
			token: getToken(t, teacher), wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "course not found"}),
		},
	})

	t.Run("instructor edits", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, coursePath, getToken(t, teacher), []byte(`{"title": "Go, the language", "price": 120}`))
		serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got catalog.Course
		unmarshall(t, rec, &got)
		assert.Equal(t, "Go, the language", got.Title)
		assert.Equal(t, 120.0, got.Price)
		assert.Equal(t, c.Description, got.Description)
	})
}

func Test_catalogApi_chaptersAndLessons(t *testing.T) {
	stack.Reset()
	teacher := testutil.CreateUser(t, stack.UserRepo, "Teach", "teach@test.cd", user.RoleInstructor)
	c := testutil.CreateCourse(t, stack.CatalogSvc, teacher, "Learn Go", 100)
	token := getToken(t, teacher)
	coursePath := "/v1/courses/" + c.ID

	createChapter := func(t *testing.T, body string) (catalog.Chapter, int) {
		req, rec := newAuthRequest(http.MethodPost, coursePath+"/chapters", token, []byte(body))
		serve(req, rec)
		var ch catalog.Chapter
		if rec.Code == http.StatusCreated {
			unmarshall(t, rec, &ch)
		}
		return ch, rec.Code
	}

	ch1, code := createChapter(t, `{"title": "One"}`)
	require.Equal(t, http.StatusCreated, code)
	ch2, code := createChapter(t, `{"title": "Two"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, ch1.Index+1, ch2.Index)

	_, code = createChapter(t, `{"title": "Dup", "index": 0}`)
	assert.Equal(t, http.StatusBadRequest, code, "index already taken")

	t.Run("reorder chapters", func(t *testing.T) {
		body := marshallObj(t, catalog.Reorder{IDs: []string{ch2.ID, ch1.ID}})
		req, rec := newAuthRequest(http.MethodPut, coursePath+"/chapters/reorder", token, body)
		serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var chapters []catalog.Chapter
		unmarshall(t, rec, &chapters)
		require.Len(t, chapters, 2)
		assert.Equal(t, ch2.ID, chapters[0].ID)
		assert.Equal(t, ch1.ID, chapters[1].ID)
	})

	t.Run("reorder needs every id", func(t *testing.T) {
		body := marshallObj(t, catalog.Reorder{IDs: []string{ch1.ID}})
		req, rec := newAuthRequest(http.MethodPut, coursePath+"/chapters/reorder", token, body)
		serve(req, rec)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("lessons", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, coursePath+"/chapters/"+ch1.ID+"/lessons", token, []byte(`{"title": "Hello"}`))
		serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var l catalog.Lesson
		unmarshall(t, rec, &l)
		assert.Equal(t, ch1.ID, l.ChapterID)

		req, rec = newAuthRequest(http.MethodGet, coursePath+"/chapters/"+ch1.ID+"/lessons/"+l.ID, token)
		serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		req, rec = newAuthRequest(http.MethodGet, coursePath+"/chapters/"+ch2.ID+"/lessons/"+l.ID, token)
		serve(req, rec)
		assert.Equal(t, http.StatusNotFound, rec.Code, "lesson of another chapter")

		req, rec = newAuthRequest(http.MethodDelete, coursePath+"/chapters/"+ch1.ID+"/lessons/"+l.ID, token)
		serve(req, rec)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func Test_catalogApi_destroy(t *testing.T) {
	stack.Reset()
	teacher := testutil.CreateUser(t, stack.UserRepo, "Teach", "teach@test.cd", user.RoleInstructor)
	c := testutil.CreateCourse(t, stack.CatalogSvc, teacher, "Learn Go", 100)
	ch1 := testutil.CreateChapter(t, stack.CatalogSvc, c.ID, "One")
	testutil.CreateChapter(t, stack.CatalogSvc, c.ID, "Two")
	for _, title := range []string{"a", "b", "c"} {
		testutil.CreateLesson(t, stack.CatalogSvc, c.ID, ch1.ID, title)
	}

	req, rec := newAuthRequest(http.MethodDelete, "/v1/courses/"+c.ID, getToken(t, teacher))
	serve(req, rec)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	_, err := stack.CatalogSvc.GetCourse(context.Background(), c.ID)
	assert.ErrorIs(t, err, catalog.ErrCourseNotFound)
	lessons, err := stack.CatalogRepo.QueryLessons(context.Background(), []string{ch1.ID})
	require.NoError(t, err)
	assert.Empty(t, lessons)
}

func Test_catalogApi_students(t *testing.T) {
	stack.Reset()
	teacher := testutil.CreateUser(t, stack.UserRepo, "Teach", "teach@test.cd", user.RoleInstructor)
	student := testutil.CreateUser(t, stack.UserRepo, "Ann", "ann@test.cd", user.RoleStudent)
	c := testutil.CreateCourse(t, stack.CatalogSvc, teacher, "Learn Go", 100)
	token := getToken(t, teacher)
	path := "/v1/courses/" + c.ID + "/students"
	added := catalog.EnrollmentResult{Status: catalog.StatusSuccess, Text: "Student added to course successfully"}
	already := catalog.EnrollmentResult{Status: catalog.StatusFailed, Text: "Student already in course, no need to update"}
	body := marshallObj(t, StudentRequest{UserID: student.ID})

	runHTTPTests(t, []httpTest{
		{name: "add", method: http.MethodPost, path: path, body: body, token: token, wantCode: http.StatusOK, wantData: marshallObj(t, added)},
		{name: "add again", method: http.MethodPost, path: path, body: body, token: token, wantCode: http.StatusOK, wantData: marshallObj(t, already)},
		{
			name: "unknown user", method: http.MethodPost, path: path, body: marshallObj(t, StudentRequest{UserID: uuid.New().String()}),
			token: token, wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "user not found"}),
		},
		{name: "list", path: path, token: token, wantCode: http.StatusOK, wantData: marshallObj(t, []user.User{student})},
		{
			name: "remove", method: http.MethodDelete, path: path + "/" + student.ID, token: token, wantCode: http.StatusOK,
			wantData: marshallObj(t, catalog.EnrollmentResult{Status: catalog.StatusSuccess, Text: "Student removed from course successfully"}),
		},
	})
}
