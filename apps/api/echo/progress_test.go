package echoapi

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/skolar/core/progress"
	"github.com/trezcool/skolar/core/user"
	"github.com/trezcool/skolar/tests"
)

func Test_progressApi(t *testing.T) {
	stack.Reset()
	teacher := testutil.CreateUser(t, stack.UserRepo, "Teach", "teach@test.cd", user.RoleInstructor)
	student := testutil.CreateUser(t, stack.UserRepo, "Ann", "ann@test.cd", user.RoleStudent)
	outsider := testutil.CreateUser(t, stack.UserRepo, "Bob", "bob@test.cd", user.RoleStudent)

	c := testutil.CreateCourse(t, stack.CatalogSvc, teacher, "Learn Go", 100)
	ch := testutil.CreateChapter(t, stack.CatalogSvc, c.ID, "Basics")
	l1 := testutil.CreateLesson(t, stack.CatalogSvc, c.ID, ch.ID, "Hello")
	testutil.CreateLesson(t, stack.CatalogSvc, c.ID, ch.ID, "World")
	testutil.Enroll(t, stack.CatalogSvc, c.ID, student.ID)

	other := testutil.CreateCourse(t, stack.CatalogSvc, teacher, "Learn Rust", 100)
	otherCh := testutil.CreateChapter(t, stack.CatalogSvc, other.ID, "Basics")
	foreign := testutil.CreateLesson(t, stack.CatalogSvc, other.ID, otherCh.ID, "Ownership")

	token := getToken(t, student)
	lessonPath := "/v1/courses/" + c.ID + "/lessons/" + l1.ID + "/progress"

	send := func(t *testing.T, method, path, token, body string) *httpRecorder {
		var data []byte
		if body != "" {
			data = []byte(body)
		}
		req, rec := newAuthRequest(method, path, token, data)
		return serve(req, rec)
	}
	decode := func(t *testing.T, rec *httpRecorder) progress.Progress {
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var p progress.Progress
		unmarshall(t, rec, &p)
		return p
	}

	t.Run("outsider", func(t *testing.T) {
		rec := send(t, http.MethodPost, lessonPath, getToken(t, outsider), "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("lesson of another course", func(t *testing.T) {
		rec := send(t, http.MethodPost, "/v1/courses/"+c.ID+"/lessons/"+foreign.ID+"/progress", token, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown lesson", func(t *testing.T) {
		rec := send(t, http.MethodPost, "/v1/courses/"+c.ID+"/lessons/"+uuid.New().String()+"/progress", token, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("not started", func(t *testing.T) {
		rec := send(t, http.MethodGet, lessonPath, token, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	var started progress.Progress
	t.Run("start", func(t *testing.T) {
		started = decode(t, send(t, http.MethodPost, lessonPath, token, ""))
		assert.Equal(t, student.ID, started.UserID)
		assert.Equal(t, l1.ID, started.LessonID)
		assert.Zero(t, started.Playhead)
		assert.False(t, started.Completed)

		again := decode(t, send(t, http.MethodPost, lessonPath, token, ""))
		assert.Equal(t, started.ID, again.ID)
	})

	t.Run("playhead never moves back", func(t *testing.T) {
		p := decode(t, send(t, http.MethodPut, lessonPath, token, `{"playhead": 30.5}`))
		assert.Equal(t, 30.5, p.Playhead)

		p = decode(t, send(t, http.MethodPut, lessonPath, token, `{"playhead": 10}`))
		assert.Equal(t, 30.5, p.Playhead)

		rec := send(t, http.MethodPut, lessonPath, token, `{"playhead": -1}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("completion happens once", func(t *testing.T) {
		rec := send(t, http.MethodPost, lessonPath+"/complete", token, `{"playhead": 60}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var first CompletionResponse
		unmarshall(t, rec, &first)
		assert.True(t, first.Completed)
		assert.True(t, first.Progress.Completed)
		require.NotNil(t, first.Progress.CompletedAt)
		assert.Equal(t, 60.0, first.Progress.Playhead)

		rec = send(t, http.MethodPost, lessonPath+"/complete", token, `{"playhead": 61}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var second CompletionResponse
		unmarshall(t, rec, &second)
		assert.False(t, second.Completed)
		require.NotNil(t, second.Progress.CompletedAt)
		assert.True(t, first.Progress.CompletedAt.Equal(*second.Progress.CompletedAt))
	})

	t.Run("summary", func(t *testing.T) {
		rec := send(t, http.MethodGet, "/v1/courses/"+c.ID+"/progress/summary", token, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var s progress.Summary
		unmarshall(t, rec, &s)
		assert.Equal(t, 1, s.Completed)
		assert.Equal(t, 2, s.Total)
		assert.Equal(t, 0.5, s.Ratio)
	})

	t.Run("course rows are for editors", func(t *testing.T) {
		rec := send(t, http.MethodGet, "/v1/courses/"+c.ID+"/progress/students", token, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = send(t, http.MethodGet, "/v1/courses/"+c.ID+"/progress/students", getToken(t, teacher), "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var rows []progress.Progress
		unmarshall(t, rec, &rows)
		require.Len(t, rows, 1)
		assert.Equal(t, started.ID, rows[0].ID)
	})

	t.Run("delete", func(t *testing.T) {
		rec := send(t, http.MethodDelete, lessonPath, token, "")
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = send(t, http.MethodDelete, lessonPath, token, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = send(t, http.MethodGet, "/v1/courses/"+c.ID+"/progress", token, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})
}
