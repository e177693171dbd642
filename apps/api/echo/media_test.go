package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/catalog"
	"github.com/trezcool/skolar/core/media"
	"github.com/trezcool/skolar/core/user"
	"github.com/trezcool/skolar/tests"
)

func Test_mediaApi_attachments(t *testing.T) {
	stack.Reset()
	teacher := testutil.CreateUser(t, stack.UserRepo, "Teach", "teach@test.cd", user.RoleInstructor)
	student := testutil.CreateUser(t, stack.UserRepo, "Ann", "ann@test.cd", user.RoleStudent)
	outsider := testutil.CreateUser(t, stack.UserRepo, "Bob", "bob@test.cd", user.RoleStudent)

	c := testutil.CreateCourse(t, stack.CatalogSvc, teacher, "Learn Go", 100)
	ch := testutil.CreateChapter(t, stack.CatalogSvc, c.ID, "Basics")
	l := testutil.CreateLesson(t, stack.CatalogSvc, c.ID, ch.ID, "Hello")
	testutil.Enroll(t, stack.CatalogSvc, c.ID, student.ID)

	teacherToken := getToken(t, teacher)
	studentToken := getToken(t, student)
	path := "/v1/lessons/" + l.ID + "/attachments"

	t.Run("students cannot upload", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, path, studentToken, map[string]string{"title": "Slides"}, "file", "slides.pdf", []byte("pdf"))
		serve(req, rec)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("no file", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, path, teacherToken, map[string]string{"title": "Slides"}, "", "", nil)
		serve(req, rec)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		ok, err := jsonBytesEqual(rec.Body.Bytes(), []byte(`{"file": "no file provided"}`))
		require.NoError(t, err)
		assert.True(t, ok, rec.Body.String())
	})

	t.Run("title required", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, path, teacherToken, nil, "file", "slides.pdf", []byte("pdf"))
		serve(req, rec)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		ok, err := jsonBytesEqual(rec.Body.Bytes(), []byte(`{"title": "this field is required"}`))
		require.NoError(t, err)
		assert.True(t, ok, rec.Body.String())
	})

	var att media.Attachment
	t.Run("upload", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, path, teacherToken, map[string]string{"title": " Slides "}, "file", "week 1.pdf", []byte("pdf"))
		serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshall(t, rec, &att)
		assert.Equal(t, "Slides", att.Title)
		assert.Equal(t, l.ID, att.LessonID)

		names := stack.Files.Names(core.BucketAttachments)
		require.Len(t, names, 1)
		assert.Contains(t, names[0], "week_1.pdf")
		assert.Equal(t, names[0], core.ObjectName(att.URL))
	})

	t.Run("list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path, studentToken)
		serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var items []media.Attachment
		unmarshall(t, rec, &items)
		require.Len(t, items, 1)
		assert.Equal(t, att.ID, items[0].ID)

		req, rec = newAuthRequest(http.MethodGet, path, getToken(t, outsider))
		serve(req, rec)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("rename", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/attachments/"+att.ID, studentToken, []byte(`{"title": "Mine"}`))
		serve(req, rec)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		req, rec = newAuthRequest(http.MethodPut, "/v1/attachments/"+att.ID, teacherToken, []byte(`{"title": "Week 1 slides"}`))
		serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got media.Attachment
		unmarshall(t, rec, &got)
		assert.Equal(t, "Week 1 slides", got.Title)
		assert.Equal(t, att.URL, got.URL)
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/attachments/"+att.ID, teacherToken)
		serve(req, rec)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, stack.Files.Names(core.BucketAttachments))

		req, rec = newAuthRequest(http.MethodGet, "/v1/attachments/"+att.ID, teacherToken)
		serve(req, rec)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_mediaApi_videos(t *testing.T) {
	stack.Reset()
	teacher := testutil.CreateUser(t, stack.UserRepo, "Teach", "teach@test.cd", user.RoleInstructor)
	other := testutil.CreateUser(t, stack.UserRepo, "Other", "other@test.cd", user.RoleInstructor)
	student := testutil.CreateUser(t, stack.UserRepo, "Ann", "ann@test.cd", user.RoleStudent)
	teacherToken := getToken(t, teacher)

	t.Run("instructors only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/videos", getToken(t, student))
		serve(req, rec)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	var v media.Video
	t.Run("upload", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/v1/videos", teacherToken, map[string]string{"description": "first take"}, "video", "intro.mp4", []byte("mp4"))
		serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshall(t, rec, &v)
		assert.Equal(t, "intro.mp4", v.Title)
		assert.Equal(t, "first take", v.Description)
		assert.Equal(t, teacher.ID, v.UserID)
		assert.Equal(t, media.VideoStatusUploaded, v.Status)
		assert.Len(t, stack.Files.Names(core.BucketVideos), 1)
	})

	t.Run("list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/videos", teacherToken)
		serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var items []media.Video
		unmarshall(t, rec, &items)
		require.Len(t, items, 1)
		assert.Equal(t, v.ID, items[0].ID)

		req, rec = newAuthRequest(http.MethodGet, "/v1/videos", getToken(t, other))
		serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("other instructors cannot see it", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/videos/"+v.ID, getToken(t, other))
		serve(req, rec)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("update", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/videos/"+v.ID, teacherToken, []byte(`{"title": "Intro"}`))
		serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got media.Video
		unmarshall(t, rec, &got)
		assert.Equal(t, "Intro", got.Title)
		assert.Equal(t, "first take", got.Description)

		req, rec = newAuthRequest(http.MethodPut, "/v1/videos/"+v.ID, teacherToken, []byte(`{"title": " "}`))
		serve(req, rec)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/videos/"+v.ID, teacherToken)
		serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		ok, err := jsonBytesEqual(rec.Body.Bytes(), marshallObj(t, MessageResponse{Message: "Video deleted successfully"}))
		require.NoError(t, err)
		assert.True(t, ok, rec.Body.String())
		assert.Empty(t, stack.Files.Names(core.BucketVideos))

		req, rec = newAuthRequest(http.MethodGet, "/v1/videos/"+v.ID, teacherToken)
		serve(req, rec)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_mediaApi_hosting(t *testing.T) {
	stack.Reset()
	teacher := testutil.CreateUser(t, stack.UserRepo, "Teach", "teach@test.cd", user.RoleInstructor)
	teacherToken := getToken(t, teacher)

	c := testutil.CreateCourse(t, stack.CatalogSvc, teacher, "Learn Go", 100)
	ch := testutil.CreateChapter(t, stack.CatalogSvc, c.ID, "Basics")
	l := testutil.CreateLesson(t, stack.CatalogSvc, c.ID, ch.ID, "Hello")

	var up media.Upload
	t.Run("direct upload", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/mux/uploads", teacherToken)
		serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshall(t, rec, &up)
		assert.NotEmpty(t, up.ID)
		assert.NotEmpty(t, up.URL)
	})

	t.Run("asset not ready", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/mux/uploads/"+up.ID+"/asset", teacherToken)
		serve(req, rec)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		ok, err := jsonBytesEqual(rec.Body.Bytes(), marshallObj(t, httpErr{Error: "asset not ready"}))
		require.NoError(t, err)
		assert.True(t, ok, rec.Body.String())
	})

	var asset media.Asset
	t.Run("asset created", func(t *testing.T) {
		var ok bool
		asset, ok = stack.Platform.CompleteUpload(up.ID, "preparing")
		require.True(t, ok)

		req, rec := newAuthRequest(http.MethodGet, "/v1/mux/uploads/"+up.ID+"/asset", teacherToken)
		serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		ok, err := jsonBytesEqual(rec.Body.Bytes(), marshallObj(t, media.AssetRef{AssetID: asset.ID, PlaybackID: asset.PlaybackID}))
		require.NoError(t, err)
		assert.True(t, ok, rec.Body.String())
	})

	t.Run("attach to lesson", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/lessons/"+l.ID+"/video", teacherToken, []byte(`{"upload_id": "`+up.ID+`"}`))
		serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got catalog.Lesson
		unmarshall(t, rec, &got)
		assert.Equal(t, asset.ID, got.AssetID)
		assert.Equal(t, asset.PlaybackID, got.PlaybackID)
	})

	t.Run("attach waits until timeout", func(t *testing.T) {
		pending, err := stack.Platform.CreateDirectUpload(context.Background(), "")
		require.NoError(t, err)
		req, rec := newAuthRequest(http.MethodPut, "/v1/lessons/"+l.ID+"/video", teacherToken, []byte(`{"upload_id": "`+pending.ID+`"}`))
		serve(req, rec)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("delete asset of another instructor's lesson", func(t *testing.T) {
		other := testutil.CreateUser(t, stack.UserRepo, "Other", "other@test.cd", user.RoleInstructor)
		req, rec := newAuthRequest(http.MethodDelete, "/v1/mux/assets/"+asset.ID, getToken(t, other))
		serve(req, rec)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		ok, err := jsonBytesEqual(rec.Body.Bytes(), marshallObj(t, httpErr{Error: core.ErrPermissionDenied.Error()}))
		require.NoError(t, err)
		assert.True(t, ok, rec.Body.String())
		assert.NotContains(t, stack.Platform.DeletedAssets(), asset.ID)
	})

	t.Run("delete asset", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/mux/assets/"+asset.ID, teacherToken)
		serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		ok, err := jsonBytesEqual(rec.Body.Bytes(), marshallObj(t, MessageResponse{Message: "Upload canceled"}))
		require.NoError(t, err)
		assert.True(t, ok, rec.Body.String())
		assert.Contains(t, stack.Platform.DeletedAssets(), asset.ID)

		got, err := stack.CatalogRepo.GetLesson(context.Background(), l.ID)
		require.NoError(t, err)
		assert.Empty(t, got.AssetID)
		assert.Empty(t, got.PlaybackID)
	})
}

func Test_mediaApi_muxWebhook(t *testing.T) {
	stack.Reset()
	teacher := testutil.CreateUser(t, stack.UserRepo, "Teach", "teach@test.cd", user.RoleInstructor)
	teacherToken := getToken(t, teacher)

	c := testutil.CreateCourse(t, stack.CatalogSvc, teacher, "Learn Go", 100)
	ch := testutil.CreateChapter(t, stack.CatalogSvc, c.ID, "Basics")
	l := testutil.CreateLesson(t, stack.CatalogSvc, c.ID, ch.ID, "Hello")
	_, err := stack.CatalogSvc.SetLessonVideo(context.Background(), l.ID, "asset-hook", "")
	require.NoError(t, err)

	req, rec := newMultipartRequest(t, http.MethodPost, "/v1/videos", teacherToken, map[string]string{"mux_asset_id": "asset-hook"}, "video", "intro.mp4", []byte("mp4"))
	serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var v media.Video
	unmarshall(t, rec, &v)

	payload := []byte(`{"type": "video.asset.ready", "data": {"id": "asset-hook", "status": "ready", "playback_ids": [{"id": "signed-pb", "policy": "signed"}, {"id": "public-pb", "policy": "public"}]}}`)
	post := func(payload []byte, signature string) *httpRecorder {
		req, rec := newRequest(http.MethodPost, "/v1/webhooks/mux", payload)
		req.Header.Set(muxSignatureHeader, signature)
		return serve(req, rec)
	}

	t.Run("bad signature", func(t *testing.T) {
		rec := post(payload, media.SignWebhook(payload, "wrong-secret", time.Now()))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = post(payload, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("stale signature", func(t *testing.T) {
		rec := post(payload, media.SignWebhook(payload, testutil.WebhookSecret, time.Now().Add(-time.Hour)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("ignored event", func(t *testing.T) {
		other := []byte(`{"type": "video.upload.created", "data": {"id": "upload-x"}}`)
		rec := post(other, media.SignWebhook(other, testutil.WebhookSecret, time.Now()))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"received": true, "type": "video.upload.created"}`, rec.Body.String())
	})

	t.Run("asset ready", func(t *testing.T) {
		rec := post(payload, media.SignWebhook(payload, testutil.WebhookSecret, time.Now()))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, fmt.Sprintf(`{"received": true, "type": %q}`, media.EventAssetReady), rec.Body.String())

		got, err := stack.MediaSvc.GetVideo(context.Background(), v.ID)
		require.NoError(t, err)
		assert.Equal(t, media.VideoStatusReady, got.Status)

		lesson, err := stack.CatalogSvc.GetLesson(context.Background(), c.ID, ch.ID, l.ID)
		require.NoError(t, err)
		assert.Equal(t, "public-pb", lesson.PlaybackID)
	})
}
