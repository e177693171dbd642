package echoapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/catalog"
	"github.com/trezcool/skolar/core/media"
	"github.com/trezcool/skolar/core/user"
)

const muxSignatureHeader = "Mux-Signature"

type mediaApi struct {
	usrSvc   *user.Service
	svc      *media.Service
	validate *validator.Validate
}

func registerMediaAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := mediaApi{
		usrSvc:   deps.UserSvc,
		svc:      deps.MediaSvc,
		validate: deps.Validate,
	}
	instructor := instructorMiddleware(api.usrSvc)

	lg := g.Group("/lessons/:lessonId", jwt)
	lg.GET("/attachments", api.queryAttachments)
	lg.POST("/attachments", api.uploadAttachment)
	lg.PUT("/video", api.attachLessonVideo)

	ag := g.Group("/attachments/:id", jwt)
	ag.GET("", api.retrieveAttachment)
	ag.PUT("", api.renameAttachment)
	ag.DELETE("", api.destroyAttachment)

	vg := g.Group("/videos", jwt, instructor)
	vg.GET("", api.queryVideos)
	vg.POST("", api.uploadVideo)
	vg.GET("/:id", api.retrieveVideo)
	vg.PUT("/:id", api.updateVideo)
	vg.DELETE("/:id", api.destroyVideo)

	mg := g.Group("/mux", jwt, instructor)
	mg.POST("/uploads", api.createDirectUpload)
	mg.GET("/uploads/:uploadId/asset", api.uploadAsset)
	mg.DELETE("/assets/:assetId", api.deleteAsset)

	g.POST("/webhooks/mux", api.muxWebhook, rateLimitMiddleware(deps.Limiter, "mux-webhook", deps.Logger))
}

// lessonCourse returns the course of a lesson when the caller passes allowed on it.
func (api *mediaApi) lessonCourse(ctx echo.Context, lessonID string, allowed func(user.User, catalog.Course) bool) (catalog.Course, error) {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return catalog.Course{}, errors.Wrap(err, "getting context user")
	}
	_, c, err := api.svc.GetLessonCourse(ctx.Request().Context(), lessonID)
	if err != nil {
		return catalog.Course{}, err
	}
	if !allowed(usr, c) {
		return catalog.Course{}, errHttpForbidden
	}
	return c, nil
}

// attachment loads the :id attachment when the caller passes allowed on its course.
func (api *mediaApi) attachment(ctx echo.Context, allowed func(user.User, catalog.Course) bool) (media.Attachment, error) {
	a, err := api.svc.GetAttachment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return media.Attachment{}, err
	}
	if _, err = api.lessonCourse(ctx, a.LessonID, allowed); err != nil {
		return media.Attachment{}, err
	}
	return a, nil
}

// video loads the :id video when it belongs to the caller (or the caller is an admin).
func (api *mediaApi) video(ctx echo.Context) (media.Video, error) {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return media.Video{}, errors.Wrap(err, "getting context user")
	}
	v, err := api.svc.GetVideo(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return media.Video{}, err
	}
	if v.UserID != usr.ID && !usr.IsAdmin() {
		return media.Video{}, media.ErrVideoNotFound
	}
	return v, nil
}

// Attachments

func (api *mediaApi) queryAttachments(ctx echo.Context) error {
	lessonID := ctx.Param("lessonId")
	if _, err := api.lessonCourse(ctx, lessonID, catalog.CanView); err != nil {
		return err
	}
	items, err := api.svc.ListAttachments(ctx.Request().Context(), lessonID)
	if err != nil {
		return errors.Wrap(err, "listing attachments")
	}
	if items == nil {
		items = []media.Attachment{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *mediaApi) uploadAttachment(ctx echo.Context) error {
	lessonID := ctx.Param("lessonId")
	if _, err := api.lessonCourse(ctx, lessonID, catalog.CanEdit); err != nil {
		return err
	}

	var data media.NewAttachment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAttachment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	file, closeFile, err := bindFile(ctx, "file")
	if err != nil {
		return err
	}
	defer closeFile()

	a, err := api.svc.UploadAttachment(ctx.Request().Context(), lessonID, data, file)
	if err != nil {
		return errors.Wrap(err, "uploading attachment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *mediaApi) retrieveAttachment(ctx echo.Context) error {
	a, err := api.attachment(ctx, catalog.CanView)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *mediaApi) renameAttachment(ctx echo.Context) error {
	a, err := api.attachment(ctx, catalog.CanEdit)
	if err != nil {
		return err
	}

	var data media.UpdateAttachment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAttachment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	a, err = api.svc.RenameAttachment(ctx.Request().Context(), a.ID, data)
	if err != nil {
		return errors.Wrap(err, "renaming attachment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *mediaApi) destroyAttachment(ctx echo.Context) error {
	a, err := api.attachment(ctx, catalog.CanEdit)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteAttachment(ctx.Request().Context(), a.ID); err != nil {
		return errors.Wrap(err, "deleting attachment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Videos

func (api *mediaApi) queryVideos(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	userID := usr.ID
	if usr.IsAdmin() && ctx.QueryParam("all") == "true" {
		userID = ""
	}
	videos, err := api.svc.ListVideos(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "listing videos")
	}
	if videos == nil {
		videos = []media.Video{}
	}
	return ctx.JSON(http.StatusOK, videos)
}

func (api *mediaApi) uploadVideo(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data media.NewVideo
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewVideo")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if data.LessonID != "" {
		if _, err = api.lessonCourse(ctx, data.LessonID, catalog.CanEdit); err != nil {
			return err
		}
	}
	file, closeFile, err := bindFile(ctx, "video")
	if err != nil {
		return err
	}
	defer closeFile()

	v, err := api.svc.UploadVideo(ctx.Request().Context(), usr.ID, data, file)
	if err != nil {
		return errors.Wrap(err, "uploading video")
	}
	return ctx.JSON(http.StatusCreated, v)
}

func (api *mediaApi) retrieveVideo(ctx echo.Context) error {
	v, err := api.video(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, v)
}

func (api *mediaApi) updateVideo(ctx echo.Context) error {
	v, err := api.video(ctx)
	if err != nil {
		return err
	}

	var data media.UpdateVideo
	if err = bindUpdateVideo(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to UpdateVideo")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	v, err = api.svc.UpdateVideo(ctx.Request().Context(), v.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating video")
	}
	return ctx.JSON(http.StatusOK, v)
}

func (api *mediaApi) destroyVideo(ctx echo.Context) error {
	v, err := api.video(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteVideo(ctx.Request().Context(), v.ID); err != nil {
		return errors.Wrap(err, "deleting video")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Video deleted successfully"})
}

// Video platform

func (api *mediaApi) createDirectUpload(ctx echo.Context) error {
	up, err := api.svc.CreateDirectUpload(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, up)
}

func (api *mediaApi) uploadAsset(ctx echo.Context) error {
	ref, err := api.svc.UploadAsset(ctx.Request().Context(), ctx.Param("uploadId"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ref)
}

func (api *mediaApi) deleteAsset(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.DeleteAsset(ctx.Request().Context(), usr, ctx.Param("assetId")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Upload canceled"})
}

func (api *mediaApi) attachLessonVideo(ctx echo.Context) error {
	lessonID := ctx.Param("lessonId")
	if _, err := api.lessonCourse(ctx, lessonID, catalog.CanEdit); err != nil {
		return err
	}

	var data LessonVideoRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LessonVideoRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	l, err := api.svc.AttachLessonVideo(ctx.Request().Context(), lessonID, data.UploadID)
	if err != nil {
		return errors.Wrap(err, "attaching lesson video")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *mediaApi) muxWebhook(ctx echo.Context) error {
	payload, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Wrap(err, "reading webhook payload")
	}
	evt, err := api.svc.HandleWebhook(ctx.Request().Context(), payload, ctx.Request().Header.Get(muxSignatureHeader))
	if err != nil {
		return errors.Wrap(err, "handling mux webhook")
	}
	return ctx.JSON(http.StatusOK, WebhookResponse{Received: true, Type: evt.Type})
}

// bindUpdateVideo accepts a JSON body or form fields; absent fields stay nil.
func bindUpdateVideo(ctx echo.Context, data *media.UpdateVideo) error {
	if strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return ctx.Bind(data)
	}
	form, err := ctx.FormParams()
	if err != nil {
		return err
	}
	if _, ok := form["title"]; ok {
		title := form.Get("title")
		data.Title = &title
	}
	if _, ok := form["description"]; ok {
		desc := form.Get("description")
		data.Description = &desc
	}
	return nil
}

type LessonVideoRequest struct {
	UploadID string `json:"upload_id" validate:"required,notblank"`
}

func (lr *LessonVideoRequest) Validate(validate *validator.Validate) error {
	lr.UploadID = core.CleanString(lr.UploadID)
	return validate.Struct(lr)
}
