package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core/catalog"
	"github.com/trezcool/skolar/core/progress"
	"github.com/trezcool/skolar/core/user"
)

type progressApi struct {
	usrSvc     *user.Service
	catalogSvc *catalog.Service
	svc        *progress.Service
	validate   *validator.Validate
}

func registerProgressAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := progressApi{
		usrSvc:     deps.UserSvc,
		catalogSvc: deps.CatalogSvc,
		svc:        deps.ProgressSvc,
		validate:   deps.Validate,
	}
	canView := courseMiddleware(api.usrSvc, api.catalogSvc, catalog.CanView)
	canEdit := courseMiddleware(api.usrSvc, api.catalogSvc, catalog.CanEdit)

	pg := g.Group("/courses/:courseId/progress", jwt)
	pg.GET("", api.queryMine, canView)
	pg.GET("/summary", api.summary, canView)
	pg.GET("/students", api.queryCourse, canEdit)

	lg := g.Group("/courses/:courseId/lessons/:lessonId/progress", jwt, canView)
	lg.GET("", api.retrieve)
	lg.POST("", api.start)
	lg.PUT("", api.updatePlayhead)
	lg.POST("/complete", api.complete)
	lg.DELETE("", api.destroy)
}

// lessonKey builds the progress key of the caller on the :lessonId lesson of the context course.
func (api *progressApi) lessonKey(ctx echo.Context) (progress.Key, error) {
	c, err := getContextCourse(ctx)
	if err != nil {
		return progress.Key{}, err
	}
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return progress.Key{}, errors.Wrap(err, "getting context user")
	}
	_, lc, err := api.catalogSvc.GetLessonCourse(ctx.Request().Context(), ctx.Param("lessonId"))
	if err != nil {
		return progress.Key{}, err
	}
	if lc.ID != c.ID {
		return progress.Key{}, catalog.ErrLessonNotFound
	}

	key := progress.Key{CourseID: c.ID, UserID: usr.ID, LessonID: ctx.Param("lessonId")}
	if err = key.Validate(api.validate); err != nil {
		return progress.Key{}, err
	}
	return key, nil
}

func (api *progressApi) queryMine(ctx echo.Context) error {
	c, err := getContextCourse(ctx)
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	rows, err := api.svc.ListForUser(ctx.Request().Context(), c.ID, usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing progress")
	}
	if rows == nil {
		rows = []progress.Progress{}
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *progressApi) queryCourse(ctx echo.Context) error {
	c, err := getContextCourse(ctx)
	if err != nil {
		return err
	}
	rows, err := api.svc.ListByCourse(ctx.Request().Context(), c.ID)
	if err != nil {
		return errors.Wrap(err, "listing course progress")
	}
	if rows == nil {
		rows = []progress.Progress{}
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *progressApi) summary(ctx echo.Context) error {
	c, err := getContextCourse(ctx)
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	s, err := api.svc.CourseSummary(ctx.Request().Context(), c.ID, usr.ID)
	if err != nil {
		return errors.Wrap(err, "summarizing progress")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *progressApi) retrieve(ctx echo.Context) error {
	key, err := api.lessonKey(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.Get(ctx.Request().Context(), key)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *progressApi) start(ctx echo.Context) error {
	key, err := api.lessonKey(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.Start(ctx.Request().Context(), key)
	if err != nil {
		return errors.Wrap(err, "starting progress")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *progressApi) updatePlayhead(ctx echo.Context) error {
	key, err := api.lessonKey(ctx)
	if err != nil {
		return err
	}

	var data progress.PlayheadUpdate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PlayheadUpdate")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.UpdatePlayhead(ctx.Request().Context(), key, data.Playhead)
	if err != nil {
		return errors.Wrap(err, "updating playhead")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *progressApi) complete(ctx echo.Context) error {
	key, err := api.lessonKey(ctx)
	if err != nil {
		return err
	}

	var data progress.PlayheadUpdate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PlayheadUpdate")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	p, completed, err := api.svc.Complete(ctx.Request().Context(), key, data.Playhead)
	if err != nil {
		return errors.Wrap(err, "completing lesson")
	}
	return ctx.JSON(http.StatusOK, CompletionResponse{Progress: p, Completed: completed})
}

func (api *progressApi) destroy(ctx echo.Context) error {
	key, err := api.lessonKey(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), key); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// CompletionResponse reports whether the request marked the lesson completed.
type CompletionResponse struct {
	Progress  progress.Progress `json:"progress"`
	Completed bool              `json:"completed"`
}
