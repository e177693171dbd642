package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/catalog"
	"github.com/trezcool/skolar/core/user"
)

type catalogApi struct {
	usrSvc   *user.Service
	svc      *catalog.Service
	validate *validator.Validate
}

func registerCatalogAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := catalogApi{
		usrSvc:   deps.UserSvc,
		svc:      deps.CatalogSvc,
		validate: deps.Validate,
	}
	canEdit := courseMiddleware(api.usrSvc, api.svc, catalog.CanEdit)
	canView := courseMiddleware(api.usrSvc, api.svc, catalog.CanView)

	cg := g.Group("/courses")

	// public endpoints
	cg.GET("", api.query)
	cg.GET("/:courseId", api.retrieve)
	cg.GET("/:courseId/chapters", api.queryChapters)
	cg.GET("/:courseId/chapters/:chapterId", api.retrieveChapter)

	// authed endpoints
	cg.POST("", api.create, jwt, instructorMiddleware(api.usrSvc))

	dg := cg.Group("/:courseId", jwt)
	dg.PUT("", api.update, canEdit)
	dg.DELETE("", api.destroy, canEdit)
	dg.PUT("/cover", api.setCover, canEdit)

	dg.GET("/students", api.queryStudents, canEdit)
	dg.POST("/students", api.addStudent, canEdit)
	dg.DELETE("/students/:userId", api.removeStudent, canEdit)

	dg.POST("/chapters", api.createChapter, canEdit)
	dg.PUT("/chapters/reorder", api.reorderChapters, canEdit)
	dg.PUT("/chapters/:chapterId", api.updateChapter, canEdit)
	dg.DELETE("/chapters/:chapterId", api.destroyChapter, canEdit)

	dg.GET("/lessons", api.queryCourseLessons, canView)
	dg.GET("/chapters/:chapterId/lessons", api.queryLessons, canView)
	dg.POST("/chapters/:chapterId/lessons", api.createLesson, canEdit)
	dg.PUT("/chapters/:chapterId/lessons/reorder", api.reorderLessons, canEdit)
	dg.GET("/chapters/:chapterId/lessons/:lessonId", api.retrieveLesson, canView)
	dg.PUT("/chapters/:chapterId/lessons/:lessonId", api.updateLesson, canEdit)
	dg.DELETE("/chapters/:chapterId/lessons/:lessonId", api.destroyLesson, canEdit)
}

// Courses

func (api *catalogApi) query(ctx echo.Context) error {
	filter := new(catalog.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []catalog.Course{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := api.svc.QueryCourses(ctx.Request().Context(), *filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []catalog.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *catalogApi) retrieve(ctx echo.Context) error {
	c, err := api.svc.GetCourse(ctx.Request().Context(), ctx.Param("courseId"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *catalogApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data catalog.NewCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.CreateCourse(ctx.Request().Context(), data, usr)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *catalogApi) update(ctx echo.Context) error {
	c, err := getContextCourse(ctx)
	if err != nil {
		return err
	}

	var data catalog.UpdateCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err = api.svc.UpdateCourse(ctx.Request().Context(), c.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *catalogApi) destroy(ctx echo.Context) error {
	c, err := getContextCourse(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteCourse(ctx.Request().Context(), c.ID); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) setCover(ctx echo.Context) error {
	c, err := getContextCourse(ctx)
	if err != nil {
		return err
	}

	file, closeFile, err := bindFile(ctx, "cover")
	if err != nil {
		return err
	}
	defer closeFile()

	c, err = api.svc.SetCover(ctx.Request().Context(), c.ID, file)
	if err != nil {
		return errors.Wrap(err, "setting course cover")
	}
	return ctx.JSON(http.StatusOK, c)
}

// Enrollment

func (api *catalogApi) queryStudents(ctx echo.Context) error {
	c, err := getContextCourse(ctx)
	if err != nil {
		return err
	}
	ids, err := api.svc.ListStudents(ctx.Request().Context(), c.ID)
	if err != nil {
		return errors.Wrap(err, "listing students")
	}
	students, err := api.usrSvc.QueryByIDs(ctx.Request().Context(), ids)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *catalogApi) addStudent(ctx echo.Context) error {
	c, err := getContextCourse(ctx)
	if err != nil {
		return err
	}

	var data StudentRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if _, err = api.usrSvc.GetByID(ctx.Request().Context(), data.UserID); err != nil {
		return err
	}

	res, err := api.svc.AddStudent(ctx.Request().Context(), c.ID, data.UserID)
	if err != nil {
		return errors.Wrap(err, "adding student")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *catalogApi) removeStudent(ctx echo.Context) error {
	c, err := getContextCourse(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.RemoveStudent(ctx.Request().Context(), c.ID, ctx.Param("userId"))
	if err != nil {
		return errors.Wrap(err, "removing student")
	}
	return ctx.JSON(http.StatusOK, res)
}

// Chapters

func (api *catalogApi) queryChapters(ctx echo.Context) error {
	chapters, err := api.svc.ListChapters(ctx.Request().Context(), ctx.Param("courseId"))
	if err != nil {
		return err
	}
	if chapters == nil {
		chapters = []catalog.Chapter{}
	}
	return ctx.JSON(http.StatusOK, chapters)
}

func (api *catalogApi) retrieveChapter(ctx echo.Context) error {
	ch, err := api.svc.GetChapter(ctx.Request().Context(), ctx.Param("courseId"), ctx.Param("chapterId"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ch)
}

func (api *catalogApi) createChapter(ctx echo.Context) error {
	c, err := getContextCourse(ctx)
	if err != nil {
		return err
	}

	var data catalog.NewChapter
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewChapter")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	ch, err := api.svc.CreateChapter(ctx.Request().Context(), c.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating chapter")
	}
	return ctx.JSON(http.StatusCreated, ch)
}

func (api *catalogApi) updateChapter(ctx echo.Context) error {
	c, err := getContextCourse(ctx)
	if err != nil {
		return err
	}

	var data catalog.UpdateChapter
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateChapter")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	ch, err := api.svc.UpdateChapter(ctx.Request().Context(), c.ID, ctx.Param("chapterId"), data)
	if err != nil {
		return errors.Wrap(err, "updating chapter")
	}
	return ctx.JSON(http.StatusOK, ch)
}

func (api *catalogApi) destroyChapter(ctx echo.Context) error {
	c, err := getContextCourse(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteChapter(ctx.Request().Context(), c.ID, ctx.Param("chapterId")); err != nil {
		return errors.Wrap(err, "deleting chapter")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) reorderChapters(ctx echo.Context) error {
	c, err := getContextCourse(ctx)
	if err != nil {
		return err
	}

	var data catalog.Reorder
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Reorder")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	chapters, err := api.svc.ReorderChapters(ctx.Request().Context(), c.ID, data.IDs)
	if err != nil {
		return errors.Wrap(err, "reordering chapters")
	}
	return ctx.JSON(http.StatusOK, chapters)
}

// Lessons

func (api *catalogApi) queryCourseLessons(ctx echo.Context) error {
	c, err := getContextCourse(ctx)
	if err != nil {
		return err
	}
	lessons, err := api.svc.ListCourseLessons(ctx.Request().Context(), c.ID)
	if err != nil {
		return errors.Wrap(err, "listing course lessons")
	}
	if lessons == nil {
		lessons = []catalog.Lesson{}
	}
	return ctx.JSON(http.StatusOK, lessons)
}

func (api *catalogApi) queryLessons(ctx echo.Context) error {
	c, err := getContextCourse(ctx)
	if err != nil {
		return err
	}
	lessons, err := api.svc.ListLessons(ctx.Request().Context(), c.ID, ctx.Param("chapterId"))
	if err != nil {
		return err
	}
	if lessons == nil {
		lessons = []catalog.Lesson{}
	}
	return ctx.JSON(http.StatusOK, lessons)
}

func (api *catalogApi) retrieveLesson(ctx echo.Context) error {
	c, err := getContextCourse(ctx)
	if err != nil {
		return err
	}
	l, err := api.svc.GetLesson(ctx.Request().Context(), c.ID, ctx.Param("chapterId"), ctx.Param("lessonId"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *catalogApi) createLesson(ctx echo.Context) error {
	c, err := getContextCourse(ctx)
	if err != nil {
		return err
	}

	var data catalog.NewLesson
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	l, err := api.svc.CreateLesson(ctx.Request().Context(), c.ID, ctx.Param("chapterId"), data)
	if err != nil {
		return errors.Wrap(err, "creating lesson")
	}
	return ctx.JSON(http.StatusCreated, l)
}

func (api *catalogApi) updateLesson(ctx echo.Context) error {
	c, err := getContextCourse(ctx)
	if err != nil {
		return err
	}

	var data catalog.UpdateLesson
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLesson")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	l, err := api.svc.UpdateLesson(ctx.Request().Context(), c.ID, ctx.Param("chapterId"), ctx.Param("lessonId"), data)
	if err != nil {
		return errors.Wrap(err, "updating lesson")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *catalogApi) destroyLesson(ctx echo.Context) error {
	c, err := getContextCourse(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteLesson(ctx.Request().Context(), c.ID, ctx.Param("chapterId"), ctx.Param("lessonId")); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) reorderLessons(ctx echo.Context) error {
	c, err := getContextCourse(ctx)
	if err != nil {
		return err
	}

	var data catalog.Reorder
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Reorder")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	lessons, err := api.svc.ReorderLessons(ctx.Request().Context(), c.ID, ctx.Param("chapterId"), data.IDs)
	if err != nil {
		return errors.Wrap(err, "reordering lessons")
	}
	return ctx.JSON(http.StatusOK, lessons)
}

type StudentRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

func (sr *StudentRequest) Validate(validate *validator.Validate) error {
	sr.UserID = core.CleanString(sr.UserID, true /* lower */)
	return validate.Struct(sr)
}
