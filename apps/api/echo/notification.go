package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core/notification"
	"github.com/trezcool/skolar/core/user"
)

type notificationApi struct {
	usrSvc   *user.Service
	svc      *notification.Service
	validate *validator.Validate
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := notificationApi{
		usrSvc:   deps.UserSvc,
		svc:      deps.NotificationSvc,
		validate: deps.Validate,
	}

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.query)
	ng.POST("", api.create, adminMiddleware(api.usrSvc))
	ng.GET("/unread-count", api.unreadCount)
	ng.PUT("/read-all", api.markAllRead)
	ng.PUT("/:id/read", api.markRead)
}

func (api *notificationApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	page := bindPage(ctx, notification.DefaultPageLimit)
	res, err := api.svc.List(ctx.Request().Context(), usr.ID, page)
	if err != nil {
		return errors.Wrap(err, "listing notifications")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *notificationApi) create(ctx echo.Context) error {
	var data notification.NewNotification
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNotification")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if _, err := api.usrSvc.GetByID(ctx.Request().Context(), data.UserID); err != nil {
		return err
	}

	n, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating notification")
	}
	return ctx.JSON(http.StatusCreated, n)
}

func (api *notificationApi) unreadCount(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	n, err := api.svc.UnreadCount(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.MarkRead(ctx.Request().Context(), usr.ID, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	n, err := api.svc.MarkAllRead(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "marking notifications as read")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}
