package echoapi

import (
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/catalog"
	"github.com/trezcool/skolar/core/user"
	"github.com/trezcool/skolar/services/ratelimit"
)

var (
	contextCourseKey = "course"

	errTooManyRequests  = echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
	errCourseNotInCtx   = errors.New("course not found in echo.Context")
	errInstructorNeeded = echo.NewHTTPError(http.StatusForbidden, "instructor role required")
)

func instructorMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if usr.IsInstructor() {
				return next(ctx)
			}
			return errInstructorNeeded
		}
	}
}

func adminMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if usr.IsAdmin() {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// courseMiddleware loads the :courseId course and checks the caller against it with allowed.
func courseMiddleware(usrSvc *user.Service, svc *catalog.Service, allowed func(user.User, catalog.Course) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			c, err := svc.GetCourse(ctx.Request().Context(), ctx.Param("courseId"))
			if err != nil {
				return err
			}
			if !allowed(usr, c) {
				return errHttpForbidden
			}
			ctx.Set(contextCourseKey, c)
			return next(ctx)
		}
	}
}

func getContextCourse(ctx echo.Context) (catalog.Course, error) {
	if c, ok := ctx.Get(contextCourseKey).(catalog.Course); ok {
		return c, nil
	}
	return catalog.Course{}, errCourseNotInCtx
}

// rateLimitMiddleware limits the requests of a client IP to a route group.
// Limiter failures are logged and let the request through.
func rateLimitMiddleware(limiter ratelimit.Limiter, name string, logger core.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if limiter == nil {
				return next(ctx)
			}
			ok, retryAfter, err := limiter.Allow(ctx.Request().Context(), name+":"+ctx.RealIP())
			if err != nil {
				logger.Warn("rate limiter unavailable", err)
				return next(ctx)
			}
			if !ok {
				secs := int(math.Ceil(retryAfter.Seconds()))
				ctx.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}
