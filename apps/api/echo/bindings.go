package echoapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core"
)

var (
	orderingParam = "ordering"
	pageParam     = "page"
	limitParam    = "limit"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindPage reads the 1-based ?page and ?limit params; invalid values fall back to the defaults.
func bindPage(ctx echo.Context, defaultLimit int) core.Page {
	number, _ := strconv.Atoi(ctx.QueryParam(pageParam))
	limit, _ := strconv.Atoi(ctx.QueryParam(limitParam))
	return core.NewPage(number, limit, defaultLimit)
}

// bindFile opens the multipart file sent as field. The caller must close the returned closer.
func bindFile(ctx echo.Context, field string) (core.File, func(), error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return core.File{}, func() {}, core.NewValidationError(nil, core.FieldError{Field: field, Error: "no file provided"})
		}
		return core.File{}, func() {}, errors.Wrap(err, "reading multipart form")
	}
	src, err := fh.Open()
	if err != nil {
		return core.File{}, func() {}, errors.Wrap(err, "opening uploaded file")
	}
	file := core.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Content:     src,
	}
	return file, func() { _ = src.Close() }, nil
}

type (
	MessageResponse struct {
		Message string `json:"message"`
	}

	CountResponse struct {
		Count int `json:"count"`
	}
)
