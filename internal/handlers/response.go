package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/anonto42/linkup/backend/internal/auth"
	"github.com/anonto42/linkup/backend/internal/coordinator"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/anonto42/linkup/backend/internal/syncerr"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// serviceError maps a service error to an HTTP error.
func serviceError(err error) error {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrNoSession):
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	case errors.Is(err, services.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrNotLoaded):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrInFlight), errors.Is(err, services.ErrAlreadyApplied):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrSelfFollow):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case syncerr.KindOf(err) == syncerr.RemoteReadFailed:
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// listError answers a failed list load: an empty list when the remote read
// failed, the mapped error otherwise.
func listError(c echo.Context, err error, key string) error {
	if syncerr.KindOf(err) != syncerr.RemoteReadFailed {
		return serviceError(err)
	}
	return c.JSON(http.StatusServiceUnavailable, echo.Map{
		"success": false,
		"message": "Could not load, showing nothing",
		"data":    echo.Map{key: []any{}},
	})
}

// mutationResult answers a resolved optimistic mutation. A failed remote
// write is reported as a transient notice; the cache is already rolled back.
func mutationResult(c echo.Context, res coordinator.Result, status int, data any) error {
	if !res.OK() {
		return c.JSON(http.StatusBadGateway, echo.Map{
			"success": false,
			"message": "Your change could not be saved",
			"error":   res.Err.Error(),
		})
	}
	if data == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(status, echo.Map{"success": true, "data": data})
}

func pageParams(c echo.Context, defaultLimit int) (page, limit int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = defaultLimit
	}
	return page, limit
}

// paginate slices items for page and returns the meta block.
func paginate[T any](items []T, page, limit int) ([]T, echo.Map) {
	total := len(items)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return items[start:end], echo.Map{
		"currentPage":     page,
		"totalPages":      totalPages,
		"totalItems":      total,
		"itemsPerPage":    limit,
		"hasNextPage":     page < totalPages,
		"hasPreviousPage": page > 1,
	}
}
