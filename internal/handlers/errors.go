package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialsync/internal/middleware"
	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

// toHTTPError maps AppError codes onto status codes. Anything else is a 500
// with a generic message.
func toHTTPError(err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case models.CodeNotFound:
			return echo.NewHTTPError(http.StatusNotFound, appErr.Message)
		case models.CodeConflict:
			return echo.NewHTTPError(http.StatusConflict, appErr.Message)
		case models.CodeUnauthorized:
			return echo.NewHTTPError(http.StatusForbidden, appErr.Message)
		case models.CodeValidation:
			return echo.NewHTTPError(http.StatusBadRequest, appErr.Message)
		}
	}
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "Something went wrong, please try again")
}

// bindAndValidate decodes the request body into req and runs its validate tags.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	return c.Validate(req)
}

func currentHandle(c echo.Context) (string, error) {
	handle := middleware.Handle(c)
	if handle == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return handle, nil
}
