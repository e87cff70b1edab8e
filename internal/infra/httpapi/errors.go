package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// newHTTPErrorHandler renders echo and validation errors as {"error": ...} JSON.
func newHTTPErrorHandler(logger *logrus.Entry) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		var message interface{} = http.StatusText(http.StatusInternalServerError)

		var httpErr *echo.HTTPError
		var validationErrs validator.ValidationErrors
		switch {
		case errors.As(err, &validationErrs):
			fields := make(map[string]string, len(validationErrs))
			for _, fe := range validationErrs {
				fields[fe.Field()] = "failed on '" + fe.Tag() + "'"
			}
			code = http.StatusBadRequest
			message = fields
		case errors.As(err, &httpErr):
			code = httpErr.Code
			message = httpErr.Message
			if httpErr.Internal != nil {
				logger.WithError(httpErr.Internal).WithField("status", code).Debug("Request rejected")
			}
		default:
			logger.WithError(err).Error("Unhandled error")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, echo.Map{"error": message})
		}
		if err != nil {
			logger.WithError(err).Error("Failed to write error response")
		}
	}
}
