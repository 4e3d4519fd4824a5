package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// APIError is a handler failure rendered as {"error": message}
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Cause   error  `json:"-"`
}

func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Cause)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

func badRequest(message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Message: message}
}

func notFound(message string, cause error) *APIError {
	return &APIError{Status: http.StatusNotFound, Message: message, Cause: cause}
}

func internalError(message string, cause error) *APIError {
	return &APIError{Status: http.StatusInternalServerError, Message: message, Cause: cause}
}

// errorHandler renders every error, including echo's own, in the
// {"error": ...} shape clients expect
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	apiErr := &APIError{Status: http.StatusInternalServerError, Message: http.StatusText(http.StatusInternalServerError), Cause: err}
	var ae *APIError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &ae):
		apiErr = ae
	case errors.As(err, &he):
		apiErr = &APIError{Status: he.Code, Message: fmt.Sprint(he.Message), Cause: he.Internal}
	}

	entry := logrus.WithFields(logrus.Fields{
		"method": c.Request().Method,
		"path":   c.Request().URL.Path,
		"status": apiErr.Status,
	})
	if apiErr.Status >= http.StatusInternalServerError {
		entry.WithError(err).Error("request failed")
	} else {
		entry.Debug(apiErr.Message)
	}

	if err := c.JSON(apiErr.Status, apiErr); err != nil {
		logrus.WithError(err).Warn("failed to write error response")
	}
}
