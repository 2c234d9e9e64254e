package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/calendar-preferences/internal/service"
)

// statusFor maps a service error kind onto its HTTP status.
func statusFor(k service.Kind) int {
	switch k {
	case service.KindUnauthenticated:
		return http.StatusUnauthorized
	case service.KindInvalidInput:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": ...}. Server errors are logged and,
// outside production, carry the cause with its stack under "details".
func writeError(c echo.Context, logger *slog.Logger, production bool, err error) error {
	var e *service.Error
	if !errors.As(err, &e) {
		e = service.Persistence("Internal server error", err)
	}
	status := statusFor(e.Kind)
	body := echo.Map{"error": e.Message}
	if status >= http.StatusInternalServerError {
		logger.Error("preferences request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"kind", e.Kind.String(),
			"error", err)
		if !production && e.Err != nil {
			body["details"] = fmt.Sprintf("%+v", e.Err)
		}
	}
	return c.JSON(status, body)
}
