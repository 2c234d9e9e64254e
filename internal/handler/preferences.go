package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/calendar-preferences/internal/middleware"
	"github.com/iliyamo/calendar-preferences/internal/model"
	"github.com/iliyamo/calendar-preferences/internal/service"
)

// maxBodyBytes bounds a PUT body; preferences are small.
const maxBodyBytes = 1 << 20

// PreferencesService is what the handler needs from the service layer.
type PreferencesService interface {
	Get(ctx context.Context, id model.Identity) (model.Preferences, error)
	Update(ctx context.Context, id model.Identity, patch model.Patch) (model.Preferences, error)
}

// PreferencesHandler serves GET and PUT /preferences. Both assume the
// session middleware already ran; a missing identity still yields 401.
type PreferencesHandler struct {
	Service    PreferencesService
	Logger     *slog.Logger
	Timeout    time.Duration
	Production bool
}

func NewPreferencesHandler(svc PreferencesService, logger *slog.Logger, timeout time.Duration, production bool) *PreferencesHandler {
	if svc == nil {
		panic("nil service passed to NewPreferencesHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PreferencesHandler{Service: svc, Logger: logger, Timeout: timeout, Production: production}
}

// Get handles GET /preferences: the caller's preferences, created with
// defaults on first access.
func (h *PreferencesHandler) Get(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return h.fail(c, service.Unauthenticated())
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	prefs, err := h.Service.Get(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, prefs)
}

// Put handles PUT /preferences. The body is a partial object; it is fully
// validated before anything is written, and the response is the complete
// stored state.
func (h *PreferencesHandler) Put(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return h.fail(c, service.Unauthenticated())
	}
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes+1))
	if err != nil || len(body) > maxBodyBytes {
		return h.fail(c, service.InvalidInput("", "Invalid JSON in request body"))
	}
	patch, err := service.DecodePatch(body)
	if err != nil {
		return h.fail(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	prefs, err := h.Service.Update(ctx, id, patch)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, prefs)
}

func (h *PreferencesHandler) fail(c echo.Context, err error) error {
	return writeError(c, h.Logger, h.Production, err)
}
