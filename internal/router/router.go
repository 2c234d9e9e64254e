// Package router defines how HTTP routes are registered for the API.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/calendar-preferences/internal/handler"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterPreferences mounts the preferences resource at /preferences and
// under the versioned /v1 prefix. session must resolve the identity; the
// remaining middleware (rate limiting) runs after it so buckets can be
// keyed per user.
func RegisterPreferences(e *echo.Echo, h *handler.PreferencesHandler, session echo.MiddlewareFunc, mw ...echo.MiddlewareFunc) {
	chain := append([]echo.MiddlewareFunc{session}, mw...)
	for _, prefix := range []string{"", "/v1"} {
		e.GET(prefix+"/preferences", h.Get, chain...)
		e.PUT(prefix+"/preferences", h.Put, chain...)
	}
}
