package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/calendar-preferences/internal/config"
	"github.com/iliyamo/calendar-preferences/internal/database"
	"github.com/iliyamo/calendar-preferences/internal/handler"
	"github.com/iliyamo/calendar-preferences/internal/middleware"
	"github.com/iliyamo/calendar-preferences/internal/queue"
	"github.com/iliyamo/calendar-preferences/internal/repository"
	"github.com/iliyamo/calendar-preferences/internal/router"
	"github.com/iliyamo/calendar-preferences/internal/service"
)

func main() {
	// .env.local overrides .env; both are optional.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	dialect, err := database.ParseDialect(cfg.DBDriver)
	if err != nil {
		return err
	}
	db, err := database.Open(dialect, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = database.Migrate(migrateCtx, db, dialect)
	cancel()
	if err != nil {
		return err
	}

	var publisher service.EventPublisher
	if cfg.Queue.Enabled {
		publisher = queue.NewPublisher(cfg.Queue.URL, cfg.Queue.Name, logger)
	}
	svc := service.NewPreferencesService(
		repository.NewUserRepo(db, dialect),
		repository.NewPreferencesRepo(db, dialect),
		publisher, logger)
	prefs := handler.NewPreferencesHandler(svc, logger, cfg.RequestTimeout, cfg.IsProduction())

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(requestLogger(logger))

	var limits []echo.MiddlewareFunc
	if rdb := config.NewRedisClient(cfg.Redis); rdb != nil {
		defer func() { _ = rdb.Close() }()
		limits = append(limits, middleware.NewRateLimiter(cfg.RateLimit, rdb, logger).Middleware())
	} else if cfg.RateLimit.Enabled {
		logger.Warn("rate limiting disabled: redis unavailable")
	}

	router.RegisterRoutes(e, db)
	router.RegisterPreferences(e, prefs, middleware.SessionAuth(cfg.SessionSecret, cfg.SessionCookie), limits...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info("listening", "addr", addr, "env", cfg.Env, "driver", string(dialect))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				logger.Error("request", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	})
}
