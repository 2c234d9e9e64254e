package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/calendar-preferences/internal/config"
	"github.com/iliyamo/calendar-preferences/internal/model"
)

// fakeScripter answers every script call with a canned result.
type fakeScripter struct {
	result []interface{}
	err    error
	keys   []string
}

func (f *fakeScripter) cmd(ctx context.Context, keys []string) *redis.Cmd {
	f.keys = append(f.keys, keys...)
	cmd := redis.NewCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(f.result)
	}
	return cmd
}

func (f *fakeScripter) Eval(ctx context.Context, _ string, keys []string, _ ...interface{}) *redis.Cmd {
	return f.cmd(ctx, keys)
}

func (f *fakeScripter) EvalSha(ctx context.Context, _ string, keys []string, _ ...interface{}) *redis.Cmd {
	return f.cmd(ctx, keys)
}

func (f *fakeScripter) EvalRO(ctx context.Context, _ string, keys []string, _ ...interface{}) *redis.Cmd {
	return f.cmd(ctx, keys)
}

func (f *fakeScripter) EvalShaRO(ctx context.Context, _ string, keys []string, _ ...interface{}) *redis.Cmd {
	return f.cmd(ctx, keys)
}

func (f *fakeScripter) ScriptExists(ctx context.Context, _ ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceCmd(ctx)
}

func (f *fakeScripter) ScriptLoad(ctx context.Context, _ string) *redis.StringCmd {
	return redis.NewStringCmd(ctx)
}

func limitCfg() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       5,
		RefillTokens:   1,
		RefillInterval: time.Second,
		TTL:            time.Minute,
		KeyStrategy:    "user_route",
		Prefix:         "rl",
	}
}

func serveLimited(l *RateLimiter) *httptest.ResponseRecorder {
	e := echo.New()
	e.GET("/preferences", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(IdentityKey, model.Identity{ID: "u-1"})
			return next(c)
		}
	}, l.Middleware())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/preferences", nil))
	return rec
}

func TestRateLimiterAllows(t *testing.T) {
	f := &fakeScripter{result: []interface{}{int64(1), int64(4), int64(0)}}
	rec := serveLimited(NewRateLimiter(limitCfg(), f, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, []string{"rl:user:u-1:route:GET /preferences"}, f.keys)
}

func TestRateLimiterBlocks(t *testing.T) {
	f := &fakeScripter{result: []interface{}{int64(0), int64(0), int64(1500)}}
	rec := serveLimited(NewRateLimiter(limitCfg(), f, nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded","retry_after":2}`, rec.Body.String())
}

func TestRateLimiterFailsOpen(t *testing.T) {
	f := &fakeScripter{err: errors.New("connection refused")}
	rec := serveLimited(NewRateLimiter(limitCfg(), f, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterDisabled(t *testing.T) {
	cfg := limitCfg()
	cfg.Enabled = false
	f := &fakeScripter{result: []interface{}{int64(0), int64(0), int64(0)}}
	assert.Equal(t, http.StatusOK, serveLimited(NewRateLimiter(cfg, f, nil)).Code)
	assert.Empty(t, f.keys)

	assert.Equal(t, http.StatusOK, serveLimited(NewRateLimiter(limitCfg(), nil, nil)).Code)
}

func TestBuildRateKeyStrategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/preferences", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.7")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/preferences")

	cfg := limitCfg()
	cfg.KeyStrategy = "ip"
	assert.Equal(t, "rl:ip:10.0.0.7", buildRateKey(cfg, c))

	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:anon", buildRateKey(cfg, c))

	c.Set(IdentityKey, model.Identity{ID: "u-9"})
	cfg.KeyStrategy = ""
	assert.Equal(t, "rl:ip:10.0.0.7:user:u-9:route:PUT /preferences", buildRateKey(cfg, c))
}
