package router

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/calendar-preferences/internal/database"
	"github.com/iliyamo/calendar-preferences/internal/handler"
	"github.com/iliyamo/calendar-preferences/internal/middleware"
	"github.com/iliyamo/calendar-preferences/internal/model"
	"github.com/iliyamo/calendar-preferences/internal/repository"
	"github.com/iliyamo/calendar-preferences/internal/service"
	"github.com/iliyamo/calendar-preferences/internal/utils"
)

const secret = "router-test-secret"

const defaultsJSON = `{"selectedCalendarIds":[],"hiddenEventIds":[],"showDaysOfWeek":true,"alignWeekends":false,"showHidden":false,"calendarColors":{},"viewType":"year"}`

type app struct {
	e  *echo.Echo
	db *sql.DB
}

func newApp(t *testing.T) app {
	t.Helper()
	db, err := database.Open(database.SQLite, filepath.Join(t.TempDir(), "prefs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, database.SQLite))

	svc := service.NewPreferencesService(
		repository.NewUserRepo(db, database.SQLite),
		repository.NewPreferencesRepo(db, database.SQLite),
		nil, nil)
	e := echo.New()
	RegisterRoutes(e, db)
	RegisterPreferences(e, handler.NewPreferencesHandler(svc, nil, 5*time.Second, false),
		middleware.SessionAuth(secret, "session_token"))
	return app{e: e, db: db}
}

func (a app) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a app) rows(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, a.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func tokenFor(t *testing.T, id string) string {
	t.Helper()
	tok, err := utils.NewSessionToken(secret, model.Identity{ID: id, Email: id + "@example.com"}, time.Hour)
	require.NoError(t, err)
	return tok.Token
}

func TestHealth(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestGetCreatesDefaults(t *testing.T) {
	a := newApp(t)
	tok := tokenFor(t, "u1")

	rec := a.do(t, http.MethodGet, "/preferences", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, defaultsJSON, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/v1/preferences", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, defaultsJSON, rec.Body.String())
	assert.Equal(t, 1, a.rows(t, "user_preferences"))
	assert.Equal(t, 1, a.rows(t, "users"))
}

func TestPutRoundTrip(t *testing.T) {
	a := newApp(t)
	tok := tokenFor(t, "u1")
	body := `{"selectedCalendarIds":["a","b"],"hiddenEventIds":["e1"],"showDaysOfWeek":false,"alignWeekends":"yes","showHidden":true,"calendarColors":{"a":"#abcdef"},"viewType":"month"}`
	want := `{"selectedCalendarIds":["a","b"],"hiddenEventIds":["e1"],"showDaysOfWeek":false,"alignWeekends":true,"showHidden":true,"calendarColors":{"a":"#abcdef"},"viewType":"month"}`

	rec := a.do(t, http.MethodPut, "/preferences", tok, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, want, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/preferences", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, want, rec.Body.String())
}

func TestPutPartialAndIdempotent(t *testing.T) {
	a := newApp(t)
	tok := tokenFor(t, "u1")

	rec := a.do(t, http.MethodPut, "/preferences", tok, `{"selectedCalendarIds":["x"],"viewType":"week"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	for i := 0; i < 2; i++ {
		rec = a.do(t, http.MethodPut, "/preferences", tok, `{"showHidden":true}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"selectedCalendarIds":["x"],"hiddenEventIds":[],"showDaysOfWeek":true,"alignWeekends":false,"showHidden":true,"calendarColors":{},"viewType":"week"}`, rec.Body.String())
	}
	assert.Equal(t, 1, a.rows(t, "user_preferences"))
}

func TestPutEmptyBodyObjectReturnsCurrentState(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, http.MethodPut, "/preferences", tokenFor(t, "u1"), `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, defaultsJSON, rec.Body.String())
	assert.Equal(t, 1, a.rows(t, "user_preferences"))
}

func TestPutValidationRejectsBeforeWriting(t *testing.T) {
	a := newApp(t)
	tok := tokenFor(t, "u1")
	rec := a.do(t, http.MethodPut, "/preferences", tok, `{"viewType":"day","showHidden":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	before := rec.Body.String()

	cases := map[string]string{
		`{"showDaysOfWeek":"yes","viewType":"month"}`: "showDaysOfWeek must be a boolean",
		`{"viewType":7}`:              "viewType must be a string",
		`{"calendarColors":[1]}`:      "Invalid calendarColors format",
		`{"selectedCalendarIds":"a"}`: "Invalid selectedCalendarIds format",
		`not json`:                    "Invalid JSON in request body",
	}
	for body, msg := range cases {
		rec := a.do(t, http.MethodPut, "/preferences", tok, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.JSONEq(t, `{"error":"`+msg+`"}`, rec.Body.String(), body)
	}

	rec = a.do(t, http.MethodGet, "/preferences", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, before, rec.Body.String())
}

func TestPutValidationFailureOnNewUserWritesNothing(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, http.MethodPut, "/preferences", tokenFor(t, "fresh"), `{"showHidden":"true"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, a.rows(t, "user_preferences"))
	assert.Equal(t, 0, a.rows(t, "users"))
}

func TestUnauthenticatedNeverTouchesStorage(t *testing.T) {
	a := newApp(t)
	for _, method := range []string{http.MethodGet, http.MethodPut} {
		rec := a.do(t, method, "/preferences", "", `{"showHidden":true}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, method)
		assert.JSONEq(t, `{"error":"Not authenticated"}`, rec.Body.String())

		rec = a.do(t, method, "/preferences", "forged.token.value", `{"showHidden":true}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, method)
	}
	assert.Equal(t, 0, a.rows(t, "users"))
	assert.Equal(t, 0, a.rows(t, "user_preferences"))
}

func TestConcurrentPutsForNewUser(t *testing.T) {
	a := newApp(t)
	tok := tokenFor(t, "racer")
	bodies := []string{`{"selectedCalendarIds":["c1"]}`, `{"hiddenEventIds":["e1"],"showHidden":true}`}

	var wg sync.WaitGroup
	codes := make([]int, len(bodies))
	for i, b := range bodies {
		wg.Add(1)
		go func(i int, b string) {
			defer wg.Done()
			codes[i] = a.do(t, http.MethodPut, "/preferences", tok, b).Code
		}(i, b)
	}
	wg.Wait()

	assert.Equal(t, []int{http.StatusOK, http.StatusOK}, codes)
	assert.Equal(t, 1, a.rows(t, "user_preferences"))

	rec := a.do(t, http.MethodGet, "/preferences", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"selectedCalendarIds":["c1"],"hiddenEventIds":["e1"],"showDaysOfWeek":true,"alignWeekends":false,"showHidden":true,"calendarColors":{},"viewType":"year"}`, rec.Body.String())
}

func TestCorruptRowIsServerError(t *testing.T) {
	a := newApp(t)
	tok := tokenFor(t, "u1")
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/preferences", tok, "").Code)
	_, err := a.db.Exec("UPDATE user_preferences SET selected_calendar_ids = 'nope' WHERE user_id = 'u1'")
	require.NoError(t, err)

	rec := a.do(t, http.MethodGet, "/preferences", tok, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
	assert.Contains(t, rec.Body.String(), `"details"`)
}
