package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/iliyamo/calendar-preferences/internal/database"
	"github.com/iliyamo/calendar-preferences/internal/model"
)

// PreferencesRepo persists the 'user_preferences' table. The list and map
// fields are stored as JSON text; encoding and decoding happen here and
// nowhere else, so callers only ever see model types.
type PreferencesRepo struct {
	db      *sql.DB
	dialect database.Dialect
	now     func() time.Time
}

func NewPreferencesRepo(db *sql.DB, d database.Dialect) *PreferencesRepo {
	return &PreferencesRepo{db: db, dialect: d, now: time.Now}
}

// DB exposes the handle for callers that need their own transaction.
func (r *PreferencesRepo) DB() *sql.DB { return r.db }

const selectPreferences = `SELECT user_id, selected_calendar_ids, hidden_event_ids, show_days_of_week,
	align_weekends, show_hidden, calendar_colors, view_type, created_at, updated_at
	FROM user_preferences WHERE user_id = ?`

// insertColumns is the full column list of an insert, in bind order.
var insertColumns = []string{
	"user_id", "selected_calendar_ids", "hidden_event_ids", "show_days_of_week",
	"align_weekends", "show_hidden", "calendar_colors", "view_type", "created_at", "updated_at",
}

// preferencesRow mirrors the table with serialized fields still encoded.
type preferencesRow struct {
	UserID              string
	SelectedCalendarIDs string
	HiddenEventIDs      string
	ShowDaysOfWeek      bool
	AlignWeekends       sql.NullBool
	ShowHidden          bool
	CalendarColors      string
	ViewType            sql.NullString
	CreatedAt           int64
	UpdatedAt           int64
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// FindByUserID loads and decodes the row for userID.
func (r *PreferencesRepo) FindByUserID(ctx context.Context, userID string) (model.UserPreferences, error) {
	return r.find(ctx, r.db, userID)
}

func (r *PreferencesRepo) find(ctx context.Context, q queryRower, userID string) (model.UserPreferences, error) {
	var row preferencesRow
	err := q.QueryRowContext(ctx, r.dialect.Rebind(selectPreferences), userID).Scan(
		&row.UserID, &row.SelectedCalendarIDs, &row.HiddenEventIDs, &row.ShowDaysOfWeek,
		&row.AlignWeekends, &row.ShowHidden, &row.CalendarColors, &row.ViewType,
		&row.CreatedAt, &row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserPreferences{}, ErrPreferencesNotFound
	}
	if err != nil {
		return model.UserPreferences{}, errors.Wrapf(err, "find preferences for %s", userID)
	}
	return row.decode()
}

// EnsureDefault creates the default row when none exists and returns the
// stored row either way. It never modifies an existing row.
func (r *PreferencesRepo) EnsureDefault(ctx context.Context, userID string) (model.UserPreferences, error) {
	return r.Upsert(ctx, userID, model.Patch{})
}

// Upsert atomically creates or updates the row for userID. A new row is
// the defaults with the patch layered on top; an existing row has only
// the patch's present fields overwritten. The stored row is re-read
// inside the same transaction and returned.
func (r *PreferencesRepo) Upsert(ctx context.Context, userID string, patch model.Patch) (model.UserPreferences, error) {
	create := patch.Apply(model.DefaultPreferences())
	enc, err := encode(create)
	if err != nil {
		return model.UserPreferences{}, err
	}
	now := toMillis(r.now())

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.UserPreferences{}, errors.Wrap(err, "begin upsert")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, r.upsertSQL(updateColumns(patch)),
		userID, enc.SelectedCalendarIDs, enc.HiddenEventIDs, create.ShowDaysOfWeek,
		create.AlignWeekends, create.ShowHidden, enc.CalendarColors, create.ViewType, now, now)
	if err != nil {
		return model.UserPreferences{}, errors.Wrapf(err, "upsert preferences for %s", userID)
	}
	stored, err := r.find(ctx, tx, userID)
	if err != nil {
		return model.UserPreferences{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.UserPreferences{}, errors.Wrap(err, "commit upsert")
	}
	committed = true
	return stored, nil
}

// upsertSQL renders the dialect's insert-or-update statement. cols holds
// only whitelisted column names from updateColumns; an empty list turns
// the statement into insert-or-ignore.
func (r *PreferencesRepo) upsertSQL(cols []string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO user_preferences (")
	b.WriteString(strings.Join(insertColumns, ", "))
	b.WriteString(") VALUES (")
	b.WriteString(strings.TrimSuffix(strings.Repeat("?, ", len(insertColumns)), ", "))
	b.WriteString(")")

	if r.dialect == database.MySQL {
		b.WriteString(" ON DUPLICATE KEY UPDATE ")
		if len(cols) == 0 {
			b.WriteString("user_id = user_id")
			return b.String()
		}
		sets := make([]string, 0, len(cols)+1)
		for _, c := range append(cols, "updated_at") {
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", c, c))
		}
		b.WriteString(strings.Join(sets, ", "))
		return b.String()
	}

	b.WriteString(" ON CONFLICT (user_id) DO ")
	if len(cols) == 0 {
		b.WriteString("NOTHING")
		return r.dialect.Rebind(b.String())
	}
	sets := make([]string, 0, len(cols)+1)
	for _, c := range append(cols, "updated_at") {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	b.WriteString("UPDATE SET ")
	b.WriteString(strings.Join(sets, ", "))
	return r.dialect.Rebind(b.String())
}

// updateColumns maps the present patch fields to their columns.
func updateColumns(p model.Patch) []string {
	var cols []string
	for _, f := range p.Fields() {
		cols = append(cols, fieldColumns[f])
	}
	return cols
}

var fieldColumns = map[string]string{
	model.FieldSelectedCalendarIDs: "selected_calendar_ids",
	model.FieldHiddenEventIDs:      "hidden_event_ids",
	model.FieldShowDaysOfWeek:      "show_days_of_week",
	model.FieldAlignWeekends:       "align_weekends",
	model.FieldShowHidden:          "show_hidden",
	model.FieldCalendarColors:      "calendar_colors",
	model.FieldViewType:            "view_type",
}

type encoded struct {
	SelectedCalendarIDs string
	HiddenEventIDs      string
	CalendarColors      string
}

func encode(p model.Preferences) (encoded, error) {
	var (
		out encoded
		err error
	)
	if out.SelectedCalendarIDs, err = encodeJSON(p.SelectedCalendarIDs); err != nil {
		return encoded{}, errors.Wrap(err, "encode selected_calendar_ids")
	}
	if out.HiddenEventIDs, err = encodeJSON(p.HiddenEventIDs); err != nil {
		return encoded{}, errors.Wrap(err, "encode hidden_event_ids")
	}
	if out.CalendarColors, err = encodeJSON(p.CalendarColors); err != nil {
		return encoded{}, errors.Wrap(err, "encode calendar_colors")
	}
	return out, nil
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decode turns a row into the normalized model, applying defaults for the
// optional-with-default columns.
func (row preferencesRow) decode() (model.UserPreferences, error) {
	out := model.UserPreferences{
		UserID: row.UserID,
		Preferences: model.Preferences{
			ShowDaysOfWeek: row.ShowDaysOfWeek,
			AlignWeekends:  row.AlignWeekends.Valid && row.AlignWeekends.Bool,
			ShowHidden:     row.ShowHidden,
			ViewType:       row.ViewType.String,
		},
		CreatedAt: fromMillis(row.CreatedAt),
		UpdatedAt: fromMillis(row.UpdatedAt),
	}
	if err := json.Unmarshal([]byte(row.SelectedCalendarIDs), &out.SelectedCalendarIDs); err != nil {
		return model.UserPreferences{}, corrupt("selected_calendar_ids", row.UserID, err)
	}
	if err := json.Unmarshal([]byte(row.HiddenEventIDs), &out.HiddenEventIDs); err != nil {
		return model.UserPreferences{}, corrupt("hidden_event_ids", row.UserID, err)
	}
	if err := json.Unmarshal([]byte(row.CalendarColors), &out.CalendarColors); err != nil {
		return model.UserPreferences{}, corrupt("calendar_colors", row.UserID, err)
	}
	out.Preferences = out.Preferences.Normalize()
	return out, nil
}

func corrupt(column, userID string, cause error) error {
	return errors.Wrapf(fmt.Errorf("%w: %s: %v", ErrCorruptPreferences, column, cause), "decode preferences for %s", userID)
}
