// Package service implements the preferences flow behind the HTTP
// boundary: user bootstrap, fetch-or-default and validate-then-upsert.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/calendar-preferences/internal/model"
	"github.com/iliyamo/calendar-preferences/internal/queue"
	"github.com/iliyamo/calendar-preferences/internal/repository"
)

// UserStore is the slice of the users repository the service needs.
type UserStore interface {
	GetByID(ctx context.Context, id string) (model.User, error)
	CreateIfMissing(ctx context.Context, u model.User) (bool, error)
}

// PreferencesStore is the slice of the preferences repository the service needs.
type PreferencesStore interface {
	FindByUserID(ctx context.Context, userID string) (model.UserPreferences, error)
	EnsureDefault(ctx context.Context, userID string) (model.UserPreferences, error)
	Upsert(ctx context.Context, userID string, patch model.Patch) (model.UserPreferences, error)
}

// EventPublisher announces committed preference changes.
type EventPublisher interface {
	PublishPreferencesUpdated(ctx context.Context, ev queue.PreferencesUpdatedEvent) error
}

// PreferencesService bundles the stores and the optional publisher.
type PreferencesService struct {
	users     UserStore
	prefs     PreferencesStore
	publisher EventPublisher
	logger    *slog.Logger
}

// NewPreferencesService panics if a store is nil. publisher may be nil,
// in which case no events are sent.
func NewPreferencesService(users UserStore, prefs PreferencesStore, publisher EventPublisher, logger *slog.Logger) *PreferencesService {
	if users == nil || prefs == nil {
		panic("nil store passed to NewPreferencesService")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PreferencesService{users: users, prefs: prefs, publisher: publisher, logger: logger}
}

// EnsureUser creates the users row for id unless it exists. Calling it
// again with the same identity is a no-op.
func (s *PreferencesService) EnsureUser(ctx context.Context, id model.Identity) error {
	if id.ID == "" {
		return Unauthenticated()
	}
	_, err := s.users.GetByID(ctx, id.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return Persistence("Failed to load user", err)
	}
	created, err := s.users.CreateIfMissing(ctx, model.NewUser(id))
	if err != nil {
		return Persistence("Failed to create user", err)
	}
	if created {
		s.logger.Info("user created", "user_id", id.ID)
	}
	return nil
}

// Get returns the caller's preferences, creating the default row on first
// access.
func (s *PreferencesService) Get(ctx context.Context, id model.Identity) (model.Preferences, error) {
	if err := s.EnsureUser(ctx, id); err != nil {
		return model.Preferences{}, err
	}
	return s.fetchOrDefault(ctx, id.ID)
}

func (s *PreferencesService) fetchOrDefault(ctx context.Context, userID string) (model.Preferences, error) {
	row, err := s.prefs.FindByUserID(ctx, userID)
	if errors.Is(err, repository.ErrPreferencesNotFound) {
		row, err = s.prefs.EnsureDefault(ctx, userID)
	}
	if err != nil {
		return model.Preferences{}, Persistence("Failed to fetch preferences", err)
	}
	return row.Preferences, nil
}

// Update applies patch with upsert semantics and returns the stored state.
// An empty patch performs no write: it behaves like Get, creating the
// default row if the user has none.
func (s *PreferencesService) Update(ctx context.Context, id model.Identity, patch model.Patch) (model.Preferences, error) {
	if err := s.EnsureUser(ctx, id); err != nil {
		return model.Preferences{}, err
	}
	if patch.IsEmpty() {
		return s.fetchOrDefault(ctx, id.ID)
	}
	row, err := s.prefs.Upsert(ctx, id.ID, patch)
	if err != nil {
		return model.Preferences{}, Persistence("Failed to update preferences", err)
	}
	s.publish(ctx, row, patch.Fields())
	return row.Preferences, nil
}

func (s *PreferencesService) publish(ctx context.Context, row model.UserPreferences, fields []string) {
	if s.publisher == nil {
		return
	}
	ev := queue.PreferencesUpdatedEvent{
		EventID:       uuid.NewString(),
		UserID:        row.UserID,
		ChangedFields: fields,
		ViewType:      row.ViewType,
		UpdatedAt:     row.UpdatedAt.Format(time.RFC3339Nano),
	}
	if err := s.publisher.PublishPreferencesUpdated(ctx, ev); err != nil {
		s.logger.Warn("publish preferences.updated failed", "user_id", row.UserID, "error", err)
	}
}
