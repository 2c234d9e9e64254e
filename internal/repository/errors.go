// Package repository defines error types that are reused across the
// repositories. These sentinel values allow higher layers such as the
// service to distinguish a missing row from a storage failure, and a
// storage failure from stored data that no longer decodes.
package repository

import "errors"

// ErrUserNotFound is returned when no users row matches the id.
var ErrUserNotFound = errors.New("user not found")

// ErrPreferencesNotFound is returned when the user has no preferences row yet.
var ErrPreferencesNotFound = errors.New("preferences not found")

// ErrCorruptPreferences wraps a failure to decode a serialized column.
// It indicates damaged stored data, not a caller error.
var ErrCorruptPreferences = errors.New("corrupt preferences row")
