// Package queue defines message payloads exchanged over the message broker
// together with the AMQP publisher and the audit consumer.
package queue

// PreferencesUpdatedEvent is published after a PUT changed at least one
// field. It carries enough to audit the change without querying the
// primary database.
type PreferencesUpdatedEvent struct {
	EventID       string   `json:"event_id"`
	UserID        string   `json:"user_id"`
	ChangedFields []string `json:"changed_fields"`
	ViewType      string   `json:"view_type"`
	UpdatedAt     string   `json:"updated_at"`
}
