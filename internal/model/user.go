package model

import "time"

// User represents an application user record as stored in the `users`
// table. Rows are created lazily from the session identity the first time
// a user touches their preferences and are never deleted by this service.
//
// Fields:
//
//	ID        – stable identifier issued by the identity provider (primary key).
//	Email     – optional email address, nil when the provider sent none.
//	Name      – optional display name.
//	Image     – optional avatar reference.
//	CreatedAt – timestamp of creation.
//	UpdatedAt – timestamp of last update.
type User struct {
	ID        string    // users.id
	Email     *string   // users.email (nullable)
	Name      *string   // users.name (nullable)
	Image     *string   // users.image (nullable)
	CreatedAt time.Time // users.created_at
	UpdatedAt time.Time // users.updated_at
}

// Identity is the authenticated caller resolved by the session gate.
// Only ID is guaranteed; the other attributes are whatever the identity
// provider chose to include and may be empty.
type Identity struct {
	ID    string
	Email string
	Name  string
	Image string
}

// NewUser converts an identity into a user record, mapping empty optional
// attributes to nil so they are stored as NULL.
func NewUser(id Identity) User {
	return User{
		ID:    id.ID,
		Email: optional(id.Email),
		Name:  optional(id.Name),
		Image: optional(id.Image),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
