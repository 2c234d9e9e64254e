// Package utils provides the helper used to sign session tokens. The
// production identity provider issues its own tokens with the same claim
// layout; this signer exists for local development and tests.
package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/calendar-preferences/internal/model"
)

// SessionToken represents a signed JWT along with its expiry.
type SessionToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewSessionToken builds and signs an HS256 JWT for an identity. The
// subject carries the user id; email, name and picture are only set when
// non-empty.
func NewSessionToken(secret string, id model.Identity, ttl time.Duration) (SessionToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub": id.ID,
		"exp": exp.Unix(),
		"iat": now.Unix(),
	}
	if id.Email != "" {
		claims["email"] = id.Email
	}
	if id.Name != "" {
		claims["name"] = id.Name
	}
	if id.Image != "" {
		claims["picture"] = id.Image
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, Exp: exp}, nil
}
