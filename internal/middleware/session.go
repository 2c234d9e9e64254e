package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/calendar-preferences/internal/model"
)

// IdentityKey is the echo context key holding the resolved model.Identity.
const IdentityKey = "identity"

// SessionAuth returns an Echo middleware that resolves the caller's
// identity from a signed session token. The token is taken from a Bearer
// Authorization header, or from the named cookie when no header is sent.
// Requests without a valid token are answered with 401 and never reach
// the handler.
func SessionAuth(secret, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := tokenFromRequest(c, cookieName)
			if raw == "" {
				return unauthenticated(c)
			}
			id, ok := parseIdentity(raw, secret)
			if !ok {
				return unauthenticated(c)
			}
			c.Set(IdentityKey, id)
			c.Set("user_id", id.ID)
			return next(c)
		}
	}
}

// IdentityFrom returns the identity stored by SessionAuth.
func IdentityFrom(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(IdentityKey).(model.Identity)
	if !ok || id.ID == "" {
		return model.Identity{}, false
	}
	return id, true
}

func tokenFromRequest(c echo.Context, cookieName string) string {
	if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if cookieName == "" {
		return ""
	}
	ck, err := c.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(ck.Value)
}

// parseIdentity verifies an HMAC-signed token and extracts the identity
// claims. A token without a string subject is rejected.
func parseIdentity(raw, secret string) (model.Identity, bool) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		// Reject tokens using anything but HMAC.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, echo.ErrUnauthorized
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return model.Identity{}, false
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return model.Identity{}, false
	}
	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return model.Identity{}, false
	}
	image := stringClaim(claims, "picture")
	if image == "" {
		image = stringClaim(claims, "image")
	}
	return model.Identity{
		ID:    sub,
		Email: stringClaim(claims, "email"),
		Name:  stringClaim(claims, "name"),
		Image: image,
	}, true
}

func stringClaim(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

func unauthenticated(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Not authenticated"})
}
