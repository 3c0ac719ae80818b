package auth

import (
	"strings"
	"time"
	"unicode"

	"github.com/dgrijalva/jwt-go"

	"github.com/trezcool/masomo-portal/core"
)

var NowFunc = time.Now // mockable

// ValidateToken checks a token locally, before any request is issued.
// JWTs must be well-formed and not expired; opaque tokens (eg. "12|abc...") must be printable
// and not one of the values a broken client may have stored ("null", "undefined").
func ValidateToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return core.ErrNoToken
	}
	switch token {
	case "null", "undefined":
		return core.ErrMalformedToken
	}
	for _, r := range token {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return core.ErrMalformedToken
		}
	}

	if strings.Count(token, ".") != 2 {
		return nil // opaque token
	}

	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return core.ErrMalformedToken
	}
	if exp, ok := claims["exp"].(float64); ok && NowFunc().Unix() > int64(exp) {
		return core.ErrSessionExpired
	}
	return nil
}
