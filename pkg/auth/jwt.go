package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ttlFromJWT derives a TTL from the exp claim of a JWT-shaped token. The
// signature is not verified; only the server can do that, and the expiry
// is advisory client-side state anyway. Returns false for non-JWT tokens
// or tokens without a future exp claim.
func ttlFromJWT(token string, now time.Time) (time.Duration, bool) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return 0, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, false
	}
	ttl := exp.Time.Sub(now)
	if ttl <= 0 {
		return 0, false
	}
	return ttl, true
}
