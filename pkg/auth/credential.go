package auth

import "time"

// Credential is an issued access token. It is immutable: a refresh
// produces a new Credential, never mutates an existing one.
type Credential struct {
	Token    string
	IssuedAt time.Time
	TTL      time.Duration
}

// Valid reports whether the credential is still usable at the given
// instant. A safety margin is subtracted from the lifetime so callers
// refresh shortly before the service would reject the token.
func (c *Credential) Valid(now time.Time, margin time.Duration) bool {
	if c == nil || c.Token == "" {
		return false
	}
	return now.Before(c.IssuedAt.Add(c.TTL - margin))
}
