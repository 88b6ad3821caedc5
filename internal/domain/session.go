package domain

import "time"

// Session binds an opaque token to a user until ExpiresAt.
type Session struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Valid reports whether the session is still usable at now.
func (s Session) Valid(now time.Time) bool {
	return s.ExpiresAt.After(now)
}

// Identity is the resolved owner of a validated session.
type Identity struct {
	UserID   int64
	Username string
	Token    string
}
