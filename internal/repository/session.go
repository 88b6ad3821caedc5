package repository

import (
	"context"
	"time"

	"timer-tracker/internal/domain"
)

// SessionRepository stores opaque session tokens and their expirations.
type SessionRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, session *domain.Session) error
	// FindValid returns the identity behind token when its expiration is after now.
	FindValid(ctx context.Context, token string, now time.Time) (*domain.Identity, error)
	Extend(ctx context.Context, token string, expiresAt time.Time) error
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
