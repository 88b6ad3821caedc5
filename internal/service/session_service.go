package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"timer-tracker/internal/domain"
	"timer-tracker/internal/repository"
)

// DefaultSessionTTL is how far each validated use pushes a session's expiration.
const DefaultSessionTTL = 24 * time.Hour

// ErrInvalidSession is returned for missing, unknown or expired tokens.
var ErrInvalidSession = fmt.Errorf("invalid session: %w", domain.ErrAuthentication)

// SessionService issues, validates and revokes opaque session tokens.
type SessionService interface {
	Issue(ctx context.Context, userID int64) (*domain.Session, error)
	// Resolve validates token and, on success, extends its expiration by the TTL from now.
	Resolve(ctx context.Context, token string) (*domain.Identity, error)
	Revoke(ctx context.Context, token string) error
	SweepExpired(ctx context.Context) (int64, error)
}

type sessionService struct {
	sessions repository.SessionRepository
	ttl      time.Duration
	clock    Clock
	newToken func() string
}

func NewSessionService(sessions repository.SessionRepository, ttl time.Duration, clock Clock) SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &sessionService{
		sessions: sessions,
		ttl:      ttl,
		clock:    clock,
		newToken: uuid.NewString,
	}
}

func (s *sessionService) Issue(ctx context.Context, userID int64) (*domain.Session, error) {
	now := s.clock.now()
	session := &domain.Session{
		Token:     s.newToken(),
		UserID:    userID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *sessionService) Resolve(ctx context.Context, token string) (*domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidSession
	}

	now := s.clock.now()
	identity, err := s.sessions.FindValid(ctx, token, now)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}

	if err := s.sessions.Extend(ctx, token, now.Add(s.ttl)); err != nil {
		return nil, err
	}
	return identity, nil
}

func (s *sessionService) Revoke(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}

func (s *sessionService) SweepExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.clock.now())
}
