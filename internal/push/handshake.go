package push

import (
	"context"
	"errors"
	"strings"

	"timer-tracker/internal/domain"
	"timer-tracker/internal/protocol"
)

// HandshakeStatus is the outcome of a push channel auth message.
type HandshakeStatus int

const (
	Rejected HandshakeStatus = iota
	Authenticated
)

func (s HandshakeStatus) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "rejected"
}

// HandshakeResult is either Authenticated with a UserID or Rejected with a Reason.
type HandshakeResult struct {
	Status HandshakeStatus
	UserID int64
	Reason string
}

func authenticated(userID int64) HandshakeResult {
	return HandshakeResult{Status: Authenticated, UserID: userID}
}

func rejected(reason string) HandshakeResult {
	return HandshakeResult{Status: Rejected, Reason: reason}
}

// SessionResolver validates session tokens.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*domain.Identity, error)
}

// Handshake validates an auth message against the session store.
func Handshake(ctx context.Context, sessions SessionResolver, msg protocol.ClientMessage) HandshakeResult {
	if msg.Type != protocol.TypeAuth {
		return rejected("expected auth message")
	}
	token := strings.TrimSpace(msg.SessionID)
	if token == "" {
		return rejected("missing session id")
	}

	identity, err := sessions.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrAuthentication) {
			return rejected("invalid session")
		}
		return rejected("session lookup failed")
	}
	return authenticated(identity.UserID)
}
