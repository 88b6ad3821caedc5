package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"timer-tracker/internal/domain"
	"timer-tracker/internal/repository"
)

const createSessionsTable = `
CREATE TABLE IF NOT EXISTS sessions (
	token TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
`

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) repository.SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createSessionsTable); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	return nil
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	if _, err := r.db.ExecContext(ctx, `
INSERT INTO sessions (token, user_id, expires_at, created_at)
VALUES (?, ?, ?, ?)`,
		session.Token,
		session.UserID,
		toMillis(session.ExpiresAt),
		toMillis(session.CreatedAt),
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) FindValid(ctx context.Context, token string, now time.Time) (*domain.Identity, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT u.id, u.username
FROM sessions s
JOIN users u ON s.user_id = u.id
WHERE s.token = ? AND s.expires_at > ?`,
		token,
		toMillis(now),
	)

	identity := domain.Identity{Token: token}
	if err := row.Scan(&identity.UserID, &identity.Username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &identity, nil
}

func (r *SessionRepository) Extend(ctx context.Context, token string, expiresAt time.Time) error {
	if _, err := r.db.ExecContext(ctx, `
UPDATE sessions
SET expires_at=?
WHERE token=?`,
		toMillis(expiresAt),
		token,
	); err != nil {
		return fmt.Errorf("extend session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token=?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired sessions rows affected: %w", err)
	}
	return n, nil
}
