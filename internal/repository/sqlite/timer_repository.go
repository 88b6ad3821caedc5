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

const createTimersTable = `
CREATE TABLE IF NOT EXISTS timers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	description TEXT NOT NULL,
	start_time INTEGER NOT NULL,
	end_time INTEGER NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE,
	CHECK ((is_active = 1 AND end_time IS NULL) OR (is_active = 0 AND end_time IS NOT NULL))
);
CREATE INDEX IF NOT EXISTS idx_timers_user_active ON timers(user_id, is_active);
`

const timerColumns = `id, user_id, description, start_time, end_time, is_active, created_at`

type TimerRepository struct {
	db *sql.DB
}

func NewTimerRepository(db *sql.DB) repository.TimerRepository {
	return &TimerRepository{db: db}
}

func (r *TimerRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTimersTable); err != nil {
		return fmt.Errorf("create timers table: %w", err)
	}
	return nil
}

func (r *TimerRepository) Create(ctx context.Context, timer *domain.Timer) (int64, error) {
	if timer.CreatedAt.IsZero() {
		timer.CreatedAt = timer.Start
	}
	timer.Active = true
	timer.End = nil

	res, err := r.db.ExecContext(ctx, `
INSERT INTO timers (user_id, description, start_time, end_time, is_active, created_at)
VALUES (?, ?, ?, NULL, 1, ?)`,
		timer.UserID,
		timer.Description,
		toMillis(timer.Start),
		toMillis(timer.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert timer: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}
	timer.ID = id
	// reload precision-truncated timestamps so callers see what is stored
	timer.Start = fromMillis(toMillis(timer.Start))
	timer.CreatedAt = fromMillis(toMillis(timer.CreatedAt))
	return id, nil
}

func (r *TimerRepository) List(ctx context.Context, userID int64, onlyActive bool) ([]domain.Timer, error) {
	query := `
SELECT ` + timerColumns + `
FROM timers
WHERE user_id=?`
	if onlyActive {
		query += ` AND is_active=1`
	}
	query += `
ORDER BY created_at DESC, start_time DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query timers: %w", err)
	}
	defer rows.Close()

	timers := []domain.Timer{}
	for rows.Next() {
		timer, err := scanTimer(rows)
		if err != nil {
			return nil, err
		}
		timers = append(timers, *timer)
	}

	return timers, rows.Err()
}

func (r *TimerRepository) Stop(ctx context.Context, userID, timerID int64, end time.Time) (*domain.Timer, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE timers
SET end_time=?, is_active=0
WHERE id=? AND user_id=? AND is_active=1
RETURNING `+timerColumns,
		toMillis(end),
		timerID,
		userID,
	)

	timer, err := scanTimer(row)
	if err != nil {
		return nil, err
	}
	return timer, nil
}

func (r *TimerRepository) Delete(ctx context.Context, userID, timerID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM timers WHERE id=? AND user_id=?`, timerID, userID)
	if err != nil {
		return fmt.Errorf("delete timer: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("timer delete rows affected: %w", err)
	}
	if aff == 0 {
		return fmt.Errorf("timer %d: %w", timerID, domain.ErrNotFound)
	}
	return nil
}

func scanTimer(scanner interface {
	Scan(dest ...any) error
}) (*domain.Timer, error) {
	var (
		timer     domain.Timer
		start     int64
		end       sql.NullInt64
		active    bool
		createdAt int64
	)

	if err := scanner.Scan(
		&timer.ID,
		&timer.UserID,
		&timer.Description,
		&start,
		&end,
		&active,
		&createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("timer: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scan timer: %w", err)
	}

	timer.Start = fromMillis(start)
	timer.CreatedAt = fromMillis(createdAt)
	timer.Active = active
	if end.Valid {
		t := fromMillis(end.Int64)
		timer.End = &t
	}

	return &timer, nil
}
