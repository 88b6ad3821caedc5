package repository

import (
	"context"
	"time"

	"timer-tracker/internal/domain"
)

// TimerRepository exposes persistence operations for timers, always scoped to an owner.
type TimerRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, timer *domain.Timer) (int64, error)
	List(ctx context.Context, userID int64, onlyActive bool) ([]domain.Timer, error)
	// Stop ends the timer only if it is active and owned by userID.
	Stop(ctx context.Context, userID, timerID int64, end time.Time) (*domain.Timer, error)
	Delete(ctx context.Context, userID, timerID int64) error
}
