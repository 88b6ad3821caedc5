package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SessionSweeper periodically deletes expired sessions.
type SessionSweeper struct {
	sessions SessionService
	interval time.Duration
	logger   *logrus.Entry

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewSessionSweeper(sessions SessionService, interval time.Duration, logger *logrus.Logger) *SessionSweeper {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &SessionSweeper{
		sessions: sessions,
		interval: interval,
		logger:   logger.WithField("component", "session-sweeper"),
	}
}

// Start sweeps once immediately and then on every interval until ctx ends or Shutdown is called.
func (s *SessionSweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweep(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

func (s *SessionSweeper) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SessionSweeper) sweep(ctx context.Context) {
	n, err := s.sessions.SweepExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Errorf("session cleanup: %v", err)
		}
		return
	}
	s.logger.WithField("deleted", n).Info("expired sessions cleaned up")
}
