package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"timer-tracker/internal/repository"
	"timer-tracker/internal/repository/sqlite"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	users []int64
}

func (b *recordingBroadcaster) NotifyUser(_ context.Context, userID int64) {
	b.mu.Lock()
	b.users = append(b.users, userID)
	b.mu.Unlock()
}

func (b *recordingBroadcaster) notified() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int64(nil), b.users...)
}

type fixture struct {
	clock       *fakeClock
	users       UserService
	sessions    SessionService
	timers      TimerService
	broadcaster *recordingBroadcaster
	timerRepo   repository.TimerRepository
}

func newFixture(t *testing.T, export ExportConfig) *fixture {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "timers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	userRepo := sqlite.NewUserRepository(db)
	sessionRepo := sqlite.NewSessionRepository(db)
	timerRepo := sqlite.NewTimerRepository(db)
	require.NoError(t, sqlite.InitAll(context.Background(), userRepo, sessionRepo, timerRepo))

	clock := newFakeClock()
	b := &recordingBroadcaster{}
	reader := NewTimerReader(timerRepo, clock.Now)
	return &fixture{
		clock:       clock,
		users:       NewUserService(userRepo, bcrypt.MinCost),
		sessions:    NewSessionService(sessionRepo, DefaultSessionTTL, clock.Now),
		timers:      NewTimerService(timerRepo, reader, b, export, clock.Now),
		broadcaster: b,
		timerRepo:   timerRepo,
	}
}
