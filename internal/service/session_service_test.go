package service

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionService_IssueResolveRevoke(t *testing.T) {
	f := newFixture(t, ExportConfig{})
	ctx := context.Background()

	u, err := f.users.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	s1, err := f.sessions.Issue(ctx, u.ID)
	require.NoError(t, err)
	s2, err := f.sessions.Issue(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, s1.Token, s2.Token, "one session per login")

	id, err := f.sessions.Resolve(ctx, s1.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id.UserID)
	assert.Equal(t, "alice", id.Username)

	require.NoError(t, f.sessions.Revoke(ctx, s1.Token))
	_, err = f.sessions.Resolve(ctx, s1.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = f.sessions.Resolve(ctx, s2.Token)
	assert.NoError(t, err, "other sessions survive logout")

	_, err = f.sessions.Resolve(ctx, "   ")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionService_ExpiresAfterTTLWithoutUse(t *testing.T) {
	f := newFixture(t, ExportConfig{})
	ctx := context.Background()

	u, err := f.users.Register(ctx, "alice", "secret")
	require.NoError(t, err)
	s, err := f.sessions.Issue(ctx, u.ID)
	require.NoError(t, err)

	f.clock.Advance(DefaultSessionTTL + time.Millisecond)
	_, err = f.sessions.Resolve(ctx, s.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionService_UseExtendsExpiration(t *testing.T) {
	f := newFixture(t, ExportConfig{})
	ctx := context.Background()

	u, err := f.users.Register(ctx, "alice", "secret")
	require.NoError(t, err)
	s, err := f.sessions.Issue(ctx, u.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		f.clock.Advance(20 * time.Hour)
		_, err = f.sessions.Resolve(ctx, s.Token)
		require.NoError(t, err, "use %d", i)
	}
}

func TestSessionSweeper_RemovesExpired(t *testing.T) {
	f := newFixture(t, ExportConfig{})
	ctx := context.Background()

	u, err := f.users.Register(ctx, "alice", "secret")
	require.NoError(t, err)
	_, err = f.sessions.Issue(ctx, u.ID)
	require.NoError(t, err)
	f.clock.Advance(DefaultSessionTTL)
	live, err := f.sessions.Issue(ctx, u.ID)
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	sweeper := NewSessionSweeper(f.sessions, time.Hour, logger)
	sweeper.Start(ctx)
	require.Eventually(t, func() bool {
		for _, e := range hook.AllEntries() {
			if e.Level == logrus.InfoLevel && e.Data["deleted"] == int64(1) {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
	sweeper.Shutdown()

	_, err = f.sessions.Resolve(ctx, live.Token)
	assert.NoError(t, err)
}
