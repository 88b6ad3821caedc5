package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"timer-tracker/internal/protocol"
	"timer-tracker/internal/push"
	"timer-tracker/internal/repository/sqlite"
	"timer-tracker/internal/service"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testServer struct {
	router *gin.Engine
	clock  *testClock
}

func newTestServer(t *testing.T, limit RateLimit) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "timers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	userRepo := sqlite.NewUserRepository(db)
	sessionRepo := sqlite.NewSessionRepository(db)
	timerRepo := sqlite.NewTimerRepository(db)
	require.NoError(t, sqlite.InitAll(context.Background(), userRepo, sessionRepo, timerRepo))

	clock := &testClock{now: time.UnixMilli(1_700_000_000_000)}
	logger, _ := test.NewNullLogger()

	sessions := service.NewSessionService(sessionRepo, service.DefaultSessionTTL, clock.Now)
	reader := service.NewTimerReader(timerRepo, clock.Now)
	notifier := push.NewNotifier(push.Config{Logger: logger}, reader, sessions, nil)
	timers := service.NewTimerService(timerRepo, reader, notifier, service.ExportConfig{}, clock.Now)
	users := service.NewUserService(userRepo, bcrypt.MinCost)

	router := gin.New()
	NewHandler(users, sessions, timers, notifier, limit, logger).RegisterRoutes(router)
	return &testServer{router: router, clock: clock}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(sessionHeader, token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) signup(t *testing.T, username string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/signup", "", protocol.Credentials{Username: username, Password: "secret"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp protocol.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)
	return resp.SessionID
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestSignupLoginLogout(t *testing.T) {
	s := newTestServer(t, RateLimit{})
	first := s.signup(t, "alice")

	w := s.do(t, http.MethodPost, "/signup", "", protocol.Credentials{Username: "alice", Password: "other"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/login", "", protocol.Credentials{Username: "alice", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/login", "", protocol.Credentials{Username: "alice", Password: "secret"})
	require.Equal(t, http.StatusOK, w.Code)
	second := decode[protocol.SessionResponse](t, w).SessionID
	assert.NotEqual(t, first, second)

	w = s.do(t, http.MethodGet, "/api/user", second, nil)
	require.Equal(t, http.StatusOK, w.Code)
	user := decode[struct {
		User protocol.User `json:"user"`
	}](t, w).User
	assert.Equal(t, "alice", user.Username)

	w = s.do(t, http.MethodPost, "/logout", second, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/timers", second, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/timers", first, nil).Code)

	// logging out without a session is a no-op
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/logout", "", nil).Code)
}

func TestSignupValidation(t *testing.T) {
	s := newTestServer(t, RateLimit{})

	cases := []struct {
		name   string
		body   protocol.Credentials
		reason string
	}{
		{"missing password", protocol.Credentials{Username: "alice"}, "credentials_required"},
		{"short username", protocol.Credentials{Username: "al", Password: "x"}, "username_too_short"},
		{"bad characters", protocol.Credentials{Username: "al ice!", Password: "x"}, "username_invalid"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/signup", "", tc.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tc.reason, decode[protocol.Error](t, w).Reason)
		})
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	s := newTestServer(t, RateLimit{})

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/user"},
		{http.MethodGet, "/api/timers"},
		{http.MethodPost, "/api/timers"},
		{http.MethodPost, "/api/timers/1/stop"},
		{http.MethodDelete, "/api/timers/1"},
		{http.MethodPost, "/api/timers/export"},
	}
	for _, r := range routes {
		assert.Equal(t, http.StatusUnauthorized, s.do(t, r.method, r.path, "", nil).Code, r.path)
		assert.Equal(t, http.StatusUnauthorized, s.do(t, r.method, r.path, "not-a-session", nil).Code, r.path)
	}
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", "", nil).Code)
}

func TestSessionTokenSources(t *testing.T) {
	s := newTestServer(t, RateLimit{})
	token := s.signup(t, "alice")

	req := httptest.NewRequest(http.MethodGet, "/api/timers?sessionId="+token, nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/timers", nil)
	req.AddCookie(&http.Cookie{Name: "sessionId", Value: token})
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionExpiresAfterIdleDay(t *testing.T) {
	s := newTestServer(t, RateLimit{})
	token := s.signup(t, "alice")

	s.clock.Advance(23 * time.Hour)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/timers", token, nil).Code)

	// each use pushes expiry out another day
	s.clock.Advance(23 * time.Hour)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/timers", token, nil).Code)

	s.clock.Advance(24 * time.Hour)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/timers", token, nil).Code)
}

func TestTimerLifecycle(t *testing.T) {
	s := newTestServer(t, RateLimit{})
	token := s.signup(t, "alice")

	w := s.do(t, http.MethodPost, "/api/timers", token, protocol.CreateTimerRequest{Description: "write report"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode[protocol.Timer](t, w)
	assert.True(t, created.IsActive)
	assert.Equal(t, "write report", created.Description)
	assert.Nil(t, created.End)

	s.clock.Advance(90 * time.Second)

	w = s.do(t, http.MethodGet, "/api/timers?active=true", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	active := decode[[]protocol.Timer](t, w)
	require.Len(t, active, 1)
	require.NotNil(t, active[0].Progress)
	assert.Equal(t, int64(90_000), *active[0].Progress)

	w = s.do(t, http.MethodPost, "/api/timers/"+itoa(created.ID)+"/stop", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stopped := decode[protocol.Timer](t, w)
	assert.False(t, stopped.IsActive)
	require.NotNil(t, stopped.Duration)
	assert.Equal(t, int64(90_000), *stopped.Duration)

	w = s.do(t, http.MethodPost, "/api/timers/"+itoa(created.ID)+"/stop", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/timers?active=true", token, nil)
	assert.Empty(t, decode[[]protocol.Timer](t, w))

	w = s.do(t, http.MethodDelete, "/api/timers/"+itoa(created.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Timer deleted successfully", decode[map[string]string](t, w)["message"])

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/timers/"+itoa(created.ID), token, nil).Code)
	w = s.do(t, http.MethodGet, "/api/timers", token, nil)
	assert.Empty(t, decode[[]protocol.Timer](t, w))
}

func TestTimerInputErrors(t *testing.T) {
	s := newTestServer(t, RateLimit{})
	token := s.signup(t, "alice")

	w := s.do(t, http.MethodPost, "/api/timers", token, protocol.CreateTimerRequest{Description: "   "})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "description_required", decode[protocol.Error](t, w).Reason)

	w = s.do(t, http.MethodPost, "/api/timers/abc/stop", token, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid timer id", decode[protocol.Error](t, w).Error)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodDelete, "/api/timers/0", token, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/timers/999/stop", token, nil).Code)
}

func TestUsersCannotTouchEachOthersTimers(t *testing.T) {
	s := newTestServer(t, RateLimit{})
	alice := s.signup(t, "alice")
	bob := s.signup(t, "bob")

	w := s.do(t, http.MethodPost, "/api/timers", alice, protocol.CreateTimerRequest{Description: "alice work"})
	require.Equal(t, http.StatusOK, w.Code)
	timer := decode[protocol.Timer](t, w)

	assert.Empty(t, decode[[]protocol.Timer](t, s.do(t, http.MethodGet, "/api/timers", bob, nil)))
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/timers/"+itoa(timer.ID)+"/stop", bob, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/timers/"+itoa(timer.ID), bob, nil).Code)

	list := decode[[]protocol.Timer](t, s.do(t, http.MethodGet, "/api/timers?active=true", alice, nil))
	require.Len(t, list, 1)
	assert.True(t, list[0].IsActive)
}

func TestExportDisabled(t *testing.T) {
	s := newTestServer(t, RateLimit{})
	token := s.signup(t, "alice")

	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, http.MethodPost, "/api/timers/export", token, nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, http.MethodGet, "/api/timers/exports", token, nil).Code)
}

func TestCredentialEndpointsAreRateLimited(t *testing.T) {
	s := newTestServer(t, RateLimit{RPS: 0.001, Burst: 2})

	creds := protocol.Credentials{Username: "nobody", Password: "x"}
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/login", "", creds).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/login", "", creds).Code)

	w := s.do(t, http.MethodPost, "/login", "", creds)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate limit exceeded", decode[protocol.Error](t, w).Error)

	// other routes are unaffected
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", "", nil).Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, RateLimit{})
	w := s.do(t, http.MethodOptions, "/api/timers", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), sessionHeader)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func dialPush(t *testing.T, s *testServer, token string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.WriteJSON(protocol.ClientMessage{Type: protocol.TypeAuth, SessionID: token}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	return conn
}

func TestPushHandshakeRejectsIdleSession(t *testing.T) {
	s := newTestServer(t, RateLimit{})
	token := s.signup(t, "alice")

	var msg protocol.ServerMessage
	require.NoError(t, dialPush(t, s, token).ReadJSON(&msg))
	assert.Equal(t, protocol.TypeAllTimers, msg.Type)

	// the handshake above extended the session; let it lapse
	s.clock.Advance(24*time.Hour + time.Millisecond)

	_, _, err := dialPush(t, s, token).ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
	assert.Equal(t, "invalid session", closeErr.Text)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/timers", token, nil).Code)
}
