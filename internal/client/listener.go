package client

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"timer-tracker/internal/protocol"
)

// Listener keeps a push connection open and feeds every snapshot into a Cache.
type Listener struct {
	url            string
	token          string
	cache          *Cache
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
	logger         *logrus.Entry
}

func NewListener(wsURL, token string, cache *Cache, reconnectDelay time.Duration, logger *logrus.Logger) *Listener {
	if reconnectDelay <= 0 {
		reconnectDelay = 3 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Listener{
		url:            wsURL,
		token:          token,
		cache:          cache,
		dialer:         websocket.DefaultDialer,
		reconnectDelay: reconnectDelay,
		logger:         logger.WithField("component", "listener"),
	}
}

// Run connects, authenticates and reads snapshots, reconnecting after a delay
// whenever the connection drops, until ctx ends.
func (l *Listener) Run(ctx context.Context) {
	for {
		err := l.session(ctx)
		if ctx.Err() != nil {
			return
		}
		l.logger.Debugf("push connection lost: %v", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.reconnectDelay):
		}
	}
}

func (l *Listener) session(ctx context.Context) error {
	conn, _, err := l.dialer.DialContext(ctx, l.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// unblock ReadMessage on cancellation
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := conn.WriteJSON(protocol.ClientMessage{Type: protocol.TypeAuth, SessionID: l.token}); err != nil {
		return err
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.ClosePolicyViolation {
				l.logger.Warnf("push channel rejected session: %s", closeErr.Text)
			}
			return err
		}
		if err := l.cache.ApplyRaw(data); err != nil {
			l.logger.Debugf("ignoring push frame: %v", err)
		}
	}
}
