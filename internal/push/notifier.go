package push

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"timer-tracker/internal/domain"
	"timer-tracker/internal/protocol"
)

// TimerLister reads a user's annotated timers.
type TimerLister interface {
	ListTimers(ctx context.Context, userID int64, onlyActive bool) ([]domain.TimerView, error)
}

type Config struct {
	// Interval between active-only heartbeats.
	Interval     time.Duration
	WriteTimeout time.Duration
	PongWait     time.Duration
	SendBuffer   int
	MaxMessage   int64
	Logger       *logrus.Logger

	// AuthTimeout bounds how long a connection may stay open without authenticating.
	AuthTimeout time.Duration
}

// Notifier keeps every live connection's view of its owner's timers fresh.
type Notifier struct {
	cfg      Config
	timers   TimerLister
	sessions SessionResolver
	registry *Registry
	upgrader websocket.Upgrader
	logger   *logrus.Entry

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewNotifier(cfg Config, timers TimerLister, sessions SessionResolver, registry *Registry) *Notifier {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = 10 * time.Second
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 16
	}
	if cfg.MaxMessage <= 0 {
		cfg.MaxMessage = 4096
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Notifier{
		cfg:      cfg,
		timers:   timers,
		sessions: sessions,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: cfg.Logger.WithField("component", "push"),
	}
}

func (n *Notifier) Registry() *Registry {
	return n.registry
}

// Start launches the periodic broadcast loop.
func (n *Notifier) Start(ctx context.Context) error {
	n.ctx, n.cancel = context.WithCancel(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ticker := time.NewTicker(n.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-n.ctx.Done():
				return
			case <-ticker.C:
				n.BroadcastActive(n.ctx)
			}
		}
	}()

	n.logger.Infof("push notifier started, interval %s", n.cfg.Interval)
	return nil
}

// Shutdown stops the broadcast loop and closes every live connection.
func (n *Notifier) Shutdown() {
	if n.cancel != nil {
		n.cancel()
	}
	n.wg.Wait()
	n.registry.CloseAll()
	n.logger.Info("push notifier stopped")
}

// BroadcastActive sends each bound user's active timers to all of that user's peers.
func (n *Notifier) BroadcastActive(ctx context.Context) {
	for _, userID := range n.registry.Users() {
		if ctx.Err() != nil {
			return
		}
		n.broadcast(ctx, userID, true)
	}
}

// NotifyUser sends a full snapshot to every peer bound to userID.
func (n *Notifier) NotifyUser(ctx context.Context, userID int64) {
	n.broadcast(ctx, userID, false)
}

func (n *Notifier) broadcast(ctx context.Context, userID int64, onlyActive bool) {
	peers := n.registry.Peers(userID)
	if len(peers) == 0 {
		return
	}

	msg, err := n.snapshot(ctx, userID, onlyActive)
	if err != nil {
		n.logger.WithField("user_id", userID).Warnf("load snapshot: %v", err)
		return
	}
	for _, peer := range peers {
		// a full queue or closed peer is skipped until it reconnects
		_ = peer.Send(msg)
	}
}

func (n *Notifier) snapshot(ctx context.Context, userID int64, onlyActive bool) (protocol.ServerMessage, error) {
	views, err := n.timers.ListTimers(ctx, userID, onlyActive)
	if err != nil {
		return protocol.ServerMessage{}, err
	}
	kind := protocol.TypeAllTimers
	if onlyActive {
		kind = protocol.TypeActiveTimers
	}
	return protocol.Snapshot(kind, views), nil
}

// Bind registers peer for userID and sends it a full snapshot.
func (n *Notifier) Bind(ctx context.Context, userID int64, peer Peer) {
	n.registry.Register(userID, peer)

	msg, err := n.snapshot(ctx, userID, false)
	if err != nil {
		n.logger.WithField("user_id", userID).Warnf("load initial snapshot: %v", err)
		return
	}
	_ = peer.Send(msg)
}

// ServeWS upgrades the request and runs the connection until it closes.
func (n *Notifier) ServeWS(c *gin.Context) {
	conn, err := n.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		n.logger.Warnf("websocket upgrade: %v", err)
		return
	}

	peer := newWSPeer(conn, n.cfg.SendBuffer, n.cfg.WriteTimeout, n.cfg.PongWait*9/10)
	go peer.writeLoop()
	defer func() {
		n.registry.Unregister(peer)
		peer.Close()
	}()

	n.readLoop(c.Request.Context(), conn, peer)
}

func (n *Notifier) readLoop(ctx context.Context, conn *websocket.Conn, peer *wsPeer) {
	logger := n.logger.WithField("remote", conn.RemoteAddr().String())

	conn.SetReadLimit(n.cfg.MaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(n.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(n.cfg.PongWait))
	})

	authTimer := time.AfterFunc(n.cfg.AuthTimeout, func() {
		logger.Info("push auth timed out")
		peer.reject("authentication timeout")
	})
	defer authTimer.Stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debugf("websocket read: %v", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(n.cfg.PongWait))

		var msg protocol.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warnf("malformed push message: %v", err)
			continue
		}
		if msg.Type != protocol.TypeAuth {
			logger.WithField("type", msg.Type).Debug("ignoring push message")
			continue
		}

		result := Handshake(ctx, n.sessions, msg)
		if result.Status == Rejected {
			logger.WithField("reason", result.Reason).Info("push auth rejected")
			n.registry.Unregister(peer)
			peer.reject(result.Reason)
			return
		}
		if !authTimer.Stop() && peer.closed() {
			return
		}
		logger.WithField("user_id", result.UserID).Debug("push connection authenticated")
		n.Bind(ctx, result.UserID, peer)
	}
}
