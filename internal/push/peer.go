package push

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"timer-tracker/internal/protocol"
)

// wsPeer owns one websocket. All data frames are written by writeLoop; Send only enqueues.
type wsPeer struct {
	conn         *websocket.Conn
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	pingPeriod   time.Duration
}

func newWSPeer(conn *websocket.Conn, buffer int, writeTimeout, pingPeriod time.Duration) *wsPeer {
	return &wsPeer{
		conn:         conn,
		send:         make(chan []byte, buffer),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		pingPeriod:   pingPeriod,
	}
}

func (p *wsPeer) Send(msg protocol.ServerMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}

	select {
	case <-p.done:
		return false
	default:
	}

	select {
	case p.send <- data:
		return true
	default:
		return false
	}
}

func (p *wsPeer) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}

func (p *wsPeer) closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// reject sends a close frame carrying reason and closes the connection.
func (p *wsPeer) reject(reason string) {
	deadline := time.Now().Add(p.writeTimeout)
	_ = p.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), deadline)
	p.Close()
}

func (p *wsPeer) writeLoop() {
	ticker := time.NewTicker(p.pingPeriod)
	defer func() {
		ticker.Stop()
		p.Close()
	}()

	for {
		select {
		case <-p.done:
			return
		case data := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
