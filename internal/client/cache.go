package client

import (
	"encoding/json"
	"fmt"
	"sync"

	"timer-tracker/internal/protocol"
)

// Cache is the client's last known view of the user's timers, fed by push snapshots.
type Cache struct {
	mu        sync.RWMutex
	active    []protocol.Timer
	completed []protocol.Timer
	loaded    bool
}

func NewCache() *Cache {
	return &Cache{}
}

// Apply folds one push message into the cache. all_timers replaces everything;
// active_timers replaces only the active partition.
func (c *Cache) Apply(msg protocol.ServerMessage) error {
	switch msg.Type {
	case protocol.TypeAllTimers:
		active, completed := partition(msg.Payload)
		c.mu.Lock()
		c.active, c.completed, c.loaded = active, completed, true
		c.mu.Unlock()
	case protocol.TypeActiveTimers:
		active, _ := partition(msg.Payload)
		c.mu.Lock()
		c.active, c.loaded = active, true
		c.mu.Unlock()
	default:
		return fmt.Errorf("unknown push message type %q", msg.Type)
	}
	return nil
}

// ApplyRaw decodes and applies a raw push frame.
func (c *Cache) ApplyRaw(data []byte) error {
	var msg protocol.ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decode push message: %w", err)
	}
	return c.Apply(msg)
}

// Replace seeds the cache from a REST listing.
func (c *Cache) Replace(timers []protocol.Timer) {
	_ = c.Apply(protocol.ServerMessage{Type: protocol.TypeAllTimers, Payload: timers})
}

func (c *Cache) Active() []protocol.Timer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]protocol.Timer(nil), c.active...)
}

func (c *Cache) Completed() []protocol.Timer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]protocol.Timer(nil), c.completed...)
}

// Loaded reports whether any snapshot has arrived yet.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

func (c *Cache) Reset() {
	c.mu.Lock()
	c.active, c.completed, c.loaded = nil, nil, false
	c.mu.Unlock()
}

func partition(timers []protocol.Timer) (active, completed []protocol.Timer) {
	for _, t := range timers {
		if t.IsActive {
			active = append(active, t)
		} else {
			completed = append(completed, t)
		}
	}
	return active, completed
}
