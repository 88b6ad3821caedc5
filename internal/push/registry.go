package push

import (
	"sort"
	"sync"

	"timer-tracker/internal/protocol"
)

// Peer is one live push connection.
type Peer interface {
	// Send queues msg without blocking and reports whether it was accepted.
	Send(msg protocol.ServerMessage) bool
	Close()
}

// Registry binds live peers to the users they authenticated as.
type Registry struct {
	mu     sync.RWMutex
	byUser map[int64]map[Peer]struct{}
	owner  map[Peer]int64
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[int64]map[Peer]struct{}),
		owner:  make(map[Peer]int64),
	}
}

// Register binds peer to userID, replacing any previous binding of the same peer.
func (r *Registry) Register(userID int64, peer Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.unbindLocked(peer)
	peers, ok := r.byUser[userID]
	if !ok {
		peers = make(map[Peer]struct{})
		r.byUser[userID] = peers
	}
	peers[peer] = struct{}{}
	r.owner[peer] = userID
}

// Unregister removes peer. It is a no-op for unknown peers.
func (r *Registry) Unregister(peer Peer) {
	r.mu.Lock()
	r.unbindLocked(peer)
	r.mu.Unlock()
}

func (r *Registry) unbindLocked(peer Peer) {
	userID, ok := r.owner[peer]
	if !ok {
		return
	}
	delete(r.owner, peer)
	peers := r.byUser[userID]
	delete(peers, peer)
	if len(peers) == 0 {
		delete(r.byUser, userID)
	}
}

// UserOf returns the user peer is bound to.
func (r *Registry) UserOf(peer Peer) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.owner[peer]
	return userID, ok
}

// Peers returns a snapshot of the peers bound to userID.
func (r *Registry) Peers(userID int64) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]Peer, 0, len(r.byUser[userID]))
	for peer := range r.byUser[userID] {
		peers = append(peers, peer)
	}
	return peers
}

// Users returns the ids of every user with at least one bound peer, ascending.
func (r *Registry) Users() []int64 {
	r.mu.RLock()
	users := make([]int64, 0, len(r.byUser))
	for userID := range r.byUser {
		users = append(users, userID)
	}
	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owner)
}

// CloseAll closes and forgets every bound peer.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	peers := make([]Peer, 0, len(r.owner))
	for peer := range r.owner {
		peers = append(peers, peer)
	}
	r.byUser = make(map[int64]map[Peer]struct{})
	r.owner = make(map[Peer]int64)
	r.mu.Unlock()

	for _, peer := range peers {
		peer.Close()
	}
}
