package server

import (
	"errors"
	"sort"
	"sync"

	"github.com/NicolasHaas/chatrelay/pkg/model"
)

var (
	ErrUsernameTaken = errors.New("server: username already in use")
	ErrNotRegistered = errors.New("server: username not registered")
	ErrAlreadyInRoom = errors.New("server: already in room")
	ErrNotInRoom     = errors.New("server: not in room")
)

// Registry is the single consistency domain for identified clients: who is
// connected, their presence status, and the rooms they belong to. Every
// mutation and every broadcast snapshot goes through mu.
type Registry struct {
	mu     sync.RWMutex
	peers  map[string]*Peer               // username -> connection
	status map[string]model.Status        // username -> presence
	rooms  map[string]map[string]struct{} // username -> joined rooms
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		peers:  make(map[string]*Peer),
		status: make(map[string]model.Status),
		rooms:  make(map[string]map[string]struct{}),
	}
}

// Register claims username for peer. The uniqueness check and the insert
// happen under one lock, so of several concurrent identical claims exactly
// one wins. The new entry starts ACTIVE with no rooms.
func (r *Registry) Register(username string, peer *Peer) error {
	if err := model.ValidateUsername(username); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.peers[username]; taken {
		return ErrUsernameTaken
	}
	r.peers[username] = peer
	r.status[username] = model.StatusActive
	r.rooms[username] = make(map[string]struct{})
	return nil
}

// Unregister removes username from every store, but only while it still
// belongs to peer. Returns false if there was nothing to remove.
func (r *Registry) Unregister(username string, peer *Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.peers[username]
	if !ok || current != peer {
		return false
	}
	delete(r.peers, username)
	delete(r.status, username)
	delete(r.rooms, username)
	return true
}

// Lookup returns the peer registered under username.
func (r *Registry) Lookup(username string) (*Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[username]
	return p, ok
}

// Snapshot returns every registered peer as of one instant.
func (r *Registry) Snapshot() []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		result = append(result, p)
	}
	return result
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// SetStatus records a new presence status for username.
func (r *Registry) SetStatus(username string, status model.Status) error {
	if !status.Valid() {
		return model.ErrInvalidStatus
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.peers[username]; !ok {
		return ErrNotRegistered
	}
	r.status[username] = status
	return nil
}

// Users returns a copy of the presence table.
func (r *Registry) Users() map[string]model.Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]model.Status, len(r.status))
	for name, st := range r.status {
		result[name] = st
	}
	return result
}

// Session returns a point-in-time view of one client.
func (r *Registry) Session(username string) (model.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.peers[username]; !ok {
		return model.Session{}, false
	}
	return model.Session{
		Username: username,
		Status:   r.status[username],
		Rooms:    sortedKeys(r.rooms[username]),
	}, true
}

func sortedKeys(set map[string]struct{}) []string {
	result := make([]string, 0, len(set))
	for k := range set {
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}
