package chat

import (
	"sync"

	"github.com/samber/lo"
)

// Conn is one live connection of an identity
type Conn interface {
	ID() string
	// Send queues a frame without blocking. An error means this connection is gone.
	Send(frame OutboundFrame) error
}

// connSet holds the live connections of one identity. Once it is emptied and
// dropped from the registry it is marked dead so a racing Add retries on a fresh set.
type connSet struct {
	mu    sync.Mutex
	conns []Conn
	dead  bool
}

// Registry maps identities to their live connections. Mutations and iteration on
// one identity are serialised; different identities never contend past the map lookup.
type Registry struct {
	mu   sync.Mutex
	sets map[string]*connSet
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{sets: make(map[string]*connSet)}
}

func (r *Registry) lookup(identity string, create bool) *connSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.sets[identity]
	if set == nil && create {
		set = &connSet{}
		r.sets[identity] = set
	}
	return set
}

// Add registers c under identity
func (r *Registry) Add(identity string, c Conn) {
	for {
		set := r.lookup(identity, true)
		set.mu.Lock()
		if set.dead {
			set.mu.Unlock()
			continue
		}
		set.conns = append(set.conns, c)
		set.mu.Unlock()
		return
	}
}

// Remove unregisters c and reports whether it was present. The identity's entry
// is dropped once its last connection leaves.
func (r *Registry) Remove(identity string, c Conn) bool {
	set := r.lookup(identity, false)
	if set == nil {
		return false
	}

	set.mu.Lock()
	defer set.mu.Unlock()

	idx := lo.IndexOf(set.conns, c)
	if idx < 0 {
		return false
	}
	set.conns = append(set.conns[:idx], set.conns[idx+1:]...)

	if len(set.conns) == 0 {
		set.dead = true
		r.mu.Lock()
		if r.sets[identity] == set {
			delete(r.sets, identity)
		}
		r.mu.Unlock()
	}
	return true
}

// Each calls fn for every live connection of identity while holding that
// identity's lock, so concurrent pushes to one identity never interleave.
// fn must not call back into the registry for the same identity.
func (r *Registry) Each(identity string, fn func(Conn)) {
	set := r.lookup(identity, false)
	if set == nil {
		return
	}
	set.mu.Lock()
	defer set.mu.Unlock()
	for _, c := range set.conns {
		fn(c)
	}
}

// Online reports whether identity has at least one live connection
func (r *Registry) Online(identity string) bool {
	set := r.lookup(identity, false)
	if set == nil {
		return false
	}
	set.mu.Lock()
	defer set.mu.Unlock()
	return len(set.conns) > 0
}

// Connections returns the number of live connections of identity
func (r *Registry) Connections(identity string) int {
	set := r.lookup(identity, false)
	if set == nil {
		return 0
	}
	set.mu.Lock()
	defer set.mu.Unlock()
	return len(set.conns)
}

// Identities returns every identity with a live connection
func (r *Registry) Identities() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Keys(r.sets)
}
