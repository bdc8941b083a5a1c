package hub

import "sync"

// Registry tracks live connections and which user owns each. Registering and
// unregistering report the user's new live-connection count to the transition
// listener, which is how the presence tracker observes zero crossings.
type Registry struct {
	mu           sync.RWMutex
	conns        map[string]Conn
	byUser       map[string]map[string]Conn
	onTransition func(userID string, live int)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]Conn),
		byUser: make(map[string]map[string]Conn),
	}
}

// OnTransition sets the listener invoked with the user's live-connection
// count after every register/unregister. The listener runs while the registry
// lock is held so counts are observed in order; it must not call back into
// the registry.
func (r *Registry) OnTransition(fn func(userID string, live int)) {
	r.onTransition = fn
}

// Register adds a connection. Registration never fails; duplicate ids
// overwrite, which cannot happen with transport-assigned ids.
func (r *Registry) Register(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[c.ID()] = c
	userConns, ok := r.byUser[c.UserID()]
	if !ok {
		userConns = make(map[string]Conn)
		r.byUser[c.UserID()] = userConns
	}
	userConns[c.ID()] = c

	if r.onTransition != nil {
		r.onTransition(c.UserID(), len(userConns))
	}
}

// Unregister removes a connection. Idempotent: unknown ids are a no-op.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok {
		return
	}
	delete(r.conns, connID)

	userConns := r.byUser[c.UserID()]
	delete(userConns, connID)
	live := len(userConns)
	if live == 0 {
		delete(r.byUser, c.UserID())
	}

	if r.onTransition != nil {
		r.onTransition(c.UserID(), live)
	}
}

// Get returns the connection for an id, if still registered.
func (r *Registry) Get(connID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	return c, ok
}

// ConnectionsForUser returns a snapshot of the user's live connections,
// used to fan out to all of a user's devices.
func (r *Registry) ConnectionsForUser(userID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userConns := r.byUser[userID]
	out := make([]Conn, 0, len(userConns))
	for _, c := range userConns {
		out = append(out, c)
	}
	return out
}
