package hub

import (
	"context"
	"log"
	"sync"
	"time"

	"kiochat-ws/internal/models"
)

// LastSeenStore persists last-seen timestamps across restarts. Writes are
// best-effort and never block a presence transition.
type LastSeenStore interface {
	SetLastSeen(ctx context.Context, userID string, t time.Time) error
	GetLastSeen(ctx context.Context, userID string) (time.Time, bool, error)
}

type presenceState struct {
	count   int
	profile models.TypingUser
}

// PresenceTracker derives per-user online state from the registry's
// live-connection counts. Only zero crossings are externally visible, so
// multi-device churn and reconnect races never emit spurious offline events.
type PresenceTracker struct {
	mu    sync.Mutex
	rooms *RoomRouter
	store LastSeenStore
	users map[string]*presenceState
}

// NewPresenceTracker creates a tracker broadcasting through the room router.
func NewPresenceTracker(rooms *RoomRouter, store LastSeenStore) *PresenceTracker {
	return &PresenceTracker{
		rooms: rooms,
		store: store,
		users: make(map[string]*presenceState),
	}
}

// HandleTransition consumes a registry transition. Safe to call from the
// registry's locked section: state is updated synchronously, broadcasts and
// store writes happen on a separate goroutine.
func (t *PresenceTracker) HandleTransition(userID string, live int) {
	t.mu.Lock()
	st, ok := t.users[userID]
	if !ok {
		st = &presenceState{}
		t.users[userID] = st
	}
	prev := st.count
	st.count = live
	profile := st.profile
	if live == 0 {
		delete(t.users, userID)
	}
	t.mu.Unlock()

	// Capture target rooms now: on disconnect the router purges the
	// connection right after this transition is processed.
	switch {
	case prev == 0 && live > 0:
		rooms := t.rooms.RoomsWithUser(userID)
		go t.broadcast(rooms, models.EventUserOnline, userID, profile, nil)
	case prev > 0 && live == 0:
		rooms := t.rooms.RoomsWithUser(userID)
		lastSeen := time.Now().UTC()
		go func() {
			// Broadcast first so a slow store write cannot delay the
			// offline event past a reconnecting user's announce. A user
			// already back online gets no offline event at all.
			if !t.IsOnline(userID) {
				t.broadcast(rooms, models.EventUserOffline, userID, profile, &lastSeen)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := t.store.SetLastSeen(ctx, userID, lastSeen); err != nil {
				log.Printf("presence: persist last seen for %s: %v", userID, err)
			}
		}()
	}
}

// IsOnline reports whether the user has at least one live connection.
func (t *PresenceTracker) IsOnline(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.users[userID]
	return ok && st.count > 0
}

// LastSeen returns the stored last-seen timestamp for an offline user.
func (t *PresenceTracker) LastSeen(ctx context.Context, userID string) (time.Time, bool, error) {
	return t.store.GetLastSeen(ctx, userID)
}

// Announce records the user's profile and broadcasts their online status to
// the other members of the room. Clients emit this right after joining.
func (t *PresenceTracker) Announce(roomID string, user models.TypingUser) {
	t.mu.Lock()
	if st, ok := t.users[user.UserID]; ok {
		st.profile = user
	}
	t.mu.Unlock()

	now := time.Now().UTC()
	ev := models.ServerEvent{
		Type:     models.EventUserOnline,
		ChatID:   roomID,
		User:     &user,
		LastSeen: &now,
	}
	for _, c := range t.rooms.MembersOf(roomID) {
		if c.UserID() == user.UserID {
			continue
		}
		if err := c.Send(ev); err != nil {
			log.Printf("presence: send %s to %s: %v", ev.Type, c.ID(), err)
		}
	}
}

// Snapshot lists the distinct online users with a connection in the room,
// so a joining client can render correct presence state.
func (t *PresenceTracker) Snapshot(roomID string) []models.OnlineUser {
	seen := make(map[string]bool)
	now := time.Now().UTC()

	var out []models.OnlineUser
	for _, c := range t.rooms.MembersOf(roomID) {
		if seen[c.UserID()] {
			continue
		}
		seen[c.UserID()] = true

		t.mu.Lock()
		st, ok := t.users[c.UserID()]
		var profile models.TypingUser
		if ok {
			profile = st.profile
		}
		t.mu.Unlock()
		if !ok {
			continue
		}
		out = append(out, models.OnlineUser{
			UserID:   c.UserID(),
			Username: profile.Username,
			Avatar:   profile.Avatar,
			LastSeen: now,
		})
	}
	return out
}

func (t *PresenceTracker) broadcast(roomIDs []string, eventType, userID string, profile models.TypingUser, lastSeen *time.Time) {
	user := profile
	user.UserID = userID
	for _, roomID := range roomIDs {
		ev := models.ServerEvent{
			Type:     eventType,
			ChatID:   roomID,
			User:     &user,
			LastSeen: lastSeen,
		}
		for _, c := range t.rooms.MembersOf(roomID) {
			if c.UserID() == userID {
				continue
			}
			if err := c.Send(ev); err != nil {
				log.Printf("presence: send %s to %s: %v", eventType, c.ID(), err)
			}
		}
	}
}

// MemoryLastSeen is the in-process fallback store used when Redis is not
// configured.
type MemoryLastSeen struct {
	mu   sync.RWMutex
	seen map[string]time.Time
}

// NewMemoryLastSeen creates an empty in-memory store.
func NewMemoryLastSeen() *MemoryLastSeen {
	return &MemoryLastSeen{seen: make(map[string]time.Time)}
}

func (m *MemoryLastSeen) SetLastSeen(_ context.Context, userID string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[userID] = t
	return nil
}

func (m *MemoryLastSeen) GetLastSeen(_ context.Context, userID string) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.seen[userID]
	return t, ok, nil
}
