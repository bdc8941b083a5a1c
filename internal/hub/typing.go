package hub

import (
	"log"
	"sync"
	"time"

	"kiochat-ws/internal/models"
)

// DefaultTypingTimeout is how long a typing indicator lives without a
// refresh, matching the client's own 3 second debounce window.
const DefaultTypingTimeout = 3 * time.Second

type typingKey struct {
	roomID string
	userID string
}

type typingEntry struct {
	user  models.TypingUser
	timer *time.Timer
	gen   uint64
}

// TypingCoordinator tracks ephemeral per-room per-user composing state with
// automatic expiry. Multiple simultaneous typists per room are tracked
// independently.
type TypingCoordinator struct {
	mu      sync.Mutex
	rooms   *RoomRouter
	timeout time.Duration
	entries map[typingKey]*typingEntry
}

// NewTypingCoordinator creates a coordinator. A zero timeout falls back to
// DefaultTypingTimeout.
func NewTypingCoordinator(rooms *RoomRouter, timeout time.Duration) *TypingCoordinator {
	if timeout <= 0 {
		timeout = DefaultTypingTimeout
	}
	return &TypingCoordinator{
		rooms:   rooms,
		timeout: timeout,
		entries: make(map[typingKey]*typingEntry),
	}
}

// Start creates or refreshes the typing state and broadcasts user_typing to
// the room, excluding the typist's own connections.
func (tc *TypingCoordinator) Start(roomID string, user models.TypingUser) {
	key := typingKey{roomID: roomID, userID: user.UserID}

	tc.mu.Lock()
	entry, ok := tc.entries[key]
	if ok {
		entry.timer.Stop()
	} else {
		entry = &typingEntry{}
		tc.entries[key] = entry
	}
	entry.user = user
	entry.gen++
	gen := entry.gen
	entry.timer = time.AfterFunc(tc.timeout, func() { tc.expire(key, gen) })
	tc.mu.Unlock()

	tc.broadcast(models.EventUserTyping, roomID, user)
}

// Stop cancels the typing state immediately and broadcasts
// user_stopped_typing. A no-op when the user was not typing, so the
// timer-based broadcast never doubles with the explicit one.
func (tc *TypingCoordinator) Stop(roomID, userID string) {
	key := typingKey{roomID: roomID, userID: userID}

	tc.mu.Lock()
	entry, ok := tc.entries[key]
	if ok {
		entry.timer.Stop()
		delete(tc.entries, key)
	}
	tc.mu.Unlock()

	if ok {
		tc.broadcast(models.EventUserStoppedTyping, roomID, entry.user)
	}
}

// StopUser expires every typing state held by the user, used when their
// last connection closes mid-composition.
func (tc *TypingCoordinator) StopUser(userID string) {
	tc.mu.Lock()
	var stopped []typingKey
	for key, entry := range tc.entries {
		if key.userID != userID {
			continue
		}
		entry.timer.Stop()
		delete(tc.entries, key)
		stopped = append(stopped, key)
	}
	tc.mu.Unlock()

	for _, key := range stopped {
		tc.broadcast(models.EventUserStoppedTyping, key.roomID, models.TypingUser{UserID: userID})
	}
}

// TypingUsers returns the current set of typists in a room.
func (tc *TypingCoordinator) TypingUsers(roomID string) []models.TypingUser {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	var out []models.TypingUser
	for key, entry := range tc.entries {
		if key.roomID == roomID {
			out = append(out, entry.user)
		}
	}
	return out
}

func (tc *TypingCoordinator) expire(key typingKey, gen uint64) {
	tc.mu.Lock()
	entry, ok := tc.entries[key]
	if !ok || entry.gen != gen {
		// Refreshed or explicitly stopped after this timer was armed.
		tc.mu.Unlock()
		return
	}
	delete(tc.entries, key)
	tc.mu.Unlock()

	tc.broadcast(models.EventUserStoppedTyping, key.roomID, entry.user)
}

func (tc *TypingCoordinator) broadcast(eventType, roomID string, user models.TypingUser) {
	ev := models.ServerEvent{Type: eventType, ChatID: roomID, User: &user}
	for _, c := range tc.rooms.MembersOf(roomID) {
		if c.UserID() == user.UserID {
			continue
		}
		if err := c.Send(ev); err != nil {
			log.Printf("typing: send %s to %s: %v", eventType, c.ID(), err)
		}
	}
}
