package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kiochat-ws/internal/models"
)

func newPresenceFixture() (*Registry, *RoomRouter, *PresenceTracker, *MemoryLastSeen) {
	reg := NewRegistry()
	rooms := NewRoomRouter()
	store := NewMemoryLastSeen()
	presence := NewPresenceTracker(rooms, store)
	reg.OnTransition(presence.HandleTransition)
	return reg, rooms, presence, store
}

func TestPresenceIsOnlineTracksZeroCrossings(t *testing.T) {
	reg, _, presence, _ := newPresenceFixture()

	require.False(t, presence.IsOnline("u2"))

	reg.Register(newFakeConn("b1", "u2"))
	require.True(t, presence.IsOnline("u2"))

	reg.Register(newFakeConn("b2", "u2"))
	require.True(t, presence.IsOnline("u2"))

	reg.Unregister("b1")
	require.True(t, presence.IsOnline("u2"))

	reg.Unregister("b2")
	require.False(t, presence.IsOnline("u2"))
}

func TestPresenceMultiDeviceEmitsSingleOffline(t *testing.T) {
	reg, rooms, _, _ := newPresenceFixture()

	observer := newFakeConn("a1", "u1")
	reg.Register(observer)
	rooms.Join(observer, "room-7")

	b1 := newFakeConn("b1", "u2")
	reg.Register(b1)
	rooms.Join(b1, "room-7")

	b2 := newFakeConn("b2", "u2")
	reg.Register(b2)
	rooms.Join(b2, "room-7")

	// Dropping one of two devices is not a zero crossing.
	reg.Unregister("b2")
	rooms.PurgeConn("b2")
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, observer.eventsOfType(models.EventUserOffline))

	reg.Unregister("b1")
	rooms.PurgeConn("b1")
	require.Eventually(t, func() bool {
		return len(observer.eventsOfType(models.EventUserOffline)) == 1
	}, time.Second, 10*time.Millisecond)

	events := observer.eventsOfType(models.EventUserOffline)
	require.Len(t, events, 1)
	require.Equal(t, "room-7", events[0].ChatID)
	require.Equal(t, "u2", events[0].User.UserID)
	require.NotNil(t, events[0].LastSeen)
}

func TestPresenceOfflinePersistsLastSeen(t *testing.T) {
	reg, _, _, store := newPresenceFixture()

	reg.Register(newFakeConn("b1", "u2"))
	reg.Unregister("b1")

	require.Eventually(t, func() bool {
		_, ok, err := store.GetLastSeen(context.Background(), "u2")
		return err == nil && ok
	}, time.Second, 10*time.Millisecond)
}

// gatedLastSeen blocks writes until released, standing in for a slow store.
type gatedLastSeen struct {
	release chan struct{}
	inner   *MemoryLastSeen
}

func (g *gatedLastSeen) SetLastSeen(ctx context.Context, userID string, t time.Time) error {
	<-g.release
	return g.inner.SetLastSeen(ctx, userID, t)
}

func (g *gatedLastSeen) GetLastSeen(ctx context.Context, userID string) (time.Time, bool, error) {
	return g.inner.GetLastSeen(ctx, userID)
}

func TestPresenceOfflineBroadcastNotDelayedByStore(t *testing.T) {
	reg := NewRegistry()
	rooms := NewRoomRouter()
	store := &gatedLastSeen{release: make(chan struct{}), inner: NewMemoryLastSeen()}
	presence := NewPresenceTracker(rooms, store)
	reg.OnTransition(presence.HandleTransition)

	observer := newFakeConn("a1", "u1")
	reg.Register(observer)
	rooms.Join(observer, "room-7")

	b1 := newFakeConn("b1", "u2")
	reg.Register(b1)
	rooms.Join(b1, "room-7")

	reg.Unregister("b1")
	rooms.PurgeConn("b1")

	// The offline event arrives while the store write is still blocked.
	require.Eventually(t, func() bool {
		return len(observer.eventsOfType(models.EventUserOffline)) == 1
	}, time.Second, 10*time.Millisecond)
	_, ok, err := store.GetLastSeen(context.Background(), "u2")
	require.NoError(t, err)
	require.False(t, ok)

	close(store.release)
	require.Eventually(t, func() bool {
		_, ok, err := store.GetLastSeen(context.Background(), "u2")
		return err == nil && ok
	}, time.Second, 10*time.Millisecond)
}

func TestPresenceAnnounceExcludesSelf(t *testing.T) {
	reg, rooms, presence, _ := newPresenceFixture()

	observer := newFakeConn("a1", "u1")
	reg.Register(observer)
	rooms.Join(observer, "room-7")

	self := newFakeConn("b1", "u2")
	reg.Register(self)
	rooms.Join(self, "room-7")

	presence.Announce("room-7", models.TypingUser{UserID: "u2", Username: "bob"})

	events := observer.eventsOfType(models.EventUserOnline)
	require.Len(t, events, 1)
	require.Equal(t, "bob", events[0].User.Username)
	require.Empty(t, self.eventsOfType(models.EventUserOnline))
}

func TestPresenceSnapshotListsDistinctOnlineUsers(t *testing.T) {
	reg, rooms, presence, _ := newPresenceFixture()

	a := newFakeConn("a1", "u1")
	reg.Register(a)
	rooms.Join(a, "room-7")

	b1 := newFakeConn("b1", "u2")
	b2 := newFakeConn("b2", "u2")
	reg.Register(b1)
	reg.Register(b2)
	rooms.Join(b1, "room-7")
	rooms.Join(b2, "room-7")

	presence.Announce("room-7", models.TypingUser{UserID: "u2", Username: "bob"})

	snapshot := presence.Snapshot("room-7")
	require.Len(t, snapshot, 2)

	ids := make(map[string]bool)
	for _, u := range snapshot {
		ids[u.UserID] = true
	}
	require.True(t, ids["u1"])
	require.True(t, ids["u2"])
}
