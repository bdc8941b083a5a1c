package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kiochat-ws/internal/models"
)

func newTypingFixture(timeout time.Duration) (*RoomRouter, *TypingCoordinator, *fakeConn, *fakeConn) {
	rooms := NewRoomRouter()
	tc := NewTypingCoordinator(rooms, timeout)

	typist := newFakeConn("c1", "u1")
	observer := newFakeConn("c2", "u2")
	rooms.Join(typist, "room-7")
	rooms.Join(observer, "room-7")
	return rooms, tc, typist, observer
}

func TestTypingStartBroadcastsExcludingTypist(t *testing.T) {
	_, tc, typist, observer := newTypingFixture(time.Minute)

	tc.Start("room-7", models.TypingUser{UserID: "u1", Username: "alice"})

	events := observer.eventsOfType(models.EventUserTyping)
	require.Len(t, events, 1)
	require.Equal(t, "room-7", events[0].ChatID)
	require.Equal(t, "alice", events[0].User.Username)
	require.Empty(t, typist.eventsOfType(models.EventUserTyping))
}

func TestTypingExpiresExactlyOnce(t *testing.T) {
	_, tc, _, observer := newTypingFixture(30 * time.Millisecond)

	tc.Start("room-7", models.TypingUser{UserID: "u1"})

	require.Eventually(t, func() bool {
		return len(observer.eventsOfType(models.EventUserStoppedTyping)) == 1
	}, time.Second, 5*time.Millisecond)
	require.Empty(t, tc.TypingUsers("room-7"))

	// The expired timer must not fire again later.
	time.Sleep(60 * time.Millisecond)
	require.Len(t, observer.eventsOfType(models.EventUserStoppedTyping), 1)
}

func TestTypingRefreshExtendsExpiry(t *testing.T) {
	_, tc, _, observer := newTypingFixture(50 * time.Millisecond)

	tc.Start("room-7", models.TypingUser{UserID: "u1"})
	time.Sleep(30 * time.Millisecond)
	tc.Start("room-7", models.TypingUser{UserID: "u1"})
	time.Sleep(30 * time.Millisecond)

	// The original timer would have fired by now; the refresh superseded it.
	require.Empty(t, observer.eventsOfType(models.EventUserStoppedTyping))

	require.Eventually(t, func() bool {
		return len(observer.eventsOfType(models.EventUserStoppedTyping)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestTypingExplicitStopSuppressesTimer(t *testing.T) {
	_, tc, _, observer := newTypingFixture(30 * time.Millisecond)

	tc.Start("room-7", models.TypingUser{UserID: "u1"})
	tc.Stop("room-7", "u1")

	require.Len(t, observer.eventsOfType(models.EventUserStoppedTyping), 1)

	time.Sleep(60 * time.Millisecond)
	require.Len(t, observer.eventsOfType(models.EventUserStoppedTyping), 1)
}

func TestTypingStopWithoutStartIsNoop(t *testing.T) {
	_, tc, _, observer := newTypingFixture(time.Minute)

	tc.Stop("room-7", "u1")

	require.Empty(t, observer.eventsOfType(models.EventUserStoppedTyping))
}

func TestTypingMultipleTypistsTrackedIndependently(t *testing.T) {
	rooms, tc, _, observer := newTypingFixture(time.Minute)

	third := newFakeConn("c3", "u3")
	rooms.Join(third, "room-7")

	tc.Start("room-7", models.TypingUser{UserID: "u1"})
	tc.Start("room-7", models.TypingUser{UserID: "u3"})
	require.Len(t, tc.TypingUsers("room-7"), 2)

	tc.Stop("room-7", "u1")
	require.Len(t, tc.TypingUsers("room-7"), 1)
	require.Equal(t, "u3", tc.TypingUsers("room-7")[0].UserID)
	require.Len(t, observer.eventsOfType(models.EventUserStoppedTyping), 1)
}

func TestTypingStopUserClearsAllRooms(t *testing.T) {
	rooms := NewRoomRouter()
	tc := NewTypingCoordinator(rooms, time.Minute)

	typist := newFakeConn("c1", "u1")
	observer := newFakeConn("c2", "u2")
	rooms.Join(typist, "room-7")
	rooms.Join(typist, "room-9")
	rooms.Join(observer, "room-7")
	rooms.Join(observer, "room-9")

	tc.Start("room-7", models.TypingUser{UserID: "u1"})
	tc.Start("room-9", models.TypingUser{UserID: "u1"})

	tc.StopUser("u1")

	require.Empty(t, tc.TypingUsers("room-7"))
	require.Empty(t, tc.TypingUsers("room-9"))
	require.Len(t, observer.eventsOfType(models.EventUserStoppedTyping), 2)
}
