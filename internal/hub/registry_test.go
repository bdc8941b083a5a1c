package hub

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	c := newFakeConn("c1", "u1")

	reg.Register(c)

	got, ok := reg.Get("c1")
	require.True(t, ok)
	require.Equal(t, "u1", got.UserID())
}

func TestRegistryUnregisterIdempotent(t *testing.T) {
	reg := NewRegistry()
	c := newFakeConn("c1", "u1")
	reg.Register(c)

	reg.Unregister("c1")
	reg.Unregister("c1")
	reg.Unregister("never-registered")

	_, ok := reg.Get("c1")
	require.False(t, ok)
	require.Empty(t, reg.ConnectionsForUser("u1"))
}

func TestRegistryConnectionsForUserMultiDevice(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newFakeConn("c1", "u1"))
	reg.Register(newFakeConn("c2", "u1"))
	reg.Register(newFakeConn("c3", "u2"))

	require.Len(t, reg.ConnectionsForUser("u1"), 2)
	require.Len(t, reg.ConnectionsForUser("u2"), 1)
	require.Empty(t, reg.ConnectionsForUser("u3"))
}

func TestRegistryTransitionCounts(t *testing.T) {
	reg := NewRegistry()

	type transition struct {
		userID string
		live   int
	}
	var seen []transition
	reg.OnTransition(func(userID string, live int) {
		seen = append(seen, transition{userID, live})
	})

	reg.Register(newFakeConn("c1", "u1"))
	reg.Register(newFakeConn("c2", "u1"))
	reg.Unregister("c1")
	reg.Unregister("c2")

	require.Equal(t, []transition{
		{"u1", 1},
		{"u1", 2},
		{"u1", 1},
		{"u1", 0},
	}, seen)
}
