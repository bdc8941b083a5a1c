package hub

import "sync"

// RoomRouter maps room ids to the connections currently joined. Rooms are
// created lazily on first join and reaped when the last member leaves.
type RoomRouter struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Conn
	joined map[string]map[string]bool
}

// NewRoomRouter creates an empty router.
func NewRoomRouter() *RoomRouter {
	return &RoomRouter{
		rooms:  make(map[string]map[string]Conn),
		joined: make(map[string]map[string]bool),
	}
}

// Join adds the connection to the room's membership. A connection may be a
// member of multiple rooms simultaneously.
func (rr *RoomRouter) Join(c Conn, roomID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	members, ok := rr.rooms[roomID]
	if !ok {
		members = make(map[string]Conn)
		rr.rooms[roomID] = members
	}
	members[c.ID()] = c

	roomSet, ok := rr.joined[c.ID()]
	if !ok {
		roomSet = make(map[string]bool)
		rr.joined[c.ID()] = roomSet
	}
	roomSet[roomID] = true
}

// Leave removes the membership. Empty rooms are removed.
func (rr *RoomRouter) Leave(connID, roomID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.leaveLocked(connID, roomID)
}

func (rr *RoomRouter) leaveLocked(connID, roomID string) {
	if members, ok := rr.rooms[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(rr.rooms, roomID)
		}
	}
	if roomSet, ok := rr.joined[connID]; ok {
		delete(roomSet, roomID)
		if len(roomSet) == 0 {
			delete(rr.joined, connID)
		}
	}
}

// MembersOf returns a snapshot of the room's connections for fan-out.
// Concurrent joins or leaves during a broadcast do not affect the snapshot.
func (rr *RoomRouter) MembersOf(roomID string) []Conn {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	members := rr.rooms[roomID]
	out := make([]Conn, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	return out
}

// IsMember reports whether the connection has joined the room.
func (rr *RoomRouter) IsMember(connID, roomID string) bool {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	members, ok := rr.rooms[roomID]
	if !ok {
		return false
	}
	_, ok = members[connID]
	return ok
}

// RoomsOf returns the rooms the connection has joined.
func (rr *RoomRouter) RoomsOf(connID string) []string {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	roomSet := rr.joined[connID]
	out := make([]string, 0, len(roomSet))
	for roomID := range roomSet {
		out = append(out, roomID)
	}
	return out
}

// RoomsWithUser returns the rooms containing at least one connection owned
// by the user.
func (rr *RoomRouter) RoomsWithUser(userID string) []string {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	var out []string
	for roomID, members := range rr.rooms {
		for _, c := range members {
			if c.UserID() == userID {
				out = append(out, roomID)
				break
			}
		}
	}
	return out
}

// PurgeConn removes the connection from every room it belonged to, so a
// closed transport never leaks into a membership set. Returns the rooms the
// connection was removed from.
func (rr *RoomRouter) PurgeConn(connID string) []string {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	roomSet := rr.joined[connID]
	out := make([]string, 0, len(roomSet))
	for roomID := range roomSet {
		out = append(out, roomID)
	}
	for _, roomID := range out {
		rr.leaveLocked(connID, roomID)
	}
	return out
}
