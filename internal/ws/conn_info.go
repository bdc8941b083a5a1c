package ws

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// ConnInfo is the identity captured at handshake time, attached to every
// audit event the connection emits.
type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// newConnID assigns the transport-level connection id. Ids are opaque and
// never reused within a process lifetime.
func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
