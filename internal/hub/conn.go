package hub

import "kiochat-ws/internal/models"

// Conn is one live transport session. A user may own several at once
// (multi-device). Implementations must be safe for concurrent Send calls.
type Conn interface {
	ID() string
	UserID() string
	Send(ev models.ServerEvent) error
}
