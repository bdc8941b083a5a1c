package hub

import "errors"

var (
	// ErrNotAMember rejects a relay from a connection that has not joined
	// the target room. No broadcast happens.
	ErrNotAMember = errors.New("connection is not a member of the room")

	// ErrPersistence wraps a failed persistence call. Surfaced to the
	// originating connection only.
	ErrPersistence = errors.New("persistence failure")
)
