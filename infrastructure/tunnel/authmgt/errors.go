package authmgt

import "errors"

var (
	// ErrNoAuthSlots is returned when the manager is configured without slots.
	ErrNoAuthSlots = errors.New("no auth slots available")
	// ErrNoAuthedPeer is returned by authed-peer accessors when the outbox is empty.
	ErrNoAuthedPeer = errors.New("no authed peer pending")
	// ErrNoCompletedPeer is returned by completed-peer accessors when the outbox is empty.
	ErrNoCompletedPeer = errors.New("no completed peer pending")
)
