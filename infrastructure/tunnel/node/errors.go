package node

import "errors"

var (
	ErrPeerNotFound     = errors.New("peer not found")
	ErrFrameTooLarge    = errors.New("frame exceeds maximum size")
	ErrInvalidMaxPeers  = errors.New("max peers must be positive")
	ErrInvalidWindow    = errors.New("sequence window must be larger than 64")
	ErrDatagramTooShort = errors.New("datagram too short")
)
