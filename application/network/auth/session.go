package auth

import (
	"encoding/hex"
	"errors"
)

const NodeIDSize = 32

var (
	// ErrNotAuthed is returned by accessors that need negotiated key material.
	ErrNotAuthed = errors.New("auth session has not negotiated keys")
	// ErrNotCompleted is returned by accessors that need the remote peer data.
	ErrNotCompleted = errors.New("auth session has not completed")
)

// NodeID identifies a node of the mesh independently of its transport address.
type NodeID [NodeIDSize]byte

func (id NodeID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns the first bytes of the id in hex, for log lines.
func (id NodeID) Short() string {
	return hex.EncodeToString(id[:4])
}

// KeyMaterial is the symmetric key material negotiated by a handshake.
type KeyMaterial struct {
	// ID is a value both sides derive identically from the handshake transcript.
	ID      [32]byte
	SendKey [32]byte
	RecvKey [32]byte
}

// ConnectionParams are the data channel parameters announced by the remote side.
type ConnectionParams struct {
	Seq   int64
	Flags int64
}

// Session is one handshake state machine bound to one slot of the session manager.
// Implementations never panic on hostile input; DecodeMessage just returns false.
type Session interface {
	// Start makes this side the initiator of a new handshake.
	Start()
	// IsPreauth reports whether keys are not negotiated yet.
	IsPreauth() bool
	// DecodeMessage consumes a full handshake message, header included.
	DecodeMessage(msg []byte) bool
	// NextMessage returns the message this side should (re)send, if any.
	NextMessage() ([]byte, bool)
	// IsAuthed reports whether keys are negotiated, the remote identity is
	// known and the local peer data has not been set yet.
	IsAuthed() bool
	// IsCompleted reports whether both sides exchanged their peer data.
	IsCompleted() bool
	// IsPeerCompleted reports whether the remote side confirmed completion.
	IsPeerCompleted() bool
	RemoteNodeID() (NodeID, error)
	RemotePeerID() (uint32, error)
	LocalPeerID() (uint32, error)
	SessionKeys() (KeyMaterial, error)
	ConnectionParams() (ConnectionParams, error)
	// SetLocalData announces the local peer id and data channel parameters.
	SetLocalData(localPeerID uint32, seq, flags int64)
	// Reset returns the session to its initial idle state.
	Reset()
}

// SessionFactory creates the session bound to the given slot id.
type SessionFactory interface {
	NewSession(slotID int) Session
}
