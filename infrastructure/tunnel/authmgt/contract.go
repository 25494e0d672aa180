package authmgt

import (
	"meshvpn/application/network/auth"
	"net/netip"
)

// SessionManager is the handshake multiplexer consumed by the peer layer.
// Manager is the single-threaded implementation, ConcurrentManager guards
// one with a mutex.
type SessionManager interface {
	SlotCount() int
	UsedSlotCount() int
	Start(addr netip.AddrPort) bool
	DecodeMessage(msg []byte, from netip.AddrPort) bool
	NextMessage() ([]byte, netip.AddrPort, bool)
	SetFastauth(enable bool)

	HasAuthedPeer() bool
	AuthedPeerNodeID() (auth.NodeID, error)
	AcceptAuthedPeer(localPeerID uint32, seq, flags int64)
	RejectAuthedPeer()

	HasCompletedPeer() bool
	CompletedPeerLocalID() (uint32, error)
	CompletedPeerNodeID() (auth.NodeID, error)
	CompletedPeerAddress() (uint32, netip.AddrPort, error)
	CompletedPeerSessionKeys() (auth.KeyMaterial, error)
	CompletedPeerConnectionParams() (auth.ConnectionParams, error)
	FinishCompletedPeer()

	Stats() Stats
	Reset()
}

// Stats is a point-in-time view of the manager for telemetry.
type Stats struct {
	Slots            int
	UsedSlots        int
	Preauth          int
	AuthedPending    bool
	CompletedPending bool
}
