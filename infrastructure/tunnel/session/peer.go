package session

import (
	"errors"
	"meshvpn/application/network/auth"
	"meshvpn/infrastructure/cryptography/chacha20"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"
)

// Peer is a completed session with one remote node: the unit stored in Repository.
//
// LIFECYCLE INVARIANT: The closed flag is set by Repository.Delete before the
// peer id is handed out again. Callers MUST check IsClosed() after a lookup.
type Peer struct {
	localID  uint32
	remoteID uint32
	nodeID   auth.NodeID
	flags    int64

	mu      sync.Mutex
	channel *chacha20.DataChannel

	closed       atomic.Bool
	addr         atomic.Pointer[netip.AddrPort]
	lastActivity atomic.Int64 // clock nanoseconds
	lastSend     atomic.Int64 // clock nanoseconds
	accepted     atomic.Uint64
	replayed     atomic.Uint64
}

// NewPeer binds a data channel to a remote node. localID is the id the
// remote side puts into packets for us, remoteID the one we put into
// packets for it.
func NewPeer(
	localID, remoteID uint32,
	nodeID auth.NodeID,
	flags int64,
	addr netip.AddrPort,
	channel *chacha20.DataChannel,
	now time.Duration,
) *Peer {
	p := &Peer{
		localID:  localID,
		remoteID: remoteID,
		nodeID:   nodeID,
		flags:    flags,
		channel:  channel,
	}
	p.addr.Store(&addr)
	p.lastActivity.Store(int64(now))
	p.lastSend.Store(int64(now))
	return p
}

func (p *Peer) LocalID() uint32 {
	return p.localID
}

func (p *Peer) RemoteID() uint32 {
	return p.remoteID
}

func (p *Peer) NodeID() auth.NodeID {
	return p.nodeID
}

// Flags returns the connection flags the remote side announced.
func (p *Peer) Flags() int64 {
	return p.flags
}

// AddrPort returns the last address an authentic packet came from.
func (p *Peer) AddrPort() netip.AddrPort {
	return *p.addr.Load()
}

// SetAddrPort atomically updates the address after NAT roaming.
func (p *Peer) SetAddrPort(addr netip.AddrPort) {
	p.addr.Store(&addr)
}

// Seal encrypts payload into a data packet addressed to the remote peer id.
func (p *Peer) Seal(header, payload []byte, now time.Duration) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSend.Store(int64(now))
	return p.channel.Seal(header, payload)
}

// Open authenticates an inbound data packet. Successful packets refresh the
// activity timestamp; replays are counted and reported as
// chacha20.ErrNonUniqueNonce.
func (p *Peer) Open(packet []byte, headerLen int, now time.Duration) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	payload, err := p.channel.Open(packet, headerLen)
	if err != nil {
		if errors.Is(err, chacha20.ErrNonUniqueNonce) {
			p.replayed.Add(1)
		}
		return nil, err
	}
	p.accepted.Add(1)
	p.lastActivity.Store(int64(now))
	return payload, nil
}

// Quality is the number of the last 64 expected packets actually received.
func (p *Peer) Quality() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.Quality()
}

// LastActivity returns when an authentic packet was last received.
func (p *Peer) LastActivity() time.Duration {
	return time.Duration(p.lastActivity.Load())
}

// LastSend returns when a packet was last sent to this peer.
func (p *Peer) LastSend() time.Duration {
	return time.Duration(p.lastSend.Load())
}

// Counters returns the number of accepted and replay-dropped packets.
func (p *Peer) Counters() (accepted, replayed uint64) {
	return p.accepted.Load(), p.replayed.Load()
}

// IsClosed returns true if this peer has been removed from its repository.
func (p *Peer) IsClosed() bool {
	return p.closed.Load()
}

func (p *Peer) markClosed() {
	p.closed.Store(true)
}
