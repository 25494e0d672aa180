package session

import (
	"fmt"
	"meshvpn/application/network/auth"
	"meshvpn/infrastructure/tunnel/idpool"
	"sort"
	"time"
)

type Repository interface {
	// Reserve takes a local peer id for a handshake that is not completed yet.
	Reserve(now time.Duration) (uint32, error)
	// Release returns a reserved id that never became a peer.
	Release(id uint32)
	// Add stores peer under its reserved local id. A peer with the same
	// node id is removed and returned.
	Add(peer *Peer) (replaced *Peer, err error)
	// Delete removes peer and frees its id
	Delete(peer *Peer)
	// GetByLocalID retrieves a peer by the id carried in its inbound packets
	GetByLocalID(id uint32) (*Peer, error)
	// GetByNodeID retrieves a peer by its node identity
	GetByNodeID(id auth.NodeID) (*Peer, error)
	// Peers returns the connected peers ordered by local id
	Peers() []*Peer
	Count() int
	Capacity() int
	// ReapIdle removes peers and reservations idle for at least timeout and
	// returns how many peers were removed.
	ReapIdle(now, timeout time.Duration) int
	// Reset removes every peer and reservation.
	Reset()
}

// DefaultRepository keeps the peer table of one node. Local peer ids are
// pool ids shifted by one: id 0 on the wire addresses the handshake layer.
type DefaultRepository struct {
	pool     *idpool.Pool
	pending  map[uint32]time.Duration
	byID     map[uint32]*Peer
	byNodeID map[auth.NodeID]*Peer
}

func NewDefaultRepository(capacity int) (Repository, error) {
	pool, err := idpool.New(capacity)
	if err != nil {
		return nil, fmt.Errorf("peer id pool: %w", err)
	}
	return &DefaultRepository{
		pool:     pool,
		pending:  make(map[uint32]time.Duration),
		byID:     make(map[uint32]*Peer),
		byNodeID: make(map[auth.NodeID]*Peer),
	}, nil
}

func (r *DefaultRepository) Reserve(now time.Duration) (uint32, error) {
	id, ok := r.pool.Allocate()
	if !ok {
		return 0, ErrTableFull
	}
	peerID := uint32(id + 1)
	r.pending[peerID] = now
	return peerID, nil
}

func (r *DefaultRepository) Release(id uint32) {
	if _, ok := r.pending[id]; !ok {
		return
	}
	delete(r.pending, id)
	r.pool.Free(int(id) - 1)
}

func (r *DefaultRepository) Add(peer *Peer) (*Peer, error) {
	if _, ok := r.pending[peer.LocalID()]; !ok {
		return nil, ErrNotReserved
	}
	delete(r.pending, peer.LocalID())

	replaced, found := r.byNodeID[peer.NodeID()]
	if found {
		r.Delete(replaced)
	}
	r.byID[peer.LocalID()] = peer
	r.byNodeID[peer.NodeID()] = peer
	return replaced, nil
}

func (r *DefaultRepository) Delete(peer *Peer) {
	current, ok := r.byID[peer.LocalID()]
	if !ok || current != peer {
		return
	}
	peer.markClosed()
	delete(r.byID, peer.LocalID())
	if r.byNodeID[peer.NodeID()] == peer {
		delete(r.byNodeID, peer.NodeID())
	}
	r.pool.Free(int(peer.LocalID()) - 1)
}

func (r *DefaultRepository) GetByLocalID(id uint32) (*Peer, error) {
	value, found := r.byID[id]
	if !found {
		return nil, ErrNotFound
	}
	return value, nil
}

func (r *DefaultRepository) GetByNodeID(id auth.NodeID) (*Peer, error) {
	value, found := r.byNodeID[id]
	if !found {
		return nil, ErrNotFound
	}
	return value, nil
}

func (r *DefaultRepository) Peers() []*Peer {
	peers := make([]*Peer, 0, len(r.byID))
	for _, p := range r.byID {
		peers = append(peers, p)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].LocalID() < peers[j].LocalID() })
	return peers
}

func (r *DefaultRepository) Count() int {
	return len(r.byID)
}

func (r *DefaultRepository) Capacity() int {
	return r.pool.Size()
}

func (r *DefaultRepository) ReapIdle(now, timeout time.Duration) int {
	for id, reserved := range r.pending {
		if now-reserved >= timeout {
			r.Release(id)
		}
	}
	reaped := 0
	for _, p := range r.byID {
		if now-p.LastActivity() >= timeout {
			r.Delete(p)
			reaped++
		}
	}
	return reaped
}

func (r *DefaultRepository) Reset() {
	for _, p := range r.byID {
		p.markClosed()
	}
	r.pool.Reset()
	clear(r.pending)
	clear(r.byID)
	clear(r.byNodeID)
}
