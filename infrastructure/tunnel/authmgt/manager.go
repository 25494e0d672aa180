package authmgt

import (
	"encoding/binary"
	"fmt"
	"meshvpn/application/logging"
	"meshvpn/application/network/auth"
	"meshvpn/application/timing"
	"meshvpn/infrastructure/tunnel/idpool"
	"net/netip"
	"time"
)

// HeaderSize is the size of the slot addressing header of every handshake
// message: a big-endian signed 32-bit value, 0 for a new session request and
// slot id + 1 for an existing slot.
const HeaderSize = 4

type Config struct {
	Slots int
	// RecvTimeout evicts a slot that received nothing for this long.
	RecvTimeout time.Duration
	// ResendTimeout is the minimum interval between two messages of one slot.
	ResendTimeout time.Duration
}

type slot struct {
	session  auth.Session
	addr     netip.AddrPort
	lastSend time.Duration
	lastRecv time.Duration
	// resendDue makes the next sweep send without waiting for ResendTimeout.
	resendDue bool
	// completionSignaled is set once the completion of this slot was put
	// into the completed outbox.
	completionSignaled bool
}

// outbox holds at most one slot id for the consumer to drain.
type outbox struct {
	id   int
	full bool
}

func (o *outbox) offer(id int) {
	if !o.full {
		o.id, o.full = id, true
	}
}

func (o *outbox) clearIf(id int) {
	if o.full && o.id == id {
		o.full = false
	}
}

// Manager multiplexes handshakes over a fixed set of slots. It performs no
// I/O and is not safe for concurrent use; see ConcurrentManager.
//
// The authed and completed outboxes each carry one event for the peer layer.
// An outbox is only refilled after the consumer drained it, so a consumer
// that never calls AcceptAuthedPeer/RejectAuthedPeer or FinishCompletedPeer
// stalls that signal while every other slot keeps operating.
type Manager struct {
	cfg       Config
	pool      *idpool.Pool
	slots     []slot
	clock     timing.Clock
	fastauth  bool
	authed    outbox
	completed outbox
	logger    logging.Logger
	debug     logging.Logger
}

func NewManager(
	cfg Config,
	factory auth.SessionFactory,
	clock timing.Clock,
	logger, debug logging.Logger,
) (*Manager, error) {
	if cfg.Slots <= 0 {
		return nil, ErrNoAuthSlots
	}
	pool, err := idpool.New(cfg.Slots)
	if err != nil {
		return nil, fmt.Errorf("auth slot pool: %w", err)
	}
	m := &Manager{
		cfg:    cfg,
		pool:   pool,
		slots:  make([]slot, cfg.Slots),
		clock:  clock,
		logger: logger,
		debug:  debug,
	}
	for id := range m.slots {
		m.slots[id].session = factory.NewSession(id)
	}
	m.Reset()
	return m, nil
}

// SlotCount returns the number of auth slots.
func (m *Manager) SlotCount() int {
	return m.pool.Size()
}

// UsedSlotCount returns the number of slots bound to a handshake.
func (m *Manager) UsedSlotCount() int {
	return m.pool.UsedCount()
}

// New binds a free slot to addr and returns its id.
func (m *Manager) New(addr netip.AddrPort) (int, bool) {
	return m.newSlot(addr, m.clock.Now())
}

func (m *Manager) newSlot(addr netip.AddrPort, now time.Duration) (int, bool) {
	id, ok := m.pool.Allocate()
	if !ok {
		return -1, false
	}
	s := &m.slots[id]
	s.addr = addr
	s.lastRecv = now
	s.lastSend = now
	s.resendDue = m.fastauth
	s.completionSignaled = false
	m.debug.Printf("starting new auth session for %s, ID: %d", addr, id)
	return id, true
}

// Delete resets the session of slot id and returns the id to the pool.
// Deleting a free slot is a no-op.
func (m *Manager) Delete(id int) {
	if !m.pool.IsUsed(id) {
		return
	}
	m.authed.clearIf(id)
	m.completed.clearIf(id)
	m.slots[id].session.Reset()
	m.pool.Free(id)
}

// Start opens a new handshake towards addr with this node as initiator.
func (m *Manager) Start(addr netip.AddrPort) bool {
	id, ok := m.New(addr)
	if !ok {
		return false
	}
	m.slots[id].session.Start()
	return true
}

// SetFastauth toggles immediate resend after a handshake state transition.
func (m *Manager) SetFastauth(enable bool) {
	m.fastauth = enable
}

// DecodeMessage routes one inbound handshake message to its slot.
// It returns true if the message was accepted.
func (m *Manager) DecodeMessage(msg []byte, from netip.AddrPort) bool {
	now := m.clock.Now()
	if len(msg) < HeaderSize {
		m.debug.Printf("[%s] wrong auth message size: %d", from, len(msg))
		return false
	}

	authID := int32(binary.BigEndian.Uint32(msg[:HeaderSize]))
	switch {
	case authID > 0:
		return m.decodeExisting(int(authID-1), msg, from, now)
	case authID == 0:
		return m.decodeNew(msg, from, now)
	default:
		m.debug.Printf("[%s] malformed auth header %d", from, authID)
		return false
	}
}

func (m *Manager) decodeExisting(id int, msg []byte, from netip.AddrPort, now time.Duration) bool {
	if id >= m.pool.Size() || !m.pool.IsUsed(id) {
		m.debug.Printf("[%s] wrong auth state ID %d", from, id)
		return false
	}
	s := &m.slots[id]
	if !s.session.DecodeMessage(msg) {
		m.debug.Printf("[%s] failed to decode auth message for ID %d", from, id)
		return false
	}
	m.touch(id, from, now)

	if s.session.IsAuthed() && !s.session.IsCompleted() {
		m.authed.offer(id)
	}
	if s.session.IsCompleted() && !s.session.IsPeerCompleted() && !s.completionSignaled && !m.completed.full {
		m.logger.Printf("host %s authorized", from)
		m.completed.offer(id)
		s.completionSignaled = true
	}
	return true
}

func (m *Manager) decodeNew(msg []byte, from netip.AddrPort, now time.Duration) bool {
	if dup, found := m.findAddr(from); found {
		if m.slots[dup].session.IsPreauth() {
			m.debug.Printf("[%s] handshake already in progress in ID %d", from, dup)
			return false
		}
		m.Delete(dup)
	}

	id, ok := m.newSlot(from, now)
	if !ok {
		victim, found := m.findReclaimable()
		if !found {
			m.debug.Printf("[%s] all auth slots are busy, request dropped", from)
			return false
		}
		m.debug.Printf("[%s] reclaiming auth ID %d", from, victim)
		m.Delete(victim)
		if id, ok = m.newSlot(from, now); !ok {
			return false
		}
	}

	if !m.slots[id].session.DecodeMessage(msg) {
		m.debug.Printf("[%s] failed to decode new session request", from)
		m.Delete(id)
		return false
	}
	m.touch(id, from, now)
	return true
}

// touch records a successfully decoded message for slot id.
func (m *Manager) touch(id int, from netip.AddrPort, now time.Duration) {
	s := &m.slots[id]
	s.lastRecv = now
	s.addr = from
	if m.fastauth {
		s.resendDue = true
	}
}

func (m *Manager) findAddr(addr netip.AddrPort) (int, bool) {
	for id := range m.slots {
		if m.pool.IsUsed(id) && m.slots[id].addr == addr {
			return id, true
		}
	}
	return -1, false
}

// findReclaimable picks, in round-robin order, a slot that may be evicted for
// a new request: one past key negotiation or whose completion the peer already
// confirmed. Slots still in preauth are never reclaimed, so a flood of new
// session requests cannot push out each other's in-flight handshakes.
func (m *Manager) findReclaimable() (int, bool) {
	used := m.pool.UsedCount()
	for i := 0; i < used; i++ {
		id := m.pool.Next()
		session := m.slots[id].session
		if !session.IsPreauth() || session.IsPeerCompleted() {
			return id, true
		}
	}
	return -1, false
}

// NextMessage returns the next handshake message due for sending and the
// address to send it to. Each call visits at most UsedSlotCount slots,
// evicting the ones that timed out on the way.
func (m *Manager) NextMessage() ([]byte, netip.AddrPort, bool) {
	now := m.clock.Now()
	used := m.pool.UsedCount()
	for i := 0; i < used; i++ {
		id := m.pool.Next()
		if id < 0 {
			break
		}
		s := &m.slots[id]
		if now-s.lastRecv >= m.cfg.RecvTimeout {
			m.debug.Printf("auth session %d for %s expired", id, s.addr)
			m.Delete(id)
			continue
		}
		if !s.resendDue && now-s.lastSend <= m.cfg.ResendTimeout {
			continue
		}
		msg, ok := s.session.NextMessage()
		if !ok {
			continue
		}
		s.lastSend = now
		s.resendDue = false
		m.debug.Printf("[%d] new auth packet for %s created, size: %d", id, s.addr, len(msg))
		return msg, s.addr, true
	}
	return nil, netip.AddrPort{}, false
}

// HasAuthedPeer reports whether a negotiated peer awaits a local decision.
func (m *Manager) HasAuthedPeer() bool {
	return m.authed.full
}

func (m *Manager) AuthedPeerNodeID() (auth.NodeID, error) {
	if !m.authed.full {
		return auth.NodeID{}, ErrNoAuthedPeer
	}
	return m.slots[m.authed.id].session.RemoteNodeID()
}

// AcceptAuthedPeer hands the local data channel parameters to the authed
// session and drains the outbox. Completion follows once the remote side has
// exchanged its own parameters.
func (m *Manager) AcceptAuthedPeer(localPeerID uint32, seq, flags int64) {
	if !m.authed.full {
		return
	}
	id := m.authed.id
	m.slots[id].session.SetLocalData(localPeerID, seq, flags)
	if m.fastauth {
		m.slots[id].resendDue = true
	}
	m.authed.full = false
}

// RejectAuthedPeer deletes the authed slot.
func (m *Manager) RejectAuthedPeer() {
	if m.authed.full {
		m.Delete(m.authed.id)
	}
}

// HasCompletedPeer reports whether a completed peer awaits pickup.
func (m *Manager) HasCompletedPeer() bool {
	return m.completed.full
}

func (m *Manager) CompletedPeerLocalID() (uint32, error) {
	if !m.completed.full {
		return 0, ErrNoCompletedPeer
	}
	return m.slots[m.completed.id].session.LocalPeerID()
}

func (m *Manager) CompletedPeerNodeID() (auth.NodeID, error) {
	if !m.completed.full {
		return auth.NodeID{}, ErrNoCompletedPeer
	}
	return m.slots[m.completed.id].session.RemoteNodeID()
}

// CompletedPeerAddress returns the remote peer id and the last address the
// completed peer was seen at.
func (m *Manager) CompletedPeerAddress() (uint32, netip.AddrPort, error) {
	if !m.completed.full {
		return 0, netip.AddrPort{}, ErrNoCompletedPeer
	}
	s := &m.slots[m.completed.id]
	remotePeerID, err := s.session.RemotePeerID()
	if err != nil {
		return 0, netip.AddrPort{}, err
	}
	return remotePeerID, s.addr, nil
}

func (m *Manager) CompletedPeerSessionKeys() (auth.KeyMaterial, error) {
	if !m.completed.full {
		return auth.KeyMaterial{}, ErrNoCompletedPeer
	}
	return m.slots[m.completed.id].session.SessionKeys()
}

func (m *Manager) CompletedPeerConnectionParams() (auth.ConnectionParams, error) {
	if !m.completed.full {
		return auth.ConnectionParams{}, ErrNoCompletedPeer
	}
	return m.slots[m.completed.id].session.ConnectionParams()
}

// FinishCompletedPeer acknowledges the completed peer and drains the outbox.
// The slot stays alive so that late retransmissions of the remote side are
// still answered until it times out or is reclaimed.
func (m *Manager) FinishCompletedPeer() {
	m.completed.full = false
}

func (m *Manager) Stats() Stats {
	st := Stats{
		Slots:            m.pool.Size(),
		UsedSlots:        m.pool.UsedCount(),
		AuthedPending:    m.authed.full,
		CompletedPending: m.completed.full,
	}
	for id := range m.slots {
		if m.pool.IsUsed(id) && m.slots[id].session.IsPreauth() {
			st.Preauth++
		}
	}
	return st
}

// Reset drops every handshake, e.g. after a change of network identity.
func (m *Manager) Reset() {
	for id := range m.slots {
		m.slots[id].session.Reset()
		m.slots[id].addr = netip.AddrPort{}
		m.slots[id].resendDue = false
		m.slots[id].completionSignaled = false
	}
	m.pool.Reset()
	m.fastauth = false
	m.authed = outbox{}
	m.completed = outbox{}
	m.debug.Printf("auth manager reset completed")
}
