package node

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"meshvpn/application/logging"
	"meshvpn/application/network/auth"
	"meshvpn/application/timing"
	"meshvpn/infrastructure/cryptography/chacha20"
	"meshvpn/infrastructure/cryptography/noise"
	"meshvpn/infrastructure/tunnel/authmgt"
	"meshvpn/infrastructure/tunnel/session"
	"net/netip"
	"sync"
	"time"

	"github.com/eapache/queue"
)

// Datagram layout: [receiver peer id (4)] followed by a handshake message
// when the id is 0, or by [seq (8)] [AEAD(type (1) || payload)] otherwise.
const (
	PeerIDSize = 4
	// MaxDatagramSize is the size of the receive buffer of the transport.
	MaxDatagramSize = 4096
	// MaxFrameSize is the largest frame that fits into one datagram.
	MaxFrameSize = MaxDatagramSize - PeerIDSize - chacha20.DataOverhead - 1

	framesBuffer = 256
)

const (
	packetFrame byte = iota
	packetKeepalive
)

type Config struct {
	AuthSlots         int
	RecvTimeout       time.Duration
	ResendTimeout     time.Duration
	MaxPeers          int
	WindowSize        int64
	PeerTimeout       time.Duration
	KeepaliveInterval time.Duration
	ReconnectInterval time.Duration
	StatusInterval    time.Duration
	FastAuth          bool
	LocalFlags        int64
	InitPeers         []netip.AddrPort
}

// Frame is a payload received from a connected peer.
type Frame struct {
	PeerID  uint32
	NodeID  auth.NodeID
	Payload []byte
}

type outboundPacket struct {
	data []byte
	addr netip.AddrPort
}

// Node is the peer-to-peer layer of one mesh member. It turns datagrams
// into handshake progress and frames, and frames into datagrams. It
// performs no I/O; see Run for the socket loop.
type Node struct {
	mu sync.Mutex

	cfg         Config
	credentials *noise.Credentials
	auth        authmgt.SessionManager
	peers       session.Repository
	clock       timing.Clock
	logger      logging.Logger
	debug       logging.Logger
	traffic     TrafficRecorder

	outbound  *queue.Queue
	wake      chan struct{}
	frames    chan Frame
	pending   map[uint32]int64
	started   time.Duration
	initPeers []netip.AddrPort

	lastReconnect  time.Duration
	lastStatus     time.Duration
	lastPeerCount  int
	reconnectArmed bool
}

func NewNode(
	cfg Config,
	credentials *noise.Credentials,
	clock timing.Clock,
	logger, debug logging.Logger,
) (*Node, error) {
	if cfg.MaxPeers <= 0 {
		return nil, ErrInvalidMaxPeers
	}
	if cfg.WindowSize <= chacha20.SequenceBits {
		return nil, ErrInvalidWindow
	}
	manager, err := authmgt.NewManager(authmgt.Config{
		Slots:         cfg.AuthSlots,
		RecvTimeout:   cfg.RecvTimeout,
		ResendTimeout: cfg.ResendTimeout,
	}, noise.NewSessionFactory(credentials), clock, logger, debug)
	if err != nil {
		return nil, err
	}
	repository, err := session.NewDefaultRepository(cfg.MaxPeers)
	if err != nil {
		return nil, err
	}

	n := &Node{
		cfg:           cfg,
		credentials:   credentials,
		auth:          authmgt.NewConcurrentManager(manager),
		peers:         session.NewConcurrentRepository(repository),
		clock:         clock,
		logger:        logger,
		debug:         debug,
		traffic:       noTraffic{},
		outbound:      queue.New(),
		wake:          make(chan struct{}, 1),
		frames:        make(chan Frame, framesBuffer),
		pending:       make(map[uint32]int64),
		started:       clock.Now(),
		initPeers:     append([]netip.AddrPort(nil), cfg.InitPeers...),
		lastPeerCount: -1,
	}
	n.auth.SetFastauth(cfg.FastAuth)
	return n, nil
}

// TrafficRecorder counts the datagrams crossing the transport.
type TrafficRecorder interface {
	AddRX(bytes int)
	AddTX(bytes int)
}

type noTraffic struct{}

func (noTraffic) AddRX(int) {}
func (noTraffic) AddTX(int) {}

// SetTrafficRecorder must be called before Run.
func (n *Node) SetTrafficRecorder(r TrafficRecorder) {
	n.traffic = r
}

// NodeID returns the identity of this node.
func (n *Node) NodeID() auth.NodeID {
	return n.credentials.Identity().NodeID()
}

// Frames delivers the frames received from peers. Frames are dropped when
// the consumer falls behind.
func (n *Node) Frames() <-chan Frame {
	return n.frames
}

// Peers exposes the peer table, e.g. for the idle reaper.
func (n *Node) Peers() session.Repository {
	return n.peers
}

// AuthManager exposes the handshake multiplexer for telemetry.
func (n *Node) AuthManager() authmgt.SessionManager {
	return n.auth
}

// Connect starts a handshake with the node at addr.
func (n *Node) Connect(addr netip.AddrPort) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.auth.Start(canonical(addr))
}

// SetInitPeers replaces the list of bootstrap peers and connects to the
// ones not known before.
func (n *Node) SetInitPeers(peers []netip.AddrPort) {
	n.mu.Lock()
	defer n.mu.Unlock()
	known := make(map[netip.AddrPort]struct{}, len(n.initPeers))
	for _, p := range n.initPeers {
		known[p] = struct{}{}
	}
	n.initPeers = append(n.initPeers[:0], peers...)
	for _, p := range peers {
		if _, ok := known[p]; ok {
			continue
		}
		if n.auth.Start(canonical(p)) {
			n.logger.Printf("initiated new connection to %s", p)
		}
	}
}

// InputPacket processes one datagram received from addr.
func (n *Node) InputPacket(datagram []byte, from netip.AddrPort) {
	n.mu.Lock()
	defer n.mu.Unlock()

	from = canonical(from)
	if len(datagram) < PeerIDSize {
		n.debug.Printf("[%s] %s: %d bytes", from, ErrDatagramTooShort, len(datagram))
		return
	}
	peerID := binary.BigEndian.Uint32(datagram[:PeerIDSize])
	if peerID == 0 {
		if n.auth.DecodeMessage(datagram[PeerIDSize:], from) {
			n.processAuthEvents()
		}
		return
	}
	n.inputData(peerID, datagram, from)
}

func (n *Node) inputData(peerID uint32, datagram []byte, from netip.AddrPort) {
	peer, err := n.peers.GetByLocalID(peerID)
	if err != nil || peer.IsClosed() {
		n.debug.Printf("[%s] packet for unknown peer %d dropped", from, peerID)
		return
	}
	plain, err := peer.Open(datagram, PeerIDSize, n.clock.Now())
	if err != nil {
		if errors.Is(err, chacha20.ErrNonUniqueNonce) {
			n.debug.Printf("[%s] replayed packet for peer %d dropped", from, peerID)
		} else {
			n.debug.Printf("[%s] undecryptable packet for peer %d dropped: %s", from, peerID, err)
		}
		return
	}
	if peer.AddrPort() != from {
		n.debug.Printf("peer %d moved from %s to %s", peerID, peer.AddrPort(), from)
		peer.SetAddrPort(from)
	}
	if len(plain) == 0 {
		return
	}
	switch plain[0] {
	case packetFrame:
		select {
		case n.frames <- Frame{PeerID: peerID, NodeID: peer.NodeID(), Payload: plain[1:]}:
		default:
			n.debug.Printf("frame from peer %d dropped: receiver is busy", peerID)
		}
	case packetKeepalive:
	default:
		n.debug.Printf("unknown packet type %d from peer %d", plain[0], peerID)
	}
}

// processAuthEvents drains the authed and completed outboxes of the
// session manager.
func (n *Node) processAuthEvents() {
	now := n.clock.Now()
	if n.auth.HasAuthedPeer() {
		n.acceptAuthed(now)
	}
	if n.auth.HasCompletedPeer() {
		n.addCompleted(now)
	}
}

func (n *Node) acceptAuthed(now time.Duration) {
	nodeID, err := n.auth.AuthedPeerNodeID()
	if err != nil {
		n.auth.RejectAuthedPeer()
		return
	}
	if nodeID == n.NodeID() {
		n.debug.Printf("rejected connection to self")
		n.auth.RejectAuthedPeer()
		return
	}
	localID, err := n.peers.Reserve(now)
	if err != nil {
		n.debug.Printf("rejected peer %s: %s", nodeID.Short(), err)
		n.auth.RejectAuthedPeer()
		return
	}
	seq, err := initialSequence()
	if err != nil {
		n.peers.Release(localID)
		n.auth.RejectAuthedPeer()
		return
	}
	n.pending[localID] = seq
	n.auth.AcceptAuthedPeer(localID, seq, n.cfg.LocalFlags)
}

func (n *Node) addCompleted(now time.Duration) {
	defer n.auth.FinishCompletedPeer()

	peer, err := n.completedPeer(now)
	if err != nil {
		n.debug.Printf("completed peer dropped: %s", err)
		return
	}
	replaced, err := n.peers.Add(peer)
	if err != nil {
		n.debug.Printf("completed peer %d dropped: %s", peer.LocalID(), err)
		return
	}
	if replaced != nil {
		n.logger.Printf("peer %s reconnected, replacing peer %d", peer.NodeID().Short(), replaced.LocalID())
	}
	n.logger.Printf("peer %d (%s) connected at %s", peer.LocalID(), peer.NodeID().Short(), peer.AddrPort())
}

func (n *Node) completedPeer(now time.Duration) (*session.Peer, error) {
	localID, err := n.auth.CompletedPeerLocalID()
	if err != nil {
		return nil, err
	}
	seq, ok := n.pending[localID]
	if !ok {
		return nil, fmt.Errorf("no pending sequence for peer %d", localID)
	}
	delete(n.pending, localID)

	nodeID, err := n.auth.CompletedPeerNodeID()
	if err != nil {
		n.peers.Release(localID)
		return nil, err
	}
	remoteID, addr, err := n.auth.CompletedPeerAddress()
	if err != nil {
		n.peers.Release(localID)
		return nil, err
	}
	keys, err := n.auth.CompletedPeerSessionKeys()
	if err != nil {
		n.peers.Release(localID)
		return nil, err
	}
	params, err := n.auth.CompletedPeerConnectionParams()
	if err != nil {
		n.peers.Release(localID)
		return nil, err
	}
	channel, err := chacha20.NewDataChannel(keys, seq, params.Seq, n.cfg.WindowSize)
	if err != nil {
		n.peers.Release(localID)
		return nil, err
	}
	return session.NewPeer(localID, remoteID, nodeID, params.Flags, addr, channel, now), nil
}

// OutputPacket returns the next datagram to send: queued data packets
// first, then handshake messages that are due.
func (n *Node) OutputPacket() ([]byte, netip.AddrPort, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.outbound.Length() > 0 {
		pkt := n.outbound.Remove().(outboundPacket)
		return pkt.data, pkt.addr, true
	}
	msg, addr, ok := n.auth.NextMessage()
	if !ok {
		return nil, netip.AddrPort{}, false
	}
	datagram := make([]byte, PeerIDSize, PeerIDSize+len(msg))
	return append(datagram, msg...), addr, true
}

// SendFrame queues frame for the peer with the given local id.
func (n *Node) SendFrame(peerID uint32, frame []byte) error {
	if len(frame) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	peer, err := n.peers.GetByLocalID(peerID)
	if err != nil || peer.IsClosed() {
		return ErrPeerNotFound
	}
	n.send(peer, packetFrame, frame, n.clock.Now())
	return nil
}

// Broadcast queues frame for every connected peer.
func (n *Node) Broadcast(frame []byte) error {
	if len(frame) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.clock.Now()
	for _, peer := range n.peers.Peers() {
		n.send(peer, packetFrame, frame, now)
	}
	return nil
}

func (n *Node) send(peer *session.Peer, kind byte, payload []byte, now time.Duration) {
	var header [PeerIDSize]byte
	binary.BigEndian.PutUint32(header[:], peer.RemoteID())
	plain := make([]byte, 1+len(payload))
	plain[0] = kind
	copy(plain[1:], payload)
	n.outbound.Add(outboundPacket{
		data: peer.Seal(header[:], plain, now),
		addr: peer.AddrPort(),
	})
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

// Tick runs the periodic work of the node: keepalives, bootstrap
// reconnects and the status line.
func (n *Node) Tick() {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.clock.Now()
	peers := n.peers.Peers()
	for _, peer := range peers {
		if now-peer.LastSend() >= n.cfg.KeepaliveInterval {
			n.send(peer, packetKeepalive, nil, now)
		}
	}

	if len(peers) == 0 && (!n.reconnectArmed || now-n.lastReconnect > n.cfg.ReconnectInterval) {
		n.reconnectArmed = true
		n.lastReconnect = now
		for _, addr := range n.initPeers {
			if n.auth.Start(canonical(addr)) {
				n.logger.Printf("initiated new connection to %s", addr)
			} else {
				n.logger.Printf("failed to initiate connection to %s", addr)
			}
		}
	}

	if now-n.lastStatus > n.cfg.StatusInterval {
		n.lastStatus = now
		if len(peers) != n.lastPeerCount {
			n.lastPeerCount = len(peers)
			n.logger.Printf("uptime %d secs, %d peers connected", int64((now-n.started)/time.Second), len(peers))
		}
	}
}

// Reset drops every handshake and peer and switches to network. It is used
// when the network identity changes.
func (n *Node) Reset(network *noise.NetworkKey) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if network != nil {
		n.credentials.SetNetwork(network)
	}
	n.auth.Reset()
	n.auth.SetFastauth(n.cfg.FastAuth)
	n.peers.Reset()
	n.outbound = queue.New()
	clear(n.pending)
	n.reconnectArmed = false
	n.lastPeerCount = -1
	n.logger.Printf("node reset, all peers disconnected")
}

// Status is a point-in-time view of the node for telemetry.
type Status struct {
	NodeID auth.NodeID
	Uptime time.Duration
	Auth   authmgt.Stats
	Peers  []PeerStatus
}

type PeerStatus struct {
	LocalID      uint32
	RemoteID     uint32
	NodeID       auth.NodeID
	Addr         netip.AddrPort
	Quality      int
	Accepted     uint64
	Replayed     uint64
	LastActivity time.Duration
}

func (n *Node) Status() Status {
	now := n.clock.Now()
	st := Status{
		NodeID: n.NodeID(),
		Uptime: now - n.started,
		Auth:   n.auth.Stats(),
	}
	for _, p := range n.peers.Peers() {
		accepted, replayed := p.Counters()
		st.Peers = append(st.Peers, PeerStatus{
			LocalID:      p.LocalID(),
			RemoteID:     p.RemoteID(),
			NodeID:       p.NodeID(),
			Addr:         p.AddrPort(),
			Quality:      p.Quality(),
			Accepted:     accepted,
			Replayed:     replayed,
			LastActivity: now - p.LastActivity(),
		})
	}
	return st
}

// initialSequence picks the first data packet sequence number. The upper
// half of the int64 range is left free so the counter never wraps.
func initialSequence() (int64, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint32(b[:])), nil
}

func canonical(ap netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}
