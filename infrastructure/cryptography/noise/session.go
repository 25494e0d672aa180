package noise

import (
	"bytes"
	"crypto/cipher"
	"encoding/binary"
	"meshvpn/application/network/auth"
	"meshvpn/infrastructure/cryptography/mem"

	noiselib "github.com/flynn/noise"
	"golang.org/x/crypto/chacha20poly1305"
)

// Wire format of a handshake message:
//
//	[auth id (4)] [sender slot id + 1 (4)] [type (1)] [body] [MAC (16)]
//
// The auth id is 0 for a new session request and receiver slot id + 1
// otherwise. The MAC covers everything before it.
const (
	AuthIDSize     = 4
	senderSize     = 4
	typeSize       = 1
	prefixSize     = AuthIDSize + senderSize + typeSize
	MinMessageSize = prefixSize + MACSize

	peerInfoSize     = 4 + 8 + 8 + 1
	peerInfoNonceLen = 8
)

type messageType byte

const (
	msgInit     messageType = 1 // XX -> e
	msgResponse messageType = 2 // XX <- e, ee, s, es
	msgFinal    messageType = 3 // XX -> s, se, psk
	msgPeerInfo messageType = 4
)

const (
	flagHaveYours byte = 1 << iota
	flagNeedAck
)

type sessionState uint8

const (
	stateIdle sessionState = iota
	stateWaitResponse
	stateWaitFinal
	stateAuthed
)

type peerInfo struct {
	peerID uint32
	seq    int64
	flags  int64
}

// Session runs one Noise XXpsk3 handshake followed by the peer-info
// exchange that announces the data channel parameters of both sides.
//
// Every message is kept until it has to be replaced, so NextMessage can be
// called any number of times for retransmission.
type Session struct {
	slotTag     uint32
	credentials *Credentials

	state      sessionState
	initiator  bool
	hs         *noiselib.HandshakeState
	remoteSlot uint32
	outgoing   []byte
	received   []byte
	resendOut  bool

	remoteNode auth.NodeID
	keys       auth.KeyMaterial
	infoSend   cipher.AEAD
	infoRecv   cipher.AEAD
	infoNonce  uint64

	local     peerInfo
	localSet  bool
	remote    peerInfo
	remoteSet bool
	completed bool
	peerAck   bool
	replyDue  bool
}

func newSession(slotID int, credentials *Credentials) *Session {
	return &Session{
		slotTag:     uint32(slotID + 1),
		credentials: credentials,
	}
}

func (s *Session) Start() {
	s.Reset()
	hs, err := s.newHandshake(true)
	if err != nil {
		return
	}
	msg1, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return
	}
	s.hs = hs
	s.initiator = true
	s.state = stateWaitResponse
	s.outgoing = s.frame(0, msgInit, msg1)
}

func (s *Session) newHandshake(initiator bool) (*noiselib.HandshakeState, error) {
	network := s.credentials.Network()
	return noiselib.NewHandshakeState(noiselib.Config{
		CipherSuite:           cipherSuite,
		Pattern:               noiselib.HandshakeXX,
		Initiator:             initiator,
		Prologue:              append([]byte(ProtocolID), ProtocolVersion),
		PresharedKey:          network.psk[:],
		PresharedKeyPlacement: 3,
		StaticKeypair:         s.credentials.identity.static,
	})
}

func (s *Session) frame(authID uint32, t messageType, body []byte) []byte {
	msg := make([]byte, prefixSize, prefixSize+len(body)+MACSize)
	binary.BigEndian.PutUint32(msg[0:AuthIDSize], authID)
	binary.BigEndian.PutUint32(msg[AuthIDSize:AuthIDSize+senderSize], s.slotTag)
	msg[prefixSize-1] = byte(t)
	msg = append(msg, body...)
	return AppendMAC(msg, &s.credentials.Network().macKey)
}

func (s *Session) DecodeMessage(msg []byte) bool {
	if len(msg) < MinMessageSize || !VerifyMAC(msg, &s.credentials.Network().macKey) {
		return false
	}
	authID := binary.BigEndian.Uint32(msg[0:AuthIDSize])
	sender := binary.BigEndian.Uint32(msg[AuthIDSize : AuthIDSize+senderSize])
	t := messageType(msg[prefixSize-1])
	body := msg[prefixSize : len(msg)-MACSize]

	if sender == 0 || sender > 1<<31 {
		return false
	}
	if t == msgInit {
		return authID == 0 && s.decodeInit(sender, body)
	}
	if authID != s.slotTag || (s.remoteSlot != 0 && sender != s.remoteSlot) {
		return false
	}
	switch t {
	case msgResponse:
		return s.decodeResponse(sender, msg, body)
	case msgFinal:
		return s.decodeFinal(msg, body)
	case msgPeerInfo:
		return s.decodePeerInfo(msg, body)
	default:
		return false
	}
}

func (s *Session) decodeInit(sender uint32, body []byte) bool {
	if s.state != stateIdle {
		return false
	}
	hs, err := s.newHandshake(false)
	if err != nil {
		return false
	}
	if _, _, _, err = hs.ReadMessage(nil, body); err != nil {
		return false
	}
	msg2, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return false
	}
	s.hs = hs
	s.remoteSlot = sender
	s.state = stateWaitFinal
	s.outgoing = s.frame(sender, msgResponse, msg2)
	return true
}

func (s *Session) decodeResponse(sender uint32, msg, body []byte) bool {
	if !s.initiator {
		return false
	}
	if s.state == stateAuthed {
		// The responder did not get our final message yet.
		if !bytes.Equal(msg, s.received) {
			return false
		}
		s.resendOut = true
		return true
	}
	if s.state != stateWaitResponse {
		return false
	}
	if _, _, _, err := s.hs.ReadMessage(nil, body); err != nil {
		return false
	}
	msg3, cs1, cs2, err := s.hs.WriteMessage(nil, nil)
	if err != nil || cs1 == nil || cs2 == nil {
		s.Reset()
		return false
	}
	s.remoteSlot = sender
	s.outgoing = s.frame(sender, msgFinal, msg3)
	s.authenticate(msg, cs1, cs2)
	s.resendOut = true
	return true
}

func (s *Session) decodeFinal(msg, body []byte) bool {
	if s.initiator {
		return false
	}
	if s.state == stateAuthed {
		return bytes.Equal(msg, s.received)
	}
	if s.state != stateWaitFinal {
		return false
	}
	_, cs1, cs2, err := s.hs.ReadMessage(nil, body)
	if err != nil || cs1 == nil || cs2 == nil {
		return false
	}
	s.outgoing = nil
	s.authenticate(msg, cs1, cs2)
	return true
}

// authenticate installs the key material of a finished Noise handshake.
// cs1 encrypts from initiator to responder, cs2 the other way round.
func (s *Session) authenticate(msg []byte, cs1, cs2 *noiselib.CipherState) {
	i2r := cs1.UnsafeKey()
	r2i := cs2.UnsafeKey()
	defer mem.ZeroBytes(i2r[:])
	defer mem.ZeroBytes(r2i[:])

	if s.initiator {
		s.keys.SendKey, s.keys.RecvKey = i2r, r2i
	} else {
		s.keys.SendKey, s.keys.RecvKey = r2i, i2r
	}
	copy(s.keys.ID[:], s.hs.ChannelBinding())
	s.remoteNode = NodeIDFromPublicKey(s.hs.PeerStatic())

	sendInfoKey := deriveLabeledKey(PeerInfoLabel, s.keys.SendKey[:])
	recvInfoKey := deriveLabeledKey(PeerInfoLabel, s.keys.RecvKey[:])
	s.infoSend, _ = chacha20poly1305.New(sendInfoKey[:])
	s.infoRecv, _ = chacha20poly1305.New(recvInfoKey[:])
	mem.ZeroBytes(sendInfoKey[:])
	mem.ZeroBytes(recvInfoKey[:])

	if eph := s.hs.LocalEphemeral(); eph.Private != nil {
		mem.ZeroBytes(eph.Private)
	}
	s.hs = nil
	s.received = append(s.received[:0], msg...)
	s.state = stateAuthed
}

func (s *Session) decodePeerInfo(msg, body []byte) bool {
	if s.state != stateAuthed || len(body) != peerInfoNonceLen+peerInfoSize+chacha20poly1305.Overhead {
		return false
	}
	var nonce [chacha20poly1305.NonceSize]byte
	copy(nonce[4:], body[:peerInfoNonceLen])
	plain, err := s.infoRecv.Open(nil, nonce[:], body[peerInfoNonceLen:], msg[:prefixSize])
	if err != nil {
		return false
	}

	if !s.remoteSet {
		s.remote = peerInfo{
			peerID: binary.BigEndian.Uint32(plain[0:4]),
			seq:    int64(binary.BigEndian.Uint64(plain[4:12])),
			flags:  int64(binary.BigEndian.Uint64(plain[12:20])),
		}
		s.remoteSet = true
	}

	bits := plain[20]
	haveYours := bits&flagHaveYours != 0
	switch {
	case s.completed && haveYours:
		s.peerAck = true
	case s.localSet && haveYours:
		s.completed = true
	}
	if s.localSet && (bits&flagNeedAck != 0 || !haveYours) {
		s.replyDue = true
	}
	return true
}

func (s *Session) sealPeerInfo() []byte {
	plain := make([]byte, peerInfoSize)
	binary.BigEndian.PutUint32(plain[0:4], s.local.peerID)
	binary.BigEndian.PutUint64(plain[4:12], uint64(s.local.seq))
	binary.BigEndian.PutUint64(plain[12:20], uint64(s.local.flags))
	if s.remoteSet {
		plain[20] |= flagHaveYours
	}
	if !s.peerAck {
		plain[20] |= flagNeedAck
	}

	s.infoNonce++
	var nonce [chacha20poly1305.NonceSize]byte
	binary.BigEndian.PutUint64(nonce[4:], s.infoNonce)

	var header [prefixSize]byte
	binary.BigEndian.PutUint32(header[0:AuthIDSize], s.remoteSlot)
	binary.BigEndian.PutUint32(header[AuthIDSize:AuthIDSize+senderSize], s.slotTag)
	header[prefixSize-1] = byte(msgPeerInfo)

	msg := make([]byte, 0, prefixSize+peerInfoNonceLen+peerInfoSize+chacha20poly1305.Overhead+MACSize)
	msg = append(msg, header[:]...)
	msg = append(msg, nonce[4:]...)
	msg = s.infoSend.Seal(msg, nonce[:], plain, header[:])
	return AppendMAC(msg, &s.credentials.Network().macKey)
}

func (s *Session) NextMessage() ([]byte, bool) {
	switch s.state {
	case stateWaitResponse, stateWaitFinal:
		return s.outgoing, s.outgoing != nil
	case stateAuthed:
		if s.initiator && s.resendOut {
			s.resendOut = false
			return s.outgoing, true
		}
		if s.localSet && (!s.peerAck || s.replyDue) {
			s.replyDue = false
			return s.sealPeerInfo(), true
		}
	}
	return nil, false
}

func (s *Session) IsPreauth() bool {
	return s.state != stateAuthed
}

// IsAuthed reports a negotiated session still waiting for the local peer
// layer to accept it.
func (s *Session) IsAuthed() bool {
	return s.state == stateAuthed && !s.localSet
}

func (s *Session) IsCompleted() bool {
	return s.completed
}

func (s *Session) IsPeerCompleted() bool {
	return s.peerAck
}

func (s *Session) RemoteNodeID() (auth.NodeID, error) {
	if s.state != stateAuthed {
		return auth.NodeID{}, auth.ErrNotAuthed
	}
	return s.remoteNode, nil
}

func (s *Session) RemotePeerID() (uint32, error) {
	if !s.remoteSet {
		return 0, auth.ErrNotCompleted
	}
	return s.remote.peerID, nil
}

func (s *Session) LocalPeerID() (uint32, error) {
	if !s.localSet {
		return 0, auth.ErrNotCompleted
	}
	return s.local.peerID, nil
}

func (s *Session) SessionKeys() (auth.KeyMaterial, error) {
	if s.state != stateAuthed {
		return auth.KeyMaterial{}, auth.ErrNotAuthed
	}
	return s.keys, nil
}

func (s *Session) ConnectionParams() (auth.ConnectionParams, error) {
	if !s.remoteSet {
		return auth.ConnectionParams{}, auth.ErrNotCompleted
	}
	return auth.ConnectionParams{Seq: s.remote.seq, Flags: s.remote.flags}, nil
}

func (s *Session) SetLocalData(localPeerID uint32, seq, flags int64) {
	if s.state != stateAuthed || s.localSet {
		return
	}
	s.local = peerInfo{peerID: localPeerID, seq: seq, flags: flags}
	s.localSet = true
}

func (s *Session) Reset() {
	if s.hs != nil {
		if eph := s.hs.LocalEphemeral(); eph.Private != nil {
			mem.ZeroBytes(eph.Private)
		}
	}
	mem.ZeroBytes(s.keys.SendKey[:])
	mem.ZeroBytes(s.keys.RecvKey[:])
	*s = Session{
		slotTag:     s.slotTag,
		credentials: s.credentials,
		received:    s.received[:0],
	}
}
