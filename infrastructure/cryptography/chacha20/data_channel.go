package chacha20

import (
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"meshvpn/application/network/auth"
	"meshvpn/infrastructure/cryptography/mem"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// SeqLength is the size of the sequence number that precedes the ciphertext.
	SeqLength = 8
	// DataOverhead is the per-packet cost of sealing, header excluded.
	DataOverhead = SeqLength + chacha20poly1305.Overhead
)

// DataChannel protects the data packets exchanged with one peer.
// Outbound packets carry a strictly increasing sequence number starting after
// the value announced during the handshake; inbound packets are checked
// against a SequenceWindow anchored at the value the peer announced.
//
// DataChannel is not safe for concurrent use.
type DataChannel struct {
	send    cipher.AEAD
	recv    cipher.AEAD
	sendSeq int64
	window  *SequenceWindow
	nonce   [chacha20poly1305.NonceSize]byte
}

func NewDataChannel(keys auth.KeyMaterial, localSeq, remoteSeq, windowSize int64) (*DataChannel, error) {
	send, err := chacha20poly1305.New(keys.SendKey[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyBytes, err)
	}
	recv, err := chacha20poly1305.New(keys.RecvKey[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyBytes, err)
	}
	return &DataChannel{
		send:    send,
		recv:    recv,
		sendSeq: localSeq,
		window:  NewSequenceWindow(windowSize, remoteSeq),
	}, nil
}

// Seal appends seq || AEAD(plaintext) to header and returns the packet.
// header is authenticated but not encrypted.
func (c *DataChannel) Seal(header, plaintext []byte) []byte {
	c.sendSeq++
	out := make([]byte, len(header)+SeqLength, len(header)+DataOverhead+len(plaintext))
	copy(out, header)
	binary.BigEndian.PutUint64(out[len(header):], uint64(c.sendSeq))
	nonce := c.nonceFor(c.sendSeq)
	return c.send.Seal(out, nonce, plaintext, out)
}

// Open authenticates packet, whose first headerLen bytes are the clear
// header, and checks its sequence number against the replay window.
// The window is only advanced for packets that authenticate.
func (c *DataChannel) Open(packet []byte, headerLen int) ([]byte, error) {
	if len(packet) < headerLen+DataOverhead {
		return nil, ErrPacketTooShort
	}
	aad := packet[:headerLen+SeqLength]
	seq := int64(binary.BigEndian.Uint64(packet[headerLen:]))
	plaintext, err := c.recv.Open(nil, c.nonceFor(seq), packet[headerLen+SeqLength:], aad)
	if err != nil {
		return nil, fmt.Errorf("open data packet: %w", err)
	}
	if !c.window.Verify(seq) {
		mem.ZeroBytes(plaintext)
		return nil, ErrNonUniqueNonce
	}
	return plaintext, nil
}

// Quality reports the receive link quality, see SequenceWindow.Quality.
func (c *DataChannel) Quality() int {
	return c.window.Quality()
}

func (c *DataChannel) nonceFor(seq int64) []byte {
	binary.BigEndian.PutUint64(c.nonce[4:], uint64(seq))
	return c.nonce[:]
}
