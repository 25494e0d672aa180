package noise

import (
	"crypto/hmac"
	"meshvpn/infrastructure/cryptography/mem"

	"golang.org/x/crypto/blake2s"
)

const (
	// ProtocolID is the protocol identifier for domain separation.
	ProtocolID = "meshvpn"

	// ProtocolVersion is mixed into the prologue and every derived key.
	ProtocolVersion = 1

	// MACLabel is the label for network MAC key derivation.
	MACLabel = "network-mac"

	// PeerInfoLabel is the label for peer-info key derivation.
	PeerInfoLabel = "peer-info"

	// MACSize is the size of the network MAC in bytes.
	MACSize = 16
)

// deriveLabeledKey derives a key with full domain separation:
// key = BLAKE2s(label || protocol_id || version || input)
func deriveLabeledKey(label string, input []byte) [32]byte {
	h, _ := blake2s.New256(nil)
	h.Write([]byte(label))
	h.Write([]byte(ProtocolID))
	h.Write([]byte{byte(ProtocolVersion)})
	h.Write(input)
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}

// ComputeMAC computes keyed BLAKE2s-128 over msg.
func ComputeMAC(msg []byte, key *[32]byte) []byte {
	h, _ := blake2s.New128(key[:])
	h.Write(msg)
	return h.Sum(nil)
}

// VerifyMAC verifies the trailing MAC of msgWithMAC. It is stateless and
// cheap and runs before any DH operation.
func VerifyMAC(msgWithMAC []byte, key *[32]byte) bool {
	if len(msgWithMAC) < MACSize {
		return false
	}
	msgLen := len(msgWithMAC) - MACSize
	expected := ComputeMAC(msgWithMAC[:msgLen], key)
	defer mem.ZeroBytes(expected)
	return hmac.Equal(msgWithMAC[msgLen:], expected)
}

// AppendMAC appends the MAC of msg to msg.
func AppendMAC(msg []byte, key *[32]byte) []byte {
	return append(msg, ComputeMAC(msg, key)...)
}
