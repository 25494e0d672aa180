package noise

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// NetworkKey binds handshakes to one mesh network. Nodes that disagree on
// the network name or secret never get past the MAC check of each other.
type NetworkKey struct {
	psk    [32]byte
	macKey [32]byte
}

// DeriveNetworkKey derives the pre-shared key and the MAC key of a network
// from its name and secret.
func DeriveNetworkKey(name, secret string) (*NetworkKey, error) {
	if name == "" {
		return nil, ErrEmptyNetworkName
	}
	r := hkdf.New(sha256.New, []byte(secret), []byte(ProtocolID), []byte("network:"+name))
	k := &NetworkKey{}
	if _, err := io.ReadFull(r, k.psk[:]); err != nil {
		return nil, fmt.Errorf("noise: derive network key: %w", err)
	}
	k.macKey = deriveLabeledKey(MACLabel, k.psk[:])
	return k, nil
}

// Equal reports whether both keys belong to the same network.
func (k *NetworkKey) Equal(other *NetworkKey) bool {
	return other != nil && k.psk == other.psk
}
