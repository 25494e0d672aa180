package noise

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"meshvpn/application/network/auth"

	noiselib "github.com/flynn/noise"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/curve25519"
)

var cipherSuite = noiselib.NewCipherSuite(noiselib.DH25519, noiselib.CipherChaChaPoly, noiselib.HashBLAKE2s)

// Identity is the static X25519 key pair of this node.
type Identity struct {
	static noiselib.DHKey
	nodeID auth.NodeID
}

// GenerateIdentity creates a fresh random identity.
func GenerateIdentity() (*Identity, error) {
	key, err := cipherSuite.GenerateKeypair(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("noise: generate static key: %w", err)
	}
	return newIdentity(key), nil
}

// NewIdentity builds an identity from a private key. If public is not empty
// it must match the key derived from private.
func NewIdentity(private, public []byte) (*Identity, error) {
	if len(private) != curve25519.ScalarSize {
		return nil, ErrInvalidPrivateKey
	}
	derived, err := curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	if len(public) > 0 && subtle.ConstantTimeCompare(public, derived) != 1 {
		return nil, ErrPublicKeyMismatch
	}
	return newIdentity(noiselib.DHKey{
		Private: append([]byte(nil), private...),
		Public:  derived,
	}), nil
}

func newIdentity(key noiselib.DHKey) *Identity {
	return &Identity{
		static: key,
		nodeID: NodeIDFromPublicKey(key.Public),
	}
}

// NodeIDFromPublicKey hashes a static public key into a node id.
func NodeIDFromPublicKey(public []byte) auth.NodeID {
	return blake2s.Sum256(public)
}

func (i *Identity) NodeID() auth.NodeID {
	return i.nodeID
}

func (i *Identity) PublicKey() []byte {
	return append([]byte(nil), i.static.Public...)
}

func (i *Identity) PrivateKey() []byte {
	return append([]byte(nil), i.static.Private...)
}
