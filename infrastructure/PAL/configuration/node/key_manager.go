package node

import (
	"encoding/base64"
	"fmt"
	"meshvpn/infrastructure/cryptography/noise"
	"os"
)

type KeyManager interface {
	// PrepareKeys guarantees that the node has an X25519 identity.
	PrepareKeys() (*noise.Identity, error)
}

const privateKeyEnvVar = "MESHVPN_PRIVATE_KEY"

type X25519KeyManager struct {
	configurationManager ConfigurationManager
}

func NewX25519KeyManager(store ConfigurationManager) KeyManager {
	return &X25519KeyManager{configurationManager: store}
}

// PrepareKeys returns the identity from the configuration, then from the
// environment, and otherwise generates one and stores it in the
// configuration.
func (m *X25519KeyManager) PrepareKeys() (*noise.Identity, error) {
	conf, err := m.configurationManager.Configuration()
	if err != nil {
		return nil, err
	}
	if len(conf.X25519PrivateKey) != 0 {
		identity, identityErr := noise.NewIdentity(conf.X25519PrivateKey, conf.X25519PublicKey)
		if identityErr != nil {
			return nil, fmt.Errorf("configured key pair is invalid: %w", identityErr)
		}
		return identity, nil
	}

	if encoded := os.Getenv(privateKeyEnvVar); encoded != "" {
		private, decodeErr := base64.StdEncoding.DecodeString(encoded)
		if decodeErr != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", privateKeyEnvVar, decodeErr)
		}
		return noise.NewIdentity(private, nil)
	}

	identity, err := noise.GenerateIdentity()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	if err := m.configurationManager.InjectX25519Keys(identity.PublicKey(), identity.PrivateKey()); err != nil {
		return nil, fmt.Errorf("failed to store key pair: %w", err)
	}
	return identity, nil
}
