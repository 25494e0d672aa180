package noise

import (
	"meshvpn/application/network/auth"
	"sync/atomic"
)

// Credentials are shared by every session of one node. The network key can
// be swapped at runtime; sessions pick up the new key on their next message.
type Credentials struct {
	identity *Identity
	network  atomic.Pointer[NetworkKey]
}

func NewCredentials(identity *Identity, network *NetworkKey) *Credentials {
	c := &Credentials{identity: identity}
	c.network.Store(network)
	return c
}

func (c *Credentials) Identity() *Identity {
	return c.identity
}

func (c *Credentials) Network() *NetworkKey {
	return c.network.Load()
}

// SetNetwork replaces the network key. Sessions negotiated under the old
// key must be reset by the caller.
func (c *Credentials) SetNetwork(network *NetworkKey) {
	c.network.Store(network)
}

// SessionFactory creates Noise sessions for the slots of a session manager.
type SessionFactory struct {
	credentials *Credentials
}

func NewSessionFactory(credentials *Credentials) *SessionFactory {
	return &SessionFactory{credentials: credentials}
}

func (f *SessionFactory) NewSession(slotID int) auth.Session {
	return newSession(slotID, f.credentials)
}
