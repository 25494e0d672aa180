package authmgt

import (
	"meshvpn/application/network/auth"
	"net/netip"
	"sync"
)

// ConcurrentManager serializes every operation of the wrapped manager with
// one mutex held for the whole call.
type ConcurrentManager struct {
	mu      sync.Mutex
	manager SessionManager
}

func NewConcurrentManager(manager SessionManager) SessionManager {
	return &ConcurrentManager{
		manager: manager,
	}
}

func (c *ConcurrentManager) SlotCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager.SlotCount()
}

func (c *ConcurrentManager) UsedSlotCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager.UsedSlotCount()
}

func (c *ConcurrentManager) Start(addr netip.AddrPort) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager.Start(addr)
}

func (c *ConcurrentManager) DecodeMessage(msg []byte, from netip.AddrPort) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager.DecodeMessage(msg, from)
}

func (c *ConcurrentManager) NextMessage() ([]byte, netip.AddrPort, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager.NextMessage()
}

func (c *ConcurrentManager) SetFastauth(enable bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manager.SetFastauth(enable)
}

func (c *ConcurrentManager) HasAuthedPeer() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager.HasAuthedPeer()
}

func (c *ConcurrentManager) AuthedPeerNodeID() (auth.NodeID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager.AuthedPeerNodeID()
}

func (c *ConcurrentManager) AcceptAuthedPeer(localPeerID uint32, seq, flags int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manager.AcceptAuthedPeer(localPeerID, seq, flags)
}

func (c *ConcurrentManager) RejectAuthedPeer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manager.RejectAuthedPeer()
}

func (c *ConcurrentManager) HasCompletedPeer() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager.HasCompletedPeer()
}

func (c *ConcurrentManager) CompletedPeerLocalID() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager.CompletedPeerLocalID()
}

func (c *ConcurrentManager) CompletedPeerNodeID() (auth.NodeID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager.CompletedPeerNodeID()
}

func (c *ConcurrentManager) CompletedPeerAddress() (uint32, netip.AddrPort, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager.CompletedPeerAddress()
}

func (c *ConcurrentManager) CompletedPeerSessionKeys() (auth.KeyMaterial, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager.CompletedPeerSessionKeys()
}

func (c *ConcurrentManager) CompletedPeerConnectionParams() (auth.ConnectionParams, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager.CompletedPeerConnectionParams()
}

func (c *ConcurrentManager) FinishCompletedPeer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manager.FinishCompletedPeer()
}

func (c *ConcurrentManager) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager.Stats()
}

func (c *ConcurrentManager) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manager.Reset()
}
