package session

import (
	"meshvpn/application/network/auth"
	"sync"
	"time"
)

type ConcurrentRepository struct {
	mu         sync.RWMutex
	repository Repository
}

func NewConcurrentRepository(repository Repository) Repository {
	return &ConcurrentRepository{
		repository: repository,
	}
}

func (c *ConcurrentRepository) Reserve(now time.Duration) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.repository.Reserve(now)
}

func (c *ConcurrentRepository) Release(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repository.Release(id)
}

func (c *ConcurrentRepository) Add(peer *Peer) (*Peer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.repository.Add(peer)
}

func (c *ConcurrentRepository) Delete(peer *Peer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repository.Delete(peer)
}

func (c *ConcurrentRepository) GetByLocalID(id uint32) (*Peer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.repository.GetByLocalID(id)
}

func (c *ConcurrentRepository) GetByNodeID(id auth.NodeID) (*Peer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.repository.GetByNodeID(id)
}

func (c *ConcurrentRepository) Peers() []*Peer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.repository.Peers()
}

func (c *ConcurrentRepository) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.repository.Count()
}

func (c *ConcurrentRepository) Capacity() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.repository.Capacity()
}

func (c *ConcurrentRepository) ReapIdle(now, timeout time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.repository.ReapIdle(now, timeout)
}

func (c *ConcurrentRepository) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repository.Reset()
}
