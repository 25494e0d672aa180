package idpool

import "errors"

var ErrInvalidSize = errors.New("id pool size must be positive")

// Pool hands out integer ids in [0, size) and iterates over the ids in use
// in round-robin order. The zero value is not usable; call New.
type Pool struct {
	free   []int
	used   []bool
	count  int
	cursor int
}

func New(size int) (*Pool, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	p := &Pool{
		free: make([]int, 0, size),
		used: make([]bool, size),
	}
	p.Reset()
	return p, nil
}

// Size returns the capacity of the pool.
func (p *Pool) Size() int {
	return len(p.used)
}

// UsedCount returns the number of ids currently handed out.
func (p *Pool) UsedCount() int {
	return p.count
}

// IsUsed reports whether id is currently handed out.
func (p *Pool) IsUsed(id int) bool {
	return id >= 0 && id < len(p.used) && p.used[id]
}

// Allocate takes a free id. ok is false when the pool is exhausted.
func (p *Pool) Allocate() (id int, ok bool) {
	if len(p.free) == 0 {
		return -1, false
	}
	id = p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.used[id] = true
	p.count++
	return id, true
}

// Free returns id to the pool. Freeing an id that is not in use is a no-op.
func (p *Pool) Free(id int) {
	if !p.IsUsed(id) {
		return
	}
	p.used[id] = false
	p.count--
	p.free = append(p.free, id)
}

// Next advances the round-robin cursor to the next used id and returns it.
// A full sweep of UsedCount() calls visits every used id exactly once as
// long as the pool is not modified in between. Returns -1 if no id is used.
func (p *Pool) Next() int {
	if p.count == 0 {
		return -1
	}
	size := len(p.used)
	for i := 1; i <= size; i++ {
		id := (p.cursor + i) % size
		if p.used[id] {
			p.cursor = id
			return id
		}
	}
	return -1
}

// Reset frees every id. Lower ids are handed out first afterwards.
func (p *Pool) Reset() {
	size := len(p.used)
	p.free = p.free[:0]
	for id := size - 1; id >= 0; id-- {
		p.used[id] = false
		p.free = append(p.free, id)
	}
	p.count = 0
	p.cursor = size - 1
}
