// Package pool provides a reusable-record allocator for entities that churn
// every frame (enemies, projectiles, particles, pickups).
package pool

// Stats reports how many records are in use and how many are waiting for reuse.
type Stats struct {
	Active int `json:"active"`
	Free   int `json:"free"`
}

// Pool hands out *T records from a free list and takes them back.
//
// Acquire overwrites the whole record with the caller's initial value, so a
// recycled record never carries fields from its previous life. Release of a
// record that is not currently active is ignored, which makes double release
// harmless. The pool enforces no ceiling; callers cap their own populations.
//
// A Pool is not safe for concurrent use. The simulation owns it exclusively.
type Pool[T any] struct {
	free   []*T
	active map[*T]struct{}
}

// New creates a pool with initial records pre-allocated on the free list.
func New[T any](initial int) *Pool[T] {
	if initial < 0 {
		initial = 0
	}
	p := &Pool[T]{
		free:   make([]*T, 0, initial),
		active: make(map[*T]struct{}, initial),
	}
	for i := 0; i < initial; i++ {
		p.free = append(p.free, new(T))
	}
	return p
}

// Acquire returns a record reset to init and marks it active.
func (p *Pool[T]) Acquire(init T) *T {
	var obj *T
	if n := len(p.free); n > 0 {
		obj = p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
	} else {
		obj = new(T)
	}
	*obj = init
	p.active[obj] = struct{}{}
	return obj
}

// Release returns obj to the free list. It reports false (and does nothing)
// when obj is nil or not active.
func (p *Pool[T]) Release(obj *T) bool {
	if obj == nil {
		return false
	}
	if _, ok := p.active[obj]; !ok {
		return false
	}
	delete(p.active, obj)
	p.free = append(p.free, obj)
	return true
}

// ReleaseAll moves every active record back to the free list.
func (p *Pool[T]) ReleaseAll() {
	for obj := range p.active {
		p.free = append(p.free, obj)
	}
	clear(p.active)
}

// IsActive reports whether obj is currently handed out.
func (p *Pool[T]) IsActive(obj *T) bool {
	_, ok := p.active[obj]
	return ok
}

// Active returns the number of records in use.
func (p *Pool[T]) Active() int { return len(p.active) }

// Free returns the number of records waiting for reuse.
func (p *Pool[T]) Free() int { return len(p.free) }

// Stats returns active/free counts.
func (p *Pool[T]) Stats() Stats {
	return Stats{Active: len(p.active), Free: len(p.free)}
}
