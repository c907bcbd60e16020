package memory

import "sync"

// ReclaimablePool is the only thing the reclamation engine needs from a
// pool. It is intentionally type-erased.
type ReclaimablePool interface {
	PutAny(any)
}

// Pool is a typed object pool.
// It is type-safe for normal use, but can also be handed to the engine
// as a ReclaimablePool.
type Pool[T any] struct {
	p     *sync.Pool
	reset func(*T)
}

// NewPool builds a pool. reset, when non-nil, runs on every Put before
// the object becomes reusable; clients use it to scrub or poison
// recycled objects.
func NewPool[T any](ctor func() *T, reset func(*T)) *Pool[T] {
	return &Pool[T]{
		p: &sync.Pool{
			New: func() any { return ctor() },
		},
		reset: reset,
	}
}

func (p *Pool[T]) Get() *T {
	return p.p.Get().(*T)
}

func (p *Pool[T]) Put(v *T) {
	if v == nil {
		return
	}
	if p.reset != nil {
		p.reset(v)
	}
	p.p.Put(v)
}

// PutAny allows Pool[T] to satisfy ReclaimablePool.
func (p *Pool[T]) PutAny(v any) {
	obj, ok := v.(*T)
	if !ok {
		panic("memory.Pool: PutAny received wrong type")
	}
	p.Put(obj)
}
