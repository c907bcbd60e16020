package rcu

import (
	"fmt"
	"sync/atomic"
)

// Pointer is a protected slot: many readers, one writer at a time.
// Targets are treated as immutable once published; writers publish a
// fresh value and hand the old one to Postpone.
//
// The zero value is an empty slot.
type Pointer[T any] struct {
	p atomic.Pointer[T]
}

func NewPointer[T any](v *T) *Pointer[T] {
	p := &Pointer[T]{}
	p.p.Store(v)
	return p
}

// Publish stores v and returns the previous target. Everything the
// writer did before Publish is visible to readers that load v.
func (p *Pointer[T]) Publish(v *T) (old *T) {
	return p.p.Swap(v)
}

// Protected loads the slot on the writer side, where the caller already
// excludes other writers and needs no guard.
func (p *Pointer[T]) Protected() *T {
	return p.p.Load()
}

// Read loads the slot for t. The value stays valid until t's next
// quiescent point.
func (p *Pointer[T]) Read(t *Thread) Guard[T] {
	if t.d.cfg.Debug {
		t.check()
		if t.quiescent.Load() {
			panic(fmt.Sprintf("rcu: Read on quiescent thread %q", t.name))
		}
	}
	return Guard[T]{v: p.p.Load(), t: t, gen: t.gen.Load()}
}

// Guard is a borrowed view of a protected value, bounded by the reading
// thread's next quiescent point.
type Guard[T any] struct {
	v   *T
	t   *Thread
	gen uint64
}

// Get returns the guarded value. In debug mode it panics if the reading
// thread has passed a quiescent point since Read.
func (g Guard[T]) Get() *T {
	if g.t != nil && g.t.d.cfg.Debug && g.t.gen.Load() != g.gen {
		panic(fmt.Sprintf("rcu: guard used after quiescent point on thread %q", g.t.name))
	}
	return g.v
}

// Valid reports whether the slot held a value when it was read.
func (g Guard[T]) Valid() bool { return g.v != nil }

// Replace publishes v into p and postpones release(old), returning old.
func Replace[T any](t *Thread, p *Pointer[T], v *T, release func(*T)) *T {
	old := p.Publish(v)
	if old != nil && release != nil {
		t.Postpone(func(a any) { release(a.(*T)) }, old)
	}
	return old
}
