package rcu

import (
	"time"

	"switchd/infra/memory"
)

// Callback is a postponed action. arg is whatever was passed to Postpone.
type Callback func(arg any)

type entry struct {
	cb  Callback
	arg any
}

// batch is a run of callbacks. It is OPEN while d.open points at it,
// SEALED once it sits in d.sealed with a stamp, and RETIRED after run.
type batch struct {
	stamp    uint64
	sealedAt time.Time
	cbs      []entry
}

func (b *batch) run() {
	for _, e := range b.cbs {
		e.cb(e.arg)
	}
}

func (b *batch) reset() {
	clear(b.cbs)
	b.cbs = b.cbs[:0]
	b.stamp = 0
	b.sealedAt = time.Time{}
}

// Postpone arranges for cb(arg) to run on the sweeper after the current
// grace period. It never blocks on readers and may be called from any
// goroutine, including from inside another callback.
func (d *Domain) Postpone(cb Callback, arg any) {
	if cb == nil {
		panic("rcu: Postpone with nil callback")
	}
	d.qMu.Lock()
	if d.open == nil {
		d.open = d.batches.Get()
	}
	d.open.cbs = append(d.open.cbs, entry{cb: cb, arg: arg})
	d.qMu.Unlock()
	d.postponed.Add(1)
}

// Postpone is Domain.Postpone from a registered thread.
func (t *Thread) Postpone(cb Callback, arg any) {
	t.check()
	t.d.Postpone(cb, arg)
}

// Defer postpones a closure.
func (t *Thread) Defer(fn func()) {
	t.Postpone(func(any) { fn() }, nil)
}

// Recycle postpones returning v to pool.
func (t *Thread) Recycle(pool memory.ReclaimablePool, v any) {
	t.Postpone(pool.PutAny, v)
}

// sealLocked moves the open batch to the sealed queue, advancing the
// epoch and stamping the batch with the new value. With force set, an
// empty marker batch is sealed when nothing is open. It returns 0 when
// there was nothing to seal or the queue is full. d.qMu must be held.
func (d *Domain) sealLocked(force bool) uint64 {
	if d.sealed.IsFull() {
		return 0
	}
	b := d.open
	if b == nil {
		if !force {
			return 0
		}
		b = d.batches.Get()
	}
	b.stamp = d.epoch.Add(1)
	b.sealedAt = time.Now()
	d.sealed.Enqueue(b)
	d.open = nil
	d.lastSealed.Store(b.stamp)
	return b.stamp
}
