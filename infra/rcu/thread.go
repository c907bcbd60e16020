package rcu

import (
	"fmt"
	"slices"
	"sync/atomic"
)

// Thread is the per-participant record. The handle belongs to a single
// goroutine; only the sweeper reads its fields from elsewhere.
type Thread struct {
	d    *Domain
	id   uint64
	name string
	gid  int64

	// observed is the last epoch this thread saw at a quiescent point.
	observed  atomic.Uint64
	quiescent atomic.Bool
	// gen counts quiescent points; guards compare against it.
	gen        atomic.Uint64
	registered atomic.Bool

	_ [32]byte
}

// Register creates and registers a new record. The thread starts out
// non-quiescent.
func (d *Domain) Register(name string) *Thread {
	t := &Thread{d: d, id: d.nextID.Add(1), name: name}
	t.Register()
	return t
}

// Self returns the record bound to the calling goroutine, registering
// one on first use. Goroutines that call Self must call UnregisterSelf
// (or Unregister on the returned handle) before they exit.
func (d *Domain) Self() *Thread {
	gid := goroutineID()
	if v, ok := d.byGoid.Load(gid); ok {
		return v.(*Thread)
	}
	t := &Thread{
		d:    d,
		id:   d.nextID.Add(1),
		name: fmt.Sprintf("goroutine-%d", gid),
		gid:  gid,
	}
	t.Register()
	d.byGoid.Store(gid, t)
	return t
}

// UnregisterSelf drops the calling goroutine's implicit record, if any.
func (d *Domain) UnregisterSelf() {
	if v, ok := d.byGoid.Load(goroutineID()); ok {
		v.(*Thread).Unregister()
	}
}

// Register inserts t into the registry. Idempotent.
func (t *Thread) Register() {
	d := t.d
	d.regMu.Lock()
	defer d.regMu.Unlock()
	if t.registered.Load() {
		return
	}
	t.observed.Store(d.epoch.Load())
	t.quiescent.Store(false)

	cur := *d.threads.Load()
	next := make([]*Thread, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, t)
	d.threads.Store(&next)
	t.registered.Store(true)
}

// Unregister removes t from the registry. The handle must not be used
// afterwards.
func (t *Thread) Unregister() {
	d := t.d
	d.regMu.Lock()
	defer d.regMu.Unlock()
	if !t.registered.Load() {
		return
	}
	cur := *d.threads.Load()
	next := slices.DeleteFunc(slices.Clone(cur), func(x *Thread) bool { return x == t })
	d.threads.Store(&next)
	if t.gid != 0 {
		d.byGoid.CompareAndDelete(t.gid, t)
	}
	t.registered.Store(false)
	t.quiescent.Store(true)
}

// ForEachActive visits every registered thread exactly once, in no
// particular order, until visit returns false. Concurrent Register and
// Unregister calls do not affect an iteration already in progress.
func (d *Domain) ForEachActive(visit func(*Thread) bool) {
	for _, t := range d.snapshot() {
		if !visit(t) {
			return
		}
	}
}

// Threads reports the number of registered threads.
func (d *Domain) Threads() int { return len(d.snapshot()) }

func (d *Domain) snapshot() []*Thread { return *d.threads.Load() }

func (t *Thread) ID() uint64 { return t.id }
func (t *Thread) Name() string { return t.name }
func (t *Thread) Domain() *Domain { return t.d }

// Observed returns the last epoch t recorded at a quiescent point.
func (t *Thread) Observed() uint64 { return t.observed.Load() }

func (t *Thread) IsRegistered() bool { return t.registered.Load() }

// IsQuiescent reports whether t currently promises to hold no protected
// references.
func (t *Thread) IsQuiescent() bool { return t.quiescent.Load() }

// QuiesceStart enters an extended quiescent state, e.g. before blocking
// on I/O. No value obtained from Read may be used until QuiesceEnd.
func (t *Thread) QuiesceStart() {
	t.check()
	t.gen.Add(1)
	t.observed.Store(t.d.epoch.Load())
	t.quiescent.Store(true)
}

// QuiesceEnd leaves the quiescent state.
func (t *Thread) QuiesceEnd() {
	t.check()
	// observed must be fresh before the sweeper can see us as active.
	t.observed.Store(t.d.epoch.Load())
	t.quiescent.Store(false)
}

// Quiesce is a momentary quiescent point: every reference read so far is
// released, and the thread stays active.
func (t *Thread) Quiesce() {
	t.check()
	t.gen.Add(1)
	t.observed.Store(t.d.epoch.Load())
}

func (t *Thread) check() {
	if t.d.cfg.Debug && !t.registered.Load() {
		panic(fmt.Sprintf("rcu: use of unregistered thread %q", t.name))
	}
}

// Worker is a goroutine started with Spawn.
type Worker struct {
	thread *Thread
	done   chan struct{}
}

// Spawn runs fn on a new goroutine with a freshly registered Thread and
// unregisters it when fn returns. The record is registered before Spawn
// returns.
func (d *Domain) Spawn(name string, fn func(*Thread)) *Worker {
	w := &Worker{thread: d.Register(name), done: make(chan struct{})}
	go func() {
		defer close(w.done)
		defer w.thread.Unregister()
		fn(w.thread)
	}()
	return w
}

// Join waits for the worker's function to return.
func (w *Worker) Join() { <-w.done }

func (w *Worker) Thread() *Thread { return w.thread }
