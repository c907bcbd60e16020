package rcu

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Sweep runs one pass of the grace-period sweeper: it seals the open
// batch, then retires every sealed batch at the front of the queue whose
// grace period has elapsed. It returns the number of batches retired.
func (d *Domain) Sweep() int {
	d.sweepMu.Lock()
	defer d.sweepMu.Unlock()

	d.qMu.Lock()
	d.sealLocked(false)
	d.qMu.Unlock()

	return d.retireLocked()
}

// retireLocked requires d.sweepMu.
func (d *Domain) retireLocked() int {
	// limit is read before the registry snapshot: only batches sealed
	// before the snapshot was taken may be judged by it.
	limit := d.lastSealed.Load()
	if limit <= d.lastRetired.Load() {
		return 0
	}
	horizon := d.horizon()

	n := 0
	for {
		b, ok := d.sealed.Peek()
		if !ok || b.stamp > limit || b.stamp > horizon {
			break
		}
		d.sealed.Dequeue()

		b.run()

		d.executed.Add(uint64(len(b.cbs)))
		d.retired.Add(1)
		d.lastRetired.Store(b.stamp)
		if d.metrics != nil {
			d.metrics.grace.Observe(time.Since(b.sealedAt).Seconds())
		}
		d.batches.Put(b)
		n++
	}
	return n
}

// horizon is the oldest epoch any active thread may still be reading
// under. Quiescent threads do not count.
func (d *Domain) horizon() uint64 {
	h := uint64(math.MaxUint64)
	for _, t := range d.snapshot() {
		if t.quiescent.Load() {
			continue
		}
		if o := t.observed.Load(); o < h {
			h = o
		}
	}
	return h
}

// Barrier waits until every callback postponed before the call has run.
// Callbacks postponed by other goroutines after Barrier started are not
// waited on. The caller must not be a registered, non-quiescent thread
// of this domain; such callers use Thread.Barrier.
func (d *Domain) Barrier() {
	ctx := context.Background()
	target, _ := d.sealTarget(ctx, false)
	_ = d.waitRetired(ctx, target)
}

// Synchronize waits for a full grace period: every thread that was
// active when it was called has passed a quiescent point by the time it
// returns.
func (d *Domain) Synchronize() {
	ctx := context.Background()
	target, _ := d.sealTarget(ctx, true)
	_ = d.waitRetired(ctx, target)
}

// Barrier is Domain.Barrier for a registered thread. t is quiescent for
// the duration of the wait and gets its previous state back afterwards,
// so no value read before the call may be used after it.
func (t *Thread) Barrier() {
	t.quiescentDuring(t.d.Barrier)
}

// Synchronize is Domain.Synchronize for a registered thread.
func (t *Thread) Synchronize() {
	t.quiescentDuring(t.d.Synchronize)
}

func (t *Thread) quiescentDuring(wait func()) {
	if t.IsQuiescent() {
		t.check()
		wait()
		return
	}
	t.QuiesceStart()
	wait()
	t.QuiesceEnd()
}

// sealTarget returns the stamp a waiter has to see retired. Without
// force that is the newest sealed stamp after sealing whatever is open;
// with force a new batch is always sealed.
func (d *Domain) sealTarget(ctx context.Context, force bool) (uint64, error) {
	bo := newBackoff(d.cfg)
	for {
		d.qMu.Lock()
		if d.open == nil && !force {
			target := d.lastSealed.Load()
			d.qMu.Unlock()
			return target, nil
		}
		stamp := d.sealLocked(force)
		d.qMu.Unlock()
		if stamp != 0 {
			return stamp, nil
		}

		// Sealed queue is full: make room first.
		if d.Sweep() > 0 {
			bo.reset()
			continue
		}
		if err := sleepCtx(ctx, bo.next()); err != nil {
			return 0, errors.Wrap(err, "rcu: sealed queue full")
		}
	}
}

func (d *Domain) waitRetired(ctx context.Context, target uint64) error {
	if target == 0 {
		return nil
	}
	bo := newBackoff(d.cfg)
	start := time.Now()
	warnAt := d.cfg.StallWarning

	for d.lastRetired.Load() < target {
		if d.Sweep() > 0 {
			bo.reset()
			continue
		}
		if d.lastRetired.Load() >= target {
			break
		}
		if warnAt > 0 {
			if waited := time.Since(start); waited >= warnAt {
				d.log.Printf("[rcu] blocked %s waiting for %s to quiesce (epoch %d)",
					waited.Round(time.Millisecond), strings.Join(d.holders(target), ", "), target)
				warnAt *= 2
			}
		}
		if err := sleepCtx(ctx, bo.next()); err != nil {
			return errors.Wrapf(err, "rcu: %d batches pending", d.sealed.Len())
		}
	}
	return nil
}

// holders names the active threads that have not observed stamp yet.
func (d *Domain) holders(stamp uint64) []string {
	var out []string
	for _, t := range d.snapshot() {
		if !t.quiescent.Load() && t.observed.Load() < stamp {
			out = append(out, t.name)
		}
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if ctx.Done() == nil {
		time.Sleep(d)
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (d *Domain) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	d.log.Printf("[rcu] sweeper started interval=%s", d.cfg.SweepInterval)
	ticker := time.NewTicker(d.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Println("[rcu] sweeper stopped")
			return
		case <-ticker.C:
			d.Sweep()
		}
	}
}
