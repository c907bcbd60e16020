package rcu

import (
	"context"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

func newTestDomain(t testing.TB, cfg Config) *Domain {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	d := New(cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Shutdown(ctx)
	})
	return d
}

func TestRCU_Quiesce(t *testing.T) {
	d := newTestDomain(t, Config{})
	main := d.Self()
	defer d.UnregisterSelf()

	done := make(chan struct{})
	var freshQuiescent, afterStart bool
	go func() {
		defer close(done)
		defer d.UnregisterSelf()
		self := d.Self()
		freshQuiescent = self.IsQuiescent()
		self.QuiesceStart()
		afterStart = self.IsQuiescent()
	}()

	if main.IsQuiescent() {
		t.Error("main thread must not be quiescent after spawning a worker")
	}
	<-done

	if freshQuiescent {
		t.Error("a new thread must not be quiescent")
	}
	if !afterStart {
		t.Error("thread must be quiescent after QuiesceStart")
	}
}

func TestRCU_SpawnedWorker(t *testing.T) {
	d := newTestDomain(t, Config{})

	var fresh, started atomic.Bool
	w := d.Spawn("quiescer", func(th *Thread) {
		fresh.Store(th.IsQuiescent())
		th.QuiesceStart()
		started.Store(th.IsQuiescent())
	})
	w.Join()

	if fresh.Load() {
		t.Error("spawned thread must start non-quiescent")
	}
	if !started.Load() {
		t.Error("spawned thread must be quiescent after QuiesceStart")
	}
	if w.Thread().IsRegistered() || d.Threads() != 0 {
		t.Fatalf("worker must be unregistered after Join, threads=%d", d.Threads())
	}
}

func TestRCU_QuiesceToggle(t *testing.T) {
	d := newTestDomain(t, Config{})
	th := d.Register("toggler")
	defer th.Unregister()

	th.QuiesceStart()
	if !th.IsQuiescent() {
		t.Fatal("expected quiescent after QuiesceStart")
	}
	th.QuiesceEnd()
	if th.IsQuiescent() {
		t.Fatal("expected non-quiescent after QuiesceEnd")
	}
}

func TestRCU_Barrier(t *testing.T) {
	d := newTestDomain(t, Config{})
	main := d.Self()
	defer d.UnregisterSelf()

	count := 0
	for i := 0; i < 10; i++ {
		main.Postpone(func(arg any) { *arg.(*int)++ }, &count)
	}
	main.Barrier()

	if count != 10 {
		t.Fatalf("expected 10 callbacks after barrier, got %d", count)
	}
	if main.IsQuiescent() {
		t.Fatal("barrier must restore the caller's non-quiescent state")
	}
}

func TestRCU_BarrierFIFO(t *testing.T) {
	d := newTestDomain(t, Config{})
	main := d.Register("main")
	defer main.Unregister()

	var order []string
	record := func(arg any) { order = append(order, arg.(string)) }

	for i := 0; i < 3; i++ {
		main.Postpone(record, "a")
	}
	// Seals batch A; main is active so nothing retires yet.
	if n := d.Sweep(); n != 0 {
		t.Fatalf("expected no retirement while main is active, got %d", n)
	}
	for i := 0; i < 3; i++ {
		main.Postpone(record, "b")
	}
	main.Barrier()

	want := []string{"a", "a", "a", "b", "b", "b"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestRCU_BarrierIgnoresLaterBatches(t *testing.T) {
	d := newTestDomain(t, Config{})

	var late *Thread
	var first, second atomic.Bool
	d.Postpone(func(any) {
		first.Store(true)
		// An active thread that never quiesces holds every batch sealed
		// from now on.
		late = d.Register("late")
		d.Postpone(func(any) { second.Store(true) }, nil)
	}, nil)

	d.Barrier()

	if !first.Load() {
		t.Fatal("barrier returned before pre-existing callback ran")
	}
	if second.Load() {
		t.Fatal("callback postponed after barrier started must not run while late is active")
	}

	late.Unregister()
	d.Barrier()
	if !second.Load() {
		t.Fatal("expected later callback to run once late unregistered")
	}
}

func TestRCU_SynchronizeWaitsForActiveReader(t *testing.T) {
	d := newTestDomain(t, Config{})
	reader := d.Register("reader")
	defer reader.Unregister()

	done := make(chan struct{})
	go func() {
		d.Synchronize()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("synchronize returned while a pre-existing reader was active")
	case <-time.After(30 * time.Millisecond):
	}

	reader.Quiesce()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("synchronize did not return after reader quiesced")
	}
}

func TestRCU_SynchronizeSkipsQuiescentThreads(t *testing.T) {
	d := newTestDomain(t, Config{})
	idle := d.Register("idle")
	defer idle.Unregister()
	idle.QuiesceStart()

	main := d.Register("main")
	defer main.Unregister()

	done := make(chan struct{})
	go func() {
		main.Synchronize()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("synchronize must not wait on quiescent threads")
	}
}

func TestRCU_PostponeFromCallback(t *testing.T) {
	d := newTestDomain(t, Config{})

	var n atomic.Int32
	d.Postpone(func(any) {
		n.Add(1)
		d.Postpone(func(any) { n.Add(1) }, nil)
	}, nil)

	d.Barrier()
	d.Barrier()
	if got := n.Load(); got != 2 {
		t.Fatalf("expected both callbacks to run, got %d", got)
	}
}

func TestRCU_RegistrationIdempotent(t *testing.T) {
	d := newTestDomain(t, Config{})

	a := d.Self()
	b := d.Self()
	if a != b {
		t.Fatal("Self must return the same record for the same goroutine")
	}
	a.Register()
	if d.Threads() != 1 {
		t.Fatalf("expected 1 thread, got %d", d.Threads())
	}

	d.UnregisterSelf()
	if d.Threads() != 0 {
		t.Fatalf("expected 0 threads after UnregisterSelf, got %d", d.Threads())
	}
	if c := d.Self(); c == a {
		t.Fatal("expected a new record after unregistering")
	}
	d.UnregisterSelf()
}

func TestRCU_ObservedEpochMonotonic(t *testing.T) {
	d := newTestDomain(t, Config{})
	th := d.Register("t")
	defer th.Unregister()

	last := th.Observed()
	for i := 0; i < 5; i++ {
		d.Postpone(func(any) {}, nil)
		d.Sweep()
		th.Quiesce()
		if o := th.Observed(); o < last {
			t.Fatalf("observed epoch went backwards: %d -> %d", last, o)
		} else {
			last = o
		}
	}
	if last != d.Epoch() {
		t.Fatalf("expected observed %d to match global epoch %d", last, d.Epoch())
	}
}

func TestRCU_BackgroundSweeper(t *testing.T) {
	d := newTestDomain(t, Config{SweepInterval: time.Millisecond})
	d.Start(context.Background())

	var ran atomic.Bool
	d.Postpone(func(any) { ran.Store(true) }, nil)

	deadline := time.Now().Add(2 * time.Second)
	for !ran.Load() {
		if time.Now().After(deadline) {
			t.Fatal("background sweeper did not retire the batch")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRCU_ShutdownDrains(t *testing.T) {
	d := New(Config{Logger: log.New(io.Discard, "", 0), SweepInterval: time.Hour})
	d.Start(context.Background())

	var n atomic.Int32
	for i := 0; i < 5; i++ {
		d.Postpone(func(any) { n.Add(1) }, nil)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n.Load() != 5 {
		t.Fatalf("expected shutdown to drain 5 callbacks, got %d", n.Load())
	}
}

func TestRCU_ShutdownTimesOut(t *testing.T) {
	d := New(Config{Logger: log.New(io.Discard, "", 0)})
	stuck := d.Register("stuck")

	d.Postpone(func(any) {}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Shutdown(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	stuck.Unregister()
	if err := d.Close(); err != nil {
		t.Fatalf("close after unregister: %v", err)
	}
}

func TestRCU_SealedQueueBounded(t *testing.T) {
	d := newTestDomain(t, Config{MaxSealedBatches: 2})
	reader := d.Register("reader")

	var n atomic.Int32
	for i := 0; i < 10; i++ {
		d.Postpone(func(any) { n.Add(1) }, nil)
		d.Sweep()
		if s := d.Stats(); s.Sealed > 2 {
			t.Fatalf("sealed queue exceeded bound: %d", s.Sealed)
		}
	}
	if s := d.Stats(); s.Pending == 0 {
		t.Fatal("expected overflow callbacks to stay in the open batch")
	}

	reader.Unregister()
	d.Barrier()
	if n.Load() != 10 {
		t.Fatalf("expected all 10 callbacks after barrier, got %d", n.Load())
	}
}

func TestRCU_ForEachActiveUnderChurn(t *testing.T) {
	d := newTestDomain(t, Config{})

	stable := make(map[*Thread]bool)
	for i := 0; i < 8; i++ {
		stable[d.Register("stable")] = true
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				th := d.Register("churn")
				th.Unregister()
			}
		}()
	}

	for i := 0; i < 1000; i++ {
		seen := make(map[*Thread]int)
		d.ForEachActive(func(th *Thread) bool {
			seen[th]++
			return true
		})
		for th := range stable {
			if seen[th] != 1 {
				t.Fatalf("stable thread visited %d times", seen[th])
			}
		}
		for th, c := range seen {
			if c != 1 {
				t.Fatalf("thread %q visited %d times", th.Name(), c)
			}
		}
	}
	close(stop)
	wg.Wait()

	for th := range stable {
		th.Unregister()
	}
	if d.Threads() != 0 {
		t.Fatalf("expected empty registry, got %d", d.Threads())
	}
}

func TestRCU_Stats(t *testing.T) {
	d := newTestDomain(t, Config{})
	a := d.Register("a")
	b := d.Register("b")
	defer a.Unregister()
	defer b.Unregister()
	b.QuiesceStart()

	a.Postpone(func(any) {}, nil)
	a.Postpone(func(any) {}, nil)

	s := d.Stats()
	if s.Threads != 2 || s.Quiescent != 1 || s.Pending != 2 || s.Postponed != 2 {
		t.Fatalf("unexpected stats: %+v", s)
	}

	a.Barrier()
	s = d.Stats()
	if s.Executed != 2 || s.Retired != 1 || s.Pending != 0 || s.Sealed != 0 {
		t.Fatalf("unexpected stats after barrier: %+v", s)
	}
}

func TestRCU_StallWarningNamesHolder(t *testing.T) {
	var buf syncBuffer
	d := New(Config{
		Logger:       log.New(&buf, "", 0),
		StallWarning: 5 * time.Millisecond,
		BackoffMax:   time.Millisecond,
	})
	holder := d.Register("slow-reader")

	d.Postpone(func(any) {}, nil)
	done := make(chan struct{})
	go func() {
		d.Barrier()
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	holder.Quiesce()
	<-done
	holder.Unregister()

	if !buf.contains("slow-reader") {
		t.Fatalf("expected stall warning naming slow-reader, got %q", buf.String())
	}
}

func TestParseGID(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"goroutine 123 [running]:\n", 123},
		{"goroutine 7 [", 7},
		{"gorout", 0},
		{"thread 5", 0},
	}
	for _, c := range cases {
		if got := parseGID([]byte(c.in)); got != c.want {
			t.Errorf("parseGID(%q) = %d, want %d", c.in, got, c.want)
		}
	}
	if goroutineID() <= 0 {
		t.Fatal("expected a positive goroutine id")
	}
}
