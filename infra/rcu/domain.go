package rcu

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"switchd/infra/memory"
)

// Domain is one reclamation domain: the global epoch, the thread
// registry, the deferred callback queue and the sweeper. A process
// normally owns exactly one.
type Domain struct {
	cfg Config
	log *log.Logger

	// epoch advances once per sealed batch.
	epoch atomic.Uint64

	// Registry. Membership is a copy-on-write slice: regMu serializes
	// writers, readers just Load.
	regMu   sync.Mutex
	threads atomic.Pointer[[]*Thread]
	byGoid  sync.Map // int64 -> *Thread
	nextID  atomic.Uint64

	// Callback queue. qMu guards the open batch and is the producer
	// side of sealed.
	qMu        sync.Mutex
	open       *batch
	sealed     *memory.RetireRing[*batch]
	lastSealed atomic.Uint64
	batches    *memory.Pool[batch]

	// sweepMu is the consumer side of sealed.
	sweepMu     sync.Mutex
	lastRetired atomic.Uint64

	postponed atomic.Uint64
	executed  atomic.Uint64
	retired   atomic.Uint64

	metrics *metrics

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a domain. The background sweeper is not running until
// Start is called.
func New(cfg Config) *Domain {
	cfg = cfg.withDefaults()
	d := &Domain{
		cfg:    cfg,
		log:    cfg.Logger,
		sealed: memory.NewRetireRing[*batch](cfg.MaxSealedBatches),
		batches: memory.NewPool(
			func() *batch { return &batch{cbs: make([]entry, 0, 16)} },
			(*batch).reset,
		),
	}
	empty := make([]*Thread, 0)
	d.threads.Store(&empty)
	if cfg.Registerer != nil {
		d.metrics = newMetrics(d, cfg.Registerer)
	}
	return d
}

// Start launches the background sweeper. It is a no-op if the sweeper
// already runs. The sweeper stops when ctx is done or on Shutdown.
func (d *Domain) Start(ctx context.Context) {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	go d.run(ctx, d.done)
}

// Shutdown stops the background sweeper and drains every pending batch.
// It returns ctx's error if the drain could not finish, which happens
// when some registered thread never becomes quiescent.
func (d *Domain) Shutdown(ctx context.Context) error {
	d.runMu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.runMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	target, err := d.sealTarget(ctx, false)
	if err != nil {
		return err
	}
	return d.waitRetired(ctx, target)
}

// Close is Shutdown without a deadline.
func (d *Domain) Close() error {
	return d.Shutdown(context.Background())
}

// Stats is a point-in-time view of the domain.
type Stats struct {
	Epoch       uint64
	Threads     int
	Quiescent   int
	Pending     int // callbacks in the open batch
	Sealed      int // batches waiting for a grace period
	LastRetired uint64
	Postponed   uint64
	Executed    uint64
	Retired     uint64 // batches
}

func (d *Domain) Stats() Stats {
	s := Stats{
		Epoch:       d.epoch.Load(),
		Sealed:      d.sealed.Len(),
		LastRetired: d.lastRetired.Load(),
		Postponed:   d.postponed.Load(),
		Executed:    d.executed.Load(),
		Retired:     d.retired.Load(),
	}
	for _, t := range d.snapshot() {
		s.Threads++
		if t.quiescent.Load() {
			s.Quiescent++
		}
	}
	d.qMu.Lock()
	if d.open != nil {
		s.Pending = len(d.open.cbs)
	}
	d.qMu.Unlock()
	return s
}

// Epoch returns the current global epoch.
func (d *Domain) Epoch() uint64 { return d.epoch.Load() }
