package service

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"

	"switchd/domain/meter"
	"switchd/infra/rcu"
	"switchd/infra/sequence"
	entrywal "switchd/infra/wal/entry"
	exitwal "switchd/infra/wal/exit"
	"switchd/openflow/ofp13"
)

/*
MeterService is the ONLY write entry point into the meter table.

Every state change goes journal first, table second, outbox third, all
under one lock so that journal order, sequence order and publication
order agree.
*/

type Config struct {
	// Readers is the number of rcu threads kept for queries. Queries
	// beyond it wait for a free one. Zero means DefaultReaders.
	Readers    int
	Logger     *log.Logger
	Registerer prometheus.Registerer
}

const DefaultReaders = 4

type MeterService struct {
	d      *rcu.Domain
	table  *meter.Table
	seq    *sequence.Sequencer
	entry  *entrywal.WAL
	exit   *exitwal.ExitWAL
	log    *log.Logger
	mods   *prometheus.CounterVec
	meters prometheus.Gauge

	// mu serializes the control channel. writer is its rcu thread; it is
	// quiescent whenever mu is free.
	mu     sync.Mutex
	writer *rcu.Thread
	async  ofp13.AsyncConfig

	// readers holds the idle query threads, all quiescent.
	readers chan *rcu.Thread
}

// NewMeterService wires all dependencies.
// entry and exit may be nil, which disables journaling or events.
func NewMeterService(
	d *rcu.Domain,
	table *meter.Table,
	seq *sequence.Sequencer,
	entry *entrywal.WAL,
	exit *exitwal.ExitWAL,
	cfg Config,
) *MeterService {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Readers <= 0 {
		cfg.Readers = DefaultReaders
	}
	s := &MeterService{
		d:     d,
		table: table,
		seq:   seq,
		entry: entry,
		exit:  exit,
		log:   cfg.Logger,
		mods: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "switchd_meter_mods_total",
			Help: "Meter-mod messages by outcome.",
		}, []string{"result"}),
		meters: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "switchd_meters",
			Help: "Configured meters.",
		}),
		writer: d.Register("ofconn"),
		async:  defaultAsync,
	}
	s.writer.QuiesceStart()
	s.readers = make(chan *rcu.Thread, cfg.Readers)
	for i := 0; i < cfg.Readers; i++ {
		t := d.Register(fmt.Sprintf("query-%d", i))
		t.QuiesceStart()
		s.readers <- t
	}
	if cfg.Registerer != nil {
		cfg.Registerer.MustRegister(s.mods, s.meters)
	}
	return s
}

// defaultAsync is the OpenFlow 1.3 default asynchronous configuration.
var defaultAsync = ofp13.AsyncConfig{
	PacketInMask:    [2]uint32{0x3, 0x0},
	PortStatusMask:  [2]uint32{0x7, 0x7},
	FlowRemovedMask: [2]uint32{0xf, 0x0},
}

// Close unregisters the control channel's thread and the query
// threads, waiting for queries in flight. The service must not be used
// afterwards.
func (s *MeterService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer.Unregister()
	for i := 0; i < cap(s.readers); i++ {
		(<-s.readers).Unregister()
	}
}

// lock enters the control channel: mu held, writer active.
func (s *MeterService) lock() *rcu.Thread {
	s.mu.Lock()
	s.writer.QuiesceEnd()
	return s.writer
}

func (s *MeterService) unlock() {
	s.writer.QuiesceStart()
	s.mu.Unlock()
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// ApplyMeterMod journals and applies mod and queues its event. It
// returns the assigned sequence; rejected mods still consume one.
func (s *MeterService) ApplyMeterMod(mod ofp13.MeterMod) (uint64, meter.Change, error) {
	t := s.lock()
	defer s.unlock()
	return s.applyLocked(t, mod)
}

func (s *MeterService) applyLocked(t *rcu.Thread, mod ofp13.MeterMod) (uint64, meter.Change, error) {
	body, err := mod.MarshalBinary()
	if err != nil {
		return 0, meter.Change{}, err
	}
	seq := s.seq.Next()

	// 1. Journal intent
	if err := s.journal(entrywal.RecordMeterMod, seq, body); err != nil {
		s.mods.WithLabelValues("error").Inc()
		return seq, meter.Change{}, err
	}

	// 2. Apply
	ch, err := s.table.Apply(t, mod)
	if err != nil {
		s.mods.WithLabelValues("rejected").Inc()
		return seq, ch, err
	}
	s.mods.WithLabelValues("applied").Inc()
	s.meters.Set(float64(s.table.Len(t)))
	if ch.Empty() {
		return seq, ch, nil
	}

	// 3. Queue event
	if s.exit != nil {
		payload, err := EncodeEvent(seq, ch)
		if err != nil {
			return seq, ch, err
		}
		if err := s.exit.PutNew(seq, payload); err != nil {
			return seq, ch, errors.Wrapf(err, "queue event %d", seq)
		}
	}
	return seq, ch, nil
}

// SetAsync journals and installs a new asynchronous configuration.
func (s *MeterService) SetAsync(c ofp13.AsyncConfig) error {
	s.lock()
	defer s.unlock()
	return s.setAsyncLocked(c)
}

func (s *MeterService) setAsyncLocked(c ofp13.AsyncConfig) error {
	body, _ := c.MarshalBinary()
	if err := s.journal(entrywal.RecordSetAsync, s.seq.Next(), body); err != nil {
		return err
	}
	s.async = c
	return nil
}

func (s *MeterService) journal(typ entrywal.RecordType, seq uint64, body []byte) error {
	if s.entry == nil {
		return nil
	}
	return errors.Wrapf(s.entry.Append(entrywal.NewRecord(typ, seq, body)), "journal %s %d", typ, seq)
}

// Barrier waits until every table version superseded so far has been
// reclaimed.
func (s *MeterService) Barrier() {
	t := s.lock()
	defer s.unlock()
	t.Barrier()
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

// read runs fn on a short-lived reader thread, outside the control
// channel lock.
// read runs fn on an idle query thread, active for the duration.
func (s *MeterService) read(fn func(t *rcu.Thread)) {
	t := <-s.readers
	t.QuiesceEnd()
	defer func() {
		t.QuiesceStart()
		s.readers <- t
	}()
	fn(t)
}

// MeterStats returns the counters of meter id, or of all meters for
// OFPM13_ALL.
func (s *MeterService) MeterStats(id uint32) ([]ofp13.MeterStats, error) {
	var out []ofp13.MeterStats
	s.read(func(t *rcu.Thread) { out = s.table.Stats(t, id) })
	if len(out) == 0 && id != ofp13.OFPM13_ALL {
		return nil, &meter.Error{Code: ofp13.OFPMMFC_UNKNOWN_METER, MeterID: id}
	}
	return out, nil
}

// Account counts datapath traffic on meter id from the caller's thread.
func (s *MeterService) Account(t *rcu.Thread, id uint32, packets, bytes uint64) bool {
	return s.table.Account(t, id, packets, bytes)
}

func (s *MeterService) Async() ofp13.AsyncConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.async
}

func (s *MeterService) RCUStats() rcu.Stats {
	return s.d.Stats()
}

func (s *MeterService) Sequence() uint64 {
	return s.seq.Current()
}
