package meter

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"switchd/infra/memory"
	"switchd/infra/rcu"
	"switchd/openflow/ofp13"
)

const (
	DefaultMaxMeters = 1024
	DefaultMaxBands  = 8
)

// supportedBands is the MeterFeatures band-type bitmap.
const supportedBands = 1<<ofp13.OFPMBT13_DROP | 1<<ofp13.OFPMBT13_DSCP_REMARK

const knownFlags = ofp13.OFPMF13_KBPS | ofp13.OFPMF13_PKTPS | ofp13.OFPMF13_BURST | ofp13.OFPMF13_STATS

type Limits struct {
	MaxMeters uint32
	MaxBands  uint8
}

// snapshot is one immutable version of the table.
type snapshot struct {
	meters map[uint32]*Meter
	// dead is set when the snapshot goes back to the pool. Seeing it set
	// from a reader means the snapshot was reclaimed too early.
	dead atomic.Bool
}

func (s *snapshot) check() *snapshot {
	if s.dead.Load() {
		panic("meter: read of a reclaimed table snapshot")
	}
	return s
}

// Table is the meter table.
type Table struct {
	mu     sync.Mutex
	cur    rcu.Pointer[snapshot]
	pool   *memory.Pool[snapshot]
	limits Limits
	now    func() time.Time

	versions atomic.Uint64
}

func NewTable(limits Limits) *Table {
	if limits.MaxMeters == 0 {
		limits.MaxMeters = DefaultMaxMeters
	}
	if limits.MaxBands == 0 {
		limits.MaxBands = DefaultMaxBands
	}
	tb := &Table{
		limits: limits,
		now:    time.Now,
		pool: memory.NewPool(
			func() *snapshot { return &snapshot{meters: make(map[uint32]*Meter)} },
			func(s *snapshot) {
				s.dead.Store(true)
				clear(s.meters)
			},
		),
	}
	tb.cur.Publish(tb.fresh())
	return tb
}

func (tb *Table) fresh() *snapshot {
	s := tb.pool.Get()
	s.dead.Store(false)
	return s
}

// Change describes an applied meter-mod. Removed lists the meters a
// DELETE took out; it is empty when the DELETE matched nothing.
type Change struct {
	Event   uint16
	MeterID uint32
	Config  ofp13.MeterConfig
	Removed []uint32
	Version uint64
}

// Empty reports whether the meter-mod left the table unchanged.
func (c Change) Empty() bool {
	return c.Event == ofp13.ONFFME_DELETED && len(c.Removed) == 0
}

// Apply validates and applies mod. t is the writer's registered thread;
// the superseded snapshot is recycled once every reader has moved on.
func (tb *Table) Apply(t *rcu.Thread, mod ofp13.MeterMod) (Change, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	cur := tb.cur.Protected()
	id := mod.MeterID

	var ch Change
	switch mod.Command {
	case ofp13.OFPMC13_ADD:
		if !validID(id) {
			return ch, reject(ErrInvalidMeter, id)
		}
		if _, ok := cur.meters[id]; ok {
			return ch, reject(ErrMeterExists, id)
		}
		if uint32(len(cur.meters)) >= tb.limits.MaxMeters {
			return ch, reject(ErrOutOfMeters, id)
		}
		if err := tb.validate(mod); err != nil {
			return ch, err
		}
		m := newMeter(mod, tb.now(), nil)
		tb.publish(t, cur, func(s *snapshot) { s.meters[id] = m })
		ch = Change{Event: ofp13.ONFFME_ADDED, MeterID: id, Config: m.Config()}

	case ofp13.OFPMC13_MODIFY:
		if !validID(id) {
			return ch, reject(ErrInvalidMeter, id)
		}
		old, ok := cur.meters[id]
		if !ok {
			return ch, reject(ErrUnknownMeter, id)
		}
		if err := tb.validate(mod); err != nil {
			return ch, err
		}
		m := newMeter(mod, tb.now(), old.c)
		tb.publish(t, cur, func(s *snapshot) { s.meters[id] = m })
		ch = Change{Event: ofp13.ONFFME_MODIFIED, MeterID: id, Config: m.Config()}

	case ofp13.OFPMC13_DELETE:
		ch = Change{Event: ofp13.ONFFME_DELETED, MeterID: id}
		if id == ofp13.OFPM13_ALL {
			for mid := range cur.meters {
				ch.Removed = append(ch.Removed, mid)
			}
			slices.Sort(ch.Removed)
		} else if _, ok := cur.meters[id]; ok {
			ch.Removed = []uint32{id}
		}
		if len(ch.Removed) == 0 {
			ch.Version = tb.versions.Load()
			return ch, nil
		}
		tb.publish(t, cur, func(s *snapshot) {
			for _, mid := range ch.Removed {
				delete(s.meters, mid)
			}
		})

	default:
		return ch, reject(ErrBadCommand, id)
	}
	ch.Version = tb.versions.Load()
	return ch, nil
}

// publish copies cur, lets edit change the copy, and swaps it in. tb.mu
// must be held.
func (tb *Table) publish(t *rcu.Thread, cur *snapshot, edit func(*snapshot)) {
	next := tb.fresh()
	for id, m := range cur.meters {
		next.meters[id] = m
	}
	edit(next)
	rcu.Replace(t, &tb.cur, next, tb.pool.Put)
	tb.versions.Add(1)
}

func validID(id uint32) bool {
	return (id > 0 && id <= ofp13.OFPM13_MAX) ||
		id == ofp13.OFPM13_SLOWPATH || id == ofp13.OFPM13_CONTROLLER
}

func (tb *Table) validate(mod ofp13.MeterMod) error {
	id := mod.MeterID
	rateFlags := mod.Flags & (ofp13.OFPMF13_KBPS | ofp13.OFPMF13_PKTPS)
	if mod.Flags&^knownFlags != 0 || rateFlags == 0 || rateFlags == ofp13.OFPMF13_KBPS|ofp13.OFPMF13_PKTPS {
		return reject(ErrBadFlags, id)
	}
	if len(mod.Bands) > int(tb.limits.MaxBands) {
		return reject(ErrOutOfBands, id)
	}
	for _, b := range mod.Bands {
		switch b.Type {
		case ofp13.OFPMBT13_DROP:
		case ofp13.OFPMBT13_DSCP_REMARK:
			if b.PrecLevel == 0 {
				return reject(ErrBadBandValue, id)
			}
		default:
			return reject(ErrBadBand, id)
		}
		if b.Rate == 0 {
			return reject(ErrBadRate, id)
		}
		if mod.Flags&ofp13.OFPMF13_BURST != 0 && b.BurstSize == 0 {
			return reject(ErrBadBurst, id)
		}
	}
	return nil
}

func (tb *Table) read(t *rcu.Thread) *snapshot {
	return tb.cur.Read(t).Get().check()
}

// Lookup returns the meter with the given id. The returned Meter stays
// valid; only the table snapshot is subject to reclamation.
func (tb *Table) Lookup(t *rcu.Thread, id uint32) (*Meter, bool) {
	m, ok := tb.read(t).meters[id]
	return m, ok
}

// Account counts traffic that passed through meter id. It reports
// whether the meter exists.
func (tb *Table) Account(t *rcu.Thread, id uint32, packets, bytes uint64) bool {
	m, ok := tb.read(t).meters[id]
	if !ok {
		return false
	}
	m.c.packets.Add(packets)
	m.c.bytes.Add(bytes)
	return true
}

// Exceed counts traffic that hit band of meter id.
func (tb *Table) Exceed(t *rcu.Thread, id uint32, band int, packets, bytes uint64) bool {
	m, ok := tb.read(t).meters[id]
	if !ok || band < 0 || band >= len(m.c.bands) {
		return false
	}
	m.c.bands[band].packets.Add(packets)
	m.c.bands[band].bytes.Add(bytes)
	return true
}

// Configs returns the configuration of meter id, or of every meter
// ordered by id when id is OFPM13_ALL.
func (tb *Table) Configs(t *rcu.Thread, id uint32) []ofp13.MeterConfig {
	var out []ofp13.MeterConfig
	for _, m := range tb.selectMeters(t, id) {
		out = append(out, m.Config())
	}
	return out
}

// Stats is Configs for counters.
func (tb *Table) Stats(t *rcu.Thread, id uint32) []ofp13.MeterStats {
	now := tb.now()
	var out []ofp13.MeterStats
	for _, m := range tb.selectMeters(t, id) {
		out = append(out, m.Stats(now))
	}
	return out
}

func (tb *Table) selectMeters(t *rcu.Thread, id uint32) []*Meter {
	s := tb.read(t)
	if id != ofp13.OFPM13_ALL {
		if m, ok := s.meters[id]; ok {
			return []*Meter{m}
		}
		return nil
	}
	out := make([]*Meter, 0, len(s.meters))
	for _, m := range s.meters {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b *Meter) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

func (tb *Table) Len(t *rcu.Thread) int { return len(tb.read(t).meters) }

// Version counts published snapshots.
func (tb *Table) Version() uint64 { return tb.versions.Load() }

func (tb *Table) Features() ofp13.MeterFeatures {
	return ofp13.MeterFeatures{
		MaxMeter:     tb.limits.MaxMeters,
		BandTypes:    supportedBands,
		Capabilities: uint32(knownFlags),
		MaxBands:     tb.limits.MaxBands,
		MaxColor:     0,
	}
}
