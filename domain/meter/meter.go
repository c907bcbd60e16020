package meter

import (
	"sync/atomic"
	"time"

	"switchd/openflow/ofp13"
)

// Meter is one configured meter. Configuration fields never change after
// publication; MODIFY installs a new Meter that shares the old one's
// counters.
type Meter struct {
	ID    uint32
	Flags uint16
	Bands []ofp13.MeterBand

	c *counters
}

// totals is shared by every version of a meter, so traffic accounted
// against a superseded version is never lost.
type totals struct {
	created time.Time
	packets atomic.Uint64
	bytes   atomic.Uint64
}

type counters struct {
	*totals
	bands []bandCounters
}

type bandCounters struct {
	packets atomic.Uint64
	bytes   atomic.Uint64
}

func newMeter(mod ofp13.MeterMod, now time.Time, prev *counters) *Meter {
	m := &Meter{
		ID:    mod.MeterID,
		Flags: mod.Flags,
		Bands: append([]ofp13.MeterBand(nil), mod.Bands...),
	}
	switch {
	case prev == nil:
		m.c = &counters{totals: &totals{created: now}, bands: make([]bandCounters, len(mod.Bands))}
	case len(prev.bands) == len(mod.Bands):
		m.c = prev
	default:
		// Band layout changed: band totals restart.
		m.c = &counters{totals: prev.totals, bands: make([]bandCounters, len(mod.Bands))}
	}
	return m
}

// Config renders m as a multipart meter-config entry.
func (m *Meter) Config() ofp13.MeterConfig {
	return ofp13.MeterConfig{
		Flags:   m.Flags,
		MeterID: m.ID,
		Bands:   append([]ofp13.MeterBand(nil), m.Bands...),
	}
}

// Stats renders m's counters as a multipart meter-stats entry.
func (m *Meter) Stats(now time.Time) ofp13.MeterStats {
	age := now.Sub(m.c.created)
	if age < 0 {
		age = 0
	}
	s := ofp13.MeterStats{
		MeterID:       m.ID,
		PacketInCount: m.c.packets.Load(),
		ByteInCount:   m.c.bytes.Load(),
		DurationSec:   uint32(age / time.Second),
		DurationNsec:  uint32(age % time.Second),
		BandStats:     make([]ofp13.MeterBandStats, len(m.c.bands)),
	}
	for i := range m.c.bands {
		s.BandStats[i] = ofp13.MeterBandStats{
			PacketBandCount: m.c.bands[i].packets.Load(),
			ByteBandCount:   m.c.bands[i].bytes.Load(),
		}
	}
	return s
}
