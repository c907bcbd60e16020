package service

import (
	"path/filepath"

	"github.com/cockroachdb/errors"

	"switchd/domain/meter"
	entrywal "switchd/infra/wal/entry"
	"switchd/openflow/ofp13"
	"switchd/snapshot"
)

/*
Recover rebuilds in-memory state from the newest snapshot plus the entry
journal written after it.

IMPORTANT:
- This MUST run before accepting traffic
- The outbox is NOT replayed; events already queued stay queued
*/
func (s *MeterService) Recover(snapshotDir, walDir string) (uint64, error) {
	t := s.lock()
	defer s.unlock()

	snap, err := snapshot.Load(filepath.Join(snapshotDir, snapshot.FileName), s.table, t)
	if err != nil {
		return 0, err
	}
	if snap.Seq > 0 {
		s.async = snap.Async
	}

	last, err := s.replayLocked(walDir, snap.Seq)
	if err != nil {
		return last, err
	}

	// Resume sequencing AFTER replay
	s.seq.Reset(last)
	s.meters.Set(float64(s.table.Len(t)))
	s.log.Printf("[service] recovered snapshot seq=%d meters=%d journal up to %d", snap.Seq, len(snap.Meters), last)
	return last, nil
}

// ReplayFromWAL re-applies journal records after seq without recording
// them again.
func (s *MeterService) ReplayFromWAL(walDir string, after uint64) (uint64, error) {
	s.lock()
	defer s.unlock()
	return s.replayLocked(walDir, after)
}

func (s *MeterService) replayLocked(walDir string, after uint64) (uint64, error) {
	rejected := 0
	last, err := entrywal.Replay(walDir, after, func(rec *entrywal.Record) error {
		switch rec.Type {
		case entrywal.RecordMeterMod:
			var mod ofp13.MeterMod
			if err := mod.UnmarshalBinary(rec.Data); err != nil {
				return errors.Wrapf(err, "journal seq %d", rec.Seq)
			}
			// Mods rejected live are rejected again here.
			if _, err := s.table.Apply(s.writer, mod); err != nil {
				if _, ok := meter.CodeOf(err); !ok {
					return err
				}
				rejected++
			}
		case entrywal.RecordSetAsync:
			var c ofp13.AsyncConfig
			if err := c.UnmarshalBinary(rec.Data); err != nil {
				return errors.Wrapf(err, "journal seq %d", rec.Seq)
			}
			s.async = c
		default:
			return errors.Newf("journal seq %d: unknown record type %d", rec.Seq, rec.Type)
		}
		return nil
	})
	if err != nil {
		return last, errors.Wrap(err, "replay journal")
	}
	s.seq.Observe(last)
	if rejected > 0 {
		s.log.Printf("[service] replay skipped %d rejected meter-mods", rejected)
	}
	return last, nil
}
