package service

import (
	"context"
	"time"

	"switchd/snapshot"
)

// TakeSnapshot writes a snapshot of the table and truncates the journal
// and the acknowledged part of the outbox behind it.
func (s *MeterService) TakeSnapshot(w *snapshot.Writer, r *snapshot.Reader) (uint64, error) {
	// Sequence and table version must agree, so capture under the
	// control channel lock. Capture itself only reads.
	s.mu.Lock()
	snap := snapshot.Capture(s.seq.Current(), s.table, r, s.async)
	s.mu.Unlock()

	if _, err := w.Save(snap); err != nil {
		return 0, err
	}

	// Truncate ENTRY WAL after snapshot
	if s.entry != nil {
		if _, err := s.entry.TruncateBefore(snap.Seq); err != nil {
			s.log.Printf("[snapshot] journal truncation failed: %v", err)
		}
	}

	// GC EXIT WAL (acked only)
	if s.exit != nil {
		if _, err := s.exit.TruncateAckedUpTo(snap.Seq); err != nil {
			s.log.Printf("[snapshot] outbox truncation failed: %v", err)
		}
	}
	return snap.Seq, nil
}

// StartSnapshotJob snapshots every interval until ctx is done. The job
// owns its own rcu thread, quiescent between snapshots.
func (s *MeterService) StartSnapshotJob(ctx context.Context, dir string, interval time.Duration) <-chan struct{} {
	w := &snapshot.Writer{Dir: dir}
	r := snapshot.NewReader(s.d.Register("snapshot"))
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer r.Thread().Unregister()

		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				seq, err := s.TakeSnapshot(w, r)
				if err != nil {
					s.log.Printf("[snapshot] failed: %v", err)
					continue
				}
				s.log.Printf("[snapshot] written seq=%d", seq)
			}
		}
	}()
	return done
}
