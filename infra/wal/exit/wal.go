// Package exit is the outbound event log: every accepted meter change is
// recorded here before it is published, and the broadcaster walks it
// until the broker has acknowledged each event.
package exit

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// -------------------- State --------------------

type ExitState uint8

const (
	StateNew ExitState = iota
	StateSent
	StateAcked
	StateFailed
)

func (s ExitState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrNotFound  = errors.New("exit: no such event")
	ErrBadRecord = errors.New("exit: invalid record")
)

// -------------------- Record --------------------

type ExitRecord struct {
	Seq         uint64
	State       ExitState
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

const recordHeaderLen = 1 + 4 + 8

// binary encoding: [state:1][retries:4][lastAttempt:8][payload...]
func encodeRecord(r *ExitRecord) []byte {
	buf := make([]byte, recordHeaderLen+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[recordHeaderLen:], r.Payload)
	return buf
}

func decodeRecord(seq uint64, b []byte) (*ExitRecord, error) {
	if len(b) < recordHeaderLen {
		return nil, errors.Wrapf(ErrBadRecord, "seq %d: %d bytes", seq, len(b))
	}
	return &ExitRecord{
		Seq:         seq,
		State:       ExitState(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     append([]byte(nil), b[recordHeaderLen:]...),
	}, nil
}

// -------------------- WAL --------------------

type Options struct {
	// FS overrides the filesystem, e.g. vfs.NewMem() in tests.
	FS vfs.FS
	// NoSync skips fsync on writes.
	NoSync bool
}

type ExitWAL struct {
	db    *pebble.DB
	wopts *pebble.WriteOptions
	// mu serializes read-modify-write state transitions.
	mu  sync.Mutex
	now func() time.Time
}

func Open(dir string, opts Options) (*ExitWAL, error) {
	po := &pebble.Options{}
	if opts.FS != nil {
		po.FS = opts.FS
	}
	db, err := pebble.Open(dir, po)
	if err != nil {
		return nil, errors.Wrapf(err, "open outbox %s", dir)
	}
	w := &ExitWAL{db: db, wopts: pebble.Sync, now: time.Now}
	if opts.NoSync {
		w.wopts = pebble.NoSync
	}
	return w, nil
}

func (w *ExitWAL) Close() error {
	return w.db.Close()
}

// -------------------- API --------------------

// PutNew records a new event under seq.
func (w *ExitWAL) PutNew(seq uint64, payload []byte) error {
	rec := &ExitRecord{State: StateNew, Payload: payload}
	return errors.Wrapf(w.db.Set(keyFor(seq), encodeRecord(rec), w.wopts), "put event %d", seq)
}

// MarkSent records a publish attempt.
func (w *ExitWAL) MarkSent(seq uint64) error {
	return w.update(seq, func(r *ExitRecord) {
		r.State = StateSent
	})
}

func (w *ExitWAL) MarkAcked(seq uint64) error {
	return w.update(seq, func(r *ExitRecord) {
		r.State = StateAcked
	})
}

// MarkFailed records a failed attempt and bumps the retry count.
func (w *ExitWAL) MarkFailed(seq uint64) error {
	return w.update(seq, func(r *ExitRecord) {
		r.State = StateFailed
		r.Retries++
	})
}

func (w *ExitWAL) update(seq uint64, fn func(*ExitRecord)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rec, err := w.get(seq)
	if err != nil {
		return err
	}
	fn(rec)
	rec.LastAttempt = w.now().UnixNano()
	return errors.Wrapf(w.db.Set(keyFor(seq), encodeRecord(rec), w.wopts), "update event %d", seq)
}

// Get returns the current record for an event.
func (w *ExitWAL) Get(seq uint64) (*ExitRecord, error) {
	return w.get(seq)
}

func (w *ExitWAL) get(seq uint64) (*ExitRecord, error) {
	val, closer, err := w.db.Get(keyFor(seq))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "seq %d", seq)
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	return decodeRecord(seq, val)
}

// -------------------- Scan --------------------

// ScanByState iterates all records in the given state, in sequence
// order.
func (w *ExitWAL) ScanByState(state ExitState, fn func(*ExitRecord) error) error {
	return w.scan(func(r *ExitRecord) (bool, error) {
		if r.State != state {
			return true, nil
		}
		return true, fn(r)
	})
}

// ScanPending iterates, in sequence order, every event that still needs
// a publish attempt: NEW records, FAILED records below maxRetries, and
// SENT records left behind by an attempt that never completed.
func (w *ExitWAL) ScanPending(maxRetries uint32, fn func(*ExitRecord) error) error {
	return w.scan(func(r *ExitRecord) (bool, error) {
		switch r.State {
		case StateNew, StateSent:
		case StateFailed:
			if r.Retries >= maxRetries {
				return true, nil
			}
		default:
			return true, nil
		}
		return true, fn(r)
	})
}

// Counts returns the number of records in each state.
func (w *ExitWAL) Counts() (map[ExitState]int, error) {
	out := make(map[ExitState]int)
	err := w.scan(func(r *ExitRecord) (bool, error) {
		out[r.State]++
		return true, nil
	})
	return out, err
}

// TruncateAckedUpTo deletes ACKED records with a sequence at or below
// seq. It stops at the first record that is not ACKED.
func (w *ExitWAL) TruncateAckedUpTo(seq uint64) (int, error) {
	b := w.db.NewBatch()
	defer b.Close()

	n := 0
	err := w.scan(func(r *ExitRecord) (bool, error) {
		if r.Seq > seq || r.State != StateAcked {
			return false, nil
		}
		n++
		return true, b.Delete(keyFor(r.Seq), nil)
	})
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return n, errors.Wrap(b.Commit(w.wopts), "truncate outbox")
}

func (w *ExitWAL) scan(fn func(*ExitRecord) (bool, error)) error {
	iter, err := w.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decodeRecord(seq, iter.Value())
		if err != nil {
			return err
		}
		more, err := fn(rec)
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return iter.Error()
}

// -------------------- Helpers --------------------

const keyPrefix = "event/"

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf(keyPrefix+"%020d", seq))
}

func parseKey(b []byte) (uint64, error) {
	if len(b) <= len(keyPrefix) {
		return 0, errors.Wrapf(ErrBadRecord, "key %q", b)
	}
	seq, err := strconv.ParseUint(string(b[len(keyPrefix):]), 10, 64)
	return seq, errors.Wrapf(err, "key %q", b)
}
