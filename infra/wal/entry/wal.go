package entry

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

const DefaultSegmentSize = 64 << 20

type Config struct {
	Dir         string
	SegmentSize int64
	// SegmentDuration rotates a non-empty segment after it has been open
	// this long. Zero disables time-based rotation.
	SegmentDuration time.Duration
	// SyncEveryWrite fsyncs after each Append.
	SyncEveryWrite bool
}

// WAL is the meter-mod journal. Appends are serialized.
type WAL struct {
	mu         sync.Mutex
	dir        string
	cfg        Config
	current    *segment
	lastRotate time.Time
	closed     bool
}

// Open resumes the newest segment in cfg.Dir or starts segment 0.
func Open(cfg Config) (*WAL, error) {
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = DefaultSegmentSize
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "wal dir")
	}

	files, err := listSegments(cfg.Dir)
	if err != nil {
		return nil, err
	}
	index := 0
	if len(files) > 0 {
		index = segmentIndex(files[len(files)-1])
	}

	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, err
	}

	return &WAL{
		dir:        cfg.Dir,
		cfg:        cfg,
		current:    seg,
		lastRotate: time.Now(),
	}, nil
}

func (w *WAL) Append(r *Record) error {
	buf, err := encode(r)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("wal: append on closed log")
	}

	if w.cfg.SegmentDuration > 0 && w.current.offset > 0 && time.Since(w.lastRotate) >= w.cfg.SegmentDuration {
		if err := w.rotate(); err != nil {
			return err
		}
	}

	if err := w.current.append(r.Seq, buf); err != nil {
		return errors.Wrapf(err, "append seq %d", r.Seq)
	}
	if w.cfg.SyncEveryWrite {
		if err := w.current.sync(); err != nil {
			return errors.Wrap(err, "sync")
		}
	}

	if w.current.offset >= w.cfg.SegmentSize {
		return w.rotate()
	}
	return nil
}

func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current.sync()
}

// rotate requires w.mu.
func (w *WAL) rotate() error {
	if err := w.current.sync(); err != nil {
		return errors.Wrap(err, "sync before rotate")
	}
	_ = w.current.close()

	if w.current.last != 0 {
		err := appendIndex(w.dir, IndexEntry{
			File:     filepath.Base(segmentPath(w.dir, w.current.index)),
			FirstSeq: w.current.first,
			LastSeq:  w.current.last,
			Closed:   time.Now().UTC(),
		})
		if err != nil {
			return err
		}
	}

	seg, err := openSegment(w.dir, w.current.index+1)
	if err != nil {
		return err
	}

	w.current = seg
	w.lastRotate = time.Now()
	return nil
}

// TruncateBefore removes closed segments whose records are all covered
// by seq, typically the sequence of a durable snapshot.
func (w *WAL) TruncateBefore(seq uint64) (int, error) {
	w.mu.Lock()
	current := segmentPath(w.dir, w.current.index)
	w.mu.Unlock()

	files, err := listSegments(w.dir)
	if err != nil {
		return 0, err
	}
	idx, err := LoadIndex(w.dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range files {
		if filepath.Clean(path) == filepath.Clean(current) {
			continue
		}
		last := idx[filepath.Base(path)].LastSeq
		if last == 0 {
			if _, last, err = segmentBounds(path); err != nil {
				continue
			}
		}
		if last <= seq {
			if err := os.Remove(path); err != nil {
				return removed, errors.Wrap(err, "remove segment")
			}
			removed++
		}
	}
	if removed > 0 {
		if err := rewriteIndex(w.dir, idx); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.current.sync(); err != nil {
		_ = w.current.close()
		return errors.Wrap(err, "sync on close")
	}
	return w.current.close()
}
