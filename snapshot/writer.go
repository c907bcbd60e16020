package snapshot

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"switchd/domain/meter"
	"switchd/openflow/ofp13"
)

type Writer struct {
	Dir string
}

// Capture copies every meter in table inside one read-side section on
// r. The caller makes sure seq matches the captured version.
func Capture(seq uint64, table *meter.Table, r *Reader, async ofp13.AsyncConfig) *Snapshot {
	s := &Snapshot{
		Seq:     seq,
		Created: time.Now(),
		Async:   async,
	}
	r.Begin()
	s.Meters = table.Configs(r.Thread(), ofp13.OFPM13_ALL)
	s.Version = table.Version()
	r.End()
	return s
}

// Write captures table and saves it.
func (w *Writer) Write(seq uint64, table *meter.Table, r *Reader, async ofp13.AsyncConfig) (string, error) {
	return w.Save(Capture(seq, table, r, async))
}

// Save atomically replaces the snapshot file with s and returns its
// path.
func (w *Writer) Save(s *Snapshot) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", errors.Wrap(err, "snapshot dir")
	}

	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(s); err != nil {
		return "", errors.Wrap(err, "encode snapshot")
	}
	sum := Sum1(body.Bytes())

	path := filepath.Join(w.Dir, FileName)
	tmp, err := os.CreateTemp(w.Dir, FileName+".*")
	if err != nil {
		return "", errors.Wrap(err, "create snapshot")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(sum[:]); err != nil {
		_ = tmp.Close()
		return "", errors.Wrap(err, "write snapshot")
	}
	if _, err := body.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		return "", errors.Wrap(err, "write snapshot")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", errors.Wrap(err, "sync snapshot")
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrap(err, "close snapshot")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", errors.Wrap(err, "install snapshot")
	}
	return path, nil
}
