package entry

import (
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

type ReplayHandler func(*Record) error

// Replay feeds every record with a sequence above after to fn, in log
// order, and returns the last sequence seen. A frame cut short at the
// very end of the newest segment is treated as the end of the log.
// Closed segments the index places entirely at or below after are
// skipped without being read.
func Replay(dir string, after uint64, fn ReplayHandler) (lastSeq uint64, err error) {
	files, err := listSegments(dir)
	if err != nil {
		return 0, err
	}

	idx, err := LoadIndex(dir)
	if err != nil {
		return 0, err
	}

	lastSeq = after
	var seen uint64
	for i, path := range files {
		// closed segments entirely at or below after need no reading
		if e, ok := idx[filepath.Base(path)]; ok && e.LastSeq <= after && e.FirstSeq > seen {
			seen = e.LastSeq
			continue
		}

		f, err := os.Open(path)
		if err != nil {
			return lastSeq, errors.Wrap(err, "open segment")
		}

		for {
			rec, err := readRecord(f)
			if err == io.EOF {
				break
			}
			if err == io.ErrUnexpectedEOF && i == len(files)-1 {
				break
			}
			if err != nil {
				_ = f.Close()
				return lastSeq, errors.Wrapf(err, "segment %s", path)
			}

			if rec.Seq <= seen {
				_ = f.Close()
				return lastSeq, errors.Wrapf(ErrSequence, "seq %d after %d", rec.Seq, seen)
			}
			seen = rec.Seq
			if rec.Seq <= after {
				continue
			}
			lastSeq = rec.Seq

			if err := fn(rec); err != nil {
				_ = f.Close()
				return lastSeq, err
			}
		}
		_ = f.Close()
	}

	return lastSeq, nil
}
