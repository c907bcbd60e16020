package entry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

const segmentGlob = "segment-*.wal"

type segment struct {
	index  int
	file   *os.File
	offset int64
	// first and last sequence appended, zero while empty
	first, last uint64
}

func segmentPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("segment-%06d.wal", index))
}

func openSegment(dir string, index int) (*segment, error) {
	f, err := os.OpenFile(segmentPath(dir, index), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open segment")
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "stat segment")
	}
	seg := &segment{index: index, file: f, offset: st.Size()}
	if seg.offset > 0 {
		if seg.first, seg.last, err = segmentBounds(f.Name()); err != nil {
			_ = f.Close()
			return nil, errors.Wrap(err, "scan segment")
		}
	}
	return seg, nil
}

func (s *segment) append(seq uint64, b []byte) error {
	n, err := s.file.Write(b)
	s.offset += int64(n)
	if err == nil {
		if s.first == 0 {
			s.first = seq
		}
		s.last = seq
	}
	return err
}

func (s *segment) sync() error {
	return s.file.Sync()
}

func (s *segment) close() error {
	return s.file.Close()
}

// listSegments returns segment paths ordered by index.
func listSegments(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, segmentGlob))
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool {
		return segmentIndex(files[i]) < segmentIndex(files[j])
	})
	return files, nil
}

func segmentIndex(path string) int {
	name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "segment-"), ".wal")
	n, err := strconv.Atoi(name)
	if err != nil {
		return -1
	}
	return n
}
