package entry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
)

const indexFile = "segments.idx"

// IndexEntry describes one closed segment.
type IndexEntry struct {
	File     string    `json:"file"`
	FirstSeq uint64    `json:"first_seq"`
	LastSeq  uint64    `json:"last_seq"`
	Closed   time.Time `json:"closed"`
}

func appendIndex(dir string, e IndexEntry) error {
	f, err := os.OpenFile(filepath.Join(dir, indexFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open index")
	}
	defer f.Close()

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return errors.Wrap(err, "write index")
	}
	return nil
}

// LoadIndex returns the closed-segment index of dir keyed by file name.
// A missing index is empty. Lines that do not decode are skipped; the
// segments they describe are scanned instead.
func LoadIndex(dir string) (map[string]IndexEntry, error) {
	b, err := os.ReadFile(filepath.Join(dir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]IndexEntry{}, nil
		}
		return nil, errors.Wrap(err, "read index")
	}

	out := make(map[string]IndexEntry)
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		var e IndexEntry
		if json.Unmarshal(sc.Bytes(), &e) == nil && e.File != "" {
			out[e.File] = e
		}
	}
	return out, nil
}

// rewriteIndex replaces the index with the entries whose segments still
// exist.
func rewriteIndex(dir string, idx map[string]IndexEntry) error {
	var buf bytes.Buffer
	for _, path := range mustList(dir) {
		e, ok := idx[filepath.Base(path)]
		if !ok {
			continue
		}
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	tmp := filepath.Join(dir, indexFile+".tmp")
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return errors.Wrap(err, "write index")
	}
	return errors.Wrap(os.Rename(tmp, filepath.Join(dir, indexFile)), "rename index")
}

func mustList(dir string) []string {
	files, _ := listSegments(dir)
	return files
}
