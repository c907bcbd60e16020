package snapshot

import (
	"bytes"
	"encoding/gob"
	"os"

	"github.com/cockroachdb/errors"

	"switchd/domain/meter"
	"switchd/infra/rcu"
	"switchd/openflow/ofp13"
)

var ErrDigestMismatch = errors.New("snapshot: digest mismatch")

// Read decodes and verifies the snapshot at path. A missing file yields
// an empty snapshot with sequence 0.
func Read(path string) (*Snapshot, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Snapshot{}, nil // snapshot optional
	}
	if err != nil {
		return nil, errors.Wrap(err, "read snapshot")
	}
	if len(b) < DigestLen {
		return nil, errors.Wrapf(ErrDigestMismatch, "%d byte file", len(b))
	}

	var want [DigestLen]byte
	copy(want[:], b[:DigestLen])
	body := b[DigestLen:]
	if got := Sum1(body); got != want {
		return nil, errors.Wrapf(ErrDigestMismatch, "have %s, want %s", Hex(got), Hex(want))
	}

	var s Snapshot
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&s); err != nil {
		return nil, errors.Wrap(err, "decode snapshot")
	}
	return &s, nil
}

// Load reads the snapshot at path and installs its meters into table as
// ADDs from writer thread t.
func Load(path string, table *meter.Table, t *rcu.Thread) (*Snapshot, error) {
	s, err := Read(path)
	if err != nil {
		return nil, err
	}
	for _, c := range s.Meters {
		mod := ofp13.MeterMod{
			Command: ofp13.OFPMC13_ADD,
			Flags:   c.Flags,
			MeterID: c.MeterID,
			Bands:   c.Bands,
		}
		if _, err := table.Apply(t, mod); err != nil {
			return nil, errors.Wrapf(err, "restore meter %d", c.MeterID)
		}
	}
	return s, nil
}
