package snapshot

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"switchd/domain/meter"
	"switchd/infra/rcu"
	"switchd/openflow/ofp13"
)

func newDomain(t *testing.T) *rcu.Domain {
	t.Helper()
	d := rcu.New(rcu.Config{Debug: true, Logger: log.New(io.Discard, "", 0)})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Shutdown(ctx)
	})
	return d
}

func TestWriteAndLoad(t *testing.T) {
	d := newDomain(t)
	writer := d.Register("writer")
	defer writer.Unregister()
	reader := NewReader(d.Register("snapshot"))
	defer reader.Thread().Unregister()

	table := meter.NewTable(meter.Limits{})
	for _, id := range []uint32{4, 2, 9} {
		mod := ofp13.MeterMod{
			Command: ofp13.OFPMC13_ADD,
			Flags:   ofp13.OFPMF13_PKTPS,
			MeterID: id,
			Bands:   []ofp13.MeterBand{{Type: ofp13.OFPMBT13_DROP, Rate: id * 100}},
		}
		if _, err := table.Apply(writer, mod); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	if !reader.Thread().IsQuiescent() {
		t.Fatal("snapshot reader must idle in the quiescent state")
	}

	w := &Writer{Dir: t.TempDir()}
	async := ofp13.AsyncConfig{PacketInMask: [2]uint32{1, 0}}
	path, err := w.Write(17, table, reader, async)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !reader.Thread().IsQuiescent() {
		t.Fatal("Write must end the read-side section")
	}

	restored := meter.NewTable(meter.Limits{})
	s, err := Load(path, restored, writer)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Seq != 17 || s.Async != async || s.Version != 3 {
		t.Fatalf("snapshot header %+v", s)
	}
	cfgs := restored.Configs(writer, ofp13.OFPM13_ALL)
	if len(cfgs) != 3 || cfgs[0].MeterID != 2 || cfgs[2].Bands[0].Rate != 900 {
		t.Fatalf("restored %+v", cfgs)
	}
}

func TestLoadMissingFile(t *testing.T) {
	d := newDomain(t)
	th := d.Register("w")
	defer th.Unregister()

	s, err := Load(filepath.Join(t.TempDir(), FileName), meter.NewTable(meter.Limits{}), th)
	if err != nil || s.Seq != 0 {
		t.Fatalf("missing snapshot: %+v %v", s, err)
	}
}

func TestLoadDetectsCorruption(t *testing.T) {
	d := newDomain(t)
	th := d.Register("w")
	defer th.Unregister()
	reader := NewReader(d.Register("snapshot"))
	defer reader.Thread().Unregister()

	table := meter.NewTable(meter.Limits{})
	_, _ = table.Apply(th, ofp13.MeterMod{Command: ofp13.OFPMC13_ADD, Flags: ofp13.OFPMF13_KBPS, MeterID: 1})

	path, err := (&Writer{Dir: t.TempDir()}).Write(1, table, reader, ofp13.AsyncConfig{})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	b, _ := os.ReadFile(path)
	b[len(b)-1] ^= 0x01
	_ = os.WriteFile(path, b, 0o644)

	if _, err := Read(path); !errors.Is(err, ErrDigestMismatch) {
		t.Fatalf("expected ErrDigestMismatch, got %v", err)
	}
}
