package snapshot

import (
	"time"

	"switchd/openflow/ofp13"
)

const FileName = "snapshot.bin"

type Snapshot struct {
	Seq     uint64
	Version uint64
	Created time.Time
	Meters  []ofp13.MeterConfig
	Async   ofp13.AsyncConfig
}
