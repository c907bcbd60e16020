package entry

import "time"

type RecordType uint8

const (
	// RecordMeterMod carries an encoded ofp13.MeterMod.
	RecordMeterMod RecordType = iota + 1
	// RecordSetAsync carries an encoded ofp13.AsyncConfig.
	RecordSetAsync
)

func (t RecordType) String() string {
	switch t {
	case RecordMeterMod:
		return "meter-mod"
	case RecordSetAsync:
		return "set-async"
	}
	return "unknown"
}

type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}
