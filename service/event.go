package service

import (
	"encoding/base64"
	"strconv"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"switchd/domain/meter"
	"switchd/openflow/ofp13"
)

const eventVersion = 1

// Event is the broker message for one applied meter change.
type Event struct {
	V       int
	Type    string
	MeterID uint32
	Seq     uint64
	Config  ofp13.MeterConfig
	Removed []uint32
}

func eventType(ev uint16) string {
	switch ev {
	case ofp13.ONFFME_ADDED:
		return "meter.added"
	case ofp13.ONFFME_MODIFIED:
		return "meter.modified"
	case ofp13.ONFFME_DELETED:
		return "meter.deleted"
	}
	return "meter.unknown"
}

// EncodeEvent renders ch as a protobuf Struct. Sequence numbers travel
// as strings since Struct numbers are doubles.
func EncodeEvent(seq uint64, ch meter.Change) ([]byte, error) {
	fields := map[string]any{
		"v":        eventVersion,
		"type":     eventType(ch.Event),
		"meter_id": ch.MeterID,
		"seq":      strconv.FormatUint(seq, 10),
	}
	if ch.Event != ofp13.ONFFME_DELETED {
		cfg, err := ch.Config.MarshalBinary()
		if err != nil {
			return nil, err
		}
		fields["config"] = cfg
	}
	if len(ch.Removed) > 0 {
		removed := make([]any, len(ch.Removed))
		for i, id := range ch.Removed {
			removed[i] = id
		}
		fields["removed"] = removed
	}

	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, errors.Wrap(err, "event struct")
	}
	return proto.Marshal(st)
}

func DecodeEvent(b []byte) (Event, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(b, &st); err != nil {
		return Event{}, errors.Wrap(err, "event")
	}
	f := st.GetFields()
	ev := Event{
		V:       int(f["v"].GetNumberValue()),
		Type:    f["type"].GetStringValue(),
		MeterID: uint32(f["meter_id"].GetNumberValue()),
	}
	seq, err := strconv.ParseUint(f["seq"].GetStringValue(), 10, 64)
	if err != nil {
		return Event{}, errors.Wrap(err, "event seq")
	}
	ev.Seq = seq

	if s := f["config"].GetStringValue(); s != "" {
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return Event{}, errors.Wrap(err, "event config")
		}
		if err := ev.Config.UnmarshalBinary(raw); err != nil {
			return Event{}, errors.Wrap(err, "event config")
		}
	}
	for _, v := range f["removed"].GetListValue().GetValues() {
		ev.Removed = append(ev.Removed, uint32(v.GetNumberValue()))
	}
	return ev, nil
}

// EventKey is the broker key for an encoded event: the decimal meter id,
// so one meter's events share a partition. It returns nil for payloads
// that do not decode.
func EventKey(payload []byte) []byte {
	ev, err := DecodeEvent(payload)
	if err != nil {
		return nil
	}
	return strconv.AppendUint(nil, uint64(ev.MeterID), 10)
}
