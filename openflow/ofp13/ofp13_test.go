package ofp13

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestMessageFraming(t *testing.T) {
	msg, err := NewMessage(OFPT_BARRIER_REQUEST, 0x01020304, nil)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	want := []byte{0x04, 20, 0x00, 0x08, 0x01, 0x02, 0x03, 0x04}
	if !bytes.Equal(msg, want) {
		t.Fatalf("framed barrier = % x, want % x", msg, want)
	}

	h, body, err := ParseMessage(msg)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if h.Type != OFPT_BARRIER_REQUEST || h.Xid != 0x01020304 || len(body) != 0 {
		t.Fatalf("unexpected header %+v body %d", h, len(body))
	}
}

func TestParseMessageRejects(t *testing.T) {
	good, err := NewMessage(OFPT_HELLO, 1, []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("frame: %v", err)
	}

	if _, _, err := ParseMessage(good[:5]); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("short: got %v", err)
	}
	if _, _, err := ParseMessage(good[:10]); !errors.Is(err, ErrBadLength) {
		t.Errorf("truncated body: got %v", err)
	}
	bad := append([]byte(nil), good...)
	bad[0] = 0x01
	if _, _, err := ParseMessage(bad); !errors.Is(err, ErrBadVersion) {
		t.Errorf("version: got %v", err)
	}
}

func TestMeterModLayout(t *testing.T) {
	mm := MeterMod{
		Command: OFPMC13_ADD,
		Flags:   OFPMF13_KBPS | OFPMF13_STATS,
		MeterID: 7,
		Bands: []MeterBand{
			{Type: OFPMBT13_DROP, Rate: 1000, BurstSize: 100},
			{Type: OFPMBT13_DSCP_REMARK, Rate: 500, PrecLevel: 2},
		},
	}
	b, _ := mm.MarshalBinary()
	if len(b) != MeterModLen+2*MeterBandLen {
		t.Fatalf("len = %d", len(b))
	}
	wantHead := []byte{0, 0, 0, 9, 0, 0, 0, 7}
	if !bytes.Equal(b[:8], wantHead) {
		t.Fatalf("head = % x, want % x", b[:8], wantHead)
	}
	// second band: type 2, len 16, rate 500, burst 0, prec 2
	band := b[24:40]
	wantBand := []byte{0, 2, 0, 16, 0, 0, 0x01, 0xf4, 0, 0, 0, 0, 2, 0, 0, 0}
	if !bytes.Equal(band, wantBand) {
		t.Fatalf("band = % x, want % x", band, wantBand)
	}

	var back MeterMod
	if err := back.UnmarshalBinary(b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.MeterID != 7 || len(back.Bands) != 2 || back.Bands[1].PrecLevel != 2 || back.Bands[0].BurstSize != 100 {
		t.Fatalf("decoded %+v", back)
	}
}

func TestMeterModRejectsBadBand(t *testing.T) {
	b, _ := MeterMod{MeterID: 1, Bands: []MeterBand{{Type: OFPMBT13_DROP}}}.MarshalBinary()
	b[11] = 12 // band length field
	var mm MeterMod
	if err := mm.UnmarshalBinary(b); !errors.Is(err, ErrBadLength) {
		t.Fatalf("expected ErrBadLength, got %v", err)
	}
	if err := mm.UnmarshalBinary(b[:MeterModLen+3]); !errors.Is(err, ErrBadLength) {
		t.Fatalf("expected ErrBadLength for ragged tail, got %v", err)
	}
}

func TestMeterConfigList(t *testing.T) {
	in := []MeterConfig{
		{Flags: OFPMF13_PKTPS, MeterID: 1, Bands: []MeterBand{{Type: OFPMBT13_DROP, Rate: 10}}},
		{Flags: OFPMF13_KBPS, MeterID: 2},
		{MeterID: 3, Bands: []MeterBand{
			{Type: OFPMBT13_EXPERIMENTER, Experimenter: ONF_EXPERIMENTER_ID},
			{Type: OFPMBT13_DROP, Rate: 1},
		}},
	}
	b := MarshalMeterConfigs(in)
	if len(b) != 3*MeterConfigLen+3*MeterBandLen {
		t.Fatalf("len = %d", len(b))
	}
	out, err := UnmarshalMeterConfigs(b)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 3 || out[1].MeterID != 2 || len(out[1].Bands) != 0 {
		t.Fatalf("decoded %+v", out)
	}
	if out[2].Bands[0].Experimenter != ONF_EXPERIMENTER_ID {
		t.Fatalf("experimenter id lost: %+v", out[2].Bands[0])
	}
	if _, err := UnmarshalMeterConfigs(b[:len(b)-4]); err == nil {
		t.Fatal("expected error on truncated list")
	}
}

func TestMeterStatsList(t *testing.T) {
	in := []MeterStats{
		{MeterID: 9, FlowCount: 2, PacketInCount: 100, ByteInCount: 6400, DurationSec: 3, DurationNsec: 500,
			BandStats: []MeterBandStats{{PacketBandCount: 4, ByteBandCount: 256}}},
		{MeterID: 10},
	}
	b := MarshalMeterStats(in)
	if len(b) != 2*MeterStatsLen+MeterBandStatsLen {
		t.Fatalf("len = %d", len(b))
	}
	if b[4] != 0 || b[5] != 56 {
		t.Fatalf("first entry length field = %d", int(b[4])<<8|int(b[5]))
	}
	out, err := UnmarshalMeterStats(b)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 2 || out[0].BandStats[0].ByteBandCount != 256 || out[0].DurationNsec != 500 || out[1].MeterID != 10 {
		t.Fatalf("decoded %+v", out)
	}
}

func TestMeterFeatures(t *testing.T) {
	f := MeterFeatures{MaxMeter: 1024, BandTypes: 1<<OFPMBT13_DROP | 1<<OFPMBT13_DSCP_REMARK, Capabilities: 0xf, MaxBands: 8, MaxColor: 1}
	b, _ := f.MarshalBinary()
	if len(b) != MeterFeaturesLen {
		t.Fatalf("len = %d", len(b))
	}
	var back MeterFeatures
	if err := back.UnmarshalBinary(b); err != nil || back != f {
		t.Fatalf("got %+v err %v", back, err)
	}
}

func TestInstructionMeter(t *testing.T) {
	b, _ := InstructionMeter{MeterID: 0x10}.MarshalBinary()
	if !bytes.Equal(b, []byte{0, 6, 0, 8, 0, 0, 0, 0x10}) {
		t.Fatalf("encoded % x", b)
	}
	b[1] = 1
	var im InstructionMeter
	if err := im.UnmarshalBinary(b); !errors.Is(err, ErrBadType) {
		t.Fatalf("expected ErrBadType, got %v", err)
	}
}

func TestTableStatsLayout(t *testing.T) {
	b, _ := TableStats{TableID: 3, ActiveCount: 5, LookupCount: 1 << 40, MatchedCount: 2}.MarshalBinary()
	if len(b) != TableStatsLen || b[0] != 3 || b[7] != 5 || b[10] != 1 {
		t.Fatalf("encoded % x", b)
	}
}

func TestTableFeatures(t *testing.T) {
	f := TableFeatures{
		TableID:       0,
		Command:       OFPTFC15_REPLACE,
		Name:          "classifier",
		MetadataMatch: ^uint64(0),
		MaxEntries:    1 << 20,
		Properties: []TableFeatureProp{
			{Type: OFPTFPT13_INSTRUCTIONS, Data: []byte{0, 6, 0, 4}},
			{Type: OFPTFPT13_NEXT_TABLES, Data: []byte{1, 2, 3}},
		},
	}
	b, err := f.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(b) != TableFeaturesLen+8+8 || len(b)%8 != 0 {
		t.Fatalf("len = %d", len(b))
	}
	var back TableFeatures
	if err := back.UnmarshalBinary(b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Name != "classifier" || back.MaxEntries != 1<<20 || len(back.Properties) != 2 {
		t.Fatalf("decoded %+v", back)
	}
	if !bytes.Equal(back.Properties[1].Data, []byte{1, 2, 3}) {
		t.Fatalf("property data %v", back.Properties[1].Data)
	}

	missing := back.MissingRequired()
	if len(missing) != 6 {
		t.Fatalf("expected 6 missing required properties, got %v", missing)
	}

	long := TableFeatures{Name: string(bytes.Repeat([]byte("x"), OFP_MAX_TABLE_NAME_LEN))}
	if _, err := long.MarshalBinary(); err == nil {
		t.Fatal("expected error for overlong name")
	}
}

func TestAsyncConfig(t *testing.T) {
	c := AsyncConfig{
		PacketInMask:    [2]uint32{0x7, 0x0},
		PortStatusMask:  [2]uint32{0x7, 0x7},
		FlowRemovedMask: [2]uint32{0xf, 0x0},
	}
	b, _ := c.MarshalBinary()
	if len(b) != AsyncConfigLen || b[3] != 7 || b[11] != 7 || b[19] != 0xf {
		t.Fatalf("encoded % x", b)
	}
	var back AsyncConfig
	if err := back.UnmarshalBinary(b); err != nil || back != c {
		t.Fatalf("got %+v err %v", back, err)
	}
}

func TestFlowMonitor(t *testing.T) {
	req := FlowMonitorRequest{ID: 1, Flags: ONFFMF_INITIAL | ONFFMF_ADD, OutPort: 0xffffffff, TableID: 0xff, Match: []byte{1, 2, 3, 4, 5}}
	b, _ := req.MarshalBinary()
	if len(b) != FlowMonitorRequestLen+8 {
		t.Fatalf("len = %d", len(b))
	}
	var back FlowMonitorRequest
	if err := back.UnmarshalBinary(b); err != nil || !bytes.Equal(back.Match, req.Match) || back.TableID != 0xff {
		t.Fatalf("got %+v err %v", back, err)
	}

	full := FlowUpdateFull{Event: ONFFME_ADDED, Priority: 100, TableID: 2, Cookie: 42, Match: []byte{9, 9, 9}, Instructions: make([]byte, 8)}
	fb, err := full.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal full: %v", err)
	}
	if len(fb) != FlowUpdateFullLen+8+8 {
		t.Fatalf("full len = %d", len(fb))
	}
	var hdr FlowUpdateHeader
	if err := hdr.UnmarshalBinary(fb); err != nil || int(hdr.Length) != len(fb) || hdr.Event != ONFFME_ADDED {
		t.Fatalf("header %+v err %v", hdr, err)
	}
	var fback FlowUpdateFull
	if err := fback.UnmarshalBinary(fb); err != nil || fback.Cookie != 42 || len(fback.Instructions) != 8 {
		t.Fatalf("got %+v err %v", fback, err)
	}

	ab, _ := FlowUpdateAbbrev{Xid: 77}.MarshalBinary()
	var abbrev FlowUpdateAbbrev
	if err := abbrev.UnmarshalBinary(ab); err != nil || abbrev.Xid != 77 {
		t.Fatalf("abbrev %+v err %v", abbrev, err)
	}
	if err := fback.UnmarshalBinary(append(ab, make([]byte, 16)...)); !errors.Is(err, ErrBadType) && !errors.Is(err, ErrBadLength) {
		t.Fatalf("expected abbrev rejected as full update, got %v", err)
	}

	eh := ExperimenterHeader{Header: Header{Version: Version, Type: OFPT_EXPERIMENTER, Length: ExperimenterHeaderLen, Xid: 5}, Vendor: ONF_EXPERIMENTER_ID, Subtype: ONFT_FLOW_MONITOR_PAUSED}
	hb, _ := eh.MarshalBinary()
	var ehBack ExperimenterHeader
	if err := ehBack.UnmarshalBinary(hb); err != nil || ehBack != eh {
		t.Fatalf("experimenter %+v err %v", ehBack, err)
	}
}

func TestErrorMsg(t *testing.T) {
	e := ErrorMsg{Type: OFPET_METER_MOD_FAILED, Code: OFPMMFC_UNKNOWN_METER, Data: []byte{1, 2}}
	b, _ := e.MarshalBinary()
	if !bytes.Equal(b, []byte{0, 12, 0, 3, 1, 2}) {
		t.Fatalf("encoded % x", b)
	}
}

func TestNewMessageRejectsOversizedBody(t *testing.T) {
	if _, err := NewMessage(OFPT_MULTIPART_REPLY, 1, make([]byte, MaxMessageLen-HeaderLen)); err != nil {
		t.Fatalf("largest body rejected: %v", err)
	}
	if _, err := NewMessage(OFPT_MULTIPART_REPLY, 1, make([]byte, MaxMessageLen-HeaderLen+1)); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestMeterStatsRepliesSplit(t *testing.T) {
	const meters = 450
	ss := make([]MeterStats, meters)
	for i := range ss {
		ss[i] = MeterStats{MeterID: uint32(i + 1), PacketInCount: uint64(i), BandStats: make([]MeterBandStats, 8)}
	}
	if len(MarshalMeterStats(ss)) <= MaxMessageLen {
		t.Fatal("test entries fit one message; grow them")
	}

	msgs, err := MeterStatsReplies(77, ss)
	if err != nil {
		t.Fatalf("replies: %v", err)
	}
	if len(msgs) < 2 {
		t.Fatalf("expected the reply to be split, got %d message(s)", len(msgs))
	}

	var got []MeterStats
	for i, msg := range msgs {
		h, body, err := ParseMessage(msg)
		if err != nil {
			t.Fatalf("message %d: %v", i, err)
		}
		if h.Type != OFPT_MULTIPART_REPLY || h.Xid != 77 {
			t.Fatalf("message %d header %+v", i, h)
		}
		var mp Multipart
		if err := mp.UnmarshalBinary(body); err != nil {
			t.Fatalf("message %d multipart: %v", i, err)
		}
		more := mp.Flags&OFPMPF13_REPLY_MORE != 0
		if last := i == len(msgs)-1; more == last {
			t.Fatalf("message %d of %d: REPLY_MORE=%v", i+1, len(msgs), more)
		}
		part, err := UnmarshalMeterStats(mp.Body)
		if err != nil {
			t.Fatalf("message %d entries: %v", i, err)
		}
		got = append(got, part...)
	}
	if len(got) != meters {
		t.Fatalf("reassembled %d entries, want %d", len(got), meters)
	}
	for i, s := range got {
		if s.MeterID != uint32(i+1) || s.PacketInCount != uint64(i) {
			t.Fatalf("entry %d out of order: %+v", i, s)
		}
	}

	stream := bytes.Join(msgs, nil)
	split, err := SplitMessages(stream)
	if err != nil || len(split) != len(msgs) {
		t.Fatalf("split %d messages, err %v", len(split), err)
	}
	if _, err := SplitMessages(stream[:len(stream)-1]); !errors.Is(err, ErrBadLength) {
		t.Fatalf("truncated stream: got %v", err)
	}
}

func TestMeterConfigRepliesEmpty(t *testing.T) {
	msgs, err := MeterConfigReplies(3, nil)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("expected one empty reply, got %d err %v", len(msgs), err)
	}
	_, body, err := ParseMessage(msgs[0])
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var mp Multipart
	if err := mp.UnmarshalBinary(body); err != nil || mp.Type != OFPMP13_METER_CONFIG || mp.Flags != 0 || len(mp.Body) != 0 {
		t.Fatalf("unexpected reply %+v err %v", mp, err)
	}
}

func TestPortStatsLayout(t *testing.T) {
	in := PortStats{PortNo: 7, RxPackets: 1, TxPackets: 2, RxBytes: 3, Collisions: 12, DurationSec: 30, DurationNsec: 40}
	b, _ := in.MarshalBinary()
	if len(b) != PortStatsLen {
		t.Fatalf("len = %d", len(b))
	}
	if b[3] != 7 || b[15] != 1 || b[23] != 2 || b[31] != 3 || b[103] != 12 || b[107] != 30 || b[111] != 40 {
		t.Fatalf("encoded % x", b)
	}
	var back PortStats
	if err := back.UnmarshalBinary(b); err != nil || back != in {
		t.Fatalf("got %+v err %v", back, err)
	}
	if err := back.UnmarshalBinary(b[:PortStatsLen-1]); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
}

func TestQueueStatsLayout(t *testing.T) {
	in := QueueStats{PortNo: 1, QueueID: 2, TxBytes: 3, TxPackets: 4, TxErrors: 5, DurationSec: 6, DurationNsec: 7}
	b, _ := in.MarshalBinary()
	if len(b) != QueueStatsLen || b[7] != 2 || b[15] != 3 || b[31] != 5 || b[39] != 7 {
		t.Fatalf("encoded % x", b)
	}
	var back QueueStats
	if err := back.UnmarshalBinary(b); err != nil || back != in {
		t.Fatalf("got %+v err %v", back, err)
	}
}

func TestGroupStatsLayout(t *testing.T) {
	in := GroupStats{GroupID: 3, RefCount: 1, PacketCount: 10, ByteCount: 640,
		Buckets: []BucketCounter{{PacketCount: 6, ByteCount: 384}, {PacketCount: 4, ByteCount: 256}}}
	b, err := in.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(b) != GroupStatsLen+2*BucketCounterLen || b[1] != 72 || b[7] != 3 || b[11] != 1 {
		t.Fatalf("encoded % x", b)
	}
	var back GroupStats
	if err := back.UnmarshalBinary(b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.GroupID != 3 || back.ByteCount != 640 || len(back.Buckets) != 2 || back.Buckets[1] != in.Buckets[1] {
		t.Fatalf("decoded %+v", back)
	}
	b[1] = 41
	if err := back.UnmarshalBinary(b); !errors.Is(err, ErrBadLength) {
		t.Fatalf("expected ErrBadLength, got %v", err)
	}
}

func TestPortStatsRepliesSplit(t *testing.T) {
	ports := make([]PortStats, 600)
	for i := range ports {
		ports[i].PortNo = uint32(i + 1)
	}
	msgs, err := PortStatsReplies(1, ports)
	if err != nil {
		t.Fatalf("replies: %v", err)
	}
	perMsg := MaxMultipartBody / PortStatsLen
	if want := (len(ports) + perMsg - 1) / perMsg; len(msgs) != want {
		t.Fatalf("got %d messages, want %d", len(msgs), want)
	}
	for i, m := range msgs {
		_, body, err := ParseMessage(m)
		if err != nil {
			t.Fatalf("message %d: %v", i, err)
		}
		var mp Multipart
		if err := mp.UnmarshalBinary(body); err != nil {
			t.Fatalf("multipart %d: %v", i, err)
		}
		if more := mp.Flags&OFPMPF13_REPLY_MORE != 0; more != (i < len(msgs)-1) || mp.Type != OFPMP13_PORT {
			t.Fatalf("message %d: type %d flags %#x", i, mp.Type, mp.Flags)
		}
	}
}
