package ofp13

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

const (
	PortStatsLen        = 112
	QueueStatsLen       = 40
	GroupStatsLen       = 40
	BucketCounterLen    = 16
	portStatsCounterOff = 8
)

// PortStats is one entry of an OFPMP13_PORT reply.
type PortStats struct {
	PortNo       uint32
	RxPackets    uint64
	TxPackets    uint64
	RxBytes      uint64
	TxBytes      uint64
	RxDropped    uint64
	TxDropped    uint64
	RxErrors     uint64
	TxErrors     uint64
	RxFrameErr   uint64
	RxOverErr    uint64
	RxCrcErr     uint64
	Collisions   uint64
	DurationSec  uint32
	DurationNsec uint32
}

// counters lists the twelve 64-bit counters in wire order.
func (s *PortStats) counters() [12]*uint64 {
	return [12]*uint64{
		&s.RxPackets, &s.TxPackets, &s.RxBytes, &s.TxBytes,
		&s.RxDropped, &s.TxDropped, &s.RxErrors, &s.TxErrors,
		&s.RxFrameErr, &s.RxOverErr, &s.RxCrcErr, &s.Collisions,
	}
}

func (s PortStats) size() int { return PortStatsLen }

func (s PortStats) put(b []byte) {
	binary.BigEndian.PutUint32(b[0:4], s.PortNo)
	for i, c := range s.counters() {
		off := portStatsCounterOff + i*8
		binary.BigEndian.PutUint64(b[off:off+8], *c)
	}
	binary.BigEndian.PutUint32(b[104:108], s.DurationSec)
	binary.BigEndian.PutUint32(b[108:112], s.DurationNsec)
}

func (s PortStats) MarshalBinary() ([]byte, error) {
	b := make([]byte, PortStatsLen)
	s.put(b)
	return b, nil
}

func (s *PortStats) UnmarshalBinary(b []byte) error {
	if len(b) < PortStatsLen {
		return errors.Wrap(ErrShortBuffer, "port stats")
	}
	*s = PortStats{
		PortNo:       binary.BigEndian.Uint32(b[0:4]),
		DurationSec:  binary.BigEndian.Uint32(b[104:108]),
		DurationNsec: binary.BigEndian.Uint32(b[108:112]),
	}
	for i, c := range s.counters() {
		off := portStatsCounterOff + i*8
		*c = binary.BigEndian.Uint64(b[off : off+8])
	}
	return nil
}

// QueueStats is one entry of an OFPMP13_QUEUE reply.
type QueueStats struct {
	PortNo       uint32
	QueueID      uint32
	TxBytes      uint64
	TxPackets    uint64
	TxErrors     uint64
	DurationSec  uint32
	DurationNsec uint32
}

func (s QueueStats) size() int { return QueueStatsLen }

func (s QueueStats) put(b []byte) {
	binary.BigEndian.PutUint32(b[0:4], s.PortNo)
	binary.BigEndian.PutUint32(b[4:8], s.QueueID)
	binary.BigEndian.PutUint64(b[8:16], s.TxBytes)
	binary.BigEndian.PutUint64(b[16:24], s.TxPackets)
	binary.BigEndian.PutUint64(b[24:32], s.TxErrors)
	binary.BigEndian.PutUint32(b[32:36], s.DurationSec)
	binary.BigEndian.PutUint32(b[36:40], s.DurationNsec)
}

func (s QueueStats) MarshalBinary() ([]byte, error) {
	b := make([]byte, QueueStatsLen)
	s.put(b)
	return b, nil
}

func (s *QueueStats) UnmarshalBinary(b []byte) error {
	if len(b) < QueueStatsLen {
		return errors.Wrap(ErrShortBuffer, "queue stats")
	}
	*s = QueueStats{
		PortNo:       binary.BigEndian.Uint32(b[0:4]),
		QueueID:      binary.BigEndian.Uint32(b[4:8]),
		TxBytes:      binary.BigEndian.Uint64(b[8:16]),
		TxPackets:    binary.BigEndian.Uint64(b[16:24]),
		TxErrors:     binary.BigEndian.Uint64(b[24:32]),
		DurationSec:  binary.BigEndian.Uint32(b[32:36]),
		DurationNsec: binary.BigEndian.Uint32(b[36:40]),
	}
	return nil
}

type BucketCounter struct {
	PacketCount uint64
	ByteCount   uint64
}

// GroupStats is one entry of an OFPMP13_GROUP reply, followed on the
// wire by one counter per bucket.
type GroupStats struct {
	GroupID      uint32
	RefCount     uint32
	PacketCount  uint64
	ByteCount    uint64
	DurationSec  uint32
	DurationNsec uint32
	Buckets      []BucketCounter
}

func (s GroupStats) size() int { return GroupStatsLen + len(s.Buckets)*BucketCounterLen }

func (s GroupStats) put(b []byte) {
	binary.BigEndian.PutUint16(b[0:2], uint16(s.size()))
	binary.BigEndian.PutUint32(b[4:8], s.GroupID)
	binary.BigEndian.PutUint32(b[8:12], s.RefCount)
	binary.BigEndian.PutUint64(b[16:24], s.PacketCount)
	binary.BigEndian.PutUint64(b[24:32], s.ByteCount)
	binary.BigEndian.PutUint32(b[32:36], s.DurationSec)
	binary.BigEndian.PutUint32(b[36:40], s.DurationNsec)
	for i, bc := range s.Buckets {
		off := GroupStatsLen + i*BucketCounterLen
		binary.BigEndian.PutUint64(b[off:off+8], bc.PacketCount)
		binary.BigEndian.PutUint64(b[off+8:off+16], bc.ByteCount)
	}
}

func (s GroupStats) MarshalBinary() ([]byte, error) {
	if s.size() > MaxMultipartBody {
		return nil, errors.Wrapf(ErrTooLarge, "group %d has %d buckets", s.GroupID, len(s.Buckets))
	}
	b := make([]byte, s.size())
	s.put(b)
	return b, nil
}

func (s *GroupStats) UnmarshalBinary(b []byte) error {
	if len(b) < GroupStatsLen {
		return errors.Wrap(ErrShortBuffer, "group stats")
	}
	l := int(binary.BigEndian.Uint16(b[0:2]))
	if l < GroupStatsLen || l > len(b) || (l-GroupStatsLen)%BucketCounterLen != 0 {
		return errors.Wrapf(ErrBadLength, "group stats len %d", l)
	}
	*s = GroupStats{
		GroupID:      binary.BigEndian.Uint32(b[4:8]),
		RefCount:     binary.BigEndian.Uint32(b[8:12]),
		PacketCount:  binary.BigEndian.Uint64(b[16:24]),
		ByteCount:    binary.BigEndian.Uint64(b[24:32]),
		DurationSec:  binary.BigEndian.Uint32(b[32:36]),
		DurationNsec: binary.BigEndian.Uint32(b[36:40]),
	}
	for off := GroupStatsLen; off < l; off += BucketCounterLen {
		s.Buckets = append(s.Buckets, BucketCounter{
			PacketCount: binary.BigEndian.Uint64(b[off : off+8]),
			ByteCount:   binary.BigEndian.Uint64(b[off+8 : off+16]),
		})
	}
	return nil
}

// PortStatsReplies frames ss as one or more OFPMP13_PORT replies.
func PortStatsReplies(xid uint32, ss []PortStats) ([][]byte, error) {
	return multipartReplies(xid, OFPMP13_PORT, ss)
}
