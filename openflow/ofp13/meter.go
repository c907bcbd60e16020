package ofp13

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

const (
	InstructionMeterLen      = 8
	MeterBandLen             = 16
	MeterModLen              = 8
	MeterConfigLen           = 8
	MeterStatsLen            = 40
	MeterBandStatsLen        = 16
	MeterFeaturesLen         = 16
	MeterMultipartRequestLen = 8
)

// InstructionMeter is ofp13_instruction_meter.
type InstructionMeter struct {
	MeterID uint32
}

func (i InstructionMeter) MarshalBinary() ([]byte, error) {
	b := make([]byte, InstructionMeterLen)
	binary.BigEndian.PutUint16(b[0:2], OFPIT13_METER)
	binary.BigEndian.PutUint16(b[2:4], InstructionMeterLen)
	binary.BigEndian.PutUint32(b[4:8], i.MeterID)
	return b, nil
}

func (i *InstructionMeter) UnmarshalBinary(b []byte) error {
	if len(b) < InstructionMeterLen {
		return errors.Wrap(ErrShortBuffer, "instruction meter")
	}
	if t := binary.BigEndian.Uint16(b[0:2]); t != OFPIT13_METER {
		return errors.Wrapf(ErrBadType, "instruction type %d", t)
	}
	if l := binary.BigEndian.Uint16(b[2:4]); l != InstructionMeterLen {
		return errors.Wrapf(ErrBadLength, "instruction meter len %d", l)
	}
	i.MeterID = binary.BigEndian.Uint32(b[4:8])
	return nil
}

// MeterBand covers the drop, DSCP remark and experimenter band layouts.
// PrecLevel is used by DSCP remark bands, Experimenter by experimenter
// bands; both are zero otherwise.
type MeterBand struct {
	Type         uint16
	Rate         uint32
	BurstSize    uint32
	PrecLevel    uint8
	Experimenter uint32
}

func (m MeterBand) MarshalBinary() ([]byte, error) {
	b := make([]byte, MeterBandLen)
	m.put(b)
	return b, nil
}

func (m MeterBand) put(b []byte) {
	binary.BigEndian.PutUint16(b[0:2], m.Type)
	binary.BigEndian.PutUint16(b[2:4], MeterBandLen)
	binary.BigEndian.PutUint32(b[4:8], m.Rate)
	binary.BigEndian.PutUint32(b[8:12], m.BurstSize)
	switch m.Type {
	case OFPMBT13_DSCP_REMARK:
		b[12] = m.PrecLevel
	case OFPMBT13_EXPERIMENTER:
		binary.BigEndian.PutUint32(b[12:16], m.Experimenter)
	}
}

func (m *MeterBand) UnmarshalBinary(b []byte) error {
	if len(b) < MeterBandLen {
		return errors.Wrap(ErrShortBuffer, "meter band")
	}
	if l := binary.BigEndian.Uint16(b[2:4]); l != MeterBandLen {
		return errors.Wrapf(ErrBadLength, "meter band len %d", l)
	}
	*m = MeterBand{
		Type:      binary.BigEndian.Uint16(b[0:2]),
		Rate:      binary.BigEndian.Uint32(b[4:8]),
		BurstSize: binary.BigEndian.Uint32(b[8:12]),
	}
	switch m.Type {
	case OFPMBT13_DSCP_REMARK:
		m.PrecLevel = b[12]
	case OFPMBT13_EXPERIMENTER:
		m.Experimenter = binary.BigEndian.Uint32(b[12:16])
	}
	return nil
}

func putBands(b []byte, bands []MeterBand) {
	for i, band := range bands {
		band.put(b[i*MeterBandLen:])
	}
}

func parseBands(b []byte) ([]MeterBand, error) {
	if len(b)%MeterBandLen != 0 {
		return nil, errors.Wrapf(ErrBadLength, "%d trailing band bytes", len(b))
	}
	bands := make([]MeterBand, len(b)/MeterBandLen)
	for i := range bands {
		if err := bands[i].UnmarshalBinary(b[i*MeterBandLen:]); err != nil {
			return nil, errors.Wrapf(err, "band %d", i)
		}
	}
	return bands, nil
}

// MeterMod is the body of an OFPT_METER_MOD message.
type MeterMod struct {
	Command uint16
	Flags   uint16
	MeterID uint32
	Bands   []MeterBand
}

func (m MeterMod) MarshalBinary() ([]byte, error) {
	b := make([]byte, MeterModLen+len(m.Bands)*MeterBandLen)
	binary.BigEndian.PutUint16(b[0:2], m.Command)
	binary.BigEndian.PutUint16(b[2:4], m.Flags)
	binary.BigEndian.PutUint32(b[4:8], m.MeterID)
	putBands(b[MeterModLen:], m.Bands)
	return b, nil
}

func (m *MeterMod) UnmarshalBinary(b []byte) error {
	if len(b) < MeterModLen {
		return errors.Wrap(ErrShortBuffer, "meter mod")
	}
	bands, err := parseBands(b[MeterModLen:])
	if err != nil {
		return errors.Wrap(err, "meter mod")
	}
	*m = MeterMod{
		Command: binary.BigEndian.Uint16(b[0:2]),
		Flags:   binary.BigEndian.Uint16(b[2:4]),
		MeterID: binary.BigEndian.Uint32(b[4:8]),
		Bands:   bands,
	}
	return nil
}

// MeterMultipartRequest is the body of OFPMP13_METER and
// OFPMP13_METER_CONFIG requests.
type MeterMultipartRequest struct {
	MeterID uint32
}

func (r MeterMultipartRequest) MarshalBinary() ([]byte, error) {
	b := make([]byte, MeterMultipartRequestLen)
	binary.BigEndian.PutUint32(b[0:4], r.MeterID)
	return b, nil
}

func (r *MeterMultipartRequest) UnmarshalBinary(b []byte) error {
	if len(b) < MeterMultipartRequestLen {
		return errors.Wrap(ErrShortBuffer, "meter multipart request")
	}
	r.MeterID = binary.BigEndian.Uint32(b[0:4])
	return nil
}

// MeterConfig is one entry of an OFPMP13_METER_CONFIG reply.
type MeterConfig struct {
	Flags   uint16
	MeterID uint32
	Bands   []MeterBand
}

func (c MeterConfig) size() int { return MeterConfigLen + len(c.Bands)*MeterBandLen }

func (c MeterConfig) MarshalBinary() ([]byte, error) {
	b := make([]byte, c.size())
	c.put(b)
	return b, nil
}

func (c MeterConfig) put(b []byte) {
	binary.BigEndian.PutUint16(b[0:2], uint16(c.size()))
	binary.BigEndian.PutUint16(b[2:4], c.Flags)
	binary.BigEndian.PutUint32(b[4:8], c.MeterID)
	putBands(b[MeterConfigLen:], c.Bands)
}

// UnmarshalBinary decodes one entry; b may carry further entries after
// it, which are ignored.
func (c *MeterConfig) UnmarshalBinary(b []byte) error {
	_, err := c.unmarshal(b)
	return err
}

func (c *MeterConfig) unmarshal(b []byte) (int, error) {
	if len(b) < MeterConfigLen {
		return 0, errors.Wrap(ErrShortBuffer, "meter config")
	}
	l := int(binary.BigEndian.Uint16(b[0:2]))
	if l < MeterConfigLen || l > len(b) {
		return 0, errors.Wrapf(ErrBadLength, "meter config len %d", l)
	}
	bands, err := parseBands(b[MeterConfigLen:l])
	if err != nil {
		return 0, errors.Wrap(err, "meter config")
	}
	*c = MeterConfig{
		Flags:   binary.BigEndian.Uint16(b[2:4]),
		MeterID: binary.BigEndian.Uint32(b[4:8]),
		Bands:   bands,
	}
	return l, nil
}

// MeterBandStats is ofp13_meter_band_stats.
type MeterBandStats struct {
	PacketBandCount uint64
	ByteBandCount   uint64
}

// MeterStats is one entry of an OFPMP13_METER reply.
type MeterStats struct {
	MeterID       uint32
	FlowCount     uint32
	PacketInCount uint64
	ByteInCount   uint64
	DurationSec   uint32
	DurationNsec  uint32
	BandStats     []MeterBandStats
}

func (s MeterStats) size() int { return MeterStatsLen + len(s.BandStats)*MeterBandStatsLen }

func (s MeterStats) MarshalBinary() ([]byte, error) {
	b := make([]byte, s.size())
	s.put(b)
	return b, nil
}

func (s MeterStats) put(b []byte) {
	binary.BigEndian.PutUint32(b[0:4], s.MeterID)
	binary.BigEndian.PutUint16(b[4:6], uint16(s.size()))
	binary.BigEndian.PutUint32(b[12:16], s.FlowCount)
	binary.BigEndian.PutUint64(b[16:24], s.PacketInCount)
	binary.BigEndian.PutUint64(b[24:32], s.ByteInCount)
	binary.BigEndian.PutUint32(b[32:36], s.DurationSec)
	binary.BigEndian.PutUint32(b[36:40], s.DurationNsec)
	for i, bs := range s.BandStats {
		off := MeterStatsLen + i*MeterBandStatsLen
		binary.BigEndian.PutUint64(b[off:off+8], bs.PacketBandCount)
		binary.BigEndian.PutUint64(b[off+8:off+16], bs.ByteBandCount)
	}
}

func (s *MeterStats) UnmarshalBinary(b []byte) error {
	_, err := s.unmarshal(b)
	return err
}

func (s *MeterStats) unmarshal(b []byte) (int, error) {
	if len(b) < MeterStatsLen {
		return 0, errors.Wrap(ErrShortBuffer, "meter stats")
	}
	l := int(binary.BigEndian.Uint16(b[4:6]))
	if l < MeterStatsLen || l > len(b) || (l-MeterStatsLen)%MeterBandStatsLen != 0 {
		return 0, errors.Wrapf(ErrBadLength, "meter stats len %d", l)
	}
	*s = MeterStats{
		MeterID:       binary.BigEndian.Uint32(b[0:4]),
		FlowCount:     binary.BigEndian.Uint32(b[12:16]),
		PacketInCount: binary.BigEndian.Uint64(b[16:24]),
		ByteInCount:   binary.BigEndian.Uint64(b[24:32]),
		DurationSec:   binary.BigEndian.Uint32(b[32:36]),
		DurationNsec:  binary.BigEndian.Uint32(b[36:40]),
	}
	for off := MeterStatsLen; off < l; off += MeterBandStatsLen {
		s.BandStats = append(s.BandStats, MeterBandStats{
			PacketBandCount: binary.BigEndian.Uint64(b[off : off+8]),
			ByteBandCount:   binary.BigEndian.Uint64(b[off+8 : off+16]),
		})
	}
	return l, nil
}

// MarshalMeterConfigs concatenates entries for a multipart reply body.
func MarshalMeterConfigs(cs []MeterConfig) []byte {
	n := 0
	for _, c := range cs {
		n += c.size()
	}
	b := make([]byte, n)
	off := 0
	for _, c := range cs {
		c.put(b[off:])
		off += c.size()
	}
	return b
}

// UnmarshalMeterConfigs splits a multipart reply body into entries.
func UnmarshalMeterConfigs(b []byte) ([]MeterConfig, error) {
	var out []MeterConfig
	for len(b) > 0 {
		var c MeterConfig
		n, err := c.unmarshal(b)
		if err != nil {
			return nil, errors.Wrapf(err, "entry %d", len(out))
		}
		out = append(out, c)
		b = b[n:]
	}
	return out, nil
}

func MarshalMeterStats(ss []MeterStats) []byte {
	n := 0
	for _, s := range ss {
		n += s.size()
	}
	b := make([]byte, n)
	off := 0
	for _, s := range ss {
		s.put(b[off:])
		off += s.size()
	}
	return b
}

func UnmarshalMeterStats(b []byte) ([]MeterStats, error) {
	var out []MeterStats
	for len(b) > 0 {
		var s MeterStats
		n, err := s.unmarshal(b)
		if err != nil {
			return nil, errors.Wrapf(err, "entry %d", len(out))
		}
		out = append(out, s)
		b = b[n:]
	}
	return out, nil
}

// MeterFeatures is the body of an OFPMP13_METER_FEATURES reply.
type MeterFeatures struct {
	MaxMeter     uint32
	BandTypes    uint32
	Capabilities uint32
	MaxBands     uint8
	MaxColor     uint8
}

func (f MeterFeatures) MarshalBinary() ([]byte, error) {
	b := make([]byte, MeterFeaturesLen)
	binary.BigEndian.PutUint32(b[0:4], f.MaxMeter)
	binary.BigEndian.PutUint32(b[4:8], f.BandTypes)
	binary.BigEndian.PutUint32(b[8:12], f.Capabilities)
	b[12] = f.MaxBands
	b[13] = f.MaxColor
	return b, nil
}

func (f *MeterFeatures) UnmarshalBinary(b []byte) error {
	if len(b) < MeterFeaturesLen {
		return errors.Wrap(ErrShortBuffer, "meter features")
	}
	*f = MeterFeatures{
		MaxMeter:     binary.BigEndian.Uint32(b[0:4]),
		BandTypes:    binary.BigEndian.Uint32(b[4:8]),
		Capabilities: binary.BigEndian.Uint32(b[8:12]),
		MaxBands:     b[12],
		MaxColor:     b[13],
	}
	return nil
}
