package ofp13

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

const (
	TableStatsLen    = 24
	TableFeaturesLen = 64
)

// TableStats is one entry of an OFPMP13_TABLE reply.
type TableStats struct {
	TableID      uint8
	ActiveCount  uint32
	LookupCount  uint64
	MatchedCount uint64
}

func (s TableStats) MarshalBinary() ([]byte, error) {
	b := make([]byte, TableStatsLen)
	b[0] = s.TableID
	binary.BigEndian.PutUint32(b[4:8], s.ActiveCount)
	binary.BigEndian.PutUint64(b[8:16], s.LookupCount)
	binary.BigEndian.PutUint64(b[16:24], s.MatchedCount)
	return b, nil
}

func (s *TableStats) UnmarshalBinary(b []byte) error {
	if len(b) < TableStatsLen {
		return errors.Wrap(ErrShortBuffer, "table stats")
	}
	*s = TableStats{
		TableID:      b[0],
		ActiveCount:  binary.BigEndian.Uint32(b[4:8]),
		LookupCount:  binary.BigEndian.Uint64(b[8:16]),
		MatchedCount: binary.BigEndian.Uint64(b[16:24]),
	}
	return nil
}

// TableFeatureProp is one property TLV. Data excludes the four byte
// header and the trailing alignment.
type TableFeatureProp struct {
	Type uint16
	Data []byte
}

func (p TableFeatureProp) size() int { return pad8(4 + len(p.Data)) }

// TableFeatures is one entry of an OFPMP13_TABLE_FEATURES request or
// reply.
type TableFeatures struct {
	TableID       uint8
	Command       uint8
	Name          string
	MetadataMatch uint64
	MetadataWrite uint64
	Capabilities  uint32
	MaxEntries    uint32
	Properties    []TableFeatureProp
}

func (f TableFeatures) size() int {
	n := TableFeaturesLen
	for _, p := range f.Properties {
		n += p.size()
	}
	return n
}

func (f TableFeatures) MarshalBinary() ([]byte, error) {
	if len(f.Name) >= OFP_MAX_TABLE_NAME_LEN {
		return nil, errors.Newf("ofp13: table name %q longer than %d bytes", f.Name, OFP_MAX_TABLE_NAME_LEN-1)
	}
	n := f.size()
	if n > 0xffff {
		return nil, errors.Wrapf(ErrBadLength, "table features len %d", n)
	}
	b := make([]byte, n)
	binary.BigEndian.PutUint16(b[0:2], uint16(n))
	b[2] = f.TableID
	b[3] = f.Command
	copy(b[8:40], f.Name)
	binary.BigEndian.PutUint64(b[40:48], f.MetadataMatch)
	binary.BigEndian.PutUint64(b[48:56], f.MetadataWrite)
	binary.BigEndian.PutUint32(b[56:60], f.Capabilities)
	binary.BigEndian.PutUint32(b[60:64], f.MaxEntries)

	off := TableFeaturesLen
	for _, p := range f.Properties {
		binary.BigEndian.PutUint16(b[off:off+2], p.Type)
		binary.BigEndian.PutUint16(b[off+2:off+4], uint16(4+len(p.Data)))
		copy(b[off+4:], p.Data)
		off += p.size()
	}
	return b, nil
}

func (f *TableFeatures) UnmarshalBinary(b []byte) error {
	if len(b) < TableFeaturesLen {
		return errors.Wrap(ErrShortBuffer, "table features")
	}
	l := int(binary.BigEndian.Uint16(b[0:2]))
	if l < TableFeaturesLen || l > len(b) || l%8 != 0 {
		return errors.Wrapf(ErrBadLength, "table features len %d", l)
	}
	name := b[8:40]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	*f = TableFeatures{
		TableID:       b[2],
		Command:       b[3],
		Name:          string(name),
		MetadataMatch: binary.BigEndian.Uint64(b[40:48]),
		MetadataWrite: binary.BigEndian.Uint64(b[48:56]),
		Capabilities:  binary.BigEndian.Uint32(b[56:60]),
		MaxEntries:    binary.BigEndian.Uint32(b[60:64]),
	}

	props := b[TableFeaturesLen:l]
	for len(props) > 0 {
		if len(props) < 4 {
			return errors.Wrap(ErrShortBuffer, "table feature property")
		}
		pl := int(binary.BigEndian.Uint16(props[2:4]))
		if pl < 4 || pad8(pl) > len(props) {
			return errors.Wrapf(ErrBadLength, "table feature property len %d", pl)
		}
		f.Properties = append(f.Properties, TableFeatureProp{
			Type: binary.BigEndian.Uint16(props[0:2]),
			Data: append([]byte(nil), props[4:pl]...),
		})
		props = props[pad8(pl):]
	}
	return nil
}

// MissingRequired lists the required property types that do not appear
// in f.
func (f TableFeatures) MissingRequired() []uint16 {
	var seen uint32
	for _, p := range f.Properties {
		if p.Type < 32 {
			seen |= 1 << p.Type
		}
	}
	var out []uint16
	for t := uint16(0); t < 32; t++ {
		if OFPTFPT13_REQUIRED&(1<<t) != 0 && seen&(1<<t) == 0 {
			out = append(out, t)
		}
	}
	return out
}
