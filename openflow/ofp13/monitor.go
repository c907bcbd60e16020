package ofp13

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

const (
	FlowMonitorRequestLen = 16
	ExperimenterHeaderLen = 16
	FlowUpdateHeaderLen   = 4
	FlowUpdateFullLen     = 24
	FlowUpdateAbbrevLen   = 8
)

// FlowMonitorRequest is onf_flow_monitor_request followed by its match.
type FlowMonitorRequest struct {
	ID      uint32
	Flags   uint16
	OutPort uint32
	TableID uint8
	Match   []byte
}

func (r FlowMonitorRequest) MarshalBinary() ([]byte, error) {
	b := make([]byte, FlowMonitorRequestLen+pad8(len(r.Match)))
	binary.BigEndian.PutUint32(b[0:4], r.ID)
	binary.BigEndian.PutUint16(b[4:6], r.Flags)
	binary.BigEndian.PutUint16(b[6:8], uint16(len(r.Match)))
	binary.BigEndian.PutUint32(b[8:12], r.OutPort)
	b[12] = r.TableID
	copy(b[FlowMonitorRequestLen:], r.Match)
	return b, nil
}

func (r *FlowMonitorRequest) UnmarshalBinary(b []byte) error {
	if len(b) < FlowMonitorRequestLen {
		return errors.Wrap(ErrShortBuffer, "flow monitor request")
	}
	ml := int(binary.BigEndian.Uint16(b[6:8]))
	if FlowMonitorRequestLen+ml > len(b) {
		return errors.Wrapf(ErrBadLength, "flow monitor match len %d", ml)
	}
	*r = FlowMonitorRequest{
		ID:      binary.BigEndian.Uint32(b[0:4]),
		Flags:   binary.BigEndian.Uint16(b[4:6]),
		OutPort: binary.BigEndian.Uint32(b[8:12]),
		TableID: b[12],
		Match:   append([]byte(nil), b[FlowMonitorRequestLen:FlowMonitorRequestLen+ml]...),
	}
	return nil
}

// ExperimenterHeader is onf_experimenter_header.
type ExperimenterHeader struct {
	Header
	Vendor  uint32
	Subtype uint32
}

func (e ExperimenterHeader) MarshalBinary() ([]byte, error) {
	b := make([]byte, ExperimenterHeaderLen)
	e.Header.put(b)
	binary.BigEndian.PutUint32(b[8:12], e.Vendor)
	binary.BigEndian.PutUint32(b[12:16], e.Subtype)
	return b, nil
}

func (e *ExperimenterHeader) UnmarshalBinary(b []byte) error {
	if len(b) < ExperimenterHeaderLen {
		return errors.Wrap(ErrShortBuffer, "experimenter header")
	}
	if err := e.Header.UnmarshalBinary(b); err != nil {
		return err
	}
	e.Vendor = binary.BigEndian.Uint32(b[8:12])
	e.Subtype = binary.BigEndian.Uint32(b[12:16])
	return nil
}

// FlowUpdateHeader is the part shared by every flow-monitor update.
type FlowUpdateHeader struct {
	Length uint16
	Event  uint16
}

func (h *FlowUpdateHeader) UnmarshalBinary(b []byte) error {
	if len(b) < FlowUpdateHeaderLen {
		return errors.Wrap(ErrShortBuffer, "flow update header")
	}
	h.Length = binary.BigEndian.Uint16(b[0:2])
	h.Event = binary.BigEndian.Uint16(b[2:4])
	return nil
}

// FlowUpdateFull reports an added, deleted or modified flow.
type FlowUpdateFull struct {
	Event        uint16
	Reason       uint16
	Priority     uint16
	IdleTimeout  uint16
	HardTimeout  uint16
	TableID      uint8
	Cookie       uint64
	Match        []byte
	Instructions []byte
}

func (u FlowUpdateFull) MarshalBinary() ([]byte, error) {
	if len(u.Instructions)%8 != 0 {
		return nil, errors.Wrapf(ErrBadLength, "instructions len %d", len(u.Instructions))
	}
	mpad := pad8(len(u.Match))
	n := FlowUpdateFullLen + mpad + len(u.Instructions)
	b := make([]byte, n)
	binary.BigEndian.PutUint16(b[0:2], uint16(n))
	binary.BigEndian.PutUint16(b[2:4], u.Event)
	binary.BigEndian.PutUint16(b[4:6], u.Reason)
	binary.BigEndian.PutUint16(b[6:8], u.Priority)
	binary.BigEndian.PutUint16(b[8:10], u.IdleTimeout)
	binary.BigEndian.PutUint16(b[10:12], u.HardTimeout)
	binary.BigEndian.PutUint16(b[12:14], uint16(len(u.Match)))
	b[14] = u.TableID
	binary.BigEndian.PutUint64(b[16:24], u.Cookie)
	copy(b[FlowUpdateFullLen:], u.Match)
	copy(b[FlowUpdateFullLen+mpad:], u.Instructions)
	return b, nil
}

func (u *FlowUpdateFull) UnmarshalBinary(b []byte) error {
	if len(b) < FlowUpdateFullLen {
		return errors.Wrap(ErrShortBuffer, "flow update full")
	}
	l := int(binary.BigEndian.Uint16(b[0:2]))
	ml := int(binary.BigEndian.Uint16(b[12:14]))
	if l > len(b) || FlowUpdateFullLen+pad8(ml) > l {
		return errors.Wrapf(ErrBadLength, "flow update len %d match %d", l, ml)
	}
	ev := binary.BigEndian.Uint16(b[2:4])
	if ev == ONFFME_ABBREV {
		return errors.Wrap(ErrBadType, "abbreviated update")
	}
	*u = FlowUpdateFull{
		Event:        ev,
		Reason:       binary.BigEndian.Uint16(b[4:6]),
		Priority:     binary.BigEndian.Uint16(b[6:8]),
		IdleTimeout:  binary.BigEndian.Uint16(b[8:10]),
		HardTimeout:  binary.BigEndian.Uint16(b[10:12]),
		TableID:      b[14],
		Cookie:       binary.BigEndian.Uint64(b[16:24]),
		Match:        append([]byte(nil), b[FlowUpdateFullLen:FlowUpdateFullLen+ml]...),
		Instructions: append([]byte(nil), b[FlowUpdateFullLen+pad8(ml):l]...),
	}
	return nil
}

// FlowUpdateAbbrev stands in for a full update caused by the monitoring
// controller's own flow_mod.
type FlowUpdateAbbrev struct {
	Xid uint32
}

func (u FlowUpdateAbbrev) MarshalBinary() ([]byte, error) {
	b := make([]byte, FlowUpdateAbbrevLen)
	binary.BigEndian.PutUint16(b[0:2], FlowUpdateAbbrevLen)
	binary.BigEndian.PutUint16(b[2:4], ONFFME_ABBREV)
	binary.BigEndian.PutUint32(b[4:8], u.Xid)
	return b, nil
}

func (u *FlowUpdateAbbrev) UnmarshalBinary(b []byte) error {
	var h FlowUpdateHeader
	if err := h.UnmarshalBinary(b); err != nil {
		return err
	}
	if h.Event != ONFFME_ABBREV {
		return errors.Wrapf(ErrBadType, "event %d", h.Event)
	}
	if h.Length != FlowUpdateAbbrevLen || len(b) < FlowUpdateAbbrevLen {
		return errors.Wrapf(ErrBadLength, "abbrev len %d", h.Length)
	}
	u.Xid = binary.BigEndian.Uint32(b[4:8])
	return nil
}
