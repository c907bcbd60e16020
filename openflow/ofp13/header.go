package ofp13

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

var (
	ErrShortBuffer = errors.New("ofp13: buffer too short")
	ErrBadLength   = errors.New("ofp13: bad length field")
	ErrBadVersion  = errors.New("ofp13: unsupported version")
	ErrBadType     = errors.New("ofp13: unexpected type")
	ErrTooLarge    = errors.New("ofp13: message exceeds length field")
)

const HeaderLen = 8

// Header is ofp_header.
type Header struct {
	Version uint8
	Type    uint8
	Length  uint16
	Xid     uint32
}

func (h Header) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderLen)
	h.put(b)
	return b, nil
}

func (h Header) put(b []byte) {
	b[0] = h.Version
	b[1] = h.Type
	binary.BigEndian.PutUint16(b[2:4], h.Length)
	binary.BigEndian.PutUint32(b[4:8], h.Xid)
}

func (h *Header) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderLen {
		return errors.Wrapf(ErrShortBuffer, "header: %d bytes", len(b))
	}
	h.Version = b[0]
	h.Type = b[1]
	h.Length = binary.BigEndian.Uint16(b[2:4])
	h.Xid = binary.BigEndian.Uint32(b[4:8])
	return nil
}

// MaxMessageLen is the largest message the 16-bit length field can
// describe, header included.
const MaxMessageLen = 0xffff

// NewMessage frames body behind a version 1.3 header.
func NewMessage(typ uint8, xid uint32, body []byte) ([]byte, error) {
	if HeaderLen+len(body) > MaxMessageLen {
		return nil, errors.Wrapf(ErrTooLarge, "type %d body %d bytes", typ, len(body))
	}
	b := make([]byte, HeaderLen+len(body))
	Header{Version: Version, Type: typ, Length: uint16(len(b)), Xid: xid}.put(b)
	copy(b[HeaderLen:], body)
	return b, nil
}

// SplitMessages cuts a stream of back-to-back framed messages apart
// using each header's length field.
func SplitMessages(b []byte) ([][]byte, error) {
	var out [][]byte
	for len(b) > 0 {
		var h Header
		if err := h.UnmarshalBinary(b); err != nil {
			return nil, err
		}
		n := int(h.Length)
		if n < HeaderLen || n > len(b) {
			return nil, errors.Wrapf(ErrBadLength, "message %d: header says %d, have %d", len(out), n, len(b))
		}
		out = append(out, b[:n:n])
		b = b[n:]
	}
	return out, nil
}

// ParseMessage splits one framed message into its header and body. The
// buffer must hold exactly the number of bytes the header announces.
func ParseMessage(b []byte) (Header, []byte, error) {
	var h Header
	if err := h.UnmarshalBinary(b); err != nil {
		return h, nil, err
	}
	if h.Version != Version {
		return h, nil, errors.Wrapf(ErrBadVersion, "version %#x", h.Version)
	}
	if int(h.Length) < HeaderLen || int(h.Length) != len(b) {
		return h, nil, errors.Wrapf(ErrBadLength, "header says %d, have %d", h.Length, len(b))
	}
	return h, b[HeaderLen:], nil
}

// ErrorMsg is the body of an OFPT_ERROR message.
type ErrorMsg struct {
	Type uint16
	Code uint16
	Data []byte
}

func (e ErrorMsg) MarshalBinary() ([]byte, error) {
	b := make([]byte, 4+len(e.Data))
	binary.BigEndian.PutUint16(b[0:2], e.Type)
	binary.BigEndian.PutUint16(b[2:4], e.Code)
	copy(b[4:], e.Data)
	return b, nil
}

func (e *ErrorMsg) UnmarshalBinary(b []byte) error {
	if len(b) < 4 {
		return errors.Wrap(ErrShortBuffer, "error msg")
	}
	e.Type = binary.BigEndian.Uint16(b[0:2])
	e.Code = binary.BigEndian.Uint16(b[2:4])
	e.Data = append([]byte(nil), b[4:]...)
	return nil
}

const MultipartHeaderLen = 8

// Multipart is the common part of ofp_multipart_request and
// ofp_multipart_reply.
type Multipart struct {
	Type  uint16
	Flags uint16
	Body  []byte
}

func (m Multipart) MarshalBinary() ([]byte, error) {
	b := make([]byte, MultipartHeaderLen+len(m.Body))
	binary.BigEndian.PutUint16(b[0:2], m.Type)
	binary.BigEndian.PutUint16(b[2:4], m.Flags)
	copy(b[MultipartHeaderLen:], m.Body)
	return b, nil
}

func (m *Multipart) UnmarshalBinary(b []byte) error {
	if len(b) < MultipartHeaderLen {
		return errors.Wrap(ErrShortBuffer, "multipart")
	}
	m.Type = binary.BigEndian.Uint16(b[0:2])
	m.Flags = binary.BigEndian.Uint16(b[2:4])
	m.Body = append([]byte(nil), b[MultipartHeaderLen:]...)
	return nil
}

// MaxMultipartBody is the room for entries in one multipart reply.
const MaxMultipartBody = MaxMessageLen - HeaderLen - MultipartHeaderLen

type multipartEntry interface {
	size() int
	put(b []byte)
}

// multipartReplies frames es as OFPT_MULTIPART_REPLY messages. Entries
// never straddle two messages; every message but the last carries
// OFPMPF13_REPLY_MORE. An empty es still yields one empty reply.
func multipartReplies[E multipartEntry](xid uint32, typ uint16, es []E) ([][]byte, error) {
	var out [][]byte
	start, n := 0, 0
	emit := func(end int, flags uint16) error {
		body := make([]byte, MultipartHeaderLen+n)
		binary.BigEndian.PutUint16(body[0:2], typ)
		binary.BigEndian.PutUint16(body[2:4], flags)
		off := MultipartHeaderLen
		for _, e := range es[start:end] {
			e.put(body[off:])
			off += e.size()
		}
		msg, err := NewMessage(OFPT_MULTIPART_REPLY, xid, body)
		if err != nil {
			return err
		}
		out = append(out, msg)
		start, n = end, 0
		return nil
	}

	for i, e := range es {
		sz := e.size()
		if sz > MaxMultipartBody {
			return nil, errors.Wrapf(ErrTooLarge, "entry %d is %d bytes", i, sz)
		}
		if n+sz > MaxMultipartBody {
			if err := emit(i, OFPMPF13_REPLY_MORE); err != nil {
				return nil, err
			}
		}
		n += sz
	}
	if err := emit(len(es), 0); err != nil {
		return nil, err
	}
	return out, nil
}

// MeterStatsReplies frames ss as one or more OFPMP13_METER replies.
func MeterStatsReplies(xid uint32, ss []MeterStats) ([][]byte, error) {
	return multipartReplies(xid, OFPMP13_METER, ss)
}

// MeterConfigReplies frames cs as one or more OFPMP13_METER_CONFIG
// replies.
func MeterConfigReplies(xid uint32, cs []MeterConfig) ([][]byte, error) {
	return multipartReplies(xid, OFPMP13_METER_CONFIG, cs)
}

// pad8 rounds n up to a multiple of 8.
func pad8(n int) int { return (n + 7) &^ 7 }
