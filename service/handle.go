package service

import (
	"bytes"

	"github.com/cockroachdb/errors"

	"switchd/domain/meter"
	"switchd/infra/rcu"
	"switchd/openflow/ofp13"
)

// ErrMalformed is returned for input that is not an OpenFlow message at
// all. Messages that parse but are rejected get an OFPT_ERROR reply
// instead.
var ErrMalformed = errors.New("service: malformed message")

// Handle processes one OpenFlow 1.3 message and returns the reply to
// send, which is nil for messages that have none. A multipart reply too
// large for one message comes back as several framed messages back to
// back; ofp13.SplitMessages separates them.
func (s *MeterService) Handle(msg []byte) ([]byte, error) {
	h, body, err := ofp13.ParseMessage(msg)
	if err != nil {
		if errors.Is(err, ofp13.ErrBadVersion) {
			return errorReply(h.Xid, ofp13.OFPET_BAD_REQUEST, ofp13.OFPBRC_BAD_VERSION, msg), nil
		}
		return nil, errors.Mark(err, ErrMalformed)
	}

	t := s.lock()
	defer s.unlock()

	switch h.Type {
	case ofp13.OFPT_ECHO_REQUEST:
		return ofp13.NewMessage(ofp13.OFPT_ECHO_REPLY, h.Xid, body)

	case ofp13.OFPT_BARRIER_REQUEST:
		t.Barrier()
		return ofp13.NewMessage(ofp13.OFPT_BARRIER_REPLY, h.Xid, nil)

	case ofp13.OFPT_METER_MOD:
		var mod ofp13.MeterMod
		if err := mod.UnmarshalBinary(body); err != nil {
			return errorReply(h.Xid, ofp13.OFPET_BAD_REQUEST, ofp13.OFPBRC_BAD_LEN, msg), nil
		}
		_, _, err := s.applyLocked(t, mod)
		if code, ok := meter.CodeOf(err); ok {
			return errorReply(h.Xid, ofp13.OFPET_METER_MOD_FAILED, code, msg), nil
		}
		return nil, err

	case ofp13.OFPT_SET_ASYNC:
		var c ofp13.AsyncConfig
		if err := c.UnmarshalBinary(body); err != nil {
			return errorReply(h.Xid, ofp13.OFPET_BAD_REQUEST, ofp13.OFPBRC_BAD_LEN, msg), nil
		}
		return nil, s.setAsyncLocked(c)

	case ofp13.OFPT_GET_ASYNC_REQUEST:
		b, _ := s.async.MarshalBinary()
		return ofp13.NewMessage(ofp13.OFPT_GET_ASYNC_REPLY, h.Xid, b)

	case ofp13.OFPT_MULTIPART_REQUEST:
		return s.multipart(t, h, body, msg)
	}
	return errorReply(h.Xid, ofp13.OFPET_BAD_REQUEST, ofp13.OFPBRC_BAD_TYPE, msg), nil
}

func (s *MeterService) multipart(t *rcu.Thread, h ofp13.Header, body, msg []byte) ([]byte, error) {
	var req ofp13.Multipart
	if err := req.UnmarshalBinary(body); err != nil {
		return errorReply(h.Xid, ofp13.OFPET_BAD_REQUEST, ofp13.OFPBRC_BAD_LEN, msg), nil
	}

	var (
		replies [][]byte
		err     error
	)
	switch req.Type {
	case ofp13.OFPMP13_METER, ofp13.OFPMP13_METER_CONFIG:
		var mr ofp13.MeterMultipartRequest
		if err := mr.UnmarshalBinary(req.Body); err != nil {
			return errorReply(h.Xid, ofp13.OFPET_BAD_REQUEST, ofp13.OFPBRC_BAD_LEN, msg), nil
		}
		if req.Type == ofp13.OFPMP13_METER {
			replies, err = ofp13.MeterStatsReplies(h.Xid, s.table.Stats(t, mr.MeterID))
		} else {
			replies, err = ofp13.MeterConfigReplies(h.Xid, s.table.Configs(t, mr.MeterID))
		}

	case ofp13.OFPMP13_METER_FEATURES:
		out, _ := s.table.Features().MarshalBinary()
		reply, _ := ofp13.Multipart{Type: req.Type, Body: out}.MarshalBinary()
		var m []byte
		m, err = ofp13.NewMessage(ofp13.OFPT_MULTIPART_REPLY, h.Xid, reply)
		replies = [][]byte{m}

	default:
		return errorReply(h.Xid, ofp13.OFPET_BAD_REQUEST, ofp13.OFPBRC_BAD_MULTIPART, msg), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "multipart reply")
	}
	return bytes.Join(replies, nil), nil
}

// errorReply echoes at most the first 64 bytes of the offending message.
func errorReply(xid uint32, typ, code uint16, msg []byte) []byte {
	if len(msg) > 64 {
		msg = msg[:64]
	}
	b, _ := ofp13.ErrorMsg{Type: typ, Code: code, Data: msg}.MarshalBinary()
	// fits: at most 8 + 4 + 64 bytes
	reply, _ := ofp13.NewMessage(ofp13.OFPT_ERROR, xid, b)
	return reply
}
