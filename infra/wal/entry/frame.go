package entry

import (
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/cockroachdb/errors"
)

// Frame:
// [type:1][seq:8][time:8][len:4][payload][crc:4]
const (
	headerLen = 1 + 8 + 8 + 4
	crcLen    = 4
)

const maxRecordLen = 16 << 20

var (
	ErrCorrupt  = errors.New("wal: corrupt record")
	ErrSequence = errors.New("wal: non-monotonic sequence")
	ErrTooLarge = errors.New("wal: record too large")
)

func encode(r *Record) ([]byte, error) {
	if len(r.Data) > maxRecordLen {
		return nil, errors.Wrapf(ErrTooLarge, "%d bytes", len(r.Data))
	}
	payloadLen := uint32(len(r.Data))
	buf := make([]byte, headerLen+int(payloadLen)+crcLen)

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerLen:], r.Data)

	sum := crc32.ChecksumIEEE(buf[:headerLen+int(payloadLen)])
	binary.BigEndian.PutUint32(buf[headerLen+int(payloadLen):], sum)
	return buf, nil
}

// readRecord returns io.EOF at a clean end of segment and
// io.ErrUnexpectedEOF when the segment ends inside a frame.
func readRecord(r io.Reader) (*Record, error) {
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	l := binary.BigEndian.Uint32(header[17:21])
	if l > maxRecordLen {
		return nil, errors.Wrapf(ErrCorrupt, "length %d", l)
	}
	data := make([]byte, l+crcLen)
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	payload := data[:l]
	h := crc32.NewIEEE()
	h.Write(header)
	h.Write(payload)
	if h.Sum32() != binary.BigEndian.Uint32(data[l:]) {
		return nil, errors.Wrapf(ErrCorrupt, "crc mismatch at seq %d", binary.BigEndian.Uint64(header[1:9]))
	}

	return &Record{
		Type: RecordType(header[0]),
		Seq:  binary.BigEndian.Uint64(header[1:9]),
		Time: int64(binary.BigEndian.Uint64(header[9:17])),
		Data: payload,
	}, nil
}
