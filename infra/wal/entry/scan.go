package entry

import (
	"encoding/binary"
	"io"
	"os"
)

// segmentBounds returns the first and last sequence in a segment without
// decoding payloads. Empty segments report zeros.
func segmentBounds(path string) (first, last uint64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	header := make([]byte, headerLen)
	for {
		if _, err := io.ReadFull(f, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return first, last, nil
			}
			return first, last, err
		}

		seq := binary.BigEndian.Uint64(header[1:9])
		if first == 0 {
			first = seq
		}
		if seq > last {
			last = seq
		}

		payloadLen := binary.BigEndian.Uint32(header[17:21])
		if _, err := f.Seek(int64(payloadLen)+crcLen, io.SeekCurrent); err != nil {
			return first, last, err
		}
	}
}
