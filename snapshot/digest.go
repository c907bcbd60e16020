package snapshot

import (
	"crypto/sha1"
	"encoding/hex"
	"hash"

	"github.com/cockroachdb/errors"
)

const DigestLen = sha1.Size

// Digest is an incremental SHA-1.
type Digest struct {
	h hash.Hash
}

func NewDigest() *Digest {
	return &Digest{h: sha1.New()}
}

func (d *Digest) Write(p []byte) (int, error) {
	return d.h.Write(p)
}

// Sum returns the digest of everything written so far. It does not
// reset d.
func (d *Digest) Sum() [DigestLen]byte {
	var out [DigestLen]byte
	copy(out[:], d.h.Sum(nil))
	return out
}

func (d *Digest) Reset() { d.h.Reset() }

// Sum1 hashes b in one call.
func Sum1(b []byte) [DigestLen]byte {
	return sha1.Sum(b)
}

func Hex(sum [DigestLen]byte) string {
	return hex.EncodeToString(sum[:])
}

func ParseHex(s string) ([DigestLen]byte, error) {
	var out [DigestLen]byte
	if len(s) != 2*DigestLen {
		return out, errors.Newf("snapshot: digest %q has %d hex digits", s, len(s))
	}
	if _, err := hex.Decode(out[:], []byte(s)); err != nil {
		return out, errors.Wrap(err, "snapshot: digest")
	}
	return out, nil
}
