package ofp13

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

const AsyncConfigLen = 24

// AsyncConfig is the body of OFPT_SET_ASYNC and OFPT_GET_ASYNC_REPLY.
// Index 0 of each mask applies to the master and equal roles, index 1 to
// the slave role.
type AsyncConfig struct {
	PacketInMask    [2]uint32
	PortStatusMask  [2]uint32
	FlowRemovedMask [2]uint32
}

func (c AsyncConfig) MarshalBinary() ([]byte, error) {
	b := make([]byte, AsyncConfigLen)
	for i, v := range [...]uint32{
		c.PacketInMask[0], c.PacketInMask[1],
		c.PortStatusMask[0], c.PortStatusMask[1],
		c.FlowRemovedMask[0], c.FlowRemovedMask[1],
	} {
		binary.BigEndian.PutUint32(b[i*4:], v)
	}
	return b, nil
}

func (c *AsyncConfig) UnmarshalBinary(b []byte) error {
	if len(b) < AsyncConfigLen {
		return errors.Wrap(ErrShortBuffer, "async config")
	}
	u := func(i int) uint32 { return binary.BigEndian.Uint32(b[i*4:]) }
	c.PacketInMask = [2]uint32{u(0), u(1)}
	c.PortStatusMask = [2]uint32{u(2), u(3)}
	c.FlowRemovedMask = [2]uint32{u(4), u(5)}
	return nil
}
