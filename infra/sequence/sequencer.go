// Package sequence numbers journal records.
package sequence

import "sync/atomic"

// Sequencer hands out strictly increasing sequence numbers. Zero is
// never issued.
type Sequencer struct {
	last atomic.Uint64
}

// New starts after start: the first Next returns start+1.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last issued sequence.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

// Reset sets the last issued sequence. Only recovery uses it, before any
// writer runs.
func (s *Sequencer) Reset(v uint64) {
	s.last.Store(v)
}

// Observe moves the sequencer forward to v if it is behind.
func (s *Sequencer) Observe(v uint64) {
	for {
		cur := s.last.Load()
		if v <= cur || s.last.CompareAndSwap(cur, v) {
			return
		}
	}
}
