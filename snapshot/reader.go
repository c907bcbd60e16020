package snapshot

import "switchd/infra/rcu"

// Reader marks the read-side critical section of a snapshot on an rcu
// thread that otherwise stays quiescent.
type Reader struct {
	t *rcu.Thread
}

// NewReader puts t into the quiescent state until the first Begin.
func NewReader(t *rcu.Thread) *Reader {
	t.QuiesceStart()
	return &Reader{t: t}
}

// Begin marks the start of a consistent snapshot.
func (r *Reader) Begin() {
	r.t.QuiesceEnd()
}

// End marks the end of a snapshot. Nothing read since Begin may be used
// afterwards.
func (r *Reader) End() {
	r.t.QuiesceStart()
}

func (r *Reader) Thread() *rcu.Thread {
	return r.t
}
