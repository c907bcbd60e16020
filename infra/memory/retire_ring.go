package memory

import "sync/atomic"

// RetireRing is a bounded single-producer/single-consumer FIFO.
//
// "Single" means one at a time: several goroutines may produce as long
// as something (a mutex) serializes them, and the same holds for the
// consumer side.
type RetireRing[T any] struct {
	head  atomic.Uint64
	_pad1 [56]byte
	tail  atomic.Uint64
	_pad2 [56]byte
	buf   []T
	mask  uint64
}

// NewRetireRing allocates a ring. size must be a power of two.
func NewRetireRing[T any](size uint64) *RetireRing[T] {
	if size == 0 || size&(size-1) != 0 {
		panic("memory: RetireRing size must be power of two")
	}
	return &RetireRing[T]{
		buf:  make([]T, size),
		mask: size - 1,
	}
}

// Enqueue adds v at the back; returns false if full.
func (r *RetireRing[T]) Enqueue(v T) bool {
	h := r.head.Load()
	t := r.tail.Load()
	if h-t == uint64(len(r.buf)) {
		return false
	}
	r.buf[h&r.mask] = v
	r.head.Store(h + 1)
	return true
}

// Peek returns the front element without removing it.
func (r *RetireRing[T]) Peek() (T, bool) {
	t := r.tail.Load()
	if t == r.head.Load() {
		var zero T
		return zero, false
	}
	return r.buf[t&r.mask], true
}

// Dequeue removes the front element.
func (r *RetireRing[T]) Dequeue() (T, bool) {
	var zero T
	t := r.tail.Load()
	if t == r.head.Load() {
		return zero, false
	}
	v := r.buf[t&r.mask]
	r.buf[t&r.mask] = zero
	r.tail.Store(t + 1)
	return v, true
}

// Len is a racy snapshot when producer and consumer run concurrently.
func (r *RetireRing[T]) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

func (r *RetireRing[T]) Cap() int { return len(r.buf) }

func (r *RetireRing[T]) IsFull() bool { return r.Len() == len(r.buf) }

func (r *RetireRing[T]) IsEmpty() bool { return r.head.Load() == r.tail.Load() }
