package memory

import "testing"

type item struct{ id int }

func TestRetireRingBasic(t *testing.T) {
	r := NewRetireRing[*item](4)
	o1 := &item{id: 1}
	o2 := &item{id: 2}

	if !r.Enqueue(o1) || !r.Enqueue(o2) {
		t.Fatal("enqueue failed unexpectedly")
	}
	if v, ok := r.Peek(); !ok || v != o1 {
		t.Error("expected peek to return o1")
	}
	if v, _ := r.Dequeue(); v != o1 {
		t.Error("expected first dequeue to be o1")
	}
	if v, _ := r.Dequeue(); v != o2 {
		t.Error("expected second dequeue to be o2")
	}
	if _, ok := r.Dequeue(); ok {
		t.Error("expected empty ring to report !ok")
	}
}

func TestRetireRingFull(t *testing.T) {
	r := NewRetireRing[int](2)
	if !r.Enqueue(1) || !r.Enqueue(2) {
		t.Fatal("enqueue failed unexpectedly")
	}
	if r.Enqueue(3) {
		t.Fatal("expected enqueue on full ring to fail")
	}
	if !r.IsFull() || r.Len() != 2 || r.Cap() != 2 {
		t.Fatalf("unexpected ring state len=%d cap=%d", r.Len(), r.Cap())
	}
	r.Dequeue()
	if !r.Enqueue(3) {
		t.Fatal("expected enqueue after dequeue to succeed")
	}
	for _, want := range []int{2, 3} {
		if v, _ := r.Dequeue(); v != want {
			t.Fatalf("expected %d, got %d", want, v)
		}
	}
	if !r.IsEmpty() {
		t.Fatal("expected empty ring")
	}
}

func TestRetireRingRejectsBadSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non power-of-two size")
		}
	}()
	NewRetireRing[int](3)
}
