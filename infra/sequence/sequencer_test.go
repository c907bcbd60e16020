package sequence

import (
	"sync"
	"testing"
)

func TestSequencerConcurrentUnique(t *testing.T) {
	s := New(10)
	const workers, per = 8, 1000

	var mu sync.Mutex
	seen := make(map[uint64]bool, workers*per)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]uint64, 0, per)
			for i := 0; i < per; i++ {
				local = append(local, s.Next())
			}
			mu.Lock()
			for _, v := range local {
				if seen[v] {
					t.Errorf("duplicate sequence %d", v)
				}
				seen[v] = true
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if s.Current() != 10+workers*per {
		t.Fatalf("current = %d", s.Current())
	}
	if seen[10] || !seen[11] {
		t.Fatal("first issued sequence must be start+1")
	}
}

func TestObserve(t *testing.T) {
	s := New(5)
	s.Observe(3)
	if s.Current() != 5 {
		t.Fatal("Observe must not move backwards")
	}
	s.Observe(9)
	if s.Next() != 10 {
		t.Fatal("Observe must move forward")
	}
}
