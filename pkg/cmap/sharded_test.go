package cmap

import (
	"fmt"
	"sync"
	"testing"
)

func TestNewShardedRoundsUp(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 1}, {1, 1}, {3, 4}, {16, 16}, {17, 32},
	}
	for _, tt := range tests {
		if got := len(NewSharded[string, int](tt.in).shards); got != tt.want {
			t.Errorf("NewSharded(%d) shards = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestGetSetPop(t *testing.T) {
	m := New[string, int]()
	if _, ok := m.Get("a"); ok {
		t.Fatal("Get on empty map found a value")
	}

	m.Set("a", 1)
	m.Set("a", 2)
	if v, ok := m.Get("a"); !ok || v != 2 {
		t.Fatalf("Get(a) = %d, %v, want 2, true", v, ok)
	}
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m.Len())
	}

	if v, ok := m.Pop("a"); !ok || v != 2 {
		t.Fatalf("Pop(a) = %d, %v, want 2, true", v, ok)
	}
	if _, ok := m.Pop("a"); ok {
		t.Fatal("second Pop(a) found a value")
	}
}

func TestDeleteIf(t *testing.T) {
	m := New[string, int]()
	m.Set("k", 5)

	if m.DeleteIf("k", func(v int) bool { return v > 10 }) {
		t.Fatal("DeleteIf removed an entry the predicate rejected")
	}
	if m.DeleteIf("missing", func(int) bool { return true }) {
		t.Fatal("DeleteIf reported removing a missing key")
	}
	if !m.DeleteIf("k", func(v int) bool { return v == 5 }) {
		t.Fatal("DeleteIf kept an entry the predicate accepted")
	}
	if m.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", m.Len())
	}
}

func TestSweep(t *testing.T) {
	m := NewSharded[int, int](4)
	for i := 0; i < 100; i++ {
		m.Set(i, i)
	}

	n := m.Sweep(func(_ int, v int) bool { return v%2 == 0 })
	if n != 50 {
		t.Fatalf("Sweep() = %d, want 50", n)
	}
	if m.Len() != 50 {
		t.Fatalf("Len() = %d, want 50", m.Len())
	}
	m.Range(func(k, _ int) bool {
		if k%2 == 0 {
			t.Errorf("even key %d survived Sweep", k)
		}
		return true
	})
}

func TestRangeStops(t *testing.T) {
	m := New[int, struct{}]()
	for i := 0; i < 10; i++ {
		m.Set(i, struct{}{})
	}
	seen := 0
	m.Range(func(int, struct{}) bool {
		seen++
		return seen < 3
	})
	if seen != 3 {
		t.Fatalf("Range visited %d entries after stop, want 3", seen)
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := New[string, int]()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("%d-%d", g, i)
				m.Set(key, i)
				m.Get(key)
				if i%3 == 0 {
					m.Pop(key)
				}
			}
		}(g)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			m.Sweep(func(_ string, v int) bool { return v%7 == 0 })
		}
	}()
	wg.Wait()

	m.Range(func(k string, v int) bool {
		if v%3 == 0 {
			t.Errorf("popped key %s still present", k)
		}
		return true
	})
}
