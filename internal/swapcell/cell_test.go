package swapcell

import (
	"sync"
	"testing"
)

func TestCellLoadBeforeStore(t *testing.T) {
	var c Cell[int]
	if got := c.Load(); got != nil {
		t.Errorf("expected nil before any Store, got %v", got)
	}
}

func TestCellStoreLoad(t *testing.T) {
	var c Cell[int]
	v := 42
	c.Store(&v)

	got := c.Load()
	if got == nil || *got != 42 {
		t.Fatalf("expected 42, got %v", got)
	}
}

func TestCellCompareAndSwap(t *testing.T) {
	var c Cell[int]
	a, b := 1, 2
	c.Store(&a)

	if !c.CompareAndSwap(&a, &b) {
		t.Fatal("expected CAS against current value to succeed")
	}
	if got := c.Load(); got != &b {
		t.Fatalf("expected pointer to b, got %v", got)
	}

	stale := 3
	if c.CompareAndSwap(&a, &stale) {
		t.Fatal("expected CAS against stale value to fail")
	}
}

// TestCellConcurrentAccess exercises the "a reader never observes a
// partially constructed buffer" invariant (spec §4.4): a writer
// continuously publishes fully-built slices while readers load and sum
// them. Run with -race to catch data races over the slice contents.
func TestCellConcurrentAccess(t *testing.T) {
	var c Cell[[4]int]
	zero := [4]int{}
	c.Store(&zero)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for n := 1; n <= 1000; n++ {
			v := [4]int{n, n, n, n}
			c.Store(&v)
		}
		close(stop)
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				v := c.Load()
				if v == nil {
					continue
				}
				first := v[0]
				for _, x := range v {
					if x != first {
						t.Errorf("torn read: %v", v)
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}
