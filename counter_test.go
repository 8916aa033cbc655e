package scount

import (
	"sync"
	"testing"
)

func TestPlainCounterFetchAdd(t *testing.T) {
	c := NewPlainCounter(10)
	if got := c.FetchAdd(5, 0); got != 10 {
		t.Errorf("got %d, want 10", got)
	}
	if got := c.Load(); got != 15 {
		t.Errorf("got %d, want 15", got)
	}
}

func TestPlainCounterStoreAndCAS(t *testing.T) {
	c := NewPlainCounter(0)
	c.Store(42)
	if got := c.Load(); got != 42 {
		t.Errorf("got %d, want 42", got)
	}
	if !c.CompareAndSwap(42, 100) {
		t.Error("expected CAS to succeed")
	}
	if c.CompareAndSwap(42, 200) {
		t.Error("expected stale CAS to fail")
	}
	if got := c.Load(); got != 100 {
		t.Errorf("got %d, want 100", got)
	}
}

func TestPlainCounterRootAccessEqualsMaxAccess(t *testing.T) {
	c := NewPlainCounter(0)
	for i := 0; i < 7; i++ {
		c.FetchAdd(1, 0)
	}
	if c.RootAccess() != 7 || c.MaxAccess() != 7 {
		t.Errorf("root=%d max=%d, want both 7", c.RootAccess(), c.MaxAccess())
	}
}

func TestPlainCounterConcurrentFetchAddIsLinearisable(t *testing.T) {
	const threads = 16
	const perThread = 2000

	c := NewPlainCounter(0)
	seen := make([][]uint64, threads)

	var wg sync.WaitGroup
	for tid := 0; tid < threads; tid++ {
		wg.Add(1)
		go func(tid int) {
			defer wg.Done()
			claims := make([]uint64, 0, perThread)
			for i := 0; i < perThread; i++ {
				claims = append(claims, c.FetchAdd(1, tid))
			}
			seen[tid] = claims
		}(tid)
	}
	wg.Wait()

	total := threads * perThread
	reserved := make([]bool, total)
	for _, claims := range seen {
		for _, v := range claims {
			if v >= uint64(total) {
				t.Fatalf("claim %d out of range [0, %d)", v, total)
			}
			if reserved[v] {
				t.Fatalf("value %d claimed twice", v)
			}
			reserved[v] = true
		}
	}
	if got := c.Load(); got != uint64(total) {
		t.Errorf("final value: got %d, want %d", got, total)
	}
}
