package queue

import (
	"sync"
	"testing"

	"scount"
)

func TestTicketQueueSingleThreaded(t *testing.T) {
	q := NewTicketQueue[int](4, scount.NewPlainCounter(0))

	q.Enqueue(1, 0)
	q.Enqueue(2, 0)
	if got := q.Dequeue(); got != 1 {
		t.Errorf("got %d, want 1", got)
	}
	if got := q.Dequeue(); got != 2 {
		t.Errorf("got %d, want 2", got)
	}
}

func TestTicketQueueWrapsAround(t *testing.T) {
	q := NewTicketQueue[int](2, scount.NewPlainCounter(0))
	for i := 0; i < 100; i++ {
		q.Enqueue(i, 0)
		if got := q.Dequeue(); got != i {
			t.Fatalf("iteration %d: got %d", i, got)
		}
	}
}

func TestTicketQueueConcurrent(t *testing.T) {
	const threads = 8
	const perThread = 1000

	q := NewTicketQueue[int](64, scount.NewPlainCounter(0))

	var wg sync.WaitGroup
	for tid := 0; tid < threads; tid++ {
		wg.Add(1)
		go func(tid int) {
			defer wg.Done()
			for i := 0; i < perThread; i++ {
				q.Enqueue(tid, tid)
			}
		}(tid)
	}

	seen := make([]int, threads)
	var done sync.WaitGroup
	done.Add(1)
	go func() {
		defer done.Done()
		for i := 0; i < threads*perThread; i++ {
			v := q.Dequeue()
			seen[v]++
		}
	}()

	wg.Wait()
	done.Wait()

	for tid, count := range seen {
		if count != perThread {
			t.Errorf("thread %d: saw %d items, want %d", tid, count, perThread)
		}
	}
}

func TestTicketQueueCapacityRoundsUpToPowerOfTwo(t *testing.T) {
	q := NewTicketQueue[int](5, scount.NewPlainCounter(0))
	if q.Cap() != 8 {
		t.Errorf("cap: got %d, want 8", q.Cap())
	}
}
