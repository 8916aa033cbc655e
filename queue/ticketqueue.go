// Package queue provides a bounded MPMC ring buffer whose producer-side
// ticket numbers come from any scount.Counter, rather than a private
// atomic field. It exists to give the counters in this module a
// realistic consumer: something that needs a scalable fetch-and-add and
// nothing else from its counter.
package queue

import (
	"sync/atomic"

	"scount"
)

type ticketSlot[T any] struct {
	sequence atomic.Uint64
	value    T
}

// TicketQueue is a bounded multi-producer multi-consumer ring buffer,
// Vyukov's bounded-queue design with one twist: the producer-side
// ticket counter is an injected scount.Counter, so swapping in a
// StumpCounter or a CombiningFunnelCounter changes how enqueue tickets
// are assigned without touching the ring buffer logic at all.
type TicketQueue[T any] struct {
	mask  uint64
	slots []ticketSlot[T]
	tail  scount.Counter
	head  atomic.Uint64
}

// NewTicketQueue builds a TicketQueue of the given capacity (rounded up
// to the next power of two), drawing enqueue tickets from tail.
func NewTicketQueue[T any](capacity uint64, tail scount.Counter) *TicketQueue[T] {
	cap := nextPowerOfTwo(capacity)
	q := &TicketQueue[T]{
		mask:  cap - 1,
		slots: make([]ticketSlot[T], cap),
		tail:  tail,
	}
	for i := range q.slots {
		q.slots[i].sequence.Store(uint64(i))
	}
	return q
}

func nextPowerOfTwo(n uint64) uint64 {
	if n < 2 {
		return 2
	}
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// Enqueue reserves the next ticket from the shared tail counter on behalf
// of tid, then spins until
// the corresponding slot has cycled back around to empty before writing
// value into it.
func (q *TicketQueue[T]) Enqueue(value T, tid int) {
	ticket := q.tail.FetchAdd(1, tid)
	slot := &q.slots[ticket&q.mask]
	for slot.sequence.Load() != ticket {
		// a consumer somewhere in the ring hasn't freed this slot's
		// previous occupant yet
	}
	slot.value = value
	slot.sequence.Store(ticket + 1)
}

// Dequeue claims the next head position and spins until a producer has
// published into that slot, then clears it for the next lap.
func (q *TicketQueue[T]) Dequeue() T {
	pos := q.head.Add(1) - 1
	slot := &q.slots[pos&q.mask]
	for slot.sequence.Load() != pos+1 {
		// a producer holding this ticket hasn't written yet
	}
	value := slot.value
	slot.sequence.Store(pos + q.mask + 1)
	return value
}

// Len reports how many tickets have been issued and not yet dequeued.
// Racy by nature on a concurrent queue; useful only as a diagnostic.
func (q *TicketQueue[T]) Len() uint64 {
	return q.tail.Load() - q.head.Load()
}

// Cap returns the fixed slot count backing the queue.
func (q *TicketQueue[T]) Cap() uint64 {
	return q.mask + 1
}
