package scount

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// RefreshSteps is how many retirements a thread performs, staggered by
// its tid, before it attempts to advance the global epoch. Mirrors the
// original EpochBasedReclamation<T>::REFRESH_STEPS.
const RefreshSteps = 16

// noAnnouncement marks a thread as outside any critical section.
const noAnnouncement int64 = -1

// threadSpace is the per-thread bookkeeping for one EBR participant:
// its announced epoch, its two retire bags, and the epoch it last saw.
//
// padded to its own cache line on both sides of the announcement field,
// since every other thread's enterCritical/exitCritical hammers it.
type threadSpace[T any] struct {
	_            cpu.CacheLinePad
	announcement atomic.Int64
	_            cpu.CacheLinePad

	epoch  int64
	count  int
	oldBag []*T
	curBag []*T
}

// EBR is a generic epoch-based reclamation service: pointers retired in
// epoch e are freed once every participant's announcement has moved past
// e (or gone quiescent). It is owned by whichever counter needs it,
// passed in explicitly at construction, rather than kept as a process
// singleton, per the "global mutable state" design note: a shared
// static EBR would race two differently-sized counters initializing it.
type EBR[T any] struct {
	threadCount int
	tls         []threadSpace[T]
	_           cpu.CacheLinePad
	epoch       atomic.Int64
	_           cpu.CacheLinePad
}

// NewEBR allocates an EBR service sized for threadCount participants,
// numbered [0, threadCount).
func NewEBR[T any](threadCount int) *EBR[T] {
	e := &EBR[T]{
		threadCount: threadCount,
		tls:         make([]threadSpace[T], threadCount),
	}
	for i := range e.tls {
		e.tls[i].announcement.Store(noAnnouncement)
		e.tls[i].oldBag = make([]*T, 0, 512)
		e.tls[i].curBag = make([]*T, 0, 512)
	}
	return e
}

// updateGlobalEpoch scans every participant's announcement; if none lag
// behind the current epoch, it CASes the epoch forward by one. Returns
// the new epoch on success, -1 if another thread was still in an older
// epoch or lost the race.
func (e *EBR[T]) updateGlobalEpoch() int64 {
	current := e.epoch.Load()
	for i := 0; i < e.threadCount; i++ {
		announced := e.tls[i].announcement.Load()
		if announced != noAnnouncement && announced < current {
			return -1
		}
	}
	if e.epoch.CompareAndSwap(current, current+1) {
		return current + 1
	}
	return -1
}

// EnterCritical publishes the current global epoch into tid's
// announcement slot. A thread must pair this with ExitCritical around
// any traversal that dereferences pointers this EBR instance retires.
func (e *EBR[T]) EnterCritical(tid int) {
	epoch := e.epoch.Load()
	e.tls[tid].announcement.Store(epoch)
}

// ExitCritical clears tid's announcement, letting reclamation proceed
// past the epoch it had been pinned to.
func (e *EBR[T]) ExitCritical(tid int) {
	e.tls[tid].announcement.Store(noAnnouncement)
}

// NewNode allocates a fresh T for tid to publish. Reclamation failure is
// not possible: worst case a slow announcement stalls recycling for
// everyone, it never corrupts state.
func (e *EBR[T]) NewNode(tid int) *T {
	return new(T)
}

// Retire appends p to tid's current retire bag. Every RefreshSteps
// retirements per thread, staggered by tid so threads don't all attempt
// the epoch advance on the same retirement, the thread tries to push the
// global epoch forward. Whenever tid observes the global epoch has moved
// past the epoch it last recorded, its old bag (already one full epoch
// old) is dropped, letting the garbage collector reclaim it, before the
// bags are swapped.
func (e *EBR[T]) Retire(p *T, tid int) {
	t := &e.tls[tid]

	if t.epoch < e.epoch.Load() {
		t.oldBag = t.oldBag[:0]
		t.oldBag, t.curBag = t.curBag, t.oldBag
		t.epoch = e.epoch.Load()
	}

	t.count++
	if t.count%RefreshSteps == tid%RefreshSteps {
		e.updateGlobalEpoch()
	}

	t.curBag = append(t.curBag, p)
}
