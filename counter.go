// Package scount implements a family of scalable shared counters: drop-in
// replacements for a single hardware fetch-and-add that distribute
// contention across auxiliary structures so aggregate throughput scales
// with thread count instead of collapsing onto one cache line.
package scount

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Counter is the common contract every counter variant in this package
// satisfies. FetchAdd is the only mutating operation; it is linearisable
// and returns the pre-image of the range [v, v+delta) it reserved. Store
// is only defined against a quiescent counter; racing it against
// concurrent FetchAdd calls is undefined, same as the original.
//
// RootAccess and MaxAccess are diagnostics the benchmark harness reads
// after a run: how many times the root atomic was actually touched, and
// the maximum touch count observed on any single auxiliary node. A
// counter variant with no useful notion of either (PlainCounter) reports
// its own FetchAdd count for both.
type Counter interface {
	FetchAdd(delta uint64, tid int) uint64
	Load() uint64
	Store(value uint64)
	CompareAndSwap(old, new uint64) bool
	RootAccess() uint64
	MaxAccess() uint64
}

// PlainCounter is a single hardware atomic on its own cache line, padded
// on both sides to eliminate false sharing with whatever else lives
// nearby. It is both the baseline variant and the root underneath
// StumpCounter and CombiningFunnelCounter.
type PlainCounter struct {
	_       cpu.CacheLinePad
	val     atomic.Uint64
	_       cpu.CacheLinePad
	touches atomic.Uint64
}

// NewPlainCounter returns a PlainCounter initialised to start.
func NewPlainCounter(start uint64) *PlainCounter {
	c := &PlainCounter{}
	c.val.Store(start)
	return c
}

func (c *PlainCounter) FetchAdd(delta uint64, tid int) uint64 {
	c.touches.Add(1)
	return c.val.Add(delta) - delta
}

func (c *PlainCounter) Load() uint64 {
	return c.val.Load()
}

func (c *PlainCounter) Store(value uint64) {
	c.val.Store(value)
}

func (c *PlainCounter) CompareAndSwap(old, new uint64) bool {
	return c.val.CompareAndSwap(old, new)
}

// RootAccess returns the number of times FetchAdd touched the atomic.
// For a plain counter that is every call, by definition.
func (c *PlainCounter) RootAccess() uint64 {
	return c.touches.Load()
}

// MaxAccess equals RootAccess: there is no auxiliary structure to have a
// higher touch count than the root itself.
func (c *PlainCounter) MaxAccess() uint64 {
	return c.touches.Load()
}
