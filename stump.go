package scount

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// maxStumpNodes bounds the number of intermediate nodes a StumpCounter
// can allocate, mirroring the original's Node child[64] (max thread
// count 64*64 = 4096 under fixed fan-out).
const maxStumpNodes = 64

// stumpMappingNode is one entry in a node's mapping list: local range
// [childFrom, childTo) was mapped onto root range starting at rootFrom.
// Mapping-list entries are strictly decreasing in childFrom along prev,
// immutable once published, and retired (never mutated) the instant a
// newer entry replaces them as the head.
type stumpMappingNode struct {
	prev      *stumpMappingNode
	childFrom uint64
	childTo   uint64
	rootFrom  uint64
}

// stumpNode is one of the K intermediate nodes threads are statically
// routed to. count ticks up as threads reserve local ranges; sent ticks
// up as a batcher publishes them to the root; mappingHead is the head of
// the list recording how local ranges were mapped onto root ranges.
type stumpNode struct {
	_           cpu.CacheLinePad
	count       atomic.Uint64
	_           cpu.CacheLinePad
	sent        atomic.Uint64
	_           cpu.CacheLinePad
	mappingHead atomic.Pointer[stumpMappingNode]
}

// StumpNodeStats is a snapshot of one thread's diagnostics, surfaced
// through StumpCounter.NodeStats for the benchmark harness's
// counter_aux.csv root_access, loop_count_1 and loop_count_2 columns.
type StumpNodeStats struct {
	Touches    uint64
	LoopCount1 uint64 // spins waiting on sent to catch up (the batcher is still working)
	LoopCount2 uint64 // mapping-list nodes walked to find the covering entry
}

// StumpCounter is the Aggregating Funnel Counter: each thread is
// routed to one of K intermediate nodes at construction; one thread per
// node, whichever observes childFrom == sent, batches the concurrent
// reservations of its peers and performs a single FetchAdd on the root.
type StumpCounter struct {
	root  PlainCounter
	nodes [maxStumpNodes]stumpNode
	ebr   *EBR[stumpMappingNode]

	routing *RoutingTable
	aux     []stumpThreadStats
}

type stumpThreadStats struct {
	_          cpu.CacheLinePad
	access     [maxStumpNodes]atomic.Uint64
	rootAccess atomic.Uint64
	loop1      atomic.Uint64
	loop2      atomic.Uint64
}

// NewStumpCounter builds a StumpCounter starting at start, sized for
// threadCount threads, with threads routed to nodes by policy (fanout is
// ignored under SqrtFanout; direct is how many low-numbered threads
// bypass intermediates entirely).
func NewStumpCounter(start uint64, threadCount int, policy FanoutPolicy, fanout, direct int) *StumpCounter {
	sc := &StumpCounter{
		ebr: NewEBR[stumpMappingNode](threadCount),
		aux: make([]stumpThreadStats, threadCount),
	}
	sc.root.Store(start)
	sc.routing = BuildRoutingTable(policy, threadCount, fanout, direct)
	for i := range sc.nodes {
		sc.nodes[i].mappingHead.Store(&stumpMappingNode{})
	}
	return sc
}

// publish is the batcher path: fetch-and-add the accumulated local range
// [childFrom, childTo) onto the root, thread the new mapping entry onto
// the node's list, then release the waiters pinned on sent.
func (sc *StumpCounter) publish(node *stumpNode, childFrom, childTo uint64, tid int) uint64 {
	rootFrom := sc.root.FetchAdd(childTo-childFrom, tid)

	entry := sc.ebr.NewNode(tid)
	previous := node.mappingHead.Load()
	entry.prev = previous
	entry.childFrom = childFrom
	entry.childTo = childTo
	entry.rootFrom = rootFrom

	node.mappingHead.Store(entry)
	node.sent.Store(childTo)

	sc.ebr.Retire(previous, tid)
	return rootFrom
}

// resolve is the waiter path: walk the mapping list from the head,
// strictly decreasing in childFrom, until finding the entry whose range
// covers myChildFrom, and translate into the corresponding root offset.
func (sc *StumpCounter) resolve(node *stumpNode, myChildFrom uint64, tid int) uint64 {
	mapping := node.mappingHead.Load()
	for mapping.childFrom > myChildFrom {
		sc.aux[tid].loop2.Add(1)
		mapping = mapping.prev
	}
	return mapping.rootFrom + (myChildFrom - mapping.childFrom)
}

func (sc *StumpCounter) FetchAdd(delta uint64, tid int) uint64 {
	nodeIdx := sc.routing.StartingNode[tid]
	if nodeIdx < 0 {
		sc.aux[tid].rootAccess.Add(1)
		return sc.root.FetchAdd(delta, tid)
	}

	sc.ebr.EnterCritical(tid)
	defer sc.ebr.ExitCritical(tid)

	node := &sc.nodes[nodeIdx-1]
	childFrom := node.count.Add(delta) - delta
	nextFrom := node.sent.Load()
	for nextFrom < childFrom {
		sc.aux[tid].loop1.Add(1)
		nextFrom = node.sent.Load()
	}

	var rootFrom uint64
	if childFrom == nextFrom {
		childTo := node.count.Load()
		rootFrom = sc.publish(node, childFrom, childTo, tid)
		sc.aux[tid].rootAccess.Add(1)
	} else {
		rootFrom = sc.resolve(node, childFrom, tid)
	}
	sc.aux[tid].access[nodeIdx-1].Add(1)
	return rootFrom
}

func (sc *StumpCounter) Load() uint64 {
	return sc.root.Load()
}

func (sc *StumpCounter) Store(value uint64) {
	sc.root.Store(value)
}

func (sc *StumpCounter) CompareAndSwap(old, new uint64) bool {
	return sc.root.CompareAndSwap(old, new)
}

// RootAccess sums how many times every thread actually touched the root
// atomic: once per batcher publication, plus once per direct-thread
// call.
func (sc *StumpCounter) RootAccess() uint64 {
	var total uint64
	for i := range sc.aux {
		total += sc.aux[i].rootAccess.Load()
	}
	return total
}

// MaxAccess returns the maximum touch count observed on the root or any
// single node, across all threads.
func (sc *StumpCounter) MaxAccess() uint64 {
	max := sc.RootAccess()
	var nodeTotals [maxStumpNodes]uint64
	for i := range sc.aux {
		for j := range sc.aux[i].access {
			nodeTotals[j] += sc.aux[i].access[j].Load()
		}
	}
	for _, t := range nodeTotals {
		if t > max {
			max = t
		}
	}
	return max
}

// NodeStats reports the diagnostics the harness attaches to a thread's
// RunResult: how many mapping-list entries it walked (LoopCount2) and how
// many times it spun waiting on a batcher (LoopCount1).
func (sc *StumpCounter) NodeStats(tid int) StumpNodeStats {
	return StumpNodeStats{
		Touches:    sc.aux[tid].rootAccess.Load(),
		LoopCount1: sc.aux[tid].loop1.Load(),
		LoopCount2: sc.aux[tid].loop2.Load(),
	}
}
