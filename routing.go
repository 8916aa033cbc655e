package scount

import (
	"strconv"

	"github.com/dgryski/go-rendezvous"
)

// FanoutPolicy selects how StumpCounter assigns each thread its fixed
// starting node. Chosen once at construction, per the "no dynamic
// re-sharding of nodes at runtime" non-goal, and never revisited.
type FanoutPolicy int

const (
	// FixedFanout routes thread tid to node (tid mod F) + 1, for a
	// configured F.
	FixedFanout FanoutPolicy = iota
	// SqrtFanout derives F as ceil(sqrt(threadCount)).
	SqrtFanout
	// RendezvousFanout assigns threads to nodes by rendezvous
	// (highest-random-weight) hashing of tid over an F-node set,
	// instead of plain modulo. Still computed once and cached: the
	// node set never changes after construction.
	RendezvousFanout
)

// RoutingTable is the frozen result of assigning every thread a starting
// node: either a positive node index in [1, rootFanout], or a negative
// "direct" marker meaning the thread bypasses every intermediate node and
// hits the root counter itself.
type RoutingTable struct {
	StartingNode []int
	RootFanout   int
}

// BuildRoutingTable computes the routing table for threadCount threads
// under the given policy. fanout is ignored under SqrtFanout. The first
// direct threads (by tid, lowest first) bypass all intermediate nodes.
// For very low thread counts, direct root access beats the batching
// machinery entirely.
func BuildRoutingTable(policy FanoutPolicy, threadCount, fanout, direct int) *RoutingTable {
	switch policy {
	case SqrtFanout:
		block := 1
		for block*block < threadCount {
			block++
		}
		return buildFixedFanout(threadCount, block, direct)
	case RendezvousFanout:
		return buildRendezvousFanout(threadCount, fanout, direct)
	default:
		return buildFixedFanout(threadCount, fanout, direct)
	}
}

func buildFixedFanout(threadCount, fanout, direct int) *RoutingTable {
	if fanout < 1 {
		fanout = 1
	}
	rt := &RoutingTable{StartingNode: make([]int, threadCount)}
	rootFanout := fanout
	for i := direct; i < threadCount; i++ {
		rt.StartingNode[i] = i%fanout + 1
	}
	for i := 0; i < direct && i < threadCount; i++ {
		rootFanout++
		rt.StartingNode[i] = -rootFanout
	}
	rt.RootFanout = rootFanout
	return rt
}

// buildRendezvousFanout assigns each non-direct thread to one of fanout
// nodes by rendezvous-hashing its tid over the fixed node set, rather
// than tid%fanout. This spreads threads whose ids happen to share a
// modulus (e.g. every Nth hardware thread on a NUMA machine) across
// distinct nodes instead of piling them onto the same one.
func buildRendezvousFanout(threadCount, fanout, direct int) *RoutingTable {
	if fanout < 1 {
		fanout = 1
	}
	nodes := make([]string, fanout)
	for i := range nodes {
		nodes[i] = strconv.Itoa(i + 1)
	}
	r := rendezvous.New(nodes, rendezvousHash)

	rt := &RoutingTable{StartingNode: make([]int, threadCount)}
	rootFanout := fanout
	for i := direct; i < threadCount; i++ {
		node := r.Lookup(strconv.Itoa(i))
		n, _ := strconv.Atoi(node)
		rt.StartingNode[i] = n
	}
	for i := 0; i < direct && i < threadCount; i++ {
		rootFanout++
		rt.StartingNode[i] = -rootFanout
	}
	rt.RootFanout = rootFanout
	return rt
}

// rendezvousHash is a small FNV-1a variant used only to spread node-name
// strings over uint64 space for rendezvous.New; it has no bearing on
// counter correctness, only on load balance across nodes.
func rendezvousHash(s string) uint64 {
	var h uint64 = 1469598103934665603
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}
