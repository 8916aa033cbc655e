package bench

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"scount"
)

// CorrectnessResult is the outcome of one correctness run: whether every
// invariant held, and the observed totals that let a caller print a
// diagnosis when they didn't.
type CorrectnessResult struct {
	ThreadCount  int
	OpsRequested int
	TrackedTotal uint64
	CounterTotal uint64
	Passed       bool
	Failures     []string
}

type claimedRange struct{ from, to uint64 }

// RunCorrectness drives threadCount goroutines against a fresh counter
// of the given variant, each issuing opsPerThread operations (about 1 in
// 100 of them a Load, matching the original test's read mix, and the
// rest FetchAdd(1)), and checks three invariants: the counter's final
// value equals the sum of every accepted delta, no two FetchAdd calls
// ever returned overlapping ranges, and every thread's own Load results
// were monotonically non-decreasing.
//
// The counter is built from DefaultConfig, so a stump run always uses
// fixed fan-out 4 with no direct threads; caller-chosen policy, fanout
// and direct settings are not applied here.
func RunCorrectness(variant string, threadCount, opsPerThread int, seed int64) (*CorrectnessResult, error) {
	counter, err := newCounter(variant, threadCount, DefaultConfig())
	if err != nil {
		return nil, err
	}

	res := &CorrectnessResult{ThreadCount: threadCount, OpsRequested: opsPerThread * threadCount}

	claims := make([][]claimedRange, threadCount)

	var tracked uint64
	var mu sync.Mutex

	g, _ := errgroup.WithContext(context.Background())
	for tid := 0; tid < threadCount; tid++ {
		tid := tid
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seed*1000 + int64(tid)))
			var localTotal uint64
			var lastLoad uint64
			myClaims := make([]claimedRange, 0, opsPerThread)

			for i := 0; i < opsPerThread; i++ {
				if rng.Intn(100) == 0 {
					v := counter.Load()
					if v < lastLoad {
						return fmt.Errorf("thread %d: load went backwards, %d then %d", tid, lastLoad, v)
					}
					lastLoad = v
					continue
				}
				from := counter.FetchAdd(1, tid)
				myClaims = append(myClaims, claimedRange{from, from + 1})
				localTotal++
			}

			mu.Lock()
			tracked += localTotal
			claims[tid] = myClaims
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		res.Failures = append(res.Failures, err.Error())
	}

	res.TrackedTotal = tracked
	res.CounterTotal = counter.Load()

	if res.TrackedTotal != res.CounterTotal {
		res.Failures = append(res.Failures, fmt.Sprintf(
			"tracked total %d does not match counter total %d", res.TrackedTotal, res.CounterTotal))
	}

	if dup := findOverlap(claims); dup != "" {
		res.Failures = append(res.Failures, dup)
	}

	res.Passed = len(res.Failures) == 0
	return res, nil
}

// findOverlap flattens every thread's claimed [from, to) ranges and
// checks that none overlap or repeat, the Go equivalent of the
// original's sort-then-std::unique pass over the returned values.
func findOverlap(claims [][]claimedRange) string {
	var all []claimedRange
	for _, c := range claims {
		all = append(all, c...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].from < all[j].from })

	for i := 1; i < len(all); i++ {
		if all[i].from < all[i-1].to {
			return fmt.Sprintf("overlapping ranges: [%d, %d) and [%d, %d)",
				all[i-1].from, all[i-1].to, all[i].from, all[i].to)
		}
	}
	return ""
}

func newCounter(variant string, threadCount int, cfg Config) (scount.Counter, error) {
	switch variant {
	case "plain":
		return scount.NewPlainCounter(0), nil
	case "stump":
		policy := scount.FixedFanout
		switch cfg.Policy {
		case "sqrt":
			policy = scount.SqrtFanout
		case "rendezvous":
			policy = scount.RendezvousFanout
		}
		return scount.NewStumpCounter(0, threadCount, policy, cfg.Fanout, cfg.Direct), nil
	case "funnel":
		return scount.NewCombiningFunnelCounter(0, threadCount), nil
	default:
		return nil, fmt.Errorf("unknown variant %q", variant)
	}
}
