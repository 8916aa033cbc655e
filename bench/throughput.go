package bench

import (
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"scount"
	"scount/metrics"
)

// RunResult is one thread's contribution to a throughput run: operation
// counts by kind, plus the diagnostics a StumpCounter can report per
// thread. Column names match the original's counter_aux.csv.
type RunResult struct {
	ThreadID   int
	ReadCount  int64
	IncCount   int64
	TotalCount int64
	LoopCount1 uint64
	LoopCount2 uint64
	RootAccess uint64
}

// ThroughputSummary is the aggregate of a run, the columns the original
// writes to counter_main.csv.
type ThroughputSummary struct {
	Config          Config
	ElapsedMillis   float64
	TotalCount      int64
	MaxAccessRatio  float64
	RootAccessRatio float64
	Fairness        float64
	StdDevOpsPerMs  float64
	Throughput      float64
	Results         []RunResult
}

// operationGenerator reproduces CounterOperationGenerator: a read/
// increment split by ratio, with increments drawn uniformly from
// [1, diffRange].
type operationGenerator struct {
	rng        *rand.Rand
	readCutoff int
	diffRange  int64
}

func newOperationGenerator(seed int64, readPercent int, diffRange int64) *operationGenerator {
	return &operationGenerator{
		rng:        rand.New(rand.NewSource(seed)),
		readCutoff: readPercent,
		diffRange:  diffRange,
	}
}

// next returns (isRead, delta). delta is meaningless when isRead.
func (g *operationGenerator) next() (bool, uint64) {
	if g.rng.Intn(100) < g.readCutoff {
		return true, 0
	}
	delta := uint64(g.rng.Int63n(g.diffRange)) + 1
	return false, delta
}

// RunObservers bundles the optional side channels a throughput run can
// feed while it's in flight: a Prometheus reporter updated once at the
// end, and a Progress callback polled periodically against the live
// counter for the run's duration (a concurrent sweep across variants
// uses this to log interleaved progress from each variant's own run).
type RunObservers struct {
	Reporter *metrics.Reporter
	Progress func(value uint64)
}

// progressInterval is how often RunThroughput polls the live counter
// for obs.Progress, when set.
const progressInterval = 200 * time.Millisecond

// RunThroughput runs cfg.RunMilliseconds of concurrent load against a
// fresh counter built per cfg.Variant, spinning up cfg.ThreadCount
// workers that each loop reads and fetch-adds until a shared stop flag
// trips, mirroring the original benchmark.cpp's barrier-start,
// sleep-then-stop structure (minus the explicit start barrier, which
// Go's goroutine scheduling makes unnecessary for this workload).
//
// obs may be nil. If obs.Progress is set, it is called with the
// counter's current value roughly every progressInterval until the run
// ends. If obs.Reporter is set, its gauges are updated once at the end
// of the run from the same counter the workers drove.
func RunThroughput(cfg Config, seed int64, obs *RunObservers) (*ThroughputSummary, error) {
	counter, err := newCounter(cfg.Variant, cfg.ThreadCount, cfg)
	if err != nil {
		return nil, err
	}

	var progressDone chan struct{}
	if obs != nil && obs.Progress != nil {
		progressDone = make(chan struct{})
		go func() {
			ticker := time.NewTicker(progressInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					obs.Progress(counter.Load())
				case <-progressDone:
					return
				}
			}
		}()
	}

	var stop atomic.Bool
	results := make([]RunResult, cfg.ThreadCount)

	var wg sync.WaitGroup
	start := time.Now()
	for tid := 0; tid < cfg.ThreadCount; tid++ {
		wg.Add(1)
		go func(tid int) {
			defer wg.Done()
			gen := newOperationGenerator(seed*1000+int64(tid), cfg.ReadPercent, cfg.DiffRange)
			workGen := rand.New(rand.NewSource(seed*2000 + int64(tid)))

			var r RunResult
			r.ThreadID = tid

			for !stop.Load() {
				isRead, delta := gen.next()
				if isRead {
					counter.Load()
					r.ReadCount++
				} else {
					counter.FetchAdd(delta, tid)
					r.IncCount++
				}
				r.TotalCount++

				if cfg.AdditionalWork > 1 {
					x := 1
					for x%cfg.AdditionalWork != 0 {
						x = workGen.Intn(cfg.AdditionalWork)
					}
				}
			}

			if sc, ok := counter.(*scount.StumpCounter); ok {
				stats := sc.NodeStats(tid)
				r.LoopCount1 = stats.LoopCount1
				r.LoopCount2 = stats.LoopCount2
				r.RootAccess = stats.Touches
			}
			results[tid] = r
		}(tid)
	}

	time.Sleep(time.Duration(cfg.RunMilliseconds) * time.Millisecond)
	stop.Store(true)
	wg.Wait()
	elapsed := time.Since(start)
	if progressDone != nil {
		close(progressDone)
	}

	summary := summarize(cfg, elapsed, counter, results)
	if obs != nil && obs.Reporter != nil {
		obs.Reporter.Observe(counter, uint64(summary.TotalCount), elapsed)
	}
	return summary, nil
}

func summarize(cfg Config, elapsed time.Duration, counter scount.Counter, results []RunResult) *ThroughputSummary {
	ms := float64(elapsed.Milliseconds())
	if ms == 0 {
		ms = 1
	}

	var totalCount, totalIncCount int64
	var maxThroughput, minThroughput int64 = 0, 1 << 62
	for _, r := range results {
		totalCount += r.TotalCount
		totalIncCount += r.IncCount
		if r.TotalCount > maxThroughput {
			maxThroughput = r.TotalCount
		}
		if r.TotalCount < minThroughput {
			minThroughput = r.TotalCount
		}
	}

	var sumSquaredError float64
	mean := float64(totalCount) / float64(len(results)) / ms
	for _, r := range results {
		diff := float64(r.TotalCount)/ms - mean
		sumSquaredError += diff * diff
	}
	stdDev := math.Sqrt(sumSquaredError / float64(len(results)))

	fairness := 1.0
	if maxThroughput > 0 {
		fairness = float64(minThroughput) / float64(maxThroughput)
	}

	rootAccessRatio := 0.0
	maxAccessRatio := 0.0
	if totalIncCount > 0 {
		rootAccessRatio = float64(counter.RootAccess()) / float64(totalIncCount)
		maxAccessRatio = float64(counter.MaxAccess()) / float64(totalIncCount)
	}

	return &ThroughputSummary{
		Config:          cfg,
		ElapsedMillis:   ms,
		TotalCount:      totalCount,
		MaxAccessRatio:  maxAccessRatio,
		RootAccessRatio: rootAccessRatio,
		Fairness:        fairness,
		StdDevOpsPerMs:  stdDev,
		Throughput:      float64(totalCount) / ms,
		Results:         results,
	}
}

