package bench

import (
	"sync"
	"testing"

	"scount"
)

func TestRunThroughputPlain(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ThreadCount = 4
	cfg.RunMilliseconds = 50
	cfg.Variant = "plain"

	summary, err := RunThroughput(cfg, 11, nil)
	if err != nil {
		t.Fatal(err)
	}
	if summary.TotalCount <= 0 {
		t.Error("expected some operations to have completed")
	}
	if len(summary.Results) != cfg.ThreadCount {
		t.Errorf("results: got %d, want %d", len(summary.Results), cfg.ThreadCount)
	}
}

func TestRunThroughputStumpReportsNodeStats(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ThreadCount = 8
	cfg.RunMilliseconds = 50
	cfg.Variant = "stump"
	cfg.Fanout = 2

	summary, err := RunThroughput(cfg, 21, nil)
	if err != nil {
		t.Fatal(err)
	}
	if summary.TotalCount <= 0 {
		t.Error("expected some operations to have completed")
	}
	var rootTouches uint64
	for _, r := range summary.Results {
		rootTouches += r.RootAccess
	}
	if rootTouches == 0 {
		t.Error("expected per-thread node stats to record root accesses")
	}
}

func TestRunThroughputReportsProgressDuringRun(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ThreadCount = 4
	cfg.RunMilliseconds = 500
	cfg.Variant = "plain"
	// every increment adds exactly 1, so the counter's value never
	// exceeds the number of operations performed
	cfg.DiffRange = 1

	var mu sync.Mutex
	var samples []uint64
	obs := &RunObservers{
		Progress: func(value uint64) {
			mu.Lock()
			samples = append(samples, value)
			mu.Unlock()
		},
	}

	summary, err := RunThroughput(cfg, 31, obs)
	if err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(samples) == 0 {
		t.Fatal("expected at least one progress sample over a 500ms run")
	}
	for i := 1; i < len(samples); i++ {
		if samples[i] < samples[i-1] {
			t.Errorf("progress went backwards: %d then %d", samples[i-1], samples[i])
		}
	}
	if last := samples[len(samples)-1]; last > uint64(summary.TotalCount) {
		t.Errorf("last progress sample %d exceeds final total %d", last, summary.TotalCount)
	}
}

func TestSummarizeFairness(t *testing.T) {
	results := []RunResult{
		{ThreadID: 0, TotalCount: 100},
		{ThreadID: 1, TotalCount: 50},
	}
	cfg := DefaultConfig()
	s := summarize(cfg, 0, scount.NewPlainCounter(0), results)
	if s.Fairness != 0.5 {
		t.Errorf("fairness: got %v, want 0.5", s.Fairness)
	}
}
