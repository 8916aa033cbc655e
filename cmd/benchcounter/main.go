// Command benchcounter runs a correctness check, a throughput
// benchmark, or a concurrent sweep across every counter variant.
//
// Usage:
//
//	benchcounter <mode> <thread_count> <run_milliseconds> [flags]
//
// mode is "correctness", "throughput", or "sweep". Read/increment
// percentages, additional work and diff range are not positional
// arguments; they come from the -config YAML file or the defaults.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"sync"

	_ "go.uber.org/automaxprocs"

	"scount/bench"
	"scount/metrics"
)

func main() {
	if len(os.Args) < 4 {
		fmt.Fprintf(os.Stderr, "Usage: %s <correctness|throughput|sweep> <thread_count> <run_milliseconds> [flags]\n", os.Args[0])
		os.Exit(1)
	}

	mode := os.Args[1]
	flagSet := flag.NewFlagSet("benchcounter", flag.ExitOnError)
	variant := flagSet.String("variant", "plain", "counter variant: plain, stump, or funnel")
	policy := flagSet.String("policy", "fixed", "stump fan-out policy: fixed, sqrt, or rendezvous")
	fanout := flagSet.Int("fanout", 4, "stump fixed/rendezvous fan-out width")
	direct := flagSet.Int("direct", 0, "stump direct-to-root thread count")
	configPath := flagSet.String("config", "", "optional YAML config file, overrides defaults")
	metricsAddr := flagSet.String("metrics-addr", "", "if set, serve Prometheus metrics on this address")
	historyDB := flagSet.String("history-db", "", "if set, append throughput summaries to this SQLite file")
	seed := flagSet.Int64("seed", 1, "PRNG seed")

	threadCount, err := strconv.Atoi(os.Args[2])
	if err != nil {
		log.Fatalf("bad thread_count: %v", err)
	}
	runMillis, err := strconv.Atoi(os.Args[3])
	if err != nil {
		log.Fatalf("bad run_milliseconds: %v", err)
	}
	if err := flagSet.Parse(os.Args[4:]); err != nil {
		log.Fatal(err)
	}

	cfg, err := bench.LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	cfg.ThreadCount = threadCount
	cfg.RunMilliseconds = runMillis
	setFlags := map[string]bool{}
	flagSet.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	if setFlags["variant"] {
		cfg.Variant = *variant
	}
	if setFlags["policy"] {
		cfg.Policy = *policy
	}
	if setFlags["fanout"] {
		cfg.Fanout = *fanout
	}
	if setFlags["direct"] {
		cfg.Direct = *direct
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *historyDB != "" {
		cfg.HistoryDB = *historyDB
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	switch mode {
	case "correctness":
		runCorrectnessMode(logger, cfg, *seed)
	case "throughput":
		runThroughputMode(logger, cfg, *seed)
	case "sweep":
		runSweepMode(logger, cfg, *seed)
	default:
		log.Fatalf("unknown mode %q: want correctness, throughput, or sweep", mode)
	}
}

func runCorrectnessMode(logger *slog.Logger, cfg bench.Config, seed int64) {
	opsPerThread := 100_000
	logger.Info("running correctness check", "variant", cfg.Variant, "threads", cfg.ThreadCount, "ops_per_thread", opsPerThread)

	res, err := bench.RunCorrectness(cfg.Variant, cfg.ThreadCount, opsPerThread, seed)
	if err != nil {
		log.Fatal(err)
	}
	if !res.Passed {
		for _, f := range res.Failures {
			logger.Error("invariant violated", "detail", f)
		}
		os.Exit(1)
	}
	logger.Info("correctness check passed", "tracked_total", res.TrackedTotal, "counter_total", res.CounterTotal)
}

func runThroughputMode(logger *slog.Logger, cfg bench.Config, seed int64) {
	logger.Info("running throughput benchmark", "variant", cfg.Variant, "threads", cfg.ThreadCount, "duration_ms", cfg.RunMilliseconds)

	var reporter *metrics.Reporter
	if cfg.MetricsAddr != "" {
		reporter = metrics.NewReporter(cfg.Variant)
		shutdown, err := reporter.Serve(cfg.MetricsAddr)
		if err != nil {
			log.Fatal(err)
		}
		defer shutdown()
	}

	summary, err := bench.RunThroughput(cfg, seed, &bench.RunObservers{Reporter: reporter})
	if err != nil {
		log.Fatal(err)
	}

	logger.Info("throughput run complete",
		"total_count", summary.TotalCount,
		"throughput_ops_per_ms", summary.Throughput,
		"fairness", summary.Fairness,
		"max_access_ratio", summary.MaxAccessRatio,
		"root_access_ratio", summary.RootAccessRatio,
	)

	if err := os.MkdirAll("results", 0o755); err != nil {
		log.Fatal(err)
	}
	if err := bench.WriteSummaryCSV("results/counter_main.csv", summary); err != nil {
		log.Fatal(err)
	}
	if err := bench.WriteAuxCSV("results/counter_aux.csv", summary.Results); err != nil {
		log.Fatal(err)
	}

	if cfg.HistoryDB != "" {
		hist, err := bench.OpenHistory(cfg.HistoryDB)
		if err != nil {
			log.Fatal(err)
		}
		defer hist.Close()
		if err := hist.Record(summary); err != nil {
			log.Fatal(err)
		}
	}
}

// sweepVariants are run concurrently by runSweepMode.
var sweepVariants = []string{"plain", "stump", "funnel"}

// runSweepMode runs every counter variant's throughput benchmark at
// once, each logging its own interleaved progress as it runs, so the
// three variants' behavior under identical load can be compared
// directly from one invocation instead of three separate runs.
func runSweepMode(logger *slog.Logger, cfg bench.Config, seed int64) {
	logger.Info("running sweep across all variants", "threads", cfg.ThreadCount, "duration_ms", cfg.RunMilliseconds)

	summaries := make([]*bench.ThroughputSummary, len(sweepVariants))
	var wg sync.WaitGroup
	for i, variant := range sweepVariants {
		wg.Add(1)
		go func(i int, variant string) {
			defer wg.Done()
			vcfg := cfg
			vcfg.Variant = variant
			obs := &bench.RunObservers{
				Progress: func(value uint64) {
					logger.Info("sweep progress", "variant", variant, "value", value)
				},
			}
			summary, err := bench.RunThroughput(vcfg, seed+int64(i), obs)
			if err != nil {
				logger.Error("sweep run failed", "variant", variant, "err", err)
				return
			}
			summaries[i] = summary
		}(i, variant)
	}
	wg.Wait()

	for i, variant := range sweepVariants {
		s := summaries[i]
		if s == nil {
			continue
		}
		logger.Info("sweep result",
			"variant", variant,
			"total_count", s.TotalCount,
			"throughput_ops_per_ms", s.Throughput,
			"fairness", s.Fairness,
		)
	}
}
