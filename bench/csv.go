package bench

import (
	"encoding/csv"
	"fmt"
	"os"
)

// WriteSummaryCSV writes the counter_main.csv columns from the original
// benchmark.cpp: one row summarizing an entire throughput run.
func WriteSummaryCSV(path string, s *ThroughputSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create summary csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"thread_count", "run_milliseconds", "read_percent", "increment_percent",
		"additional_work", "total_count", "elapsed_time", "max_access_ratio",
		"root_access_ratio", "fairness", "stddev", "throughput",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	row := []string{
		fmt.Sprint(s.Config.ThreadCount),
		fmt.Sprint(s.Config.RunMilliseconds),
		fmt.Sprint(s.Config.ReadPercent),
		fmt.Sprint(s.Config.IncrementPercent),
		fmt.Sprint(s.Config.AdditionalWork),
		fmt.Sprint(s.TotalCount),
		fmt.Sprintf("%.2f", s.ElapsedMillis),
		fmt.Sprintf("%.6f", s.MaxAccessRatio),
		fmt.Sprintf("%.6f", s.RootAccessRatio),
		fmt.Sprintf("%.6f", s.Fairness),
		fmt.Sprintf("%.2f", s.StdDevOpsPerMs),
		fmt.Sprintf("%.2f", s.Throughput),
	}
	return w.Write(row)
}

// WriteAuxCSV writes the counter_aux.csv columns: one row per thread.
func WriteAuxCSV(path string, results []RunResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create aux csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"thread_id", "read_count", "inc_count", "total_count",
		"loop_count_1", "loop_count_2", "root_access",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range results {
		row := []string{
			fmt.Sprint(r.ThreadID),
			fmt.Sprint(r.ReadCount),
			fmt.Sprint(r.IncCount),
			fmt.Sprint(r.TotalCount),
			fmt.Sprint(r.LoopCount1),
			fmt.Sprint(r.LoopCount2),
			fmt.Sprint(r.RootAccess),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
