package bench

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// History is an append-only log of throughput run summaries, kept
// across invocations so a caller can compare today's numbers against
// last week's without scraping CSV files by hand. It stores reports,
// never counter state, so it does not reintroduce the cross-run
// persistence the counters themselves explicitly don't support.
type History struct {
	db *sql.DB
}

// OpenHistory opens (creating if needed) a SQLite-backed history file
// at path and ensures its schema exists.
func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	variant TEXT NOT NULL,
	thread_count INTEGER NOT NULL,
	run_milliseconds INTEGER NOT NULL,
	total_count INTEGER NOT NULL,
	elapsed_millis REAL NOT NULL,
	max_access_ratio REAL NOT NULL,
	root_access_ratio REAL NOT NULL,
	fairness REAL NOT NULL,
	throughput REAL NOT NULL
)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &History{db: db}, nil
}

// Record appends one throughput summary as a new row.
func (h *History) Record(s *ThroughputSummary) error {
	_, err := h.db.Exec(
		`INSERT INTO runs (
			variant, thread_count, run_milliseconds, total_count, elapsed_millis,
			max_access_ratio, root_access_ratio, fairness, throughput
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Config.Variant, s.Config.ThreadCount, s.Config.RunMilliseconds, s.TotalCount,
		s.ElapsedMillis, s.MaxAccessRatio, s.RootAccessRatio, s.Fairness, s.Throughput,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RecentByVariant returns the last n throughput figures recorded for
// variant, most recent first.
func (h *History) RecentByVariant(variant string, n int) ([]float64, error) {
	rows, err := h.db.Query(
		`SELECT throughput FROM runs WHERE variant = ? ORDER BY id DESC LIMIT ?`,
		variant, n,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var t float64
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (h *History) Close() error {
	return h.db.Close()
}
