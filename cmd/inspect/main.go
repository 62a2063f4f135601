package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/synapse/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to synapse.db")
	last := flag.Int("last", 20, "show N most recent predictions")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/synapse.db [--last N] [--json]")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := run(st, *last, *jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region report

type report struct {
	EventCount  int                      `json:"event_count"`
	Snapshot    *snapshotRow             `json:"snapshot,omitempty"`
	Predictions []store.PredictionRecord `json:"predictions"`
}

type snapshotRow struct {
	SnapshotID      string `json:"snapshot_id"`
	CreatedAt       string `json:"created_at"`
	VocabSize       int    `json:"vocab_size"`
	TransitionCount int    `json:"transition_count"`
	TaskCount       int    `json:"task_count"`
	CodebookSize    int    `json:"codebook_size"`
}

func run(st *store.Store, last int, jsonOut bool) error {
	count, err := st.CountEvents()
	if err != nil {
		return err
	}
	out := report{EventCount: count}

	if meta, ok, err := st.LatestSnapshot(); err != nil {
		return err
	} else if ok {
		out.Snapshot = &snapshotRow{
			SnapshotID:      meta.SnapshotID,
			CreatedAt:       meta.CreatedAt.Format(time.RFC3339),
			VocabSize:       meta.VocabSize,
			TransitionCount: meta.TransitionCount,
			TaskCount:       meta.TaskCount,
			CodebookSize:    meta.CodebookSize,
		}
	}

	out.Predictions, err = st.RecentPredictions(last)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(out)
	}
	printTable(out)
	return nil
}

// #endregion report

// #region output

func printTable(out report) {
	fmt.Printf("Events: %d\n", out.EventCount)
	if out.Snapshot != nil {
		fmt.Printf("Latest snapshot: %s (%s)\n", shortID(out.Snapshot.SnapshotID), out.Snapshot.CreatedAt)
		fmt.Printf("  Vocab:       %d\n", out.Snapshot.VocabSize)
		fmt.Printf("  Transitions: %d\n", out.Snapshot.TransitionCount)
		fmt.Printf("  Tasks:       %d\n", out.Snapshot.TaskCount)
		fmt.Printf("  Codebook:    %d\n", out.Snapshot.CodebookSize)
	} else {
		fmt.Println("Latest snapshot: none")
	}

	if len(out.Predictions) == 0 {
		fmt.Println("\nNo predictions logged.")
		return
	}

	fmt.Printf("\n%-12s  %10s  %-9s  %-20s  %s\n",
		"Correlation", "Confidence", "Difficult", "Reason", "Time")
	fmt.Printf("%-12s+-%10s+-%-9s+-%-20s+-%s\n",
		"------------", "----------", "---------", "--------------------", "--------------------")
	for _, p := range out.Predictions {
		reason := p.Reason
		if reason == "" {
			reason = "—"
		}
		fmt.Printf("%-12s  %10.4f  %-9v  %-20s  %s\n",
			shortID(p.CorrelationID), p.Confidence, p.IsDifficult, reason,
			p.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
