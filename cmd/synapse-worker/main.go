package main

import (
	"bufio"
	"context"
	"encoding/json"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/danielpatrickdp/synapse/internal/difficulty"
	"github.com/danielpatrickdp/synapse/internal/engine"
	"github.com/danielpatrickdp/synapse/internal/insight"
	"github.com/danielpatrickdp/synapse/internal/store"
	"github.com/danielpatrickdp/synapse/internal/worker"
)

// #region main
func main() {
	dbPath := envOr("SYNAPSE_DB", "synapse.db")

	eng := engine.New(engine.DefaultConfig())

	// Persistence is external to the engine: the store keeps the raw event
	// log and restores learned state by replaying it through Train on boot.
	// SYNAPSE_DB=off runs fully in-memory.
	var st *store.Store
	if dbPath != "off" {
		var err error
		st, err = store.NewStore(dbPath)
		if err != nil {
			log.Fatalf("failed to open store: %v", err)
		}
		defer st.Close()
		if _, err := st.Replay(eng, 100); err != nil {
			log.Printf("[MAIN] replay failed: %v", err)
		}
	}

	w := worker.New(eng, worker.DefaultTimeout)
	w.Start()
	defer w.Stop()

	out := json.NewEncoder(os.Stdout)
	var outMu sync.Mutex
	emit := func(res worker.Result) {
		outMu.Lock()
		defer outMu.Unlock()
		if err := out.Encode(res); err != nil {
			log.Printf("[MAIN] encode error: %v", err)
		}
	}

	// Unsolicited messages (worker_ready) go straight to stdout.
	go func() {
		for res := range w.Notifications() {
			emit(res)
		}
	}()

	// Optional heavy-analysis feedback loop. All engine mutation goes back
	// through Dispatch so the single-handler guarantee holds.
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg := insight.DefaultConfig()
		cfg.Model = envOr("SYNAPSE_INSIGHT_MODEL", cfg.Model)
		analyzer := insight.New(apiKey, os.Getenv("SYNAPSE_INSIGHT_BASE_URL"), cfg)
		interval := envDuration("SYNAPSE_INSIGHT_INTERVAL", 5*time.Minute)
		go insightLoop(w, analyzer, interval)
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var wg sync.WaitGroup
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var cmd worker.Command
		if err := json.Unmarshal([]byte(line), &cmd); err != nil {
			emit(worker.Result{Command: "errorResult", Success: false, Error: "malformed command: " + err.Error()})
			continue
		}
		wg.Add(1)
		go func(cmd worker.Command) {
			defer wg.Done()
			res := w.Dispatch(cmd)
			persist(st, cmd, res)
			emit(res)
		}(cmd)
	}
	wg.Wait()

	if err := scanner.Err(); err != nil {
		log.Printf("[MAIN] stdin error: %v", err)
	}
}

// #endregion main

// #region persistence

// persist appends trained events and logs prediction provenance. It runs on
// the per-command goroutine, so it only works from the result values the
// dispatcher already returned; it never reads engine state directly. Store
// failures are logged, never surfaced to the caller.
func persist(st *store.Store, cmd worker.Command, res worker.Result) {
	if st == nil || !res.Success {
		return
	}
	switch cmd.Command {
	case "train":
		events, err := worker.DecodeEvents(cmd.Data, "sequence")
		if err != nil || len(events) == 0 {
			return
		}
		if err := st.AppendEvents(events); err != nil {
			log.Printf("[MAIN] append events: %v", err)
			return
		}
		tr, ok := res.Data.(engine.TrainResult)
		if !ok {
			return
		}
		if _, err := st.SaveSnapshot(tr); err != nil {
			log.Printf("[MAIN] save snapshot: %v", err)
		}
	case "predict":
		if pr, ok := res.Data.(engine.PredictResult); ok {
			if err := st.LogPrediction(cmd.CorrelationID, pr); err != nil {
				log.Printf("[MAIN] log prediction: %v", err)
			}
		}
	}
}

// #endregion persistence

// #region insight-loop

// insightLoop periodically ships repeatedly-difficult patterns to the
// analyzer and feeds its reply back through the worker. The loop reads and
// writes engine state exclusively via Dispatch.
func insightLoop(w *worker.Worker, analyzer *insight.Analyzer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		pres := w.Dispatch(worker.Command{Command: "getDifficultPatterns"})
		patterns, _ := pres.Data.([]difficulty.PatternCount)
		if len(patterns) == 0 {
			continue
		}
		sres := w.Dispatch(worker.Command{Command: "getDifficultSequences", Data: json.RawMessage(`{"limit":5}`)})
		recent, _ := sres.Data.([]difficulty.HistoryEntry)

		report, err := analyzer.Analyze(context.Background(), patterns, recent)
		if err != nil {
			log.Printf("[MAIN] insight analysis: %v", err)
			continue
		}
		if len(report.Insights) > 0 {
			data, _ := json.Marshal(map[string]any{"insights": report.Insights})
			w.Dispatch(worker.Command{Command: "applyLLMInsights", Data: data})
		}
		if len(report.Samples) > 0 {
			data, _ := json.Marshal(map[string]any{"samples": report.Samples})
			w.Dispatch(worker.Command{Command: "processSyntheticTrainingData", Data: data})
		}
	}
}

// #endregion insight-loop

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// #endregion helpers
