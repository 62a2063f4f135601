package store

// #region imports
import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/synapse/internal/engine"
	"github.com/danielpatrickdp/synapse/internal/event"
)

// #endregion

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS events (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	recorded_at  TEXT NOT NULL,
	event_json   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS model_snapshots (
	snapshot_id       TEXT PRIMARY KEY,
	created_at        TEXT NOT NULL,
	vocab_size        INTEGER NOT NULL,
	transition_count  INTEGER NOT NULL,
	task_count        INTEGER NOT NULL,
	codebook_size     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS prediction_log (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	correlation_id   TEXT,
	confidence       REAL NOT NULL,
	is_difficult     INTEGER NOT NULL,
	reason           TEXT,
	suggestions_json TEXT,
	created_at       TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct

// Store is the external persistence collaborator: it keeps the raw event
// log, model snapshot metadata, and a prediction provenance log in SQLite.
// The engine holds no persistence itself; the store restores learned state
// by replaying the event log through Train on load.
type Store struct {
	db *sql.DB
}

// NewStore opens the database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for read-only tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion store-struct

// #region events

// AppendEvents persists a batch of raw events.
func (s *Store) AppendEvents(events []event.TypedEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, ev := range events {
		raw, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO events (recorded_at, event_json) VALUES (?, ?)`,
			now, string(raw),
		); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	return tx.Commit()
}

// LoadEvents reads persisted events in insertion order. limit <= 0 loads
// everything.
func (s *Store) LoadEvents(limit int) ([]event.TypedEvent, error) {
	query := `SELECT event_json FROM events ORDER BY seq ASC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.Query(query+` LIMIT ?`, limit)
	} else {
		rows, err = s.db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	var events []event.TypedEvent
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var ev event.TypedEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CountEvents returns the event log length.
func (s *Store) CountEvents() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// #endregion events

// #region replay

// Replay feeds the persisted event log back through the engine in batches,
// restoring vocabulary, transitions, patterns, and tasks. Returns the number
// of events replayed.
func (s *Store) Replay(e *engine.Engine, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	events, err := s.LoadEvents(0)
	if err != nil {
		return 0, err
	}
	for start := 0; start < len(events); start += batchSize {
		end := start + batchSize
		if end > len(events) {
			end = len(events)
		}
		e.Train(events[start:end])
	}
	if len(events) > 0 {
		log.Printf("[STORE] replayed %d events into engine", len(events))
	}
	return len(events), nil
}

// #endregion replay

// #region prediction-log

// LogPrediction appends one prediction outcome to the provenance log.
func (s *Store) LogPrediction(correlationID string, res engine.PredictResult) error {
	difficult := 0
	if res.IsDifficult {
		difficult = 1
	}
	var suggestions any
	if len(res.Suggestions) > 0 {
		raw, err := json.Marshal(res.Suggestions)
		if err != nil {
			return fmt.Errorf("marshal suggestions: %w", err)
		}
		suggestions = string(raw)
	}
	_, err := s.db.Exec(
		`INSERT INTO prediction_log (correlation_id, confidence, is_difficult, reason, suggestions_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		correlationID, res.Confidence, difficult, nullIfEmpty(res.Reason), suggestions,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log prediction: %w", err)
	}
	return nil
}

// PredictionRecord is one provenance row.
type PredictionRecord struct {
	CorrelationID string
	Confidence    float64
	IsDifficult   bool
	Reason        string
	CreatedAt     time.Time
}

// RecentPredictions returns the newest provenance rows.
func (s *Store) RecentPredictions(limit int) ([]PredictionRecord, error) {
	rows, err := s.db.Query(
		`SELECT correlation_id, confidence, is_difficult, reason, created_at
		 FROM prediction_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent predictions: %w", err)
	}
	defer rows.Close()

	var records []PredictionRecord
	for rows.Next() {
		var rec PredictionRecord
		var corr, reason sql.NullString
		var difficult int
		var createdStr string
		if err := rows.Scan(&corr, &rec.Confidence, &difficult, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		rec.CorrelationID = corr.String
		rec.IsDifficult = difficult != 0
		rec.Reason = reason.String
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion prediction-log

// #region snapshots

// SnapshotMeta records the learned-state sizes at a point in time.
type SnapshotMeta struct {
	SnapshotID      string
	CreatedAt       time.Time
	VocabSize       int
	TransitionCount int
	TaskCount       int
	CodebookSize    int
}

// SaveSnapshot records the learned-state sizes reported by a training
// result. It deliberately takes the result value rather than the engine:
// engine state may only be read from inside a command handler, while
// snapshots are written from whatever goroutine holds the result.
func (s *Store) SaveSnapshot(res engine.TrainResult) (SnapshotMeta, error) {
	meta := SnapshotMeta{
		SnapshotID:      uuid.New().String(),
		CreatedAt:       time.Now().UTC(),
		VocabSize:       res.VocabularySize,
		TransitionCount: res.TransitionMappings,
		TaskCount:       res.DiscoveredTasks,
		CodebookSize:    res.CodebookSize,
	}
	_, err := s.db.Exec(
		`INSERT INTO model_snapshots (snapshot_id, created_at, vocab_size, transition_count, task_count, codebook_size)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		meta.SnapshotID, meta.CreatedAt.Format(time.RFC3339Nano),
		meta.VocabSize, meta.TransitionCount, meta.TaskCount, meta.CodebookSize,
	)
	if err != nil {
		return SnapshotMeta{}, fmt.Errorf("save snapshot: %w", err)
	}
	return meta, nil
}

// LatestSnapshot reads the most recent snapshot, or false when none exists.
func (s *Store) LatestSnapshot() (SnapshotMeta, bool, error) {
	var meta SnapshotMeta
	var createdStr string
	err := s.db.QueryRow(
		`SELECT snapshot_id, created_at, vocab_size, transition_count, task_count, codebook_size
		 FROM model_snapshots ORDER BY created_at DESC LIMIT 1`,
	).Scan(&meta.SnapshotID, &createdStr, &meta.VocabSize, &meta.TransitionCount,
		&meta.TaskCount, &meta.CodebookSize)
	if err == sql.ErrNoRows {
		return SnapshotMeta{}, false, nil
	}
	if err != nil {
		return SnapshotMeta{}, false, fmt.Errorf("latest snapshot: %w", err)
	}
	meta.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return meta, true, nil
}

// #endregion snapshots

// #region helpers

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
