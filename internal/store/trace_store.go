// Package store provides SQLite-backed persistence for run traces.
//
// The trace store is the audit log of the judgment pipeline:
//   - Deterministic replay: same inputs can be served from the cached result
//   - Audit trail: every successful run is logged with input and output hashes
//   - Unbounded retention: records are never evicted; this is an audit-log
//     semantic, not a performance cache
//
// The store is the only writer to durable storage. Every lookup goes to the
// database; there is no in-memory mirror, so correctness does not depend on
// process lifetime.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"proofgate/internal/logging"
	"proofgate/internal/schema"
)

// StorageError wraps a durable-store read/write failure. It propagates to the
// caller as a run failure distinct from fail-closed, since fail-closed results
// are never stored.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("trace store %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// TraceStore persists run traces and cached results in SQLite.
// Thread-safe with a read-write mutex.
type TraceStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewTraceStore opens (or creates) the SQLite database at path and ensures
// the schema exists.
func NewTraceStore(path string) (*TraceStore, error) {
	logging.StoreDebug("Initializing TraceStore at path: %s", path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}

	ts := &TraceStore{db: db, dbPath: path}
	if err := ts.ensureSchema(); err != nil {
		db.Close()
		logging.Get(logging.CategoryStore).Error("Failed to ensure trace schema: %v", err)
		return nil, &StorageError{Op: "init", Err: err}
	}

	logging.Store("TraceStore initialized")
	return ts, nil
}

// ensureSchema creates the traces table if it doesn't exist.
func (ts *TraceStore) ensureSchema() error {
	schemaSQL := `
	CREATE TABLE IF NOT EXISTS traces (
		run_id TEXT PRIMARY KEY,
		input_hash TEXT NOT NULL,
		question TEXT NOT NULL,
		excerpt_ids TEXT NOT NULL,
		prompt_versions TEXT NOT NULL,
		agent_output_hashes TEXT,
		final_output_hash TEXT,
		result_json TEXT,
		replayed INTEGER DEFAULT 0,
		timestamp TEXT NOT NULL,
		latency_ms INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_traces_input_hash ON traces(input_hash);
	CREATE INDEX IF NOT EXISTS idx_traces_timestamp ON traces(timestamp);
	`

	_, err := ts.db.Exec(schemaSQL)
	return err
}

// StoreTrace persists a run trace together with its full result blob. Upsert
// keyed by run_id; last write wins on a collision, which id generation makes
// effectively impossible.
func (ts *TraceStore) StoreTrace(trace *schema.RunTrace, result *schema.RunResult) error {
	timer := logging.StartTimer(logging.CategoryStore, "StoreTrace")
	defer timer.Stop()

	ts.mu.Lock()
	defer ts.mu.Unlock()

	logging.StoreDebug("Storing trace: run_id=%s input_hash=%.12s latency=%dms", trace.RunID, trace.InputHash, trace.LatencyMs)

	excerptIDs, err := json.Marshal(trace.ExcerptIDs)
	if err != nil {
		return &StorageError{Op: "encode", Err: err}
	}
	promptVersions, err := json.Marshal(trace.PromptVersions)
	if err != nil {
		return &StorageError{Op: "encode", Err: err}
	}
	outputHashes, err := json.Marshal(trace.AgentOutputHashes)
	if err != nil {
		return &StorageError{Op: "encode", Err: err}
	}

	var resultJSON sql.NullString
	if result != nil {
		blob, err := json.Marshal(result)
		if err != nil {
			return &StorageError{Op: "encode", Err: err}
		}
		resultJSON = sql.NullString{String: string(blob), Valid: true}
	}

	timestamp := trace.Timestamp
	if timestamp == "" {
		timestamp = schema.NowTimestamp()
	}

	_, err = ts.db.Exec(`
		INSERT OR REPLACE INTO traces
		(run_id, input_hash, question, excerpt_ids, prompt_versions,
		 agent_output_hashes, final_output_hash, result_json,
		 replayed, timestamp, latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trace.RunID,
		trace.InputHash,
		trace.Question,
		string(excerptIDs),
		string(promptVersions),
		string(outputHashes),
		trace.FinalOutputHash,
		resultJSON,
		boolToInt(trace.Replayed),
		timestamp,
		trace.LatencyMs,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to store trace %s: %v", trace.RunID, err)
		return &StorageError{Op: "write", Err: err}
	}

	logging.StoreDebug("Trace stored: %s", trace.RunID)
	return nil
}

// GetCachedResult returns the cached full result for an input hash, or
// (nil, nil) when no record with a result blob exists.
func (ts *TraceStore) GetCachedResult(inputHash string) (*schema.RunResult, error) {
	timer := logging.StartTimer(logging.CategoryStore, "GetCachedResult")
	defer timer.Stop()

	ts.mu.RLock()
	defer ts.mu.RUnlock()

	var resultJSON sql.NullString
	err := ts.db.QueryRow(
		"SELECT result_json FROM traces WHERE input_hash = ? ORDER BY timestamp ASC LIMIT 1",
		inputHash,
	).Scan(&resultJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "read", Err: err}
	}
	if !resultJSON.Valid || resultJSON.String == "" {
		return nil, nil
	}

	result, err := schema.DecodeResult([]byte(resultJSON.String))
	if err != nil {
		return nil, &StorageError{Op: "decode", Err: err}
	}

	logging.StoreDebug("Cache hit for input_hash=%.12s (run_id=%s)", inputHash, result.RunID)
	return result, nil
}

// GetTrace returns a trace by run id, or (nil, nil) when not found.
func (ts *TraceStore) GetTrace(runID string) (*schema.RunTrace, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	row := ts.db.QueryRow(`
		SELECT run_id, input_hash, question, excerpt_ids, prompt_versions,
		       agent_output_hashes, final_output_hash, replayed, timestamp, latency_ms
		FROM traces WHERE run_id = ?`, runID)

	trace, err := scanTrace(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "read", Err: err}
	}
	return trace, nil
}

// ListTraces returns recent traces, most recent first.
func (ts *TraceStore) ListTraces(limit int) ([]schema.RunTrace, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := ts.db.Query(`
		SELECT run_id, input_hash, question, excerpt_ids, prompt_versions,
		       agent_output_hashes, final_output_hash, replayed, timestamp, latency_ms
		FROM traces
		ORDER BY timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, &StorageError{Op: "read", Err: err}
	}
	defer rows.Close()

	var traces []schema.RunTrace
	for rows.Next() {
		trace, err := scanTrace(rows)
		if err != nil {
			return nil, &StorageError{Op: "scan", Err: err}
		}
		traces = append(traces, *trace)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "scan", Err: err}
	}

	logging.StoreDebug("Listed %d traces (limit=%d)", len(traces), limit)
	return traces, nil
}

// Close closes the underlying database.
func (ts *TraceStore) Close() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.db.Close()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrace(row rowScanner) (*schema.RunTrace, error) {
	var t schema.RunTrace
	var excerptIDs, promptVersions string
	var outputHashes, finalHash sql.NullString
	var replayed int
	var latency sql.NullInt64

	err := row.Scan(
		&t.RunID, &t.InputHash, &t.Question, &excerptIDs, &promptVersions,
		&outputHashes, &finalHash, &replayed, &t.Timestamp, &latency,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(excerptIDs), &t.ExcerptIDs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(promptVersions), &t.PromptVersions); err != nil {
		return nil, err
	}
	t.AgentOutputHashes = map[string]string{}
	if outputHashes.Valid && outputHashes.String != "" {
		if err := json.Unmarshal([]byte(outputHashes.String), &t.AgentOutputHashes); err != nil {
			return nil, err
		}
	}
	if finalHash.Valid {
		t.FinalOutputHash = finalHash.String
	}
	t.Replayed = replayed != 0
	if latency.Valid {
		t.LatencyMs = latency.Int64
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
