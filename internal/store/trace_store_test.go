package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"proofgate/internal/schema"
)

func newStore(t *testing.T) *TraceStore {
	t.Helper()
	ts, err := NewTraceStore(filepath.Join(t.TempDir(), "traces.db"))
	if err != nil {
		t.Fatalf("NewTraceStore() error = %v", err)
	}
	t.Cleanup(func() { ts.Close() })
	return ts
}

func sampleTrace(runID, inputHash string) *schema.RunTrace {
	return &schema.RunTrace{
		RunID:             runID,
		InputHash:         inputHash,
		Question:          "can we recognize revenue?",
		ExcerptIDs:        []string{"POL-001", "EVI-001"},
		PromptVersions:    map[string]string{"policy": "v1", "judge": "v1"},
		AgentOutputHashes: map[string]string{"policy": "aaa", "judge": "bbb"},
		FinalOutputHash:   "bbb",
		Timestamp:         schema.NowTimestamp(),
		LatencyMs:         1200,
	}
}

func sampleResult(trace *schema.RunTrace) *schema.RunResult {
	return &schema.RunResult{
		RunID: trace.RunID,
		Verdict: &schema.Verdict{
			Decision:    schema.DecisionApprove,
			Confidence:  0.9,
			RuleApplied: "RULE_3: No hard stops and evidence sufficient",
		},
		AgentOutputs: map[string]schema.AgentOutput{
			schema.AgentPolicy: &schema.PolicyOutput{
				Stance:    schema.StanceYes,
				Citations: []string{"POL-001"},
			},
		},
		Trace: *trace,
	}
}

func TestStoreAndGetTrace(t *testing.T) {
	ts := newStore(t)
	trace := sampleTrace("run00001", "hash-a")

	if err := ts.StoreTrace(trace, sampleResult(trace)); err != nil {
		t.Fatalf("StoreTrace() error = %v", err)
	}

	got, err := ts.GetTrace("run00001")
	if err != nil {
		t.Fatalf("GetTrace() error = %v", err)
	}
	if got == nil {
		t.Fatalf("GetTrace() = nil for stored trace")
	}
	if got.InputHash != "hash-a" {
		t.Errorf("InputHash = %q", got.InputHash)
	}
	if len(got.ExcerptIDs) != 2 || got.ExcerptIDs[0] != "POL-001" {
		t.Errorf("ExcerptIDs = %v", got.ExcerptIDs)
	}
	if got.PromptVersions["policy"] != "v1" {
		t.Errorf("PromptVersions = %v", got.PromptVersions)
	}
	if got.AgentOutputHashes["judge"] != "bbb" {
		t.Errorf("AgentOutputHashes = %v", got.AgentOutputHashes)
	}
	if got.LatencyMs != 1200 {
		t.Errorf("LatencyMs = %d", got.LatencyMs)
	}
}

func TestGetTraceNotFound(t *testing.T) {
	ts := newStore(t)

	got, err := ts.GetTrace("missing")
	if err != nil {
		t.Fatalf("GetTrace() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetTrace() = %+v, want nil", got)
	}
}

func TestGetCachedResultRoundTrip(t *testing.T) {
	ts := newStore(t)
	trace := sampleTrace("run00002", "hash-b")

	if err := ts.StoreTrace(trace, sampleResult(trace)); err != nil {
		t.Fatalf("StoreTrace() error = %v", err)
	}

	result, err := ts.GetCachedResult("hash-b")
	if err != nil {
		t.Fatalf("GetCachedResult() error = %v", err)
	}
	if result == nil {
		t.Fatalf("GetCachedResult() = nil for stored result")
	}
	if result.RunID != "run00002" {
		t.Errorf("RunID = %q", result.RunID)
	}
	if result.Verdict.Decision != schema.DecisionApprove {
		t.Errorf("Decision = %q", result.Verdict.Decision)
	}

	// Typed outputs survive the round trip.
	policy, ok := result.AgentOutputs[schema.AgentPolicy].(*schema.PolicyOutput)
	if !ok {
		t.Fatalf("policy output type = %T", result.AgentOutputs[schema.AgentPolicy])
	}
	if policy.Stance != schema.StanceYes {
		t.Errorf("policy Stance = %q", policy.Stance)
	}
}

func TestGetCachedResultMiss(t *testing.T) {
	ts := newStore(t)

	result, err := ts.GetCachedResult("no-such-hash")
	if err != nil {
		t.Fatalf("GetCachedResult() error = %v", err)
	}
	if result != nil {
		t.Errorf("GetCachedResult() = %+v, want nil miss", result)
	}
}

func TestGetCachedResultNilResultBlob(t *testing.T) {
	ts := newStore(t)
	trace := sampleTrace("run00003", "hash-c")

	// A trace row without a result blob is not a cache hit.
	if err := ts.StoreTrace(trace, nil); err != nil {
		t.Fatalf("StoreTrace() error = %v", err)
	}

	result, err := ts.GetCachedResult("hash-c")
	if err != nil {
		t.Fatalf("GetCachedResult() error = %v", err)
	}
	if result != nil {
		t.Errorf("GetCachedResult() = %+v for row without result", result)
	}
}

func TestGetCachedResultReturnsEarliest(t *testing.T) {
	ts := newStore(t)

	older := sampleTrace("run-old", "hash-d")
	older.Timestamp = "2026-01-01T00:00:00Z"
	newer := sampleTrace("run-new", "hash-d")
	newer.Timestamp = "2026-02-01T00:00:00Z"

	if err := ts.StoreTrace(newer, sampleResult(newer)); err != nil {
		t.Fatalf("StoreTrace(newer) error = %v", err)
	}
	if err := ts.StoreTrace(older, sampleResult(older)); err != nil {
		t.Fatalf("StoreTrace(older) error = %v", err)
	}

	result, err := ts.GetCachedResult("hash-d")
	if err != nil {
		t.Fatalf("GetCachedResult() error = %v", err)
	}
	if result.RunID != "run-old" {
		t.Errorf("RunID = %q, want the earliest run for the hash", result.RunID)
	}
}

// Timestamps landing inside the same second must still order correctly. The
// fixed-width layout guarantees this; time.RFC3339Nano would trim the trailing
// zeros and put 10:00:05.15 lexically before 10:00:05.1.
func TestSubSecondTimestampOrdering(t *testing.T) {
	ts := newStore(t)

	base := time.Date(2026, 8, 29, 10, 0, 5, 0, time.UTC)
	older := sampleTrace("run-sub-old", "hash-sub")
	older.Timestamp = base.Add(100 * time.Millisecond).Format(schema.TimestampLayout)
	newer := sampleTrace("run-sub-new", "hash-sub")
	newer.Timestamp = base.Add(150 * time.Millisecond).Format(schema.TimestampLayout)

	if err := ts.StoreTrace(older, sampleResult(older)); err != nil {
		t.Fatalf("StoreTrace(older) error = %v", err)
	}
	if err := ts.StoreTrace(newer, sampleResult(newer)); err != nil {
		t.Fatalf("StoreTrace(newer) error = %v", err)
	}

	traces, err := ts.ListTraces(10)
	if err != nil {
		t.Fatalf("ListTraces() error = %v", err)
	}
	if len(traces) != 2 || traces[0].RunID != "run-sub-new" {
		t.Errorf("ListTraces() first = %q, want the newer run", traces[0].RunID)
	}

	result, err := ts.GetCachedResult("hash-sub")
	if err != nil {
		t.Fatalf("GetCachedResult() error = %v", err)
	}
	if result.RunID != "run-sub-old" {
		t.Errorf("GetCachedResult() RunID = %q, want the earliest run", result.RunID)
	}
}

func TestListTracesNewestFirst(t *testing.T) {
	ts := newStore(t)

	for i := 0; i < 3; i++ {
		trace := sampleTrace(fmt.Sprintf("run-%d", i), fmt.Sprintf("hash-%d", i))
		trace.Timestamp = fmt.Sprintf("2026-01-0%dT00:00:00Z", i+1)
		if err := ts.StoreTrace(trace, nil); err != nil {
			t.Fatalf("StoreTrace() error = %v", err)
		}
	}

	traces, err := ts.ListTraces(10)
	if err != nil {
		t.Fatalf("ListTraces() error = %v", err)
	}
	if len(traces) != 3 {
		t.Fatalf("ListTraces() returned %d traces", len(traces))
	}
	if traces[0].RunID != "run-2" || traces[2].RunID != "run-0" {
		t.Errorf("traces out of order: %s, %s, %s", traces[0].RunID, traces[1].RunID, traces[2].RunID)
	}
}

func TestListTracesLimit(t *testing.T) {
	ts := newStore(t)

	for i := 0; i < 5; i++ {
		trace := sampleTrace(fmt.Sprintf("run-%d", i), "hash")
		if err := ts.StoreTrace(trace, nil); err != nil {
			t.Fatalf("StoreTrace() error = %v", err)
		}
	}

	traces, err := ts.ListTraces(2)
	if err != nil {
		t.Fatalf("ListTraces() error = %v", err)
	}
	if len(traces) != 2 {
		t.Errorf("ListTraces(2) returned %d traces", len(traces))
	}
}

func TestStoreTraceUpsert(t *testing.T) {
	ts := newStore(t)
	trace := sampleTrace("run-upsert", "hash-e")

	if err := ts.StoreTrace(trace, nil); err != nil {
		t.Fatalf("StoreTrace() error = %v", err)
	}
	trace.Question = "updated question"
	if err := ts.StoreTrace(trace, nil); err != nil {
		t.Fatalf("StoreTrace() rewrite error = %v", err)
	}

	got, err := ts.GetTrace("run-upsert")
	if err != nil {
		t.Fatalf("GetTrace() error = %v", err)
	}
	if got.Question != "updated question" {
		t.Errorf("Question = %q, upsert did not replace", got.Question)
	}

	traces, err := ts.ListTraces(10)
	if err != nil {
		t.Fatalf("ListTraces() error = %v", err)
	}
	if len(traces) != 1 {
		t.Errorf("upsert created %d rows, want 1", len(traces))
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "traces.db")

	ts, err := NewTraceStore(path)
	if err != nil {
		t.Fatalf("NewTraceStore() error = %v", err)
	}
	trace := sampleTrace("run-persist", "hash-f")
	if err := ts.StoreTrace(trace, sampleResult(trace)); err != nil {
		t.Fatalf("StoreTrace() error = %v", err)
	}
	if err := ts.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewTraceStore(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	result, err := reopened.GetCachedResult("hash-f")
	if err != nil {
		t.Fatalf("GetCachedResult() after reopen error = %v", err)
	}
	if result == nil || result.RunID != "run-persist" {
		t.Errorf("result after reopen = %+v", result)
	}
}
