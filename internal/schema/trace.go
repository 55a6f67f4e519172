package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// TimestampLayout is RFC 3339 with fixed-width nanoseconds. time.RFC3339Nano
// trims trailing zeros from the fraction, so its strings do not sort in
// chronological order within a second; the fixed-width form keeps lexical
// order equal to time order, which the trace store relies on for ORDER BY.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// NowTimestamp returns the current UTC time formatted with TimestampLayout.
func NowTimestamp() string {
	return time.Now().UTC().Format(TimestampLayout)
}

// RunTrace records one orchestrator run for auditability and replay. Created
// once per run; immutable after creation except for the Replayed flag, which is
// set only on the in-memory copy served from cache, never rewritten in storage.
type RunTrace struct {
	RunID             string            `json:"run_id"`
	InputHash         string            `json:"input_hash"`
	Question          string            `json:"question"`
	ExcerptIDs        []string          `json:"excerpt_ids"`
	PromptVersions    map[string]string `json:"prompt_versions"`
	AgentOutputHashes map[string]string `json:"agent_output_hashes"`
	FinalOutputHash   string            `json:"final_output_hash"`
	Replayed          bool              `json:"replayed"`
	Timestamp         string            `json:"timestamp"`
	LatencyMs         int64             `json:"latency_ms"`
}

// RunResult is the full object returned to callers and cached by the trace
// store. AgentOutputs is empty on the fail-closed path.
type RunResult struct {
	RunID        string                 `json:"run_id"`
	Verdict      *Verdict               `json:"verdict"`
	AgentOutputs map[string]AgentOutput `json:"agent_outputs"`
	Trace        RunTrace               `json:"trace"`
	ExcerptsUsed []Excerpt              `json:"excerpts_used,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

// resultAlias mirrors RunResult with concrete output types so the cached JSON
// blob round-trips without losing the per-role shapes.
type resultAlias struct {
	RunID        string                     `json:"run_id"`
	Verdict      *Verdict                   `json:"verdict"`
	AgentOutputs map[string]json.RawMessage `json:"agent_outputs"`
	Trace        RunTrace                   `json:"trace"`
	ExcerptsUsed []Excerpt                  `json:"excerpts_used,omitempty"`
	Error        string                     `json:"error,omitempty"`
}

// DecodeResult parses a serialized RunResult, restoring the typed agent
// outputs by role name.
func DecodeResult(raw []byte) (*RunResult, error) {
	var alias resultAlias
	if err := json.Unmarshal(raw, &alias); err != nil {
		return nil, fmt.Errorf("decode run result: %w", err)
	}
	result := &RunResult{
		RunID:        alias.RunID,
		Verdict:      alias.Verdict,
		AgentOutputs: make(map[string]AgentOutput, len(alias.AgentOutputs)),
		Trace:        alias.Trace,
		ExcerptsUsed: alias.ExcerptsUsed,
		Error:        alias.Error,
	}
	for agent, raw := range alias.AgentOutputs {
		out, err := DecodeOutput(agent, raw)
		if err != nil {
			return nil, err
		}
		result.AgentOutputs[agent] = out
	}
	return result, nil
}

// ComputeInputHash derives the idempotence key for a run. Excerpt ids and
// prompt-version entries are sorted before joining so entry order never
// affects the hash.
func ComputeInputHash(question string, excerptIDs []string, promptVersions map[string]string) string {
	ids := append([]string(nil), excerptIDs...)
	sort.Strings(ids)

	pairs := make([]string, 0, len(promptVersions))
	for name, version := range promptVersions {
		pairs = append(pairs, name+":"+version)
	}
	sort.Strings(pairs)

	payload := question + "|" + strings.Join(ids, ",") + "|" + strings.Join(pairs, ",")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// ComputeOutputHash hashes the canonical JSON form of an agent output. Keys
// are sorted so field order in the struct definition never matters.
func ComputeOutputHash(output any) string {
	canonical, err := canonicalJSON(output)
	if err != nil {
		// Hash the error string rather than panic; callers only compare hashes.
		canonical = []byte(fmt.Sprintf("unhashable:%v", err))
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// canonicalJSON marshals v, then re-marshals through a generic value so that
// object keys come out sorted regardless of struct field order.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
