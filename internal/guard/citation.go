// Package guard enforces the citation whitelist: agents may only cite excerpts
// that were actually provided to the run. Any hallucinated citation triggers a
// retry or a fail-closed verdict upstream.
package guard

import (
	"fmt"
	"sort"

	"proofgate/internal/logging"
	"proofgate/internal/schema"
)

// CitationViolation is returned when an output cites ids outside the allowed
// set. InvalidIDs is sorted and de-duplicated; Allowed is sorted.
type CitationViolation struct {
	InvalidIDs []string
	Allowed    []string
}

func (e *CitationViolation) Error() string {
	return fmt.Sprintf("hallucinated citations detected: %v (allowed: %v)", e.InvalidIDs, e.Allowed)
}

// Validate checks that every citation in the output is in the allowed set.
// Pure function, case-sensitive exact match, no normalization. Returns the
// sorted set difference output.citations - allowed with duplicates removed.
func Validate(output schema.AgentOutput, allowed map[string]bool) (bool, []string) {
	seen := make(map[string]bool)
	var invalid []string
	for _, id := range output.CitationIDs() {
		if allowed[id] || seen[id] {
			continue
		}
		seen[id] = true
		invalid = append(invalid, id)
	}
	sort.Strings(invalid)

	if len(invalid) > 0 {
		logging.GuardDebug("citation check failed: %d invalid of %d cited", len(invalid), len(output.CitationIDs()))
	}
	return len(invalid) == 0, invalid
}

// Require validates and returns a typed *CitationViolation when the output
// cites anything outside the allowed set. Used by the orchestrator's retry
// wrapper.
func Require(output schema.AgentOutput, allowed map[string]bool) error {
	ok, invalid := Validate(output, allowed)
	if ok {
		return nil
	}
	return &CitationViolation{
		InvalidIDs: invalid,
		Allowed:    SortedIDs(allowed),
	}
}

// AgentResult holds the per-agent outcome of a batch validation.
type AgentResult struct {
	Valid      bool     `json:"is_valid"`
	InvalidIDs []string `json:"hallucinated"`
}

// ValidateAll runs validation across multiple agent outputs and returns
// per-agent results keyed by agent name.
func ValidateAll(outputs map[string]schema.AgentOutput, allowed map[string]bool) map[string]AgentResult {
	results := make(map[string]AgentResult, len(outputs))
	for agent, output := range outputs {
		ok, invalid := Validate(output, allowed)
		results[agent] = AgentResult{Valid: ok, InvalidIDs: invalid}
	}
	return results
}

// AllCitations unions every citation across the given outputs. Used for audit
// reporting, not enforcement.
func AllCitations(outputs map[string]schema.AgentOutput) []string {
	set := make(map[string]bool)
	for _, output := range outputs {
		for _, id := range output.CitationIDs() {
			set[id] = true
		}
	}
	return SortedIDs(set)
}

// SortedIDs returns the keys of an id set in sorted order.
func SortedIDs(set map[string]bool) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
