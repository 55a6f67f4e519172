// Package retrieve selects which excerpts from a loaded pack reach a run.
// The current implementation is deliberately trivial: first N per document
// type, no ranking. It exists as a seam so a real retriever can replace it
// without touching the orchestrator.
package retrieve

import (
	"proofgate/internal/config"
	"proofgate/internal/schema"
)

// Retriever maps a question to the excerpts a run may cite.
type Retriever interface {
	Retrieve(question string) schema.ExcerptSet
}

// FirstN returns the first N excerpts of each document type, in pack order.
// The question is ignored.
type FirstN struct {
	excerpts schema.ExcerptSet
	limits   config.RetrievalConfig
	exclude  map[string]bool
}

// Option customizes a FirstN retriever.
type Option func(*FirstN)

// WithExcludedIDs drops specific excerpt ids before applying limits. Used to
// simulate evidence that has not been attached yet.
func WithExcludedIDs(ids ...string) Option {
	return func(r *FirstN) {
		for _, id := range ids {
			r.exclude[id] = true
		}
	}
}

// NewFirstN builds a retriever over the given excerpts with per-type limits.
func NewFirstN(excerpts schema.ExcerptSet, limits config.RetrievalConfig, opts ...Option) *FirstN {
	r := &FirstN{
		excerpts: excerpts,
		limits:   limits,
		exclude:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns the first N non-excluded excerpts per document type.
func (r *FirstN) Retrieve(_ string) schema.ExcerptSet {
	limitFor := map[schema.DocType]int{
		schema.DocTypePolicy:   r.limits.PolicyLimit,
		schema.DocTypeContract: r.limits.ContractLimit,
		schema.DocTypeEvidence: r.limits.EvidenceLimit,
	}

	selected := schema.ExcerptSet{}
	for _, dt := range schema.DocTypes {
		limit := limitFor[dt]
		for _, e := range r.excerpts[dt] {
			if r.exclude[e.ExcerptID] {
				continue
			}
			if limit > 0 && len(selected[dt]) >= limit {
				break
			}
			selected[dt] = append(selected[dt], e)
		}
	}
	return selected
}
