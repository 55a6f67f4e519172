package retrieve

import (
	"fmt"
	"testing"

	"proofgate/internal/config"
	"proofgate/internal/schema"
)

func packOf(policyN, contractN, evidenceN int) schema.ExcerptSet {
	set := schema.ExcerptSet{}
	add := func(dt schema.DocType, prefix string, n int) {
		for i := 1; i <= n; i++ {
			id := fmt.Sprintf("%s-%03d", prefix, i)
			set[dt] = append(set[dt], schema.NewExcerpt(id, "doc", dt, "text "+id))
		}
	}
	add(schema.DocTypePolicy, "POL", policyN)
	add(schema.DocTypeContract, "CON", contractN)
	add(schema.DocTypeEvidence, "EVI", evidenceN)
	return set
}

func TestFirstNAppliesLimits(t *testing.T) {
	limits := config.RetrievalConfig{PolicyLimit: 2, ContractLimit: 1, EvidenceLimit: 3}
	r := NewFirstN(packOf(5, 5, 2), limits)

	got := r.Retrieve("any question")

	if len(got[schema.DocTypePolicy]) != 2 {
		t.Errorf("policy = %d, want 2", len(got[schema.DocTypePolicy]))
	}
	if len(got[schema.DocTypeContract]) != 1 {
		t.Errorf("contract = %d, want 1", len(got[schema.DocTypeContract]))
	}
	// Fewer excerpts than the limit: take what exists.
	if len(got[schema.DocTypeEvidence]) != 2 {
		t.Errorf("evidence = %d, want 2", len(got[schema.DocTypeEvidence]))
	}
}

func TestFirstNPreservesPackOrder(t *testing.T) {
	r := NewFirstN(packOf(3, 0, 0), config.RetrievalConfig{PolicyLimit: 2})

	got := r.Retrieve("")
	if got[schema.DocTypePolicy][0].ExcerptID != "POL-001" || got[schema.DocTypePolicy][1].ExcerptID != "POL-002" {
		t.Errorf("selection out of pack order: %v", got.IDs())
	}
}

func TestFirstNExcludesIDs(t *testing.T) {
	limits := config.RetrievalConfig{EvidenceLimit: 2}
	r := NewFirstN(packOf(0, 0, 3), limits, WithExcludedIDs("EVI-001"))

	got := r.Retrieve("")

	ids := got.IDs()
	if len(ids) != 2 {
		t.Fatalf("IDs() = %v, want 2 entries", ids)
	}
	for _, id := range ids {
		if id == "EVI-001" {
			t.Errorf("excluded id retrieved: %v", ids)
		}
	}
	// Exclusion happens before the limit, so the next candidates fill in.
	if ids[0] != "EVI-002" || ids[1] != "EVI-003" {
		t.Errorf("IDs() = %v, want [EVI-002 EVI-003]", ids)
	}
}

func TestFirstNZeroLimitMeansUnbounded(t *testing.T) {
	r := NewFirstN(packOf(4, 0, 0), config.RetrievalConfig{})

	got := r.Retrieve("")
	if len(got[schema.DocTypePolicy]) != 4 {
		t.Errorf("policy = %d, want all 4 with no limit", len(got[schema.DocTypePolicy]))
	}
}

func TestFirstNIgnoresQuestion(t *testing.T) {
	r := NewFirstN(packOf(2, 2, 2), config.RetrievalConfig{PolicyLimit: 1, ContractLimit: 1, EvidenceLimit: 1})

	a := r.Retrieve("question one")
	b := r.Retrieve("completely different question")

	if fmt.Sprint(a.IDs()) != fmt.Sprint(b.IDs()) {
		t.Errorf("retrieval depended on the question: %v vs %v", a.IDs(), b.IDs())
	}
}
