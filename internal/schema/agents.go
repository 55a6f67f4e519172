package schema

import (
	"encoding/json"
	"fmt"
)

// Agent role names. These key prompt versions, output hashes, and the
// agent_outputs map in results.
const (
	AgentPolicy   = "policy"
	AgentRisk     = "risk"
	AgentEvidence = "evidence"
	AgentJudge    = "judge"
)

// Stance values shared by the policy and risk agents.
const (
	StanceYes            = "YES"
	StanceYesConditional = "YES_CONDITIONAL"
	StanceNo             = "NO"
)

// Evidence sufficiency values.
const (
	EvidenceSufficient = "SUFFICIENT"
	EvidencePartial    = "PARTIAL"
	EvidenceMissing    = "MISSING"
)

// Verdict decisions.
const (
	DecisionApprove              = "APPROVE"
	DecisionReject               = "REJECT"
	DecisionInsufficientEvidence = "INSUFFICIENT_EVIDENCE"
)

// AgentOutput is implemented by every structured output an agent can return.
// The guard only needs the citation list; everything else stays typed per role.
type AgentOutput interface {
	// CitationIDs returns the excerpt ids the output claims to rely on.
	CitationIDs() []string
}

// PolicyOutput is the policy agent's structured output: the permissive
// interpretation of policy and contract clauses.
type PolicyOutput struct {
	Stance     string   `json:"stance"`
	Conditions []string `json:"conditions"`
	Rationale  string   `json:"rationale"`
	Citations  []string `json:"citations"`
}

func (o *PolicyOutput) CitationIDs() []string { return o.Citations }

// Validate rejects outputs whose stance is outside the closed variant set.
func (o *PolicyOutput) Validate() error {
	switch o.Stance {
	case StanceYes, StanceYesConditional, StanceNo:
		return nil
	}
	return fmt.Errorf("policy output: invalid stance %q", o.Stance)
}

// RiskOutput is the risk agent's structured output: flags, hard stops, and a
// conservative stance.
type RiskOutput struct {
	Stance    string   `json:"stance"`
	RiskFlags []string `json:"risk_flags"`
	HardStops []string `json:"hard_stops"`
	Rationale string   `json:"rationale"`
	Citations []string `json:"citations"`
}

func (o *RiskOutput) CitationIDs() []string { return o.Citations }

func (o *RiskOutput) Validate() error {
	switch o.Stance {
	case StanceYes, StanceYesConditional, StanceNo:
		return nil
	}
	return fmt.Errorf("risk output: invalid stance %q", o.Stance)
}

// EvidenceOutput is the evidence agent's structured output: what proof exists
// and what is missing.
type EvidenceOutput struct {
	Stance            string   `json:"stance"`
	AvailableEvidence []string `json:"available_evidence"`
	MissingEvidence   []string `json:"missing_evidence"`
	Rationale         string   `json:"rationale"`
	Citations         []string `json:"citations"`
}

func (o *EvidenceOutput) CitationIDs() []string { return o.Citations }

func (o *EvidenceOutput) Validate() error {
	switch o.Stance {
	case EvidenceSufficient, EvidencePartial, EvidenceMissing:
		return nil
	}
	return fmt.Errorf("evidence output: invalid stance %q", o.Stance)
}

// Verdict is the judge agent's resolution of the three independent stances
// through deterministic rules.
type Verdict struct {
	Decision          string   `json:"verdict"`
	Confidence        float64  `json:"confidence"`
	Violations        []string `json:"violations"`
	ConditionsToAllow []string `json:"conditions_to_allow"`
	Citations         []string `json:"citations"`
	RuleApplied       string   `json:"rule_applied"`
}

func (v *Verdict) CitationIDs() []string { return v.Citations }

func (v *Verdict) Validate() error {
	switch v.Decision {
	case DecisionApprove, DecisionReject, DecisionInsufficientEvidence:
	default:
		return fmt.Errorf("verdict: invalid decision %q", v.Decision)
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return fmt.Errorf("verdict: confidence %v outside [0,1]", v.Confidence)
	}
	return nil
}

// DecodeOutput parses raw JSON into the typed output for the named agent role.
// A schema mismatch (unknown field set, bad stance) is the caller's signal to
// treat the invocation as failed.
func DecodeOutput(agent string, raw []byte) (AgentOutput, error) {
	switch agent {
	case AgentPolicy:
		var o PolicyOutput
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, fmt.Errorf("decode %s output: %w", agent, err)
		}
		if err := o.Validate(); err != nil {
			return nil, err
		}
		return &o, nil
	case AgentRisk:
		var o RiskOutput
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, fmt.Errorf("decode %s output: %w", agent, err)
		}
		if err := o.Validate(); err != nil {
			return nil, err
		}
		return &o, nil
	case AgentEvidence:
		var o EvidenceOutput
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, fmt.Errorf("decode %s output: %w", agent, err)
		}
		if err := o.Validate(); err != nil {
			return nil, err
		}
		return &o, nil
	case AgentJudge:
		var v Verdict
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s output: %w", agent, err)
		}
		if err := v.Validate(); err != nil {
			return nil, err
		}
		return &v, nil
	}
	return nil, fmt.Errorf("unknown agent role %q", agent)
}
