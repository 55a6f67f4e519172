package orchestrator

import (
	"fmt"
	"strings"

	"proofgate/internal/schema"
)

// buildContext assembles the shared textual context handed to the three
// parallel agents: the question plus all excerpts grouped and labeled by
// document type, each introduced by its cite token.
func buildContext(question string, excerpts schema.ExcerptSet) string {
	var b strings.Builder

	b.WriteString("## QUESTION\n")
	b.WriteString(question)
	b.WriteString("\n")

	sections := []struct {
		label   string
		docType schema.DocType
	}{
		{"POLICY_EXCERPTS", schema.DocTypePolicy},
		{"CONTRACT_EXCERPTS", schema.DocTypeContract},
		{"EVIDENCE_EXCERPTS", schema.DocTypeEvidence},
	}

	for _, section := range sections {
		b.WriteString("\n## ")
		b.WriteString(section.label)
		b.WriteString("\n")
		for _, e := range excerpts[section.docType] {
			b.WriteString(e.CiteToken)
			b.WriteString("\n")
			b.WriteString(e.Text)
			b.WriteString("\n\n")
		}
	}

	return b.String()
}

// buildJudgeContext summarizes the three settled outputs for the judge:
// stance, structured fields, rationale, and citations per agent, plus the
// original question.
func buildJudgeContext(question string, outputs map[string]schema.AgentOutput) string {
	policy := outputs[schema.AgentPolicy].(*schema.PolicyOutput)
	risk := outputs[schema.AgentRisk].(*schema.RiskOutput)
	evidence := outputs[schema.AgentEvidence].(*schema.EvidenceOutput)

	return fmt.Sprintf(`## QUESTION
%s

## POLICY_AGENT_OUTPUT
Stance: %s
Conditions: %v
Rationale: %s
Citations: %v

## RISK_AGENT_OUTPUT
Stance: %s
Risk Flags: %v
Hard Stops: %v
Rationale: %s
Citations: %v

## EVIDENCE_AGENT_OUTPUT
Stance: %s
Available Evidence: %v
Missing Evidence: %v
Rationale: %s
Citations: %v
`,
		question,
		policy.Stance, policy.Conditions, policy.Rationale, policy.Citations,
		risk.Stance, risk.RiskFlags, risk.HardStops, risk.Rationale, risk.Citations,
		evidence.Stance, evidence.AvailableEvidence, evidence.MissingEvidence, evidence.Rationale, evidence.Citations,
	)
}
