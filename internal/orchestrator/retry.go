package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"proofgate/internal/guard"
	"proofgate/internal/logging"
	"proofgate/internal/schema"
)

// attemptState models the per-agent retry loop as a bounded state machine so
// the attempt bound and terminal states are testable in isolation.
type attemptState int

const (
	// stateAttempt is the initial invocation with the unmodified context.
	stateAttempt attemptState = iota
	// stateCorrectedRetry is a re-invocation with a correction instruction
	// appended after a citation violation.
	stateCorrectedRetry
	// stateAccepted is the terminal success state: output passed the guard.
	stateAccepted
	// stateRejected is the terminal failure state: retry budget exhausted or
	// the invocation itself failed.
	stateRejected
)

func (s attemptState) String() string {
	switch s {
	case stateAttempt:
		return "ATTEMPT"
	case stateCorrectedRetry:
		return "CORRECTED_RETRY"
	case stateAccepted:
		return "ACCEPTED"
	case stateRejected:
		return "REJECTED"
	}
	return fmt.Sprintf("attemptState(%d)", int(s))
}

// runAgentWithRetry invokes one agent with citation validation and bounded
// correction retry. An agent that keeps citing invalid ids is invoked at most
// maxRetries+1 times. Invocation errors are terminal immediately - only
// citation violations earn a corrected retry.
func (o *Orchestrator) runAgentWithRetry(ctx context.Context, agent, baseContext string, allowed map[string]bool) (schema.AgentOutput, error) {
	input := baseContext
	state := stateAttempt

	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		logging.OrchestratorDebug("agent=%s attempt=%d state=%s", agent, attempt, state)

		output, err := o.invoker.Invoke(ctx, agent, input)
		if err != nil {
			return nil, err
		}

		err = guard.Require(output, allowed)
		if err == nil {
			state = stateAccepted
			logging.OrchestratorDebug("agent=%s attempt=%d state=%s", agent, attempt, state)
			return output, nil
		}

		var violation *guard.CitationViolation
		if errors.As(err, &violation) {
			logging.Audit().GuardViolation(agent, violation.InvalidIDs)
			if attempt < o.maxRetries {
				input += correctionInstruction(violation)
				state = stateCorrectedRetry
				logging.Orchestrator("agent=%s cited invalid ids, retrying with correction", agent)
				logging.Audit().AgentRetry(agent, violation.InvalidIDs)
				continue
			}
		}

		state = stateRejected
		logging.Orchestrator("agent=%s attempt=%d state=%s: %v", agent, attempt, state, err)
		logging.Audit().AgentRejected(agent, err)
		return nil, err
	}

	// Unreachable: the loop always returns from a terminal state.
	return nil, fmt.Errorf("agent %s: retry loop exited without terminal state", agent)
}

// correctionInstruction names the invalid ids and the full allowed set so the
// retried agent can self-correct.
func correctionInstruction(v *guard.CitationViolation) string {
	return fmt.Sprintf(
		"\n\nINVALID_CITATIONS: The following citations are not allowed: [%s]. Allowed citations are: [%s]. Please correct your response.",
		strings.Join(v.InvalidIDs, ", "),
		strings.Join(v.Allowed, ", "),
	)
}
