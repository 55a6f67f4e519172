// Package agents defines the agent invocation boundary: typed structured
// outputs decoded from LLM responses, the provider clients that produce them,
// and the prompts that drive each role.
package agents

import (
	"context"
	"fmt"
	"strings"

	"proofgate/internal/logging"
	"proofgate/internal/schema"
)

// InvocationError wraps any agent-call failure other than a citation
// violation: transport errors, timeouts, and malformed structured output.
type InvocationError struct {
	Agent string
	Err   error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("agent %s invocation failed: %v", e.Agent, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// Invoker is the contract each reasoning agent satisfies: it accepts a text
// context and returns the structured output for the named role. Failures are
// surfaced as *InvocationError.
type Invoker interface {
	Invoke(ctx context.Context, agent string, input string) (schema.AgentOutput, error)
}

// LLMInvoker drives agent roles through an LLMClient, decoding the response
// into the role's typed output at the boundary. A schema mismatch is an
// InvocationError, never a silently-accepted blob.
type LLMInvoker struct {
	client LLMClient
}

// NewLLMInvoker wires an Invoker over the given client.
func NewLLMInvoker(client LLMClient) *LLMInvoker {
	return &LLMInvoker{client: client}
}

// Invoke runs one agent call: system prompt by role, user prompt from the
// orchestrator-built context, JSON decode and validate.
func (inv *LLMInvoker) Invoke(ctx context.Context, agent string, input string) (schema.AgentOutput, error) {
	system := systemPrompt(agent)
	if system == "" {
		return nil, &InvocationError{Agent: agent, Err: fmt.Errorf("unknown agent role")}
	}

	timer := logging.StartTimer(logging.CategoryAgents, "Invoke:"+agent)
	defer timer.Stop()

	logging.AgentsDebug("invoking agent=%s context_len=%d", agent, len(input))

	response, err := inv.client.CompleteWithSystem(ctx, system, input)
	if err != nil {
		logging.Get(logging.CategoryAgents).Error("agent %s call failed: %v", agent, err)
		return nil, &InvocationError{Agent: agent, Err: err}
	}

	output, err := schema.DecodeOutput(agent, []byte(extractJSON(response)))
	if err != nil {
		logging.Get(logging.CategoryAgents).Error("agent %s returned malformed output: %v", agent, err)
		return nil, &InvocationError{Agent: agent, Err: err}
	}

	logging.AgentsDebug("agent=%s returned %d citations", agent, len(output.CitationIDs()))
	return output, nil
}

// extractJSON strips markdown fences and surrounding prose, returning the
// first top-level JSON object in the response. Models occasionally wrap JSON
// despite instructions not to.
func extractJSON(response string) string {
	s := strings.TrimSpace(response)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	if start < 0 {
		return s
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			depth++
		case !inString && c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}
