// Package orchestrator coordinates the judgment pipeline: it fans a question
// and its evidence pack out to three independent reasoning agents running
// concurrently, enforces the citation guard as a hard gate with bounded
// retry, resolves their disagreement through a single judge invocation, and
// persists a hashed trace of every successful run for replay and audit.
//
// This is where multi-agent stops being theatre:
// - Policy, Risk, Evidence run in parallel with conflicting objectives
// - The judge resolves conflicts with deterministic rules
// - The guard enforces zero hallucinated citations
// - Any uncertainty fails closed, never open
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"proofgate/internal/agents"
	"proofgate/internal/guard"
	"proofgate/internal/logging"
	"proofgate/internal/schema"
	"proofgate/internal/store"
)

// parallelAgents are the three independently-retried roles of the fanout
// phase, in result-reporting order.
var parallelAgents = []string{schema.AgentPolicy, schema.AgentRisk, schema.AgentEvidence}

// Orchestrator drives a full run. Construct once at process start and inject
// wherever runs are triggered; it holds no per-run state.
type Orchestrator struct {
	invoker        agents.Invoker
	traces         *store.TraceStore
	promptVersions map[string]string
	deterministic  bool
	maxRetries     int
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithDeterministicMode toggles cache lookup and replay of identical inputs.
func WithDeterministicMode(on bool) Option {
	return func(o *Orchestrator) { o.deterministic = on }
}

// WithMaxRetries sets the citation-correction retry budget per agent.
func WithMaxRetries(n int) Option {
	return func(o *Orchestrator) { o.maxRetries = n }
}

// New creates an Orchestrator over the given invoker and trace store.
// Defaults: deterministic mode on, one correction retry.
func New(invoker agents.Invoker, traces *store.TraceStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		invoker:        invoker,
		traces:         traces,
		promptVersions: agents.PromptVersions(),
		deterministic:  true,
		maxRetries:     1,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// agentSlot carries one parallel invocation's settled outcome across the join.
type agentSlot struct {
	output schema.AgentOutput
	err    error
}

// Run executes the full judgment pipeline for a question and its evidence
// pack. It never returns a non-nil error for agent or guard failures - those
// collapse into a fail-closed result. The error return is reserved for
// storage failures, which must be surfaced rather than silently swallowed.
func (o *Orchestrator) Run(ctx context.Context, question string, excerpts schema.ExcerptSet) (*schema.RunResult, error) {
	timer := logging.StartTimer(logging.CategoryOrchestrator, "Run")
	defer timer.Stop()

	start := time.Now()
	runID := uuid.NewString()[:8]

	allExcerpts := excerpts.Flatten()
	excerptIDs := excerpts.IDs()
	allowed := excerpts.AllowedCitations()

	inputHash := schema.ComputeInputHash(question, excerptIDs, o.promptVersions)
	logging.Orchestrator("run %s: question_len=%d excerpts=%d input_hash=%.12s", runID, len(question), len(allExcerpts), inputHash)

	audit := logging.AuditRun(runID)
	audit.RunStart(inputHash, len(allExcerpts))

	// Replay path: serve a prior result for identical inputs. The replayed
	// flag is overlaid on the returned copy only; the stored record is left
	// untouched.
	if o.deterministic {
		cached, err := o.traces.GetCachedResult(inputHash)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			cached.Trace.Replayed = true
			logging.Orchestrator("run %s: replayed from cache (original run %s)", runID, cached.RunID)
			audit.RunReplay(inputHash, cached.RunID)
			return cached, nil
		}
	}

	// Parallel phase: three agents, conflicting objectives, one shared
	// context. Each invocation owns its context string and retry counter; a
	// failure in one never aborts the others - they are joined only after
	// all three settle.
	baseContext := buildContext(question, excerpts)

	slots := make([]agentSlot, len(parallelAgents))
	var g errgroup.Group
	for i, agent := range parallelAgents {
		g.Go(func() error {
			output, err := o.runAgentWithRetry(ctx, agent, baseContext, allowed)
			slots[i] = agentSlot{output: output, err: err}
			return nil
		})
	}
	_ = g.Wait()

	outputs := make(map[string]schema.AgentOutput, len(parallelAgents))
	for i, agent := range parallelAgents {
		if err := slots[i].err; err != nil {
			return o.failClosed(runID, question, excerptIDs, fanoutErrorMessage(err)), nil
		}
		outputs[agent] = slots[i].output
	}

	// Resolution phase: one judge invocation, no retry.
	judgeContext := buildJudgeContext(question, outputs)
	judgeOutput, err := o.invoker.Invoke(ctx, schema.AgentJudge, judgeContext)
	if err != nil {
		return o.failClosed(runID, question, excerptIDs, fmt.Sprintf("Judge execution error: %v", err)), nil
	}
	verdict, ok := judgeOutput.(*schema.Verdict)
	if !ok {
		return o.failClosed(runID, question, excerptIDs, fmt.Sprintf("Judge returned unexpected output type %T", judgeOutput)), nil
	}

	// The verdict carries citations too, and is held to the same whitelist.
	// No correction retry here: a judge that fabricates citations from three
	// already-validated inputs is not worth a second opinion.
	if err := guard.Require(verdict, allowed); err != nil {
		return o.failClosed(runID, question, excerptIDs, fmt.Sprintf("Judge citation validation failed: %v", err)), nil
	}

	latency := time.Since(start).Milliseconds()

	outputHashes := make(map[string]string, len(outputs)+1)
	for agent, output := range outputs {
		outputHashes[agent] = schema.ComputeOutputHash(output)
	}
	outputHashes[schema.AgentJudge] = schema.ComputeOutputHash(verdict)

	trace := schema.RunTrace{
		RunID:             runID,
		InputHash:         inputHash,
		Question:          question,
		ExcerptIDs:        excerptIDs,
		PromptVersions:    o.promptVersions,
		AgentOutputHashes: outputHashes,
		FinalOutputHash:   outputHashes[schema.AgentJudge],
		Replayed:          false,
		Timestamp:         schema.NowTimestamp(),
		LatencyMs:         latency,
	}

	result := &schema.RunResult{
		RunID:        runID,
		Verdict:      verdict,
		AgentOutputs: outputs,
		Trace:        trace,
		ExcerptsUsed: allExcerpts,
	}

	// Persistence happens only after all upstream work succeeded; no partial
	// trace is ever visible to readers.
	if err := o.traces.StoreTrace(&trace, result); err != nil {
		return nil, err
	}

	logging.Orchestrator("run %s: verdict=%s rule=%q latency=%dms", runID, verdict.Decision, verdict.RuleApplied, latency)
	audit.RunVerdict(verdict.Decision, verdict.RuleApplied, latency)
	return result, nil
}

// fanoutErrorMessage maps a settled parallel-phase failure to the fail-closed
// message, mirroring the taxonomy split between citation violations and
// everything else.
func fanoutErrorMessage(err error) string {
	var violation *guard.CitationViolation
	if errors.As(err, &violation) {
		return fmt.Sprintf("Citation validation failed: %v", violation.InvalidIDs)
	}
	return fmt.Sprintf("Agent execution error: %v", err)
}

// failClosed produces the conservative terminal result for any pipeline
// failure: an INSUFFICIENT_EVIDENCE verdict at zero confidence, the error
// recorded as a SYSTEM_ERROR condition, and no agent outputs. Partial work
// from agents that did succeed is discarded. Never cached, never persisted -
// re-running identical inputs after a transient failure always retries fully.
func (o *Orchestrator) failClosed(runID, question string, excerptIDs []string, errorMessage string) *schema.RunResult {
	logging.Orchestrator("run %s: FAIL CLOSED: %s", runID, errorMessage)
	logging.AuditRun(runID).RunFailClosed(errorMessage)

	verdict := &schema.Verdict{
		Decision:          schema.DecisionInsufficientEvidence,
		Confidence:        0.0,
		Violations:        []string{},
		ConditionsToAllow: []string{"SYSTEM_ERROR: " + errorMessage},
		Citations:         []string{},
		RuleApplied:       "FAIL_CLOSED_ON_ERROR",
	}

	trace := schema.RunTrace{
		RunID:             runID,
		InputHash:         schema.ComputeInputHash(question, excerptIDs, o.promptVersions),
		Question:          question,
		ExcerptIDs:        excerptIDs,
		PromptVersions:    o.promptVersions,
		AgentOutputHashes: map[string]string{},
		FinalOutputHash:   schema.ComputeOutputHash(verdict),
		Replayed:          false,
		Timestamp:         schema.NowTimestamp(),
	}

	return &schema.RunResult{
		RunID:        runID,
		Verdict:      verdict,
		AgentOutputs: map[string]schema.AgentOutput{},
		Trace:        trace,
		Error:        errorMessage,
	}
}
