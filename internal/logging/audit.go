// Audit logging for the judgment pipeline. Events are appended as JSON lines
// to .proofgate/logs/audit.jsonl, one event per pipeline state transition, so
// a run's full history can be reconstructed independently of the trace store.
package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType classifies a pipeline audit event.
type AuditEventType string

const (
	// Run lifecycle
	AuditRunStart      AuditEventType = "run_start"
	AuditRunReplay     AuditEventType = "run_replay"
	AuditRunVerdict    AuditEventType = "run_verdict"
	AuditRunFailClosed AuditEventType = "run_fail_closed"

	// Agent invocations
	AuditAgentInvoke   AuditEventType = "agent_invoke"
	AuditAgentRetry    AuditEventType = "agent_retry"
	AuditAgentRejected AuditEventType = "agent_rejected"

	// Guard decisions
	AuditGuardViolation AuditEventType = "guard_violation"

	// Evidence pack
	AuditPackReload AuditEventType = "pack_reload"
)

// AuditEvent is one structured audit log entry.
type AuditEvent struct {
	Timestamp  int64          `json:"ts"` // Unix milliseconds
	EventType  AuditEventType `json:"event"`
	RunID      string         `json:"run_id,omitempty"`
	Agent      string         `json:"agent,omitempty"`
	Success    bool           `json:"success"`
	DurationMs int64          `json:"dur_ms,omitempty"`
	Error      string         `json:"error,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

var (
	auditFile *os.File
	auditMu   sync.Mutex
)

// InitAudit opens the audit log file. No-op when debug mode is off; audit
// events are then dropped silently like every other log line.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}
	path := filepath.Join(logsDir, "audit.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	auditFile = f
	return nil
}

// CloseAudit closes the audit log file.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		_ = auditFile.Close()
		auditFile = nil
	}
}

// AuditLogger emits audit events correlated to one run.
type AuditLogger struct {
	runID string
}

// Audit returns an audit logger with no run correlation.
func Audit() *AuditLogger {
	return &AuditLogger{}
}

// AuditRun returns an audit logger whose events carry the given run id.
func AuditRun(runID string) *AuditLogger {
	return &AuditLogger{runID: runID}
}

// Log appends one event. Timestamp and run correlation are filled in.
func (a *AuditLogger) Log(event AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile == nil {
		return
	}

	event.Timestamp = time.Now().UnixMilli()
	if event.RunID == "" {
		event.RunID = a.runID
	}

	line, err := json.Marshal(event)
	if err != nil {
		return
	}
	_, _ = auditFile.Write(append(line, '\n'))
}

// RunStart records a run entering the pipeline.
func (a *AuditLogger) RunStart(inputHash string, excerptCount int) {
	a.Log(AuditEvent{
		EventType: AuditRunStart,
		Success:   true,
		Fields:    map[string]any{"input_hash": inputHash, "excerpts": excerptCount},
	})
}

// RunReplay records a cache hit served instead of a fresh run.
func (a *AuditLogger) RunReplay(inputHash, originalRunID string) {
	a.Log(AuditEvent{
		EventType: AuditRunReplay,
		Success:   true,
		Fields:    map[string]any{"input_hash": inputHash, "original_run": originalRunID},
	})
}

// RunVerdict records a completed run and its decision.
func (a *AuditLogger) RunVerdict(decision, ruleApplied string, latencyMs int64) {
	a.Log(AuditEvent{
		EventType:  AuditRunVerdict,
		Success:    true,
		DurationMs: latencyMs,
		Fields:     map[string]any{"decision": decision, "rule": ruleApplied},
	})
}

// RunFailClosed records a run collapsing into the conservative verdict.
func (a *AuditLogger) RunFailClosed(reason string) {
	a.Log(AuditEvent{
		EventType: AuditRunFailClosed,
		Success:   false,
		Error:     reason,
	})
}

// AgentRetry records a corrected re-invocation after a citation violation.
func (a *AuditLogger) AgentRetry(agent string, invalidIDs []string) {
	a.Log(AuditEvent{
		EventType: AuditAgentRetry,
		Agent:     agent,
		Success:   false,
		Fields:    map[string]any{"invalid_ids": invalidIDs},
	})
}

// AgentRejected records an agent exhausting its retry budget or failing
// outright.
func (a *AuditLogger) AgentRejected(agent string, err error) {
	a.Log(AuditEvent{
		EventType: AuditAgentRejected,
		Agent:     agent,
		Success:   false,
		Error:     err.Error(),
	})
}

// GuardViolation records a citation whitelist failure.
func (a *AuditLogger) GuardViolation(agent string, invalidIDs []string) {
	a.Log(AuditEvent{
		EventType: AuditGuardViolation,
		Agent:     agent,
		Success:   false,
		Fields:    map[string]any{"invalid_ids": invalidIDs},
	})
}

// PackReload records an evidence pack reload.
func (a *AuditLogger) PackReload(docCount, excerptCount int) {
	a.Log(AuditEvent{
		EventType: AuditPackReload,
		Success:   true,
		Fields:    map[string]any{"documents": docCount, "excerpts": excerptCount},
	})
}
