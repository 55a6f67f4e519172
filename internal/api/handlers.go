package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"proofgate/internal/logging"
	"proofgate/internal/schema"
)

// JudgeRequest is the body of POST /api/judge.
type JudgeRequest struct {
	Question string `json:"question"`
	// IncludeAcceptanceEmail attaches the acceptance email excerpt to the
	// evidence pack for this run.
	IncludeAcceptanceEmail bool `json:"include_acceptance_email"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// TraceListResponse is the body of GET /api/traces.
type TraceListResponse struct {
	Traces []schema.RunTrace `json:"traces"`
	Count  int               `json:"count"`
}

// ExcerptListResponse is the body of GET /api/excerpts.
type ExcerptListResponse struct {
	Excerpts []schema.Excerpt `json:"excerpts"`
	Count    int              `json:"count"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Version: Version})
}

// handleJudge runs the full judgment pipeline for a question.
func (s *Server) handleJudge(w http.ResponseWriter, r *http.Request) {
	var req JudgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	logging.API("judge request: question_len=%d include_acceptance=%v", len(req.Question), req.IncludeAcceptanceEmail)

	excerpts := s.retriever(req.IncludeAcceptanceEmail).Retrieve(req.Question)

	result, err := s.orch.Run(r.Context(), req.Question, excerpts)
	if err != nil {
		// Storage failure on the success path; fail-closed results come back
		// as results, not errors.
		logging.Get(logging.CategoryAPI).Error("judge run failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListTraces(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	traces, err := s.traces.ListTraces(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if traces == nil {
		traces = []schema.RunTrace{}
	}
	writeJSON(w, http.StatusOK, TraceListResponse{Traces: traces, Count: len(traces)})
}

func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	trace, err := s.traces.GetTrace(runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if trace == nil {
		writeError(w, http.StatusNotFound, "trace not found: "+runID)
		return
	}
	writeJSON(w, http.StatusOK, trace)
}

func (s *Server) handleListExcerpts(w http.ResponseWriter, r *http.Request) {
	includeAcceptance := r.URL.Query().Get("include_acceptance") == "true"

	// Same hold-back as the judge path: the acceptance email stays out of the
	// listing unless the caller opts in.
	excerpts := []schema.Excerpt{}
	for _, e := range s.packs.Current().AllExcerpts() {
		if !includeAcceptance && e.ExcerptID == AcceptanceExcerptID {
			continue
		}
		excerpts = append(excerpts, e)
	}
	writeJSON(w, http.StatusOK, ExcerptListResponse{Excerpts: excerpts, Count: len(excerpts)})
}

// AttachEvidenceResponse is the body of POST /api/evidence/attach.
type AttachEvidenceResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	SizeBytes int    `json:"size_bytes"`
	Note      string `json:"note"`
}

// handleAttachEvidence saves an uploaded evidence file into the docs
// directory. Markdown documents are picked up by the pack watcher on the next
// reload cycle.
func (s *Server) handleAttachEvidence(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required: "+err.Error())
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload: "+err.Error())
		return
	}

	name := filepath.Base(header.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	if err := os.WriteFile(filepath.Join(s.cfg.DocsDir(), name), content, 0o644); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save evidence: "+err.Error())
		return
	}

	logging.API("evidence attached: %s (%d bytes)", name, len(content))

	note := "markdown documents are loaded into the evidence pack automatically"
	if !strings.HasSuffix(name, ".md") {
		note = "only markdown documents are loaded into the evidence pack"
	}
	writeJSON(w, http.StatusOK, AttachEvidenceResponse{
		Status:    "success",
		Message:   fmt.Sprintf("Evidence file %q attached", name),
		SizeBytes: len(content),
		Note:      note,
	})
}

// DemoScenario describes one canned walkthrough of the judgment pipeline.
type DemoScenario struct {
	Name                   string `json:"name"`
	Question               string `json:"question"`
	IncludeAcceptanceEmail bool   `json:"include_acceptance_email"`
	ExpectedVerdict        string `json:"expected_verdict"`
	Description            string `json:"description"`
}

// DemoScenariosResponse is the body of GET /api/demo/scenarios.
type DemoScenariosResponse struct {
	Scenarios []DemoScenario `json:"scenarios"`
}

var demoScenarios = []DemoScenario{
	{
		Name:                   "Scenario A: Missing Acceptance",
		Question:               "Can we recognize ₹12Cr revenue this quarter for Customer K?",
		IncludeAcceptanceEmail: false,
		ExpectedVerdict:        schema.DecisionInsufficientEvidence,
		Description:            "Without the acceptance email, the evidence agent reports the acceptance criterion as MISSING",
	},
	{
		Name:                   "Scenario B: With Acceptance",
		Question:               "Can we recognize ₹12Cr revenue this quarter for Customer K?",
		IncludeAcceptanceEmail: true,
		ExpectedVerdict:        schema.DecisionApprove,
		Description:            "With the acceptance email attached, the verdict flips to APPROVE",
	},
	{
		Name:                   "Scenario C: Hard-Stop",
		Question:               "Can we recognize ₹12Cr revenue this quarter for Customer K?",
		IncludeAcceptanceEmail: false,
		ExpectedVerdict:        schema.DecisionInsufficientEvidence + " or " + schema.DecisionReject,
		Description:            "The risk agent may flag the 30-day termination clause as a hard stop",
	},
}

func (s *Server) handleDemoScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DemoScenariosResponse{Scenarios: demoScenarios})
}
