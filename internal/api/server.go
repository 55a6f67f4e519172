// Package api exposes the judgment pipeline over HTTP. Thin glue only: the
// orchestrator and trace store are injected at construction and all business
// rules live behind them.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"proofgate/internal/config"
	"proofgate/internal/ingest"
	"proofgate/internal/logging"
	"proofgate/internal/orchestrator"
	"proofgate/internal/retrieve"
	"proofgate/internal/store"
)

// Version reported by the health endpoint. Set at build time via ldflags.
var Version = "dev"

// Server wires the HTTP surface over the injected components.
type Server struct {
	orch   *orchestrator.Orchestrator
	traces *store.TraceStore
	packs  *ingest.PackWatcher
	cfg    *config.Config
}

// NewServer creates the HTTP server glue. packs supplies the current evidence
// pack; it must already be started.
func NewServer(orch *orchestrator.Orchestrator, traces *store.TraceStore, packs *ingest.PackWatcher, cfg *config.Config) *Server {
	return &Server{orch: orch, traces: traces, packs: packs, cfg: cfg}
}

// Router builds the chi router with all routes registered.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/api/judge", s.handleJudge)
	r.Get("/api/traces", s.handleListTraces)
	r.Get("/api/traces/{runID}", s.handleGetTrace)
	r.Get("/api/excerpts", s.handleListExcerpts)
	r.Post("/api/evidence/attach", s.handleAttachEvidence)
	r.Get("/api/demo/scenarios", s.handleDemoScenarios)

	return r
}

// writeJSON writes a JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Get(logging.CategoryAPI).Error("failed to encode response: %v", err)
	}
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// retriever builds the request-scoped retriever over the current pack.
func (s *Server) retriever(includeAcceptance bool) retrieve.Retriever {
	pack := s.packs.Current()

	limits := s.cfg.Retrieval
	var opts []retrieve.Option
	if !includeAcceptance {
		// The acceptance email is held back unless the caller opts in; this
		// models evidence that has not been attached to the case yet.
		opts = append(opts, retrieve.WithExcludedIDs(AcceptanceExcerptID))
	} else {
		limits.EvidenceLimit++
	}

	return retrieve.NewFirstN(pack.Excerpts, limits, opts...)
}

// AcceptanceExcerptID is the excerpt held back from evidence retrieval until
// a request opts in with include_acceptance_email.
const AcceptanceExcerptID = "EVI-003"
