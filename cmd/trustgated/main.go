// Command trustgated runs the read-only audit/approval query surface and
// the two human-decision endpoints (approve/reject) described in
// SPEC_FULL.md §6. It is glue around the approval store and audit log, not
// part of the gate/router/commit core, and carries no additional domain
// semantics beyond calling into those stores.
//
// # Configuration
//
// Environment variables:
//
//	TRUSTGATED_ADDR      - HTTP listen address (default: ":8080")
//	DATABASE_URL         - Postgres DSN for both stores (required)
package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/kauf3r/agent-trust-layer/approval"
	approvalpg "github.com/kauf3r/agent-trust-layer/approval/postgres"
	"github.com/kauf3r/agent-trust-layer/audit"
	auditpg "github.com/kauf3r/agent-trust-layer/audit/postgres"
	"github.com/kauf3r/agent-trust-layer/schema"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	addr := envOr("TRUSTGATED_ADDR", ":8080")
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return errors.New("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := approvalpg.Migrate(db); err != nil {
		return err
	}
	if err := auditpg.Migrate(db); err != nil {
		return err
	}

	sqlxDB := sqlx.NewDb(db, "postgres")
	srv := &server{
		approvals: approvalpg.New(sqlxDB),
		auditLog:  auditpg.New(sqlxDB),
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
	}))
	srv.routes(r)

	log.Printf("trustgated listening on %s", addr)
	return http.ListenAndServe(addr, r)
}

type server struct {
	approvals approval.Store
	auditLog  audit.Store
}

func (s *server) routes(r chi.Router) {
	r.Get("/approvals/pending", s.handlePendingApprovals)
	r.Get("/approvals/{id}", s.handleGetApproval)
	r.Post("/approvals/{id}/approve", s.handleDecide(schema.DecisionApprove))
	r.Post("/approvals/{id}/reject", s.handleDecide(schema.DecisionReject))
	r.Get("/audit/events", s.handleQueryEvents)
	r.Get("/audit/stats", s.handleStats)
}

func (s *server) handlePendingApprovals(w http.ResponseWriter, r *http.Request) {
	filter := approval.PendingFilter{
		Domain:   r.URL.Query().Get("domain"),
		Workflow: r.URL.Query().Get("workflow"),
		RunID:    r.URL.Query().Get("run_id"),
	}
	requests, err := s.approvals.GetPendingRequests(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

func (s *server) handleGetApproval(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, err := s.approvals.GetRequest(r.Context(), id)
	if errors.Is(err, approval.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type decideBody struct {
	DecidedBy string `json:"decided_by"`
	Notes     string `json:"notes"`
}

func (s *server) handleDecide(kind schema.DecisionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		var body decideBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if body.DecidedBy == "" {
			writeError(w, http.StatusBadRequest, errors.New("decided_by is required"))
			return
		}
		decision, err := s.approvals.CreateDecision(r.Context(), approval.Decision{
			RequestID: id, DecidedBy: body.DecidedBy, Decision: kind, Notes: body.Notes,
		})
		if errors.Is(err, approval.ErrAlreadyDecided) {
			writeError(w, http.StatusConflict, err)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, decision)
	}
}

func (s *server) handleQueryEvents(w http.ResponseWriter, r *http.Request) {
	filter := audit.Filter{
		RunID:    r.URL.Query().Get("run_id"),
		Workflow: r.URL.Query().Get("workflow"),
		Agent:    r.URL.Query().Get("agent"),
		Domain:   r.URL.Query().Get("domain"),
	}
	events, err := s.auditLog.Query(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.auditLog.Stats(r.Context(), r.URL.Query().Get("run_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
