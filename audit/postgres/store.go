// Package postgres implements audit.Store against the agent_action_events
// table described in spec.md §6, using pgx as the driver and sqlx for
// struct scanning — the same combination kubernaut uses for its
// transactional relational stores.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/kauf3r/agent-trust-layer/audit"
	"github.com/kauf3r/agent-trust-layer/schema"
)

// Store persists audit events to Postgres.
type Store struct {
	db *sqlx.DB
}

// New wraps an already-connected *sqlx.DB. The schema (see migrations/) must
// already be applied via goose before use.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type row struct {
	ID           uuid.UUID      `db:"id"`
	CreatedAt    time.Time      `db:"created_at"`
	Domain       string         `db:"domain"`
	Workflow     string         `db:"workflow"`
	Agent        string         `db:"agent"`
	RunID        string         `db:"run_id"`
	TrustLevel   string         `db:"trust_level"`
	Stage        string         `db:"stage"`
	Intent       string         `db:"intent"`
	ToolName     sql.NullString `db:"tool_name"`
	ToolArgs     []byte         `db:"tool_args"`
	ToolResult   []byte         `db:"tool_result"`
	ArtifactRefs pq.StringArray `db:"artifact_refs"`
	Warnings     pq.StringArray `db:"warnings"`
	Errors       pq.StringArray `db:"errors"`
	Summary      string         `db:"summary"`
	Confidence   float64        `db:"confidence"`
	ApprovalID   sql.NullString `db:"approval_request_id"`
	SandboxID    sql.NullString `db:"sandbox_id"`
	SandboxPaths pq.StringArray `db:"sandbox_artifacts"`
}

// Append inserts event after validating it. See audit.Store.
func (s *Store) Append(ctx context.Context, event audit.Event) (audit.AppendResult, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	res := audit.AppendResult{ID: event.ID}
	if err := event.Validate(); err != nil {
		return res, err
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	r := eventToRow(event)
	const q = `
		INSERT INTO agent_action_events
			(id, created_at, domain, workflow, agent, run_id, trust_level, stage,
			 intent, tool_name, tool_args, tool_result, artifact_refs, warnings,
			 errors, summary, confidence, approval_request_id, sandbox_id, sandbox_artifacts)
		VALUES
			(:id, :created_at, :domain, :workflow, :agent, :run_id, :trust_level, :stage,
			 :intent, :tool_name, :tool_args, :tool_result, :artifact_refs, :warnings,
			 :errors, :summary, :confidence, :approval_request_id, :sandbox_id, :sandbox_artifacts)`
	if _, err := s.db.NamedExecContext(ctx, q, r); err != nil {
		return res, err
	}
	res.Ok = true
	return res, nil
}

// Query returns events matching filter ordered by creation time descending.
func (s *Store) Query(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	q := `SELECT * FROM agent_action_events WHERE 1=1`
	args := map[string]any{}
	if filter.RunID != "" {
		q += " AND run_id = :run_id"
		args["run_id"] = filter.RunID
	}
	if filter.Workflow != "" {
		q += " AND workflow = :workflow"
		args["workflow"] = filter.Workflow
	}
	if filter.Agent != "" {
		q += " AND agent = :agent"
		args["agent"] = filter.Agent
	}
	if filter.Domain != "" {
		q += " AND domain = :domain"
		args["domain"] = filter.Domain
	}
	if filter.TrustLevel != nil {
		q += " AND trust_level = :trust_level"
		args["trust_level"] = filter.TrustLevel.String()
	}
	if filter.Stage != "" {
		q += " AND stage = :stage"
		args["stage"] = string(filter.Stage)
	}
	if !filter.Since.IsZero() {
		q += " AND created_at >= :since"
		args["since"] = filter.Since
	}
	if !filter.Until.IsZero() {
		q += " AND created_at <= :until"
		args["until"] = filter.Until
	}
	q += " ORDER BY created_at DESC"

	named, bound, err := sqlx.Named(q, args)
	if err != nil {
		return nil, err
	}
	named = s.db.Rebind(named)

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, named, bound...); err != nil {
		return nil, err
	}

	out := make([]audit.Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToEvent(r))
	}
	return out, nil
}

// Stats aggregates counts, optionally scoped to one run id.
func (s *Store) Stats(ctx context.Context, runID string) (audit.Stats, error) {
	events, err := s.Query(ctx, audit.Filter{RunID: runID})
	if err != nil {
		return audit.Stats{}, err
	}
	stats := audit.Stats{
		ByTrust:  map[schema.TrustLevel]int{},
		ByStage:  map[schema.Stage]int{},
		ByDomain: map[string]int{},
	}
	for _, e := range events {
		stats.Total++
		stats.ByTrust[e.TrustLevel]++
		stats.ByStage[e.Stage]++
		stats.ByDomain[e.Domain]++
		if e.HasErrors() {
			stats.WithErrors++
		}
	}
	return stats, nil
}

func eventToRow(e audit.Event) row {
	toolArgs, _ := json.Marshal(e.ToolArgs)
	toolResult, _ := json.Marshal(e.ToolResult)
	return row{
		ID:           e.ID,
		CreatedAt:    e.CreatedAt,
		Domain:       e.Domain,
		Workflow:     e.Workflow,
		Agent:        e.Agent,
		RunID:        e.RunID,
		TrustLevel:   e.TrustLevel.String(),
		Stage:        string(e.Stage),
		Intent:       e.Intent,
		ToolName:     sql.NullString{String: e.ToolName, Valid: e.ToolName != ""},
		ToolArgs:     toolArgs,
		ToolResult:   toolResult,
		ArtifactRefs: e.ArtifactRefs,
		Warnings:     e.Warnings,
		Errors:       e.Errors,
		Summary:      e.Summary,
		Confidence:   e.Confidence,
		ApprovalID:   sql.NullString{String: e.ApprovalID, Valid: e.ApprovalID != ""},
		SandboxID:    sql.NullString{String: e.SandboxID, Valid: e.SandboxID != ""},
		SandboxPaths: e.SandboxPaths,
	}
}

func rowToEvent(r row) audit.Event {
	var toolArgs, toolResult map[string]any
	_ = json.Unmarshal(r.ToolArgs, &toolArgs)
	_ = json.Unmarshal(r.ToolResult, &toolResult)
	return audit.Event{
		ID:           r.ID,
		CreatedAt:    r.CreatedAt,
		Domain:       r.Domain,
		Workflow:     r.Workflow,
		Agent:        r.Agent,
		RunID:        r.RunID,
		TrustLevel:   trustFromString(r.TrustLevel),
		Stage:        schema.Stage(r.Stage),
		Intent:       r.Intent,
		ToolName:     r.ToolName.String,
		ToolArgs:     toolArgs,
		ToolResult:   toolResult,
		ArtifactRefs: []string(r.ArtifactRefs),
		Warnings:     []string(r.Warnings),
		Errors:       []string(r.Errors),
		Summary:      r.Summary,
		Confidence:   r.Confidence,
		ApprovalID:   r.ApprovalID.String,
		SandboxID:    r.SandboxID.String,
		SandboxPaths: []string(r.SandboxPaths),
	}
}

func trustFromString(s string) schema.TrustLevel {
	switch s {
	case "L0":
		return schema.L0
	case "L1":
		return schema.L1
	case "L2":
		return schema.L2
	case "L3":
		return schema.L3
	case "L4":
		return schema.L4
	default:
		return schema.L4
	}
}
