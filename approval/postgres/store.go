// Package postgres implements approval.Store against the
// approval_requests/approval_decisions tables from spec.md §6, using pgx
// and sqlx like the audit/postgres backend. Because Go has no database
// trigger of its own, the "insert decision transitions the request status"
// behavior described in the spec is reproduced inside a single SQL
// transaction per CreateDecision/AutoApprove call (documented in
// DESIGN.md).
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/patrickmn/go-cache"

	"github.com/kauf3r/agent-trust-layer/approval"
	"github.com/kauf3r/agent-trust-layer/schema"
)

// pendingCacheTTL bounds how long a cached GetPendingRequests result may be
// served, well below any approval.DefaultExpiry window.
const pendingCacheTTL = 2 * time.Second

// pendingEntry is a read-through cache entry. Freshness is judged against
// the store's own injectable clock (not go-cache's internal wall-clock
// janitor), matching the memstore backend's approach so both are testable
// under a fake clock.
type pendingEntry struct {
	at       time.Time
	requests []approval.Request
}

// Store persists approvals to Postgres. A short-lived, filter-keyed
// read-through cache sits in front of GetPendingRequests so the
// orchestrator's poll-and-retry loop doesn't round-trip the database on
// every poll; it is flushed on every write, so it never serves a row past
// its own TTL, which is bounded well below the spec's minimum expiry
// window.
type Store struct {
	db      *sqlx.DB
	now     func() time.Time
	pending *cache.Cache
}

// New wraps an already-connected *sqlx.DB whose schema has been migrated via
// goose (see migrations/).
func New(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now, pending: cache.New(cache.NoExpiration, cache.NoExpiration)}
}

type requestRow struct {
	ID                  uuid.UUID      `db:"id"`
	CreatedAt           time.Time      `db:"created_at"`
	Domain              string         `db:"domain"`
	RunID               string         `db:"run_id"`
	Workflow            string         `db:"workflow_name"`
	Requester           string         `db:"requester"`
	TrustLevel          string         `db:"trust_level"`
	ActionType          string         `db:"action_type"`
	ActionPayload       []byte         `db:"action_payload"`
	Status              string         `db:"status"`
	ExpiresAt           time.Time      `db:"expires_at"`
	Context             sql.NullString `db:"context"`
	ReviewerVerdict     sql.NullString `db:"reviewer_verdict"`
	ReviewerNotes       sql.NullString `db:"reviewer_notes"`
	AutoApproveEligible bool           `db:"auto_approve_eligible"`
	AutoApproveReason   sql.NullString `db:"auto_approve_reason"`
}

type decisionRow struct {
	ID        uuid.UUID `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	RequestID uuid.UUID `db:"approval_request_id"`
	DecidedBy string    `db:"decided_by"`
	Decision  string    `db:"decision"`
	Notes     sql.NullString `db:"notes"`
	Metadata  []byte    `db:"metadata"`
}

// CreateRequest computes expiry/eligibility and inserts the request PENDING.
func (s *Store) CreateRequest(ctx context.Context, req approval.Request) (approval.Request, error) {
	if err := req.Validate(); err != nil {
		return approval.Request{}, err
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	now := s.now()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	if req.ExpiresAt.IsZero() {
		req.ExpiresAt = now.Add(approval.DefaultExpiry(req.TrustLevel))
	}
	req.Status = schema.StatusPending
	req.AutoApproveEligible = approval.ComputeEligibility(req.TrustLevel, req.ReviewerVerdict, req.ActionType, req.Workflow)

	r := requestToRow(req)
	const q = `
		INSERT INTO approval_requests
			(id, created_at, domain, run_id, workflow_name, requester, trust_level,
			 action_type, action_payload, status, expires_at, context, reviewer_verdict,
			 reviewer_notes, auto_approve_eligible, auto_approve_reason)
		VALUES
			(:id, :created_at, :domain, :run_id, :workflow_name, :requester, :trust_level,
			 :action_type, :action_payload, :status, :expires_at, :context, :reviewer_verdict,
			 :reviewer_notes, :auto_approve_eligible, :auto_approve_reason)`
	if _, err := s.db.NamedExecContext(ctx, q, r); err != nil {
		return approval.Request{}, err
	}
	s.pending.Flush()
	return req, nil
}

// GetRequest returns the request by id.
func (s *Store) GetRequest(ctx context.Context, id uuid.UUID) (approval.Request, error) {
	var r requestRow
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT * FROM approval_requests WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return approval.Request{}, approval.ErrNotFound
	}
	if err != nil {
		return approval.Request{}, err
	}
	return rowToRequest(r), nil
}

// GetPendingRequests returns PENDING, unexpired requests matching filter,
// serving from the read-through cache when a prior call with the same
// filter is still within its TTL.
func (s *Store) GetPendingRequests(ctx context.Context, filter approval.PendingFilter) ([]approval.Request, error) {
	key := pendingCacheKey(filter)
	now := s.now()
	if cached, ok := s.pending.Get(key); ok {
		entry := cached.(pendingEntry)
		if now.Sub(entry.at) < pendingCacheTTL {
			return entry.requests, nil
		}
	}

	q := `SELECT * FROM approval_requests WHERE status = :status AND expires_at > :now`
	args := map[string]any{"status": string(schema.StatusPending), "now": now}
	if filter.Domain != "" {
		q += " AND domain = :domain"
		args["domain"] = filter.Domain
	}
	if filter.Workflow != "" {
		q += " AND workflow_name = :workflow"
		args["workflow"] = filter.Workflow
	}
	if filter.RunID != "" {
		q += " AND run_id = :run_id"
		args["run_id"] = filter.RunID
	}

	named, bound, err := sqlx.Named(q, args)
	if err != nil {
		return nil, err
	}
	named = s.db.Rebind(named)

	var rows []requestRow
	if err := s.db.SelectContext(ctx, &rows, named, bound...); err != nil {
		return nil, err
	}
	out := make([]approval.Request, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToRequest(r))
	}
	s.pending.SetDefault(key, pendingEntry{at: now, requests: out})
	return out, nil
}

func pendingCacheKey(filter approval.PendingFilter) string {
	return filter.Domain + "\x00" + filter.Workflow + "\x00" + filter.RunID
}

// GetRequestsByRunID returns all requests for a run, any status.
func (s *Store) GetRequestsByRunID(ctx context.Context, runID string) ([]approval.Request, error) {
	var rows []requestRow
	q := s.db.Rebind(`SELECT * FROM approval_requests WHERE run_id = ?`)
	if err := s.db.SelectContext(ctx, &rows, q, runID); err != nil {
		return nil, err
	}
	out := make([]approval.Request, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToRequest(r))
	}
	return out, nil
}

// IsApproved reports whether id currently has status APPROVED.
func (s *Store) IsApproved(ctx context.Context, id uuid.UUID) (bool, error) {
	r, err := s.GetRequest(ctx, id)
	if err != nil {
		return false, err
	}
	return r.Status == schema.StatusApproved, nil
}

// IsPending reports whether id currently has status PENDING and is unexpired.
func (s *Store) IsPending(ctx context.Context, id uuid.UUID) (bool, error) {
	r, err := s.GetRequest(ctx, id)
	if err != nil {
		return false, err
	}
	return r.Status == schema.StatusPending && !r.Expired(s.now()), nil
}

// ExpireStaleRequests transitions stale PENDING requests to EXPIRED.
func (s *Store) ExpireStaleRequests(ctx context.Context) (int, error) {
	q := s.db.Rebind(`UPDATE approval_requests SET status = ? WHERE status = ? AND expires_at <= ?`)
	res, err := s.db.ExecContext(ctx, q, string(schema.StatusExpired), string(schema.StatusPending), s.now())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.pending.Flush()
	}
	return int(n), nil
}

// CreateDecision inserts the decision and transitions the request status in
// one transaction, mirroring the spec's database-trigger semantics.
func (s *Store) CreateDecision(ctx context.Context, decision approval.Decision) (approval.Decision, error) {
	if err := decision.Validate(); err != nil {
		return approval.Decision{}, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return approval.Decision{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	var req requestRow
	err = tx.GetContext(ctx, &req, tx.Rebind(`SELECT * FROM approval_requests WHERE id = ? FOR UPDATE`), decision.RequestID)
	if errors.Is(err, sql.ErrNoRows) {
		return approval.Decision{}, approval.ErrNotFound
	}
	if err != nil {
		return approval.Decision{}, err
	}
	switch req.Status {
	case string(schema.StatusPending):
	case string(schema.StatusApproved), string(schema.StatusRejected):
		return approval.Decision{}, approval.ErrAlreadyDecided
	default:
		return approval.Decision{}, approval.ErrNoDecisionProduced
	}
	if rowToRequest(req).Expired(s.now()) {
		return approval.Decision{}, approval.ErrNoDecisionProduced
	}

	if decision.ID == uuid.Nil {
		decision.ID = uuid.New()
	}
	if decision.CreatedAt.IsZero() {
		decision.CreatedAt = s.now()
	}
	metadata, _ := json.Marshal(decision.Metadata)

	const insertQ = `
		INSERT INTO approval_decisions (id, created_at, approval_request_id, decided_by, decision, notes, metadata)
		VALUES (:id, :created_at, :approval_request_id, :decided_by, :decision, :notes, :metadata)`
	_, err = tx.NamedExecContext(ctx, insertQ, decisionRow{
		ID: decision.ID, CreatedAt: decision.CreatedAt, RequestID: decision.RequestID,
		DecidedBy: decision.DecidedBy, Decision: string(decision.Decision),
		Notes: sql.NullString{String: decision.Notes, Valid: decision.Notes != ""}, Metadata: metadata,
	})
	if isUniqueViolation(err) {
		return approval.Decision{}, approval.ErrAlreadyDecided
	}
	if err != nil {
		return approval.Decision{}, err
	}

	updateQ := tx.Rebind(`UPDATE approval_requests SET status = ? WHERE id = ?`)
	if _, err := tx.ExecContext(ctx, updateQ, string(decision.ResultingStatus()), decision.RequestID); err != nil {
		return approval.Decision{}, err
	}

	if err := tx.Commit(); err != nil {
		return approval.Decision{}, err
	}
	s.pending.Flush()
	return decision, nil
}

// GetDecision returns the decision for requestID.
func (s *Store) GetDecision(ctx context.Context, requestID uuid.UUID) (approval.Decision, error) {
	var r decisionRow
	q := s.db.Rebind(`SELECT * FROM approval_decisions WHERE approval_request_id = ?`)
	err := s.db.GetContext(ctx, &r, q, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return approval.Decision{}, approval.ErrNotFound
	}
	if err != nil {
		return approval.Decision{}, err
	}
	return rowToDecision(r), nil
}

// AutoApprove runs the spec.md §4.C gates and, if all pass, inserts a
// system-authored APPROVE decision.
func (s *Store) AutoApprove(ctx context.Context, id uuid.UUID) (approval.Decision, error) {
	req, err := s.GetRequest(ctx, id)
	if errors.Is(err, approval.ErrNotFound) {
		return approval.Decision{}, approval.ErrNoDecisionProduced
	}
	if err != nil {
		return approval.Decision{}, err
	}
	if req.TrustLevel == schema.L4 || req.Status != schema.StatusPending || !req.AutoApproveEligible {
		return approval.Decision{}, approval.ErrNoDecisionProduced
	}
	if req.ReviewerVerdict == nil || *req.ReviewerVerdict != schema.VerdictPass {
		return approval.Decision{}, approval.ErrNoDecisionProduced
	}
	if req.Expired(s.now()) {
		return approval.Decision{}, approval.ErrNoDecisionProduced
	}

	out, err := s.CreateDecision(ctx, approval.Decision{
		RequestID: id,
		DecidedBy: approval.SystemAutoApprove,
		Decision:  schema.DecisionApprove,
	})
	if errors.Is(err, approval.ErrAlreadyDecided) || errors.Is(err, approval.ErrNoDecisionProduced) || errors.Is(err, approval.ErrNotFound) {
		return approval.Decision{}, approval.ErrNoDecisionProduced
	}
	if err != nil {
		return approval.Decision{}, err
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func requestToRow(r approval.Request) requestRow {
	payload, _ := json.Marshal(r.ActionPayload)
	var verdict sql.NullString
	if r.ReviewerVerdict != nil {
		verdict = sql.NullString{String: string(*r.ReviewerVerdict), Valid: true}
	}
	return requestRow{
		ID: r.ID, CreatedAt: r.CreatedAt, Domain: r.Domain, RunID: r.RunID, Workflow: r.Workflow,
		Requester: r.Requester, TrustLevel: r.TrustLevel.String(), ActionType: r.ActionType,
		ActionPayload: payload, Status: string(r.Status), ExpiresAt: r.ExpiresAt,
		Context:             sql.NullString{String: r.Context, Valid: r.Context != ""},
		ReviewerVerdict:     verdict,
		ReviewerNotes:       sql.NullString{String: r.ReviewerNotes, Valid: r.ReviewerNotes != ""},
		AutoApproveEligible: r.AutoApproveEligible,
		AutoApproveReason:   sql.NullString{String: r.AutoApproveReason, Valid: r.AutoApproveReason != ""},
	}
}

func rowToRequest(r requestRow) approval.Request {
	var payload map[string]any
	_ = json.Unmarshal(r.ActionPayload, &payload)
	var verdict *schema.Verdict
	if r.ReviewerVerdict.Valid {
		v := schema.Verdict(r.ReviewerVerdict.String)
		verdict = &v
	}
	return approval.Request{
		ID: r.ID, CreatedAt: r.CreatedAt, Domain: r.Domain, RunID: r.RunID, Workflow: r.Workflow,
		Requester: r.Requester, TrustLevel: trustFromString(r.TrustLevel), ActionType: r.ActionType,
		ActionPayload: payload, Context: r.Context.String, ReviewerVerdict: verdict,
		ReviewerNotes: r.ReviewerNotes.String, Status: schema.ApprovalStatus(r.Status), ExpiresAt: r.ExpiresAt,
		AutoApproveEligible: r.AutoApproveEligible, AutoApproveReason: r.AutoApproveReason.String,
	}
}

func rowToDecision(r decisionRow) approval.Decision {
	var metadata map[string]any
	_ = json.Unmarshal(r.Metadata, &metadata)
	return approval.Decision{
		ID: r.ID, CreatedAt: r.CreatedAt, RequestID: r.RequestID, DecidedBy: r.DecidedBy,
		Decision: schema.DecisionKind(r.Decision), Notes: r.Notes.String, Metadata: metadata,
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

var _ approval.Store = (*Store)(nil)
