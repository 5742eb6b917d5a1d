// Package memstore implements approval.Store in memory, backing unit tests
// and deployments that don't need durable approval history.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/kauf3r/agent-trust-layer/approval"
	"github.com/kauf3r/agent-trust-layer/schema"
)

// pendingCacheTTL bounds how long a cached GetPendingRequests result may be
// served, well below any approval.DefaultExpiry window.
const pendingCacheTTL = 2 * time.Second

// pendingEntry is a read-through cache entry. Freshness is judged against
// the store's own injectable clock (not go-cache's internal wall-clock
// janitor), so tests driving a fake now() see correctly stale entries.
type pendingEntry struct {
	at       time.Time
	requests []approval.Request
}

// Store is an in-memory, mutex-guarded approval.Store. A short-lived,
// filter-keyed read-through cache sits in front of GetPendingRequests — the
// same go-cache accelerator the postgres backend uses — and is flushed on
// every write so it can never serve a row past the window described in
// SPEC_FULL.md.
type Store struct {
	mu        sync.Mutex
	requests  map[uuid.UUID]approval.Request
	decisions map[uuid.UUID]approval.Decision // keyed by request id
	pending   *cache.Cache
	now       func() time.Time
}

// New constructs an empty in-memory store. nowFn overrides time.Now for
// tests; pass nil for real wall-clock time.
func New(nowFn func() time.Time) *Store {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Store{
		requests:  map[uuid.UUID]approval.Request{},
		decisions: map[uuid.UUID]approval.Decision{},
		pending:   cache.New(cache.NoExpiration, cache.NoExpiration),
		now:       nowFn,
	}
}

// CreateRequest validates req, computes expiry and eligibility, and stores
// it PENDING.
func (s *Store) CreateRequest(_ context.Context, req approval.Request) (approval.Request, error) {
	if err := req.Validate(); err != nil {
		return approval.Request{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

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

	s.requests[req.ID] = req
	s.pending.Flush()
	return req, nil
}

// GetRequest returns the request by id.
func (s *Store) GetRequest(_ context.Context, id uuid.UUID) (approval.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return approval.Request{}, approval.ErrNotFound
	}
	return r, nil
}

// GetPendingRequests returns PENDING, unexpired requests matching filter,
// serving from the read-through cache when a prior call with the same
// filter is still within its TTL.
func (s *Store) GetPendingRequests(_ context.Context, filter approval.PendingFilter) ([]approval.Request, error) {
	key := pendingCacheKey(filter)
	now := s.now()
	if cached, ok := s.pending.Get(key); ok {
		entry := cached.(pendingEntry)
		if now.Sub(entry.at) < pendingCacheTTL {
			return entry.requests, nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]approval.Request, 0)
	for _, r := range s.requests {
		if r.Status != schema.StatusPending || r.Expired(now) {
			continue
		}
		if filter.Domain != "" && r.Domain != filter.Domain {
			continue
		}
		if filter.Workflow != "" && r.Workflow != filter.Workflow {
			continue
		}
		if filter.RunID != "" && r.RunID != filter.RunID {
			continue
		}
		out = append(out, r)
	}
	s.pending.SetDefault(key, pendingEntry{at: now, requests: out})
	return out, nil
}

func pendingCacheKey(filter approval.PendingFilter) string {
	return filter.Domain + "\x00" + filter.Workflow + "\x00" + filter.RunID
}

// GetRequestsByRunID returns all requests for a run, any status.
func (s *Store) GetRequestsByRunID(_ context.Context, runID string) ([]approval.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]approval.Request, 0)
	for _, r := range s.requests {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	return out, nil
}

// IsApproved reports whether id currently has status APPROVED.
func (s *Store) IsApproved(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return false, approval.ErrNotFound
	}
	return r.Status == schema.StatusApproved, nil
}

// IsPending reports whether id currently has status PENDING and is unexpired.
func (s *Store) IsPending(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return false, approval.ErrNotFound
	}
	return r.Status == schema.StatusPending && !r.Expired(s.now()), nil
}

// ExpireStaleRequests transitions stale PENDING requests to EXPIRED.
func (s *Store) ExpireStaleRequests(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	count := 0
	for id, r := range s.requests {
		if r.Status == schema.StatusPending && r.Expired(now) {
			r.Status = schema.StatusExpired
			s.requests[id] = r
			count++
		}
	}
	if count > 0 {
		s.pending.Flush()
	}
	return count, nil
}

// CreateDecision verifies eligibility, inserts the decision, and transitions
// the request's status atomically (single mutex hold, standing in for the
// relational backend's transaction).
func (s *Store) CreateDecision(_ context.Context, decision approval.Decision) (approval.Decision, error) {
	if err := decision.Validate(); err != nil {
		return approval.Decision{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[decision.RequestID]
	if !ok {
		return approval.Decision{}, approval.ErrNotFound
	}
	if _, decided := s.decisions[decision.RequestID]; decided {
		return approval.Decision{}, approval.ErrAlreadyDecided
	}
	if req.Status != schema.StatusPending {
		return approval.Decision{}, approval.ErrNoDecisionProduced
	}
	if req.Expired(s.now()) {
		return approval.Decision{}, approval.ErrNoDecisionProduced
	}

	if decision.ID == uuid.Nil {
		decision.ID = uuid.New()
	}
	if decision.CreatedAt.IsZero() {
		decision.CreatedAt = s.now()
	}

	req.Status = decision.ResultingStatus()
	s.requests[decision.RequestID] = req
	s.decisions[decision.RequestID] = decision
	s.pending.Flush()
	return decision, nil
}

// GetDecision returns the decision for requestID.
func (s *Store) GetDecision(_ context.Context, requestID uuid.UUID) (approval.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decisions[requestID]
	if !ok {
		return approval.Decision{}, approval.ErrNotFound
	}
	return d, nil
}

// AutoApprove runs the spec.md §4.C gates in order and, if all pass,
// inserts a system-authored APPROVE decision.
func (s *Store) AutoApprove(ctx context.Context, id uuid.UUID) (approval.Decision, error) {
	s.mu.Lock()
	req, ok := s.requests[id]
	s.mu.Unlock()
	if !ok {
		return approval.Decision{}, approval.ErrNoDecisionProduced
	}
	if req.TrustLevel == schema.L4 {
		return approval.Decision{}, approval.ErrNoDecisionProduced
	}
	if req.Status != schema.StatusPending {
		return approval.Decision{}, approval.ErrNoDecisionProduced
	}
	if !req.AutoApproveEligible {
		return approval.Decision{}, approval.ErrNoDecisionProduced
	}
	if req.ReviewerVerdict == nil || *req.ReviewerVerdict != schema.VerdictPass {
		return approval.Decision{}, approval.ErrNoDecisionProduced
	}
	if req.Expired(s.now()) {
		return approval.Decision{}, approval.ErrNoDecisionProduced
	}

	s.mu.Lock()
	req.AutoApproveReason = "auto-approve: eligible action within policy"
	s.requests[id] = req
	s.mu.Unlock()

	decision := approval.Decision{
		RequestID: id,
		DecidedBy: approval.SystemAutoApprove,
		Decision:  schema.DecisionApprove,
	}
	out, err := s.CreateDecision(ctx, decision)
	if err != nil {
		return approval.Decision{}, approval.ErrNoDecisionProduced
	}
	return out, nil
}

var _ approval.Store = (*Store)(nil)
