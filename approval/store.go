package approval

import (
	"context"

	"github.com/google/uuid"
)

// PendingFilter restricts GetPendingRequests. Zero values mean unfiltered.
type PendingFilter struct {
	Domain   string
	Workflow string
	RunID    string
}

// Store is the approval store contract from spec.md §4.C. Implementations
// must enforce the request/decision invariants (at most one decision per
// request; L4 never auto-approve-eligible; PENDING -> {APPROVED, REJECTED,
// EXPIRED} only) at the storage layer, not merely in this package's helper
// functions, so every backend is safe even if called directly.
type Store interface {
	// CreateRequest validates input, computes expiry and auto-approve
	// eligibility, and persists the request with status PENDING.
	CreateRequest(ctx context.Context, req Request) (Request, error)

	// GetRequest returns the request by id, or ErrNotFound.
	GetRequest(ctx context.Context, id uuid.UUID) (Request, error)

	// GetPendingRequests returns PENDING, non-expired requests matching filter.
	GetPendingRequests(ctx context.Context, filter PendingFilter) ([]Request, error)

	// GetRequestsByRunID returns all requests (any status) for a run.
	GetRequestsByRunID(ctx context.Context, runID string) ([]Request, error)

	// IsApproved reports whether the request is currently APPROVED.
	IsApproved(ctx context.Context, id uuid.UUID) (bool, error)

	// IsPending reports whether the request is currently PENDING and unexpired.
	IsPending(ctx context.Context, id uuid.UUID) (bool, error)

	// ExpireStaleRequests transitions all PENDING requests whose expiry has
	// passed to EXPIRED and returns the count transitioned. Idempotent: a
	// second call with no intervening creation returns 0.
	ExpireStaleRequests(ctx context.Context) (int, error)

	// CreateDecision verifies the target exists, is PENDING, and has not
	// expired, then atomically inserts the decision and transitions the
	// request's status. Returns ErrAlreadyDecided if a decision already
	// exists for the request.
	CreateDecision(ctx context.Context, decision Decision) (Decision, error)

	// GetDecision returns the decision for a request, or ErrNotFound.
	GetDecision(ctx context.Context, requestID uuid.UUID) (Decision, error)

	// AutoApprove runs the five (plus expiry) auto-approval gates in order
	// and, if all pass, inserts a decision with DecidedBy =
	// SystemAutoApprove and Decision = APPROVE. Returns
	// ErrNoDecisionProduced if any gate fails; this is not an error for
	// policy denial, only for storage failure.
	AutoApprove(ctx context.Context, id uuid.UUID) (Decision, error)
}
