// Package approval implements the approval store described in spec.md
// §4.C: CRUD over approval requests and decisions with strict fail-closed
// semantics and auto-approval eligibility. It is grounded on the
// request/decision split goa-ai's interrupt.Controller models for
// pause/resume signals, adapted from workflow signals to persisted records.
package approval

import (
	"time"

	"github.com/google/uuid"
	"github.com/kauf3r/agent-trust-layer/schema"
)

// DefaultExpiry returns the default expiry window for trust level level, per
// spec.md §4.C: 3600 seconds for L3, 86400 seconds for L4. Any other level
// gets the same one-hour window as L3.
func DefaultExpiry(level schema.TrustLevel) time.Duration {
	switch level {
	case schema.L3:
		return time.Hour
	case schema.L4:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// Request is the ApprovalRequest record from spec.md §3.
type Request struct {
	ID                uuid.UUID
	CreatedAt         time.Time
	Domain            string
	RunID             string
	Workflow          string
	Requester         string
	TrustLevel        schema.TrustLevel
	ActionType        string
	ActionPayload     map[string]any
	Context           string
	ReviewerVerdict   *schema.Verdict
	ReviewerNotes     string
	Status            schema.ApprovalStatus
	ExpiresAt         time.Time
	AutoApproveEligible bool
	AutoApproveReason string
}

// Expired reports whether the request's expiry has passed as of now.
func (r *Request) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// Validate checks the required fields for request creation.
func (r *Request) Validate() error {
	if err := schema.RequireNonEmpty("domain", r.Domain); err != nil {
		return err
	}
	if err := schema.RequireNonEmpty("run_id", r.RunID); err != nil {
		return err
	}
	if err := schema.RequireNonEmpty("workflow", r.Workflow); err != nil {
		return err
	}
	if err := schema.RequireNonEmpty("requester", r.Requester); err != nil {
		return err
	}
	if !r.TrustLevel.Valid() {
		return schema.FailClosed("trust_level")
	}
	if err := schema.RequireNonEmpty("action_type", r.ActionType); err != nil {
		return err
	}
	return nil
}
