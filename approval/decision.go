package approval

import (
	"time"

	"github.com/google/uuid"
	"github.com/kauf3r/agent-trust-layer/schema"
)

// SystemAutoApprove is the decided-by value the store uses when it grants a
// request through autoApprove rather than a human reviewer.
const SystemAutoApprove = "system:auto-approve"

// Decision is the ApprovalDecision record from spec.md §3. At most one
// decision may exist per request, enforced by a uniqueness constraint on
// RequestID in every backend.
type Decision struct {
	ID        uuid.UUID
	CreatedAt time.Time
	RequestID uuid.UUID
	DecidedBy string
	Decision  schema.DecisionKind
	Notes     string
	Metadata  map[string]any
}

// Validate checks the required fields for decision creation.
func (d *Decision) Validate() error {
	if d.RequestID == uuid.Nil {
		return schema.FailClosed("request_id")
	}
	if err := schema.RequireNonEmpty("decided_by", d.DecidedBy); err != nil {
		return err
	}
	if !d.Decision.Valid() {
		return schema.FailClosed("decision")
	}
	return nil
}

// ResultingStatus maps a decision kind to the status transition it induces:
// APPROVE -> APPROVED, REJECT -> REJECTED.
func (d *Decision) ResultingStatus() schema.ApprovalStatus {
	if d.Decision == schema.DecisionApprove {
		return schema.StatusApproved
	}
	return schema.StatusRejected
}
