package postgres

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/kauf3r/agent-trust-layer/approval"
	"github.com/kauf3r/agent-trust-layer/schema"
)

func approvalRequestFixture(r request) approval.Request {
	return approval.Request{
		Domain: r.domain, RunID: r.runID, Workflow: r.workflow,
		TrustLevel: r.trustLevel, ActionType: r.actionType, ActionPayload: map[string]any{},
		Status: r.status, AutoApproveEligible: r.autoApproveEligible,
		CreatedAt: r.createdAt, ExpiresAt: r.expiresAt,
	}
}

// requestGen produces trimmed request values that approvalRequestFixture
// turns into approval.Request values restricted to forms that round-trip
// exactly through requestToRow/rowToRequest: the fixture supplies a non-nil
// action payload (nil and {} are equal in meaning but not in Go equality),
// and timestamps are truncated to microseconds to match Postgres's
// timestamptz resolution.
func requestGen() gopter.Gen {
	return gopter.CombineGens(
		gen.Identifier(),
		gen.Identifier(),
		gen.Identifier(),
		gen.OneConstOf(schema.L0, schema.L1, schema.L2, schema.L3, schema.L4),
		gen.Identifier(),
		gen.OneConstOf(schema.StatusPending, schema.StatusApproved, schema.StatusRejected, schema.StatusExpired),
		gen.Bool(),
	).Map(func(vals []interface{}) request {
		now := time.Now().UTC().Truncate(time.Microsecond)
		return request{
			domain: vals[0].(string), runID: vals[1].(string), workflow: vals[2].(string),
			trustLevel: vals[3].(schema.TrustLevel), actionType: vals[4].(string),
			status: vals[5].(schema.ApprovalStatus), autoApproveEligible: vals[6].(bool),
			createdAt: now, expiresAt: now.Add(time.Hour),
		}
	})
}

// request is a trimmed stand-in for approval.Request carrying only the
// fields requestToRow/rowToRequest transform non-trivially; the full struct
// pulls in uuid.UUID generation machinery gopter doesn't provide natively.
type request struct {
	domain, runID, workflow, actionType string
	trustLevel                          schema.TrustLevel
	status                              schema.ApprovalStatus
	autoApproveEligible                 bool
	createdAt, expiresAt                time.Time
}

func TestRoundTrip_RequestRowConversion(t *testing.T) {
	props := gopter.NewProperties(nil)
	props.Property("rowToRequest(requestToRow(r)) preserves every transformed field", prop.ForAll(
		func(r request) bool {
			full := approvalRequestFixture(r)
			row := requestToRow(full)
			back := rowToRequest(row)
			return back.Domain == full.Domain && back.RunID == full.RunID &&
				back.Workflow == full.Workflow && back.TrustLevel == full.TrustLevel &&
				back.ActionType == full.ActionType && back.Status == full.Status &&
				back.AutoApproveEligible == full.AutoApproveEligible &&
				back.CreatedAt.Equal(full.CreatedAt) && back.ExpiresAt.Equal(full.ExpiresAt)
		},
		requestGen(),
	))
	props.TestingRun(t)
}
