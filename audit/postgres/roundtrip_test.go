package postgres

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/kauf3r/agent-trust-layer/audit"
	"github.com/kauf3r/agent-trust-layer/schema"
)

func eventGen() gopter.Gen {
	return gopter.CombineGens(
		gen.Identifier(),
		gen.Identifier(),
		gen.Identifier(),
		gen.Identifier(),
		gen.OneConstOf(schema.L0, schema.L1, schema.L2, schema.L3, schema.L4),
		gen.OneConstOf(schema.StagePlan, schema.StageExecute, schema.StageReview, schema.StageCommit),
		gen.Identifier(),
		gen.Float64Range(0, 1),
	).Map(func(vals []interface{}) audit.Event {
		return audit.Event{
			Domain: vals[0].(string), Workflow: vals[1].(string), Agent: vals[2].(string),
			RunID: vals[3].(string), TrustLevel: vals[4].(schema.TrustLevel), Stage: vals[5].(schema.Stage),
			Intent: vals[6].(string), Summary: vals[6].(string), Confidence: vals[7].(float64),
			CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		}
	})
}

func TestRoundTrip_EventRowConversion(t *testing.T) {
	props := gopter.NewProperties(nil)
	props.Property("rowToEvent(eventToRow(e)) preserves every transformed field", prop.ForAll(
		func(e audit.Event) bool {
			back := rowToEvent(eventToRow(e))
			return back.Domain == e.Domain && back.Workflow == e.Workflow && back.Agent == e.Agent &&
				back.RunID == e.RunID && back.TrustLevel == e.TrustLevel && back.Stage == e.Stage &&
				back.Intent == e.Intent && back.Summary == e.Summary && back.Confidence == e.Confidence &&
				back.CreatedAt.Equal(e.CreatedAt)
		},
		eventGen(),
	))
	props.TestingRun(t)
}
