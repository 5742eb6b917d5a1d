// Package audit implements the append-only event sink described in
// spec.md §4.B. It is grounded on goa-ai's agents/runtime/memory.Store
// (LoadRun/AppendEvents), generalized from per-agent run history into a
// cross-run audit trail queryable by run, workflow, agent, domain, trust
// level, stage, and time window.
package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/kauf3r/agent-trust-layer/schema"
)

// Event is the AgentActionEvent record from spec.md §3. Once appended it is
// never mutated; nothing outside this package retains pointers into it.
type Event struct {
	ID            uuid.UUID
	CreatedAt     time.Time
	Domain        string
	Workflow      string
	Agent         string
	RunID         string
	TrustLevel    schema.TrustLevel
	Stage         schema.Stage
	Intent        string
	ToolName      string
	ToolArgs      map[string]any
	ToolResult    map[string]any
	ArtifactRefs  []string
	Warnings      []string
	Errors        []string
	Summary       string
	Confidence    float64
	ApprovalID    string
	SandboxID     string
	SandboxPaths  []string
}

// Validate checks the required fields spec.md §4.B names: domain, workflow,
// agent, run id, trust level, stage, non-empty intent.
func (e *Event) Validate() error {
	if err := schema.RequireNonEmpty("domain", e.Domain); err != nil {
		return err
	}
	if err := schema.RequireNonEmpty("workflow", e.Workflow); err != nil {
		return err
	}
	if err := schema.RequireNonEmpty("agent", e.Agent); err != nil {
		return err
	}
	if err := schema.RequireNonEmpty("run_id", e.RunID); err != nil {
		return err
	}
	if !e.TrustLevel.Valid() {
		return schema.FailClosed("trust_level")
	}
	if !e.Stage.Valid() {
		return schema.FailClosed("stage")
	}
	if err := schema.RequireNonEmpty("intent", e.Intent); err != nil {
		return err
	}
	return nil
}

// HasErrors reports whether the event carries a non-empty errors array, used
// by Stats to bucket failure counts.
func (e *Event) HasErrors() bool { return len(e.Errors) > 0 }
