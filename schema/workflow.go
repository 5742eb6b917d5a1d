package schema

// WorkflowDefinition describes an ordered sequence of stages and the
// agents available to run them.
type WorkflowDefinition struct {
	Name   string    `validate:"required"`
	Domain DomainTag `validate:"required"`
	Stages []Stage   `validate:"required,min=1"`
	Agents []AgentDefinition
}

// Validate enforces the invariants spec.md §3 places on a workflow:
//
//   - every stage is one of the closed Stage values;
//   - if "commit" is present, "review" must also be present and precede it;
//   - every stage has at least one agent whose role matches RoleForStage.
func (w *WorkflowDefinition) Validate() error {
	if err := RequireNonEmpty("workflow.name", w.Name); err != nil {
		return err
	}
	if !w.Domain.Valid() {
		return FailClosed("workflow.domain")
	}
	if len(w.Stages) == 0 {
		return FailClosed("workflow.stages")
	}

	reviewIdx, commitIdx := -1, -1
	for i, s := range w.Stages {
		if !s.Valid() {
			return FailClosed("workflow.stages")
		}
		switch s {
		case StageReview:
			reviewIdx = i
		case StageCommit:
			commitIdx = i
		}
	}
	if commitIdx >= 0 && (reviewIdx < 0 || reviewIdx >= commitIdx) {
		return FailClosed("workflow.review_before_commit")
	}

	for _, s := range w.Stages {
		role, err := RoleForStage(s)
		if err != nil {
			return err
		}
		if !w.hasAgentWithRole(role) {
			return FailClosed("workflow.agent_for_stage")
		}
	}
	return nil
}

func (w *WorkflowDefinition) hasAgentWithRole(role AgentRole) bool {
	for _, a := range w.Agents {
		if a.Role == role {
			return true
		}
	}
	return false
}

// AgentForRole returns the first registered agent with the given role.
func (w *WorkflowDefinition) AgentForRole(role AgentRole) (*AgentDefinition, bool) {
	for i := range w.Agents {
		if w.Agents[i].Role == role {
			return &w.Agents[i], true
		}
	}
	return nil, false
}
