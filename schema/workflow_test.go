package schema

import "testing"

func validPlanner() AgentDefinition {
	return AgentDefinition{Name: "planner", Role: RolePlanner, SystemPrompt: "plan", MaxTurns: 1}
}

func validWorker() AgentDefinition {
	return AgentDefinition{Name: "worker", Role: RoleWorker, SystemPrompt: "work", MaxTurns: 1}
}

func validReviewer() AgentDefinition {
	return AgentDefinition{Name: "reviewer", Role: RoleReviewer, SystemPrompt: "review", MaxTurns: 1}
}

func TestWorkflowValidate_CommitRequiresReviewBefore(t *testing.T) {
	w := WorkflowDefinition{
		Name:   "w",
		Domain: DomainASI,
		Stages: []Stage{StagePlan, StageCommit},
		Agents: []AgentDefinition{validPlanner(), validWorker()},
	}
	if err := w.Validate(); err == nil {
		t.Fatal("expected error: commit without review")
	}

	w.Stages = []Stage{StagePlan, StageReview, StageCommit}
	w.Agents = append(w.Agents, validReviewer())
	if err := w.Validate(); err != nil {
		t.Fatalf("expected valid workflow, got %v", err)
	}
}

func TestWorkflowValidate_MissingAgentForStage(t *testing.T) {
	w := WorkflowDefinition{
		Name:   "w",
		Domain: DomainASI,
		Stages: []Stage{StagePlan, StageReview},
		Agents: []AgentDefinition{validPlanner()},
	}
	if err := w.Validate(); err == nil {
		t.Fatal("expected error: missing reviewer agent")
	}
}

func TestWorkflowValidate_UnknownStage(t *testing.T) {
	w := WorkflowDefinition{
		Name:   "w",
		Domain: DomainASI,
		Stages: []Stage{"bogus"},
		Agents: []AgentDefinition{validPlanner()},
	}
	if err := w.Validate(); err == nil {
		t.Fatal("expected error: unknown stage")
	}
}

func TestTrustLevelOrdering(t *testing.T) {
	if !(L0 < L1 && L1 < L2 && L2 < L3 && L3 < L4) {
		t.Fatal("trust levels must be totally ordered")
	}
}
