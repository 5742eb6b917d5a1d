package schema

// AgentDefinition describes an agent participating in a workflow stage.
type AgentDefinition struct {
	Name         string    `validate:"required"`
	Role         AgentRole `validate:"required"`
	SystemPrompt string    `validate:"required"`
	AllowedTools []string
	MaxTurns     int `validate:"required,gt=0"`
}

// Validate checks the agent definition's required fields and closed role enum.
func (a *AgentDefinition) Validate() error {
	if err := structValidate.Struct(a); err != nil {
		return FailClosed("agent." + firstInvalidField(err))
	}
	if !a.Role.Valid() {
		return FailClosed("agent.role")
	}
	return nil
}

// AllowsTool reports whether name is in the agent's allowlist.
func (a *AgentDefinition) AllowsTool(name string) bool {
	for _, t := range a.AllowedTools {
		if t == name {
			return true
		}
	}
	return false
}
