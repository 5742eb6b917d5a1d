// Package domain implements the plug-in surface from spec.md §4.H: a
// domain adapter supplies tools, agents, workflows, and partial config for
// one vertical, and a registry holds adapters keyed by domain tag. Grounded
// on goa-ai's RegisterAgent/RegisterToolset pattern in
// runtime/agent/runtime/runtime.go, adapted from "register code assets" to
// "register domain tools/agents/workflows plus config".
package domain

import (
	"fmt"

	"github.com/kauf3r/agent-trust-layer/gate"
	"github.com/kauf3r/agent-trust-layer/schema"
)

// ToolEntry pairs a tool definition with its handler.
type ToolEntry struct {
	Definition schema.ToolDefinition
	Handler    schema.Handler
}

// Hooks are optional lifecycle callbacks an adapter may supply.
type Hooks struct {
	OnInitialize      func() error
	OnShutdown        func() error
	OnWorkflowStart    func(workflow string, runID string)
	OnWorkflowComplete func(workflow string, runID string, status schema.RunStatus)
}

// Adapter is a domain plug-in: an identity triple, its tool/agent/workflow
// sets, partial trust-gate config, and optional lifecycle hooks.
type Adapter struct {
	DomainTag   schema.DomainTag
	Name        string
	Version     string
	Tools       []ToolEntry
	Agents      []schema.AgentDefinition
	Workflows   []schema.WorkflowDefinition
	ConfigPatch AdapterConfig
	Hooks       Hooks
}

// AdapterConfig is the partial trust-gate configuration an adapter may
// contribute: per-tool trust overrides and sandboxing preference. The
// registry's consumer merges these into gate.Config.
type AdapterConfig struct {
	Overrides     map[string]schema.TrustLevel
	SandboxWrites bool
}

// ApplyTo merges c into cfg, with later adapters' overrides taking
// precedence over earlier ones (last-write-wins on a per-tool basis).
func (c AdapterConfig) ApplyTo(cfg *gate.Config) {
	if cfg.Overrides == nil {
		cfg.Overrides = map[string]schema.TrustLevel{}
	}
	for name, level := range c.Overrides {
		cfg.Overrides[name] = level
	}
	if c.SandboxWrites {
		cfg.SandboxWrites = true
	}
}

// ValidationResult separates hard failures from reportable-but-non-fatal warnings.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// OK reports whether the adapter has no hard validation failures.
func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

// Validate runs the rules from spec.md §4.H: tool-name domain prefix,
// agent-role closure, allowed-tool reference existence, workflow-domain
// match, commit-requires-review, and stage/role coverage.
func (a *Adapter) Validate() ValidationResult {
	var result ValidationResult

	toolNames := make(map[string]bool, len(a.Tools))
	for _, t := range a.Tools {
		if err := t.Definition.Validate(); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		toolNames[t.Definition.Name] = true
		prefix := string(a.DomainTag) + "."
		if len(t.Definition.Name) < len(prefix) || t.Definition.Name[:len(prefix)] != prefix {
			result.Warnings = append(result.Warnings, fmt.Sprintf("tool %q is not prefixed %q", t.Definition.Name, prefix))
		}
	}

	for _, ag := range a.Agents {
		if err := ag.Validate(); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		for _, allowed := range ag.AllowedTools {
			if !toolNames[allowed] {
				result.Warnings = append(result.Warnings, fmt.Sprintf("agent %q allows unknown tool %q", ag.Name, allowed))
			}
		}
	}

	for _, wf := range a.Workflows {
		if wf.Domain != a.DomainTag {
			result.Errors = append(result.Errors, fmt.Sprintf("workflow %q domain %q does not match adapter domain %q", wf.Name, wf.Domain, a.DomainTag))
			continue
		}
		if err := wf.Validate(); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	if a.Name == "" || a.Version == "" || !a.DomainTag.Valid() {
		result.Errors = append(result.Errors, "fail-closed: adapter identity")
	}

	return result
}
