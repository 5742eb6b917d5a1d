// Package config loads trust-gate policy overrides from YAML, so a
// deployment can tune per-stage trust ceilings and per-tool overrides
// without a rebuild — matching goa-ai's and C360Studio-semspec's YAML
// config conventions (gopkg.in/yaml.v3) — and assembles the router with a
// real sandbox wired in as its Sandboxer.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kauf3r/agent-trust-layer/audit"
	"github.com/kauf3r/agent-trust-layer/gate"
	"github.com/kauf3r/agent-trust-layer/router"
	"github.com/kauf3r/agent-trust-layer/sandbox"
	"github.com/kauf3r/agent-trust-layer/schema"
	"github.com/kauf3r/agent-trust-layer/telemetry"
)

// StagePolicyOverride mirrors gate.StagePolicy in YAML-friendly form.
type StagePolicyOverride struct {
	MaxTrustLevel            string   `yaml:"max_trust_level"`
	AllowedCapabilities      []string `yaml:"allowed_capabilities"`
	Sandboxed                *bool    `yaml:"sandboxed"`
	RequiresReviewerApproval *bool    `yaml:"requires_reviewer_approval"`
}

// File is the on-disk shape of a domain config file.
type File struct {
	ApprovalThreshold string                         `yaml:"approval_threshold"`
	SandboxWrites     bool                           `yaml:"sandbox_writes"`
	Overrides         map[string]string              `yaml:"overrides"`
	StagePolicies     map[string]StagePolicyOverride `yaml:"stage_policies"`
}

// Load reads and parses a YAML config file at path into a gate.Config,
// starting from gate.NewConfig()'s defaults and applying overrides on top.
func Load(path string) (gate.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return gate.Config{}, fmt.Errorf("fail-closed: config read: %w", err)
	}
	return Parse(raw)
}

// Parse decodes raw YAML bytes into a gate.Config.
func Parse(raw []byte) (gate.Config, error) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return gate.Config{}, fmt.Errorf("fail-closed: config parse: %w", err)
	}

	cfg := gate.NewConfig()
	if f.ApprovalThreshold != "" {
		lvl, err := parseTrustLevel(f.ApprovalThreshold)
		if err != nil {
			return gate.Config{}, err
		}
		cfg.ApprovalThreshold = lvl
	}
	cfg.SandboxWrites = f.SandboxWrites

	for tool, levelStr := range f.Overrides {
		lvl, err := parseTrustLevel(levelStr)
		if err != nil {
			return gate.Config{}, fmt.Errorf("fail-closed: config override %s: %w", tool, err)
		}
		cfg.Overrides[tool] = lvl
	}

	for stageStr, override := range f.StagePolicies {
		stage := schema.Stage(stageStr)
		if !stage.Valid() {
			return gate.Config{}, fmt.Errorf("fail-closed: config stage %q", stageStr)
		}
		policy, ok := cfg.StagePolicies[stage]
		if !ok {
			policy = gate.DefaultStagePolicies()[stage]
		}
		if override.MaxTrustLevel != "" {
			lvl, err := parseTrustLevel(override.MaxTrustLevel)
			if err != nil {
				return gate.Config{}, err
			}
			policy.MaxTrustLevel = lvl
		}
		if len(override.AllowedCapabilities) > 0 {
			caps := map[schema.Capability]bool{}
			for _, c := range override.AllowedCapabilities {
				cap := schema.Capability(c)
				if !cap.Valid() {
					return gate.Config{}, fmt.Errorf("fail-closed: config capability %q", c)
				}
				caps[cap] = true
			}
			policy.AllowedCapabilities = caps
		}
		if override.Sandboxed != nil {
			policy.Sandboxed = *override.Sandboxed
		}
		if override.RequiresReviewerApproval != nil {
			policy.RequiresReviewerApproval = *override.RequiresReviewerApproval
		}
		cfg.StagePolicies[stage] = policy
	}

	return cfg, nil
}

// NewRouter assembles a *router.Router wired with a real Sandboxer over
// isolation, closing the gap between gate.Decision.Sandboxed and an actual
// isolated execution path: without this, a router built with a nil
// sandboxer falls through to direct, unsandboxed invocation for every
// write/side-effect tool call. artifactsRoot is passed through to
// sandbox.New ("" uses os.TempDir).
func NewRouter(
	cfg gate.Config,
	isolation sandbox.Isolation,
	artifactsRoot string,
	approvals gate.Approvals,
	commitVerifier router.CommitVerifier,
	auditLog audit.Store,
	logger telemetry.Logger,
) *router.Router {
	sb := sandbox.New(isolation, artifactsRoot, logger)
	return router.New(cfg, approvals, commitVerifier, sandbox.NewRouterAdapter(sb), auditLog, logger)
}

func parseTrustLevel(s string) (schema.TrustLevel, error) {
	switch s {
	case "L0":
		return schema.L0, nil
	case "L1":
		return schema.L1, nil
	case "L2":
		return schema.L2, nil
	case "L3":
		return schema.L3, nil
	case "L4":
		return schema.L4, nil
	default:
		return 0, fmt.Errorf("fail-closed: trust level %q", s)
	}
}
