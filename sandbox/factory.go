package sandbox

import (
	"os"

	"github.com/kauf3r/agent-trust-layer/telemetry"
)

// FactoryConfig is read once at construction, per spec.md §9's guidance that
// environment-based factory selection is global mutable state that must not
// be re-read at call sites.
type FactoryConfig struct {
	NodeEnv         string
	SandboxEnabled  bool
	FailClosed      bool
	DefaultEnv      map[string]string
}

// ConfigFromEnv reads NODE_ENV, SANDBOX_ENABLED, and SANDBOX_FAIL_CLOSED once.
func ConfigFromEnv() FactoryConfig {
	return FactoryConfig{
		NodeEnv:        os.Getenv("NODE_ENV"),
		SandboxEnabled: os.Getenv("SANDBOX_ENABLED") != "false",
		FailClosed:     os.Getenv("SANDBOX_FAIL_CLOSED") == "true",
	}
}

// NewIsolation selects the isolation strategy per spec.md §6's process
// environment table:
//
//   - NODE_ENV=test -> passthrough (tests only);
//   - NODE_ENV=development and sandbox disabled -> passthrough with warning;
//   - NODE_ENV=production, or FailClosed set -> full isolation, circuit
//     broken, denying on unavailability.
//
// The blocklist is validated unconditionally before any branch runs: a
// configuration containing a blocked env var name yields a Denier that
// refuses every call with BLOCKED_ENV_VAR_REQUESTED. NewIsolation reports no
// error for it; the configuration is rejected only at call time.
func NewIsolation(cfg FactoryConfig, logger telemetry.Logger) Isolation {
	if blocked := ValidateEnv(cfg.DefaultEnv); blocked != "" {
		return Denier{Reason: ReasonBlockedEnvVarRequested}
	}

	switch {
	case cfg.NodeEnv == "test":
		return Passthrough{Logger: logger}
	case cfg.NodeEnv == "development" && !cfg.SandboxEnabled:
		return Passthrough{Logger: logger}
	case cfg.NodeEnv == "production" || cfg.FailClosed:
		return NewBreaker(NewDockerIsolation(logger), logger)
	default:
		return NewBreaker(NewDockerIsolation(logger), logger)
	}
}
