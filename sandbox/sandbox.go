package sandbox

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/kauf3r/agent-trust-layer/schema"
	"github.com/kauf3r/agent-trust-layer/telemetry"
)

// Sandbox is the operation surface from spec.md §4.D: execute, getStagedChanges,
// commitChanges, rollbackChanges, cleanup.
type Sandbox struct {
	isolation  Isolation
	ledger     *ledger
	artifacts  string
	logger     telemetry.Logger
}

// New constructs a Sandbox over the given isolation strategy. artifactsRoot
// is the base directory under which each sandbox id gets its own artifacts
// subdirectory; pass "" to use os.TempDir.
func New(isolation Isolation, artifactsRoot string, logger telemetry.Logger) *Sandbox {
	if artifactsRoot == "" {
		artifactsRoot = os.TempDir()
	}
	return &Sandbox{isolation: isolation, ledger: newLedger(), artifacts: artifactsRoot, logger: logger}
}

// ExecuteInput is one call into the sandbox.
type ExecuteInput struct {
	ToolName   string
	Args       map[string]any
	Limits     Limits
	ChangeType schema.ChangeType
	EntityType string
	EntityID   string
	Handler    schema.Handler
}

// Execute runs handler under isolation and, on success, stages the result as
// a StagedChange keyed by the freshly generated sandbox id.
func (s *Sandbox) Execute(ctx context.Context, in ExecuteInput) Result {
	sandboxID := uuid.New().String()

	dir := filepath.Join(s.artifacts, sandboxID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Result{SandboxID: sandboxID, FailureReason: ReasonArtifactsDirCreateFailed, DeniedByPolicy: true}
	}

	res := s.isolation.Execute(ctx, Input{
		SandboxID: sandboxID,
		ToolName:  in.ToolName,
		Args:      in.Args,
		Limits:    in.Limits,
		Run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return in.Handler(ctx, args)
		},
	})
	res.SandboxID = sandboxID
	res.ArtifactPaths = append(res.ArtifactPaths, dir)

	if res.Success {
		s.ledger.stage(StagedChange{
			ID:              uuid.New(),
			SandboxID:       sandboxID,
			OriginatingTool: in.ToolName,
			ChangeType:      in.ChangeType,
			EntityType:      in.EntityType,
			EntityID:        in.EntityID,
			Payload:         res.Value,
		})
	}
	return res
}

// GetStagedChanges returns the staged changes accumulated for sandboxID.
func (s *Sandbox) GetStagedChanges(sandboxID string) []StagedChange {
	return s.ledger.get(sandboxID)
}

// CommitChanges is a hook for the commit boundary: it returns the staged
// changes for materialization by domain code and clears the ledger entry.
// It does not itself write to production storage.
func (s *Sandbox) CommitChanges(sandboxID string) []StagedChange {
	changes := s.ledger.get(sandboxID)
	s.ledger.discard(sandboxID)
	return changes
}

// RollbackChanges discards the staged-change ledger for sandboxID without
// materializing anything.
func (s *Sandbox) RollbackChanges(sandboxID string) {
	s.ledger.discard(sandboxID)
}

// Cleanup removes the sandbox's artifacts directory and clears any
// remaining ledger state.
func (s *Sandbox) Cleanup(sandboxID string) error {
	s.ledger.discard(sandboxID)
	dir := filepath.Join(s.artifacts, sandboxID)
	if err := os.RemoveAll(dir); err != nil {
		if s.logger != nil {
			s.logger.Warn(context.Background(), "sandbox: cleanup failed", "sandbox_id", sandboxID, "error", err)
		}
		return err
	}
	return nil
}
