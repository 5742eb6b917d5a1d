package sandbox

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kauf3r/agent-trust-layer/schema"
)

// StagedChange is the ledger record from spec.md §3: a mutation captured by
// a sandboxed execution, held until an explicit commit materializes it or a
// rollback discards it.
type StagedChange struct {
	ID             uuid.UUID
	SandboxID      string
	OriginatingTool string
	ChangeType     schema.ChangeType
	EntityType     string
	EntityID       string
	Payload        map[string]any
	Timestamp      time.Time
}

// ledger is a staged-change store partitioned by sandbox id, per spec.md
// §5's statement that the ledger is never shared across sandboxes.
type ledger struct {
	mu      sync.Mutex
	changes map[string][]StagedChange // sandbox id -> changes, insertion order
}

func newLedger() *ledger {
	return &ledger{changes: map[string][]StagedChange{}}
}

func (l *ledger) stage(c StagedChange) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes[c.SandboxID] = append(l.changes[c.SandboxID], c)
}

func (l *ledger) get(sandboxID string) []StagedChange {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]StagedChange, len(l.changes[sandboxID]))
	copy(out, l.changes[sandboxID])
	return out
}

func (l *ledger) discard(sandboxID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.changes, sandboxID)
}
