package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kauf3r/agent-trust-layer/schema"
)

// Filter restricts a Query to events matching the given fields. Zero values
// mean "don't filter on this field".
type Filter struct {
	RunID      string
	Workflow   string
	Agent      string
	Domain     string
	TrustLevel *schema.TrustLevel
	Stage      schema.Stage
	Since      time.Time
	Until      time.Time
}

// Stats summarizes a set of events bucketed by trust level, stage, and
// domain, plus a count of events carrying a non-empty errors array.
type Stats struct {
	Total      int
	ByTrust    map[schema.TrustLevel]int
	ByStage    map[schema.Stage]int
	ByDomain   map[string]int
	WithErrors int
}

// AppendResult is returned by Append. Success carries the persisted event's
// id even when validation failed, so callers can correlate logs without
// leaking a partially-valid record into the store.
type AppendResult struct {
	ID uuid.UUID
	Ok bool
}

// Store is the append-only event sink contract. Implementations must be
// safe for concurrent use; writers never coordinate with each other.
type Store interface {
	// Append validates event and persists it. On validation failure it
	// returns a failure indicator carrying the event's id (generated when
	// the event has none) without persisting anything.
	Append(ctx context.Context, event Event) (AppendResult, error)

	// Query returns events matching filter, ordered by creation time
	// descending.
	Query(ctx context.Context, filter Filter) ([]Event, error)

	// Stats returns aggregate counts, optionally scoped to one run id.
	Stats(ctx context.Context, runID string) (Stats, error)
}
