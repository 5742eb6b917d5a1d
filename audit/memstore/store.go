// Package memstore implements audit.Store in memory, used for tests and as
// the default fire-and-forget write target when no durable backend is
// configured.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kauf3r/agent-trust-layer/audit"
	"github.com/kauf3r/agent-trust-layer/schema"
)

// Store is an in-memory, mutex-guarded audit.Store.
type Store struct {
	mu     sync.RWMutex
	events []audit.Event
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{}
}

// Append validates and appends event, stamping CreatedAt/ID if unset.
func (s *Store) Append(_ context.Context, event audit.Event) (audit.AppendResult, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	res := audit.AppendResult{ID: event.ID}
	if err := event.Validate(); err != nil {
		return res, err
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()

	res.Ok = true
	return res, nil
}

// Query returns events matching filter, newest first.
func (s *Store) Query(_ context.Context, filter audit.Filter) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]audit.Event, 0, len(s.events))
	for _, e := range s.events {
		if !matches(e, filter) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func matches(e audit.Event, f audit.Filter) bool {
	if f.RunID != "" && e.RunID != f.RunID {
		return false
	}
	if f.Workflow != "" && e.Workflow != f.Workflow {
		return false
	}
	if f.Agent != "" && e.Agent != f.Agent {
		return false
	}
	if f.Domain != "" && e.Domain != f.Domain {
		return false
	}
	if f.TrustLevel != nil && e.TrustLevel != *f.TrustLevel {
		return false
	}
	if f.Stage != "" && e.Stage != f.Stage {
		return false
	}
	if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.CreatedAt.After(f.Until) {
		return false
	}
	return true
}

// Stats aggregates counts, optionally scoped to one run id.
func (s *Store) Stats(_ context.Context, runID string) (audit.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := audit.Stats{
		ByTrust:  map[schema.TrustLevel]int{},
		ByStage:  map[schema.Stage]int{},
		ByDomain: map[string]int{},
	}
	for _, e := range s.events {
		if runID != "" && e.RunID != runID {
			continue
		}
		stats.Total++
		stats.ByTrust[e.TrustLevel]++
		stats.ByStage[e.Stage]++
		stats.ByDomain[e.Domain]++
		if e.HasErrors() {
			stats.WithErrors++
		}
	}
	return stats, nil
}
