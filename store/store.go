// Package store persists analysis runs.
package store

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/flashbots/ppcalc/metric"
	"github.com/flashbots/ppcalc/trace"
	"github.com/google/uuid"
)

var ErrRunNotFound = errors.New("run not found")

// Run is one analysis of a trace with a given delay window.
type Run struct {
	ID           uuid.UUID `json:"id"`
	TraceDigest  string    `json:"trace_digest"`
	MinWindow    int64     `json:"min_window_ms"`
	MaxWindow    int64     `json:"max_window_ms"`
	Messages     int       `json:"messages"`
	Sources      int       `json:"sources"`
	Deanonymized int       `json:"deanonymized"`
	CreatedAt    time.Time `json:"created_at"`

	// Sets is left empty by ListRuns.
	Sets map[trace.SourceID][]metric.SetEntry `json:"sets,omitempty"`
}

// NewRun describes the analysis of tr that produced res.
func NewRun(tr *trace.Trace, res *metric.Result, deanonymized int) *Run {
	return &Run{
		ID:           uuid.New(),
		TraceDigest:  tr.Digest(),
		MinWindow:    res.Window.Min.Milliseconds(),
		MaxWindow:    res.Window.Max.Milliseconds(),
		Messages:     tr.Len(),
		Sources:      tr.NumSources(),
		Deanonymized: deanonymized,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
		Sets:         res.Sources,
	}
}

// clone returns a deep copy of r.
func (r *Run) clone() *Run {
	cp := *r
	if r.Sets != nil {
		cp.Sets = make(map[trace.SourceID][]metric.SetEntry, len(r.Sets))
		for source, entries := range r.Sets {
			out := make([]metric.SetEntry, len(entries))
			for i, e := range entries {
				out[i] = metric.SetEntry{Message: e.Message, Destinations: slices.Clone(e.Destinations)}
			}
			cp.Sets[source] = out
		}
	}
	return &cp
}

// Store is implemented by run storage backends.
type Store interface {
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	// ListRuns returns all runs, newest first, without their sets.
	ListRuns(ctx context.Context) ([]*Run, error)
	DeleteRun(ctx context.Context, id uuid.UUID) error
	Close() error
}

// MemoryStore keeps runs in memory. It is used when no database is
// configured and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*Run
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[uuid.UUID]*Run),
	}
}

// SaveRun stores a deep copy of run, replacing any run with the same ID.
func (s *MemoryStore) SaveRun(_ context.Context, run *Run) error {
	cp := run.clone()
	s.mu.Lock()
	s.runs[run.ID] = cp
	s.mu.Unlock()
	return nil
}

// GetRun returns the run with the given ID.
func (s *MemoryStore) GetRun(_ context.Context, id uuid.UUID) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run.clone(), nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]*Run, error) {
	s.mu.RLock()
	runs := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		cp := *run
		cp.Sets = nil
		runs = append(runs, &cp)
	}
	s.mu.RUnlock()

	sortNewestFirst(runs)
	return runs, nil
}

// DeleteRun removes a run.
func (s *MemoryStore) DeleteRun(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[id]; !ok {
		return ErrRunNotFound
	}
	delete(s.runs, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func sortNewestFirst(runs []*Run) {
	slices.SortFunc(runs, func(a, b *Run) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
}
