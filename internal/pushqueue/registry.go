// Package pushqueue records which branches a run has changed so they can be
// pushed together at the end of the run.
//
// Entries are keyed by a run identifier. Adding a branch twice is a no-op,
// and Drain hands each branch out at most once. Independent runs never see
// each other's entries.
package pushqueue

import (
	"context"
	"sort"
	"strings"
	"sync"

	gkerrors "gatekeeper.dev/gatekeeper/internal/errors"
)

// Registry is the pending push set shared by the steps of a run
type Registry interface {
	// Add records branch as pending for runID
	Add(ctx context.Context, runID, branch string) error
	// List returns the pending branches of runID, sorted, without removing them
	List(ctx context.Context, runID string) ([]string, error)
	// Drain atomically returns and removes every pending branch of runID,
	// sorted by name
	Drain(ctx context.Context, runID string) ([]string, error)
	// SetMeta stores a piece of run metadata such as the feature or target
	SetMeta(ctx context.Context, runID, key, value string) error
	// Meta returns the metadata recorded for runID
	Meta(ctx context.Context, runID string) (map[string]string, error)
	Close() error
}

// Metadata keys recorded by the gatekeeper merge
const (
	MetaFeature = "feature"
	MetaTarget  = "target"
)

func checkRunID(runID string) error {
	if strings.TrimSpace(runID) == "" {
		return gkerrors.ErrNoRunID
	}
	return nil
}

// MemoryRegistry is a Registry that lives in process memory
type MemoryRegistry struct {
	mu      sync.Mutex
	pending map[string]map[string]struct{}
	meta    map[string]map[string]string
}

var _ Registry = (*MemoryRegistry)(nil)

// NewMemoryRegistry creates an empty in-memory registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		pending: map[string]map[string]struct{}{},
		meta:    map[string]map[string]string{},
	}
}

func (r *MemoryRegistry) Add(_ context.Context, runID, branch string) error {
	if err := checkRunID(runID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.pending[runID]
	if !ok {
		set = map[string]struct{}{}
		r.pending[runID] = set
	}
	set[branch] = struct{}{}
	return nil
}

func (r *MemoryRegistry) List(_ context.Context, runID string) ([]string, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.pending[runID]), nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *MemoryRegistry) Drain(_ context.Context, runID string) ([]string, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	branches := sortedKeys(r.pending[runID])
	delete(r.pending, runID)
	return branches, nil
}

func (r *MemoryRegistry) SetMeta(_ context.Context, runID, key, value string) error {
	if err := checkRunID(runID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.meta[runID]
	if !ok {
		m = map[string]string{}
		r.meta[runID] = m
	}
	m[key] = value
	return nil
}

func (r *MemoryRegistry) Meta(_ context.Context, runID string) (map[string]string, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.meta[runID]))
	for k, v := range r.meta[runID] {
		out[k] = v
	}
	return out, nil
}

// Close does nothing
func (r *MemoryRegistry) Close() error {
	return nil
}
