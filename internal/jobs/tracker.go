// Package jobs tracks manifest rows whose jobs are in flight, keyed by ARK.
package jobs

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/av-pairtree/internal/manifest"
)

var (
	ErrDuplicate = errors.New("ark already has jobs in flight")
	ErrNotFound  = errors.New("ark is not tracked")
	ErrNotOwner  = errors.New("ark is tracked by another run")
)

type Entry struct {
	Item      manifest.Item `json:"item"`
	RunID     string        `json:"run_id"`
	Manifest  string        `json:"manifest"`
	StartedAt time.Time     `json:"started_at"`
}

// Tracker is the set of in-flight ARKs. Implementations must be safe for
// concurrent use.
type Tracker interface {
	Add(ctx context.Context, entry Entry) error
	// Remove releases ark only if runID still owns it.
	Remove(ctx context.Context, ark, runID string) error
	Get(ctx context.Context, ark string) (Entry, error)
	List(ctx context.Context) ([]Entry, error)
}

type MemoryTracker struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{entries: make(map[string]Entry)}
}

var _ Tracker = (*MemoryTracker)(nil)

func (t *MemoryTracker) Add(_ context.Context, entry Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[entry.Item.ARK]; ok {
		return ErrDuplicate
	}
	t.entries[entry.Item.ARK] = entry
	return nil
}

func (t *MemoryTracker) Remove(_ context.Context, ark, runID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[ark]
	if !ok {
		return ErrNotFound
	}
	if e.RunID != runID {
		return ErrNotOwner
	}
	delete(t.entries, ark)
	return nil
}

func (t *MemoryTracker) Get(_ context.Context, ark string) (Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[ark]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (t *MemoryTracker) List(_ context.Context) ([]Entry, error) {
	t.mu.Lock()
	entries := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	t.mu.Unlock()

	sortEntries(entries)
	return entries, nil
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].StartedAt.Equal(entries[j].StartedAt) {
			return entries[i].Item.ARK < entries[j].Item.ARK
		}
		return entries[i].StartedAt.Before(entries[j].StartedAt)
	})
}
