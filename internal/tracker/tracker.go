package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gamewatch/internal/catalog"
	"gamewatch/internal/storage"
	logx "gamewatch/pkg/logx"
)

// Source yields the current catalog snapshot.
type Source interface {
	Fetch(ctx context.Context) (catalog.Snapshot, error)
}

// NewEntry is an entry present in the latest snapshot but not in the
// previous known set.
type NewEntry struct {
	ID    string
	Entry catalog.Entry
}

// Result describes one completed check.
type Result struct {
	New []NewEntry

	// Fetched is the number of entries in the snapshot.
	Fetched int
	// Known is the size of the known set after the check.
	Known int
	// Empty is set when the snapshot had no entries and the known set was
	// left untouched.
	Empty bool
	// SaveErr is the persistence error, if any. The in-memory set has
	// already advanced when it is set.
	SaveErr error

	Took time.Duration
}

// Tracker is the single owner of the known set.
type Tracker struct {
	src   Source
	store storage.Store
	log   logx.Logger

	// cycleMu serializes Check and Reset end to end.
	cycleMu sync.Mutex

	mu    sync.RWMutex
	known Set
}

// New loads the persisted known set. A load failure is logged and the set
// starts empty.
func New(ctx context.Context, src Source, store storage.Store, log logx.Logger) *Tracker {
	t := &Tracker{
		src:   src,
		store: store,
		log:   log.With(logx.String("comp", "tracker")),
		known: Set{},
	}
	if store == nil {
		return t
	}
	ids, err := store.Load(ctx)
	if err != nil {
		t.log.Error("load known set failed; starting empty", logx.Err(err))
		return t
	}
	t.known = newSet(ids)
	t.log.Info("known set loaded", logx.Int("count", len(t.known)))
	return t
}

// Check fetches the catalog, advances the known set and persists it.
// A fetch error leaves the known set unchanged.
func (t *Tracker) Check(ctx context.Context) (Result, error) {
	t.cycleMu.Lock()
	defer t.cycleMu.Unlock()

	start := time.Now()
	snap, err := t.src.Fetch(ctx)
	if err != nil {
		return Result{Known: t.Count(), Took: time.Since(start)}, fmt.Errorf("fetch catalog: %w", err)
	}
	if len(snap) == 0 {
		t.log.Warn("catalog snapshot is empty; known set unchanged")
		return Result{Empty: true, Known: t.Count(), Took: time.Since(start)}, nil
	}

	res := Result{Fetched: len(snap)}
	res.New = t.Advance(snap)
	res.Known = t.Count()
	res.SaveErr = t.persist(ctx)
	res.Took = time.Since(start)
	return res, nil
}

// Preview fetches the catalog and reports what Check would announce without
// touching the known set or the store.
func (t *Tracker) Preview(ctx context.Context) (Result, error) {
	t.cycleMu.Lock()
	defer t.cycleMu.Unlock()

	start := time.Now()
	snap, err := t.src.Fetch(ctx)
	if err != nil {
		return Result{Known: t.Count(), Took: time.Since(start)}, fmt.Errorf("fetch catalog: %w", err)
	}
	res := Result{Fetched: len(snap), Known: t.Count(), Empty: len(snap) == 0}
	t.mu.RLock()
	for _, id := range snap.IDs() {
		if !t.known.Has(id) {
			res.New = append(res.New, NewEntry{ID: id, Entry: snap[id]})
		}
	}
	t.mu.RUnlock()
	res.Took = time.Since(start)
	return res, nil
}

// Advance replaces the known set with the snapshot's ids and returns the
// entries that were not known before, sorted by id. An empty snapshot is a
// no-op.
func (t *Tracker) Advance(snap catalog.Snapshot) []NewEntry {
	if len(snap) == 0 {
		return nil
	}
	next := make(Set, len(snap))
	for id := range snap {
		next[id] = struct{}{}
	}

	t.mu.Lock()
	prev := t.known
	t.known = next
	t.mu.Unlock()

	var out []NewEntry
	for _, id := range snap.IDs() {
		if prev.Has(id) {
			continue
		}
		out = append(out, NewEntry{ID: id, Entry: snap[id]})
	}
	return out
}

// Reset clears the known set and the persisted state. The next check reports
// every catalog entry as new.
func (t *Tracker) Reset(ctx context.Context) error {
	t.cycleMu.Lock()
	defer t.cycleMu.Unlock()

	t.mu.Lock()
	t.known = Set{}
	t.mu.Unlock()

	if t.store == nil {
		return nil
	}
	if err := t.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear persisted state: %w", err)
	}
	t.log.Info("known set reset")
	return nil
}

// Count returns the number of known ids.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.known)
}

// Known returns the known ids in ascending order.
func (t *Tracker) Known() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.known.Sorted()
}

// Persisted reports whether persisted state currently exists.
func (t *Tracker) Persisted(ctx context.Context) bool {
	if t.store == nil {
		return false
	}
	ok, err := t.store.Exists(ctx)
	if err != nil {
		t.log.Warn("persisted state check failed", logx.Err(err))
		return false
	}
	return ok
}

func (t *Tracker) persist(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	ids := t.Known()
	if err := t.store.Save(ctx, ids); err != nil {
		t.log.Error("persist known set failed; keeping in-memory state", logx.Err(err), logx.Int("count", len(ids)))
		return err
	}
	return nil
}
