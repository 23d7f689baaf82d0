package index

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LightningFastRom/mediafs/pkg/storage"
)

// MemoryIndex is an in-process Index implementation.
//
// Eventual consistency is modeled explicitly: with AutoPublish disabled,
// inserted rows stay pending until Sync is called, which is how tests
// exercise the visibility window without timing assumptions. With
// AutoPublish enabled (the default) rows are queryable immediately.
//
// SetAvailable(false) simulates an unreachable index: every operation fails
// with ErrUnavailable, which access decisions must treat as a denial.
type MemoryIndex struct {
	mu          sync.RWMutex
	rows        map[uuid.UUID]Entry
	pending     map[uuid.UUID]Entry
	autoPublish bool
	available   bool
}

// MemoryIndexOptions configures a MemoryIndex.
type MemoryIndexOptions struct {
	// AutoPublish makes inserted rows queryable immediately. When false,
	// rows stay pending until Sync.
	AutoPublish bool
}

// NewMemoryIndex returns an available index with immediate publication.
func NewMemoryIndex() *MemoryIndex {
	return NewMemoryIndexWithOptions(MemoryIndexOptions{AutoPublish: true})
}

// NewMemoryIndexWithOptions returns an available index with the given
// publication behavior.
func NewMemoryIndexWithOptions(opts MemoryIndexOptions) *MemoryIndex {
	return &MemoryIndex{
		rows:        make(map[uuid.UUID]Entry),
		pending:     make(map[uuid.UUID]Entry),
		autoPublish: opts.AutoPublish,
		available:   true,
	}
}

// SetAvailable toggles simulated reachability.
func (m *MemoryIndex) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
}

// Sync implements Syncer: every pending row becomes queryable.
func (m *MemoryIndex) Sync() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, entry := range m.pending {
		m.rows[id] = entry
		delete(m.pending, id)
	}
}

// Insert implements Index.
func (m *MemoryIndex) Insert(ctx context.Context, entry Entry) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return uuid.Nil, storage.NewUnavailable(entry.Path())
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now().UTC()
	}

	if m.autoPublish {
		m.rows[entry.ID] = entry
	} else {
		m.pending[entry.ID] = entry
	}
	return entry.ID, nil
}

// Query implements Index.
func (m *MemoryIndex) Query(ctx context.Context, relativeDir, displayName string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.available {
		return nil, storage.NewUnavailable(relativeDir + "/" + displayName)
	}

	var matches []Entry
	for _, entry := range m.rows {
		if entry.RelativeDir == relativeDir && entry.DisplayName == displayName {
			matches = append(matches, entry)
		}
	}
	return matches, nil
}

// Delete implements Index. Pending rows are removed as well: a delete must
// never resurrect a row that was about to become visible.
func (m *MemoryIndex) Delete(ctx context.Context, relativeDir, displayName string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return 0, storage.NewUnavailable(relativeDir + "/" + displayName)
	}

	removed := 0
	for _, table := range []map[uuid.UUID]Entry{m.rows, m.pending} {
		for id, entry := range table {
			if entry.RelativeDir == relativeDir && entry.DisplayName == displayName {
				delete(table, id)
				removed++
			}
		}
	}
	return removed, nil
}

// Rename implements Index.
func (m *MemoryIndex) Rename(ctx context.Context, relativeDir, oldName, newName string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return 0, storage.NewUnavailable(relativeDir + "/" + oldName)
	}

	renamed := 0
	for _, table := range []map[uuid.UUID]Entry{m.rows, m.pending} {
		for id, entry := range table {
			if entry.RelativeDir == relativeDir && entry.DisplayName == oldName {
				entry.DisplayName = newName
				table[id] = entry
				renamed++
			}
		}
	}
	return renamed, nil
}

// Close implements Index.
func (m *MemoryIndex) Close() error {
	return nil
}
