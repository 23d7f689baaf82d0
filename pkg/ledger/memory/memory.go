// Package memory provides an in-memory ownership ledger.
//
// It is the default backend for tests and for volumes where ownership state
// does not need to survive a daemon restart (the ledger is rebuilt lazily
// from the content index on access).
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/LightningFastRom/mediafs/pkg/ledger"
	"github.com/LightningFastRom/mediafs/pkg/storage"
)

// MemoryLedger implements ledger.Store using a map guarded by a
// read-write mutex. Reads proceed concurrently; writes are serialized.
type MemoryLedger struct {
	mu      sync.RWMutex
	records map[string]ledger.Record
}

// New returns an empty in-memory ledger.
func New() *MemoryLedger {
	return &MemoryLedger{records: make(map[string]ledger.Record)}
}

// RecordCreate implements ledger.Store.
func (l *MemoryLedger) RecordCreate(ctx context.Context, rec ledger.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.records[rec.Path]; ok {
		return storage.NewAlreadyExists(rec.Path)
	}
	l.records[rec.Path] = rec
	return nil
}

// RecordDelete implements ledger.Store.
func (l *MemoryLedger) RecordDelete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.records[path]; !ok {
		return storage.NewNotFound(path)
	}
	delete(l.records, path)
	return nil
}

// Lookup implements ledger.Store.
func (l *MemoryLedger) Lookup(ctx context.Context, path string) (*ledger.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.records[path]
	if !ok {
		return nil, storage.NewNotFound(path)
	}
	return &rec, nil
}

// Rename implements ledger.Store. The exact record and every record under
// oldPath/ move in one critical section, so concurrent lookups observe
// either the old or the new state, never a mix.
func (l *MemoryLedger) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	prefix := oldPath + "/"
	moved := false

	if rec, ok := l.records[oldPath]; ok {
		delete(l.records, oldPath)
		rec.Path = newPath
		l.records[newPath] = rec
		moved = true
	}

	for p, rec := range l.records {
		if strings.HasPrefix(p, prefix) {
			delete(l.records, p)
			rec.Path = newPath + "/" + strings.TrimPrefix(p, prefix)
			l.records[rec.Path] = rec
			moved = true
		}
	}

	if !moved {
		return storage.NewNotFound(oldPath)
	}
	return nil
}

// Reconcile implements ledger.Store.
func (l *MemoryLedger) Reconcile(ctx context.Context, rec ledger.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[rec.Path] = rec
	return nil
}

// Close implements ledger.Store.
func (l *MemoryLedger) Close() error {
	return nil
}
