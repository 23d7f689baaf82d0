// Package ledger defines the ownership ledger: the authoritative record of
// which application created which file on the shared volume, independent of
// physical filesystem metadata.
package ledger

import (
	"context"
	"time"

	"github.com/LightningFastRom/mediafs/pkg/storage"
)

// Record is one ledger entry. Records exist only for regular files; a file's
// ownership, once recorded, authorizes delete/rename/attribute operations
// regardless of which directory the file physically sits in.
type Record struct {
	// Path is the normalized volume-relative path of the file.
	Path string `json:"path"`

	// Owner is the owning package name. Empty means system-owned: the file
	// was placed by a privileged caller or discovered by the scanner, and no
	// application holds ownership rights over it.
	Owner string `json:"owner"`

	// Kind is the media kind the file was classified as at creation.
	Kind storage.MediaKind `json:"kind"`

	// CreatedAt is the ledger registration time.
	CreatedAt time.Time `json:"created_at"`
}

// Store is the ownership ledger contract.
//
// Implementations must be safe for concurrent use: reads may proceed freely
// while writes for the same path are serialized. All operations return
// *storage.StorageError for domain failures.
type Store interface {
	// RecordCreate registers ownership for a newly created file. It fails
	// with ErrAlreadyExists when a record for the path is present, which
	// callers treat as a lost create race.
	RecordCreate(ctx context.Context, rec Record) error

	// RecordDelete removes the record for a path. Fails with ErrNotFound
	// when no record exists.
	RecordDelete(ctx context.Context, path string) error

	// Lookup returns the record for a path, or ErrNotFound. A missing
	// record under a public or sandbox directory is not an error condition
	// for callers: the policy engine reconciles it as system-owned.
	Lookup(ctx context.Context, path string) (*Record, error)

	// Rename moves ownership from old to new atomically with respect to
	// concurrent lookups. When old names a directory prefix, every record
	// under it moves as well. A crash between the physical rename and the
	// ledger move is repaired by lazy reconciliation on next access.
	Rename(ctx context.Context, oldPath, newPath string) error

	// Reconcile upserts a record, used by lazy reconciliation when a file
	// exists physically without a ledger entry.
	Reconcile(ctx context.Context, rec Record) error

	// Close releases resources held by the store.
	Close() error
}
