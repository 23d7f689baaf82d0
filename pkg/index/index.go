// Package index defines the content index collaborator: the external
// service that makes contributed media queryable by (relative path, display
// name) and records the owning package of each row.
//
// The engine and the index cooperate but stay loosely coupled: the engine
// notifies the index on create/delete/rename, and consults it lazily to
// back-fill the ownership ledger. The boundary is eventually consistent: a
// row inserted for a just-created file may take a short, bounded time to
// become queryable.
package index

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/LightningFastRom/mediafs/pkg/storage"
)

// Entry is one index row.
type Entry struct {
	// ID is the stable row identifier.
	ID uuid.UUID `json:"id"`

	// RelativeDir is the normalized volume-relative directory of the file,
	// without trailing slash ("DCIM", "Download/docs").
	RelativeDir string `json:"relative_dir"`

	// DisplayName is the file name within RelativeDir.
	DisplayName string `json:"display_name"`

	// Owner is the contributing package, empty for system-contributed rows.
	Owner string `json:"owner"`

	// Kind is the media kind determined at indexing time.
	Kind storage.MediaKind `json:"kind"`

	// AddedAt is the insertion time.
	AddedAt time.Time `json:"added_at"`
}

// Path returns the full volume-relative path of the entry.
func (e Entry) Path() string {
	if e.RelativeDir == "" {
		return e.DisplayName
	}
	return e.RelativeDir + "/" + e.DisplayName
}

// Index is the content index contract.
//
// Every method may fail with a StorageError carrying ErrUnavailable when the
// index is unreachable; callers making access decisions must then fail
// closed.
type Index interface {
	// Insert adds a row. The returned id identifies the row for updates.
	Insert(ctx context.Context, entry Entry) (uuid.UUID, error)

	// Query returns the visible rows matching (relativeDir, displayName).
	// Rows inside the eventual-consistency window are not returned.
	Query(ctx context.Context, relativeDir, displayName string) ([]Entry, error)

	// Delete removes rows matching (relativeDir, displayName) and returns
	// how many were removed.
	Delete(ctx context.Context, relativeDir, displayName string) (int, error)

	// Rename updates the display name of rows matching
	// (relativeDir, oldName) to newName.
	Rename(ctx context.Context, relativeDir, oldName, newName string) (int, error)

	// Close releases resources held by the index.
	Close() error
}

// Syncer is implemented by indexes that expose their eventual-consistency
// window as an explicit synchronization hook. Tests call Sync instead of
// sleeping for a hardcoded delay.
type Syncer interface {
	// Sync publishes every pending row, making it queryable.
	Sync()
}
