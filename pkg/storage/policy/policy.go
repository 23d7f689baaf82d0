// Package policy implements the access-mediation decision core.
//
// Given a resolved caller identity, an operation, and a classified target
// path, the engine returns Allow, Deny, or Allow-with-view-transform. It is
// the only component that mutates the ownership ledger, and it consults the
// content index at most once per decision, failing closed when the index is
// unreachable.
package policy

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/LightningFastRom/mediafs/internal/logger"
	"github.com/LightningFastRom/mediafs/pkg/identity"
	"github.com/LightningFastRom/mediafs/pkg/index"
	"github.com/LightningFastRom/mediafs/pkg/ledger"
	"github.com/LightningFastRom/mediafs/pkg/metrics"
	"github.com/LightningFastRom/mediafs/pkg/redact"
	"github.com/LightningFastRom/mediafs/pkg/storage"
	"github.com/LightningFastRom/mediafs/pkg/storage/classify"
)

// Engine is the policy decision core.
type Engine struct {
	ledger  ledger.Store
	index   index.Index
	metrics metrics.VolumeMetrics
}

// Options configures optional engine collaborators.
type Options struct {
	// Metrics receives content index consultation counts. Nil means no-op.
	Metrics metrics.VolumeMetrics
}

// New returns an engine deciding against the given ledger and index.
func New(ledgerStore ledger.Store, contentIndex index.Index, opts Options) *Engine {
	m := opts.Metrics
	if m == nil {
		m = metrics.NewNoopVolumeMetrics()
	}
	return &Engine{ledger: ledgerStore, index: contentIndex, metrics: m}
}

// AuthorizeCreate decides whether caller may create a regular file at the
// normalized volume-relative path.
//
// Rule order matters and is part of the contract: the type-path conformity
// check runs before any ownership consideration, because it is a
// content-class rule, not an identity rule. Foreign-sandbox denials use the
// single merged NotFound path regardless of whether the foreign package
// exists.
func (e *Engine) AuthorizeCreate(ctx context.Context, caller identity.Caller, rel string) error {
	if caller.System {
		return nil
	}

	dir, _ := splitPath(rel)
	if dir == "" {
		// No regular file may be created directly at the volume root,
		// whatever its type.
		return storage.NewNotPermitted(rel)
	}

	res := classify.Path(rel)
	kind := storage.KindOfName(rel)

	switch res.Class {
	case classify.PublicMedia:
		if !res.Accepts.Contains(kind) {
			return storage.NewTypeMismatch(rel)
		}
		return nil

	case classify.PublicDownload:
		return nil

	case classify.AppData, classify.AppMedia:
		if res.Owner != caller.Package || caller.Package == "" {
			return storage.NewForeignSandbox(rel)
		}
		return nil

	default:
		return storage.NewNotPermitted(rel)
	}
}

// AuthorizeMkdir decides whether caller may create a directory at the
// normalized volume-relative path. Directories are less constrained than
// files: any type-conformity rule applies to files only, and top-level
// structure is reserved to the system.
func (e *Engine) AuthorizeMkdir(ctx context.Context, caller identity.Caller, rel string) error {
	if caller.System {
		return nil
	}

	dir, _ := splitPath(rel)
	if dir == "" {
		return storage.NewNotPermitted(rel)
	}

	res := classify.Path(rel)
	switch res.Class {
	case classify.PublicMedia, classify.PublicDownload:
		return nil
	case classify.AppData, classify.AppMedia:
		if res.Owner != caller.Package || caller.Package == "" {
			return storage.NewForeignSandbox(rel)
		}
		return nil
	default:
		return storage.NewNotPermitted(rel)
	}
}

// AuthorizeDelete decides whether caller may remove the file at the
// normalized volume-relative path. Ownership is resolved against the ledger
// (with lazy index reconciliation); broad-write overrides ownership in
// public directories but never opens a foreign sandbox.
func (e *Engine) AuthorizeDelete(ctx context.Context, caller identity.Caller, rel string) error {
	if caller.System {
		return nil
	}

	res := classify.Path(rel)
	switch res.Class {
	case classify.AppData, classify.AppMedia:
		if res.Owner != caller.Package || caller.Package == "" {
			return storage.NewForeignSandbox(rel)
		}
		return nil

	case classify.PublicMedia, classify.PublicDownload:
		owner, err := e.resolveOwner(ctx, rel, res)
		if err != nil {
			return failClosed(err, rel)
		}
		if caller.OwnerOf(owner) || caller.BroadWrite() {
			return nil
		}
		return storage.NewPermissionDenied(rel)

	default:
		return storage.NewNotPermitted(rel)
	}
}

// AuthorizeOpen decides whether caller may open the file at the normalized
// volume-relative path. forWrite covers any mutating open (write, append,
// truncate).
//
// Reads in public directories are allowed for anyone who names the exact
// path: per-entry visibility is a listing concern, not an open concern.
// A non-owner reading a format that carries positional metadata gets
// AllowRedacted, directing the volume to strip it from the served bytes.
func (e *Engine) AuthorizeOpen(ctx context.Context, caller identity.Caller, rel string, forWrite bool) (storage.Decision, error) {
	if caller.System {
		return storage.Allow, nil
	}

	res := classify.Path(rel)
	switch res.Class {
	case classify.AppData, classify.AppMedia:
		if res.Owner != caller.Package || caller.Package == "" {
			return storage.Deny, storage.NewForeignSandbox(rel)
		}
		return storage.Allow, nil

	case classify.PublicMedia, classify.PublicDownload:
		owner, err := e.resolveOwner(ctx, rel, res)
		if err != nil {
			return storage.Deny, failClosed(err, rel)
		}

		if forWrite {
			if caller.OwnerOf(owner) || caller.BroadWrite() {
				return storage.Allow, nil
			}
			return storage.Deny, storage.NewPermissionDenied(rel)
		}

		if !caller.OwnerOf(owner) && redact.IsRedactable(rel) {
			return storage.AllowRedacted, nil
		}
		return storage.Allow, nil

	default:
		return storage.Deny, storage.NewNotFound(rel)
	}
}

// AuthorizeList decides whether caller may enumerate the directory at the
// normalized volume-relative path. A denial is an enumeration failure
// carrying the merged NotFound error; a caller never receives a partial
// listing in place of a denial.
//
// Private sandboxes (Android/data) are enumerable by their owner only:
// broad-read does not open them. Media sandboxes (Android/media) are
// additionally enumerable by broad-read holders, whose view is then
// filtered to indexed media by VisibleEntries.
func (e *Engine) AuthorizeList(ctx context.Context, caller identity.Caller, rel string) error {
	if caller.System {
		return nil
	}

	res := classify.Path(rel)
	switch res.Class {
	case classify.VolumeRoot, classify.PublicMedia, classify.PublicDownload:
		return nil

	case classify.AppData:
		if res.Owner != caller.Package || caller.Package == "" {
			return storage.NewForeignSandbox(rel)
		}
		return nil

	case classify.AppMedia:
		if res.Owner == caller.Package && caller.Package != "" {
			return nil
		}
		if caller.BroadRead() {
			return nil
		}
		return storage.NewForeignSandbox(rel)

	default:
		// Container directories such as "Android" and "Android/data" are
		// enumerable; their entries are filtered per-entry instead.
		return nil
	}
}

// CommitCreate registers ownership for a file the volume has just created
// physically, and notifies the content index for public contributions.
//
// The ledger write is the authoritative side effect: if it fails, the
// caller must undo the physical create and report the create as failed.
// Index notification is eventually consistent by contract, so its failure
// is logged and does not fail the operation.
func (e *Engine) CommitCreate(ctx context.Context, caller identity.Caller, rel string) error {
	owner := ""
	if !caller.System {
		owner = caller.Package
	}

	rec := ledger.Record{
		Path:      rel,
		Owner:     owner,
		Kind:      storage.KindOfName(rel),
		CreatedAt: time.Now().UTC(),
	}
	if err := e.ledger.RecordCreate(ctx, rec); err != nil {
		return err
	}

	if classify.Path(rel).Class.IsPublic() {
		dir, name := splitPath(rel)
		if _, err := e.index.Insert(ctx, index.Entry{
			RelativeDir: dir,
			DisplayName: name,
			Owner:       owner,
			Kind:        rec.Kind,
		}); err != nil {
			logger.Warn("index insert failed for %s: %v", rel, err)
		}
	}
	return nil
}

// CommitDelete removes ownership and index rows for a file the volume has
// just unlinked. Missing records are tolerated: the file may have been
// system-owned or the ledger already reconciled.
func (e *Engine) CommitDelete(ctx context.Context, rel string) {
	if err := e.ledger.RecordDelete(ctx, rel); err != nil && !storage.IsCode(err, storage.ErrNotFound) {
		logger.Warn("ledger delete failed for %s: %v", rel, err)
	}

	dir, name := splitPath(rel)
	if _, err := e.index.Delete(ctx, dir, name); err != nil {
		logger.Warn("index delete failed for %s: %v", rel, err)
	}
}

// CommitRename moves ownership and index rows after a physical rename.
// The ledger move is atomic; a crash window between the physical rename and
// this call is repaired by lazy reconciliation on next access.
func (e *Engine) CommitRename(ctx context.Context, oldRel, newRel string) {
	if err := e.ledger.Rename(ctx, oldRel, newRel); err != nil && !storage.IsCode(err, storage.ErrNotFound) {
		logger.Warn("ledger rename failed for %s -> %s: %v", oldRel, newRel, err)
	}

	oldDir, oldName := splitPath(oldRel)
	newDir, newName := splitPath(newRel)
	if oldDir == newDir {
		if _, err := e.index.Rename(ctx, oldDir, oldName, newName); err != nil {
			logger.Warn("index rename failed for %s: %v", oldRel, err)
		}
		return
	}

	// Cross-directory move: re-home the rows.
	entries, err := e.index.Query(ctx, oldDir, oldName)
	if err != nil {
		logger.Warn("index query failed for %s: %v", oldRel, err)
		return
	}
	if _, err := e.index.Delete(ctx, oldDir, oldName); err != nil {
		logger.Warn("index delete failed for %s: %v", oldRel, err)
		return
	}
	for _, entry := range entries {
		entry.RelativeDir = newDir
		entry.DisplayName = newName
		if _, err := e.index.Insert(ctx, entry); err != nil {
			logger.Warn("index insert failed for %s: %v", newRel, err)
		}
	}
}

// OwnerOf resolves the owning package of the file at rel, applying lazy
// reconciliation. The empty string means system-owned.
func (e *Engine) OwnerOf(ctx context.Context, rel string) (string, error) {
	return e.resolveOwner(ctx, rel, classify.Path(rel))
}

// resolveOwner looks up ownership in the ledger; on a miss under a public
// or sandbox directory it performs the single permitted index lookup and
// back-fills the ledger. A miss in both places means system-owned.
func (e *Engine) resolveOwner(ctx context.Context, rel string, res classify.Result) (string, error) {
	rec, err := e.ledger.Lookup(ctx, rel)
	if err == nil {
		return rec.Owner, nil
	}
	if !storage.IsCode(err, storage.ErrNotFound) {
		return "", err
	}

	if !res.Class.IsPublic() && !res.Class.IsSandbox() {
		return "", nil
	}

	dir, name := splitPath(rel)
	entries, err := e.index.Query(ctx, dir, name)
	if err != nil {
		if storage.IsCode(err, storage.ErrUnavailable) {
			e.metrics.RecordIndexLookup("unavailable")
		}
		return "", err
	}
	if len(entries) == 0 {
		e.metrics.RecordIndexLookup("miss")
		return "", nil
	}
	e.metrics.RecordIndexLookup("hit")

	owner := entries[0].Owner
	if err := e.ledger.Reconcile(ctx, ledger.Record{
		Path:      rel,
		Owner:     owner,
		Kind:      entries[0].Kind,
		CreatedAt: entries[0].AddedAt,
	}); err != nil {
		logger.Warn("ledger reconcile failed for %s: %v", rel, err)
	}
	return owner, nil
}

// failClosed converts an index-unavailable error into the caller-visible
// permission denial while logging the real cause. Other errors pass
// through.
func failClosed(err error, rel string) error {
	if storage.IsCode(err, storage.ErrUnavailable) {
		logger.Error("content index unavailable, failing closed for %s", rel)
		return storage.NewUnavailable(rel)
	}
	return err
}

// splitPath splits a normalized volume-relative path into parent directory
// ("" for the root) and base name.
func splitPath(rel string) (dir, name string) {
	dir, name = path.Split(rel)
	return strings.TrimSuffix(dir, "/"), name
}
