package policy

import (
	"context"

	"github.com/LightningFastRom/mediafs/pkg/identity"
	"github.com/LightningFastRom/mediafs/pkg/storage"
	"github.com/LightningFastRom/mediafs/pkg/storage/classify"
)

// RawEntry is one physical directory entry before visibility filtering.
type RawEntry struct {
	Name  string
	IsDir bool
}

// visibilityKey indexes the per-file visibility table. The three axes are
// independent: whether the caller owns the entry, whether it holds
// broad-read, and whether the entry is a recognized media file.
type visibilityKey struct {
	owner      bool
	broadRead  bool
	recognized bool
}

// fileVisibility is the per-entry decision table for files in public
// directories. Expressing the policy as data keeps it auditable and lets
// tests assert exhaustiveness over all eight combinations.
//
// Owners see their own files unconditionally. Broad-read reveals media
// contributed by others, but never their non-media files.
var fileVisibility = map[visibilityKey]bool{
	{owner: true, broadRead: true, recognized: true}:    true,
	{owner: true, broadRead: true, recognized: false}:   true,
	{owner: true, broadRead: false, recognized: true}:   true,
	{owner: true, broadRead: false, recognized: false}:  true,
	{owner: false, broadRead: true, recognized: true}:   true,
	{owner: false, broadRead: true, recognized: false}:  false,
	{owner: false, broadRead: false, recognized: true}:  false,
	{owner: false, broadRead: false, recognized: false}: false,
}

// VisibleEntries filters the raw entries of an authorized directory down to
// the subset the caller may see. The filter is applied per entry, never per
// directory: a directory can contain a mix of visible and hidden entries.
//
// Subdirectories are visible by default (directory existence is not itself
// sensitive), with one exception: inside the sandbox containers
// (Android/data, Android/media) each package directory follows the same
// enumerability rule as the sandbox itself.
func (e *Engine) VisibleEntries(ctx context.Context, caller identity.Caller, relDir string, entries []RawEntry) ([]RawEntry, error) {
	if caller.System {
		return entries, nil
	}

	res := classify.Path(relDir)

	// Inside the caller's own sandbox everything is visible.
	if res.Class.IsSandbox() && res.Owner == caller.Package && caller.Package != "" {
		return entries, nil
	}

	visible := make([]RawEntry, 0, len(entries))
	for _, entry := range entries {
		childRel := joinPath(relDir, entry.Name)

		if entry.IsDir {
			if e.dirVisible(caller, childRel) {
				visible = append(visible, entry)
			}
			continue
		}

		owner, err := e.resolveOwner(ctx, childRel, classify.Path(childRel))
		if err != nil {
			return nil, failClosed(err, childRel)
		}

		key := visibilityKey{
			owner:      caller.OwnerOf(owner),
			broadRead:  caller.BroadRead(),
			recognized: storage.KindOfName(entry.Name).IsMedia(),
		}
		if fileVisibility[key] {
			visible = append(visible, entry)
		}
	}
	return visible, nil
}

// dirVisible reports whether a subdirectory entry is shown. Ordinary
// directories always are; package directories under the sandbox containers
// are shown only when the caller could enumerate them.
func (e *Engine) dirVisible(caller identity.Caller, childRel string) bool {
	res := classify.Path(childRel)
	switch res.Class {
	case classify.AppData:
		return res.Owner == caller.Package && caller.Package != ""
	case classify.AppMedia:
		if res.Owner == caller.Package && caller.Package != "" {
			return true
		}
		return caller.BroadRead()
	default:
		return true
	}
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
