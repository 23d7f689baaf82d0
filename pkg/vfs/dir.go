package vfs

import (
	"context"
	"io/fs"
	"os"
	"time"

	"github.com/LightningFastRom/mediafs/pkg/identity"
	"github.com/LightningFastRom/mediafs/pkg/storage"
	"github.com/LightningFastRom/mediafs/pkg/storage/classify"
	"github.com/LightningFastRom/mediafs/pkg/storage/policy"
)

// DirEntry is one entry of a mediated directory listing.
type DirEntry struct {
	Name  string
	IsDir bool
}

// Mkdir creates a directory at rel on behalf of the caller.
func (v *Volume) Mkdir(ctx context.Context, token identity.Token, rel string) error {
	start := time.Now()
	caller, rel, err := v.begin(ctx, token, rel)
	if err != nil {
		v.observe("mkdir", storage.Deny, start)
		return err
	}

	if err := v.engine.AuthorizeMkdir(ctx, caller, rel); err != nil {
		v.observe("mkdir", storage.Deny, start)
		return err
	}

	if err := os.Mkdir(v.physical(rel), 0o755); err != nil {
		v.observe("mkdir", storage.Deny, start)
		return mapOSError(err, rel)
	}
	v.observe("mkdir", storage.Allow, start)
	return nil
}

// Rmdir removes the empty directory at rel on behalf of the caller.
func (v *Volume) Rmdir(ctx context.Context, token identity.Token, rel string) error {
	start := time.Now()
	caller, rel, err := v.begin(ctx, token, rel)
	if err != nil {
		v.observe("rmdir", storage.Deny, start)
		return err
	}

	// Removal rights in a location mirror creation rights there, so a
	// foreign sandbox answers NotFound before any physical probe.
	if err := v.engine.AuthorizeMkdir(ctx, caller, rel); err != nil {
		v.observe("rmdir", storage.Deny, start)
		return err
	}

	info, err := os.Lstat(v.physical(rel))
	if err != nil {
		v.observe("rmdir", storage.Deny, start)
		return mapOSError(err, rel)
	}
	if !info.IsDir() {
		v.observe("rmdir", storage.Deny, start)
		return storage.NewNotDirectory(rel)
	}

	if err := os.Remove(v.physical(rel)); err != nil {
		v.observe("rmdir", storage.Deny, start)
		return mapOSError(err, rel)
	}
	v.observe("rmdir", storage.Allow, start)
	return nil
}

// ReadDir lists the directory at rel, filtered down to the entries this
// caller is allowed to know exist.
func (v *Volume) ReadDir(ctx context.Context, token identity.Token, rel string) ([]DirEntry, error) {
	start := time.Now()
	caller, rel, err := v.begin(ctx, token, rel)
	if err != nil {
		v.observe("readdir", storage.Deny, start)
		return nil, err
	}

	if err := v.engine.AuthorizeList(ctx, caller, rel); err != nil {
		v.observe("readdir", storage.Deny, start)
		return nil, err
	}

	entries, err := os.ReadDir(v.physical(rel))
	if err != nil {
		v.observe("readdir", storage.Deny, start)
		return nil, mapOSError(err, rel)
	}

	raw := make([]policy.RawEntry, 0, len(entries))
	for _, e := range entries {
		raw = append(raw, policy.RawEntry{Name: e.Name(), IsDir: e.IsDir()})
	}

	visible, err := v.engine.VisibleEntries(ctx, caller, rel, raw)
	if err != nil {
		v.observe("readdir", storage.Deny, start)
		return nil, err
	}

	out := make([]DirEntry, 0, len(visible))
	for _, e := range visible {
		out = append(out, DirEntry{Name: e.Name, IsDir: e.IsDir})
	}
	v.observe("readdir", storage.Allow, start)
	return out, nil
}

// Stat returns metadata for rel under the same visibility rules as Open:
// paths the caller may not observe answer NotFound.
func (v *Volume) Stat(ctx context.Context, token identity.Token, rel string) (fs.FileInfo, error) {
	start := time.Now()
	caller, rel, err := v.begin(ctx, token, rel)
	if err != nil {
		v.observe("stat", storage.Deny, start)
		return nil, err
	}

	if rel != "" {
		res := classify.Path(rel)
		if res.Class.IsSandbox() && !caller.OwnerOf(res.Owner) {
			v.observe("stat", storage.Deny, start)
			return nil, storage.NewForeignSandbox(rel)
		}
	}

	info, err := os.Lstat(v.physical(rel))
	if err != nil {
		v.observe("stat", storage.Deny, start)
		return nil, mapOSError(err, rel)
	}
	v.observe("stat", storage.Allow, start)
	return info, nil
}
