package vfs

import (
	"context"
	"os"
	"time"

	"github.com/LightningFastRom/mediafs/pkg/storage"
	"github.com/LightningFastRom/mediafs/pkg/storage/classify"
)

// IndexDelete removes a file through the content index: the matching rows
// are deleted, then the physical file and its ownership record are retired.
// It returns how many rows were removed.
//
// This is the provider-side deletion path; it runs with system authority
// and bypasses caller mediation on purpose. Callers reach it through APIs
// that have already checked their own access rules.
func (v *Volume) IndexDelete(ctx context.Context, relativeDir, displayName string) (int, error) {
	start := time.Now()
	dir, ok := classify.Normalize(relativeDir)
	if !ok {
		v.observe("index_delete", storage.Deny, start)
		return 0, storage.NewInvalidArgument("invalid directory", relativeDir)
	}
	rel := joinRel(dir, displayName)

	unlock := v.locks.lock(rel)
	defer unlock()

	n, err := v.index.Delete(ctx, dir, displayName)
	if err != nil {
		v.observe("index_delete", storage.Deny, start)
		return 0, err
	}
	if n == 0 {
		v.observe("index_delete", storage.Deny, start)
		return 0, storage.NewNotFound(rel)
	}

	if err := os.Remove(v.physical(rel)); err != nil && !os.IsNotExist(err) {
		v.observe("index_delete", storage.Deny, start)
		return n, mapOSError(err, rel)
	}
	v.engine.CommitDelete(ctx, rel)
	v.observe("index_delete", storage.Allow, start)
	return n, nil
}

// IndexRename renames a file through the content index: the physical file
// moves first, then the ownership record and the matching rows follow. The
// ownership of the row is preserved across the rename.
func (v *Volume) IndexRename(ctx context.Context, relativeDir, oldName, newName string) error {
	start := time.Now()
	dir, ok := classify.Normalize(relativeDir)
	if !ok {
		v.observe("index_rename", storage.Deny, start)
		return storage.NewInvalidArgument("invalid directory", relativeDir)
	}
	oldRel := joinRel(dir, oldName)
	newRel := joinRel(dir, newName)

	unlock := v.locks.lockPair(oldRel, newRel)
	defer unlock()

	if _, err := os.Lstat(v.physical(oldRel)); err != nil {
		v.observe("index_rename", storage.Deny, start)
		return mapOSError(err, oldRel)
	}
	if _, err := os.Lstat(v.physical(newRel)); err == nil {
		v.observe("index_rename", storage.Deny, start)
		return storage.NewAlreadyExists(newRel)
	}

	if err := os.Rename(v.physical(oldRel), v.physical(newRel)); err != nil {
		v.observe("index_rename", storage.Deny, start)
		return mapOSError(err, oldRel)
	}
	v.engine.CommitRename(ctx, oldRel, newRel)
	v.observe("index_rename", storage.Allow, start)
	return nil
}

func joinRel(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
