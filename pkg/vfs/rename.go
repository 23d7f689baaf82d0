package vfs

import (
	"context"
	"os"
	"time"

	"github.com/LightningFastRom/mediafs/pkg/identity"
	"github.com/LightningFastRom/mediafs/pkg/storage"
	"github.com/LightningFastRom/mediafs/pkg/storage/classify"
)

// Rename moves oldRel to newRel on behalf of the caller.
//
// The caller must hold delete rights on the source and create rights on
// the destination, so the destination directory's media-class rules apply
// to the incoming name. Directory renames require write rights in both
// locations and carry every ownership record under the source along.
func (v *Volume) Rename(ctx context.Context, token identity.Token, oldRel, newRel string) error {
	start := time.Now()
	caller, oldRel, err := v.begin(ctx, token, oldRel)
	if err != nil {
		v.observe("rename", storage.Deny, start)
		return err
	}
	newRel, ok := classify.Normalize(newRel)
	if !ok {
		v.observe("rename", storage.Deny, start)
		return storage.NewInvalidArgument("invalid rename target", newRel)
	}

	unlock := v.locks.lockPair(oldRel, newRel)
	defer unlock()

	// Source authorization runs before any physical probe; a foreign
	// sandbox source answers NotFound regardless of what exists there.
	if err := v.engine.AuthorizeDelete(ctx, caller, oldRel); err != nil {
		v.observe("rename", storage.Deny, start)
		return err
	}

	info, err := os.Lstat(v.physical(oldRel))
	if err != nil {
		v.observe("rename", storage.Deny, start)
		return mapOSError(err, oldRel)
	}

	if info.IsDir() {
		if err := v.engine.AuthorizeMkdir(ctx, caller, newRel); err != nil {
			v.observe("rename", storage.Deny, start)
			return err
		}
	} else {
		if err := v.engine.AuthorizeCreate(ctx, caller, newRel); err != nil {
			v.observe("rename", storage.Deny, start)
			return err
		}
	}

	if _, err := os.Lstat(v.physical(newRel)); err == nil {
		v.observe("rename", storage.Deny, start)
		return storage.NewAlreadyExists(newRel)
	} else if !os.IsNotExist(err) {
		v.observe("rename", storage.Deny, start)
		return storage.NewIOError(err.Error(), newRel)
	}

	if err := os.Rename(v.physical(oldRel), v.physical(newRel)); err != nil {
		v.observe("rename", storage.Deny, start)
		return mapOSError(err, oldRel)
	}
	v.engine.CommitRename(ctx, oldRel, newRel)
	v.observe("rename", storage.Allow, start)
	return nil
}
