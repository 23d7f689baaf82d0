package vfs

import (
	"context"
	"os"
	"time"

	"github.com/LightningFastRom/mediafs/pkg/identity"
	"github.com/LightningFastRom/mediafs/pkg/storage"
)

// Unlink removes the file at rel on behalf of the caller and retires its
// ownership record.
func (v *Volume) Unlink(ctx context.Context, token identity.Token, rel string) error {
	start := time.Now()
	caller, rel, err := v.begin(ctx, token, rel)
	if err != nil {
		v.observe("unlink", storage.Deny, start)
		return err
	}

	unlock := v.locks.lock(rel)
	defer unlock()

	// Authorization precedes the physical probe so that a foreign sandbox
	// path answers NotFound whether or not anything exists there.
	if err := v.engine.AuthorizeDelete(ctx, caller, rel); err != nil {
		v.observe("unlink", storage.Deny, start)
		return err
	}

	info, err := os.Lstat(v.physical(rel))
	if err != nil {
		v.observe("unlink", storage.Deny, start)
		return mapOSError(err, rel)
	}
	if info.IsDir() {
		v.observe("unlink", storage.Deny, start)
		return storage.NewIsDirectory(rel)
	}

	if err := os.Remove(v.physical(rel)); err != nil {
		v.observe("unlink", storage.Deny, start)
		return mapOSError(err, rel)
	}
	v.engine.CommitDelete(ctx, rel)
	v.observe("unlink", storage.Allow, start)
	return nil
}
