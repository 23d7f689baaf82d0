package vfs

import (
	"bytes"
	"context"
	"io"
	"os"
	"time"

	"github.com/LightningFastRom/mediafs/internal/logger"
	"github.com/LightningFastRom/mediafs/pkg/identity"
	"github.com/LightningFastRom/mediafs/pkg/redact"
	"github.com/LightningFastRom/mediafs/pkg/storage"
	"github.com/LightningFastRom/mediafs/pkg/storage/classify"
)

// Create makes a new empty file at rel on behalf of the caller. It fails
// with ErrAlreadyExists when the path is already occupied.
func (v *Volume) Create(ctx context.Context, token identity.Token, rel string) error {
	h, err := v.Open(ctx, token, rel, os.O_WRONLY|os.O_CREATE|os.O_EXCL)
	if err != nil {
		return err
	}
	return h.Close()
}

// Open opens rel with POSIX-style flags on behalf of the caller.
//
// Creation (O_CREATE on a missing path) is atomic with the ownership
// record: if the ledger cannot record the caller as owner, the physical
// file is removed again and the open fails. Reads granted under redaction
// return a handle over a redacted copy of the content.
func (v *Volume) Open(ctx context.Context, token identity.Token, rel string, flags int) (*Handle, error) {
	start := time.Now()
	caller, rel, err := v.begin(ctx, token, rel)
	if err != nil {
		v.observe("open", storage.Deny, start)
		return nil, err
	}

	forWrite := flags&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_TRUNC) != 0

	if flags&os.O_CREATE != 0 {
		// A foreign sandbox answers identically whether the path is
		// occupied or not; deny before probing the physical state.
		if res := classify.Path(rel); res.Class.IsSandbox() && !caller.OwnerOf(res.Owner) {
			v.observe("create", storage.Deny, start)
			return nil, storage.NewForeignSandbox(rel)
		}

		unlock := v.locks.lock(rel)
		defer unlock()

		if _, statErr := os.Lstat(v.physical(rel)); statErr != nil {
			if !os.IsNotExist(statErr) {
				v.observe("open", storage.Deny, start)
				return nil, storage.NewIOError(statErr.Error(), rel)
			}
			h, err := v.createLocked(ctx, caller, rel, flags)
			if err != nil {
				v.observe("create", storage.Deny, start)
				return nil, err
			}
			v.observe("create", storage.Allow, start)
			return h, nil
		}
		if flags&os.O_EXCL != 0 {
			v.observe("create", storage.Deny, start)
			return nil, storage.NewAlreadyExists(rel)
		}
		// Path exists; fall through to the plain open rules.
	}

	decision, err := v.engine.AuthorizeOpen(ctx, caller, rel, forWrite)
	if err != nil {
		v.observe("open", storage.Deny, start)
		return nil, err
	}

	if decision == storage.AllowRedacted && !forWrite {
		h, err := v.openRedacted(rel)
		if err != nil {
			v.observe("open", storage.Deny, start)
			return nil, err
		}
		v.observe("open", storage.AllowRedacted, start)
		return h, nil
	}

	f, err := os.OpenFile(v.physical(rel), flags&^os.O_CREATE, 0o644)
	if err != nil {
		v.observe("open", storage.Deny, start)
		return nil, mapOSError(err, rel)
	}
	v.observe("open", storage.Allow, start)
	return &Handle{path: rel, file: f}, nil
}

// createLocked performs the authorize, physical create, and ownership
// commit for a path known to be absent. The path stripe is held.
func (v *Volume) createLocked(ctx context.Context, caller identity.Caller, rel string, flags int) (*Handle, error) {
	if err := v.engine.AuthorizeCreate(ctx, caller, rel); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(v.physical(rel), flags|os.O_EXCL, 0o644)
	if err != nil {
		return nil, mapOSError(err, rel)
	}

	if err := v.engine.CommitCreate(ctx, caller, rel); err != nil {
		f.Close()
		if rmErr := os.Remove(v.physical(rel)); rmErr != nil {
			logger.Error("failed to undo create of %s after ledger failure: %v", rel, rmErr)
		}
		return nil, err
	}
	return &Handle{path: rel, file: f}, nil
}

// openRedacted loads the file and strips embedded location metadata before
// handing it to the caller.
func (v *Volume) openRedacted(rel string) (*Handle, error) {
	f, err := os.Open(v.physical(rel))
	if err != nil {
		return nil, mapOSError(err, rel)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, storage.NewIOError(err.Error(), rel)
	}
	clean := raw
	if ranges := redact.Ranges(raw); len(ranges) > 0 {
		clean = redact.Apply(raw)
		v.metrics.RecordRedaction()
	}
	return &Handle{path: rel, redacted: bytes.NewReader(clean)}, nil
}
