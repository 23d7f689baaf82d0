package vfs

import (
	"bytes"
	"os"

	"github.com/LightningFastRom/mediafs/pkg/storage"
)

// Handle is an open file on the mediated volume.
//
// A handle is either backed by the physical file directly, or by a
// redacted in-memory copy when the policy engine granted observation but
// not the embedded location metadata. Redacted handles are strictly
// read-only; the physical file is never modified on their behalf.
type Handle struct {
	path     string
	file     *os.File
	redacted *bytes.Reader
}

// Redacted reports whether this handle serves a redacted copy.
func (h *Handle) Redacted() bool {
	return h.redacted != nil
}

func (h *Handle) Read(p []byte) (int, error) {
	if h.redacted != nil {
		return h.redacted.Read(p)
	}
	return h.file.Read(p)
}

func (h *Handle) ReadAt(p []byte, off int64) (int, error) {
	if h.redacted != nil {
		return h.redacted.ReadAt(p, off)
	}
	return h.file.ReadAt(p, off)
}

func (h *Handle) Write(p []byte) (int, error) {
	if h.redacted != nil {
		return 0, storage.NewPermissionDenied(h.path)
	}
	return h.file.Write(p)
}

func (h *Handle) WriteAt(p []byte, off int64) (int, error) {
	if h.redacted != nil {
		return 0, storage.NewPermissionDenied(h.path)
	}
	return h.file.WriteAt(p, off)
}

func (h *Handle) Seek(offset int64, whence int) (int64, error) {
	if h.redacted != nil {
		return h.redacted.Seek(offset, whence)
	}
	return h.file.Seek(offset, whence)
}

// Size returns the length of the content visible through this handle.
func (h *Handle) Size() (int64, error) {
	if h.redacted != nil {
		return h.redacted.Size(), nil
	}
	info, err := h.file.Stat()
	if err != nil {
		return 0, storage.NewIOError(err.Error(), h.path)
	}
	return info.Size(), nil
}

// Truncate shrinks or grows the underlying file.
func (h *Handle) Truncate(size int64) error {
	if h.redacted != nil {
		return storage.NewPermissionDenied(h.path)
	}
	if err := h.file.Truncate(size); err != nil {
		return storage.NewIOError(err.Error(), h.path)
	}
	return nil
}

// Sync flushes written data to stable storage.
func (h *Handle) Sync() error {
	if h.redacted != nil {
		return nil
	}
	if err := h.file.Sync(); err != nil {
		return storage.NewIOError(err.Error(), h.path)
	}
	return nil
}

func (h *Handle) Close() error {
	if h.redacted != nil {
		h.redacted = nil
		return nil
	}
	return h.file.Close()
}
