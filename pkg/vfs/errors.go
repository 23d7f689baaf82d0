package vfs

import (
	"context"
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/LightningFastRom/mediafs/pkg/storage"
)

// mapOSError converts a physical filesystem error into the volume's error
// taxonomy so callers see one vocabulary regardless of where an operation
// failed.
func mapOSError(err error, rel string) error {
	switch {
	case err == nil:
		return nil
	case os.IsNotExist(err):
		return storage.NewNotFound(rel)
	case os.IsExist(err):
		return storage.NewAlreadyExists(rel)
	case os.IsPermission(err):
		return storage.NewPermissionDenied(rel)
	case errors.Is(err, syscall.ENOTEMPTY):
		return storage.NewNotEmpty(rel)
	case errors.Is(err, syscall.EISDIR):
		return storage.NewIsDirectory(rel)
	case errors.Is(err, syscall.ENOTDIR):
		return storage.NewNotDirectory(rel)
	default:
		return storage.NewIOError(err.Error(), rel)
	}
}

// ErrnoOf maps a volume error onto the errno surfaced at the kernel
// boundary. Unknown errors map to EIO.
func ErrnoOf(err error) syscall.Errno {
	var se *storage.StorageError
	if !errors.As(err, &se) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return unix.EINTR
		}
		return unix.EIO
	}
	switch se.Code {
	case storage.ErrNotFound:
		return unix.ENOENT
	case storage.ErrAlreadyExists:
		return unix.EEXIST
	case storage.ErrPermissionDenied:
		// Structural denials carry the EPERM strerror text, capability
		// denials the EACCES one. Keep the errno consistent with it.
		if se.Message == "Operation not permitted" {
			return unix.EPERM
		}
		return unix.EACCES
	case storage.ErrUnavailable:
		return unix.EACCES
	case storage.ErrTypeMismatch:
		return unix.EPERM
	case storage.ErrNotEmpty:
		return unix.ENOTEMPTY
	case storage.ErrIsDirectory:
		return unix.EISDIR
	case storage.ErrNotDirectory:
		return unix.ENOTDIR
	case storage.ErrInvalidArgument:
		return unix.EINVAL
	case storage.ErrIOError:
		return unix.EIO
	default:
		return unix.EPERM
	}
}
