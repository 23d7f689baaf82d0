package storage

import "errors"

// StorageError represents a domain error from an access-mediation decision
// or a ledger/index operation.
//
// These are business logic errors (permission denied, type mismatch, etc.)
// as opposed to infrastructure errors (disk failure, corrupted database).
//
// Boundary layers translate the Code to transport-specific errors: the FUSE
// adapter maps codes to POSIX errno values (EPERM, ENOENT, EEXIST, EACCES).
type StorageError struct {
	// Code is the error category.
	Code ErrorCode

	// Message is the caller-visible error description. For denial codes the
	// message is fixed and never identifies an application or installation
	// state (see NewForeignSandbox).
	Message string

	// Path is the volume-relative path related to the error, if applicable.
	Path string
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// ErrorCode represents the category of a storage error.
type ErrorCode int

const (
	// ErrPermissionDenied indicates a capability or ownership failure.
	ErrPermissionDenied ErrorCode = iota

	// ErrTypeMismatch indicates the file's media class is not permitted in
	// the target directory.
	ErrTypeMismatch

	// ErrNotFound indicates the path does not resolve. This code is also
	// deliberately used for foreign-sandbox denials so that a caller cannot
	// distinguish "package not installed" from "path belongs to another app".
	ErrNotFound

	// ErrAlreadyExists indicates a create lost a race or the target exists.
	ErrAlreadyExists

	// ErrNotEmpty indicates a directory cannot be removed because it still
	// has entries.
	ErrNotEmpty

	// ErrIsDirectory indicates the operation expected a file but got a
	// directory.
	ErrIsDirectory

	// ErrNotDirectory indicates the operation expected a directory but got
	// a file.
	ErrNotDirectory

	// ErrInvalidArgument indicates invalid parameters (empty name, path
	// escaping the volume, unsupported flags).
	ErrInvalidArgument

	// ErrUnavailable indicates the external content index is unreachable.
	// Decisions depending on it fail closed: the caller sees a permission
	// denial, while the distinct code is preserved for internal logging.
	ErrUnavailable

	// ErrIOError indicates an I/O failure in the ledger or on the volume.
	ErrIOError
)

// Fixed caller-visible messages. Denials reuse exact POSIX strerror text so
// the engine's answers are indistinguishable from ordinary filesystem errors.
const (
	msgNotFound         = "No such file or directory"
	msgNotPermitted     = "Operation not permitted"
	msgPermissionDenied = "Permission denied"
	msgAlreadyExists    = "File exists"
	msgNotEmpty         = "Directory not empty"
	msgIsDirectory      = "Is a directory"
	msgNotDirectory     = "Not a directory"
	msgUnavailable      = "Permission denied"
)

// NewNotFound returns a NotFound error for the given path.
func NewNotFound(path string) *StorageError {
	return &StorageError{Code: ErrNotFound, Message: msgNotFound, Path: path}
}

// NewForeignSandbox returns the denial used for any path under another
// package's sandbox.
//
// This is a single merged error path on purpose: whether the foreign package
// is installed or not, the caller receives an identical NotFound error.
// Keeping one constructor (rather than two branches that happen to produce
// the same string) prevents refactors from accidentally differentiating the
// two cases and leaking installed-package information.
func NewForeignSandbox(path string) *StorageError {
	return &StorageError{Code: ErrNotFound, Message: msgNotFound, Path: path}
}

// NewTypeMismatch returns the denial for a wrong media class in a typed
// public directory. Surfaced to callers as "Operation not permitted".
func NewTypeMismatch(path string) *StorageError {
	return &StorageError{Code: ErrTypeMismatch, Message: msgNotPermitted, Path: path}
}

// NewPermissionDenied returns a capability/ownership denial.
func NewPermissionDenied(path string) *StorageError {
	return &StorageError{Code: ErrPermissionDenied, Message: msgPermissionDenied, Path: path}
}

// NewNotPermitted returns a PermissionDenied error carrying the
// "Operation not permitted" message (EPERM flavor), used for structural
// denials such as creating files at the volume root.
func NewNotPermitted(path string) *StorageError {
	return &StorageError{Code: ErrPermissionDenied, Message: msgNotPermitted, Path: path}
}

// NewAlreadyExists returns an AlreadyExists error for the given path.
func NewAlreadyExists(path string) *StorageError {
	return &StorageError{Code: ErrAlreadyExists, Message: msgAlreadyExists, Path: path}
}

// NewNotEmpty returns a NotEmpty error for the given path.
func NewNotEmpty(path string) *StorageError {
	return &StorageError{Code: ErrNotEmpty, Message: msgNotEmpty, Path: path}
}

// NewIsDirectory returns an IsDirectory error for the given path.
func NewIsDirectory(path string) *StorageError {
	return &StorageError{Code: ErrIsDirectory, Message: msgIsDirectory, Path: path}
}

// NewNotDirectory returns a NotDirectory error for the given path.
func NewNotDirectory(path string) *StorageError {
	return &StorageError{Code: ErrNotDirectory, Message: msgNotDirectory, Path: path}
}

// NewInvalidArgument returns an InvalidArgument error with a specific message.
func NewInvalidArgument(message, path string) *StorageError {
	return &StorageError{Code: ErrInvalidArgument, Message: message, Path: path}
}

// NewUnavailable returns an Unavailable error. Its caller-visible message is
// a plain permission denial; the code records the real cause for logs.
func NewUnavailable(path string) *StorageError {
	return &StorageError{Code: ErrUnavailable, Message: msgUnavailable, Path: path}
}

// NewIOError wraps an infrastructure failure with the given message.
func NewIOError(message, path string) *StorageError {
	return &StorageError{Code: ErrIOError, Message: message, Path: path}
}

// IsCode reports whether err is a *StorageError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var serr *StorageError
	if errors.As(err, &serr) {
		return serr.Code == code
	}
	return false
}
