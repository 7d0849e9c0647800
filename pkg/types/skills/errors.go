package skills

import (
	"github.com/pkg/errors"
)

// Error kinds. Match with errors.Is against any error returned by the engine.
var (
	ErrDirectoryNotFound    = errors.New("directory not found")
	ErrNotADirectory        = errors.New("not a directory")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrSymlinkRejected      = errors.New("symbolic link rejected")
	ErrSymlinkNotAllowed    = errors.New("symbolic link not allowed")
	ErrPathTraversal        = errors.New("path escapes its root")
	ErrAlreadyExists        = errors.New("already exists")
	ErrValidation           = errors.New("validation failed")
	ErrConfirmationRequired = errors.New("confirmation required")
)

// PathError attaches a path, an optional detail message and an optional
// underlying cause to one of the error kinds above.
type PathError struct {
	Kind   error
	Path   string
	Detail string
	Err    error
}

func (e *PathError) Error() string {
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is the kind of this error
func (e *PathError) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying cause, if any
func (e *PathError) Unwrap() error {
	return e.Err
}

// NewPathError builds a PathError of the given kind
func NewPathError(kind error, path, detail string, cause error) error {
	return &PathError{Kind: kind, Path: path, Detail: detail, Err: cause}
}

// DirectoryNotFound reports a missing directory
func DirectoryNotFound(path string) error {
	return &PathError{Kind: ErrDirectoryNotFound, Path: path}
}

// NotADirectory reports a path that exists but is not a directory
func NotADirectory(path string) error {
	return &PathError{Kind: ErrNotADirectory, Path: path}
}

// PermissionDenied wraps an I/O failure encountered at path
func PermissionDenied(path string, cause error) error {
	return &PathError{Kind: ErrPermissionDenied, Path: path, Err: cause}
}

// SymlinkRejected reports a symbolic link found where only regular entries are accepted
func SymlinkRejected(path string) error {
	return &PathError{Kind: ErrSymlinkRejected, Path: path}
}

// AlreadyExists reports a destination that is already occupied
func AlreadyExists(path string) error {
	return &PathError{Kind: ErrAlreadyExists, Path: path}
}

// Validation reports malformed input, such as a bad skill header
func Validation(path, detail string) error {
	return &PathError{Kind: ErrValidation, Path: path, Detail: detail}
}

// ConfirmationRequired reports a destructive operation invoked without confirmation
func ConfirmationRequired(path string) error {
	return &PathError{Kind: ErrConfirmationRequired, Path: path}
}
