package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// SnapshotNotConfigured indicates no snapshot path is configured for a root
	SnapshotNotConfigured ErrorCode = "SNAPSHOT_NOT_CONFIGURED"
	// SnapshotMissing indicates the configured snapshot file does not exist
	SnapshotMissing ErrorCode = "SNAPSHOT_MISSING"
	// SnapshotUnreadable indicates the snapshot file exists but cannot be read
	SnapshotUnreadable ErrorCode = "SNAPSHOT_UNREADABLE"
	// SnapshotInvalid indicates the snapshot is not valid JSON or lacks required keys
	SnapshotInvalid ErrorCode = "SNAPSHOT_INVALID"
	// VersionMissing indicates current_version is absent or empty
	VersionMissing ErrorCode = "VERSION_MISSING"
	// NeedsEmpty indicates the selected version has no needs
	NeedsEmpty ErrorCode = "NEEDS_EMPTY"
	// ParentUnresolved indicates a parent_need chain points to an unknown id
	ParentUnresolved ErrorCode = "PARENT_UNRESOLVED"
	// ParentCycle indicates a parent_need chain loops back on itself
	ParentCycle ErrorCode = "PARENT_CYCLE"
	// SrcDirMissing indicates the source root is not configured or does not exist
	SrcDirMissing ErrorCode = "SRCDIR_MISSING"
	// DocumentUnreadable indicates a source document could not be read
	DocumentUnreadable ErrorCode = "DOCUMENT_UNREADABLE"
	// DirectiveNotFound indicates the directive or option line was not found in source
	DirectiveNotFound ErrorCode = "DIRECTIVE_NOT_FOUND"
	// NeedNotFound indicates an id is not part of the snapshot
	NeedNotFound ErrorCode = "NEED_NOT_FOUND"
	// ConfigInvalid indicates malformed settings
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// Level classifies how an error surfaces to the user.
type Level int

const (
	// LevelInfo is an expected condition worth a log line only
	LevelInfo Level = iota
	// LevelWarning is a recoverable configuration problem
	LevelWarning
	// LevelError is a data problem in one snapshot
	LevelError
)

// String returns the level name as used in log output
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warn"
	default:
		return "error"
	}
}

var codeLevels = map[ErrorCode]Level{
	SnapshotNotConfigured: LevelWarning,
	SnapshotMissing:       LevelWarning,
	SnapshotUnreadable:    LevelWarning,
	SrcDirMissing:         LevelWarning,
	VersionMissing:        LevelWarning,
	NeedsEmpty:            LevelInfo,
	DirectiveNotFound:     LevelInfo,
	NeedNotFound:          LevelInfo,
	DocumentUnreadable:    LevelWarning,
	ConfigInvalid:         LevelWarning,
}

// Severity returns the level for a code. Unknown codes are errors.
func Severity(code ErrorCode) Level {
	if l, ok := codeLevels[code]; ok {
		return l
	}
	return LevelError
}

// NeedsError is an error with a stable code and an optional cause
type NeedsError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error       // Underlying error (not exported to JSON)
}

// New creates a new NeedsError
func New(code ErrorCode, message string, cause error) *NeedsError {
	return &NeedsError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Newf creates a new NeedsError with a formatted message and no cause
func Newf(code ErrorCode, format string, args ...interface{}) *NeedsError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *NeedsError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *NeedsError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *NeedsError) WithDetails(details interface{}) *NeedsError {
	e.Details = details
	return e
}

// Level returns the severity of the error's code
func (e *NeedsError) Level() Level {
	return Severity(e.Code)
}

// CodeOf extracts the ErrorCode of the first NeedsError in err's chain.
// Returns InternalError for foreign errors and "" for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var ne *NeedsError
	if stderrors.As(err, &ne) {
		return ne.Code
	}
	return InternalError
}

// Is reports whether err carries the given code
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
