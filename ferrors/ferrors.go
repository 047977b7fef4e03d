// Package ferrors provides the structured error taxonomy shared across the
// forge core: git execution, SSH authentication, LFS storage, and the
// actions control plane all report failures through a single Kind
// enumeration so the external HTTP layer can translate them to status
// codes without inspecting component-specific error types.
package ferrors

import (
	"errors"
	"fmt"
)

// Kind classifies the semantic condition behind an Error. Kind is a string
// for debuggability and natural JSON serialization at the HTTP boundary.
type Kind string

const (
	// Git execution errors.

	// KindGitNotFound indicates the bundled git binary could not be located.
	KindGitNotFound Kind = "GIT_NOT_FOUND"

	// KindInvalidArgument indicates an argument failed the safe-value or
	// known-broken-flag filter before any process was spawned.
	KindInvalidArgument Kind = "INVALID_ARGUMENT"

	// KindCommandInjection indicates a value such as a clone URL carried
	// shell metacharacters or a percent-encoded control byte.
	KindCommandInjection Kind = "COMMAND_INJECTION"

	// KindTimeout indicates a bounded operation exceeded its deadline.
	KindTimeout Kind = "TIMEOUT"

	// KindProcessFailed indicates a spawned subprocess exited non-zero.
	KindProcessFailed Kind = "PROCESS_FAILED"

	// KindOutputTooLarge indicates captured subprocess output exceeded the
	// configured bound and the child was killed.
	KindOutputTooLarge Kind = "OUTPUT_TOO_LARGE"

	// Authorization and repository errors.

	// KindPermissionDenied indicates the caller lacks the required
	// read/write permission for the target repository.
	KindPermissionDenied Kind = "PERMISSION_DENIED"

	// KindInvalidRepository indicates an owner/name pair, or a path
	// derived from one, failed validation or confinement.
	KindInvalidRepository Kind = "INVALID_REPOSITORY"

	// KindAuthenticationFailed indicates SSH or key-based authentication
	// did not succeed.
	KindAuthenticationFailed Kind = "AUTHENTICATION_FAILED"

	// KindRateLimitExceeded indicates a caller exceeded the sliding-window
	// attempt limit for its identity (IP, token, etc).
	KindRateLimitExceeded Kind = "RATE_LIMIT_EXCEEDED"

	// LFS / storage errors.

	// KindInvalidChecksum indicates an uploaded object's content did not
	// hash to its claimed OID, or its size did not match.
	KindInvalidChecksum Kind = "INVALID_CHECKSUM"

	// KindObjectNotFound indicates a requested LFS object is absent.
	KindObjectNotFound Kind = "OBJECT_NOT_FOUND"

	// KindStorageLimitExceeded indicates an upload would exceed a
	// repository's or owner's storage quota.
	KindStorageLimitExceeded Kind = "STORAGE_LIMIT_EXCEEDED"

	// KindPathTraversalAttempt indicates a resolved path escaped its
	// configured root after canonicalization.
	KindPathTraversalAttempt Kind = "PATH_TRAVERSAL_ATTEMPT"

	// KindBackendError indicates the underlying storage backend (the
	// filesystem or S3) returned an unexpected failure.
	KindBackendError Kind = "BACKEND_ERROR"

	// Control-plane errors.

	// KindInvalidState indicates a requested state transition is not
	// permitted from the entity's current state (e.g. completed -> queued).
	KindInvalidState Kind = "INVALID_STATE"

	// KindInvalidInput indicates a free-form input failed validation
	// (label color, timestamp format, identifier length, etc).
	KindInvalidInput Kind = "INVALID_INPUT"
)

// Error is a structured, wrapped error carrying a Kind, the operation that
// produced it, and an optional context map for diagnostics. Error never
// carries secret plaintext; callers must scrub sensitive values before
// attaching them to Context.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Context map[string]any
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.cause != nil {
		msg = msg + ": " + e.cause.Error()
	}
	return msg
}

// Unwrap allows errors.Is/errors.As to see through to the cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a new Error of the given Kind for operation op.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap wraps cause as an Error of the given Kind for operation op. Wrap
// returns nil if cause is nil, matching the teacher's WrapError idiom.
func Wrap(cause error, kind Kind, op string) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, cause: cause}
}

// Wrapf wraps cause as an Error of the given Kind, formatting the message.
func Wrapf(cause error, kind Kind, op, format string, args ...any) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), cause: cause}
}

// WithContext attaches a diagnostic key/value pair and returns the receiver
// for chaining.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Is reports whether target is an *Error with the same Kind, allowing
// errors.Is(err, ferrors.New(KindTimeout, "", "")) style checks against a
// Kind sentinel.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// KindOf extracts the Kind of err, walking the wrap chain. It returns
// ("", false) if err is nil or carries no *Error in its chain.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

// Is reports whether err's Kind, anywhere in its wrap chain, equals kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
