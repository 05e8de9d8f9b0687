// Package domain defines the core domain models for ChatHub.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
// Codes have the form CH-<AREA>-<NNNN>; the numeric part hints at the
// HTTP status family the transport layer should use.
type DomainError struct {
	Code    string // Error code (e.g., "CH-ACCT-4090")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
// The cause never shows up in Error(), so it is safe to attach internal
// reasons that must not reach the client.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsValidation reports whether err is a caller-side validation or
// authentication failure. Such errors are reported to the caller verbatim
// and are never logged as failures.
func IsValidation(err error) bool {
	code := GetErrorCode(err)
	if len(code) < 4 {
		return false
	}
	return code[len(code)-4] == '4'
}

// ============================================================================
// Message Errors (MSG)
// ============================================================================

var (
	// ErrEmptyMessage indicates a message with neither text nor attachment.
	ErrEmptyMessage = NewDomainError("CH-MSG-4001", "message must contain text or an attachment")

	// ErrMessageTooLong indicates the message text exceeds the length cap.
	ErrMessageTooLong = NewDomainError("CH-MSG-4002", "message text too long")
)

// ============================================================================
// Account Errors (ACCT)
// ============================================================================

var (
	// ErrInvalidUsername indicates a username outside 3-20 chars of [A-Za-z0-9_].
	ErrInvalidUsername = NewDomainError("CH-ACCT-4001", "username must be 3-20 letters, digits or underscores")

	// ErrWeakPassword indicates a password shorter than the minimum.
	ErrWeakPassword = NewDomainError("CH-ACCT-4002", "password must be at least 4 characters")

	// ErrUsernameTaken indicates a case-insensitive username collision.
	ErrUsernameTaken = NewDomainError("CH-ACCT-4090", "username already taken")
)

// ============================================================================
// Authentication Errors (AUTH, SESS)
// ============================================================================

var (
	// ErrInvalidCredentials is returned for an unknown user and for a wrong
	// password alike.
	ErrInvalidCredentials = NewDomainError("CH-AUTH-4010", "invalid username or password")

	// ErrSessionInvalid indicates an unknown, revoked or expired session token.
	ErrSessionInvalid = NewDomainError("CH-SESS-4010", "not authenticated")
)

// Internal causes attached to ErrInvalidCredentials and ErrSessionInvalid.
// Used for metrics only.
var (
	ErrUnknownAccount   = errors.New("unknown account")
	ErrPasswordMismatch = errors.New("password mismatch")
	ErrSessionExpired   = errors.New("session expired")
)

// ============================================================================
// Image Errors (IMG)
// ============================================================================

var (
	// ErrImageInvalid indicates an empty or unsupported image payload.
	ErrImageInvalid = NewDomainError("CH-IMG-4001", "invalid image")

	// ErrImageNotFound indicates the image id is not present in the image store.
	ErrImageNotFound = NewDomainError("CH-IMG-4040", "image not found")

	// ErrImageTooLarge indicates the payload exceeds the configured maximum.
	ErrImageTooLarge = NewDomainError("CH-IMG-4130", "image too large")
)

// ============================================================================
// Snapshot Errors (SNAP)
// ============================================================================

var (
	// ErrSnapshotUnavailable indicates the snapshot slot holds nothing yet.
	ErrSnapshotUnavailable = NewDomainError("CH-SNAP-4040", "snapshot not available")

	// ErrSnapshotCorrupt indicates a truncated, malformed or inconsistent snapshot.
	ErrSnapshotCorrupt = NewDomainError("CH-SNAP-5001", "snapshot corrupt")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("CH-SYS-4000", "bad request")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("CH-SYS-4290", "too many requests")

	// ErrInternal indicates an internal server error.
	ErrInternal = NewDomainError("CH-SYS-5000", "internal server error")

	// ErrStorage indicates an external store error.
	ErrStorage = NewDomainError("CH-SYS-5001", "storage error")

	// ErrNotReady indicates startup restore has not finished.
	ErrNotReady = NewDomainError("CH-SYS-5030", "service not ready")
)
