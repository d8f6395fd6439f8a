package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error codes
const (
	// Input errors (INPUT-001 to INPUT-099)
	ErrCodeMissingField   ErrorCode = "INPUT-001"
	ErrCodeInvalidOrigin  ErrorCode = "INPUT-002"
	ErrCodeInvalidConfig  ErrorCode = "INPUT-003"
	ErrCodeInvalidRequest ErrorCode = "INPUT-004"

	// Authentication errors (AUTH-001 to AUTH-099)
	ErrCodeCredentialsRejected  ErrorCode = "AUTH-001"
	ErrCodeRegistrationRejected ErrorCode = "AUTH-002"
	ErrCodeSessionExpired       ErrorCode = "AUTH-003"
	ErrCodeForbidden            ErrorCode = "AUTH-004"
	ErrCodeRefreshUnavailable   ErrorCode = "AUTH-005"

	// Transport errors (NET-001 to NET-099)
	ErrCodeUnreachable       ErrorCode = "NET-001"
	ErrCodeBackendFailure    ErrorCode = "NET-002"
	ErrCodeMalformedResponse ErrorCode = "NET-003"
	ErrCodeEncodeRequest     ErrorCode = "NET-004"

	// Session record errors (IO-001 to IO-099)
	ErrCodeRecordReadFailed  ErrorCode = "IO-001"
	ErrCodeRecordWriteFailed ErrorCode = "IO-002"
)

// Kind classifies an error by how callers are expected to react to it.
type Kind int

const (
	// KindUnknown is the zero value for errors that were not classified.
	KindUnknown Kind = iota
	// KindValidation means the input was rejected locally and never reached the network.
	KindValidation
	// KindAuthenticationRejected means the backend refused the credentials or registration.
	KindAuthenticationRejected
	// KindAuthorizationExpired means a previously valid session is no longer accepted.
	// The credential store has already been cleared when this kind is observed.
	KindAuthorizationExpired
	// KindForbidden means the session is valid but lacks the role for the resource.
	KindForbidden
	// KindTransport covers unreachable backends, timeouts, 5xx and malformed responses.
	KindTransport
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_rejected"
	case KindAuthenticationRejected:
		return "authentication_rejected"
	case KindAuthorizationExpired:
		return "authorization_expired"
	case KindForbidden:
		return "forbidden"
	case KindTransport:
		return "transport_failure"
	default:
		return "unknown"
	}
}

// PortalError represents an error with code, kind, suggestions and the HTTP status
// that produced it (zero when no response was received).
type PortalError struct {
	Code        ErrorCode
	Kind        Kind
	Message     string
	Status      int
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *PortalError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *PortalError) Unwrap() error {
	return e.Cause
}

// New creates a new PortalError
func New(code ErrorCode, kind Kind, message string) *PortalError {
	return &PortalError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// Wrap creates a new PortalError wrapping an existing error
func Wrap(code ErrorCode, kind Kind, message string, cause error) *PortalError {
	return &PortalError{
		Code:    code,
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

// WithStatus records the HTTP status that produced the error
func (e *PortalError) WithStatus(status int) *PortalError {
	e.Status = status
	return e
}

// WithSuggestion adds a suggestion to the error
func (e *PortalError) WithSuggestion(suggestion string) *PortalError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *PortalError) WithSuggestions(suggestions ...string) *PortalError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// As finds the first PortalError in err's chain.
func As(err error) (*PortalError, bool) {
	var pe *PortalError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// KindOf returns the kind of the first PortalError in err's chain,
// or KindUnknown if there is none.
func KindOf(err error) Kind {
	if pe, ok := As(err); ok {
		return pe.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Common error constructors for frequently used errors

// NewMissingFieldError creates a local validation error for an empty required input
func NewMissingFieldError(field string) *PortalError {
	return New(ErrCodeMissingField, KindValidation, fmt.Sprintf("%s must not be empty", field)).
		WithSuggestion(fmt.Sprintf("Provide a value for %s", field))
}

// NewInvalidOriginError creates an error for a backend origin that is not an absolute URL
func NewInvalidOriginError(origin string, cause error) *PortalError {
	return Wrap(ErrCodeInvalidOrigin, KindValidation, fmt.Sprintf("invalid backend origin: %q", origin), cause).
		WithSuggestion("Use an absolute URL such as http://localhost:5000/api").
		WithSuggestion("Check PORTAL_AUTH_URL, PORTAL_USER_URL and PORTAL_GATEWAY_URL")
}

// NewSessionExpiredError creates the error surfaced when a backend rejects the current session
func NewSessionExpiredError(target string, status int, message string) *PortalError {
	if message == "" {
		message = "session expired or invalid"
	}
	return New(ErrCodeSessionExpired, KindAuthorizationExpired, message).
		WithStatus(status).
		WithSuggestion("Run 'portal login' to sign in again").
		WithSuggestion(fmt.Sprintf("The session was rejected by %s", target))
}

// NewUnreachableError creates a transport error for a backend that could not be reached
func NewUnreachableError(target string, cause error) *PortalError {
	return Wrap(ErrCodeUnreachable, KindTransport, fmt.Sprintf("cannot reach %s", target), cause).
		WithSuggestion("Check that the backend is running").
		WithSuggestion("Run 'portal health' to check every configured backend")
}

// NewMalformedResponseError creates a transport error for a response body that could not be decoded
func NewMalformedResponseError(target string, cause error) *PortalError {
	return Wrap(ErrCodeMalformedResponse, KindTransport, fmt.Sprintf("malformed response from %s", target), cause)
}
