package auth

import "github.com/felixgeelhaar/portal/internal/errors"

// Result is the tagged outcome of an operation.
type Result int

const (
	ResultSuccess Result = iota
	ResultRejected
	ResultTransportFailure
	ResultExpired
	ResultInvalid
)

// String returns the string representation of the result
func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultRejected:
		return "rejected"
	case ResultTransportFailure:
		return "transport_failure"
	case ResultExpired:
		return "expired"
	case ResultInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Outcome maps an error returned by the facade to its Result. Errors that
// carry no kind count as transport failures.
func Outcome(err error) Result {
	if err == nil {
		return ResultSuccess
	}
	switch errors.KindOf(err) {
	case errors.KindValidation:
		return ResultInvalid
	case errors.KindAuthenticationRejected, errors.KindForbidden:
		return ResultRejected
	case errors.KindAuthorizationExpired:
		return ResultExpired
	default:
		return ResultTransportFailure
	}
}
