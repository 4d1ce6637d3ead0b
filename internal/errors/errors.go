// internal/errors/errors.go - Error taxonomy for fetching, normalization and search policy
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies a source fetch failure.
type Kind int

const (
	// NetworkError is a transport-level failure. Retried once.
	NetworkError Kind = iota
	// Timeout means the per-task or request deadline expired.
	Timeout
	// BlockedByTarget is an anti-bot signal. Never retried within a request.
	BlockedByTarget
	// ParseFailure means a selector chain was exhausted.
	ParseFailure
)

func (k Kind) String() string {
	switch k {
	case NetworkError:
		return "network_error"
	case Timeout:
		return "timeout"
	case BlockedByTarget:
		return "blocked_by_target"
	case ParseFailure:
		return "parse_failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FetchError is returned by site adapters.
type FetchError struct {
	Source string
	Kind   Kind
	Err    error
}

// NewFetchError wraps err as a fetch failure of the given kind.
func NewFetchError(source string, kind Kind, err error) *FetchError {
	return &FetchError{Source: source, Kind: kind, Err: err}
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Source, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure may be retried within the same request.
func (e *FetchError) Retryable() bool {
	return e.Kind == NetworkError
}

// KindOf extracts the fetch kind from err. The second result is false when
// err carries no FetchError.
func KindOf(err error) (Kind, bool) {
	var fe *FetchError
	if stderrors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is a FetchError of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// PolicyViolation rejects an invalid client-supplied policy value.
type PolicyViolation struct {
	Field string
	Value string
}

func (e *PolicyViolation) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

// NormalizationError is returned when a raw record cannot become a listing.
type NormalizationError struct {
	Field  string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalization failed on %s: %s", e.Field, e.Reason)
}

// ErrPersistenceConflict marks a duplicate source_url on insert. Stores treat
// it as success.
var ErrPersistenceConflict = stderrors.New("listing with this source_url already stored")

// IsClientError reports whether err was caused by invalid caller input.
func IsClientError(err error) bool {
	var pv *PolicyViolation
	return stderrors.As(err, &pv)
}

// HTTPStatus maps an error to an HTTP status code.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if IsClientError(err) {
		return http.StatusBadRequest
	}
	if IsKind(err, Timeout) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// ExitCode maps an error to a CLI exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case IsClientError(err):
		return 2
	case IsKind(err, Timeout):
		return 3
	default:
		return 1
	}
}
