package upstream

import (
	"errors"
	"fmt"

	"github.com/travigo/transit-telemetry/pkg/ctdf"
)

type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureRateLimited
	FailureServer
	FailureTransport
	FailureClient
	FailureMalformed
	FailureCancelled
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "success"
	case FailureRateLimited:
		return "rate_limited"
	case FailureServer:
		return "server_error"
	case FailureTransport:
		return "transport_error"
	case FailureClient:
		return "client_error"
	case FailureMalformed:
		return "malformed"
	case FailureCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Retryable reports whether another attempt may succeed
func (k FailureKind) Retryable() bool {
	return k == FailureRateLimited || k == FailureServer || k == FailureTransport
}

var (
	ErrRateLimited = errors.New("upstream rate limited")
	ErrServer      = errors.New("upstream server error")
	ErrClient      = errors.New("upstream rejected request")
	ErrMalformed   = errors.New("malformed upstream payload")
)

// attemptResult is the outcome of a single request, either a payload or a typed failure
type attemptResult struct {
	vehicles []*ctdf.VehicleSnapshot

	kind       FailureKind
	statusCode int
	err        error
}

func success(vehicles []*ctdf.VehicleSnapshot) attemptResult {
	return attemptResult{vehicles: vehicles, kind: FailureNone}
}

func failure(kind FailureKind, statusCode int, err error) attemptResult {
	return attemptResult{kind: kind, statusCode: statusCode, err: err}
}

// FetchError is returned once the client gives up on a fetch
type FetchError struct {
	Kind       FailureKind
	Attempts   int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching vehicles failed after %d attempt(s) (%s, status %d): %v", e.Attempts, e.Kind, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("fetching vehicles failed after %d attempt(s) (%s): %v", e.Attempts, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
