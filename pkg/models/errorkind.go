package models

// ErrorKind classifies why a job failed or a request was rejected. Status
// queries always surface one of these plus a sanitized diagnostic; raw
// external-tool output never crosses the API boundary.
type ErrorKind string

const (
	// ErrInvalidInput is a bad URL or profile. Surfaced immediately, never retried.
	ErrInvalidInput ErrorKind = "invalid_input"

	// ErrTransientFailure is a network or rate-limit failure from an external
	// tool. Retried with backoff; surfaced as ErrUpstreamUnavailable once the
	// retry budget is spent.
	ErrTransientFailure ErrorKind = "transient_failure"

	// ErrUpstreamUnavailable is a transient failure that exhausted its retries.
	ErrUpstreamUnavailable ErrorKind = "upstream_unavailable"

	// ErrPermanentFailure is missing or unsupported content. Never retried.
	ErrPermanentFailure ErrorKind = "permanent_failure"

	// ErrTimeout is an external tool or Await exceeding its bound. Distinct
	// from failure so callers can choose to poll longer.
	ErrTimeout ErrorKind = "timeout"

	// ErrStoreFull is artifact store capacity exhaustion after one eager
	// reclamation retry.
	ErrStoreFull ErrorKind = "store_full"

	// ErrInternal is an unexpected subprocess or filesystem fault.
	ErrInternal ErrorKind = "internal_error"
)

// Retryable reports whether a job failing with this kind should re-enter the
// queue, attempt budget permitting.
func (k ErrorKind) Retryable() bool {
	return k == ErrTransientFailure
}
