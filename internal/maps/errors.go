package maps

import (
	"errors"
	"fmt"
)

// ErrorKind partitions upstream failures by whether a retry can help.
type ErrorKind int

const (
	// KindTransient marks failures that are expected to succeed on retry:
	// network timeouts, upstream overload, and rate-limit signals.
	KindTransient ErrorKind = iota

	// KindTerminal marks failures that will not change on retry: malformed
	// requests, permission or quota denials, and authoritative empty results.
	KindTerminal
)

// String returns the human-readable name of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// APIError is a classified failure from the upstream mapping service.
// Every error returned by [Client] methods is either an *APIError or a
// context error (context.Canceled / context.DeadlineExceeded).
type APIError struct {
	// Endpoint is the upstream endpoint that failed (e.g. "directions").
	Endpoint string

	// Status is the upstream status string (e.g. "OVER_QUERY_LIMIT") or a
	// synthetic one for transport-level failures ("TRANSPORT_ERROR").
	Status string

	// HTTPCode is the HTTP response code, or 0 when the request never
	// produced a response.
	HTTPCode int

	// Message is the upstream error message, if any.
	Message string

	// Kind classifies the failure for the retry layer.
	Kind ErrorKind
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("maps: %s: %s (%s): %s", e.Endpoint, e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("maps: %s: %s (%s)", e.Endpoint, e.Status, e.Kind)
}

// IsTransient reports whether err is an upstream failure worth retrying.
func IsTransient(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindTransient
}

// IsTerminal reports whether err is an upstream failure that retrying
// cannot fix.
func IsTerminal(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindTerminal
}

// IsZeroResults reports whether err is the upstream's authoritative
// "nothing found" answer. Zero results are terminal (retrying an empty
// answer yields the same empty answer) but callers may want to phrase
// them differently than a denial.
func IsZeroResults(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == "ZERO_RESULTS"
}

// classifyStatus maps a Google web-service status string to an [ErrorKind].
// Statuses not listed here are treated as terminal: an unrecognised status
// is more likely a contract change than a blip, and retrying it burns quota.
func classifyStatus(status string) ErrorKind {
	switch status {
	case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR", "RESOURCE_EXHAUSTED", "UNAVAILABLE", "DEADLINE_EXCEEDED":
		return KindTransient
	default:
		return KindTerminal
	}
}

// classifyHTTP maps an HTTP response code to an [ErrorKind] for responses
// that carry no parseable upstream status.
func classifyHTTP(code int) ErrorKind {
	if code == 429 || code >= 500 {
		return KindTransient
	}
	return KindTerminal
}
