package gateway

import "fmt"

// UpstreamError is a business error reported by a jurisdiction's portal during
// a query or issuance. Surfaced with the remote detail, never retried here.
type UpstreamError struct {
	Jurisdiction string
	Operation    string
	StatusCode   int
	Detail       string
}

func (e UpstreamError) Error() string {
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Jurisdiction, e.Operation, e.StatusCode, e.Detail)
}

// TimeoutError is a transient transport failure against a portal. The caller
// may retry with backoff; the gateway does not retry internally.
type TimeoutError struct {
	Jurisdiction string
	Operation    string
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("%s %s timed out", e.Jurisdiction, e.Operation)
}

// NormalizationError is returned when a portal's response cannot be mapped to
// the normalized result shape.
type NormalizationError struct {
	Jurisdiction string
	Detail       string
}

func (e NormalizationError) Error() string {
	return fmt.Sprintf("failed to normalize %s response: %s", e.Jurisdiction, e.Detail)
}
