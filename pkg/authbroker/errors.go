package authbroker

import "fmt"

// FailureKind classifies why an authentication attempt did not produce a
// session token.
type FailureKind string

const (
	KindInvalidCertificate FailureKind = "invalid_certificate"
	KindExpiredCertificate FailureKind = "expired_certificate"
	KindRejected           FailureKind = "rejected_by_remote"
	KindNetwork            FailureKind = "network"
)

// AuthFailure is returned when the portal refuses or cannot complete an
// authentication. It is surfaced to the caller and never retried here.
type AuthFailure struct {
	Kind         FailureKind
	Jurisdiction string
	Detail       string
}

func (e AuthFailure) Error() string {
	return fmt.Sprintf("authentication with %s failed (%s): %s", e.Jurisdiction, e.Kind, e.Detail)
}

// Retryable reports whether the caller may reasonably retry with backoff.
// Only transport-level failures qualify; a rejected or bad certificate will
// not improve on retry.
func (e AuthFailure) Retryable() bool {
	return e.Kind == KindNetwork
}
