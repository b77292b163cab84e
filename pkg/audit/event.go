package audit

import (
	"strings"
	"time"
)

// Actions recorded on a procuration's trail. Free-form tags by contract, but
// the gateway and lifecycle code only ever emit these.
const (
	ActionInitiated      = "INITIATED"
	ActionAuthenticate   = "AUTHENTICATE"
	ActionNavigate       = "NAVIGATE"
	ActionSubmit         = "SUBMIT"
	ActionProof          = "PROOF"
	ActionCancel         = "CANCEL"
	ActionCancelRejected = "CANCEL_REJECTED"
	ActionQueryDebts     = "QUERY_DEBTS"
	ActionIssueGuide     = "ISSUE_GUIDE"
	ActionError          = "ERROR"
)

// Event is one immutable entry on a procuration's audit trail. Events are
// never updated, reordered, or deleted once appended.
type Event struct {
	OccurredAt time.Time         `json:"occurred_at"`
	Action     string            `json:"action"`
	Outcome    string            `json:"outcome"`
	Details    map[string]string `json:"details,omitempty"`
}

// NewEvent creates an event stamped with the current UTC time. The details map
// is copied so later mutation by the caller cannot reach the stored event.
// Masking of sensitive values is the caller's job before construction.
func NewEvent(action, outcome string, details map[string]string) Event {
	var copied map[string]string
	if len(details) > 0 {
		copied = make(map[string]string, len(details))
		for k, v := range details {
			copied[k] = v
		}
	}
	return Event{
		OccurredAt: time.Now().UTC(),
		Action:     action,
		Outcome:    outcome,
		Details:    copied,
	}
}

// clone returns a deep copy so stored events cannot be mutated through
// returned slices.
func (e Event) clone() Event {
	copied := e
	if len(e.Details) > 0 {
		copied.Details = make(map[string]string, len(e.Details))
		for k, v := range e.Details {
			copied.Details[k] = v
		}
	}
	return copied
}

// MaskTaxID keeps the first three and last two digits of a tax id, masking the
// rest. Short values are fully masked.
func MaskTaxID(taxID string) string {
	if len(taxID) <= 5 {
		return strings.Repeat("*", len(taxID))
	}
	return taxID[:3] + strings.Repeat("*", len(taxID)-5) + taxID[len(taxID)-2:]
}

// MaskSecret replaces a secret with a fixed marker. Secrets never appear on
// the trail, even partially.
func MaskSecret(string) string {
	return "***"
}
