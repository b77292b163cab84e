package notification

// System represents a delivery channel (e.g., email, webhook).
type System string

// Type represents a kind of operator notice emitted by the gateway.
type Type string

const (
	EmailSystem System = "email"

	// TypeDelegationMissing warns that an operation ran on the simulated
	// fallback path because no valid procuration exists.
	TypeDelegationMissing Type = "delegation_missing"
	// TypeProcurationIssued reports a completed issuance.
	TypeProcurationIssued Type = "procuration_issued"
	// TypeProcurationFailed reports an issuance that ended in Error.
	TypeProcurationFailed Type = "procuration_failed"
)

// Data is the payload handed to a notifier.
type Data struct {
	To      string            // Recipient identifier (e.g., email address)
	Subject string            // Optional: subject for notifications like email
	Body    string            // The content or message to send
	Fields  map[string]string // Additional structured context
}

// Notifier delivers a notice over one system.
type Notifier interface {
	Send(notifType Type, data Data) error
}
