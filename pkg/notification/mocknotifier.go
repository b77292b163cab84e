package notification

import "sync"

// MockNotifier records sent notices for tests and the demo wiring.
type MockNotifier struct {
	mu   sync.Mutex
	sent []SentNotice
}

// SentNotice is one recorded delivery.
type SentNotice struct {
	Type Type
	Data Data
}

// NewMockNotifier creates a new recording notifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// Send records the notice.
func (n *MockNotifier) Send(notifType Type, data Data) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, SentNotice{Type: notifType, Data: data})
	return nil
}

// Sent returns a copy of everything recorded so far.
func (n *MockNotifier) Sent() []SentNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	sent := make([]SentNotice, len(n.sent))
	copy(sent, n.sent)
	return sent
}
