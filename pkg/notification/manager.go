package notification

import (
	"fmt"
	"log/slog"
)

// Manager routes notices to the notifiers registered for each type. A type
// with no registered system is a configuration error at Notify time.
type Manager struct {
	notifiers map[System]Notifier
	routes    map[Type][]System
}

// NewManager creates and returns a new Manager.
func NewManager() *Manager {
	return &Manager{
		notifiers: make(map[System]Notifier),
		routes:    make(map[Type][]System),
	}
}

// RegisterNotifier registers a notifier for a delivery system.
func (m *Manager) RegisterNotifier(system System, notifier Notifier) {
	m.notifiers[system] = notifier
}

// RegisterRoute declares that notices of the given type go out over a system.
func (m *Manager) RegisterRoute(notifType Type, system System) error {
	if notifType == "" || system == "" {
		return fmt.Errorf("invalid input: notification type and system cannot be empty")
	}
	if _, exists := m.notifiers[system]; !exists {
		return fmt.Errorf("no notifier registered for system: %s", system)
	}
	m.routes[notifType] = append(m.routes[notifType], system)
	return nil
}

// Notify sends the notice over every system routed for its type.
func (m *Manager) Notify(notifType Type, data Data) error {
	systems, exists := m.routes[notifType]
	if !exists {
		return fmt.Errorf("no route registered for notification type: %s", notifType)
	}

	var lastErr error
	for _, system := range systems {
		notifier, exists := m.notifiers[system]
		if !exists {
			lastErr = fmt.Errorf("no notifier registered for system: %s", system)
			continue
		}
		if err := notifier.Send(notifType, data); err != nil {
			slog.Warn("Failed to send notification", "type", notifType, "system", system, "error", err)
			lastErr = err
		}
	}
	return lastErr
}
