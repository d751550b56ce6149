package notification

import (
	"context"
	"sync"
)

// MockNotifier records sent messages for tests and local development.
type MockNotifier struct {
	mutex             sync.Mutex
	SentNotifications []Message
}

func (m *MockNotifier) Send(ctx context.Context, msg Message) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.SentNotifications = append(m.SentNotifications, msg)
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *MockNotifier) Sent() []Message {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	sent := make([]Message, len(m.SentNotifications))
	copy(sent, m.SentNotifications)
	return sent
}
