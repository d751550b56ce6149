package notification

import "context"

// Channel represents a delivery channel (e.g., sms, email).
type Channel string

const (
	SMSChannel   Channel = "sms"
	EmailChannel Channel = "email"
)

// Message is a single outbound notification.
type Message struct {
	To      string // Recipient identifier (phone number, email address)
	Subject string // Optional: subject for channels like email
	Body    string // The content to send
}

// Notifier sends messages over one delivery channel.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
