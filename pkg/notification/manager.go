package notification

import (
	"context"
	"fmt"
)

// DeliveryManager routes messages to the notifier registered for a channel.
type DeliveryManager struct {
	notifiers map[Channel]Notifier
}

// NewDeliveryManager creates and returns a new DeliveryManager.
func NewDeliveryManager() *DeliveryManager {
	return &DeliveryManager{
		notifiers: make(map[Channel]Notifier),
	}
}

// RegisterNotifier registers a notifier for a specific channel.
func (m *DeliveryManager) RegisterNotifier(channel Channel, notifier Notifier) {
	m.notifiers[channel] = notifier
}

// Send sends a message over the given channel.
func (m *DeliveryManager) Send(ctx context.Context, channel Channel, msg Message) error {
	notifier, exists := m.notifiers[channel]
	if !exists {
		return fmt.Errorf("no notifier registered for channel: %s", channel)
	}
	return notifier.Send(ctx, msg)
}

// CodeSender returns an adapter satisfying the mfa.CodeSender contract over
// the given channel.
func (m *DeliveryManager) CodeSender(channel Channel) *ChannelCodeSender {
	return &ChannelCodeSender{manager: m, channel: channel}
}

// ChannelCodeSender delivers verification codes over one channel of a
// DeliveryManager.
type ChannelCodeSender struct {
	manager *DeliveryManager
	channel Channel
}

// SendCode sends a rendered verification message to the destination.
func (s *ChannelCodeSender) SendCode(ctx context.Context, destination, message string) error {
	return s.manager.Send(ctx, s.channel, Message{
		To:      destination,
		Subject: "Verification code",
		Body:    message,
	})
}
