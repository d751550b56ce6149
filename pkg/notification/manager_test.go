package notification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryManagerSend(t *testing.T) {
	manager := NewDeliveryManager()
	mock := &MockNotifier{}
	manager.RegisterNotifier(SMSChannel, mock)

	msg := Message{To: "+15005550006", Subject: "Verification code", Body: "123456"}
	require.NoError(t, manager.Send(context.Background(), SMSChannel, msg))

	sent := mock.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, msg, sent[0])
}

func TestDeliveryManagerUnregisteredChannel(t *testing.T) {
	manager := NewDeliveryManager()

	err := manager.Send(context.Background(), EmailChannel, Message{To: "user@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no notifier registered")
}

func TestChannelCodeSender(t *testing.T) {
	manager := NewDeliveryManager()
	mock := &MockNotifier{}
	manager.RegisterNotifier(SMSChannel, mock)

	sender := manager.CodeSender(SMSChannel)
	require.NoError(t, sender.SendCode(context.Background(), "+15005550006", "Your verification code: 123456"))

	sent := mock.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "+15005550006", sent[0].To)
	assert.Equal(t, "Your verification code: 123456", sent[0].Body)
}
