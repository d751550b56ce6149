package mfa

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailIssueCode(t *testing.T) {
	provider := NewEmailProvider(&fakeSender{})
	now := time.Now()

	issuance, err := provider.IssueCode(ProviderConfig{}, AccountConfig{}, now)
	require.NoError(t, err)
	require.Len(t, issuance.Code, EMAIL_CODE_LENGTH)
	assert.True(t, issuance.RequiresDelivery)
	assert.Equal(t, now.Add(DefaultEmailCodeLifetime), issuance.ExpiresAt)
}

func TestEmailDeliverCode(t *testing.T) {
	sender := &fakeSender{}
	provider := NewEmailProvider(sender)
	draft := AccountConfig{ProviderType: ProviderTypeEmail, Email: "user@example.com"}

	err := provider.DeliverCode(context.Background(), ProviderConfig{}, draft, "123456")
	require.NoError(t, err)
	assert.Equal(t, "Your verification code: 123456", sender.lastMessage())
}

func TestEmailBuildTemplateKeepsAddress(t *testing.T) {
	provider := NewEmailProvider(&fakeSender{})

	template, err := provider.BuildTemplate(ProviderConfig{}, "user", nil)
	require.NoError(t, err)
	assert.Empty(t, template.Email)

	existing := AccountConfig{ProviderType: ProviderTypeEmail, Email: "user@example.com"}
	template, err = provider.BuildTemplate(ProviderConfig{}, "user", &existing)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", template.Email)

	// An existing config of another type contributes nothing
	other := AccountConfig{ProviderType: ProviderTypeSMS, PhoneNumber: "+15005550006"}
	template, err = provider.BuildTemplate(ProviderConfig{}, "user", &other)
	require.NoError(t, err)
	assert.Empty(t, template.Email)
}

func TestEmailValidateDraft(t *testing.T) {
	provider := NewEmailProvider(&fakeSender{})

	require.Error(t, provider.ValidateDraft(AccountConfig{ProviderType: ProviderTypeEmail}))

	for _, address := range []string{"user", "user@", "@example.com", "user @example.com", "user@example"} {
		err := provider.ValidateDraft(AccountConfig{ProviderType: ProviderTypeEmail, Email: address})
		assert.Error(t, err, "expected %s to be rejected", address)
	}

	err := provider.ValidateDraft(AccountConfig{ProviderType: ProviderTypeEmail, Email: "user@example.com"})
	assert.NoError(t, err)
}
