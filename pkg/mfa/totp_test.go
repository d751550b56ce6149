package mfa

import (
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotpBuildTemplate(t *testing.T) {
	provider := NewTotpProvider()

	config, err := provider.BuildTemplate(ProviderConfig{Issuer: "acme"}, "user@acme", nil)
	require.NoError(t, err)
	require.Equal(t, ProviderTypeTOTP, config.ProviderType)
	require.NotEmpty(t, config.Secret)
	assert.Contains(t, config.AuthURL, "otpauth://totp/")
	assert.Contains(t, config.AuthURL, "issuer=acme")
	assert.Contains(t, config.AuthURL, "secret="+config.Secret)
	require.NoError(t, provider.ValidateDraft(config))

	// Issuer falls back to the default when settings leave it empty
	config, err = provider.BuildTemplate(ProviderConfig{}, "user@acme", nil)
	require.NoError(t, err)
	assert.Contains(t, config.AuthURL, "issuer="+TOTP_ISSUER)
}

func TestTotpVerifyCodeRoundTrip(t *testing.T) {
	provider := NewTotpProvider()
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	draft, err := provider.BuildTemplate(ProviderConfig{}, "user", nil)
	require.NoError(t, err)

	code, err := totp.GenerateCode(draft.Secret, now)
	require.NoError(t, err)

	valid, err := provider.VerifyCode(ProviderConfig{}, draft, code, PendingVerification{}, now)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = provider.VerifyCode(ProviderConfig{}, draft, "000000", PendingVerification{}, now)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestTotpVerifyCodeSkew(t *testing.T) {
	provider := NewTotpProvider()
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	draft, err := provider.BuildTemplate(ProviderConfig{}, "user", nil)
	require.NoError(t, err)

	// One time-step behind is accepted
	code, err := totp.GenerateCode(draft.Secret, now.Add(-TOTP_PERIOD*time.Second))
	require.NoError(t, err)
	valid, err := provider.VerifyCode(ProviderConfig{}, draft, code, PendingVerification{}, now)
	require.NoError(t, err)
	assert.True(t, valid)

	// One time-step ahead is accepted
	code, err = totp.GenerateCode(draft.Secret, now.Add(TOTP_PERIOD*time.Second))
	require.NoError(t, err)
	valid, err = provider.VerifyCode(ProviderConfig{}, draft, code, PendingVerification{}, now)
	require.NoError(t, err)
	assert.True(t, valid)

	// Three time-steps behind is rejected
	code, err = totp.GenerateCode(draft.Secret, now.Add(-3*TOTP_PERIOD*time.Second))
	require.NoError(t, err)
	valid, err = provider.VerifyCode(ProviderConfig{}, draft, code, PendingVerification{}, now)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestTotpIssueCodeWindow(t *testing.T) {
	provider := NewTotpProvider()
	now := time.Now()

	issuance, err := provider.IssueCode(ProviderConfig{}, AccountConfig{}, now)
	require.NoError(t, err)
	assert.Empty(t, issuance.Code)
	assert.False(t, issuance.RequiresDelivery)
	assert.Equal(t, now.Add(DefaultEnrollmentWindow), issuance.ExpiresAt)

	issuance, err = provider.IssueCode(ProviderConfig{CodeLifetimeSeconds: 300}, AccountConfig{}, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(5*time.Minute), issuance.ExpiresAt)
}

func TestTotpValidateDraft(t *testing.T) {
	provider := NewTotpProvider()

	err := provider.ValidateDraft(AccountConfig{ProviderType: ProviderTypeTOTP})
	require.Error(t, err)

	err = provider.ValidateDraft(AccountConfig{
		ProviderType: ProviderTypeTOTP,
		Secret:       "JBSWY3DPEHPK3PXP",
		AuthURL:      "https://example.com/enroll",
	})
	require.Error(t, err)

	// Auth URL must embed the same secret the draft carries
	err = provider.ValidateDraft(AccountConfig{
		ProviderType: ProviderTypeTOTP,
		Secret:       "JBSWY3DPEHPK3PXP",
		AuthURL:      "otpauth://totp/acme:user?issuer=acme&secret=OTHERSECRET",
	})
	require.Error(t, err)

	err = provider.ValidateDraft(AccountConfig{
		ProviderType: ProviderTypeTOTP,
		Secret:       "JBSWY3DPEHPK3PXP",
		AuthURL:      "otpauth://totp/acme:user?issuer=acme&secret=JBSWY3DPEHPK3PXP",
	})
	require.NoError(t, err)
}
