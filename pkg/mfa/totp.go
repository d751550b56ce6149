package mfa

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/tendant/simple-mfa/pkg/errors"
)

const (
	TOTP_ISSUER      = "simple-mfa"
	TOTP_PERIOD      = 30
	TOTP_SKEW        = 1
	TOTP_SECRET_SIZE = 20

	// DefaultEnrollmentWindow bounds how long a submitted TOTP draft stays
	// verifiable in the ledger. Code freshness itself is governed by the
	// period and skew.
	DefaultEnrollmentWindow = 10 * time.Minute
)

// TotpProvider implements the time-based one-time code strategy. Codes are
// computed deterministically from the draft's secret, so submission stores no
// server-side code and verification tolerates one time-step of clock skew.
type TotpProvider struct {
	period     uint
	skew       uint
	secretSize uint
}

// NewTotpProvider creates a TOTP provider with RFC 6238 defaults.
func NewTotpProvider() *TotpProvider {
	return &TotpProvider{
		period:     TOTP_PERIOD,
		skew:       TOTP_SKEW,
		secretSize: TOTP_SECRET_SIZE,
	}
}

func (p *TotpProvider) Type() ProviderType {
	return ProviderTypeTOTP
}

// BuildTemplate generates a fresh cryptographically random secret on every
// call and derives the otpauth enrollment URL from it.
func (p *TotpProvider) BuildTemplate(cfg ProviderConfig, accountName string, existing *AccountConfig) (AccountConfig, error) {
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = TOTP_ISSUER
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Period:      p.period,
		SecretSize:  p.secretSize,
	})
	if err != nil {
		slog.Error("Failed to generate totp secret", "accountName", accountName, "issuer", issuer, "error", err)
		return AccountConfig{}, err
	}

	slog.Info("Generated new totp secret", "accountName", accountName)
	return AccountConfig{
		ProviderType: ProviderTypeTOTP,
		Secret:       key.Secret(),
		AuthURL:      key.URL(),
	}, nil
}

// IssueCode issues nothing for TOTP; the pending record only carries the
// draft and the enrollment window expiry.
func (p *TotpProvider) IssueCode(cfg ProviderConfig, draft AccountConfig, now time.Time) (CodeIssuance, error) {
	window := DefaultEnrollmentWindow
	if cfg.CodeLifetimeSeconds > 0 {
		window = time.Duration(cfg.CodeLifetimeSeconds) * time.Second
	}
	return CodeIssuance{
		ExpiresAt: now.Add(window),
	}, nil
}

func (p *TotpProvider) DeliverCode(ctx context.Context, cfg ProviderConfig, draft AccountConfig, code string) error {
	return nil
}

// VerifyCode recomputes the time-windowed code from the draft's secret and
// compares, tolerating one time-step of skew in either direction.
func (p *TotpProvider) VerifyCode(cfg ProviderConfig, draft AccountConfig, suppliedCode string, pending PendingVerification, now time.Time) (bool, error) {
	valid, err := totp.ValidateCustom(suppliedCode, draft.Secret, now.UTC(), totp.ValidateOpts{
		Period:    p.period,
		Skew:      p.skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		slog.Error("Failed to validate totp passcode", "error", err)
		return false, err
	}
	return valid, nil
}

// ValidateDraft checks that the draft carries a secret and a well-formed
// otpauth URL embedding it.
func (p *TotpProvider) ValidateDraft(draft AccountConfig) error {
	if draft.Secret == "" {
		return errors.New(errors.ErrCodeInvalidAccountConfig, "TOTP account config requires a secret")
	}
	if !strings.HasPrefix(draft.AuthURL, "otpauth://totp/") {
		return errors.New(errors.ErrCodeInvalidAccountConfig, "TOTP account config requires an otpauth://totp/ auth URL")
	}
	if !strings.Contains(draft.AuthURL, "secret="+draft.Secret) {
		return errors.New(errors.ErrCodeInvalidAccountConfig, "TOTP auth URL does not embed the config secret")
	}
	return nil
}
