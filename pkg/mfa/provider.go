package mfa

import (
	"context"
	"time"

	"github.com/tendant/simple-mfa/pkg/errors"
)

// ProviderType identifies a 2FA provider variant.
type ProviderType string

const (
	ProviderTypeTOTP  ProviderType = "TOTP"
	ProviderTypeSMS   ProviderType = "SMS"
	ProviderTypeEmail ProviderType = "EMAIL"
)

// RequiresCodeDelivery reports whether verification codes for this provider
// must be delivered out-of-band at submission time.
func (t ProviderType) RequiresCodeDelivery() bool {
	return t == ProviderTypeSMS || t == ProviderTypeEmail
}

// RequiresSecret reports whether account configs for this provider carry a
// shared secret from which codes are computed deterministically.
func (t ProviderType) RequiresSecret() bool {
	return t == ProviderTypeTOTP
}

// Valid reports whether the provider type is a known variant.
func (t ProviderType) Valid() bool {
	switch t {
	case ProviderTypeTOTP, ProviderTypeSMS, ProviderTypeEmail:
		return true
	default:
		return false
	}
}

// ValidateProviderType checks if the given type is a known 2FA provider type
func ValidateProviderType(providerType ProviderType) error {
	if !providerType.Valid() {
		return errors.Newf(errors.ErrCodeInvalidInput, "invalid 2FA provider type: %s, must be one of: %s, %s, %s",
			providerType, ProviderTypeTOTP, ProviderTypeSMS, ProviderTypeEmail)
	}
	return nil
}

// CodeIssuance is the result of issuing a verification code at submission
// time. Deterministic providers issue no code; the zero Code is stored and
// verification recomputes the expected value from the draft's secret.
type CodeIssuance struct {
	Code             string
	ExpiresAt        time.Time
	RequiresDelivery bool
}

// Provider is the per-variant 2FA strategy. One implementation exists per
// ProviderType, selected via the engine's provider map.
type Provider interface {
	Type() ProviderType

	// BuildTemplate produces a fresh draft account config. accountName labels
	// the enrollment for providers that embed it (TOTP auth URLs); existing is
	// the user's current config, if any, so providers can carry fields over.
	BuildTemplate(cfg ProviderConfig, accountName string, existing *AccountConfig) (AccountConfig, error)

	// IssueCode produces the verification code and expiry to store in the
	// ledger for a submitted draft.
	IssueCode(cfg ProviderConfig, draft AccountConfig, now time.Time) (CodeIssuance, error)

	// DeliverCode sends an issued code out-of-band. No-op for providers that
	// do not deliver codes.
	DeliverCode(ctx context.Context, cfg ProviderConfig, draft AccountConfig, code string) error

	// VerifyCode checks a supplied code against the pending verification.
	VerifyCode(cfg ProviderConfig, draft AccountConfig, suppliedCode string, pending PendingVerification, now time.Time) (bool, error)

	// ValidateDraft checks the provider-specific shape of a draft config.
	ValidateDraft(draft AccountConfig) error
}
