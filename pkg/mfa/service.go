package mfa

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-mfa/pkg/errors"
)

// MfaService orchestrates provider strategies, the settings resolver, the
// verification ledger, and the account config store into the public 2FA
// enrollment operations. Ledger-touching operations are serialized per
// (tenant, user) key so concurrent checks cannot both succeed and a
// submit/check pair resolves deterministically.
type MfaService struct {
	providers   map[ProviderType]Provider
	settings    *SettingsService
	configStore AccountConfigStore
	ledger      VerificationLedger
	now         func() time.Time

	locks *keyedMutex
}

// MfaServiceOption configures an MfaService.
type MfaServiceOption func(*MfaService)

// WithClock overrides the service clock, for deterministic expiry testing.
func WithClock(now func() time.Time) MfaServiceOption {
	return func(s *MfaService) {
		s.now = now
	}
}

// NewMfaService creates the 2FA engine.
func NewMfaService(settings *SettingsService, configStore AccountConfigStore, ledger VerificationLedger, providers []Provider, opts ...MfaServiceOption) *MfaService {
	providerMap := make(map[ProviderType]Provider, len(providers))
	for _, p := range providers {
		providerMap[p.Type()] = p
	}

	s := &MfaService{
		providers:   providerMap,
		settings:    settings,
		configStore: configStore,
		ledger:      ledger,
		now:         time.Now,
		locks:       newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MfaService) provider(providerType ProviderType) (Provider, error) {
	if err := ValidateProviderType(providerType); err != nil {
		return nil, err
	}
	p, ok := s.providers[providerType]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeProviderNotConfigured, "2FA provider %s is not available", providerType)
	}
	return p, nil
}

// lock acquires the per-user mutex and returns its unlock func.
func (s *MfaService) lock(key VerificationKey) func() {
	return s.locks.Lock(key)
}

// GetAccountConfig returns the user's persisted account config, or nil when
// none exists or its provider is no longer enabled in the resolved settings.
func (s *MfaService) GetAccountConfig(ctx context.Context, tenantID, userID uuid.UUID) (*AccountConfig, error) {
	config, err := s.configStore.Load(ctx, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load 2FA account config: %w", err)
	}
	if config == nil {
		return nil, nil
	}

	enabled, err := s.settings.IsProviderEnabled(ctx, tenantID, config.ProviderType)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, nil
	}
	return config, nil
}

// ListAvailableProviders returns the enabled provider types in settings
// order.
func (s *MfaService) ListAvailableProviders(ctx context.Context, tenantID uuid.UUID) ([]ProviderType, error) {
	return s.settings.EnabledProviders(ctx, tenantID)
}

// GenerateAccountConfig builds a draft account config for the provider type.
// It mutates neither the ledger nor the store, so it is safe to call
// repeatedly and discard the result.
func (s *MfaService) GenerateAccountConfig(ctx context.Context, tenantID, userID uuid.UUID, providerType ProviderType) (AccountConfig, error) {
	p, err := s.provider(providerType)
	if err != nil {
		return AccountConfig{}, err
	}

	cfg, err := s.settings.ProviderConfig(ctx, tenantID, providerType)
	if err != nil {
		return AccountConfig{}, err
	}

	existing, err := s.configStore.Load(ctx, tenantID, userID)
	if err != nil {
		return AccountConfig{}, fmt.Errorf("failed to load 2FA account config: %w", err)
	}

	return p.BuildTemplate(cfg, userID.String(), existing)
}

// Submit validates a draft, issues its verification code, and writes a new
// pending verification, overwriting any prior pending state for the user.
// Only the latest submission is verifiable. The per-user lock is held only
// through the ledger write; code delivery runs outside it so a slow delivery
// channel never blocks concurrent checks for the same user. A delivery
// failure is reported as DELIVERY_FAILED but does not roll back the pending
// record.
func (s *MfaService) Submit(ctx context.Context, tenantID, userID uuid.UUID, draft AccountConfig) error {
	p, err := s.provider(draft.ProviderType)
	if err != nil {
		return err
	}
	if err := p.ValidateDraft(draft); err != nil {
		return err
	}

	cfg, err := s.settings.ProviderConfig(ctx, tenantID, draft.ProviderType)
	if err != nil {
		return err
	}

	key := VerificationKey{TenantID: tenantID, UserID: userID}
	unlock := s.lock(key)

	issuance, err := p.IssueCode(cfg, draft, s.now())
	if err != nil {
		unlock()
		return fmt.Errorf("failed to issue verification code: %w", err)
	}

	pending := PendingVerification{
		ProviderType: draft.ProviderType,
		Code:         issuance.Code,
		Config:       draft,
		ExpiresAt:    issuance.ExpiresAt,
	}
	if err := s.ledger.Put(ctx, key, pending); err != nil {
		unlock()
		return fmt.Errorf("failed to store pending verification: %w", err)
	}
	unlock()

	if issuance.RequiresDelivery {
		if err := p.DeliverCode(ctx, cfg, draft, issuance.Code); err != nil {
			// The pending record stays valid; the caller may retry
			// verification once delivery eventually succeeds, or resubmit.
			return errors.Wrap(err, errors.ErrCodeDeliveryFailed, "failed to deliver verification code")
		}
	}

	slog.Info("Submitted 2FA account config", "tenantId", tenantID, "userId", userID, "providerType", draft.ProviderType)
	return nil
}

// CheckAndSave verifies the supplied code against the pending verification
// and persists the draft on success. A mismatch increments the failure count;
// once the configured ceiling is reached, further checks fail
// VERIFICATION_LOCKED until a new Submit resets the record.
func (s *MfaService) CheckAndSave(ctx context.Context, tenantID, userID uuid.UUID, draft AccountConfig, suppliedCode string) error {
	p, err := s.provider(draft.ProviderType)
	if err != nil {
		return err
	}
	if err := p.ValidateDraft(draft); err != nil {
		return err
	}

	cfg, err := s.settings.ProviderConfig(ctx, tenantID, draft.ProviderType)
	if err != nil {
		return err
	}

	maxFailures, err := s.settings.MaxVerificationFailures(ctx, tenantID)
	if err != nil {
		return err
	}

	key := VerificationKey{TenantID: tenantID, UserID: userID}
	unlock := s.lock(key)
	defer unlock()

	pending, ok, err := s.ledger.Get(ctx, key, s.now())
	if err != nil {
		return fmt.Errorf("failed to load pending verification: %w", err)
	}
	if !ok {
		return errors.New(errors.ErrCodeNoPendingVerification, "no verification is pending, submit an account config first")
	}

	// A check against a replaced draft must never silently verify.
	if pending.ProviderType != draft.ProviderType || !pending.Config.Equal(draft) {
		return errors.New(errors.ErrCodeNoPendingVerification, "submitted account config does not match the pending verification")
	}

	if maxFailures > 0 && pending.Failures >= maxFailures {
		return errors.New(errors.ErrCodeVerificationLocked, "too many failed verification attempts, submit again to retry")
	}

	valid, err := p.VerifyCode(cfg, draft, suppliedCode, pending, s.now())
	if err != nil {
		return fmt.Errorf("failed to verify code: %w", err)
	}
	if !valid {
		count, ferr := s.ledger.RecordFailure(ctx, key)
		if ferr != nil {
			return ferr
		}
		slog.Warn("2FA verification code mismatch", "tenantId", tenantID, "userId", userID, "failures", count)
		return errors.New(errors.ErrCodeInvalidVerificationCode, "verification code is incorrect")
	}

	if err := s.configStore.Save(ctx, tenantID, userID, draft); err != nil {
		return fmt.Errorf("failed to save 2FA account config: %w", err)
	}
	if err := s.ledger.Remove(ctx, key); err != nil {
		return fmt.Errorf("failed to clear pending verification: %w", err)
	}

	slog.Info("Verified and saved 2FA account config", "tenantId", tenantID, "userId", userID, "providerType", draft.ProviderType)
	return nil
}

// Delete removes the user's persisted account config and clears any pending
// verification. Deleting an absent config is not an error.
func (s *MfaService) Delete(ctx context.Context, tenantID, userID uuid.UUID) error {
	key := VerificationKey{TenantID: tenantID, UserID: userID}
	unlock := s.lock(key)
	defer unlock()

	if err := s.configStore.Delete(ctx, tenantID, userID); err != nil {
		return fmt.Errorf("failed to delete 2FA account config: %w", err)
	}
	if err := s.ledger.Remove(ctx, key); err != nil {
		return fmt.Errorf("failed to clear pending verification: %w", err)
	}

	slog.Info("Deleted 2FA account config", "tenantId", tenantID, "userId", userID)
	return nil
}
