package mfa

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-mfa/pkg/errors"
)

const (
	// DefaultMaxVerificationFailures is applied when settings do not set one.
	DefaultMaxVerificationFailures = 3
)

// ProviderConfig is the tenant- or system-level policy for one provider type.
// It is immutable once loaded for a request and replaced wholesale on
// settings save.
type ProviderConfig struct {
	ProviderType ProviderType `json:"provider_type"`
	Enabled      bool         `json:"enabled"`

	// Issuer is the label embedded in TOTP enrollment URLs.
	Issuer string `json:"issuer,omitempty"`

	// MessageTemplate is the SMS body; the ${code} placeholder is replaced
	// with the verification code.
	MessageTemplate string `json:"message_template,omitempty"`

	// CodeLifetimeSeconds bounds how long an issued code stays verifiable.
	CodeLifetimeSeconds int `json:"code_lifetime_seconds,omitempty"`
}

// Settings is an ordered collection of provider configs scoped to the system
// default or one tenant. Order is presentation order.
type Settings struct {
	Providers               []ProviderConfig `json:"providers"`
	MaxVerificationFailures int              `json:"max_verification_failures,omitempty"`
}

// Validate checks the settings invariants: known provider types, unique per
// settings instance.
func (s Settings) Validate() error {
	seen := make(map[ProviderType]bool, len(s.Providers))
	for _, p := range s.Providers {
		if err := ValidateProviderType(p.ProviderType); err != nil {
			return err
		}
		if seen[p.ProviderType] {
			return errors.Newf(errors.ErrCodeInvalidInput, "duplicate provider config for type %s", p.ProviderType)
		}
		seen[p.ProviderType] = true
	}
	if s.MaxVerificationFailures < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "max verification failures must not be negative")
	}
	return nil
}

// Provider returns the config for the given type, if present.
func (s Settings) Provider(providerType ProviderType) (ProviderConfig, bool) {
	for _, p := range s.Providers {
		if p.ProviderType == providerType {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// SettingsStore persists settings at system and tenant scope. Loads return
// nil when no settings exist at that scope.
type SettingsStore interface {
	LoadSystem(ctx context.Context) (*Settings, error)
	LoadTenant(ctx context.Context, tenantID uuid.UUID) (*Settings, error)
	SaveSystem(ctx context.Context, settings Settings) error
	SaveTenant(ctx context.Context, tenantID uuid.UUID, settings Settings) error
}

// SettingsService centralizes the two-level settings precedence rule: tenant
// settings win when present with a non-empty provider list, otherwise the
// system default applies. Resolved settings are cached per tenant; the cache
// is invalidated synchronously on write.
type SettingsService struct {
	store SettingsStore

	mutex sync.RWMutex
	cache map[uuid.UUID]*Settings
}

// NewSettingsService creates a settings service backed by the given store.
func NewSettingsService(store SettingsStore) *SettingsService {
	return &SettingsService{
		store: store,
		cache: make(map[uuid.UUID]*Settings),
	}
}

// GetEffectiveSettings resolves the settings applying to a tenant. Returns
// nil when neither tenant nor system settings are configured.
func (s *SettingsService) GetEffectiveSettings(ctx context.Context, tenantID uuid.UUID) (*Settings, error) {
	s.mutex.RLock()
	cached, ok := s.cache[tenantID]
	s.mutex.RUnlock()
	if ok {
		return cached, nil
	}

	resolved, err := s.resolve(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	s.mutex.Lock()
	s.cache[tenantID] = resolved
	s.mutex.Unlock()

	return resolved, nil
}

func (s *SettingsService) resolve(ctx context.Context, tenantID uuid.UUID) (*Settings, error) {
	tenantSettings, err := s.store.LoadTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant 2FA settings: %w", err)
	}
	if tenantSettings != nil && len(tenantSettings.Providers) > 0 {
		return tenantSettings, nil
	}

	systemSettings, err := s.store.LoadSystem(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load system 2FA settings: %w", err)
	}
	return systemSettings, nil
}

// GetSettings reads the settings at exactly one scope: system for sysadmin
// callers, the tenant's own settings otherwise. Returns nil when absent.
func (s *SettingsService) GetSettings(ctx context.Context, tenantID uuid.UUID, sysadmin bool) (*Settings, error) {
	if sysadmin {
		return s.store.LoadSystem(ctx)
	}
	return s.store.LoadTenant(ctx, tenantID)
}

// IsProviderEnabled reports whether the provider type has an enabled entry in
// the resolved settings for the tenant.
func (s *SettingsService) IsProviderEnabled(ctx context.Context, tenantID uuid.UUID, providerType ProviderType) (bool, error) {
	settings, err := s.GetEffectiveSettings(ctx, tenantID)
	if err != nil {
		return false, err
	}
	if settings == nil {
		return false, nil
	}
	cfg, ok := settings.Provider(providerType)
	return ok && cfg.Enabled, nil
}

// ProviderConfig returns the resolved config for an enabled provider, or a
// PROVIDER_NOT_CONFIGURED error when the provider is absent or disabled.
func (s *SettingsService) ProviderConfig(ctx context.Context, tenantID uuid.UUID, providerType ProviderType) (ProviderConfig, error) {
	settings, err := s.GetEffectiveSettings(ctx, tenantID)
	if err != nil {
		return ProviderConfig{}, err
	}
	if settings != nil {
		if cfg, ok := settings.Provider(providerType); ok && cfg.Enabled {
			return cfg, nil
		}
	}
	return ProviderConfig{}, errors.Newf(errors.ErrCodeProviderNotConfigured, "2FA provider %s is not configured", providerType)
}

// EnabledProviders lists enabled provider types in settings order.
func (s *SettingsService) EnabledProviders(ctx context.Context, tenantID uuid.UUID) ([]ProviderType, error) {
	settings, err := s.GetEffectiveSettings(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	providers := []ProviderType{}
	if settings == nil {
		return providers, nil
	}
	for _, p := range settings.Providers {
		if p.Enabled {
			providers = append(providers, p.ProviderType)
		}
	}
	return providers, nil
}

// MaxVerificationFailures returns the attempt ceiling from the resolved
// settings, falling back to the default when unset.
func (s *SettingsService) MaxVerificationFailures(ctx context.Context, tenantID uuid.UUID) (int, error) {
	settings, err := s.GetEffectiveSettings(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	if settings == nil || settings.MaxVerificationFailures == 0 {
		return DefaultMaxVerificationFailures, nil
	}
	return settings.MaxVerificationFailures, nil
}

// SaveSystemSettings replaces the system-scoped settings. The whole cache is
// invalidated since every tenant without an override resolves to system
// settings.
func (s *SettingsService) SaveSystemSettings(ctx context.Context, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	if err := s.store.SaveSystem(ctx, settings); err != nil {
		slog.Error("Failed to save system 2FA settings", "error", err)
		return fmt.Errorf("failed to save system 2FA settings: %w", err)
	}

	s.mutex.Lock()
	s.cache = make(map[uuid.UUID]*Settings)
	s.mutex.Unlock()

	return nil
}

// SaveTenantSettings replaces one tenant's settings and invalidates its
// cached resolution.
func (s *SettingsService) SaveTenantSettings(ctx context.Context, tenantID uuid.UUID, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	if err := s.store.SaveTenant(ctx, tenantID, settings); err != nil {
		slog.Error("Failed to save tenant 2FA settings", "tenantId", tenantID, "error", err)
		return fmt.Errorf("failed to save tenant 2FA settings: %w", err)
	}

	s.mutex.Lock()
	delete(s.cache, tenantID)
	s.mutex.Unlock()

	return nil
}
