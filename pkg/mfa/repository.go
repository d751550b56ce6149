package mfa

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// AccountConfigStore persists finalized account configs, one per
// (tenant, user) pair. Load returns nil when no config exists; Delete is
// idempotent.
type AccountConfigStore interface {
	Load(ctx context.Context, tenantID, userID uuid.UUID) (*AccountConfig, error)
	Save(ctx context.Context, tenantID, userID uuid.UUID, config AccountConfig) error
	Delete(ctx context.Context, tenantID, userID uuid.UUID) error
}

type accountKey struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
}

// InMemoryAccountConfigStore implements AccountConfigStore with a map
type InMemoryAccountConfigStore struct {
	mutex   sync.RWMutex
	configs map[accountKey]AccountConfig
}

// NewInMemoryAccountConfigStore creates an empty in-memory store
func NewInMemoryAccountConfigStore() *InMemoryAccountConfigStore {
	return &InMemoryAccountConfigStore{
		configs: make(map[accountKey]AccountConfig),
	}
}

func (s *InMemoryAccountConfigStore) Load(ctx context.Context, tenantID, userID uuid.UUID) (*AccountConfig, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	config, ok := s.configs[accountKey{TenantID: tenantID, UserID: userID}]
	if !ok {
		return nil, nil
	}
	return &config, nil
}

func (s *InMemoryAccountConfigStore) Save(ctx context.Context, tenantID, userID uuid.UUID, config AccountConfig) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.configs[accountKey{TenantID: tenantID, UserID: userID}] = config
	return nil
}

func (s *InMemoryAccountConfigStore) Delete(ctx context.Context, tenantID, userID uuid.UUID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.configs, accountKey{TenantID: tenantID, UserID: userID})
	return nil
}

// InMemorySettingsStore implements SettingsStore with maps
type InMemorySettingsStore struct {
	mutex  sync.RWMutex
	system *Settings
	tenant map[uuid.UUID]Settings
}

// NewInMemorySettingsStore creates an empty in-memory settings store
func NewInMemorySettingsStore() *InMemorySettingsStore {
	return &InMemorySettingsStore{
		tenant: make(map[uuid.UUID]Settings),
	}
}

func (s *InMemorySettingsStore) LoadSystem(ctx context.Context) (*Settings, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.system == nil {
		return nil, nil
	}
	settings := *s.system
	return &settings, nil
}

func (s *InMemorySettingsStore) LoadTenant(ctx context.Context, tenantID uuid.UUID) (*Settings, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	settings, ok := s.tenant[tenantID]
	if !ok {
		return nil, nil
	}
	return &settings, nil
}

func (s *InMemorySettingsStore) SaveSystem(ctx context.Context, settings Settings) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.system = &settings
	return nil
}

func (s *InMemorySettingsStore) SaveTenant(ctx context.Context, tenantID uuid.UUID, settings Settings) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.tenant[tenantID] = settings
	return nil
}
