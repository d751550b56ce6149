package mfa

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// FileAccountConfigStore implements AccountConfigStore using file-based
// storage. Writes go to a temp file followed by an atomic rename.
type FileAccountConfigStore struct {
	dataDir string
	configs map[accountKey]AccountConfig
	mutex   sync.RWMutex
}

type accountConfigRecord struct {
	TenantID uuid.UUID     `json:"tenant_id"`
	UserID   uuid.UUID     `json:"user_id"`
	Config   AccountConfig `json:"config"`
}

// NewFileAccountConfigStore creates a new file-based account config store
func NewFileAccountConfigStore(dataDir string) (*FileAccountConfigStore, error) {
	// Create data directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store := &FileAccountConfigStore{
		dataDir: dataDir,
		configs: make(map[accountKey]AccountConfig),
	}

	// Load existing data
	if err := store.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return store, nil
}

func (s *FileAccountConfigStore) Load(ctx context.Context, tenantID, userID uuid.UUID) (*AccountConfig, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	config, ok := s.configs[accountKey{TenantID: tenantID, UserID: userID}]
	if !ok {
		return nil, nil
	}
	return &config, nil
}

func (s *FileAccountConfigStore) Save(ctx context.Context, tenantID, userID uuid.UUID, config AccountConfig) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := accountKey{TenantID: tenantID, UserID: userID}
	previous, existed := s.configs[key]
	s.configs[key] = config

	if err := s.save(); err != nil {
		// Rollback
		if existed {
			s.configs[key] = previous
		} else {
			delete(s.configs, key)
		}
		return fmt.Errorf("failed to save: %w", err)
	}

	return nil
}

func (s *FileAccountConfigStore) Delete(ctx context.Context, tenantID, userID uuid.UUID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := accountKey{TenantID: tenantID, UserID: userID}
	if _, ok := s.configs[key]; !ok {
		return nil
	}
	delete(s.configs, key)

	if err := s.save(); err != nil {
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

// load reads account config data from file
func (s *FileAccountConfigStore) load() error {
	filePath := filepath.Join(s.dataDir, "account_configs.json")

	// If file doesn't exist, start with empty map
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var records []accountConfigRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	s.configs = make(map[accountKey]AccountConfig)
	for _, record := range records {
		s.configs[accountKey{TenantID: record.TenantID, UserID: record.UserID}] = record.Config
	}

	return nil
}

// save writes account config data to file atomically
func (s *FileAccountConfigStore) save() error {
	records := make([]accountConfigRecord, 0, len(s.configs))
	for key, config := range s.configs {
		records = append(records, accountConfigRecord{
			TenantID: key.TenantID,
			UserID:   key.UserID,
			Config:   config,
		})
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	// Write to temp file first
	tempFile := filepath.Join(s.dataDir, "account_configs.json.tmp")
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// Atomic rename
	finalFile := filepath.Join(s.dataDir, "account_configs.json")
	if err := os.Rename(tempFile, finalFile); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
