package mfa

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// StoreConfig contains configuration for creating an account config store
type StoreConfig struct {
	// Pool is required for PostgreSQL stores
	Pool *pgxpool.Pool
	// DataDir is required for file-based stores
	DataDir string
}

// NewAccountConfigStore creates a new account config store based on the persistence type
func NewAccountConfigStore(persistenceType string, config StoreConfig) (AccountConfigStore, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.Pool == nil {
			return nil, fmt.Errorf("pool required for postgres store")
		}
		return NewPostgresAccountConfigStore(config.Pool), nil
	case "file":
		if config.DataDir == "" {
			return nil, fmt.Errorf("dataDir required for file store")
		}
		return NewFileAccountConfigStore(config.DataDir)
	case "memory":
		return NewInMemoryAccountConfigStore(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, file, memory)", persistenceType)
	}
}

// NewSettingsStore creates a new settings store based on the persistence type
func NewSettingsStore(persistenceType string, config StoreConfig) (SettingsStore, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.Pool == nil {
			return nil, fmt.Errorf("pool required for postgres store")
		}
		return NewPostgresSettingsStore(config.Pool), nil
	case "memory":
		return NewInMemorySettingsStore(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, memory)", persistenceType)
	}
}
