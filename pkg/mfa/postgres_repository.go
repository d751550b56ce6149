package mfa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresAccountConfigStore implements AccountConfigStore on PostgreSQL.
// Configs are stored as jsonb keyed by (tenant_id, user_id):
//
//	CREATE TABLE mfa_account_config (
//	    tenant_id  uuid NOT NULL,
//	    user_id    uuid NOT NULL,
//	    config     jsonb NOT NULL,
//	    updated_at timestamptz NOT NULL DEFAULT now(),
//	    PRIMARY KEY (tenant_id, user_id)
//	);
type PostgresAccountConfigStore struct {
	pool *pgxpool.Pool
}

// NewPostgresAccountConfigStore creates a PostgreSQL-based account config store
func NewPostgresAccountConfigStore(pool *pgxpool.Pool) *PostgresAccountConfigStore {
	return &PostgresAccountConfigStore{pool: pool}
}

func (s *PostgresAccountConfigStore) Load(ctx context.Context, tenantID, userID uuid.UUID) (*AccountConfig, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT config FROM mfa_account_config WHERE tenant_id = $1 AND user_id = $2`,
		tenantID, userID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account config: %w", err)
	}

	var config AccountConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account config: %w", err)
	}
	return &config, nil
}

func (s *PostgresAccountConfigStore) Save(ctx context.Context, tenantID, userID uuid.UUID, config AccountConfig) error {
	data, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal account config: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO mfa_account_config (tenant_id, user_id, config, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (tenant_id, user_id) DO UPDATE SET config = $3, updated_at = now()`,
		tenantID, userID, data,
	)
	if err != nil {
		return fmt.Errorf("failed to save account config: %w", err)
	}
	return nil
}

func (s *PostgresAccountConfigStore) Delete(ctx context.Context, tenantID, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM mfa_account_config WHERE tenant_id = $1 AND user_id = $2`,
		tenantID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete account config: %w", err)
	}
	return nil
}

// PostgresSettingsStore implements SettingsStore on PostgreSQL. System-scoped
// settings use the nil UUID as tenant_id:
//
//	CREATE TABLE mfa_settings (
//	    tenant_id  uuid PRIMARY KEY,
//	    settings   jsonb NOT NULL,
//	    updated_at timestamptz NOT NULL DEFAULT now()
//	);
type PostgresSettingsStore struct {
	pool *pgxpool.Pool
}

// NewPostgresSettingsStore creates a PostgreSQL-based settings store
func NewPostgresSettingsStore(pool *pgxpool.Pool) *PostgresSettingsStore {
	return &PostgresSettingsStore{pool: pool}
}

func (s *PostgresSettingsStore) LoadSystem(ctx context.Context) (*Settings, error) {
	return s.load(ctx, uuid.Nil)
}

func (s *PostgresSettingsStore) LoadTenant(ctx context.Context, tenantID uuid.UUID) (*Settings, error) {
	return s.load(ctx, tenantID)
}

func (s *PostgresSettingsStore) SaveSystem(ctx context.Context, settings Settings) error {
	return s.save(ctx, uuid.Nil, settings)
}

func (s *PostgresSettingsStore) SaveTenant(ctx context.Context, tenantID uuid.UUID, settings Settings) error {
	return s.save(ctx, tenantID, settings)
}

func (s *PostgresSettingsStore) load(ctx context.Context, tenantID uuid.UUID) (*Settings, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT settings FROM mfa_settings WHERE tenant_id = $1`,
		tenantID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return &settings, nil
}

func (s *PostgresSettingsStore) save(ctx context.Context, tenantID uuid.UUID, settings Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO mfa_settings (tenant_id, settings, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (tenant_id) DO UPDATE SET settings = $2, updated_at = now()`,
		tenantID, data,
	)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
