package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/sqlite"
)

// ConfigRepository implements port.ConfigStore over the system_config table
type ConfigRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewConfigRepository creates a new config repository
func NewConfigRepository(db *sql.DB, logger *zap.Logger) port.ConfigStore {
	return &ConfigRepository{
		db:     db,
		logger: logger,
	}
}

// Load returns the stored value for key
func (r *ConfigRepository) Load(ctx context.Context, key string) (string, error) {
	cfg, err := r.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return cfg.Value, nil
}

// Get returns the full config row for key
func (r *ConfigRepository) Get(ctx context.Context, key string) (*entity.SystemConfig, error) {
	query := `SELECT key, value, description, updated_at FROM system_config WHERE key = ?`

	var cfg entity.SystemConfig
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, key).
		Scan(&cfg.Key, &cfg.Value, &cfg.Description, &cfg.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to load config", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to load config %s: %w", key, err)
	}
	return &cfg, nil
}

// Save stores value under key
func (r *ConfigRepository) Save(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO system_config (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query, key, value, time.Now().UTC())
	if err != nil {
		r.logger.Error("Failed to save config", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to save config %s: %w", key, err)
	}
	return nil
}
