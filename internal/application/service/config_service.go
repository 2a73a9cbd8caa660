package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// ConfigService holds the active engine configuration snapshot
type ConfigService interface {
	// Load reads the stored configuration, falling back to the defaults when none is stored
	Load(ctx context.Context) (*entity.EngineConfig, error)
	// Current returns the active snapshot. Callers must not modify it.
	Current() *entity.EngineConfig
	// Update validates, persists and then atomically swaps in a new snapshot
	Update(ctx context.Context, cfg *entity.EngineConfig) error
}

type configServiceImpl struct {
	store    port.ConfigStore
	defaults *entity.EngineConfig
	snapshot atomic.Pointer[entity.EngineConfig]
	mu       sync.Mutex
	logger   Logger
}

// NewConfigService creates a ConfigService whose snapshot starts at defaults
func NewConfigService(store port.ConfigStore, defaults *entity.EngineConfig, logger Logger) ConfigService {
	if defaults == nil {
		defaults = entity.DefaultEngineConfig()
	}
	s := &configServiceImpl{
		store:    store,
		defaults: defaults.Clone(),
		logger:   logger,
	}
	s.snapshot.Store(defaults.Clone())
	return s
}

// Load reads the stored configuration, falling back to the defaults when none is stored
func (s *configServiceImpl) Load(ctx context.Context) (*entity.EngineConfig, error) {
	raw, err := s.store.Load(ctx, entity.EngineConfigKey)
	if errors.Is(err, port.ErrNotFound) {
		s.logger.Info("No stored engine configuration, using defaults", "key", entity.EngineConfigKey)
		cfg := s.defaults.Clone()
		s.snapshot.Store(cfg)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load engine config: %w", err)
	}

	// unset fields keep their default values
	cfg := s.defaults.Clone()
	if err := json.Unmarshal([]byte(raw), cfg); err != nil {
		return nil, fmt.Errorf("decode engine config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s.snapshot.Store(cfg)
	s.logger.Info("Engine configuration loaded", "key", entity.EngineConfigKey)
	return cfg, nil
}

// Current returns the active snapshot
func (s *configServiceImpl) Current() *entity.EngineConfig {
	return s.snapshot.Load()
}

// Update validates, persists and then atomically swaps in a new snapshot
func (s *configServiceImpl) Update(ctx context.Context, cfg *entity.EngineConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	next := cfg.Clone()

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode engine config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Save(ctx, entity.EngineConfigKey, string(data)); err != nil {
		s.logger.Error("Failed to save engine configuration", "error", err)
		return fmt.Errorf("save engine config: %w", err)
	}
	s.snapshot.Store(next)

	s.logger.Info("Engine configuration updated",
		"auto_approve_limit", next.FinancialThresholds.AutoApproveLimit,
		"executive_threshold", next.FinancialThresholds.ExecutiveApprovalRequired,
		"auto_approval_enabled", next.DefaultPolicies.EnableAutoApproval,
	)
	return nil
}
