// Package container wires repositories, services and workers for the binaries.
package container

import (
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// Config store backends
const (
	ConfigStoreSQLite = "sqlite"
	ConfigStoreRedis  = "redis"
)

// Config is the flattened wiring configuration; internal/config builds it from file and env
type Config struct {
	Database    DatabaseConfig
	Lark        LarkConfig // empty credentials disable chat delivery
	ConfigStore ConfigStoreConfig
	Server      ServerConfig
	Worker      WorkerConfig

	// Engine seeds the config service until a snapshot has been saved
	Engine *entity.EngineConfig
}

type DatabaseConfig struct {
	Path            string // file path or database.MemoryPath
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LarkConfig struct {
	AppID     string
	AppSecret string
	BaseURL   string
}

type ConfigStoreConfig struct {
	Backend        string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// WorkerConfig toggles the escalation sweep and the notification outbox drain
type WorkerConfig struct {
	EscalationEnabled      bool
	EscalationPollInterval time.Duration
	EscalationBatchSize    int

	NotificationEnabled      bool
	NotificationPollInterval time.Duration
	NotificationBatchSize    int
}

func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/approval.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		ConfigStore: ConfigStoreConfig{
			Backend:        ConfigStoreSQLite,
			RedisAddr:      "localhost:6379",
			RedisKeyPrefix: "approval:",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Worker: WorkerConfig{
			EscalationEnabled:        true,
			EscalationPollInterval:   time.Minute,
			EscalationBatchSize:      50,
			NotificationEnabled:      true,
			NotificationPollInterval: 10 * time.Second,
			NotificationBatchSize:    100,
		},
		Engine: entity.DefaultEngineConfig(),
	}
}

// Validate returns the first wiring problem found.
// Engine errors keep entity.ErrInvalidConfig in their chain.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}

	switch c.ConfigStore.Backend {
	case ConfigStoreSQLite:
	case ConfigStoreRedis:
		if c.ConfigStore.RedisAddr == "" {
			return errors.New("config_store.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown config store backend %q", c.ConfigStore.Backend)
	}

	w := c.Worker
	if w.EscalationEnabled && w.EscalationPollInterval <= 0 {
		return errors.New("worker.escalation_poll_interval must be positive")
	}
	if w.NotificationEnabled && w.NotificationPollInterval <= 0 {
		return errors.New("worker.notification_poll_interval must be positive")
	}

	if c.Engine == nil {
		return nil
	}
	return c.Engine.Validate()
}
