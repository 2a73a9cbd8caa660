package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// Config store backends
const (
	ConfigBackendSQLite = "sqlite"
	ConfigBackendRedis  = "redis"
)

// EnvPrefix prefixes environment overrides, e.g. APPROVAL_SERVER_PORT
const EnvPrefix = "APPROVAL"

// Config holds all application configuration
type Config struct {
	Server             ServerConfig      `mapstructure:"server"`
	Database           DatabaseConfig    `mapstructure:"database"`
	Logger             LoggerConfig      `mapstructure:"logger"`
	Engine             EngineConfig      `mapstructure:"engine"`
	ConfigStore        ConfigStoreConfig `mapstructure:"config_store"`
	EscalationWorker   WorkerConfig      `mapstructure:"escalation_worker"`
	NotificationWorker WorkerConfig      `mapstructure:"notification_worker"`
	Lark               LarkConfig        `mapstructure:"lark"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// EngineConfig seeds the engine configuration used until one is saved in the config store
type EngineConfig struct {
	RiskThresholds        entity.RiskThresholds        `mapstructure:"risk_thresholds"`
	FindingSeverityLimits entity.FindingSeverityLimits `mapstructure:"finding_severity_limits"`
	FinancialThresholds   entity.FinancialThresholds   `mapstructure:"financial_thresholds"`
	TimeConstraints       entity.TimeConstraints       `mapstructure:"time_constraints"`
	DefaultPolicies       entity.DefaultPolicies       `mapstructure:"default_policies"`
	// DepartmentRisk keys are lower-cased by viper
	DepartmentRisk map[string]float64 `mapstructure:"department_risk"`
}

// ConfigStoreConfig selects where the engine configuration snapshot is persisted
type ConfigStoreConfig struct {
	Backend string      `mapstructure:"backend"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// WorkerConfig holds polling worker configuration
type WorkerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
}

// LarkConfig holds Lark API configuration. Messaging is disabled when AppID is empty.
type LarkConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	BaseURL   string `mapstructure:"base_url"`
}

// Load loads configuration from an optional YAML file, a .env file and environment variables.
// An empty configPath uses defaults and the environment only.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/approval.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Engine defaults mirror the built-in configuration
	d := entity.DefaultEngineConfig()
	v.SetDefault("engine.risk_thresholds.auto_approve", d.RiskThresholds.AutoApprove)
	v.SetDefault("engine.risk_thresholds.require_review", d.RiskThresholds.RequireReview)
	v.SetDefault("engine.risk_thresholds.escalate_immediately", d.RiskThresholds.EscalateImmediately)
	v.SetDefault("engine.finding_severity_limits.low", d.FindingSeverityLimits.Low)
	v.SetDefault("engine.finding_severity_limits.medium", d.FindingSeverityLimits.Medium)
	v.SetDefault("engine.finding_severity_limits.high", d.FindingSeverityLimits.High)
	v.SetDefault("engine.finding_severity_limits.critical", d.FindingSeverityLimits.Critical)
	v.SetDefault("engine.financial_thresholds.auto_approve_limit", d.FinancialThresholds.AutoApproveLimit)
	v.SetDefault("engine.financial_thresholds.manual_review_required", d.FinancialThresholds.ManualReviewRequired)
	v.SetDefault("engine.financial_thresholds.executive_approval_required", d.FinancialThresholds.ExecutiveApprovalRequired)
	v.SetDefault("engine.time_constraints.urgent_approval_time_limit", d.TimeConstraints.UrgentApprovalTimeLimit)
	v.SetDefault("engine.time_constraints.standard_processing_time", d.TimeConstraints.StandardProcessingTime)
	v.SetDefault("engine.time_constraints.escalation_time_limit", d.TimeConstraints.EscalationTimeLimit)
	v.SetDefault("engine.default_policies.enable_auto_approval", d.DefaultPolicies.EnableAutoApproval)
	v.SetDefault("engine.default_policies.enable_escalation", d.DefaultPolicies.EnableEscalation)
	v.SetDefault("engine.default_policies.strict_compliance_mode", d.DefaultPolicies.StrictComplianceMode)
	v.SetDefault("engine.default_policies.audit_trail_required", d.DefaultPolicies.AuditTrailRequired)

	// Config store defaults
	v.SetDefault("config_store.backend", ConfigBackendSQLite)
	v.SetDefault("config_store.redis.addr", "localhost:6379")
	v.SetDefault("config_store.redis.db", 0)
	v.SetDefault("config_store.redis.key_prefix", "approval:")

	// Worker defaults
	v.SetDefault("escalation_worker.enabled", true)
	v.SetDefault("escalation_worker.poll_interval", time.Minute)
	v.SetDefault("escalation_worker.batch_size", 50)
	v.SetDefault("notification_worker.enabled", true)
	v.SetDefault("notification_worker.poll_interval", 10*time.Second)
	v.SetDefault("notification_worker.batch_size", 100)

	// Lark defaults
	v.SetDefault("lark.app_id", "")
	v.SetDefault("lark.app_secret", "")
	v.SetDefault("lark.base_url", "")
}

// bindEnvVars binds the well-known environment variables that do not follow EnvPrefix
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("config_store.redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("config_store.redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("database.path", "DATABASE_PATH")
}

// EngineDefaults overlays the engine section onto the built-in configuration
func (c *Config) EngineDefaults() *entity.EngineConfig {
	out := entity.DefaultEngineConfig()
	out.RiskThresholds = c.Engine.RiskThresholds
	out.FindingSeverityLimits = c.Engine.FindingSeverityLimits
	out.FinancialThresholds = c.Engine.FinancialThresholds
	out.TimeConstraints = c.Engine.TimeConstraints
	out.DefaultPolicies = c.Engine.DefaultPolicies
	for dept, risk := range c.Engine.DepartmentRisk {
		out.DepartmentRisk[dept] = risk
	}
	return out
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.ConfigStore.Backend {
	case ConfigBackendSQLite:
	case ConfigBackendRedis:
		if c.ConfigStore.Redis.Addr == "" {
			return fmt.Errorf("config_store.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("config_store.backend must be %q or %q, got %q",
			ConfigBackendSQLite, ConfigBackendRedis, c.ConfigStore.Backend)
	}

	for name, w := range map[string]WorkerConfig{
		"escalation_worker":   c.EscalationWorker,
		"notification_worker": c.NotificationWorker,
	} {
		if !w.Enabled {
			continue
		}
		if w.PollInterval <= 0 {
			return fmt.Errorf("%s.poll_interval must be positive", name)
		}
		if w.BatchSize <= 0 {
			return fmt.Errorf("%s.batch_size must be positive", name)
		}
	}

	if (c.Lark.AppID == "") != (c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret must be set together")
	}

	if err := c.EngineDefaults().Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	return nil
}
