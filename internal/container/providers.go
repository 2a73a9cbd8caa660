package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/application/service"
	"github.com/garyjia/approval-engine/internal/domain/rules"
	infraLark "github.com/garyjia/approval-engine/internal/infrastructure/external/lark"
	"github.com/garyjia/approval-engine/internal/infrastructure/kvstore"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/repository"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/approval-engine/internal/infrastructure/worker"
	"github.com/garyjia/approval-engine/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// ConfigStoreBundle holds the engine configuration store.
// Close releases the backend connection and is nil for the sqlite backend.
type ConfigStoreBundle struct {
	Store port.ConfigStore
	Close func() error
}

// ProvideDatabase opens the database and applies the embedded migrations.
// Returns DatabaseBundle containing the connection and TransactionManager.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
// Returns RepositoryBundle containing all repository implementations.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	sqlDB := db.DB
	return &RepositoryBundle{
		Record:       repository.NewApprovalRecordRepository(sqlDB, logger),
		Audit:        repository.NewAuditTrailRepository(sqlDB, logger),
		Escalation:   repository.NewEscalationPathRepository(sqlDB, logger),
		Policy:       repository.NewPolicyRepository(sqlDB, logger),
		Rule:         repository.NewRuleRepository(sqlDB, logger),
		Hierarchy:    repository.NewHierarchyRepository(sqlDB, logger),
		Delegation:   repository.NewDelegationRepository(sqlDB, logger),
		User:         repository.NewUserRepository(sqlDB, logger),
		Notification: repository.NewNotificationRepository(sqlDB, logger),
		Config:       repository.NewConfigRepository(sqlDB, logger),
	}, nil
}

// ProvideConfigStore selects the engine configuration store.
// The redis backend is pinged so a bad address fails at startup.
func ProvideConfigStore(ctx context.Context, cfg *ConfigStoreConfig, repos *RepositoryBundle, logger *zap.Logger) (*ConfigStoreBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config store config is required")
	}

	switch cfg.Backend {
	case "", ConfigStoreSQLite:
		if repos == nil {
			return nil, fmt.Errorf("repositories are required")
		}
		return &ConfigStoreBundle{Store: repos.Config}, nil
	case ConfigStoreRedis:
		store := kvstore.NewRedisConfigStore(kvstore.RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		}, logger)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.Info("Using redis config store", zap.String("addr", cfg.RedisAddr))
		return &ConfigStoreBundle{Store: store, Close: store.Close}, nil
	default:
		return nil, fmt.Errorf("unknown config store backend %q", cfg.Backend)
	}
}

// ProvideMessageSender creates the Lark messenger.
// Returns nil when Lark is not configured; notifications are then delivered in-app only.
func ProvideMessageSender(cfg *LarkConfig, logger *zap.Logger) port.MessageSender {
	larkCfg := infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
	}
	if !larkCfg.Enabled() {
		logger.Info("Lark is not configured, chat delivery disabled")
		return nil
	}
	return infraLark.NewMessenger(infraLark.NewClient(larkCfg, logger), logger)
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos       *RepositoryBundle
	TxManager   port.TransactionManager
	ConfigStore port.ConfigStore
	Messenger   port.MessageSender
	Defaults    *Config
	Logger      *zap.Logger
}

// ProvideServices creates all application services and loads the stored engine configuration.
// Returns ServiceBundle containing all service implementations.
func ProvideServices(ctx context.Context, deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.ConfigStore == nil {
		return nil, fmt.Errorf("config store is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := NewServiceLogger(deps.Logger)
	repos := deps.Repos

	defaults := DefaultConfig().Engine
	if deps.Defaults != nil && deps.Defaults.Engine != nil {
		defaults = deps.Defaults.Engine
	}

	configs := service.NewConfigService(deps.ConfigStore, defaults, serviceLogger)
	if _, err := configs.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load engine configuration: %w", err)
	}

	ruleEngine, err := rules.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to create rule engine: %w", err)
	}

	notifications := service.NewNotificationService(
		repos.Notification,
		repos.User,
		deps.Messenger,
		serviceLogger,
	)

	escalations := service.NewEscalationManager(
		repos.Record,
		repos.Escalation,
		repos.Audit,
		repos.Hierarchy,
		repos.Delegation,
		repos.User,
		deps.TxManager,
		configs,
		notifications,
		serviceLogger,
	)

	engine := service.NewApprovalEngine(
		ruleEngine,
		repos.Record,
		repos.Audit,
		repos.Policy,
		repos.Rule,
		deps.TxManager,
		configs,
		escalations,
		notifications,
		serviceLogger,
	)

	return &ServiceBundle{
		Config:       configs,
		Engine:       engine,
		Escalation:   escalations,
		Notification: notifications,
		Rules:        ruleEngine,
	}, nil
}

// WorkerDeps holds dependencies required for creating workers.
type WorkerDeps struct {
	Services  *ServiceBundle
	WorkerCfg *WorkerConfig
	Logger    *zap.Logger
}

// ProvideWorkers creates and registers all enabled background workers.
// Returns *worker.Manager with workers registered but not started.
func ProvideWorkers(deps *WorkerDeps) (*worker.Manager, error) {
	if deps == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}
	if deps.Services == nil {
		return nil, fmt.Errorf("services are required")
	}
	if deps.WorkerCfg == nil {
		return nil, fmt.Errorf("worker config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewManager(deps.Logger)
	cfg := deps.WorkerCfg

	if cfg.EscalationEnabled {
		manager.Register(worker.NewEscalationTimeoutWorker(
			deps.Services.Escalation,
			cfg.EscalationPollInterval,
			cfg.EscalationBatchSize,
			deps.Logger,
		))
	}

	if cfg.NotificationEnabled {
		manager.Register(worker.NewNotificationDispatchWorker(
			deps.Services.Notification,
			cfg.NotificationPollInterval,
			cfg.NotificationBatchSize,
			deps.Logger,
		))
	}

	return manager, nil
}
