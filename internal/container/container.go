package container

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/application/service"
	"github.com/garyjia/approval-engine/internal/domain/rules"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/approval-engine/internal/infrastructure/worker"
	"github.com/garyjia/approval-engine/pkg/database"
)

type phase int

const (
	phaseCreated phase = iota
	phaseRunning
	phaseClosed
)

// closer releases one started component
type closer struct {
	name string
	fn   func() error
}

// Container owns every long-lived component of the engine process.
// Start brings them up in dependency order; Close tears them down in reverse.
type Container struct {
	cfg    *Config
	logger *zap.Logger

	conn      *database.DB
	tx        *sqlite.DB
	repos     *RepositoryBundle
	store     *ConfigStoreBundle
	messenger port.MessageSender
	services  *ServiceBundle
	workers   *worker.Manager

	mu      sync.RWMutex
	phase   phase
	closers []closer
}

// RepositoryBundle exposes the persistence ports
type RepositoryBundle struct {
	Record       port.ApprovalRecordRepository
	Audit        port.AuditTrailRepository
	Escalation   port.EscalationPathRepository
	Policy       port.PolicyRepository
	Rule         port.RuleRepository
	Hierarchy    port.HierarchyRepository
	Delegation   port.DelegationRepository
	User         port.UserRepository
	Notification port.NotificationRepository
	Config       port.ConfigStore
}

// ServiceBundle exposes the application services
type ServiceBundle struct {
	Config       service.ConfigService
	Engine       service.ApprovalEngine
	Escalation   service.EscalationManager
	Notification service.NotificationService
	Rules        *rules.Engine
}

// HealthStatus is the aggregated probe result; Overall is false if any component is unhealthy
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer validates cfg; nothing is opened until Start
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("container: config is required")
	case logger == nil:
		return nil, errors.New("container: logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Container{cfg: cfg, logger: logger}, nil
}

// Start runs each stage in order and releases what was opened if one fails.
// Workers keep running until Close, independent of ctx.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.phase {
	case phaseRunning:
		return errors.New("container already started")
	case phaseClosed:
		return errors.New("container has been closed")
	}

	stages := []struct {
		name string
		run  func(context.Context) error
	}{
		{"database", c.openDatabase},
		{"config store", c.openConfigStore},
		{"messenger", c.openMessenger},
		{"services", c.buildServices},
		{"workers", c.startWorkers},
	}
	for _, st := range stages {
		if err := st.run(ctx); err != nil {
			if relErr := c.release(); relErr != nil {
				c.logger.Warn("Partial startup not fully released", zap.Error(relErr))
			}
			return fmt.Errorf("start %s: %w", st.name, err)
		}
		c.logger.Info("Component ready", zap.String("component", st.name))
	}

	c.phase = phaseRunning
	c.logger.Info("Container started", zap.Int("workers", c.workers.Count()))
	return nil
}

// Close may be called once
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == phaseClosed {
		return errors.New("container already closed")
	}
	c.phase = phaseClosed

	if err := c.release(); err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}
	c.logger.Info("Container closed")
	return nil
}

func (c *Container) onClose(name string, fn func() error) {
	c.closers = append(c.closers, closer{name: name, fn: fn})
}

// release runs closers last-in first-out and drops every component reference
func (c *Container) release() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		cl := c.closers[i]
		if err := cl.fn(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", cl.name, err))
			continue
		}
		c.logger.Info("Component released", zap.String("component", cl.name))
	}
	c.closers = nil
	c.conn, c.tx, c.repos, c.store = nil, nil, nil, nil
	c.messenger, c.services, c.workers = nil, nil, nil
	return errors.Join(errs...)
}

func (c *Container) openDatabase(ctx context.Context) error {
	bundle, err := ProvideDatabase(ctx, &c.cfg.Database, c.logger)
	if err != nil {
		return err
	}
	c.conn, c.tx = bundle.DB, bundle.TransactionMgr
	c.onClose("database", c.conn.Close)

	c.repos, err = ProvideRepositories(c.conn, c.logger)
	return err
}

func (c *Container) openConfigStore(ctx context.Context) error {
	store, err := ProvideConfigStore(ctx, &c.cfg.ConfigStore, c.repos, c.logger)
	if err != nil {
		return err
	}
	c.store = store
	if store.Close != nil {
		c.onClose("config store", store.Close)
	}
	return nil
}

func (c *Container) openMessenger(context.Context) error {
	c.messenger = ProvideMessageSender(&c.cfg.Lark, c.logger)
	return nil
}

func (c *Container) buildServices(ctx context.Context) error {
	services, err := ProvideServices(ctx, &ServiceDeps{
		Repos:       c.repos,
		TxManager:   c.tx,
		ConfigStore: c.store.Store,
		Messenger:   c.messenger,
		Defaults:    c.cfg,
		Logger:      c.logger,
	})
	c.services = services
	return err
}

func (c *Container) startWorkers(context.Context) error {
	workers, err := ProvideWorkers(&WorkerDeps{
		Services:  c.services,
		WorkerCfg: &c.cfg.Worker,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	if err := workers.StartAll(runCtx); err != nil {
		cancel()
		return err
	}
	c.workers = workers
	c.onClose("workers", func() error {
		cancel()
		workers.StopAll()
		return nil
	})
	return nil
}

// Ready reports whether Start completed and Close has not been called
func (c *Container) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase == phaseRunning
}

// Health probes the database and reports the wiring state of the rest
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{Overall: true, Components: make(map[string]ComponentHealth, 4)}
	report := func(name string, ok bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: ok, Message: msg}
		status.Overall = status.Overall && ok
	}
	const missing = "not initialized"

	switch {
	case c.conn == nil:
		report("database", false, missing)
	default:
		if err := c.conn.PingContext(ctx); err != nil {
			report("database", false, "ping failed: "+err.Error())
		} else {
			report("database", true, "")
		}
	}

	if c.workers == nil {
		report("workers", false, missing)
	} else {
		report("workers", c.phase == phaseRunning, fmt.Sprintf("worker count: %d", c.workers.Count()))
	}

	if c.services == nil {
		report("services", false, missing)
	} else {
		report("services", true, "")
	}

	// chat delivery is optional, so a missing messenger never fails the probe
	if c.messenger == nil {
		report("lark", true, "disabled")
	} else {
		report("lark", true, "")
	}
	return status
}

// DB returns the transaction manager shared by the services
func (c *Container) DB() port.TransactionManager { return c.tx }

func (c *Container) Repositories() *RepositoryBundle { return c.repos }

func (c *Container) Services() *ServiceBundle { return c.services }

func (c *Container) Workers() *worker.Manager { return c.workers }

func (c *Container) Logger() *zap.Logger { return c.logger }

// ServiceLogger adapts the root logger for the service and HTTP layers
func (c *Container) ServiceLogger() service.Logger { return NewServiceLogger(c.logger) }

func (c *Container) Config() *Config { return c.cfg }
