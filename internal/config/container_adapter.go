package config

import (
	"github.com/garyjia/approval-engine/internal/container"
)

// ToContainerConfig flattens the file layout into the container's wiring config.
// Database, Lark and Server share field sets with their container counterparts.
func (c *Config) ToContainerConfig() *container.Config {
	redis := c.ConfigStore.Redis
	esc, notify := c.EscalationWorker, c.NotificationWorker

	return &container.Config{
		Database: container.DatabaseConfig(c.Database),
		Lark:     container.LarkConfig(c.Lark),
		Server:   container.ServerConfig(c.Server),
		ConfigStore: container.ConfigStoreConfig{
			Backend:        c.ConfigStore.Backend,
			RedisAddr:      redis.Addr,
			RedisPassword:  redis.Password,
			RedisDB:        redis.DB,
			RedisKeyPrefix: redis.KeyPrefix,
		},
		Worker: container.WorkerConfig{
			EscalationEnabled:        esc.Enabled,
			EscalationPollInterval:   esc.PollInterval,
			EscalationBatchSize:      esc.BatchSize,
			NotificationEnabled:      notify.Enabled,
			NotificationPollInterval: notify.PollInterval,
			NotificationBatchSize:    notify.BatchSize,
		},
		Engine: c.EngineDefaults(),
	}
}
