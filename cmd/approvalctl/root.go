package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/garyjia/approval-engine/internal/config"
	"github.com/garyjia/approval-engine/internal/container"
	"github.com/garyjia/approval-engine/pkg/utils"
)

var (
	cfgFile string
	dbPath  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "approvalctl",
	Short: "Operate the approval decision and escalation engine",
	Long: `approvalctl evaluates items against the approval engine, sweeps overdue
escalations, dispatches queued notifications and administers rules,
policies, the approval hierarchy and the engine configuration.

It opens the same database as the server; background workers are not started.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (defaults and environment when empty)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "override database.path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")
}

// openContainer loads config and starts a container with workers disabled.
// The caller must Close it.
func openContainer(ctx context.Context) (*container.Container, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := zap.NewNop()
	if verbose {
		logger, err = utils.NewLogger(utils.LoggerConfig{
			Level:      cfg.Logger.Level,
			OutputPath: "stderr",
			Format:     "console",
			Service:    "approvalctl",
		})
		if err != nil {
			return nil, fmt.Errorf("creating logger: %w", err)
		}
	}

	cc := cfg.ToContainerConfig()
	if dbPath != "" {
		cc.Database.Path = dbPath
	}
	cc.Worker.EscalationEnabled = false
	cc.Worker.NotificationEnabled = false

	c, err := container.NewContainer(cc, logger)
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// decodeFile reads JSON or YAML into v, chosen by extension
func decodeFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, v)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, v)
	default:
		return fmt.Errorf("unsupported file type %q, use .json, .yaml or .yml", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// printJSON writes v to stdout as indented JSON
func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// remarshal copies src into dst through JSON
func remarshal(src, dst interface{}) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
