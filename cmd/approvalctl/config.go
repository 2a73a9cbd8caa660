package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or replace the engine configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active engine configuration as JSON",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Validate and store a complete engine configuration",
	Long: `Reads a complete engine configuration from --file (JSON or YAML using the
JSON field names) and stores it. Running servers pick it up on restart.`,
	Args: cobra.NoArgs,
	RunE: runConfigSet,
}

func init() {
	configSetCmd.Flags().StringP("file", "f", "", "configuration file (.json, .yaml, .yml)")
	_ = configSetCmd.MarkFlagRequired("file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	c, err := openContainer(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	return printJSON(cmd, c.Services().Config.Current())
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	file, _ := cmd.Flags().GetString("file")

	c, err := openContainer(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	// unspecified sections keep their current values
	cfg := c.Services().Config.Current().Clone()
	if err := decodeConfigFile(file, cfg); err != nil {
		return err
	}
	if err := c.Services().Config.Update(ctx, cfg); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Engine configuration stored.")
	return nil
}

// decodeConfigFile decodes via JSON so YAML files use the same camelCase keys as the API
func decodeConfigFile(path string, cfg *entity.EngineConfig) error {
	var raw map[string]interface{}
	if err := decodeFile(path, &raw); err != nil {
		return err
	}
	return remarshal(raw, cfg)
}
