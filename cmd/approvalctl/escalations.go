package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/infrastructure/worker"
)

var escalationsCmd = &cobra.Command{
	Use:   "escalations",
	Short: "Inspect and advance escalation chains",
}

var escalationsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Process every pending escalation whose deadline has passed",
	Args:  cobra.NoArgs,
	RunE:  runEscalationsSweep,
}

var escalationsListCmd = &cobra.Command{
	Use:   "list [record-id]",
	Short: "Show the escalation chain of a record",
	Args:  cobra.ExactArgs(1),
	RunE:  runEscalationsList,
}

func init() {
	escalationsSweepCmd.Flags().Int("batch", 50, "paths processed per batch")
	escalationsCmd.AddCommand(escalationsSweepCmd)
	escalationsCmd.AddCommand(escalationsListCmd)
	rootCmd.AddCommand(escalationsCmd)
}

func runEscalationsSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	batch, _ := cmd.Flags().GetInt("batch")
	if batch <= 0 {
		return fmt.Errorf("--batch must be positive")
	}

	c, err := openContainer(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	sweeper := worker.NewEscalationTimeoutWorker(c.Services().Escalation, time.Minute, batch, c.Logger())

	total := 0
	for {
		n, err := sweeper.RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("sweep failed after %d paths: %w", total, err)
		}
		total += n
		if n < batch {
			break
		}
	}

	c.Logger().Info("Escalation sweep finished", zap.Int("processed", total))
	fmt.Fprintf(cmd.OutOrStdout(), "Processed %d overdue escalation(s).\n", total)
	return nil
}

func runEscalationsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	recordID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid record id %q", args[0])
	}

	c, err := openContainer(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	chain, err := c.Services().Escalation.GetEscalationChain(ctx, recordID)
	if err != nil {
		return err
	}
	if len(chain) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Record %d has no escalations.\n", recordID)
		return nil
	}
	return printJSON(cmd, chain)
}
