package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Manage the notification outbox",
}

var notificationsDispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Deliver queued notifications now",
	Args:  cobra.NoArgs,
	RunE:  runNotificationsDispatch,
}

func init() {
	notificationsDispatchCmd.Flags().Int("limit", 100, "maximum notifications to deliver")
	notificationsCmd.AddCommand(notificationsDispatchCmd)
	rootCmd.AddCommand(notificationsCmd)
}

func runNotificationsDispatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}

	c, err := openContainer(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	n, err := c.Services().Notification.DispatchPending(ctx, limit)
	if err != nil {
		return fmt.Errorf("dispatch failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Processed %d notification(s).\n", n)
	return nil
}
