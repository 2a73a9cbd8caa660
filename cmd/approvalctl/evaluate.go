package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate an approval item",
	Long: `Evaluates the item in --file (JSON or YAML) and records the decision.
With --dry-run the decision is computed without recording, escalating or notifying.`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringP("file", "f", "", "item file (.json, .yaml, .yml)")
	evaluateCmd.Flags().Bool("dry-run", false, "preview the decision without recording it")
	evaluateCmd.Flags().Bool("json", false, "print the full decision as JSON")
	_ = evaluateCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	file, _ := cmd.Flags().GetString("file")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	var item entity.ApprovalItem
	if err := decodeFile(file, &item); err != nil {
		return err
	}

	c, err := openContainer(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	engine := c.Services().Engine
	var decision *entity.ApprovalDecision
	if dryRun {
		decision, err = engine.PreviewDecision(ctx, &item)
	} else {
		decision, err = engine.EvaluateForApproval(ctx, &item)
	}
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, decision)
	}
	printDecision(cmd, decision, dryRun)
	return nil
}

func printDecision(cmd *cobra.Command, d *entity.ApprovalDecision, dryRun bool) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Decision:   %s (confidence %d%%)\n", d.Decision, d.Confidence)
	if d.RiskAssessment != nil {
		fmt.Fprintf(out, "Risk:       %s (score %d)\n", d.RiskAssessment.Level, d.RiskAssessment.Score)
	}
	if len(d.AppliedRules) > 0 {
		fmt.Fprintf(out, "Rules:      %s\n", strings.Join(d.AppliedRules, ", "))
	}
	for _, v := range d.PolicyViolations {
		fmt.Fprintf(out, "Violation:  [%s] %s\n", v.Severity, v.Description)
	}
	if d.Fallback {
		fmt.Fprintln(out, "Fallback:   evaluation failed, manual review required")
	}
	fmt.Fprintf(out, "Reasoning:  %s\n", d.Reasoning)

	switch {
	case dryRun:
		fmt.Fprintln(out, "Dry run, nothing recorded.")
	case d.RecordID > 0:
		fmt.Fprintf(out, "Record:     %d\n", d.RecordID)
	}
	if d.Escalation != nil {
		fmt.Fprintf(out, "Escalated:  %s, deadline %s, approvers %s\n",
			d.Escalation.Level,
			d.Escalation.Deadline.Format("2006-01-02 15:04 MST"),
			strings.Join(d.Escalation.AssignedApprovers, ", "))
	}
}
