package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/rules"
)

// ruleFile is the on-disk layout of rule and policy imports
type ruleFile struct {
	Rules    []*entity.ApprovalRule   `json:"rules" yaml:"rules"`
	Policies []*entity.ApprovalPolicy `json:"policies" yaml:"policies"`
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Validate and import approval rules and policies",
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check every rule in --file without touching the database",
	Args:  cobra.NoArgs,
	RunE:  runRulesValidate,
}

var rulesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Validate and upsert the rules and policies in --file",
	Args:  cobra.NoArgs,
	RunE:  runRulesImport,
}

func init() {
	for _, c := range []*cobra.Command{rulesValidateCmd, rulesImportCmd} {
		c.Flags().StringP("file", "f", "", "rules file (.json, .yaml, .yml)")
		_ = c.MarkFlagRequired("file")
		rulesCmd.AddCommand(c)
	}
	rootCmd.AddCommand(rulesCmd)
}

func loadRuleFile(cmd *cobra.Command) (*ruleFile, error) {
	file, _ := cmd.Flags().GetString("file")
	var rf ruleFile
	if err := decodeFile(file, &rf); err != nil {
		return nil, err
	}
	return &rf, nil
}

// validateRuleFile returns every problem found, not just the first
func validateRuleFile(engine *rules.Engine, rf *ruleFile) error {
	var errs []error
	seen := make(map[string]bool, len(rf.Rules))
	for _, r := range rf.Rules {
		if err := engine.ValidateRule(r); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[r.ID] {
			errs = append(errs, fmt.Errorf("rule %s: duplicate id", r.ID))
		}
		seen[r.ID] = true
	}
	for _, p := range rf.Policies {
		switch {
		case p == nil || p.ID == "":
			errs = append(errs, fmt.Errorf("policy id is required"))
		case p.Conditions.MaxRiskLevel != "" && !p.Conditions.MaxRiskLevel.IsValid():
			errs = append(errs, fmt.Errorf("policy %s: unknown max_risk_level %q", p.ID, p.Conditions.MaxRiskLevel))
		}
	}
	return errors.Join(errs...)
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	rf, err := loadRuleFile(cmd)
	if err != nil {
		return err
	}
	engine, err := rules.NewEngine()
	if err != nil {
		return err
	}
	if err := validateRuleFile(engine, rf); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d rule(s) and %d polic(ies) are valid.\n", len(rf.Rules), len(rf.Policies))
	return nil
}

func runRulesImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rf, err := loadRuleFile(cmd)
	if err != nil {
		return err
	}

	c, err := openContainer(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := validateRuleFile(c.Services().Rules, rf); err != nil {
		return err
	}

	repos := c.Repositories()
	err = c.DB().WithTransaction(ctx, func(txCtx context.Context) error {
		for _, r := range rf.Rules {
			if err := repos.Rule.Upsert(txCtx, r); err != nil {
				return fmt.Errorf("rule %s: %w", r.ID, err)
			}
		}
		for _, p := range rf.Policies {
			if err := repos.Policy.Upsert(txCtx, p); err != nil {
				return fmt.Errorf("policy %s: %w", p.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d rule(s) and %d polic(ies).\n", len(rf.Rules), len(rf.Policies))
	return nil
}
