package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// orgFile is the on-disk layout of an organization import
type orgFile struct {
	Users       []*entity.User               `json:"users" yaml:"users"`
	Hierarchy   []*entity.ApprovalHierarchy  `json:"hierarchy" yaml:"hierarchy"`
	Delegations []*entity.ApprovalDelegation `json:"delegations" yaml:"delegations"`
}

var orgCmd = &cobra.Command{
	Use:   "org",
	Short: "Manage approvers, the approval hierarchy and delegations",
}

var orgImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import users, hierarchy entries and delegations from --file",
	Long: `Users are upserted by id. Hierarchy entries and delegations are appended,
so import each file once.`,
	Args: cobra.NoArgs,
	RunE: runOrgImport,
}

func init() {
	orgImportCmd.Flags().StringP("file", "f", "", "organization file (.json, .yaml, .yml)")
	_ = orgImportCmd.MarkFlagRequired("file")
	orgCmd.AddCommand(orgImportCmd)
	rootCmd.AddCommand(orgCmd)
}

func validateOrgFile(of *orgFile) error {
	for _, u := range of.Users {
		if u.ID == "" {
			return fmt.Errorf("user id is required")
		}
	}
	for _, h := range of.Hierarchy {
		if h.Department == "" || h.ApproverUserID == "" {
			return fmt.Errorf("hierarchy entries need department and approver_user_id")
		}
		if !h.Level.IsValid() {
			return fmt.Errorf("hierarchy entry for %s: unknown level %q", h.Department, h.Level)
		}
	}
	for _, d := range of.Delegations {
		if d.DelegatorID == "" || d.DelegateID == "" {
			return fmt.Errorf("delegations need delegator_id and delegate_id")
		}
		if d.EndDate != nil && d.EndDate.Before(d.StartDate) {
			return fmt.Errorf("delegation %s -> %s ends before it starts", d.DelegatorID, d.DelegateID)
		}
	}
	return nil
}

func runOrgImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	file, _ := cmd.Flags().GetString("file")

	var of orgFile
	if err := decodeFile(file, &of); err != nil {
		return err
	}
	if err := validateOrgFile(&of); err != nil {
		return err
	}

	c, err := openContainer(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	repos := c.Repositories()
	err = c.DB().WithTransaction(ctx, func(txCtx context.Context) error {
		for _, u := range of.Users {
			if err := repos.User.Upsert(txCtx, u); err != nil {
				return fmt.Errorf("user %s: %w", u.ID, err)
			}
		}
		for _, h := range of.Hierarchy {
			if err := repos.Hierarchy.Create(txCtx, h); err != nil {
				return fmt.Errorf("hierarchy %s/%s: %w", h.Department, h.Level, err)
			}
		}
		for _, d := range of.Delegations {
			if err := repos.Delegation.Create(txCtx, d); err != nil {
				return fmt.Errorf("delegation %s -> %s: %w", d.DelegatorID, d.DelegateID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d user(s), %d hierarchy entr(ies), %d delegation(s).\n",
		len(of.Users), len(of.Hierarchy), len(of.Delegations))
	return nil
}
