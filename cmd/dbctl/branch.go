package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nickyhof/CommitDB/branchops"
	"github.com/nickyhof/CommitDB/model"
)

var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "Create, list, and delete branches",
}

var createBranchCmd = &cobra.Command{
	Use:   "create <database-id> <name>",
	Short: "Create a branch, optionally from a parent branch's current tip",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := openSession()
		if err != nil {
			return err
		}
		databaseID, name := args[0], args[1]
		from, _ := cmd.Flags().GetString("from")

		branch := model.Branch{DatabaseId: databaseID, Name: name, Status: model.BranchActive}
		if from != "" {
			parent, err := session.Store().GetBranch(databaseID, from)
			if err != nil {
				return err
			}
			if parent == nil {
				return fmt.Errorf("parent branch not found: %s", from)
			}
			branch.CurrentCommitHash = parent.CurrentCommitHash
			branch.ParentBranchName = &from
		}
		if _, err := session.Store().CreateBranch(branch); err != nil {
			return err
		}
		fmt.Printf("created branch %s in database %s\n", name, databaseID)
		return nil
	},
}

var listBranchesCmd = &cobra.Command{
	Use:   "list <database-id>",
	Short: "List branches in a database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := openSession()
		if err != nil {
			return err
		}
		branches, err := session.Store().ListBranches(args[0])
		if err != nil {
			return err
		}
		for _, b := range branches {
			fmt.Printf("%s\t%s\t%s\n", b.Name, b.Status, b.CurrentCommitHash)
		}
		return nil
	},
}

var deleteBranchCmd = &cobra.Command{
	Use:   "delete <database-id> <name>",
	Short: "Delete a branch (status-based; --force overrides status but not an open working commit)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := openSession()
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")
		if err := branchops.DeleteBranch(session.Store(), args[0], args[1], force); err != nil {
			return err
		}
		fmt.Printf("deleted branch %s\n", args[1])
		return nil
	},
}

func init() {
	createBranchCmd.Flags().String("from", "", "parent branch to inherit the current commit from")
	deleteBranchCmd.Flags().Bool("force", false, "override the active-status guard (never overrides an open working commit)")
	branchCmd.AddCommand(createBranchCmd, listBranchesCmd, deleteBranchCmd)
}
