package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nickyhof/CommitDB/branchops"
)

var rebaseCmd = &cobra.Command{
	Use:   "rebase <database-id> <feature-branch> <target-branch>",
	Short: "Rebase a feature branch onto a target branch's current tip",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := openSession()
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")
		identity := session.Identity()
		result, err := branchops.Rebase(session.Store(), args[0], args[1], args[2], &identity, force)
		if err != nil {
			return err
		}
		if !result.Success {
			fmt.Printf("%s\n", result.Message)
			for i, c := range result.Conflicts {
				fmt.Printf("  [%d] %s %s %s\n", i, c.ConflictType, c.ResourceType, c.ResourceId)
			}
			return fmt.Errorf("rebase did not complete")
		}
		fmt.Println(result.Message)
		return nil
	},
}

func init() {
	rebaseCmd.Flags().Bool("force", false, "apply the rebasing branch's side on every conflict instead of failing")
}
