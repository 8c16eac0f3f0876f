package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nickyhof/CommitDB/branchops"
	"github.com/nickyhof/CommitDB/model"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <database-id> <source-branch> <target-branch>",
	Short: "Three-way merge source into target",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := openSession()
		if err != nil {
			return err
		}
		identity := session.Identity()
		wc, conflicts, err := branchops.StartMerge(session.Store(), args[0], args[1], args[2], &identity)
		if err != nil {
			return err
		}
		if len(conflicts) == 0 {
			fmt.Printf("merge clean, working commit %s ready to commit\n", wc.Id)
			return nil
		}
		fmt.Printf("%d conflict(s) on working commit %s\n", len(conflicts), wc.Id)
		for i, c := range conflicts {
			fmt.Printf("  [%d] %s %s %s: left=%v right=%v\n", i, c.ConflictType, c.ResourceType, c.ResourceId, c.LeftValue, c.RightValue)
		}
		return nil
	},
}

var resolveMergeCmd = &cobra.Command{
	Use:   "resolve <working-commit-id> <conflict-index> <take_left|take_right|take_base>",
	Short: "Record a resolution for one merge conflict",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := openSession()
		if err != nil {
			return err
		}
		idx, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid conflict index: %w", err)
		}
		kind := model.ResolutionKind(args[2])
		switch kind {
		case model.TakeLeft, model.TakeRight, model.TakeBase:
		default:
			return fmt.Errorf("unknown resolution kind: %s (use take_left, take_right, or take_base)", args[2])
		}
		wc, err := branchops.ResolveConflicts(session.Store(), args[0], map[int]model.Resolution{idx: {Kind: kind}})
		if err != nil {
			if pr, ok := err.(*branchops.PartiallyResolvedError); ok {
				fmt.Printf("%d/%d conflicts resolved\n", pr.Resolved, pr.Total)
				return nil
			}
			return err
		}
		fmt.Printf("merge resolved, working commit %s is active\n", wc.Id)
		return nil
	},
}

func init() {
	mergeCmd.AddCommand(resolveMergeCmd)
}
