package main

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/nickyhof/CommitDB/branchops"
)

var workingCommitCmd = &cobra.Command{
	Use:   "wc",
	Short: "Manage the working commit (staging area) on a branch",
}

var createWorkingCommitCmd = &cobra.Command{
	Use:   "create <database-id> <branch>",
	Short: "Open a working commit on a branch",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := openSession()
		if err != nil {
			return err
		}
		identity := session.Identity()
		wc, err := branchops.CreateWorkingCommit(session.Store(), args[0], args[1], &identity)
		if err != nil {
			return err
		}
		fmt.Printf("opened working commit %s\n", wc.Id)
		return nil
	},
}

var statusWorkingCommitCmd = &cobra.Command{
	Use:   "status <database-id> <branch>",
	Short: "Show the active working commit on a branch, if any",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := openSession()
		if err != nil {
			return err
		}
		wc, err := session.Store().GetActiveWorkingCommitForBranch(args[0], args[1])
		if err != nil {
			return err
		}
		if wc == nil {
			fmt.Println("(no active working commit)")
			return nil
		}
		out, err := json.MarshalIndent(wc, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var abortWorkingCommitCmd = &cobra.Command{
	Use:   "abort <working-commit-id>",
	Short: "Discard a working commit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := openSession()
		if err != nil {
			return err
		}
		if err := branchops.AbortMerge(session.Store(), args[0]); err != nil {
			return err
		}
		fmt.Printf("aborted working commit %s\n", args[0])
		return nil
	},
}

func init() {
	workingCommitCmd.AddCommand(createWorkingCommitCmd, statusWorkingCommitCmd, abortWorkingCommitCmd)
}
