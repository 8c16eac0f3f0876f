package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nickyhof/CommitDB/branchops"
	"github.com/nickyhof/CommitDB/model"
)

var commitCmd = &cobra.Command{
	Use:   "commit <database-id> <branch> <message...>",
	Short: "Validate and commit the active working commit, advancing the branch tip",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := openSession()
		if err != nil {
			return err
		}
		message := strings.Join(args[2:], " ")
		identity := session.Identity()
		commit, err := branchops.CommitWorkingCommit(session.Store(), args[0], args[1], message, &identity)
		if err != nil {
			if vf, ok := err.(*branchops.ValidationFailedError); ok {
				printValidationResult(vf.Result)
				return fmt.Errorf("commit blocked by validation errors")
			}
			return err
		}
		fmt.Printf("committed %s\n", commit.Hash)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <database-id> <branch>",
	Short: "Validate the active working commit on a branch",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := openSession()
		if err != nil {
			return err
		}
		result, err := branchops.ValidateWorkingCommit(session.Store(), args[0], args[1])
		if err != nil {
			return err
		}
		printValidationResult(result)
		if !result.Valid {
			return fmt.Errorf("validation failed with %d error(s)", len(result.Errors))
		}
		return nil
	},
}

func printValidationResult(result model.ValidationResult) {
	if result.Valid {
		fmt.Printf("valid (%d instances checked)\n", result.InstanceCount)
		return
	}
	fmt.Printf("%d error(s)\n", len(result.Errors))
	for _, e := range result.Errors {
		fmt.Printf("  [%s] %s: %s\n", e.ErrorType, e.InstanceId, e.Message)
	}
	for _, w := range result.Warnings {
		fmt.Printf("  warning [%s] %s: %s\n", w.WarningType, w.InstanceId, w.Message)
	}
}
