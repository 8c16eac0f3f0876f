package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Tag and recover store-wide checkpoints, or rewind a single branch",
}

var tagSnapshotCmd = &cobra.Command{
	Use:   "tag <name>",
	Short: "Record a named checkpoint of the entire store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := openSession()
		if err != nil {
			return err
		}
		st, err := gitStore(session)
		if err != nil {
			return err
		}
		if err := st.TagSnapshot(args[0]); err != nil {
			return err
		}
		fmt.Printf("tagged snapshot %s\n", args[0])
		return nil
	},
}

var recoverSnapshotCmd = &cobra.Command{
	Use:   "recover <name>",
	Short: "Restore the entire store to a checkpoint (destructive)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := openSession()
		if err != nil {
			return err
		}
		st, err := gitStore(session)
		if err != nil {
			return err
		}
		if err := st.RecoverSnapshot(args[0]); err != nil {
			return err
		}
		fmt.Printf("recovered snapshot %s\n", args[0])
		return nil
	},
}

var rewindBranchCmd = &cobra.Command{
	Use:   "rewind <database-id> <branch> <commit-hash>",
	Short: "Point a branch at an existing commit of its database",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := openSession()
		if err != nil {
			return err
		}
		st, err := gitStore(session)
		if err != nil {
			return err
		}
		if err := st.RecoverBranchToCommit(args[0], args[1], args[2]); err != nil {
			return err
		}
		fmt.Printf("branch %s now points at %s\n", args[1], args[2])
		return nil
	},
}

func init() {
	snapshotCmd.AddCommand(tagSnapshotCmd, recoverSnapshotCmd, rewindBranchCmd)
}
