package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nickyhof/CommitDB/model"
)

var databaseCmd = &cobra.Command{
	Use:   "database",
	Short: "Create and list databases",
}

var createDatabaseCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a database and its default branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := openSession()
		if err != nil {
			return err
		}
		description, _ := cmd.Flags().GetString("description")
		var desc *string
		if description != "" {
			desc = &description
		}
		db, err := session.Store().CreateDatabase(model.Database{
			Name:              args[0],
			Description:       desc,
			DefaultBranchName: "main",
		})
		if err != nil {
			return err
		}
		if _, err := session.Store().CreateBranch(model.Branch{
			DatabaseId: db.Id,
			Name:       db.DefaultBranchName,
			Status:     model.BranchActive,
		}); err != nil {
			return err
		}
		fmt.Printf("created database %s (id %s), branch %s\n", db.Name, db.Id, db.DefaultBranchName)
		return nil
	},
}

var listDatabasesCmd = &cobra.Command{
	Use:   "list",
	Short: "List databases",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := openSession()
		if err != nil {
			return err
		}
		dbs, err := session.Store().ListDatabases()
		if err != nil {
			return err
		}
		for _, db := range dbs {
			fmt.Printf("%s\t%s\tdefault=%s\n", db.Id, db.Name, db.DefaultBranchName)
		}
		return nil
	},
}

func init() {
	createDatabaseCmd.Flags().String("description", "", "database description")
	databaseCmd.AddCommand(createDatabaseCmd, listDatabasesCmd)
}
