package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nickyhof/CommitDB/branchops"
	"github.com/nickyhof/CommitDB/model"
	"github.com/nickyhof/CommitDB/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed <seed.yaml>",
	Short: "Load a schema+instance seed file, stage it, and commit it to the database's default branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := openSession()
		if err != nil {
			return err
		}
		f, err := seed.Load(args[0])
		if err != nil {
			return err
		}

		st := session.Store()
		var db *model.Database
		dbs, err := st.ListDatabases()
		if err != nil {
			return err
		}
		for i := range dbs {
			if dbs[i].Name == f.DatabaseName {
				db = &dbs[i]
				break
			}
		}
		if db == nil {
			var desc *string
			if f.DatabaseDescription != "" {
				desc = &f.DatabaseDescription
			}
			created, err := st.CreateDatabase(model.Database{Name: f.DatabaseName, Description: desc, DefaultBranchName: "main"})
			if err != nil {
				return err
			}
			if _, err := st.CreateBranch(model.Branch{DatabaseId: created.Id, Name: created.DefaultBranchName, Status: model.BranchActive}); err != nil {
				return err
			}
			db = &created
		}

		identity := session.Identity()
		wc, err := branchops.CreateWorkingCommit(st, db.Id, db.DefaultBranchName, &identity)
		if err != nil {
			return err
		}
		wc.SchemaData = f.Schema
		wc.InstancesData = f.Instances
		if err := st.UpdateWorkingCommit(wc); err != nil {
			return err
		}

		commit, err := branchops.CommitWorkingCommit(st, db.Id, db.DefaultBranchName, "seed from "+args[0], &identity)
		if err != nil {
			if vf, ok := err.(*branchops.ValidationFailedError); ok {
				printValidationResult(vf.Result)
			}
			return err
		}
		fmt.Printf("seeded database %s (%d classes, %d instances), commit %s\n", db.Name, len(f.Schema.Classes), len(f.Instances), commit.Hash)
		return nil
	},
}
