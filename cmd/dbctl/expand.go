package main

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/nickyhof/CommitDB/expand"
	"github.com/nickyhof/CommitDB/model"
)

var expandCmd = &cobra.Command{
	Use:   "expand <database-id> <branch> <instance-id>",
	Short: "Print the expanded read projection of an instance: evaluated properties and resolved relationships",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := openSession()
		if err != nil {
			return err
		}
		databaseID, branchName, instanceID := args[0], args[1], args[2]

		schema, err := session.Store().GetSchema(databaseID, branchName, false)
		if err != nil {
			return err
		}
		if schema == nil {
			return fmt.Errorf("no schema found for %s/%s", databaseID, branchName)
		}
		instances, err := session.Store().ListInstancesForBranch(databaseID, branchName, nil)
		if err != nil {
			return err
		}
		data := &model.CommitData{Schema: *schema, Instances: instances}
		inst := data.InstanceByID(instanceID)
		if inst == nil {
			return fmt.Errorf("instance not found: %s", instanceID)
		}

		expanded, err := expand.New(data).ExpandInstance(inst)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(expanded, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}
