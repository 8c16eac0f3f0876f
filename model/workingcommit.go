package model

import (
	"time"

	"github.com/nickyhof/CommitDB/core"
)

// WorkingCommitStatus is the lifecycle state of a WorkingCommit.
type WorkingCommitStatus string

const (
	WCActive     WorkingCommitStatus = "active"
	WCMerging    WorkingCommitStatus = "merging"
	WCCommitting WorkingCommitStatus = "committing"
	WCAbandoned  WorkingCommitStatus = "abandoned"
)

// ResolutionKind discriminates Resolution.
type ResolutionKind string

const (
	TakeLeft  ResolutionKind = "take_left"
	TakeRight ResolutionKind = "take_right"
	TakeBase  ResolutionKind = "take_base"
	Custom    ResolutionKind = "custom"
)

// Resolution is the user's chosen disposition for one MergeConflict.
type Resolution struct {
	Kind       ResolutionKind `json:"kind"`
	CustomData any            `json:"custom_data,omitempty"` // Custom
}

// MergeState tracks an in-progress merge or rebase staged inside a
// WorkingCommit. The merge completes once Resolutions covers every
// index in Conflicts.
type MergeState struct {
	BaseCommit   string             `json:"base_commit"`
	LeftCommit   string             `json:"left_commit"`
	RightCommit  string             `json:"right_commit"`
	Conflicts    []MergeConflict    `json:"conflicts"`
	Resolutions  map[int]Resolution `json:"resolutions"`
	IsRebase     bool               `json:"is_rebase"`
	SourceBranch string             `json:"source_branch,omitempty"`
	TargetBranch string             `json:"target_branch,omitempty"`
}

// Complete reports whether every conflict has a recorded resolution.
func (m *MergeState) Complete() bool {
	for i := range m.Conflicts {
		if _, ok := m.Resolutions[i]; !ok {
			return false
		}
	}
	return true
}

// WorkingCommit is the staging area anchored to a base commit: the only
// place schema/instance edits occur before a new Commit is produced.
type WorkingCommit struct {
	Id             string              `json:"id"`
	DatabaseId     string              `json:"database_id"`
	BranchName     string              `json:"branch_name"`
	BasedOnHash    string              `json:"based_on_hash"`
	Author         *core.Identity      `json:"author,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	SchemaData     Schema              `json:"schema_data"`
	InstancesData  []Instance          `json:"instances_data"`
	Status         WorkingCommitStatus `json:"status"`
	MergeStateData *MergeState         `json:"merge_state,omitempty"`
}

// NewWorkingCommit is the input to Store.CreateWorkingCommit.
type NewWorkingCommit struct {
	BasedOnHash   string
	Author        *core.Identity
	SchemaData    Schema
	InstancesData []Instance
}

// Data projects the working commit's staged state as a CommitData value.
func (wc *WorkingCommit) Data() CommitData {
	return CommitData{Schema: wc.SchemaData, Instances: wc.InstancesData}
}

// SetData stages a new CommitData into the working commit.
func (wc *WorkingCommit) SetData(data CommitData) {
	wc.SchemaData = data.Schema
	wc.InstancesData = data.Instances
}
