package model

import (
	"time"

	"github.com/nickyhof/CommitDB/core"
)

// Database owns a set of branches. Deleting it (DeleteDatabase on the
// store) removes it together with its branches, commits and working
// commits; no check is made that it owns none of them.
type Database struct {
	Id                string    `json:"id"`
	Name              string    `json:"name"`
	Description       *string   `json:"description,omitempty"`
	DefaultBranchName string    `json:"default_branch_name"`
	CreatedAt         time.Time `json:"created_at"`
}

// BranchStatus is the lifecycle state of a Branch. Transitions are
// monotonic: Active -> Merged or Active -> Archived, never back.
type BranchStatus string

const (
	BranchActive   BranchStatus = "active"
	BranchMerged   BranchStatus = "merged"
	BranchArchived BranchStatus = "archived"
)

// Branch is a named mutable pointer to a commit within a database.
type Branch struct {
	DatabaseId        string         `json:"database_id"`
	Name              string         `json:"name"`
	Description       *string        `json:"description,omitempty"`
	ParentBranchName  *string        `json:"parent_branch_name,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	CurrentCommitHash string         `json:"current_commit_hash"`
	CommitMessage     *string        `json:"commit_message,omitempty"`
	Author            *core.Identity `json:"author,omitempty"`
	Status            BranchStatus   `json:"status"`
}

// CanBeMerged reports whether the branch is eligible as a merge source or
// target (only active branches can be).
func (b *Branch) CanBeMerged() bool { return b.Status == BranchActive }

// CanBeDeleted reports whether the branch may be deleted without force.
func (b *Branch) CanBeDeleted() bool { return b.Status != BranchActive }

// MarkMerged transitions the branch to Merged, recording the merge commit
// message. On an already-merged branch the status stays Merged and a
// non-nil message still replaces CommitMessage.
func (b *Branch) MarkMerged(message *string) {
	b.Status = BranchMerged
	if message != nil {
		b.CommitMessage = message
	}
}
