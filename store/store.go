// Package store declares the Store contract: the abstract persistence
// surface the rest of the module is written against. The core
// never talks to disk, a database driver, or git plumbing directly; it
// calls these interfaces, and package ps provides the one implementation
// shipped in this module.
//
// Read operations are projections of a branch's current commit; write
// operations go through a WorkingCommit. Nothing here assumes git,
// SQL, or any other storage technology: that choice belongs entirely to
// the implementation behind the interface.
package store

import "github.com/nickyhof/CommitDB/model"

// NotFoundError reports that a referenced database, branch, commit,
// working commit, class, or instance does not exist. Single-
// item Get* methods below for stored records signal absence by returning
// (nil, nil); this type is what callers that need a hard error (the
// branch, commit, etc. was required) wrap that absence in. The branch
// projections GetSchema and GetInstance return it themselves.
type NotFoundError struct {
	Kind string // "database", "branch", "commit", "working_commit", "instance"
	ID   string
}

func (e *NotFoundError) Error() string { return e.Kind + " not found: " + e.ID }

// ConflictError reports a violated storage constraint: duplicate branch
// name, duplicate active working commit, and the like.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return "conflict: " + e.Reason }

// StaleBaseError reports that a commit was attempted against a working
// commit whose BasedOnHash no longer matches the branch tip. It is
// retryable via merge or rebase.
type StaleBaseError struct {
	BranchName string
	BasedOn    string
	CurrentTip string
}

func (e *StaleBaseError) Error() string {
	return "stale base commit on branch " + e.BranchName + ": based on " + e.BasedOn + ", tip is now " + e.CurrentTip
}

// DatabaseStore is CRUD over Database records.
type DatabaseStore interface {
	CreateDatabase(db model.Database) (model.Database, error)
	GetDatabase(id string) (*model.Database, error)
	ListDatabases() ([]model.Database, error)
	DeleteDatabase(id string) error
}

// BranchStore is CRUD over Branch records, keyed by (database_id, name).
type BranchStore interface {
	CreateBranch(branch model.Branch) (model.Branch, error)
	GetBranch(databaseID, name string) (*model.Branch, error)
	ListBranches(databaseID string) ([]model.Branch, error)
	// UpsertBranch atomically replaces the stored Branch for
	// (branch.DatabaseId, branch.Name), creating it if absent.
	UpsertBranch(branch model.Branch) error
	DeleteBranch(databaseID, name string) error
}

// SchemaStore and InstanceStore are read-projections of a branch's
// current commit (or, when useWorkingCommit is true, of its active
// working commit's staged data).
type SchemaStore interface {
	GetSchema(databaseID, branchName string, useWorkingCommit bool) (*model.Schema, error)
}

// InstanceFilterOpts narrows ListInstancesForBranch; nil fields are
// unconstrained.
type InstanceFilterOpts struct {
	ClassID *string
}

type InstanceStore interface {
	GetInstance(databaseID, branchName, id string) (*model.Instance, error)
	ListInstancesForBranch(databaseID, branchName string, filter *InstanceFilterOpts) ([]model.Instance, error)
	FindByTypeInBranch(databaseID, branchName, classID string) ([]model.Instance, error)
}

// CommitStore is content-addressed access to immutable commits.
type CommitStore interface {
	GetCommit(hash string) (*model.Commit, error)
	ListCommitsForDatabase(databaseID string, parentHash *string) ([]model.Commit, error)
	CreateCommit(nc model.NewCommit) (model.Commit, error)
	GetCommitData(hash string) (*model.CommitData, error)
	CommitExists(hash string) (bool, error)
}

// WorkingCommitStore is CRUD over the staging area, plus the one-active-
// per-branch lookup the fast-forward and merge invariants rely on.
type WorkingCommitStore interface {
	CreateWorkingCommit(databaseID, branchName string, nc model.NewWorkingCommit) (model.WorkingCommit, error)
	GetWorkingCommit(id string) (*model.WorkingCommit, error)
	UpdateWorkingCommit(wc model.WorkingCommit) error
	DeleteWorkingCommit(id string) error
	GetActiveWorkingCommitForBranch(databaseID, branchName string) (*model.WorkingCommit, error)
	ListWorkingCommitsForBranch(databaseID, branchName string) ([]model.WorkingCommit, error)
}

// Store is the full persistence contract. A single implementation
// (package ps) satisfies all of it, but callers that only need a slice
// may depend on the narrower interfaces above.
type Store interface {
	DatabaseStore
	BranchStore
	SchemaStore
	InstanceStore
	CommitStore
	WorkingCommitStore
}
