package ps

import (
	"github.com/go-git/go-git/v6"

	"github.com/nickyhof/CommitDB/store"
)

// Snapshot tags the persistence layer's current git history with name,
// so Recover can later hard-reset back to this exact point. It always
// tags HEAD: every record in the store is reachable from the tip of the
// internal history, so one tag captures everything.
func (p *Persistence) Snapshot(name string) error {
	headRef, err := p.repo.Head()
	if err != nil {
		return err
	}
	_, err = p.repo.CreateTag(name, headRef.Hash(), nil)
	return err
}

// Recover hard-resets the persistence layer's worktree and HEAD back to
// a tag created by Snapshot. This is store-wide and destructive: every
// database, branch, and working commit reverts to its state as of that
// tag.
func (p *Persistence) Recover(name string) error {
	ref, err := p.repo.Tag(name)
	if err != nil {
		return err
	}
	wt, err := p.repo.Worktree()
	if err != nil {
		return err
	}
	return wt.Reset(&git.ResetOptions{Mode: git.HardReset, Commit: ref.Hash()})
}

// TagSnapshot records a named, store-wide checkpoint an operator can
// later recover every database in this Store back to. It covers the
// whole persistence layer; see RecoverBranchToCommit for the narrower,
// non-destructive operation a single branch needs.
func (s *Store) TagSnapshot(name string) error {
	return s.p.Snapshot(name)
}

// RecoverSnapshot restores the entire persistence layer to a checkpoint
// created by TagSnapshot.
func (s *Store) RecoverSnapshot(name string) error {
	return s.p.Recover(name)
}

// RecoverBranchToCommit points branch at hash, which must be an existing
// commit of the same database; whether hash lies in the branch's own
// history is not checked. Unlike RecoverSnapshot, this touches only one
// branch and needs no git reset: commits are immutable and content-
// addressed, so rewinding a branch is just reassigning its pointer to a
// hash that must already exist in the same database.
func (s *Store) RecoverBranchToCommit(databaseID, branchName, hash string) error {
	branch, err := s.GetBranch(databaseID, branchName)
	if err != nil {
		return err
	}
	if branch == nil {
		return &store.NotFoundError{Kind: "branch", ID: branchName}
	}
	exists, err := s.getCommitMetaForDatabase(databaseID, hash)
	if err != nil {
		return err
	}
	if exists == nil {
		return &store.NotFoundError{Kind: "commit", ID: hash}
	}
	branch.CurrentCommitHash = hash
	return s.UpsertBranch(*branch)
}
