// Package branchops implements Branch Ops (component BR) and the
// working-commit lifecycle transitions around it (component WC):
// creating/committing a working commit, starting/validating/resolving/
// aborting a merge, and rebasing a feature branch onto a target.
package branchops

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/nickyhof/CommitDB/core"
	"github.com/nickyhof/CommitDB/diff"
	"github.com/nickyhof/CommitDB/merge"
	"github.com/nickyhof/CommitDB/model"
	"github.com/nickyhof/CommitDB/store"
	"github.com/nickyhof/CommitDB/validate"
)

// ValidationFailedError wraps a failing ValidationResult returned from a
// commit attempt.
type ValidationFailedError struct {
	Result model.ValidationResult
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("validation failed: %d error(s)", len(e.Result.Errors))
}

// PartiallyResolvedError reports that resolve_merge_conflicts was called
// with a resolution map that does not yet cover every conflict.
type PartiallyResolvedError struct {
	Resolved int
	Total    int
}

func (e *PartiallyResolvedError) Error() string {
	return fmt.Sprintf("partially resolved: %d/%d conflicts", e.Resolved, e.Total)
}

// ErrDifferentDatabase reports that a merge/rebase was requested
// across two branches that do not share a database.
var ErrDifferentDatabase = errors.New("branchops: source and target branches belong to different databases")

// ErrMergeInProgress reports that the target branch already has a
// working commit in status Merging.
var ErrMergeInProgress = errors.New("branchops: target branch already has a merge in progress")

func loadCommitData(commits store.CommitStore, hash string) (model.CommitData, error) {
	if hash == "" {
		return model.CommitData{}, nil
	}
	data, err := commits.GetCommitData(hash)
	if err != nil {
		return model.CommitData{}, err
	}
	if data == nil {
		return model.CommitData{}, &store.NotFoundError{Kind: "commit", ID: hash}
	}
	return *data, nil
}

// CreateWorkingCommit opens the staging area for branch, copying the
// branch tip's schema/instances as the initial staged state. Fails with
// a ConflictError if an Active-or-Merging working commit already exists
// on the branch.
func CreateWorkingCommit(st store.Store, databaseID, branchName string, author *core.Identity) (model.WorkingCommit, error) {
	if existing, err := st.GetActiveWorkingCommitForBranch(databaseID, branchName); err != nil {
		return model.WorkingCommit{}, err
	} else if existing != nil {
		return model.WorkingCommit{}, &store.ConflictError{Reason: "an active working commit already exists on branch " + branchName}
	}

	branch, err := st.GetBranch(databaseID, branchName)
	if err != nil {
		return model.WorkingCommit{}, err
	}
	if branch == nil {
		return model.WorkingCommit{}, &store.NotFoundError{Kind: "branch", ID: branchName}
	}

	data, err := loadCommitData(st, branch.CurrentCommitHash)
	if err != nil {
		return model.WorkingCommit{}, err
	}

	return st.CreateWorkingCommit(databaseID, branchName, model.NewWorkingCommit{
		BasedOnHash:   branch.CurrentCommitHash,
		Author:        author,
		SchemaData:    data.Schema,
		InstancesData: data.Instances,
	})
}

// ValidateWorkingCommit runs the validator (component V) over a working
// commit's staged state.
func ValidateWorkingCommit(st store.Store, databaseID, branchName string) (model.ValidationResult, error) {
	wc, err := st.GetActiveWorkingCommitForBranch(databaseID, branchName)
	if err != nil {
		return model.ValidationResult{}, err
	}
	if wc == nil {
		return model.ValidationResult{}, &store.NotFoundError{Kind: "working_commit", ID: branchName}
	}
	return validate.ValidateBranch(&wc.SchemaData, wc.InstancesData), nil
}

// CommitWorkingCommit enforces the fast-forward invariant, validates the
// staged state, and on success produces a new immutable Commit, advances
// the branch pointer, and deletes the working commit.
func CommitWorkingCommit(st store.Store, databaseID, branchName, message string, author *core.Identity) (model.Commit, error) {
	wc, err := st.GetActiveWorkingCommitForBranch(databaseID, branchName)
	if err != nil {
		return model.Commit{}, err
	}
	if wc == nil {
		return model.Commit{}, &store.NotFoundError{Kind: "working_commit", ID: branchName}
	}
	if wc.Status == model.WCMerging {
		return model.Commit{}, &store.ConflictError{Reason: "working commit " + wc.Id + " has unresolved merge conflicts"}
	}

	branch, err := st.GetBranch(databaseID, branchName)
	if err != nil {
		return model.Commit{}, err
	}
	if branch == nil {
		return model.Commit{}, &store.NotFoundError{Kind: "branch", ID: branchName}
	}
	if branch.CurrentCommitHash != wc.BasedOnHash {
		return model.Commit{}, &store.StaleBaseError{BranchName: branchName, BasedOn: wc.BasedOnHash, CurrentTip: branch.CurrentCommitHash}
	}

	result := validate.ValidateBranch(&wc.SchemaData, wc.InstancesData)
	if !result.Valid {
		return model.Commit{}, &ValidationFailedError{Result: result}
	}

	var parentHash *string
	if wc.BasedOnHash != "" {
		h := wc.BasedOnHash
		parentHash = &h
	}
	msg := message

	wc.Status = model.WCCommitting
	if err := st.UpdateWorkingCommit(*wc); err != nil {
		return model.Commit{}, err
	}

	commit, err := st.CreateCommit(model.NewCommit{
		DatabaseId: databaseID,
		ParentHash: parentHash,
		Author:     author,
		Message:    &msg,
		Data:       wc.Data(),
	})
	if err != nil {
		return model.Commit{}, err
	}

	branch.CurrentCommitHash = commit.Hash
	branch.CommitMessage = &msg
	branch.Author = author
	if err := st.UpsertBranch(*branch); err != nil {
		return model.Commit{}, err
	}

	if err := st.DeleteWorkingCommit(wc.Id); err != nil {
		return model.Commit{}, err
	}

	return commit, nil
}

// AbortMerge deletes a working commit outright, regardless of status.
func AbortMerge(st store.Store, workingCommitID string) error {
	return st.DeleteWorkingCommit(workingCommitID)
}

// ValidateMerge runs ancestor discovery and three-way merge without
// creating a working commit, returning only the conflict list.
func ValidateMerge(st store.Store, databaseID, sourceBranch, targetBranch string) ([]model.MergeConflict, error) {
	base, left, right, err := mergeInputs(st, databaseID, sourceBranch, targetBranch)
	if err != nil {
		return nil, err
	}
	result, err := merge.ThreeWayMerge(st, base, left, right)
	if err != nil {
		return nil, err
	}
	return result.Conflicts, nil
}

func mergeInputs(st store.Store, databaseID, sourceBranch, targetBranch string) (base, left, right string, err error) {
	source, err := st.GetBranch(databaseID, sourceBranch)
	if err != nil {
		return "", "", "", err
	}
	target, err := st.GetBranch(databaseID, targetBranch)
	if err != nil {
		return "", "", "", err
	}
	if source == nil {
		return "", "", "", &store.NotFoundError{Kind: "branch", ID: sourceBranch}
	}
	if target == nil {
		return "", "", "", &store.NotFoundError{Kind: "branch", ID: targetBranch}
	}
	if source.DatabaseId != target.DatabaseId {
		return "", "", "", ErrDifferentDatabase
	}
	if source.CurrentCommitHash == "" || target.CurrentCommitHash == "" {
		return "", "", "", fmt.Errorf("branchops: both branches must have at least one commit")
	}

	ancestor, err := merge.FindCommonAncestor(st, target.CurrentCommitHash, source.CurrentCommitHash)
	if err != nil {
		return "", "", "", err
	}
	return ancestor, target.CurrentCommitHash, source.CurrentCommitHash, nil
}

// StartMerge computes the three-way merge of source into target and
// stages its result into a new working commit on target. If conflicts exist, the working commit is left in
// status Merging with its MergeState populated and only the
// non-conflicting ops applied; otherwise the full merged data is
// written and the working commit stays Active.
func StartMerge(st store.Store, databaseID, sourceBranch, targetBranch string, author *core.Identity) (model.WorkingCommit, []model.MergeConflict, error) {
	if existing, err := st.GetActiveWorkingCommitForBranch(databaseID, targetBranch); err != nil {
		return model.WorkingCommit{}, nil, err
	} else if existing != nil && existing.Status == model.WCMerging {
		return model.WorkingCommit{}, nil, ErrMergeInProgress
	}

	base, left, right, err := mergeInputs(st, databaseID, sourceBranch, targetBranch)
	if err != nil {
		return model.WorkingCommit{}, nil, err
	}

	baseData, err := loadCommitData(st, base)
	if err != nil {
		return model.WorkingCommit{}, nil, err
	}

	result, err := merge.ThreeWayMerge(st, base, left, right)
	if err != nil {
		return model.WorkingCommit{}, nil, err
	}

	merged, err := merge.ApplyMergeResult(baseData, result)
	if err != nil {
		return model.WorkingCommit{}, nil, err
	}

	wc, err := st.CreateWorkingCommit(databaseID, targetBranch, model.NewWorkingCommit{
		BasedOnHash:   left,
		Author:        author,
		SchemaData:    merged.Schema,
		InstancesData: merged.Instances,
	})
	if err != nil {
		return model.WorkingCommit{}, nil, err
	}

	if len(result.Conflicts) == 0 {
		return wc, nil, nil
	}

	resolutions := map[int]model.Resolution{}
	wc.Status = model.WCMerging
	wc.MergeStateData = &model.MergeState{
		BaseCommit:   base,
		LeftCommit:   left,
		RightCommit:  right,
		Conflicts:    result.Conflicts,
		Resolutions:  resolutions,
		IsRebase:     false,
		SourceBranch: sourceBranch,
		TargetBranch: targetBranch,
	}
	if err := st.UpdateWorkingCommit(wc); err != nil {
		return model.WorkingCommit{}, nil, err
	}
	return wc, result.Conflicts, nil
}

// conflictAsChangeOp rebuilds the ChangeOp a conflict's resolved value
// implies, so ResolveConflicts can fold it through merge.ApplyChangeOp
// exactly like a clean op.
func conflictAsChangeOp(conflict model.MergeConflict, resolution model.Resolution) (model.ChangeOp, bool) {
	var value any
	switch resolution.Kind {
	case model.TakeLeft:
		value = conflict.LeftValue
	case model.TakeRight:
		value = conflict.RightValue
	case model.TakeBase:
		value = conflict.BaseValue
	case model.Custom:
		value = resolution.CustomData
	}

	switch conflict.ConflictType {
	case model.ConflictAddAdd:
		if conflict.ResourceType == model.ResourceClass {
			class, ok := value.(*model.ClassDef)
			if !ok {
				return model.ChangeOp{}, false
			}
			return model.ChangeOp{Kind: model.OpAddClass, ClassId: conflict.ResourceId, Class: class}, true
		}
		inst, ok := value.(*model.Instance)
		if !ok {
			return model.ChangeOp{}, false
		}
		return model.ChangeOp{Kind: model.OpAddInstance, InstanceId: conflict.ResourceId, Instance: inst}, true

	case model.ConflictPatchPatch:
		if len(conflict.FieldPath) == 0 {
			return model.ChangeOp{}, false
		}
		field := conflict.FieldPath[0]
		fc := map[string]model.FieldChange{field: {Old: conflict.BaseValue, New: value}}
		if conflict.ResourceType == model.ResourceClass {
			return model.ChangeOp{Kind: model.OpPatchClass, ClassId: conflict.ResourceId, FieldChanges: fc}, true
		}
		return model.ChangeOp{Kind: model.OpPatchInstance, InstanceId: conflict.ResourceId, FieldChanges: fc}, true

	case model.ConflictDeleteModify:
		// TakeLeft/TakeRight decides delete-vs-keep; TakeBase/Custom are
		// not meaningful dispositions for a delete/modify collision.
		deleteWins := (resolution.Kind == model.TakeLeft && conflict.LeftValue == nil) ||
			(resolution.Kind == model.TakeRight && conflict.RightValue == nil)
		if deleteWins {
			if conflict.ResourceType == model.ResourceClass {
				return model.ChangeOp{Kind: model.OpDeleteClass, ClassId: conflict.ResourceId}, true
			}
			return model.ChangeOp{Kind: model.OpDeleteInstance, InstanceId: conflict.ResourceId}, true
		}
		var fieldChanges map[string]model.FieldChange
		if conflict.ResourceType == model.ResourceClass {
			fieldChanges, _ = conflict.RightValue.(map[string]model.FieldChange)
			if resolution.Kind == model.TakeLeft {
				fieldChanges, _ = conflict.LeftValue.(map[string]model.FieldChange)
			}
			return model.ChangeOp{Kind: model.OpPatchClass, ClassId: conflict.ResourceId, FieldChanges: fieldChanges}, true
		}
		fieldChanges, _ = conflict.RightValue.(map[string]model.FieldChange)
		if resolution.Kind == model.TakeLeft {
			fieldChanges, _ = conflict.LeftValue.(map[string]model.FieldChange)
		}
		return model.ChangeOp{Kind: model.OpPatchInstance, InstanceId: conflict.ResourceId, FieldChanges: fieldChanges}, true
	}
	return model.ChangeOp{}, false
}

// ResolveConflicts folds resolutions into the working commit's
// MergeState. Once every conflict has a recorded resolution, it
// re-derives the two diffs, replays the clean ops plus one resolved op
// per conflict through merge.ApplyChangeOp, rebuilds the staged
// schema/instances, and clears the merge state.
func ResolveConflicts(st store.Store, workingCommitID string, resolutions map[int]model.Resolution) (model.WorkingCommit, error) {
	wc, err := st.GetWorkingCommit(workingCommitID)
	if err != nil {
		return model.WorkingCommit{}, err
	}
	if wc == nil {
		return model.WorkingCommit{}, &store.NotFoundError{Kind: "working_commit", ID: workingCommitID}
	}
	if wc.MergeStateData == nil {
		return model.WorkingCommit{}, fmt.Errorf("branchops: working commit %s has no active merge", workingCommitID)
	}

	for idx, res := range resolutions {
		wc.MergeStateData.Resolutions[idx] = res
	}

	if !wc.MergeStateData.Complete() {
		if err := st.UpdateWorkingCommit(*wc); err != nil {
			return model.WorkingCommit{}, err
		}
		return *wc, &PartiallyResolvedError{Resolved: len(wc.MergeStateData.Resolutions), Total: len(wc.MergeStateData.Conflicts)}
	}

	ms := wc.MergeStateData
	baseData, err := loadCommitData(st, ms.BaseCommit)
	if err != nil {
		return model.WorkingCommit{}, err
	}
	leftData, err := loadCommitData(st, ms.LeftCommit)
	if err != nil {
		return model.WorkingCommit{}, err
	}
	rightData, err := loadCommitData(st, ms.RightCommit)
	if err != nil {
		return model.WorkingCommit{}, err
	}

	leftDiff := diff.ComputeDiff(&baseData, &leftData)
	rightDiff := diff.ComputeDiff(&baseData, &rightData)
	result := merge.MergeDiffs(leftDiff, rightDiff)

	for i, conflict := range ms.Conflicts {
		res, ok := ms.Resolutions[i]
		if !ok {
			continue
		}
		// ms.Conflicts was read back from JSON, which turns typed values
		// (*model.Instance, map[string]model.PropertyValue, ...) into
		// generic maps; use the typed copy of the same conflict from the
		// freshly recomputed merge instead.
		for _, fresh := range result.Conflicts {
			if fresh.ConflictType == conflict.ConflictType && fresh.ResourceType == conflict.ResourceType &&
				fresh.ResourceId == conflict.ResourceId && slices.Equal(fresh.FieldPath, conflict.FieldPath) {
				conflict = fresh
				break
			}
		}
		op, ok := conflictAsChangeOp(conflict, res)
		if ok {
			result.MergedOperations = append(result.MergedOperations, op)
		}
	}

	merged, err := merge.ApplyMergeResult(baseData, model.MergeResult{MergedOperations: result.MergedOperations})
	if err != nil {
		return model.WorkingCommit{}, err
	}

	wc.SetData(merged)
	wc.Status = model.WCActive
	wc.MergeStateData = nil
	wc.UpdatedAt = time.Now()
	if err := st.UpdateWorkingCommit(*wc); err != nil {
		return model.WorkingCommit{}, err
	}
	return *wc, nil
}

// hasNewCommits reports whether target has acquired commits since
// feature last shared an ancestor with it, i.e. whether a rebase would
// have anything to do.
func hasNewCommits(st store.Store, feature, target *model.Branch) (bool, error) {
	if target.CurrentCommitHash == "" {
		return false, nil
	}
	if feature.CurrentCommitHash == target.CurrentCommitHash {
		return false, nil
	}
	ancestor, err := merge.FindCommonAncestor(st, target.CurrentCommitHash, feature.CurrentCommitHash)
	if err != nil {
		return false, err
	}
	return ancestor != target.CurrentCommitHash, nil
}

// Rebase replays feature's changes on top of target's current tip. If
// feature is already a descendant of target's tip, it
// reports success with no new commit. Otherwise it three-way merges
// (base = common ancestor, left = target tip, right = feature tip,
// feature wins ties) and, absent conflicts or with force set, commits
// the result as feature's new tip with parent_hash = target's tip.
func Rebase(st store.Store, databaseID, featureBranch, targetBranch string, author *core.Identity, force bool) (model.RebaseResult, error) {
	feature, err := st.GetBranch(databaseID, featureBranch)
	if err != nil {
		return model.RebaseResult{}, err
	}
	target, err := st.GetBranch(databaseID, targetBranch)
	if err != nil {
		return model.RebaseResult{}, err
	}
	if feature == nil {
		return model.RebaseResult{}, &store.NotFoundError{Kind: "branch", ID: featureBranch}
	}
	if target == nil {
		return model.RebaseResult{}, &store.NotFoundError{Kind: "branch", ID: targetBranch}
	}
	if feature.DatabaseId != target.DatabaseId {
		return model.RebaseResult{}, ErrDifferentDatabase
	}
	if !feature.CanBeMerged() || !target.CanBeMerged() {
		return model.RebaseResult{}, &store.ConflictError{Reason: "both branches must be active to rebase"}
	}

	newCommits, err := hasNewCommits(st, feature, target)
	if err != nil {
		return model.RebaseResult{}, err
	}
	if !newCommits {
		return model.RebaseResult{Success: true, Message: "already up to date"}, nil
	}

	ancestor, err := merge.FindCommonAncestor(st, target.CurrentCommitHash, feature.CurrentCommitHash)
	if err != nil {
		return model.RebaseResult{}, err
	}

	// left=target, right=feature: MergeDiffs reports colliding changes
	// as conflicts, and the force path below resolves each one with
	// TakeRight, i.e. in favor of the rebasing branch's own changes.
	result, err := merge.ThreeWayMerge(st, ancestor, target.CurrentCommitHash, feature.CurrentCommitHash)
	if err != nil {
		return model.RebaseResult{}, err
	}

	if len(result.Conflicts) > 0 && !force {
		return model.RebaseResult{Success: false, Conflicts: result.Conflicts, Message: "rebase has conflicts"}, nil
	}

	// force=true: feature's side wins every conflicted field outright.
	if len(result.Conflicts) > 0 {
		for _, c := range result.Conflicts {
			if op, ok := conflictAsChangeOp(c, model.Resolution{Kind: model.TakeRight}); ok {
				result.MergedOperations = append(result.MergedOperations, op)
			}
		}
	}

	baseData, err := loadCommitData(st, ancestor)
	if err != nil {
		return model.RebaseResult{}, err
	}
	merged, err := merge.ApplyMergeResult(baseData, result)
	if err != nil {
		return model.RebaseResult{}, err
	}

	schemaValidation := validate.ValidateBranch(&merged.Schema, merged.Instances)
	if !schemaValidation.Valid && !force {
		return model.RebaseResult{Success: false, Message: "rebased state fails validation"}, nil
	}

	parent := target.CurrentCommitHash
	msg := fmt.Sprintf("rebase %s onto %s", featureBranch, targetBranch)
	commit, err := st.CreateCommit(model.NewCommit{
		DatabaseId: databaseID,
		ParentHash: &parent,
		Author:     author,
		Message:    &msg,
		Data:       merged,
	})
	if err != nil {
		return model.RebaseResult{}, err
	}

	feature.CurrentCommitHash = commit.Hash
	feature.ParentBranchName = &targetBranch
	if err := st.UpsertBranch(*feature); err != nil {
		return model.RebaseResult{}, err
	}

	return model.RebaseResult{
		Success:              true,
		RebasedInstances:     len(merged.Instances),
		RebasedSchemaChanges: len(result.MergedOperations) > 0,
		Message:              "rebase complete",
	}, nil
}

// DeleteBranch deletes a branch. Force overrides the status!=active
// check but never overrides "no open working commit targets this
// branch".
func DeleteBranch(st store.Store, databaseID, branchName string, force bool) error {
	branch, err := st.GetBranch(databaseID, branchName)
	if err != nil {
		return err
	}
	if branch == nil {
		return &store.NotFoundError{Kind: "branch", ID: branchName}
	}

	wcs, err := st.ListWorkingCommitsForBranch(databaseID, branchName)
	if err != nil {
		return err
	}
	for _, wc := range wcs {
		if wc.Status == model.WCActive || wc.Status == model.WCMerging {
			return &store.ConflictError{Reason: "branch " + branchName + " has an open working commit"}
		}
	}

	if !branch.CanBeDeleted() && !force {
		return &store.ConflictError{Reason: "branch " + branchName + " is active; delete requires force"}
	}

	return st.DeleteBranch(databaseID, branchName)
}
