// Package merge implements the merge engine (component MG): common
// ancestor discovery, three-way diff folding with conflict detection, and
// applying a (possibly resolved) merge result onto a base CommitData.
//
// ApplyChangeOp is the single function both the conflict-free path and
// branchops.ResolveConflicts use to fold one op into a CommitData, so
// "apply a resolved conflict" and "apply a clean op" are the same code
// path.
package merge

import (
	"fmt"
	"reflect"

	"github.com/nickyhof/CommitDB/diff"
	"github.com/nickyhof/CommitDB/model"
	"github.com/nickyhof/CommitDB/store"
)

// AncestorError reports that two commits share no common ancestor
// reachable via parent_hash, or that a chain could not be walked.
type AncestorError struct {
	Reason string
}

func (e *AncestorError) Error() string { return "no common ancestor: " + e.Reason }

// FindCommonAncestor walks left's parent chain, then right's, and
// returns the first hash in right's chain that also appears in left's.
func FindCommonAncestor(commits store.CommitStore, left, right string) (string, error) {
	leftChain, err := ancestorChain(commits, left)
	if err != nil {
		return "", err
	}
	leftSet := make(map[string]bool, len(leftChain))
	for _, h := range leftChain {
		leftSet[h] = true
	}

	rightChain, err := ancestorChain(commits, right)
	if err != nil {
		return "", err
	}
	for _, h := range rightChain {
		if leftSet[h] {
			return h, nil
		}
	}
	return "", &AncestorError{Reason: fmt.Sprintf("%s and %s share no ancestor", left, right)}
}

const maxAncestorDepth = 10000

func ancestorChain(commits store.CommitStore, hash string) ([]string, error) {
	var chain []string
	seen := map[string]bool{}
	cur := hash
	for cur != "" {
		if seen[cur] {
			return nil, &AncestorError{Reason: "cycle detected in parent chain at " + cur}
		}
		seen[cur] = true
		chain = append(chain, cur)
		if len(chain) > maxAncestorDepth {
			return nil, &AncestorError{Reason: "ancestor chain exceeds maximum depth"}
		}
		c, err := commits.GetCommit(cur)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, &AncestorError{Reason: "unknown commit " + cur}
		}
		if c.ParentHash == nil {
			break
		}
		cur = *c.ParentHash
	}
	return chain, nil
}

// ThreeWayMerge loads base/left/right CommitData via the store, diffs
// base against each side, and folds the two diffs together.
func ThreeWayMerge(commits store.CommitStore, base, left, right string) (model.MergeResult, error) {
	baseData, err := commits.GetCommitData(base)
	if err != nil {
		return model.MergeResult{}, err
	}
	leftData, err := commits.GetCommitData(left)
	if err != nil {
		return model.MergeResult{}, err
	}
	rightData, err := commits.GetCommitData(right)
	if err != nil {
		return model.MergeResult{}, err
	}
	if baseData == nil || leftData == nil || rightData == nil {
		return model.MergeResult{}, &AncestorError{Reason: "base/left/right commit data missing"}
	}

	leftDiff := diff.ComputeDiff(baseData, leftData)
	rightDiff := diff.ComputeDiff(baseData, rightData)
	return MergeDiffs(leftDiff, rightDiff), nil
}

// MergeDiffs folds two CommitDiffs computed against the same base into a
// single MergeResult. For each left op, it scans right's ops
// for a same-resource collision; a colliding pair becomes a
// MergeConflict and the right op is consumed (not duplicated into
// MergedOperations). Everything else from both sides is concatenated.
func MergeDiffs(left, right model.CommitDiff) model.MergeResult {
	rightByID := make(map[string]model.ChangeOp, len(right.Ops))
	rightConsumed := make(map[string]bool, len(right.Ops))
	for _, op := range right.Ops {
		rightByID[resourceKey(op)] = op
	}

	var conflicts []model.MergeConflict
	var merged []model.ChangeOp

	for _, lop := range left.Ops {
		key := resourceKey(lop)
		rop, collides := rightByID[key]
		if !collides {
			merged = append(merged, lop)
			continue
		}
		if conflict, isConflict := detectConflict(lop, rop); isConflict {
			conflicts = append(conflicts, conflict...)
			rightConsumed[key] = true
			continue
		}
		// Same resource, no actual field overlap (e.g. both patched
		// disjoint fields): keep left's op, and let right's op through
		// below since it was not marked consumed. If both ops exactly
		// match (identical patch), avoid duplicating by marking
		// consumed.
		if reflect.DeepEqual(lop, rop) {
			rightConsumed[key] = true
		}
		merged = append(merged, lop)
	}

	for _, rop := range right.Ops {
		key := resourceKey(rop)
		if rightConsumed[key] {
			continue
		}
		merged = append(merged, rop)
	}

	return model.MergeResult{
		Success:          len(conflicts) == 0,
		Conflicts:        conflicts,
		MergedOperations: merged,
		NeedsValidation:  true,
	}
}

func resourceKey(op model.ChangeOp) string {
	if op.IsClassOp() {
		return "class:" + op.ClassId
	}
	return "instance:" + op.InstanceId
}

// detectConflict compares two ops on the same resource id and decides
// whether they collide. Returns the conflicts (one per overlapping field
// for PatchPatch, or a single AddAdd/DeleteModify conflict) and whether
// any conflict was produced.
func detectConflict(l, r model.ChangeOp) ([]model.MergeConflict, bool) {
	resourceType, resourceID := classifyResource(l)

	isAdd := func(k model.ChangeOpKind) bool {
		return k == model.OpAddClass || k == model.OpAddInstance
	}
	isDelete := func(k model.ChangeOpKind) bool {
		return k == model.OpDeleteClass || k == model.OpDeleteInstance
	}
	isPatch := func(k model.ChangeOpKind) bool {
		return k == model.OpPatchClass || k == model.OpPatchInstance
	}

	switch {
	case isAdd(l.Kind) && isAdd(r.Kind):
		if reflect.DeepEqual(addedValue(l), addedValue(r)) {
			return nil, false
		}
		return []model.MergeConflict{{
			ConflictType: model.ConflictAddAdd,
			ResourceType: resourceType,
			ResourceId:   resourceID,
			LeftValue:    addedValue(l),
			RightValue:   addedValue(r),
			Description:  fmt.Sprintf("both sides added %s with different content", resourceID),
		}}, true

	case isPatch(l.Kind) && isPatch(r.Kind):
		var conflicts []model.MergeConflict
		for field, lc := range l.FieldChanges {
			rc, ok := r.FieldChanges[field]
			if !ok {
				continue
			}
			if reflect.DeepEqual(lc.New, rc.New) {
				continue
			}
			conflicts = append(conflicts, model.MergeConflict{
				ConflictType: model.ConflictPatchPatch,
				ResourceType: resourceType,
				ResourceId:   resourceID,
				FieldPath:    []string{field},
				BaseValue:    lc.Old,
				LeftValue:    lc.New,
				RightValue:   rc.New,
				Description:  fmt.Sprintf("both sides patched %s.%s", resourceID, field),
			})
		}
		return conflicts, len(conflicts) > 0

	case isDelete(l.Kind) && isPatch(r.Kind):
		return []model.MergeConflict{{
			ConflictType: model.ConflictDeleteModify,
			ResourceType: resourceType,
			ResourceId:   resourceID,
			LeftValue:    nil,
			RightValue:   r.FieldChanges,
			Description:  fmt.Sprintf("left deleted %s, right modified it", resourceID),
		}}, true

	case isPatch(l.Kind) && isDelete(r.Kind):
		return []model.MergeConflict{{
			ConflictType: model.ConflictDeleteModify,
			ResourceType: resourceType,
			ResourceId:   resourceID,
			LeftValue:    l.FieldChanges,
			RightValue:   nil,
			Description:  fmt.Sprintf("right deleted %s, left modified it", resourceID),
		}}, true

	case isDelete(l.Kind) && isDelete(r.Kind):
		return nil, false

	default:
		return nil, false
	}
}

func classifyResource(op model.ChangeOp) (model.ResourceType, string) {
	if op.IsClassOp() {
		return model.ResourceClass, op.ClassId
	}
	return model.ResourceInstance, op.InstanceId
}

func addedValue(op model.ChangeOp) any {
	if op.Class != nil {
		return op.Class
	}
	return op.Instance
}

// ApplyChangeOp folds one ChangeOp into data in place.
func ApplyChangeOp(data *model.CommitData, op model.ChangeOp) error {
	switch op.Kind {
	case model.OpAddClass:
		if op.Class == nil {
			return fmt.Errorf("merge: AddClass op for %s missing Class", op.ClassId)
		}
		data.Schema.Classes = append(data.Schema.Classes, *op.Class)

	case model.OpDeleteClass:
		out := data.Schema.Classes[:0]
		for _, c := range data.Schema.Classes {
			if c.Id != op.ClassId {
				out = append(out, c)
			}
		}
		data.Schema.Classes = out

	case model.OpPatchClass:
		class := data.Schema.ClassByID(op.ClassId)
		if class == nil {
			return fmt.Errorf("merge: PatchClass op for unknown class %s", op.ClassId)
		}
		applyClassFieldChanges(class, op.FieldChanges)

	case model.OpAddInstance:
		if op.Instance == nil {
			return fmt.Errorf("merge: AddInstance op for %s missing Instance", op.InstanceId)
		}
		data.Instances = append(data.Instances, *op.Instance)

	case model.OpDeleteInstance:
		out := data.Instances[:0]
		for _, inst := range data.Instances {
			if inst.Id != op.InstanceId {
				out = append(out, inst)
			}
		}
		data.Instances = out

	case model.OpPatchInstance:
		inst := data.InstanceByID(op.InstanceId)
		if inst == nil {
			return fmt.Errorf("merge: PatchInstance op for unknown instance %s", op.InstanceId)
		}
		applyInstanceFieldChanges(inst, op.FieldChanges)

	default:
		return fmt.Errorf("merge: unknown ChangeOpKind %q", op.Kind)
	}
	return nil
}

func applyClassFieldChanges(class *model.ClassDef, changes map[string]model.FieldChange) {
	for field, fc := range changes {
		switch field {
		case "name":
			if v, ok := fc.New.(string); ok {
				class.Name = v
			}
		case "description":
			class.Description = asStringPtr(fc.New)
		case "properties":
			if v, ok := fc.New.([]model.PropertyDef); ok {
				class.Properties = v
			}
		case "relationships":
			if v, ok := fc.New.([]model.RelationshipDef); ok {
				class.Relationships = v
			}
		case "derived":
			if v, ok := fc.New.([]model.DerivedDef); ok {
				class.Derived = v
			}
		case "domain_constraint":
			if v, ok := fc.New.(*model.Domain); ok {
				class.DomainConstraint = v
			}
		}
	}
}

// applyInstanceFieldChanges folds a PatchInstance's field changes onto
// inst. relationships alone uses merge semantics: new keys are added,
// existing keys overwritten, keys absent from the change left untouched.
// Every other field, properties included, is replaced wholesale by the
// change's new value.
func applyInstanceFieldChanges(inst *model.Instance, changes map[string]model.FieldChange) {
	for field, fc := range changes {
		switch field {
		case "class_id":
			if v, ok := fc.New.(string); ok {
				inst.ClassId = v
			}
		case "domain":
			if v, ok := fc.New.(*model.Domain); ok {
				inst.Domain = v
			}
		case "properties":
			if v, ok := fc.New.(map[string]model.PropertyValue); ok {
				inst.Properties = v
			}
		case "relationships":
			if v, ok := fc.New.(map[string]model.RelationshipSelection); ok {
				if inst.Relationships == nil {
					inst.Relationships = map[string]model.RelationshipSelection{}
				}
				for k, rv := range v {
					inst.Relationships[k] = rv
				}
			}
		}
	}
}

func asStringPtr(v any) *string {
	if v == nil {
		return nil
	}
	if s, ok := v.(*string); ok {
		return s
	}
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

// ApplyMergeResult applies every op in result.MergedOperations onto a
// clone of base, then normalizes the schema/instance ordering so that
// byte-identical inputs produce byte-identical commits.
func ApplyMergeResult(base model.CommitData, result model.MergeResult) (model.CommitData, error) {
	out := base.Clone()
	for _, op := range result.MergedOperations {
		if err := ApplyChangeOp(&out, op); err != nil {
			return model.CommitData{}, err
		}
	}
	out.Normalize()
	return out, nil
}
