// Package diff implements the diff engine (component D): a flat
// ChangeOp list between two CommitData snapshots.
//
// Field comparison uses reflect.DeepEqual over the typed field values;
// the struct shapes being compared carry no audit or resolution
// diagnostics, so structural equality and post-normalization byte
// equality agree.
package diff

import (
	"reflect"
	"sort"

	"github.com/nickyhof/CommitDB/model"
)

// ComputeDiff produces a flat ChangeOp list between two CommitData
// snapshots. Ops are emitted in a stable order: class ops
// before instance ops, each group sorted by resource id.
func ComputeDiff(from, to *model.CommitData) model.CommitDiff {
	var ops []model.ChangeOp
	ops = append(ops, diffClasses(from.Schema.Classes, to.Schema.Classes)...)
	ops = append(ops, diffInstances(from.Instances, to.Instances)...)
	return model.CommitDiff{Ops: ops}
}

func diffClasses(from, to []model.ClassDef) []model.ChangeOp {
	fromByID := make(map[string]*model.ClassDef, len(from))
	for i := range from {
		fromByID[from[i].Id] = &from[i]
	}
	toByID := make(map[string]*model.ClassDef, len(to))
	for i := range to {
		toByID[to[i].Id] = &to[i]
	}

	var ids []string
	seen := map[string]bool{}
	for id := range fromByID {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for id := range toByID {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var ops []model.ChangeOp
	for _, id := range ids {
		f, fOk := fromByID[id]
		t, tOk := toByID[id]
		switch {
		case !fOk && tOk:
			c := *t
			ops = append(ops, model.ChangeOp{Kind: model.OpAddClass, ClassId: id, Class: &c})
		case fOk && !tOk:
			ops = append(ops, model.ChangeOp{Kind: model.OpDeleteClass, ClassId: id})
		case fOk && tOk:
			if fc := diffClassFields(f, t); len(fc) > 0 {
				ops = append(ops, model.ChangeOp{Kind: model.OpPatchClass, ClassId: id, FieldChanges: fc})
			}
		}
	}
	return ops
}

var classFields = []string{"name", "description", "properties", "relationships", "derived", "domain_constraint"}

func diffClassFields(from, to *model.ClassDef) map[string]model.FieldChange {
	changes := map[string]model.FieldChange{}
	fields := map[string][2]any{
		"name":              {from.Name, to.Name},
		"description":       {from.Description, to.Description},
		"properties":        {from.Properties, to.Properties},
		"relationships":     {from.Relationships, to.Relationships},
		"derived":           {from.Derived, to.Derived},
		"domain_constraint": {from.DomainConstraint, to.DomainConstraint},
	}
	for _, name := range classFields {
		pair := fields[name]
		if !deepEqualValue(pair[0], pair[1]) {
			changes[name] = model.FieldChange{Old: pair[0], New: pair[1]}
		}
	}
	return changes
}

func diffInstances(from, to []model.Instance) []model.ChangeOp {
	fromByID := make(map[string]*model.Instance, len(from))
	for i := range from {
		fromByID[from[i].Id] = &from[i]
	}
	toByID := make(map[string]*model.Instance, len(to))
	for i := range to {
		toByID[to[i].Id] = &to[i]
	}

	var ids []string
	seen := map[string]bool{}
	for id := range fromByID {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for id := range toByID {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var ops []model.ChangeOp
	for _, id := range ids {
		f, fOk := fromByID[id]
		t, tOk := toByID[id]
		switch {
		case !fOk && tOk:
			inst := *t
			ops = append(ops, model.ChangeOp{Kind: model.OpAddInstance, InstanceId: id, Instance: &inst})
		case fOk && !tOk:
			ops = append(ops, model.ChangeOp{Kind: model.OpDeleteInstance, InstanceId: id})
		case fOk && tOk:
			if fc := diffInstanceFields(f, t); len(fc) > 0 {
				ops = append(ops, model.ChangeOp{Kind: model.OpPatchInstance, InstanceId: id, FieldChanges: fc})
			}
		}
	}
	return ops
}

var instanceFields = []string{"class_id", "domain", "properties", "relationships"}

func diffInstanceFields(from, to *model.Instance) map[string]model.FieldChange {
	changes := map[string]model.FieldChange{}
	fields := map[string][2]any{
		"class_id":      {from.ClassId, to.ClassId},
		"domain":        {from.Domain, to.Domain},
		"properties":    {from.Properties, to.Properties},
		"relationships": {from.Relationships, to.Relationships},
	}
	for _, name := range instanceFields {
		pair := fields[name]
		if !deepEqualValue(pair[0], pair[1]) {
			changes[name] = model.FieldChange{Old: pair[0], New: pair[1]}
		}
	}
	return changes
}

// deepEqualValue compares two field values structurally. reflect.DeepEqual
// is sufficient here: non-semantic fields (materialized ids, resolution
// diagnostics, audit trail) never appear on ClassDef/Instance field
// values being compared, by construction of the struct shapes above.
func deepEqualValue(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
