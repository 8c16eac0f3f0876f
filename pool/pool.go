// Package pool implements the pool resolver (component P): the two-step
// resolution of a relationship's candidate pool and, within that pool,
// its selected members.
//
// Resolution is a pure function over an already-loaded instance slice:
// the expander, its caller, holds the full configuration in memory by
// the time it needs a pool, so there is no store round trip here.
package pool

import (
	"fmt"
	"sort"

	"github.com/nickyhof/CommitDB/eval"
	"github.com/nickyhof/CommitDB/model"
)

// ResolutionError reports a failure resolving a pool or selection.
type ResolutionError struct {
	RelationshipName string
	Detail           string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("pool: relationship %q: %s", e.RelationshipName, e.Detail)
}

// SelectionResult is the outcome of resolving a relationship's selection
// within its effective pool: either fully resolved to specific ids, or
// left unresolved with the pool recorded for a solver or user to choose
// from.
type SelectionResult struct {
	Resolved bool
	Ids      []string
}

// Resolver resolves relationship pools and selections against a fixed
// instance universe (typically every instance in a branch's working
// commit or commit snapshot).
type Resolver struct {
	Instances []model.Instance
}

// NewResolver builds a Resolver over a full configuration snapshot.
func NewResolver(instances []model.Instance) *Resolver {
	return &Resolver{Instances: instances}
}

// applyFilter returns the ids of instances in candidates that satisfy
// filter's types/where_clause, sorted and limited per filter.Sort and
// filter.Limit.
func (r *Resolver) applyFilter(candidates []model.Instance, filter *model.InstanceFilter) []string {
	if filter == nil {
		ids := make([]string, len(candidates))
		for i, inst := range candidates {
			ids[i] = inst.Id
		}
		return ids
	}
	typeSet := map[string]bool(nil)
	if len(filter.Types) > 0 {
		typeSet = make(map[string]bool, len(filter.Types))
		for _, t := range filter.Types {
			typeSet[t] = true
		}
	}
	var matched []model.Instance
	for _, inst := range candidates {
		if typeSet != nil && !typeSet[inst.ClassId] {
			continue
		}
		if filter.WhereClause != nil && !eval.EvaluateBoolExpr(*filter.WhereClause, &inst) {
			continue
		}
		matched = append(matched, inst)
	}
	if filter.Sort != nil {
		field, dir := model.ParseSort(*filter.Sort)
		sort.SliceStable(matched, func(i, j int) bool {
			vi, _ := eval.GetPropertyValue(&matched[i], field)
			vj, _ := eval.GetPropertyValue(&matched[j], field)
			less := compareValues(vi, vj)
			if dir == model.SortDesc {
				return !less && vi != vj
			}
			return less
		})
	}
	if filter.Limit != nil && *filter.Limit >= 0 && *filter.Limit < len(matched) {
		matched = matched[:*filter.Limit]
	}
	ids := make([]string, len(matched))
	for i, inst := range matched {
		ids[i] = inst.Id
	}
	return ids
}

func compareValues(a, b any) bool {
	an, aok := a.(float64)
	bn, bok := b.(float64)
	if aok && bok {
		return an < bn
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as < bs
	}
	return false
}

func (r *Resolver) byTargets(targets []string) []model.Instance {
	typeSet := make(map[string]bool, len(targets))
	for _, t := range targets {
		typeSet[t] = true
	}
	var out []model.Instance
	for _, inst := range r.Instances {
		if typeSet[inst.ClassId] {
			out = append(out, inst)
		}
	}
	return out
}

// ResolveEffectivePool resolves step A of relationship resolution: the
// candidate pool before any selection narrows it. instanceOverride is
// the instance-level pool override, checked before the schema's
// DefaultPool.
func (r *Resolver) ResolveEffectivePool(def *model.RelationshipDef, instanceOverride *model.InstanceFilter) ([]string, error) {
	if instanceOverride != nil {
		return r.applyFilter(r.byTargets(targetsOrOverride(def, instanceOverride)), instanceOverride), nil
	}
	switch def.DefaultPool.Kind {
	case model.PoolNone:
		return nil, nil
	case model.PoolAll:
		return r.applyFilter(r.byTargets(def.Targets), nil), nil
	case model.PoolFilter:
		types := def.DefaultPool.Types
		if len(types) == 0 {
			types = def.Targets
		}
		return r.applyFilter(r.byTargets(types), def.DefaultPool.Filter), nil
	default:
		return nil, &ResolutionError{RelationshipName: def.Name, Detail: fmt.Sprintf("unknown default pool kind %q", def.DefaultPool.Kind)}
	}
}

func targetsOrOverride(def *model.RelationshipDef, override *model.InstanceFilter) []string {
	if len(override.Types) > 0 {
		return override.Types
	}
	return def.Targets
}

// ResolveSelection resolves step B: the final selection within an
// already-resolved effective pool.
func (r *Resolver) ResolveSelection(def *model.RelationshipDef, effectivePool []string, spec *model.SelectionSpec) (SelectionResult, error) {
	poolSet := make(map[string]bool, len(effectivePool))
	for _, id := range effectivePool {
		poolSet[id] = true
	}
	if spec == nil {
		return r.resolveUnresolvedOrAll(def, effectivePool)
	}
	switch spec.Kind {
	case model.SpecIds:
		for _, id := range spec.Ids {
			if !poolSet[id] {
				return SelectionResult{}, &ResolutionError{
					RelationshipName: def.Name,
					Detail:           fmt.Sprintf("selected instance %q is not in the effective pool", id),
				}
			}
		}
		return SelectionResult{Resolved: true, Ids: spec.Ids}, nil
	case model.SpecFilter:
		pool := r.instancesByIds(effectivePool)
		ids := r.applyFilter(pool, spec.Filter)
		return SelectionResult{Resolved: true, Ids: ids}, nil
	case model.SpecAll:
		return SelectionResult{Resolved: true, Ids: effectivePool}, nil
	case model.SpecUnresolved:
		return r.resolveUnresolvedOrAll(def, effectivePool)
	default:
		return SelectionResult{}, &ResolutionError{RelationshipName: def.Name, Detail: fmt.Sprintf("unknown selection spec kind %q", spec.Kind)}
	}
}

func (r *Resolver) resolveUnresolvedOrAll(def *model.RelationshipDef, effectivePool []string) (SelectionResult, error) {
	if def.Quantifier.Kind == model.QAll {
		return SelectionResult{Resolved: true, Ids: effectivePool}, nil
	}
	return SelectionResult{Resolved: false, Ids: effectivePool}, nil
}

func (r *Resolver) instancesByIds(ids []string) []model.Instance {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []model.Instance
	for _, inst := range r.Instances {
		if want[inst.Id] {
			out = append(out, inst)
		}
	}
	return out
}

// ResolveRelationship performs the full pool+selection resolution for
// one relationship selection on an instance.
func (r *Resolver) ResolveRelationship(def *model.RelationshipDef, selection model.RelationshipSelection) (SelectionResult, error) {
	switch selection.Kind {
	case model.SelPoolBased:
		effective, err := r.ResolveEffectivePool(def, selection.Pool)
		if err != nil {
			return SelectionResult{}, err
		}
		return r.ResolveSelection(def, effective, selection.Selection)
	case model.SelSimpleIds, model.SelIds:
		return SelectionResult{Resolved: true, Ids: selection.Ids}, nil
	case model.SelAll:
		effective, err := r.ResolveEffectivePool(def, nil)
		if err != nil {
			return SelectionResult{}, err
		}
		return SelectionResult{Resolved: true, Ids: effective}, nil
	case model.SelFilter:
		targets := def.Targets
		if selection.Filter != nil && len(selection.Filter.Types) > 0 {
			targets = selection.Filter.Types
		}
		ids := r.applyFilter(r.byTargets(targets), selection.Filter)
		return SelectionResult{Resolved: true, Ids: ids}, nil
	default:
		return SelectionResult{}, &ResolutionError{RelationshipName: def.Name, Detail: fmt.Sprintf("unknown selection kind %q", selection.Kind)}
	}
}
