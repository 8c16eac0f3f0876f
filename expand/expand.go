// Package expand implements the expander (component X): turning a raw
// Instance plus its schema and sibling instances into an ExpandedInstance
// with evaluated properties and resolved relationships, for reads.
//
// Properties run through the same literal/conditional
// evaluation the evaluator package implements, and each relationship not
// already pinned by an explicit selection is resolved from the schema's
// default pool, with the All quantifier auto-selecting the whole pool and
// every other quantifier left unresolved so a caller (solver or user) can
// choose from the recorded pool.
package expand

import (
	"fmt"
	"time"

	"github.com/nickyhof/CommitDB/eval"
	"github.com/nickyhof/CommitDB/model"
	"github.com/nickyhof/CommitDB/pool"
)

// ExpansionError reports a failure expanding an instance, most commonly
// a missing class definition.
type ExpansionError struct {
	InstanceId string
	Detail     string
}

func (e *ExpansionError) Error() string {
	return fmt.Sprintf("expand: instance %q: %s", e.InstanceId, e.Detail)
}

// Expander expands instances against a fixed schema and configuration.
type Expander struct {
	Schema    *model.Schema
	Instances []model.Instance
	resolver  *pool.Resolver
}

// New builds an Expander over a full commit snapshot.
func New(data *model.CommitData) *Expander {
	return &Expander{
		Schema:    &data.Schema,
		Instances: data.Instances,
		resolver:  pool.NewResolver(data.Instances),
	}
}

// ExpandInstance produces the read projection of inst: evaluated
// property values plus every schema-declared relationship resolved to
// either an explicit selection or, absent one, the schema default pool.
func (x *Expander) ExpandInstance(inst *model.Instance) (model.ExpandedInstance, error) {
	class := x.Schema.ClassByID(inst.ClassId)
	if class == nil {
		return model.ExpandedInstance{}, &ExpansionError{InstanceId: inst.Id, Detail: fmt.Sprintf("class %q not found", inst.ClassId)}
	}

	ctx := &eval.Context{Schema: x.Schema, Instances: x.Instances}
	props := make(map[string]any, len(inst.Properties))
	for key := range inst.Properties {
		val, err := eval.GetPropertyValue(inst, key)
		if err != nil {
			return model.ExpandedInstance{}, &ExpansionError{InstanceId: inst.Id, Detail: err.Error()}
		}
		props[key] = val
	}
	for name, val := range eval.EvaluateDerivedProperties(ctx, inst, nil) {
		props[name] = val
	}

	rels := make(map[string]model.ResolvedRelationship, len(class.Relationships))
	for i := range class.Relationships {
		def := &class.Relationships[i]
		var resolved model.ResolvedRelationship
		var err error
		if sel, ok := inst.Relationships[def.Id]; ok {
			resolved, err = x.resolveExplicit(def, sel)
		} else {
			resolved, err = x.resolveFromSchemaDefault(def)
		}
		if err != nil {
			return model.ExpandedInstance{}, err
		}
		rels[def.Id] = resolved
	}

	return model.ExpandedInstance{
		Id:            inst.Id,
		ClassId:       inst.ClassId,
		Domain:        inst.Domain,
		Properties:    props,
		Relationships: rels,
		Included:      nil,
		CreatedBy:     inst.Audit.CreatedBy,
		CreatedAt:     inst.Audit.CreatedAt,
		UpdatedBy:     inst.Audit.UpdatedBy,
		UpdatedAt:     inst.Audit.UpdatedAt,
	}, nil
}

// ExpandAll expands every instance in the configuration.
func (x *Expander) ExpandAll() ([]model.ExpandedInstance, error) {
	out := make([]model.ExpandedInstance, 0, len(x.Instances))
	for i := range x.Instances {
		expanded, err := x.ExpandInstance(&x.Instances[i])
		if err != nil {
			return nil, err
		}
		out = append(out, expanded)
	}
	return out, nil
}

func (x *Expander) resolveExplicit(def *model.RelationshipDef, sel model.RelationshipSelection) (model.ResolvedRelationship, error) {
	start := time.Now()
	details := model.ResolutionDetails{
		OriginalDefinition: string(sel.Kind),
		ResolvedFrom:       "instance_selection",
	}

	var method model.ResolutionMethod
	var ids []string
	switch sel.Kind {
	case model.SelSimpleIds, model.SelIds:
		method = model.ExplicitIds
		ids = sel.Ids
		details.TotalPoolSize = len(ids)

	case model.SelFilter:
		result, err := x.resolver.ResolveRelationship(def, sel)
		if err != nil {
			return model.ResolvedRelationship{}, err
		}
		method = model.DynamicSelectorResolved
		ids = result.Ids
		details.TotalPoolSize = len(ids)
		if sel.Filter != nil {
			desc := describeFilter(sel.Filter)
			details.FilterDescription = &desc
		}

	case model.SelAll:
		result, err := x.resolver.ResolveRelationship(def, sel)
		if err != nil {
			return model.ResolvedRelationship{}, err
		}
		method = model.AllInstancesResolved
		ids = result.Ids
		details.TotalPoolSize = len(ids)

	case model.SelPoolBased:
		effective, err := x.resolver.ResolveEffectivePool(def, sel.Pool)
		if err != nil {
			return model.ResolvedRelationship{}, err
		}
		result, err := x.resolver.ResolveSelection(def, effective, sel.Selection)
		if err != nil {
			return model.ResolvedRelationship{}, err
		}
		if sel.Pool != nil {
			method = model.PoolFilterResolved
			desc := describeFilter(sel.Pool)
			details.FilterDescription = &desc
		} else {
			method = model.PoolSelectionResolved
		}
		ids = result.Ids
		details.TotalPoolSize = len(effective)
		details.FilteredOutCount = len(effective) - len(ids)
		if !result.Resolved {
			details.Notes = append(details.Notes, fmt.Sprintf("selection left unresolved - %d pool candidates exposed for quantifier %s", len(ids), def.Quantifier.Kind))
		}

	default:
		method = model.EmptyResolution
	}

	details.ResolutionTimeMicros = time.Since(start).Microseconds()
	return model.ResolvedRelationship{
		MaterializedIds:  ids,
		ResolutionMethod: method,
		Details:          details,
	}, nil
}

// describeFilter renders an InstanceFilter compactly for diagnostics.
func describeFilter(f *model.InstanceFilter) string {
	desc := "filter"
	if len(f.Types) > 0 {
		desc += fmt.Sprintf(" types=%v", f.Types)
	}
	if f.WhereClause != nil {
		desc += " where=" + string(f.WhereClause.Kind)
	}
	if f.Sort != nil {
		desc += " sort=" + *f.Sort
	}
	if f.Limit != nil {
		desc += fmt.Sprintf(" limit=%d", *f.Limit)
	}
	return desc
}

func (x *Expander) resolveFromSchemaDefault(def *model.RelationshipDef) (model.ResolvedRelationship, error) {
	start := time.Now()
	effectivePool, err := x.resolver.ResolveEffectivePool(def, nil)
	if err != nil {
		return model.ResolvedRelationship{}, err
	}
	var ids []string
	method := model.SchemaDefaultResolved
	note := fmt.Sprintf("pool resolved from schema default - %d instances available for selection", len(effectivePool))
	switch def.Quantifier.Kind {
	case model.QAll:
		ids = effectivePool
		method = model.PoolFilterResolved
		note = fmt.Sprintf("resolved %d instances using default pool and All quantifier", len(ids))
	default:
		// Any and every other quantifier: the pool constrains what CAN be
		// selected but nothing is pre-selected here.
		ids = effectivePool
	}
	return model.ResolvedRelationship{
		MaterializedIds:  ids,
		ResolutionMethod: method,
		Details: model.ResolutionDetails{
			OriginalDefinition:   string(def.DefaultPool.Kind),
			ResolvedFrom:         "schema_default_pool",
			TotalPoolSize:        len(effectivePool),
			ResolutionTimeMicros: time.Since(start).Microseconds(),
			Notes:                []string{note},
		},
	}, nil
}
