package model

import (
	"sort"

	"github.com/nickyhof/CommitDB/core"
)

// PropertyValueKind discriminates PropertyValue.
type PropertyValueKind string

const (
	PropertyLiteral     PropertyValueKind = "literal"
	PropertyConditional PropertyValueKind = "conditional"
)

// TypedValue is a literal property value paired with its declared type.
type TypedValue struct {
	Value    any      `json:"value"`
	DataType DataType `json:"data_type"`
}

// PropertyValue is either a literal value or a conditional RuleSet.
type PropertyValue struct {
	Kind        PropertyValueKind `json:"kind"`
	Literal     *TypedValue       `json:"literal,omitempty"`
	Conditional *RuleSet          `json:"conditional,omitempty"`
}

func LiteralValue(v any, dt DataType) PropertyValue {
	return PropertyValue{Kind: PropertyLiteral, Literal: &TypedValue{Value: v, DataType: dt}}
}

func ConditionalValue(rs RuleSet) PropertyValue {
	return PropertyValue{Kind: PropertyConditional, Conditional: &rs}
}

// SelectionKind discriminates RelationshipSelection.
type SelectionKind string

const (
	SelSimpleIds SelectionKind = "simple_ids"
	SelIds       SelectionKind = "ids"
	SelFilter    SelectionKind = "filter"
	SelAll       SelectionKind = "all"
	SelPoolBased SelectionKind = "pool_based"
)

// SelectionSpecKind discriminates SelectionSpec, the sub-selection inside
// a PoolBased relationship selection.
type SelectionSpecKind string

const (
	SpecIds        SelectionSpecKind = "ids"
	SpecFilter     SelectionSpecKind = "filter"
	SpecAll        SelectionSpecKind = "all"
	SpecUnresolved SelectionSpecKind = "unresolved"
)

// SelectionSpec is the "step B" sub-selection within an effective pool.
type SelectionSpec struct {
	Kind   SelectionSpecKind `json:"kind"`
	Ids    []string          `json:"ids,omitempty"`
	Filter *InstanceFilter   `json:"filter,omitempty"`
}

// RelationshipSelection is the instance-level value of a relationship
// slot: an explicit id list, a dynamic filter, the whole target universe,
// or a pool override plus sub-selection.
type RelationshipSelection struct {
	Kind SelectionKind `json:"kind"`

	Ids []string `json:"ids,omitempty"` // SimpleIds, Ids

	Filter *InstanceFilter `json:"filter,omitempty"` // Filter

	Pool      *InstanceFilter `json:"pool,omitempty"`      // PoolBased: instance override of the pool
	Selection *SelectionSpec  `json:"selection,omitempty"` // PoolBased
}

func SimpleIdsSelection(ids []string) RelationshipSelection {
	return RelationshipSelection{Kind: SelSimpleIds, Ids: ids}
}

// IsEmpty reports whether the selection carries no targets. Filters are
// assumed to match at least one instance; unresolved pool selections
// count as empty.
func (s RelationshipSelection) IsEmpty() bool {
	switch s.Kind {
	case SelSimpleIds, SelIds:
		return len(s.Ids) == 0
	case SelPoolBased:
		if s.Selection == nil {
			return true
		}
		switch s.Selection.Kind {
		case SpecIds:
			return len(s.Selection.Ids) == 0
		case SpecAll, SpecFilter:
			return false
		case SpecUnresolved:
			return true
		}
		return true
	case SelFilter, SelAll:
		return false
	}
	return true
}

// Instance is a single instance of a class in a configuration.
type Instance struct {
	Id            string                           `json:"id"`
	ClassId       string                           `json:"class_id"`
	Domain        *Domain                          `json:"domain,omitempty"`
	Properties    map[string]PropertyValue         `json:"properties"`
	Relationships map[string]RelationshipSelection `json:"relationships"`
	Audit         core.Audit                       `json:"audit"`
}

// CommitData is the canonical state {schema, instances} at a commit.
type CommitData struct {
	Schema    Schema     `json:"schema"`
	Instances []Instance `json:"instances"`
}

// InstanceByID returns the instance with the given id, or nil.
func (cd *CommitData) InstanceByID(id string) *Instance {
	for i := range cd.Instances {
		if cd.Instances[i].Id == id {
			return &cd.Instances[i]
		}
	}
	return nil
}

// Normalize sorts instances by id and normalizes the schema, so equal
// snapshots serialize to identical bytes and hash identically.
func (cd *CommitData) Normalize() {
	cd.Schema.Normalize()
	sort.Slice(cd.Instances, func(i, j int) bool { return cd.Instances[i].Id < cd.Instances[j].Id })
}

// Clone deep-copies CommitData so callers (diff, merge) never alias
// mutable state between commits.
func (cd *CommitData) Clone() CommitData {
	out := CommitData{Schema: cd.Schema}
	out.Schema.Classes = append([]ClassDef(nil), cd.Schema.Classes...)
	for i := range out.Schema.Classes {
		c := &out.Schema.Classes[i]
		c.Properties = append([]PropertyDef(nil), c.Properties...)
		c.Relationships = append([]RelationshipDef(nil), c.Relationships...)
		c.Derived = append([]DerivedDef(nil), c.Derived...)
	}
	out.Instances = make([]Instance, len(cd.Instances))
	for i, inst := range cd.Instances {
		clone := inst
		clone.Properties = make(map[string]PropertyValue, len(inst.Properties))
		for k, v := range inst.Properties {
			clone.Properties[k] = v
		}
		clone.Relationships = make(map[string]RelationshipSelection, len(inst.Relationships))
		for k, v := range inst.Relationships {
			clone.Relationships[k] = v
		}
		out.Instances[i] = clone
	}
	return out
}
