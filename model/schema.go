package model

import (
	"fmt"
	"sort"

	"github.com/nickyhof/CommitDB/core"
)

// DataType is the declared JSON shape of a property value.
type DataType string

const (
	DataString     DataType = "String"
	DataNumber     DataType = "Number"
	DataBoolean    DataType = "Boolean"
	DataObject     DataType = "Object"
	DataArray      DataType = "Array"
	DataStringList DataType = "StringList"
)

// PropertyDef declares one property slot on a class.
type PropertyDef struct {
	Id       string   `json:"id"`
	Name     string   `json:"name"`
	DataType DataType `json:"data_type"`
	Required bool     `json:"required,omitempty"`
}

// QuantifierKind discriminates Quantifier.
type QuantifierKind string

const (
	QExactly  QuantifierKind = "exactly"
	QAtLeast  QuantifierKind = "at_least"
	QAtMost   QuantifierKind = "at_most"
	QRange    QuantifierKind = "range"
	QOptional QuantifierKind = "optional"
	QAny      QuantifierKind = "any"
	QAll      QuantifierKind = "all"
)

// Quantifier is the cardinality constraint on a relationship's selection.
type Quantifier struct {
	Kind QuantifierKind `json:"kind"`
	N    int64          `json:"n,omitempty"`   // Exactly, AtLeast, AtMost
	Min  int64          `json:"min,omitempty"` // Range
	Max  int64          `json:"max,omitempty"` // Range
}

func QuantifierExactly(n int64) Quantifier { return Quantifier{Kind: QExactly, N: n} }
func QuantifierAtLeast(n int64) Quantifier { return Quantifier{Kind: QAtLeast, N: n} }
func QuantifierAtMost(n int64) Quantifier  { return Quantifier{Kind: QAtMost, N: n} }
func QuantifierRange(min, max int64) Quantifier {
	return Quantifier{Kind: QRange, Min: min, Max: max}
}

// Check reports whether count satisfies the quantifier.
// universeSize/hasUniverse apply only to Kind==QAll.
func (q Quantifier) Check(count int, hasUniverse bool, universeSize int) error {
	switch q.Kind {
	case QExactly:
		if int64(count) != q.N {
			return fmt.Errorf("expected exactly %d, got %d", q.N, count)
		}
	case QAtLeast:
		if int64(count) < q.N {
			return fmt.Errorf("expected at least %d, got %d", q.N, count)
		}
	case QAtMost:
		if int64(count) > q.N {
			return fmt.Errorf("expected at most %d, got %d", q.N, count)
		}
	case QRange:
		if int64(count) < q.Min || int64(count) > q.Max {
			return fmt.Errorf("expected between %d and %d, got %d", q.Min, q.Max, count)
		}
	case QOptional:
		if count > 1 {
			return fmt.Errorf("expected at most 1, got %d", count)
		}
	case QAny:
		// no constraint
	case QAll:
		if hasUniverse && count != universeSize {
			return fmt.Errorf("expected all %d universe members, got %d", universeSize, count)
		}
	}
	return nil
}

// SortDir is the direction of an InstanceFilter.Sort clause.
type SortDir string

const (
	SortAsc  SortDir = "ASC"
	SortDesc SortDir = "DESC"
)

// InstanceFilter describes a dynamic instance selection: by class id,
// boolean predicate, sort, and limit.
type InstanceFilter struct {
	Types       []string  `json:"types,omitempty"`
	WhereClause *BoolExpr `json:"where_clause,omitempty"`
	Sort        *string   `json:"sort,omitempty"` // "FIELD [ASC|DESC]"
	Limit       *int      `json:"limit,omitempty"`
}

// ParseSort splits a "FIELD [ASC|DESC]" spec into a field name and
// direction, defaulting to ascending.
func ParseSort(spec string) (field string, dir SortDir) {
	dir = SortAsc
	field = spec
	for _, suffix := range []struct {
		s string
		d SortDir
	}{{" DESC", SortDesc}, {" ASC", SortAsc}} {
		if len(spec) > len(suffix.s) && spec[len(spec)-len(suffix.s):] == suffix.s {
			field = spec[:len(spec)-len(suffix.s)]
			dir = suffix.d
		}
	}
	return field, dir
}

// DefaultPoolKind discriminates DefaultPool.
type DefaultPoolKind string

const (
	PoolNone   DefaultPoolKind = "none"
	PoolAll    DefaultPoolKind = "all"
	PoolFilter DefaultPoolKind = "filter"
)

// DefaultPool is the schema-declared default candidate pool for a
// relationship when the instance supplies no override.
type DefaultPool struct {
	Kind   DefaultPoolKind `json:"kind"`
	Types  []string        `json:"types,omitempty"`  // Filter: optional override of targets
	Filter *InstanceFilter `json:"filter,omitempty"` // Filter: where/sort/limit
}

// SelectionTag declares whether a relationship's selection must be an
// explicit id list or may additionally use a filter.
type SelectionTag string

const (
	SelectionTagIds    SelectionTag = "ids"
	SelectionTagFilter SelectionTag = "filter"
)

// RelationshipDef declares one relationship slot on a class.
type RelationshipDef struct {
	Id          string       `json:"id"`
	Name        string       `json:"name"`
	Targets     []string     `json:"targets"`
	Quantifier  Quantifier   `json:"quantifier"`
	Universe    *string      `json:"universe,omitempty"`
	Selection   SelectionTag `json:"selection,omitempty"`
	DefaultPool DefaultPool  `json:"default_pool"`
}

// DerivedDef declares a named derived expression on a class.
type DerivedDef struct {
	Id       string   `json:"id"`
	Name     string   `json:"name"`
	DataType DataType `json:"data_type"`
	Expr     Expr     `json:"expr"`
}

// ClassDef is one class in a Schema.
type ClassDef struct {
	Id               string            `json:"id"`
	Name             string            `json:"name"`
	Description      *string           `json:"description,omitempty"`
	Properties       []PropertyDef     `json:"properties"`
	Relationships    []RelationshipDef `json:"relationships"`
	Derived          []DerivedDef      `json:"derived"`
	DomainConstraint *Domain           `json:"domain_constraint,omitempty"`
	Audit            core.Audit        `json:"audit"`
}

// PropertyByIdOrName finds a property definition by id, falling back to
// name, matching the lookup rule the validator uses.
func (c *ClassDef) PropertyByIdOrName(key string) *PropertyDef {
	for i := range c.Properties {
		if c.Properties[i].Id == key {
			return &c.Properties[i]
		}
	}
	for i := range c.Properties {
		if c.Properties[i].Name == key {
			return &c.Properties[i]
		}
	}
	return nil
}

// RelationshipByIdOrName finds a relationship definition by id, falling
// back to name.
func (c *ClassDef) RelationshipByIdOrName(key string) *RelationshipDef {
	for i := range c.Relationships {
		if c.Relationships[i].Id == key {
			return &c.Relationships[i]
		}
	}
	for i := range c.Relationships {
		if c.Relationships[i].Name == key {
			return &c.Relationships[i]
		}
	}
	return nil
}

// Schema is the full set of class definitions at a commit.
type Schema struct {
	Id          string     `json:"id"`
	Description *string    `json:"description,omitempty"`
	Classes     []ClassDef `json:"classes"`
}

// ClassByID returns the class with the given id, or nil.
func (s *Schema) ClassByID(id string) *ClassDef {
	for i := range s.Classes {
		if s.Classes[i].Id == id {
			return &s.Classes[i]
		}
	}
	return nil
}

// Normalize sorts classes by id, and within each class sorts properties,
// relationships, and derived definitions by id. This is the contract that
// makes canonical serialization (and therefore content hashing)
// deterministic regardless of insertion order.
func (s *Schema) Normalize() {
	sort.Slice(s.Classes, func(i, j int) bool { return s.Classes[i].Id < s.Classes[j].Id })
	for ci := range s.Classes {
		c := &s.Classes[ci]
		sort.Slice(c.Properties, func(i, j int) bool { return c.Properties[i].Id < c.Properties[j].Id })
		sort.Slice(c.Relationships, func(i, j int) bool { return c.Relationships[i].Id < c.Relationships[j].Id })
		sort.Slice(c.Derived, func(i, j int) bool { return c.Derived[i].Id < c.Derived[j].Id })
	}
}
