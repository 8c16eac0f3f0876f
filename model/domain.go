// Package model defines the combinatorial configuration data model: schema
// classes and properties, instance data, the expression AST, and the
// commit/branch/working-commit shapes that the persistence layer stores.
//
// Every sum type in this package (PropertyValue, RelationshipSelection,
// Expr, BoolExpr, Predicate, Quantifier, DefaultPool, SelectionSpec) is
// represented as a flat struct with a Kind discriminant field rather than
// an interface hierarchy, so that a value round-trips through JSON without
// a custom (Un)MarshalJSON.
package model

import "fmt"

// Domain is an integer interval [Lower, Upper] bounding how many copies of
// an instance are selected in a configuration.
type Domain struct {
	Lower int64 `json:"lower"`
	Upper int64 `json:"upper"`
}

// NewDomain builds a Domain, returning an error if lo > hi or lo < 0.
func NewDomain(lo, hi int64) (Domain, error) {
	d := Domain{Lower: lo, Upper: hi}
	return d, d.Validate()
}

// BinaryDomain is the common [0,1] domain.
func BinaryDomain() Domain { return Domain{Lower: 0, Upper: 1} }

// ConstantDomain fixes both bounds to n.
func ConstantDomain(n int64) Domain { return Domain{Lower: n, Upper: n} }

// Validate reports whether 0 <= Lower <= Upper holds.
func (d Domain) Validate() error {
	if d.Lower < 0 {
		return fmt.Errorf("domain: lower bound %d is negative", d.Lower)
	}
	if d.Lower > d.Upper {
		return fmt.Errorf("domain: lower bound %d exceeds upper bound %d", d.Lower, d.Upper)
	}
	return nil
}

// Selected reports whether an instance carrying this domain counts as
// "selected" for evaluation purposes (Lower >= 1). Sum{over,prop}
// includes exactly these instances.
func (d Domain) Selected() bool { return d.Lower >= 1 }
