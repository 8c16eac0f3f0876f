// Package eval implements the expression evaluator (component E): rule
// sets, boolean guards, and the arithmetic/derived-value AST, evaluated
// against a single instance plus the rest of its configuration.
//
// Guards evaluate directly against an instance's relationship
// selections rather than against a fully resolved pool, so rule sets
// stay evaluable before any pool resolution has run. Every Expr,
// BoolExpr, and Predicate kind declared in package model is handled.
package eval

import (
	"fmt"
	"log"
	"os"

	"github.com/nickyhof/CommitDB/model"
)

var logger = log.New(os.Stderr, "eval: ", log.LstdFlags)

// EvaluationError reports a failure evaluating an expression, predicate,
// or property lookup.
type EvaluationError struct {
	InstanceId string
	Detail     string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("eval: instance %q: %s", e.InstanceId, e.Detail)
}

func evalErr(inst *model.Instance, format string, args ...any) error {
	return &EvaluationError{InstanceId: inst.Id, Detail: fmt.Sprintf(format, args...)}
}

// Context supplies the rest of a configuration an evaluation may need:
// related instances (for RelProp/Sum/Count) and the schema (for derived
// property lookups).
type Context struct {
	Schema    *model.Schema
	Instances []model.Instance
}

// NewContext builds a Context from a full commit snapshot.
func NewContext(data *model.CommitData) *Context {
	return &Context{Schema: &data.Schema, Instances: data.Instances}
}

func (c *Context) instanceByID(id string) *model.Instance {
	for i := range c.Instances {
		if c.Instances[i].Id == id {
			return &c.Instances[i]
		}
	}
	return nil
}

// relationshipIds returns the explicit id list a relationship selection
// resolves to for evaluation purposes. Filter and all-typed selections,
// and pool-based selections other than an explicit id sub-selection,
// are not resolvable without running the pool resolver
// (component P); callers needing a fully resolved pool should resolve it
// first and substitute a SimpleIds selection before evaluating.
func relationshipIds(sel model.RelationshipSelection) ([]string, bool) {
	switch sel.Kind {
	case model.SelSimpleIds, model.SelIds:
		return sel.Ids, true
	case model.SelPoolBased:
		if sel.Selection != nil && sel.Selection.Kind == model.SpecIds {
			return sel.Selection.Ids, true
		}
	}
	return nil, false
}

// GetPropertyValue returns the runtime value of prop on instance:
// literal values returned directly, conditional values run through
// EvaluateRuleSet.
func GetPropertyValue(inst *model.Instance, prop string) (any, error) {
	pv, ok := inst.Properties[prop]
	if !ok {
		return nil, evalErr(inst, "property %q not found", prop)
	}
	switch pv.Kind {
	case model.PropertyLiteral:
		if pv.Literal == nil {
			return nil, evalErr(inst, "property %q is literal but carries no value", prop)
		}
		return pv.Literal.Value, nil
	case model.PropertyConditional:
		if pv.Conditional == nil {
			return nil, evalErr(inst, "property %q is conditional but carries no rule set", prop)
		}
		return EvaluateRuleSet(*pv.Conditional, inst), nil
	default:
		return nil, evalErr(inst, "property %q has unknown kind %q", prop, pv.Kind)
	}
}

// EvaluateRuleSet returns the value of the first branch whose guard is
// true against context, falling back to Default, falling back to 0.
func EvaluateRuleSet(rs model.RuleSet, context *model.Instance) any {
	for _, branch := range rs.Branches {
		if EvaluateBoolExpr(branch.When, context) {
			return branch.Then
		}
	}
	if rs.Default != nil {
		return rs.Default
	}
	return float64(0)
}

// isRelationshipEmpty reports whether a relationship selection carries
// no targets, per model.RelationshipSelection.IsEmpty.
func isRelationshipEmpty(sel model.RelationshipSelection) bool {
	return sel.IsEmpty()
}

// EvaluateBoolExpr evaluates a boolean guard against context. Because
// guards are used to gate conditional properties before a configuration
// is fully expanded, it never returns an error: an absent relationship
// or property simply evaluates false.
func EvaluateBoolExpr(expr model.BoolExpr, context *model.Instance) bool {
	switch expr.Kind {
	case model.BoolSimpleAll:
		for _, rel := range expr.SimpleAll {
			sel, ok := context.Relationships[rel]
			if !ok || isRelationshipEmpty(sel) {
				return false
			}
		}
		return true
	case model.BoolAll:
		for _, p := range expr.Predicates {
			if !evaluatePredicate(p, context) {
				return false
			}
		}
		return true
	case model.BoolAny:
		for _, p := range expr.Predicates {
			if evaluatePredicate(p, context) {
				return true
			}
		}
		return false
	case model.BoolNone:
		for _, p := range expr.Predicates {
			if evaluatePredicate(p, context) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func evaluatePredicate(p model.Predicate, context *model.Instance) bool {
	switch p.Kind {
	case model.PredHas:
		sel, ok := context.Relationships[p.Rel]
		if !ok {
			return false
		}
		if len(p.Ids) == 0 {
			return !isRelationshipEmpty(sel)
		}
		ids, resolvable := relationshipIds(sel)
		if !resolvable {
			return false
		}
		have := make(map[string]bool, len(ids))
		for _, id := range ids {
			have[id] = true
		}
		for _, want := range p.Ids {
			if !have[want] {
				return false
			}
		}
		return true
	case model.PredPropEq, model.PredPropNe, model.PredPropGt, model.PredPropLt, model.PredPropContains:
		val, err := GetPropertyValue(context, p.Prop)
		if err != nil {
			return false
		}
		return evaluateComparison(p.Kind, val, p.Value)
	case model.PredCount:
		sel, ok := context.Relationships[p.Rel]
		if !ok {
			return compareInt(p.Op, 0, p.CountValue)
		}
		ids, resolvable := relationshipIds(sel)
		if !resolvable {
			return false
		}
		return compareInt(p.Op, len(ids), p.CountValue)
	case model.PredHasTargets:
		sel, ok := context.Relationships[p.Rel]
		return ok && !isRelationshipEmpty(sel)
	case model.PredIncludesUniverse:
		// Without a resolved pool there is no universe to compare
		// against; treat as satisfied only when the selection already
		// claims "all".
		sel, ok := context.Relationships[p.Rel]
		return ok && sel.Kind == model.SelAll
	default:
		return false
	}
}

func compareInt(op model.ComparisonOp, actual, want int) bool {
	switch op {
	case model.OpEq:
		return actual == want
	case model.OpNe:
		return actual != want
	case model.OpGt:
		return actual > want
	case model.OpLt:
		return actual < want
	default:
		return false
	}
}

func evaluateComparison(kind model.PredicateKind, actual, want any) bool {
	switch kind {
	case model.PredPropContains:
		list, ok := actual.([]any)
		if !ok {
			return false
		}
		for _, item := range list {
			if item == want {
				return true
			}
		}
		return false
	}
	an, aok := toNumber(actual)
	wn, wok := toNumber(want)
	if aok && wok {
		switch kind {
		case model.PredPropEq:
			return an == wn
		case model.PredPropNe:
			return an != wn
		case model.PredPropGt:
			return an > wn
		case model.PredPropLt:
			return an < wn
		}
	}
	switch kind {
	case model.PredPropEq:
		return actual == want
	case model.PredPropNe:
		return actual != want
	default:
		return false
	}
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// EvaluateExpr evaluates the arithmetic/derived-value AST against
// context. ctx supplies related instances for RelProp/Sum/Count; it may
// be nil if expr is known not to reference relationships.
func EvaluateExpr(ctx *Context, expr model.Expr, context *model.Instance) (any, error) {
	switch expr.Kind {
	case model.ExprLitNumber:
		return expr.Number, nil
	case model.ExprLitBool:
		return expr.Bool, nil
	case model.ExprLitString:
		return expr.String, nil
	case model.ExprProp:
		return GetPropertyValue(context, expr.Prop)
	case model.ExprRelProp:
		return evaluateRelProp(ctx, expr, context)
	case model.ExprAdd, model.ExprSub, model.ExprMul, model.ExprDiv:
		return evaluateArith(ctx, expr, context)
	case model.ExprSum:
		return evaluateSum(ctx, expr, context)
	case model.ExprCount:
		return evaluateCount(ctx, expr, context)
	case model.ExprIf:
		if expr.Cond == nil || expr.Then == nil || expr.Else == nil {
			return nil, evalErr(context, "if expression missing cond/then/else")
		}
		if EvaluateBoolExpr(*expr.Cond, context) {
			return EvaluateExpr(ctx, *expr.Then, context)
		}
		return EvaluateExpr(ctx, *expr.Else, context)
	default:
		return nil, evalErr(context, "unknown expression kind %q", expr.Kind)
	}
}

func evaluateArith(ctx *Context, expr model.Expr, context *model.Instance) (any, error) {
	if expr.Left == nil || expr.Right == nil {
		return nil, evalErr(context, "%s expression missing operand", expr.Kind)
	}
	leftVal, err := EvaluateExpr(ctx, *expr.Left, context)
	if err != nil {
		return nil, err
	}
	rightVal, err := EvaluateExpr(ctx, *expr.Right, context)
	if err != nil {
		return nil, err
	}
	left, ok := toNumber(leftVal)
	if !ok {
		return nil, evalErr(context, "left operand of %s is not numeric: %v", expr.Kind, leftVal)
	}
	right, ok := toNumber(rightVal)
	if !ok {
		return nil, evalErr(context, "right operand of %s is not numeric: %v", expr.Kind, rightVal)
	}
	switch expr.Kind {
	case model.ExprAdd:
		return left + right, nil
	case model.ExprSub:
		return left - right, nil
	case model.ExprMul:
		return left * right, nil
	case model.ExprDiv:
		if right == 0 {
			return nil, evalErr(context, "division by zero")
		}
		return left / right, nil
	default:
		return nil, evalErr(context, "not an arithmetic expression: %q", expr.Kind)
	}
}

func evaluateRelProp(ctx *Context, expr model.Expr, context *model.Instance) (any, error) {
	if ctx == nil {
		return nil, evalErr(context, "rel_prop requires evaluation context")
	}
	sel, ok := context.Relationships[expr.Rel]
	if !ok {
		return nil, evalErr(context, "relationship %q not found", expr.Rel)
	}
	ids, resolvable := relationshipIds(sel)
	if !resolvable || len(ids) == 0 {
		return nil, evalErr(context, "relationship %q has no resolvable single target", expr.Rel)
	}
	target := ctx.instanceByID(ids[0])
	if target == nil {
		return nil, evalErr(context, "relationship %q target %q not found", expr.Rel, ids[0])
	}
	return GetPropertyValue(target, expr.Prop)
}

// overIds returns the target id list of a Sum/Count "over" relationship.
func overIds(context *model.Instance, rel string) []string {
	sel, ok := context.Relationships[rel]
	if !ok {
		return nil
	}
	ids, resolvable := relationshipIds(sel)
	if !resolvable {
		return nil
	}
	return ids
}

func evaluateSum(ctx *Context, expr model.Expr, context *model.Instance) (any, error) {
	if ctx == nil {
		return float64(0), nil
	}
	var sum float64
	for _, id := range overIds(context, expr.Rel) {
		target := ctx.instanceByID(id)
		if target == nil {
			continue
		}
		// Sum only includes instances actually selected in this
		// configuration (domain.lower >= 1, model.Domain.Selected); a
		// pooled-but-unselected instance contributes nothing.
		if target.Domain != nil && !target.Domain.Selected() {
			continue
		}
		if expr.Where != nil && !EvaluateBoolExpr(*expr.Where, target) {
			continue
		}
		val, err := GetPropertyValue(target, expr.Prop)
		if err != nil {
			continue
		}
		if n, ok := toNumber(val); ok {
			sum += n
		}
	}
	return sum, nil
}

// evaluateCount counts target ids unconditionally; the domain-selected
// rule applies to Sum only. A where guard narrows the count to targets
// satisfying it.
func evaluateCount(ctx *Context, expr model.Expr, context *model.Instance) (any, error) {
	ids := overIds(context, expr.Rel)
	if expr.Where == nil {
		return float64(len(ids)), nil
	}
	if ctx == nil {
		return float64(0), nil
	}
	var n int
	for _, id := range ids {
		target := ctx.instanceByID(id)
		if target == nil {
			continue
		}
		if EvaluateBoolExpr(*expr.Where, target) {
			n++
		}
	}
	return float64(n), nil
}

// EvaluateDerivedProperties evaluates the requested derived properties
// declared on context's class; a nil or empty names list means all of
// them. Evaluation is best-effort: an expression error is logged and
// that derived property is omitted, without failing the rest.
func EvaluateDerivedProperties(ctx *Context, context *model.Instance, names []string) map[string]any {
	out := make(map[string]any)
	if ctx.Schema == nil {
		return out
	}
	class := ctx.Schema.ClassByID(context.ClassId)
	if class == nil {
		return out
	}
	requested := map[string]bool(nil)
	if len(names) > 0 {
		requested = make(map[string]bool, len(names))
		for _, n := range names {
			requested[n] = true
		}
	}
	for _, derived := range class.Derived {
		if requested != nil && !requested[derived.Name] && !requested[derived.Id] {
			continue
		}
		val, err := EvaluateExpr(ctx, derived.Expr, context)
		if err != nil {
			logger.Printf("derived property %q on instance %q: %v", derived.Name, context.Id, err)
			continue
		}
		out[derived.Name] = val
	}
	return out
}
