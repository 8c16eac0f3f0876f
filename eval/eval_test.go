package eval

import (
	"testing"

	"github.com/nickyhof/CommitDB/model"
)

func TestGetPropertyValueLiteral(t *testing.T) {
	inst := &model.Instance{
		Id: "i1",
		Properties: map[string]model.PropertyValue{
			"cost": model.LiteralValue(42.0, model.DataNumber),
		},
	}
	v, err := GetPropertyValue(inst, "cost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42.0 {
		t.Fatalf("got %v, want 42.0", v)
	}
}

func TestGetPropertyValueMissing(t *testing.T) {
	inst := &model.Instance{Id: "i1", Properties: map[string]model.PropertyValue{}}
	if _, err := GetPropertyValue(inst, "nope"); err == nil {
		t.Fatal("expected error for missing property")
	}
}

func TestEvaluateRuleSetFirstMatch(t *testing.T) {
	inst := &model.Instance{
		Id: "i1",
		Relationships: map[string]model.RelationshipSelection{
			"engine": model.SimpleIdsSelection([]string{"e1"}),
		},
	}
	rs := model.RuleSet{
		Branches: []model.RuleBranch{
			{When: model.BoolExpr{Kind: model.BoolSimpleAll, SimpleAll: []string{"engine"}}, Then: "has-engine"},
		},
		Default: "no-engine",
	}
	got := EvaluateRuleSet(rs, inst)
	if got != "has-engine" {
		t.Fatalf("got %v, want has-engine", got)
	}
}

func TestEvaluateRuleSetDefault(t *testing.T) {
	inst := &model.Instance{Id: "i1", Relationships: map[string]model.RelationshipSelection{}}
	rs := model.RuleSet{
		Branches: []model.RuleBranch{
			{When: model.BoolExpr{Kind: model.BoolSimpleAll, SimpleAll: []string{"engine"}}, Then: "has-engine"},
		},
		Default: "no-engine",
	}
	got := EvaluateRuleSet(rs, inst)
	if got != "no-engine" {
		t.Fatalf("got %v, want no-engine", got)
	}
}

func TestEvaluateRuleSetZeroFallback(t *testing.T) {
	inst := &model.Instance{Id: "i1", Relationships: map[string]model.RelationshipSelection{}}
	rs := model.RuleSet{Branches: []model.RuleBranch{
		{When: model.BoolExpr{Kind: model.BoolSimpleAll, SimpleAll: []string{"engine"}}, Then: "x"},
	}}
	got := EvaluateRuleSet(rs, inst)
	if got != float64(0) {
		t.Fatalf("got %v, want 0", got)
	}
}

func TestEvaluatePredicateHasWithIds(t *testing.T) {
	inst := &model.Instance{
		Id: "i1",
		Relationships: map[string]model.RelationshipSelection{
			"parts": model.SimpleIdsSelection([]string{"p1", "p2"}),
		},
	}
	p := model.Predicate{Kind: model.PredHas, Rel: "parts", Ids: []string{"p1"}}
	if !evaluatePredicate(p, inst) {
		t.Fatal("expected has predicate to match")
	}
	p2 := model.Predicate{Kind: model.PredHas, Rel: "parts", Ids: []string{"p9"}}
	if evaluatePredicate(p2, inst) {
		t.Fatal("expected has predicate to not match missing id")
	}
}

func TestEvaluateExprArithmetic(t *testing.T) {
	inst := &model.Instance{Id: "i1", Properties: map[string]model.PropertyValue{
		"a": model.LiteralValue(2.0, model.DataNumber),
		"b": model.LiteralValue(3.0, model.DataNumber),
	}}
	expr := model.Expr{Kind: model.ExprAdd, Left: ptrExpr(model.PropExpr("a")), Right: ptrExpr(model.PropExpr("b"))}
	v, err := EvaluateExpr(nil, expr, inst)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 5.0 {
		t.Fatalf("got %v, want 5.0", v)
	}
}

func TestEvaluateExprDivisionByZero(t *testing.T) {
	expr := model.Expr{Kind: model.ExprDiv, Left: ptrExpr(model.LitNumber(1)), Right: ptrExpr(model.LitNumber(0))}
	inst := &model.Instance{Id: "i1"}
	if _, err := EvaluateExpr(nil, expr, inst); err == nil {
		t.Fatal("expected division-by-zero error")
	}
}

func TestEvaluateSumOnlySelectedTargets(t *testing.T) {
	selected := model.Instance{
		Id:     "p1",
		Domain: &model.Domain{Lower: 1, Upper: 1},
		Properties: map[string]model.PropertyValue{
			"cost": model.LiteralValue(10.0, model.DataNumber),
		},
	}
	unselected := model.Instance{
		Id:     "p2",
		Domain: &model.Domain{Lower: 0, Upper: 1},
		Properties: map[string]model.PropertyValue{
			"cost": model.LiteralValue(100.0, model.DataNumber),
		},
	}
	root := model.Instance{
		Id: "car1",
		Relationships: map[string]model.RelationshipSelection{
			"parts": model.SimpleIdsSelection([]string{"p1", "p2"}),
		},
	}
	data := &model.CommitData{Instances: []model.Instance{root, selected, unselected}}
	ctx := NewContext(data)
	expr := model.SumExpr("parts", "cost", nil)
	v, err := EvaluateExpr(ctx, expr, &root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 10.0 {
		t.Fatalf("got %v, want 10.0 (unselected part must be excluded)", v)
	}
}

func TestEvaluateCount(t *testing.T) {
	root := model.Instance{
		Id: "car1",
		Relationships: map[string]model.RelationshipSelection{
			"parts": model.SimpleIdsSelection([]string{"p1", "p2"}),
		},
	}
	p1 := model.Instance{Id: "p1", Domain: &model.Domain{Lower: 1, Upper: 1}}
	p2 := model.Instance{Id: "p2", Domain: &model.Domain{Lower: 1, Upper: 1}}
	data := &model.CommitData{Instances: []model.Instance{root, p1, p2}}
	ctx := NewContext(data)
	expr := model.CountExpr("parts", nil)
	v, err := EvaluateExpr(ctx, expr, &root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != float64(2) {
		t.Fatalf("got %v, want 2", v)
	}
}

func TestEvaluateIfExpr(t *testing.T) {
	inst := &model.Instance{Id: "i1", Relationships: map[string]model.RelationshipSelection{
		"engine": model.SimpleIdsSelection([]string{"e1"}),
	}}
	cond := model.BoolExpr{Kind: model.BoolSimpleAll, SimpleAll: []string{"engine"}}
	expr := model.Expr{Kind: model.ExprIf, Cond: &cond, Then: ptrExpr(model.LitString("yes")), Else: ptrExpr(model.LitString("no"))}
	v, err := EvaluateExpr(nil, expr, inst)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "yes" {
		t.Fatalf("got %v, want yes", v)
	}
}

func TestEvaluateDerivedPropertiesSkipsErrors(t *testing.T) {
	schema := model.Schema{Classes: []model.ClassDef{
		{
			Id: "car",
			Derived: []model.DerivedDef{
				{Name: "total_cost", Expr: model.SumExpr("parts", "cost", nil)},
				{Name: "broken", Expr: model.PropExpr("missing")},
			},
		},
	}}
	root := model.Instance{
		Id:      "car1",
		ClassId: "car",
		Relationships: map[string]model.RelationshipSelection{
			"parts": model.SimpleIdsSelection([]string{"p1"}),
		},
	}
	p1 := model.Instance{Id: "p1", Domain: &model.Domain{Lower: 1, Upper: 1}, Properties: map[string]model.PropertyValue{
		"cost": model.LiteralValue(7.0, model.DataNumber),
	}}
	data := &model.CommitData{Schema: schema, Instances: []model.Instance{root, p1}}
	ctx := NewContext(data)
	out := EvaluateDerivedProperties(ctx, &root, nil)
	if out["total_cost"] != 7.0 {
		t.Fatalf("got %v, want 7.0", out["total_cost"])
	}
	if _, ok := out["broken"]; ok {
		t.Fatal("expected broken derived property to be skipped, not present")
	}
}

func TestEvaluateCountIgnoresDomainSelection(t *testing.T) {
	root := model.Instance{
		Id: "car1",
		Relationships: map[string]model.RelationshipSelection{
			"parts": model.SimpleIdsSelection([]string{"p1", "p2"}),
		},
	}
	p1 := model.Instance{Id: "p1", Domain: &model.Domain{Lower: 1, Upper: 1}}
	p2 := model.Instance{Id: "p2", Domain: &model.Domain{Lower: 0, Upper: 1}}
	data := &model.CommitData{Instances: []model.Instance{root, p1, p2}}
	ctx := NewContext(data)
	v, err := EvaluateExpr(ctx, model.CountExpr("parts", nil), &root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != float64(2) {
		t.Fatalf("got %v, want 2 (count does not filter by domain)", v)
	}
}

func TestEvaluateCountWithWhere(t *testing.T) {
	root := model.Instance{
		Id: "car1",
		Relationships: map[string]model.RelationshipSelection{
			"parts": model.SimpleIdsSelection([]string{"p1", "p2"}),
		},
	}
	cheap := model.BoolExpr{Kind: model.BoolAll, Predicates: []model.Predicate{
		{Kind: model.PredPropLt, Prop: "cost", Value: float64(50)},
	}}
	p1 := model.Instance{Id: "p1", Properties: map[string]model.PropertyValue{
		"cost": model.LiteralValue(10.0, model.DataNumber),
	}}
	p2 := model.Instance{Id: "p2", Properties: map[string]model.PropertyValue{
		"cost": model.LiteralValue(100.0, model.DataNumber),
	}}
	data := &model.CommitData{Instances: []model.Instance{root, p1, p2}}
	ctx := NewContext(data)
	v, err := EvaluateExpr(ctx, model.CountExpr("parts", &cheap), &root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != float64(1) {
		t.Fatalf("got %v, want 1", v)
	}
}

func TestEvaluateDerivedPropertiesRequestedNames(t *testing.T) {
	schema := model.Schema{Classes: []model.ClassDef{
		{
			Id: "car",
			Derived: []model.DerivedDef{
				{Id: "d1", Name: "doubled", Expr: model.Expr{Kind: model.ExprMul, Left: ptrExpr(model.PropExpr("cost")), Right: ptrExpr(model.LitNumber(2))}},
				{Id: "d2", Name: "tripled", Expr: model.Expr{Kind: model.ExprMul, Left: ptrExpr(model.PropExpr("cost")), Right: ptrExpr(model.LitNumber(3))}},
			},
		},
	}}
	root := model.Instance{Id: "car1", ClassId: "car", Properties: map[string]model.PropertyValue{
		"cost": model.LiteralValue(5.0, model.DataNumber),
	}}
	data := &model.CommitData{Schema: schema, Instances: []model.Instance{root}}
	ctx := NewContext(data)
	out := EvaluateDerivedProperties(ctx, &root, []string{"doubled"})
	if out["doubled"] != 10.0 {
		t.Fatalf("got %v, want 10.0", out["doubled"])
	}
	if _, ok := out["tripled"]; ok {
		t.Fatal("unrequested derived property must be omitted")
	}
}

func ptrExpr(e model.Expr) *model.Expr { return &e }
