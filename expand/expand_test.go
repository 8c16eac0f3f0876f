package expand

import (
	"testing"

	"github.com/nickyhof/CommitDB/model"
)

func TestExpandInstancePropertiesAndExplicitRelationship(t *testing.T) {
	schema := model.Schema{Classes: []model.ClassDef{
		{
			Id: "car",
			Relationships: []model.RelationshipDef{
				{Id: "wheels", Targets: []string{"wheel"}, DefaultPool: model.DefaultPool{Kind: model.PoolNone}},
			},
		},
		{Id: "wheel"},
	}}
	car := model.Instance{
		Id:      "car1",
		ClassId: "car",
		Properties: map[string]model.PropertyValue{
			"color": model.LiteralValue("red", model.DataString),
		},
		Relationships: map[string]model.RelationshipSelection{
			"wheels": model.SimpleIdsSelection([]string{"w1", "w2"}),
		},
	}
	w1 := model.Instance{Id: "w1", ClassId: "wheel"}
	w2 := model.Instance{Id: "w2", ClassId: "wheel"}
	data := &model.CommitData{Schema: schema, Instances: []model.Instance{car, w1, w2}}
	x := New(data)
	expanded, err := x.ExpandInstance(&car)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expanded.Properties["color"] != "red" {
		t.Fatalf("got %v, want red", expanded.Properties["color"])
	}
	rel := expanded.Relationships["wheels"]
	if len(rel.MaterializedIds) != 2 {
		t.Fatalf("got %v, want 2 materialized ids", rel.MaterializedIds)
	}
}

func TestExpandInstanceDefaultPoolAllQuantifierResolves(t *testing.T) {
	schema := model.Schema{Classes: []model.ClassDef{
		{
			Id: "car",
			Relationships: []model.RelationshipDef{
				{
					Id:          "wheels",
					Targets:     []string{"wheel"},
					Quantifier:  model.Quantifier{Kind: model.QAll},
					DefaultPool: model.DefaultPool{Kind: model.PoolAll},
				},
			},
		},
		{Id: "wheel"},
	}}
	car := model.Instance{Id: "car1", ClassId: "car", Relationships: map[string]model.RelationshipSelection{}}
	w1 := model.Instance{Id: "w1", ClassId: "wheel"}
	data := &model.CommitData{Schema: schema, Instances: []model.Instance{car, w1}}
	x := New(data)
	expanded, err := x.ExpandInstance(&car)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rel := expanded.Relationships["wheels"]
	if rel.ResolutionMethod != model.PoolFilterResolved {
		t.Fatalf("got method %v, want PoolFilterResolved for All quantifier", rel.ResolutionMethod)
	}
	if len(rel.MaterializedIds) != 1 {
		t.Fatalf("got %v, want 1 materialized id", rel.MaterializedIds)
	}
}

func TestExpandInstanceUnknownClassErrors(t *testing.T) {
	data := &model.CommitData{}
	x := New(data)
	inst := model.Instance{Id: "i1", ClassId: "missing"}
	if _, err := x.ExpandInstance(&inst); err == nil {
		t.Fatal("expected error for missing class definition")
	}
}

func TestExpandInstanceExplicitIdsMethod(t *testing.T) {
	schema := model.Schema{Classes: []model.ClassDef{
		{
			Id: "car",
			Relationships: []model.RelationshipDef{
				{Id: "wheels", Targets: []string{"wheel"}, DefaultPool: model.DefaultPool{Kind: model.PoolNone}},
			},
		},
		{Id: "wheel"},
	}}
	car := model.Instance{
		Id:      "car1",
		ClassId: "car",
		Relationships: map[string]model.RelationshipSelection{
			"wheels": model.SimpleIdsSelection([]string{"w1"}),
		},
	}
	data := &model.CommitData{Schema: schema, Instances: []model.Instance{car, {Id: "w1", ClassId: "wheel"}}}
	expanded, err := New(data).ExpandInstance(&car)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := expanded.Relationships["wheels"].ResolutionMethod; got != model.ExplicitIds {
		t.Fatalf("got method %v, want ExplicitIds", got)
	}
}

func TestExpandInstancePoolOverrideWithUnresolvedSelection(t *testing.T) {
	lt160 := model.BoolExpr{
		Kind: model.BoolAll,
		Predicates: []model.Predicate{
			{Kind: model.PredPropLt, Prop: "price", Value: float64(160)},
		},
	}
	schema := model.Schema{Classes: []model.ClassDef{
		{
			Id: "car",
			Relationships: []model.RelationshipDef{
				{
					Id:          "color",
					Targets:     []string{"color"},
					Quantifier:  model.QuantifierExactly(1),
					DefaultPool: model.DefaultPool{Kind: model.PoolAll},
				},
			},
		},
		{Id: "color"},
	}}
	colorInst := func(id string, price float64) model.Instance {
		return model.Instance{Id: id, ClassId: "color", Properties: map[string]model.PropertyValue{
			"price": model.LiteralValue(price, model.DataNumber),
		}}
	}
	car := model.Instance{
		Id:      "car1",
		ClassId: "car",
		Relationships: map[string]model.RelationshipSelection{
			"color": {
				Kind:      model.SelPoolBased,
				Pool:      &model.InstanceFilter{WhereClause: &lt160},
				Selection: &model.SelectionSpec{Kind: model.SpecUnresolved},
			},
		},
	}
	data := &model.CommitData{Schema: schema, Instances: []model.Instance{
		car, colorInst("red", 100), colorInst("blue", 150), colorInst("gold", 200),
	}}
	expanded, err := New(data).ExpandInstance(&car)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rel := expanded.Relationships["color"]
	if rel.ResolutionMethod != model.PoolFilterResolved {
		t.Fatalf("got method %v, want PoolFilterResolved", rel.ResolutionMethod)
	}
	if len(rel.MaterializedIds) != 2 || rel.MaterializedIds[0] != "red" || rel.MaterializedIds[1] != "blue" {
		t.Fatalf("got %v, want [red blue]", rel.MaterializedIds)
	}
	if rel.Details.TotalPoolSize != 2 {
		t.Fatalf("got pool size %d, want 2", rel.Details.TotalPoolSize)
	}
}
