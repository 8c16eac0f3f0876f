package diff

import (
	"testing"

	"github.com/nickyhof/CommitDB/model"
)

func opByResource(ops []model.ChangeOp, id string) *model.ChangeOp {
	for i := range ops {
		if ops[i].ResourceID() == id {
			return &ops[i]
		}
	}
	return nil
}

func TestComputeDiffClassAddDeletePatch(t *testing.T) {
	from := &model.CommitData{
		Schema: model.Schema{Classes: []model.ClassDef{
			{Id: "widget", Name: "Widget"},
			{Id: "gadget", Name: "Gadget"},
		}},
	}
	to := &model.CommitData{
		Schema: model.Schema{Classes: []model.ClassDef{
			{Id: "widget", Name: "Widget V2"},
			{Id: "gizmo", Name: "Gizmo"},
		}},
	}

	d := ComputeDiff(from, to)
	if len(d.Ops) != 3 {
		t.Fatalf("got %d ops, want 3: %+v", len(d.Ops), d.Ops)
	}

	gadgetOp := opByResource(d.Ops, "gadget")
	if gadgetOp == nil || gadgetOp.Kind != model.OpDeleteClass {
		t.Fatalf("expected delete op for gadget, got %+v", gadgetOp)
	}

	gizmoOp := opByResource(d.Ops, "gizmo")
	if gizmoOp == nil || gizmoOp.Kind != model.OpAddClass || gizmoOp.Class == nil || gizmoOp.Class.Name != "Gizmo" {
		t.Fatalf("expected add op for gizmo, got %+v", gizmoOp)
	}

	widgetOp := opByResource(d.Ops, "widget")
	if widgetOp == nil || widgetOp.Kind != model.OpPatchClass {
		t.Fatalf("expected patch op for widget, got %+v", widgetOp)
	}
	fc, ok := widgetOp.FieldChanges["name"]
	if !ok || fc.Old != "Widget" || fc.New != "Widget V2" {
		t.Fatalf("expected name field change Widget->Widget V2, got %+v", widgetOp.FieldChanges)
	}
}

func TestComputeDiffNoChangesProducesEmptyOps(t *testing.T) {
	data := &model.CommitData{
		Schema:    model.Schema{Classes: []model.ClassDef{{Id: "widget", Name: "Widget"}}},
		Instances: []model.Instance{{Id: "w1", ClassId: "widget"}},
	}
	d := ComputeDiff(data, data)
	if len(d.Ops) != 0 {
		t.Fatalf("expected no ops diffing identical data, got %+v", d.Ops)
	}
}

func TestComputeDiffInstanceAddDeletePatch(t *testing.T) {
	from := &model.CommitData{Instances: []model.Instance{
		{Id: "w1", ClassId: "widget", Properties: map[string]model.PropertyValue{
			"cost": model.LiteralValue(10.0, model.DataNumber),
		}},
		{Id: "w2", ClassId: "widget"},
	}}
	to := &model.CommitData{Instances: []model.Instance{
		{Id: "w1", ClassId: "widget", Properties: map[string]model.PropertyValue{
			"cost": model.LiteralValue(20.0, model.DataNumber),
		}},
		{Id: "w3", ClassId: "widget"},
	}}

	d := ComputeDiff(from, to)

	w2Op := opByResource(d.Ops, "w2")
	if w2Op == nil || w2Op.Kind != model.OpDeleteInstance {
		t.Fatalf("expected delete op for w2, got %+v", w2Op)
	}
	w3Op := opByResource(d.Ops, "w3")
	if w3Op == nil || w3Op.Kind != model.OpAddInstance {
		t.Fatalf("expected add op for w3, got %+v", w3Op)
	}
	w1Op := opByResource(d.Ops, "w1")
	if w1Op == nil || w1Op.Kind != model.OpPatchInstance {
		t.Fatalf("expected patch op for w1, got %+v", w1Op)
	}
	if _, ok := w1Op.FieldChanges["properties"]; !ok {
		t.Fatalf("expected properties field change, got %+v", w1Op.FieldChanges)
	}
}

func TestComputeDiffOpsAreSortedByResourceId(t *testing.T) {
	from := &model.CommitData{}
	to := &model.CommitData{Instances: []model.Instance{
		{Id: "zeta", ClassId: "widget"},
		{Id: "alpha", ClassId: "widget"},
		{Id: "mu", ClassId: "widget"},
	}}

	d := ComputeDiff(from, to)
	var ids []string
	for _, op := range d.Ops {
		ids = append(ids, op.ResourceID())
	}
	want := []string{"alpha", "mu", "zeta"}
	for i, id := range want {
		if ids[i] != id {
			t.Fatalf("got order %v, want %v", ids, want)
		}
	}
}
