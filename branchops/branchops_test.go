package branchops

import (
	"errors"
	"testing"

	"github.com/nickyhof/CommitDB/model"
	"github.com/nickyhof/CommitDB/ps"
	"github.com/nickyhof/CommitDB/store"
)

func newTestStore(t *testing.T) *ps.Store {
	t.Helper()
	p, err := ps.NewMemoryPersistence()
	if err != nil {
		t.Fatalf("NewMemoryPersistence: %v", err)
	}
	return ps.NewStore(&p)
}

func colorSchema() model.Schema {
	return model.Schema{
		Id: "s1",
		Classes: []model.ClassDef{{
			Id:   "color",
			Name: "Color",
			Properties: []model.PropertyDef{
				{Id: "price", Name: "price", DataType: model.DataNumber},
			},
		}},
	}
}

func colorInstance(id string, price float64) model.Instance {
	return model.Instance{
		Id:      id,
		ClassId: "color",
		Properties: map[string]model.PropertyValue{
			"price": model.LiteralValue(price, model.DataNumber),
		},
	}
}

// seedBranch creates a database with one branch pointing at an initial
// commit holding data, and returns the database id and the commit hash.
func seedBranch(t *testing.T, s *ps.Store, branchName string, data model.CommitData) (string, string) {
	t.Helper()
	db, err := s.CreateDatabase(model.Database{Name: "testdb", DefaultBranchName: branchName})
	if err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	c, err := s.CreateCommit(model.NewCommit{DatabaseId: db.Id, Data: data})
	if err != nil {
		t.Fatalf("CreateCommit: %v", err)
	}
	if _, err := s.CreateBranch(model.Branch{DatabaseId: db.Id, Name: branchName, CurrentCommitHash: c.Hash}); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	return db.Id, c.Hash
}

// stage opens a working commit on branch, replaces its staged data, and
// persists the edit.
func stage(t *testing.T, s *ps.Store, dbID, branchName string, data model.CommitData) model.WorkingCommit {
	t.Helper()
	wc, err := CreateWorkingCommit(s, dbID, branchName, nil)
	if err != nil {
		t.Fatalf("CreateWorkingCommit: %v", err)
	}
	wc.SetData(data)
	if err := s.UpdateWorkingCommit(wc); err != nil {
		t.Fatalf("UpdateWorkingCommit: %v", err)
	}
	return wc
}

func TestCommitFastForward(t *testing.T) {
	s := newTestStore(t)
	base := model.CommitData{
		Schema:    colorSchema(),
		Instances: []model.Instance{colorInstance("red", 100)},
	}
	dbID, baseHash := seedBranch(t, s, "main", base)

	edited := base.Clone()
	edited.Instances = append(edited.Instances, colorInstance("blue", 150))
	stage(t, s, dbID, "main", edited)

	commit, err := CommitWorkingCommit(s, dbID, "main", "add blue", nil)
	if err != nil {
		t.Fatalf("CommitWorkingCommit: %v", err)
	}
	if commit.ParentHash == nil || *commit.ParentHash != baseHash {
		t.Fatalf("got parent %v, want %s", commit.ParentHash, baseHash)
	}

	branch, err := s.GetBranch(dbID, "main")
	if err != nil {
		t.Fatalf("GetBranch: %v", err)
	}
	if branch.CurrentCommitHash != commit.Hash {
		t.Fatalf("branch tip %s, want %s", branch.CurrentCommitHash, commit.Hash)
	}

	instances, err := s.ListInstancesForBranch(dbID, "main", nil)
	if err != nil {
		t.Fatalf("ListInstancesForBranch: %v", err)
	}
	if len(instances) != 2 || instances[0].Id != "blue" || instances[1].Id != "red" {
		t.Fatalf("got %+v, want [blue red]", instances)
	}

	// The working commit is consumed by the commit.
	if wc, err := s.GetActiveWorkingCommitForBranch(dbID, "main"); err != nil || wc != nil {
		t.Fatalf("expected no active working commit after commit, got %+v, err %v", wc, err)
	}
}

func TestCommitStaleBase(t *testing.T) {
	s := newTestStore(t)
	base := model.CommitData{Schema: colorSchema()}
	dbID, _ := seedBranch(t, s, "main", base)

	stage(t, s, dbID, "main", base)

	// Simulate a concurrent commit advancing the branch tip underneath
	// the staged working commit.
	other := base.Clone()
	other.Instances = []model.Instance{colorInstance("green", 50)}
	c, err := s.CreateCommit(model.NewCommit{DatabaseId: dbID, Data: other})
	if err != nil {
		t.Fatalf("CreateCommit: %v", err)
	}
	branch, _ := s.GetBranch(dbID, "main")
	branch.CurrentCommitHash = c.Hash
	if err := s.UpsertBranch(*branch); err != nil {
		t.Fatalf("UpsertBranch: %v", err)
	}

	_, err = CommitWorkingCommit(s, dbID, "main", "too late", nil)
	var stale *store.StaleBaseError
	if !errors.As(err, &stale) {
		t.Fatalf("got %v, want StaleBaseError", err)
	}
}

func TestCreateWorkingCommitConflict(t *testing.T) {
	s := newTestStore(t)
	dbID, _ := seedBranch(t, s, "main", model.CommitData{Schema: colorSchema()})

	if _, err := CreateWorkingCommit(s, dbID, "main", nil); err != nil {
		t.Fatalf("CreateWorkingCommit: %v", err)
	}
	_, err := CreateWorkingCommit(s, dbID, "main", nil)
	var conflict *store.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("got %v, want ConflictError", err)
	}
}

// branchFrom forks a new branch off an existing branch's current tip.
func branchFrom(t *testing.T, s *ps.Store, dbID, parent, name string) {
	t.Helper()
	pb, err := s.GetBranch(dbID, parent)
	if err != nil || pb == nil {
		t.Fatalf("GetBranch %s: %v", parent, err)
	}
	if _, err := s.CreateBranch(model.Branch{
		DatabaseId:        dbID,
		Name:              name,
		ParentBranchName:  &parent,
		CurrentCommitHash: pb.CurrentCommitHash,
	}); err != nil {
		t.Fatalf("CreateBranch %s: %v", name, err)
	}
}

// commitOn stages data on branch and commits it.
func commitOn(t *testing.T, s *ps.Store, dbID, branchName, message string, data model.CommitData) model.Commit {
	t.Helper()
	stage(t, s, dbID, branchName, data)
	commit, err := CommitWorkingCommit(s, dbID, branchName, message, nil)
	if err != nil {
		t.Fatalf("CommitWorkingCommit on %s: %v", branchName, err)
	}
	return commit
}

func TestStartMergeClean(t *testing.T) {
	s := newTestStore(t)
	base := model.CommitData{Schema: colorSchema()}
	dbID, _ := seedBranch(t, s, "main", base)
	branchFrom(t, s, dbID, "main", "feat")

	onMain := base.Clone()
	onMain.Instances = []model.Instance{colorInstance("red", 100)}
	commitOn(t, s, dbID, "main", "add red", onMain)

	onFeat := base.Clone()
	onFeat.Instances = []model.Instance{colorInstance("blue", 150)}
	commitOn(t, s, dbID, "feat", "add blue", onFeat)

	wc, conflicts, err := StartMerge(s, dbID, "feat", "main", nil)
	if err != nil {
		t.Fatalf("StartMerge: %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("got %d conflicts, want 0", len(conflicts))
	}
	if wc.Status != model.WCActive {
		t.Fatalf("got status %q, want active", wc.Status)
	}
	if len(wc.InstancesData) != 2 || wc.InstancesData[0].Id != "blue" || wc.InstancesData[1].Id != "red" {
		t.Fatalf("staged instances %+v, want [blue red]", wc.InstancesData)
	}

	commit, err := CommitWorkingCommit(s, dbID, "main", "merge feat", nil)
	if err != nil {
		t.Fatalf("CommitWorkingCommit: %v", err)
	}
	if commit.InstancesCount != 2 {
		t.Fatalf("got %d instances in merge commit, want 2", commit.InstancesCount)
	}
}

func TestStartMergeConflictAndResolve(t *testing.T) {
	s := newTestStore(t)
	base := model.CommitData{
		Schema:    colorSchema(),
		Instances: []model.Instance{colorInstance("red", 100)},
	}
	dbID, _ := seedBranch(t, s, "main", base)
	branchFrom(t, s, dbID, "main", "feat")

	onMain := base.Clone()
	onMain.Instances[0].Properties["price"] = model.LiteralValue(float64(110), model.DataNumber)
	commitOn(t, s, dbID, "main", "price 110", onMain)

	onFeat := base.Clone()
	onFeat.Instances[0].Properties["price"] = model.LiteralValue(float64(120), model.DataNumber)
	commitOn(t, s, dbID, "feat", "price 120", onFeat)

	wc, conflicts, err := StartMerge(s, dbID, "feat", "main", nil)
	if err != nil {
		t.Fatalf("StartMerge: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("got %d conflicts, want 1", len(conflicts))
	}
	c := conflicts[0]
	if c.ConflictType != model.ConflictPatchPatch || c.ResourceId != "red" {
		t.Fatalf("got conflict %+v, want PatchPatch on red", c)
	}
	if len(c.FieldPath) != 1 || c.FieldPath[0] != "properties" {
		t.Fatalf("got field path %v, want [properties]", c.FieldPath)
	}
	if wc.Status != model.WCMerging || wc.MergeStateData == nil {
		t.Fatalf("got status %q, want merging with merge state", wc.Status)
	}

	// A second merge attempt on the same target is rejected outright.
	if _, _, err := StartMerge(s, dbID, "feat", "main", nil); !errors.Is(err, ErrMergeInProgress) {
		t.Fatalf("got %v, want ErrMergeInProgress", err)
	}

	// Committing while the merge is unresolved must not be possible: the
	// working commit is Merging, not Active.
	if _, err := CommitWorkingCommit(s, dbID, "main", "premature", nil); err == nil {
		t.Fatal("expected commit during unresolved merge to fail")
	}

	resolved, err := ResolveConflicts(s, wc.Id, map[int]model.Resolution{0: {Kind: model.TakeRight}})
	if err != nil {
		t.Fatalf("ResolveConflicts: %v", err)
	}
	if resolved.Status != model.WCActive || resolved.MergeStateData != nil {
		t.Fatalf("got status %q / state %+v, want active with cleared state", resolved.Status, resolved.MergeStateData)
	}

	data := resolved.Data()
	red := data.InstanceByID("red")
	if red == nil {
		t.Fatal("red missing from resolved data")
	}
	price := red.Properties["price"].Literal.Value
	if price != float64(120) {
		t.Fatalf("got price %v, want 120", price)
	}

	if _, err := CommitWorkingCommit(s, dbID, "main", "merge feat", nil); err != nil {
		t.Fatalf("CommitWorkingCommit after resolve: %v", err)
	}
}

func TestResolveConflictsPartial(t *testing.T) {
	s := newTestStore(t)
	base := model.CommitData{
		Schema: colorSchema(),
		Instances: []model.Instance{
			colorInstance("red", 100),
			colorInstance("blue", 200),
		},
	}
	dbID, _ := seedBranch(t, s, "main", base)
	branchFrom(t, s, dbID, "main", "feat")

	onMain := base.Clone()
	onMain.Instances[0].Properties["price"] = model.LiteralValue(float64(110), model.DataNumber)
	onMain.Instances[1].Properties["price"] = model.LiteralValue(float64(210), model.DataNumber)
	commitOn(t, s, dbID, "main", "bump", onMain)

	onFeat := base.Clone()
	onFeat.Instances[0].Properties["price"] = model.LiteralValue(float64(120), model.DataNumber)
	onFeat.Instances[1].Properties["price"] = model.LiteralValue(float64(220), model.DataNumber)
	commitOn(t, s, dbID, "feat", "bump more", onFeat)

	wc, conflicts, err := StartMerge(s, dbID, "feat", "main", nil)
	if err != nil {
		t.Fatalf("StartMerge: %v", err)
	}
	if len(conflicts) != 2 {
		t.Fatalf("got %d conflicts, want 2", len(conflicts))
	}

	_, err = ResolveConflicts(s, wc.Id, map[int]model.Resolution{0: {Kind: model.TakeLeft}})
	var partial *PartiallyResolvedError
	if !errors.As(err, &partial) {
		t.Fatalf("got %v, want PartiallyResolvedError", err)
	}
	if partial.Resolved != 1 || partial.Total != 2 {
		t.Fatalf("got %d/%d, want 1/2", partial.Resolved, partial.Total)
	}

	// The partial resolution is persisted; supplying the rest completes.
	resolved, err := ResolveConflicts(s, wc.Id, map[int]model.Resolution{1: {Kind: model.TakeRight}})
	if err != nil {
		t.Fatalf("ResolveConflicts (complete): %v", err)
	}
	if resolved.MergeStateData != nil {
		t.Fatal("expected merge state cleared after full resolution")
	}
}

func TestAbortMerge(t *testing.T) {
	s := newTestStore(t)
	base := model.CommitData{
		Schema:    colorSchema(),
		Instances: []model.Instance{colorInstance("red", 100)},
	}
	dbID, _ := seedBranch(t, s, "main", base)
	branchFrom(t, s, dbID, "main", "feat")

	onMain := base.Clone()
	onMain.Instances[0].Properties["price"] = model.LiteralValue(float64(110), model.DataNumber)
	commitOn(t, s, dbID, "main", "bump", onMain)

	onFeat := base.Clone()
	onFeat.Instances[0].Properties["price"] = model.LiteralValue(float64(120), model.DataNumber)
	commitOn(t, s, dbID, "feat", "bump more", onFeat)

	wc, _, err := StartMerge(s, dbID, "feat", "main", nil)
	if err != nil {
		t.Fatalf("StartMerge: %v", err)
	}
	if err := AbortMerge(s, wc.Id); err != nil {
		t.Fatalf("AbortMerge: %v", err)
	}
	if gone, err := s.GetWorkingCommit(wc.Id); err != nil || gone != nil {
		t.Fatalf("expected working commit gone after abort, got %+v, err %v", gone, err)
	}
}

func TestValidateMergeDoesNotCreateWorkingCommit(t *testing.T) {
	s := newTestStore(t)
	base := model.CommitData{Schema: colorSchema()}
	dbID, _ := seedBranch(t, s, "main", base)
	branchFrom(t, s, dbID, "main", "feat")

	onFeat := base.Clone()
	onFeat.Instances = []model.Instance{colorInstance("blue", 150)}
	commitOn(t, s, dbID, "feat", "add blue", onFeat)

	conflicts, err := ValidateMerge(s, dbID, "feat", "main")
	if err != nil {
		t.Fatalf("ValidateMerge: %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("got %d conflicts, want 0", len(conflicts))
	}
	if wc, err := s.GetActiveWorkingCommitForBranch(dbID, "main"); err != nil || wc != nil {
		t.Fatalf("expected no working commit from ValidateMerge, got %+v, err %v", wc, err)
	}
}

func TestRebaseAlreadyUpToDate(t *testing.T) {
	s := newTestStore(t)
	base := model.CommitData{Schema: colorSchema()}
	dbID, _ := seedBranch(t, s, "main", base)
	branchFrom(t, s, dbID, "main", "feat")

	// feat diverged; main has nothing new since the fork point.
	onFeat := base.Clone()
	onFeat.Instances = []model.Instance{colorInstance("blue", 150)}
	commitOn(t, s, dbID, "feat", "add blue", onFeat)

	result, err := Rebase(s, dbID, "feat", "main", nil, false)
	if err != nil {
		t.Fatalf("Rebase: %v", err)
	}
	if !result.Success || result.Message != "already up to date" {
		t.Fatalf("got %+v, want already-up-to-date success", result)
	}
}

func TestRebaseReplaysFeatureOntoTarget(t *testing.T) {
	s := newTestStore(t)
	base := model.CommitData{Schema: colorSchema()}
	dbID, _ := seedBranch(t, s, "main", base)
	branchFrom(t, s, dbID, "main", "feat")

	onMain := base.Clone()
	onMain.Instances = []model.Instance{colorInstance("red", 100)}
	commitOn(t, s, dbID, "main", "add red", onMain)

	onFeat := base.Clone()
	onFeat.Instances = []model.Instance{colorInstance("blue", 150)}
	commitOn(t, s, dbID, "feat", "add blue", onFeat)

	result, err := Rebase(s, dbID, "feat", "main", nil, false)
	if err != nil {
		t.Fatalf("Rebase: %v", err)
	}
	if !result.Success {
		t.Fatalf("rebase failed: %+v", result)
	}
	if result.RebasedInstances != 2 {
		t.Fatalf("got %d rebased instances, want 2", result.RebasedInstances)
	}

	main, _ := s.GetBranch(dbID, "main")
	feature, _ := s.GetBranch(dbID, "feat")
	tip, err := s.GetCommit(feature.CurrentCommitHash)
	if err != nil {
		t.Fatalf("GetCommit: %v", err)
	}
	if tip.ParentHash == nil || *tip.ParentHash != main.CurrentCommitHash {
		t.Fatalf("rebased tip parent %v, want main tip %s", tip.ParentHash, main.CurrentCommitHash)
	}
	if feature.ParentBranchName == nil || *feature.ParentBranchName != "main" {
		t.Fatalf("got parent branch %v, want main", feature.ParentBranchName)
	}

	instances, err := s.ListInstancesForBranch(dbID, "feat", nil)
	if err != nil {
		t.Fatalf("ListInstancesForBranch: %v", err)
	}
	if len(instances) != 2 {
		t.Fatalf("got %d instances on rebased feat, want 2", len(instances))
	}
}

func TestRebaseConflictRequiresForce(t *testing.T) {
	s := newTestStore(t)
	base := model.CommitData{
		Schema:    colorSchema(),
		Instances: []model.Instance{colorInstance("red", 100)},
	}
	dbID, _ := seedBranch(t, s, "main", base)
	branchFrom(t, s, dbID, "main", "feat")

	onMain := base.Clone()
	onMain.Instances[0].Properties["price"] = model.LiteralValue(float64(110), model.DataNumber)
	commitOn(t, s, dbID, "main", "price 110", onMain)

	onFeat := base.Clone()
	onFeat.Instances[0].Properties["price"] = model.LiteralValue(float64(120), model.DataNumber)
	commitOn(t, s, dbID, "feat", "price 120", onFeat)

	result, err := Rebase(s, dbID, "feat", "main", nil, false)
	if err != nil {
		t.Fatalf("Rebase: %v", err)
	}
	if result.Success || len(result.Conflicts) == 0 {
		t.Fatalf("got %+v, want conflict failure", result)
	}

	// force lets the feature branch win the conflicted field.
	forced, err := Rebase(s, dbID, "feat", "main", nil, true)
	if err != nil {
		t.Fatalf("Rebase (force): %v", err)
	}
	if !forced.Success {
		t.Fatalf("forced rebase failed: %+v", forced)
	}
	inst, err := s.GetInstance(dbID, "feat", "red")
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if inst.Properties["price"].Literal.Value != float64(120) {
		t.Fatalf("got price %v, want feature's 120", inst.Properties["price"].Literal.Value)
	}
}

func TestDeleteBranchRefusesOpenWorkingCommit(t *testing.T) {
	s := newTestStore(t)
	dbID, _ := seedBranch(t, s, "main", model.CommitData{Schema: colorSchema()})
	branchFrom(t, s, dbID, "main", "feat")

	if _, err := CreateWorkingCommit(s, dbID, "feat", nil); err != nil {
		t.Fatalf("CreateWorkingCommit: %v", err)
	}

	// Even force cannot delete a branch with an open working commit.
	err := DeleteBranch(s, dbID, "feat", true)
	var conflict *store.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("got %v, want ConflictError", err)
	}

	wc, _ := s.GetActiveWorkingCommitForBranch(dbID, "feat")
	if err := AbortMerge(s, wc.Id); err != nil {
		t.Fatalf("AbortMerge: %v", err)
	}

	// Active branch without force still refuses.
	if err := DeleteBranch(s, dbID, "feat", false); err == nil {
		t.Fatal("expected delete of active branch without force to fail")
	}
	if err := DeleteBranch(s, dbID, "feat", true); err != nil {
		t.Fatalf("DeleteBranch (force): %v", err)
	}
}
