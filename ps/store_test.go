package ps

import (
	"testing"

	"github.com/nickyhof/CommitDB/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	p, err := NewMemoryPersistence()
	if err != nil {
		t.Fatalf("NewMemoryPersistence: %v", err)
	}
	return NewStore(&p)
}

func TestDatabaseCRUD(t *testing.T) {
	s := newTestStore(t)

	db, err := s.CreateDatabase(model.Database{Name: "widgets", DefaultBranchName: "main"})
	if err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	if db.Id == "" {
		t.Fatal("expected generated id")
	}

	got, err := s.GetDatabase(db.Id)
	if err != nil {
		t.Fatalf("GetDatabase: %v", err)
	}
	if got.Name != "widgets" {
		t.Fatalf("got name %q, want widgets", got.Name)
	}

	if _, err := s.CreateDatabase(model.Database{Id: db.Id, Name: "dup"}); err == nil {
		t.Fatal("expected conflict creating duplicate database id")
	}

	dbs, err := s.ListDatabases()
	if err != nil {
		t.Fatalf("ListDatabases: %v", err)
	}
	if len(dbs) != 1 {
		t.Fatalf("got %d databases, want 1", len(dbs))
	}

	if err := s.DeleteDatabase(db.Id); err != nil {
		t.Fatalf("DeleteDatabase: %v", err)
	}
	if gone, err := s.GetDatabase(db.Id); err != nil || gone != nil {
		t.Fatalf("expected database to be gone after delete, got %+v, err %v", gone, err)
	}
}

func TestBranchCRUD(t *testing.T) {
	s := newTestStore(t)
	db, _ := s.CreateDatabase(model.Database{Name: "widgets"})

	b, err := s.CreateBranch(model.Branch{DatabaseId: db.Id, Name: "main", CurrentCommitHash: "deadbeef"})
	if err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if b.Status != model.BranchActive {
		t.Fatalf("got status %q, want active", b.Status)
	}

	if _, err := s.CreateBranch(model.Branch{DatabaseId: db.Id, Name: "main"}); err == nil {
		t.Fatal("expected conflict creating duplicate branch")
	}

	b.CurrentCommitHash = "feedface"
	if err := s.UpsertBranch(b); err != nil {
		t.Fatalf("UpsertBranch: %v", err)
	}
	got, err := s.GetBranch(db.Id, "main")
	if err != nil {
		t.Fatalf("GetBranch: %v", err)
	}
	if got.CurrentCommitHash != "feedface" {
		t.Fatalf("got hash %q, want feedface", got.CurrentCommitHash)
	}

	if _, err := s.CreateBranch(model.Branch{DatabaseId: db.Id, Name: "feature"}); err != nil {
		t.Fatalf("CreateBranch feature: %v", err)
	}
	branches, err := s.ListBranches(db.Id)
	if err != nil {
		t.Fatalf("ListBranches: %v", err)
	}
	if len(branches) != 2 {
		t.Fatalf("got %d branches, want 2", len(branches))
	}

	if err := s.DeleteBranch(db.Id, "feature"); err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}
	if gone, err := s.GetBranch(db.Id, "feature"); err != nil || gone != nil {
		t.Fatalf("expected branch to be gone after delete, got %+v, err %v", gone, err)
	}
}

func TestCommitContentAddressing(t *testing.T) {
	s := newTestStore(t)
	db, _ := s.CreateDatabase(model.Database{Name: "widgets"})

	data := model.CommitData{
		Schema: model.Schema{Id: "s1", Classes: []model.ClassDef{{Id: "widget", Name: "Widget"}}},
	}

	c1, err := s.CreateCommit(model.NewCommit{DatabaseId: db.Id, Data: data})
	if err != nil {
		t.Fatalf("CreateCommit: %v", err)
	}
	if c1.Hash == "" {
		t.Fatal("expected non-empty hash")
	}

	c2, err := s.CreateCommit(model.NewCommit{DatabaseId: db.Id, Data: data})
	if err != nil {
		t.Fatalf("CreateCommit (repeat): %v", err)
	}
	if c2.Hash != c1.Hash {
		t.Fatalf("identical data produced different hashes: %s vs %s", c1.Hash, c2.Hash)
	}

	fetched, err := s.GetCommit(c1.Hash)
	if err != nil {
		t.Fatalf("GetCommit: %v", err)
	}
	if fetched.SchemaClassesCount != 1 {
		t.Fatalf("got %d classes, want 1", fetched.SchemaClassesCount)
	}

	roundTrip, err := s.GetCommitData(c1.Hash)
	if err != nil {
		t.Fatalf("GetCommitData: %v", err)
	}
	if len(roundTrip.Schema.Classes) != 1 || roundTrip.Schema.Classes[0].Id != "widget" {
		t.Fatalf("round-tripped data mismatch: %+v", roundTrip.Schema)
	}

	exists, err := s.CommitExists(c1.Hash)
	if err != nil {
		t.Fatalf("CommitExists: %v", err)
	}
	if !exists {
		t.Fatal("expected commit to exist")
	}
	missing, err := s.CommitExists("not-a-real-hash")
	if err != nil {
		t.Fatalf("CommitExists (missing): %v", err)
	}
	if missing {
		t.Fatal("expected missing commit to report false")
	}
}

func TestInstanceProjectionsReadFromBranchTip(t *testing.T) {
	s := newTestStore(t)
	db, _ := s.CreateDatabase(model.Database{Name: "widgets"})

	data := model.CommitData{
		Instances: []model.Instance{
			{Id: "w1", ClassId: "widget"},
			{Id: "g1", ClassId: "gadget"},
		},
	}
	c, err := s.CreateCommit(model.NewCommit{DatabaseId: db.Id, Data: data})
	if err != nil {
		t.Fatalf("CreateCommit: %v", err)
	}
	if _, err := s.CreateBranch(model.Branch{DatabaseId: db.Id, Name: "main", CurrentCommitHash: c.Hash}); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}

	all, err := s.ListInstancesForBranch(db.Id, "main", nil)
	if err != nil {
		t.Fatalf("ListInstancesForBranch: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d instances, want 2", len(all))
	}

	widgets, err := s.FindByTypeInBranch(db.Id, "main", "widget")
	if err != nil {
		t.Fatalf("FindByTypeInBranch: %v", err)
	}
	if len(widgets) != 1 || widgets[0].Id != "w1" {
		t.Fatalf("got %+v, want single widget w1", widgets)
	}

	inst, err := s.GetInstance(db.Id, "main", "g1")
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if inst.ClassId != "gadget" {
		t.Fatalf("got class %q, want gadget", inst.ClassId)
	}

	if _, err := s.GetInstance(db.Id, "main", "nope"); err == nil {
		t.Fatal("expected not-found error for missing instance")
	}
}

func TestWorkingCommitUniquenessPerBranch(t *testing.T) {
	s := newTestStore(t)
	db, _ := s.CreateDatabase(model.Database{Name: "widgets"})

	wc, err := s.CreateWorkingCommit(db.Id, "main", model.NewWorkingCommit{BasedOnHash: "deadbeef"})
	if err != nil {
		t.Fatalf("CreateWorkingCommit: %v", err)
	}

	if _, err := s.CreateWorkingCommit(db.Id, "main", model.NewWorkingCommit{BasedOnHash: "deadbeef"}); err == nil {
		t.Fatal("expected conflict creating a second active working commit on the same branch")
	}

	active, err := s.GetActiveWorkingCommitForBranch(db.Id, "main")
	if err != nil {
		t.Fatalf("GetActiveWorkingCommitForBranch: %v", err)
	}
	if active.Id != wc.Id {
		t.Fatalf("got %s, want %s", active.Id, wc.Id)
	}

	wc.Status = model.WCAbandoned
	if err := s.UpdateWorkingCommit(wc); err != nil {
		t.Fatalf("UpdateWorkingCommit: %v", err)
	}

	if wc, err := s.GetActiveWorkingCommitForBranch(db.Id, "main"); err != nil || wc != nil {
		t.Fatalf("expected no active working commit once abandoned, got %+v, err %v", wc, err)
	}

	// Abandoning frees the branch up for a new working commit.
	wc2, err := s.CreateWorkingCommit(db.Id, "main", model.NewWorkingCommit{BasedOnHash: "deadbeef"})
	if err != nil {
		t.Fatalf("CreateWorkingCommit after abandon: %v", err)
	}
	if wc2.Id == wc.Id {
		t.Fatal("expected a fresh working commit id")
	}

	if err := s.DeleteWorkingCommit(wc2.Id); err != nil {
		t.Fatalf("DeleteWorkingCommit: %v", err)
	}
	if gone, err := s.GetWorkingCommit(wc2.Id); err != nil || gone != nil {
		t.Fatalf("expected working commit to be gone after delete, got %+v, err %v", gone, err)
	}
}
