package store

import (
	"testing"

	"github.com/nickyhof/CommitDB/model"
)

type fakeBranchStore struct {
	branches map[string]model.Branch // key: databaseID+"/"+name
}

func (f *fakeBranchStore) CreateBranch(b model.Branch) (model.Branch, error) {
	f.branches[b.DatabaseId+"/"+b.Name] = b
	return b, nil
}
func (f *fakeBranchStore) GetBranch(databaseID, name string) (*model.Branch, error) {
	b, ok := f.branches[databaseID+"/"+name]
	if !ok {
		return nil, nil
	}
	return &b, nil
}
func (f *fakeBranchStore) ListBranches(databaseID string) ([]model.Branch, error) {
	var out []model.Branch
	for _, b := range f.branches {
		if b.DatabaseId == databaseID {
			out = append(out, b)
		}
	}
	return out, nil
}
func (f *fakeBranchStore) UpsertBranch(b model.Branch) error {
	f.branches[b.DatabaseId+"/"+b.Name] = b
	return nil
}
func (f *fakeBranchStore) DeleteBranch(databaseID, name string) error {
	delete(f.branches, databaseID+"/"+name)
	return nil
}

func TestLegacyBranchResolver(t *testing.T) {
	backing := &fakeBranchStore{branches: map[string]model.Branch{}}
	backing.branches["db1/main"] = model.Branch{DatabaseId: "db1", Name: "main", CurrentCommitHash: "abc"}

	resolver := NewLegacyBranchResolver(backing)

	if got, err := resolver.GetByLegacyID("legacy-42"); err != nil || got != nil {
		t.Fatalf("expected unregistered legacy id to resolve to nil, got %+v, err %v", got, err)
	}

	resolver.Register("legacy-42", "db1", "main")
	got, err := resolver.GetByLegacyID("legacy-42")
	if err != nil {
		t.Fatalf("GetByLegacyID: %v", err)
	}
	if got == nil || got.CurrentCommitHash != "abc" {
		t.Fatalf("got %+v, want branch with hash abc", got)
	}

	branches, err := resolver.ListByLegacyDatabaseID("db1")
	if err != nil {
		t.Fatalf("ListByLegacyDatabaseID: %v", err)
	}
	if len(branches) != 1 {
		t.Fatalf("got %d branches, want 1", len(branches))
	}
}
