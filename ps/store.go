package ps

import (
	"fmt"
	"sort"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/nickyhof/CommitDB/canon"
	"github.com/nickyhof/CommitDB/core"
	"github.com/nickyhof/CommitDB/model"
	"github.com/nickyhof/CommitDB/store"
)

// systemIdentity attributes persistence-layer writes (branch pointer
// moves, working-commit bookkeeping) that are not themselves an
// authored domain commit.
var systemIdentity = core.Identity{Name: "commitdb", Email: "commitdb@localhost"}

const (
	databasesDir = "databases"
)

func dbMetaPath(id string) string        { return joinPath(databasesDir, id, "meta.json") }
func dbBranchesDir(id string) string      { return joinPath(databasesDir, id, "branches") }
func dbBranchPath(id, name string) string { return joinPath(dbBranchesDir(id), name+".json") }
func dbCommitsDir(id string) string       { return joinPath(databasesDir, id, "commits") }
func dbCommitMetaPath(id, hash string) string {
	return joinPath(dbCommitsDir(id), hash+".json")
}
func dbCommitPayloadPath(id, hash string) string {
	return joinPath(dbCommitsDir(id), hash+".payload")
}
func dbWorkingCommitsDir(id string) string { return joinPath(databasesDir, id, "working_commits") }
func dbWorkingCommitPath(id, wcID string) string {
	return joinPath(dbWorkingCommitsDir(id), wcID+".json")
}

// Store adapts Persistence's git-plumbing primitives to the store.Store
// contract: every database/branch/commit/working-commit record is a JSON
// blob at a well-known path, versioned by one underlying git commit per
// write. The git commit history produced here is an internal audit trail
// of this package, unrelated to the content-addressed model.Commit chain
// it stores as payloads.
//
// Single-item Get* methods for stored records (database, branch, commit,
// working commit) return (nil, nil) when the record is absent, never an
// error: absence is a normal outcome callers branch on (e.g. "no active
// working commit on this branch" is the common case), and component
// packages (branchops, merge) are written against that contract. The
// branch projections GetSchema and GetInstance instead return a
// store.NotFoundError when the branch, its commit, the active working
// commit or the instance is missing.
type Store struct {
	p     *Persistence
	types *typeIndex
}

// NewStore wraps an initialized Persistence as a store.Store.
func NewStore(p *Persistence) *Store {
	return &Store{p: p, types: newTypeIndex()}
}

var _ store.Store = (*Store)(nil)

// readJSON reports absence, and any failure to read the file, as
// (false, nil); an unmarshal failure as (false, err).
func (s *Store) readJSON(path string, out any) (bool, error) {
	data, err := s.p.ReadFileDirect(path)
	if err != nil {
		return false, nil
	}
	if err := gojson.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("corrupt record at %s: %w", path, err)
	}
	return true, nil
}

func (s *Store) writeJSON(path string, v any, identity core.Identity, message string) error {
	data, err := gojson.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	_, err = s.p.WriteFileDirect(path, data, identity, message)
	return err
}

// --- DatabaseStore ---

func (s *Store) CreateDatabase(db model.Database) (model.Database, error) {
	if db.Id == "" {
		db.Id = uuid.NewString()
	}
	if db.CreatedAt.IsZero() {
		db.CreatedAt = time.Now()
	}
	existing, err := s.GetDatabase(db.Id)
	if err != nil {
		return model.Database{}, err
	}
	if existing != nil {
		return model.Database{}, &store.ConflictError{Reason: "database already exists: " + db.Id}
	}
	if err := s.writeJSON(dbMetaPath(db.Id), db, systemIdentity, "create database "+db.Name); err != nil {
		return model.Database{}, err
	}
	return db, nil
}

func (s *Store) GetDatabase(id string) (*model.Database, error) {
	var db model.Database
	found, err := s.readJSON(dbMetaPath(id), &db)
	if err != nil || !found {
		return nil, err
	}
	return &db, nil
}

func (s *Store) ListDatabases() ([]model.Database, error) {
	entries, err := s.p.ListEntriesDirect(databasesDir)
	if err != nil {
		return nil, err
	}
	dbs := make([]model.Database, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir {
			continue
		}
		db, err := s.GetDatabase(e.Name)
		if err != nil || db == nil {
			continue
		}
		dbs = append(dbs, *db)
	}
	sort.Slice(dbs, func(i, j int) bool { return dbs[i].Name < dbs[j].Name })
	return dbs, nil
}

func (s *Store) DeleteDatabase(id string) error {
	existing, err := s.GetDatabase(id)
	if err != nil {
		return err
	}
	if existing == nil {
		return &store.NotFoundError{Kind: "database", ID: id}
	}
	_, err = s.p.DeletePathDirect([]string{joinPath(databasesDir, id)}, systemIdentity, "delete database "+id)
	return err
}

// --- BranchStore ---

func (s *Store) CreateBranch(branch model.Branch) (model.Branch, error) {
	existing, err := s.GetBranch(branch.DatabaseId, branch.Name)
	if err != nil {
		return model.Branch{}, err
	}
	if existing != nil {
		return model.Branch{}, &store.ConflictError{Reason: "branch already exists: " + branch.Name}
	}
	if branch.CreatedAt.IsZero() {
		branch.CreatedAt = time.Now()
	}
	if branch.Status == "" {
		branch.Status = model.BranchActive
	}
	if err := s.writeJSON(dbBranchPath(branch.DatabaseId, branch.Name), branch, systemIdentity, "create branch "+branch.Name); err != nil {
		return model.Branch{}, err
	}
	return branch, nil
}

func (s *Store) GetBranch(databaseID, name string) (*model.Branch, error) {
	var b model.Branch
	found, err := s.readJSON(dbBranchPath(databaseID, name), &b)
	if err != nil || !found {
		return nil, err
	}
	return &b, nil
}

func (s *Store) ListBranches(databaseID string) ([]model.Branch, error) {
	entries, err := s.p.ListEntriesDirect(dbBranchesDir(databaseID))
	if err != nil {
		return nil, err
	}
	branches := make([]model.Branch, 0, len(entries))
	for _, e := range entries {
		if e.IsDir || !strings.HasSuffix(e.Name, ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name, ".json")
		b, err := s.GetBranch(databaseID, name)
		if err != nil || b == nil {
			continue
		}
		branches = append(branches, *b)
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })
	return branches, nil
}

func (s *Store) UpsertBranch(branch model.Branch) error {
	return s.writeJSON(dbBranchPath(branch.DatabaseId, branch.Name), branch, systemIdentity, "update branch "+branch.Name)
}

func (s *Store) DeleteBranch(databaseID, name string) error {
	existing, err := s.GetBranch(databaseID, name)
	if err != nil {
		return err
	}
	if existing == nil {
		return &store.NotFoundError{Kind: "branch", ID: name}
	}
	_, err = s.p.DeletePathDirect([]string{dbBranchPath(databaseID, name)}, systemIdentity, "delete branch "+name)
	return err
}

// --- SchemaStore ---

func (s *Store) GetSchema(databaseID, branchName string, useWorkingCommit bool) (*model.Schema, error) {
	if useWorkingCommit {
		wc, err := s.GetActiveWorkingCommitForBranch(databaseID, branchName)
		if err != nil {
			return nil, err
		}
		if wc == nil {
			return nil, &store.NotFoundError{Kind: "working_commit", ID: "active on " + branchName}
		}
		return &wc.SchemaData, nil
	}
	branch, err := s.GetBranch(databaseID, branchName)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, &store.NotFoundError{Kind: "branch", ID: branchName}
	}
	data, err := s.GetCommitData(branch.CurrentCommitHash)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, &store.NotFoundError{Kind: "commit", ID: branch.CurrentCommitHash}
	}
	return &data.Schema, nil
}

// --- InstanceStore ---

func (s *Store) currentBranchData(databaseID, branchName string) (*model.CommitData, error) {
	branch, err := s.GetBranch(databaseID, branchName)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, &store.NotFoundError{Kind: "branch", ID: branchName}
	}
	data, err := s.GetCommitData(branch.CurrentCommitHash)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, &store.NotFoundError{Kind: "commit", ID: branch.CurrentCommitHash}
	}
	return data, nil
}

func (s *Store) GetInstance(databaseID, branchName, id string) (*model.Instance, error) {
	data, err := s.currentBranchData(databaseID, branchName)
	if err != nil {
		return nil, err
	}
	inst := data.InstanceByID(id)
	if inst == nil {
		return nil, &store.NotFoundError{Kind: "instance", ID: id}
	}
	return inst, nil
}

func (s *Store) ListInstancesForBranch(databaseID, branchName string, filter *store.InstanceFilterOpts) ([]model.Instance, error) {
	branch, err := s.GetBranch(databaseID, branchName)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, &store.NotFoundError{Kind: "branch", ID: branchName}
	}
	data, err := s.GetCommitData(branch.CurrentCommitHash)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, &store.NotFoundError{Kind: "commit", ID: branch.CurrentCommitHash}
	}
	if filter == nil || filter.ClassID == nil {
		return data.Instances, nil
	}
	return s.types.byClass(branch.CurrentCommitHash, *filter.ClassID, data), nil
}

func (s *Store) FindByTypeInBranch(databaseID, branchName, classID string) ([]model.Instance, error) {
	return s.ListInstancesForBranch(databaseID, branchName, &store.InstanceFilterOpts{ClassID: &classID})
}

// --- CommitStore ---

func (s *Store) GetCommit(hash string) (*model.Commit, error) {
	dbs, err := s.ListDatabases()
	if err != nil {
		return nil, err
	}
	for _, db := range dbs {
		c, err := s.getCommitMetaForDatabase(db.Id, hash)
		if err != nil {
			return nil, err
		}
		if c != nil {
			return c, nil
		}
	}
	return nil, nil
}

func (s *Store) getCommitMetaForDatabase(databaseID, hash string) (*model.Commit, error) {
	var c model.Commit
	found, err := s.readJSON(dbCommitMetaPath(databaseID, hash), &c)
	if err != nil || !found {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCommitsForDatabase(databaseID string, parentHash *string) ([]model.Commit, error) {
	entries, err := s.p.ListEntriesDirect(dbCommitsDir(databaseID))
	if err != nil {
		return nil, err
	}
	commits := make([]model.Commit, 0, len(entries))
	for _, e := range entries {
		if e.IsDir || !strings.HasSuffix(e.Name, ".json") {
			continue
		}
		hash := strings.TrimSuffix(e.Name, ".json")
		c, err := s.getCommitMetaForDatabase(databaseID, hash)
		if err != nil || c == nil {
			continue
		}
		if parentHash != nil {
			if c.ParentHash == nil || *c.ParentHash != *parentHash {
				continue
			}
		}
		commits = append(commits, *c)
	}
	sort.Slice(commits, func(i, j int) bool { return commits[i].CreatedAt.Before(commits[j].CreatedAt) })
	return commits, nil
}

func (s *Store) CreateCommit(nc model.NewCommit) (model.Commit, error) {
	hash, _, payload, err := canon.Encode(&nc.Data)
	if err != nil {
		return model.Commit{}, fmt.Errorf("failed to encode commit data: %w", err)
	}

	if existing, err := s.getCommitMetaForDatabase(nc.DatabaseId, hash); err != nil {
		return model.Commit{}, err
	} else if existing != nil {
		return *existing, nil
	}

	c := model.Commit{
		Hash:               hash,
		DatabaseId:         nc.DatabaseId,
		ParentHash:         nc.ParentHash,
		Author:             nc.Author,
		Message:            nc.Message,
		CreatedAt:          time.Now(),
		DataSize:           int64(len(payload)),
		SchemaClassesCount: len(nc.Data.Schema.Classes),
		InstancesCount:     len(nc.Data.Instances),
	}

	metaBytes, err := gojson.Marshal(c)
	if err != nil {
		return model.Commit{}, fmt.Errorf("failed to marshal commit metadata: %w", err)
	}

	identity := systemIdentity
	if nc.Author != nil {
		identity = *nc.Author
	}
	message := "commit"
	if nc.Message != nil {
		message = *nc.Message
	}

	files := map[string][]byte{
		dbCommitMetaPath(nc.DatabaseId, hash):    metaBytes,
		dbCommitPayloadPath(nc.DatabaseId, hash): payload,
	}
	if _, err := s.p.WriteFilesDirect(files, identity, message); err != nil {
		return model.Commit{}, err
	}

	c.Payload = payload
	return c, nil
}

func (s *Store) GetCommitData(hash string) (*model.CommitData, error) {
	if hash == "" {
		return nil, nil
	}
	dbs, err := s.ListDatabases()
	if err != nil {
		return nil, err
	}
	for _, db := range dbs {
		payload, err := s.p.ReadFileDirect(dbCommitPayloadPath(db.Id, hash))
		if err != nil {
			continue
		}
		data, err := canon.Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode commit %s: %w", hash, err)
		}
		return &data, nil
	}
	return nil, nil
}

func (s *Store) CommitExists(hash string) (bool, error) {
	c, err := s.GetCommit(hash)
	if err != nil {
		return false, err
	}
	return c != nil, nil
}

// --- WorkingCommitStore ---

func (s *Store) CreateWorkingCommit(databaseID, branchName string, nc model.NewWorkingCommit) (model.WorkingCommit, error) {
	existing, err := s.GetActiveWorkingCommitForBranch(databaseID, branchName)
	if err != nil {
		return model.WorkingCommit{}, err
	}
	if existing != nil {
		return model.WorkingCommit{}, &store.ConflictError{
			Reason: fmt.Sprintf("branch %s already has an active working commit (%s)", branchName, existing.Id),
		}
	}

	now := time.Now()
	wc := model.WorkingCommit{
		Id:            uuid.NewString(),
		DatabaseId:    databaseID,
		BranchName:    branchName,
		BasedOnHash:   nc.BasedOnHash,
		Author:        nc.Author,
		CreatedAt:     now,
		UpdatedAt:     now,
		SchemaData:    nc.SchemaData,
		InstancesData: nc.InstancesData,
		Status:        model.WCActive,
	}

	if err := s.writeJSON(dbWorkingCommitPath(databaseID, wc.Id), wc, systemIdentity, "open working commit on "+branchName); err != nil {
		return model.WorkingCommit{}, err
	}
	return wc, nil
}

func (s *Store) GetWorkingCommit(id string) (*model.WorkingCommit, error) {
	dbs, err := s.ListDatabases()
	if err != nil {
		return nil, err
	}
	for _, db := range dbs {
		var wc model.WorkingCommit
		found, err := s.readJSON(dbWorkingCommitPath(db.Id, id), &wc)
		if err != nil {
			return nil, err
		}
		if found {
			return &wc, nil
		}
	}
	return nil, nil
}

func (s *Store) UpdateWorkingCommit(wc model.WorkingCommit) error {
	wc.UpdatedAt = time.Now()
	return s.writeJSON(dbWorkingCommitPath(wc.DatabaseId, wc.Id), wc, systemIdentity, "update working commit "+wc.Id)
}

func (s *Store) DeleteWorkingCommit(id string) error {
	wc, err := s.GetWorkingCommit(id)
	if err != nil {
		return err
	}
	if wc == nil {
		return &store.NotFoundError{Kind: "working_commit", ID: id}
	}
	_, err = s.p.DeletePathDirect([]string{dbWorkingCommitPath(wc.DatabaseId, id)}, systemIdentity, "delete working commit "+id)
	return err
}

func (s *Store) GetActiveWorkingCommitForBranch(databaseID, branchName string) (*model.WorkingCommit, error) {
	wcs, err := s.ListWorkingCommitsForBranch(databaseID, branchName)
	if err != nil {
		return nil, err
	}
	for i := range wcs {
		if wcs[i].Status == model.WCActive || wcs[i].Status == model.WCMerging {
			return &wcs[i], nil
		}
	}
	return nil, nil
}

func (s *Store) ListWorkingCommitsForBranch(databaseID, branchName string) ([]model.WorkingCommit, error) {
	entries, err := s.p.ListEntriesDirect(dbWorkingCommitsDir(databaseID))
	if err != nil {
		return nil, err
	}
	wcs := make([]model.WorkingCommit, 0, len(entries))
	for _, e := range entries {
		if e.IsDir || !strings.HasSuffix(e.Name, ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name, ".json")
		var wc model.WorkingCommit
		found, err := s.readJSON(dbWorkingCommitPath(databaseID, id), &wc)
		if err != nil || !found {
			continue
		}
		if wc.BranchName == branchName {
			wcs = append(wcs, wc)
		}
	}
	sort.Slice(wcs, func(i, j int) bool { return wcs[i].CreatedAt.Before(wcs[j].CreatedAt) })
	return wcs, nil
}
