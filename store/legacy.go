package store

import "github.com/nickyhof/CommitDB/model"

// LegacyBranchResolver translates an opaque legacy branch id into the
// (database_id, branch_name) pair every current-generation operation
// takes. Older deployments addressed branches by a single numeric or
// string id; this shim re-derives the pair from that bare id. It is a
// translation layer only: it never implements Store itself, and new
// code must call BranchStore directly.
type LegacyBranchResolver struct {
	store BranchStore
	// aliases maps a legacy branch id to the branch it now resolves to.
	// Callers register aliases once, at migration time, via Register.
	aliases map[string]legacyRef
}

type legacyRef struct {
	databaseID string
	branchName string
}

// NewLegacyBranchResolver wraps a BranchStore so legacy ids can still be
// resolved after a caller has migrated its own id scheme to
// (database_id, name) pairs.
func NewLegacyBranchResolver(s BranchStore) *LegacyBranchResolver {
	return &LegacyBranchResolver{store: s, aliases: make(map[string]legacyRef)}
}

// Register records that legacyID now refers to (databaseID, branchName).
// A caller migrating off bare branch ids calls this once per branch it
// still has outstanding references to.
func (r *LegacyBranchResolver) Register(legacyID, databaseID, branchName string) {
	r.aliases[legacyID] = legacyRef{databaseID: databaseID, branchName: branchName}
}

// GetByLegacyID resolves a legacy id to its branch, or (nil, nil) if no
// alias was ever registered for it.
func (r *LegacyBranchResolver) GetByLegacyID(legacyID string) (*model.Branch, error) {
	ref, ok := r.aliases[legacyID]
	if !ok {
		return nil, nil
	}
	return r.store.GetBranch(ref.databaseID, ref.branchName)
}

// ListByLegacyDatabaseID lists branches for callers still holding a
// legacy database id. Legacy code already passed a database id
// directly, so it needs no translation and forwards straight to
// ListBranches.
func (r *LegacyBranchResolver) ListByLegacyDatabaseID(databaseID string) ([]model.Branch, error) {
	return r.store.ListBranches(databaseID)
}
