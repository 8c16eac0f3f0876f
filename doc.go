// Package CommitDB is a git-like combinatorial configuration database:
// content-addressed commits, mutable branches, a staging area ("working
// commit"), and a three-way merge engine sit underneath a schema/instance
// data model whose relationships resolve to candidate pools and whose
// properties can be conditional on those relationships.
//
// # Quick start
//
// Open a persistence backend (in-memory or a real on-disk git repo) and
// wrap it as an Instance:
//
//	persistence, _ := ps.NewMemoryPersistence()
//	inst := CommitDB.Open(&persistence)
//	session := inst.Session(core.Identity{Name: "alice", Email: "alice@example.com"})
//
// Every further operation goes through session.Store() (creating a
// database or branch) or the package-level functions in branchops
// (staging and committing a working commit, merging, rebasing), with
// validate and expand working on the data read back from it;
// Instance and Session are thin handles, not a second API layered on top.
//
// # Packages
//
//   - model: the data model (Schema, Instance, Domain, Expr, ...).
//   - eval: expression/rule-set evaluation.
//   - pool: relationship pool resolution.
//   - expand: read-projection of instances (ExpandedInstance).
//   - validate: schema/instance/branch validation.
//   - diff, merge: commit diffing and three-way merge.
//   - branchops: working-commit lifecycle, merge orchestration, rebase.
//   - store: the Store contract; ps: its git-backed implementation.
package CommitDB
