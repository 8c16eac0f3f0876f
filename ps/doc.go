// Package ps is the one store.Store implementation shipped in this
// module: it maps every database/branch/commit/working-commit record
// onto a path in a Git tree and uses Git's own object store as a
// content-addressed, versioned key-value engine (package plumbing.go),
// never a Git worktree checkout or CLI.
//
// # Memory persistence
//
// For tests or ephemeral databases, data lives only in the Git object
// store, never touching disk:
//
//	persistence, err := ps.NewMemoryPersistence()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	st := ps.NewStore(&persistence)
//
// # File persistence
//
// For durable storage, backed by a real .git directory:
//
//	persistence, err := ps.NewFilePersistence("/path/to/data", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	st := ps.NewStore(&persistence)
//
// Every write to Store lands as exactly one underlying git commit
// (single path) or one atomic multi-path commit (WriteFilesDirect),
// recorded internally as a Transaction. That history is this package's
// own audit trail, separate from the model.Commit chain it stores as
// JSON/zstd payloads under databases/<id>/commits/.
package ps
