package CommitDB

import (
	"github.com/nickyhof/CommitDB/core"
	"github.com/nickyhof/CommitDB/ps"
	"github.com/nickyhof/CommitDB/store"
)

// Instance is a handle onto one persistence backend, opened once at
// process start and shared by every database/branch operation an
// entrypoint issues against it.
type Instance struct {
	store store.Store
}

// Open wraps an initialized persistence layer (package ps) as a
// queryable Instance. The caller owns the Persistence's lifetime; Open
// never closes it.
func Open(p *ps.Persistence) *Instance {
	return &Instance{store: ps.NewStore(p)}
}

// Store returns the Store contract (component ST) this instance is
// backed by. branchops and merge operate directly against this value
// (validate, diff and expand work on data read from it); Instance adds
// nothing to their contract.
func (i *Instance) Store() store.Store { return i.store }

// Session binds a commit identity to this instance's store: the unit an
// interactive shell or scripted entrypoint actually issues working-commit
// edits and commits through, so every write it makes is attributed
// consistently without threading an Identity through every call site.
type Session struct {
	store    store.Store
	identity core.Identity
}

// Session opens a new identity-bound handle onto this instance.
func (i *Instance) Session(identity core.Identity) *Session {
	return &Session{store: i.store, identity: identity}
}

// Store returns the underlying Store contract.
func (s *Session) Store() store.Store { return s.store }

// Identity returns the commit author this session attributes writes to.
func (s *Session) Identity() core.Identity { return s.identity }
