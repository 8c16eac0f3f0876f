// Package core provides the small set of ambient types shared by every
// layer of the database: commit authorship and audit trails.
//
// # Identity
//
// Identity identifies the author of a commit (Git commit author):
//
//	identity := core.Identity{
//	    Name:  "John Doe",
//	    Email: "john@example.com",
//	}
//
// # Audit
//
// Audit records who created and last touched a class or instance:
//
//	var a core.Audit
//	a.Touch(identity, time.Now())
package core
