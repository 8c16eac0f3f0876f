// Command dbctl is a scriptable administrative CLI over a CommitDB
// instance: create databases and branches, seed a working commit from a
// file, commit/merge/rebase/validate, and snapshot a persistence
// backend, each as a single non-interactive invocation suitable for
// shell scripts and CI. cmd/cli remains the interactive REPL.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nickyhof/CommitDB"
	"github.com/nickyhof/CommitDB/core"
	"github.com/nickyhof/CommitDB/ps"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	baseDir        string
	gitURL         string
	authorName     string
	authorEmail    string
	identityToken  string
	identitySecret string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "dbctl",
	Short:   "Administrative CLI for a CommitDB instance",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseDir, "base-dir", "", "base directory for file-backed persistence (memory if empty)")
	rootCmd.PersistentFlags().StringVar(&gitURL, "git-url", "", "git URL to clone for file-backed persistence")
	rootCmd.PersistentFlags().StringVar(&authorName, "name", "dbctl", "identity name attributed to commits this invocation makes")
	rootCmd.PersistentFlags().StringVar(&authorEmail, "email", "dbctl@commitdb.local", "identity email attributed to commits this invocation makes")
	rootCmd.PersistentFlags().StringVar(&identityToken, "identity-token", "", "bearer token resolved to a commit identity (overrides --name/--email)")
	rootCmd.PersistentFlags().StringVar(&identitySecret, "identity-secret", os.Getenv("COMMITDB_IDENTITY_SECRET"), "HMAC secret used to validate --identity-token")

	rootCmd.AddCommand(databaseCmd)
	rootCmd.AddCommand(branchCmd)
	rootCmd.AddCommand(workingCommitCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(rebaseCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(expandCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(snapshotCmd)
}

// openSession opens the configured persistence backend and binds it to
// the identity this invocation attributes its writes to.
func openSession() (*CommitDB.Session, error) {
	var persistence ps.Persistence
	var err error
	if baseDir == "" {
		persistence, err = ps.NewMemoryPersistence()
	} else {
		var gitURLPtr *string
		if gitURL != "" {
			gitURLPtr = &gitURL
		}
		persistence, err = ps.NewFilePersistence(baseDir, gitURLPtr)
	}
	if err != nil {
		return nil, fmt.Errorf("open persistence: %w", err)
	}

	identity := core.Identity{Name: authorName, Email: authorEmail}
	if identityToken != "" {
		identity, err = core.ParseIdentityToken(identityToken, identitySecret)
		if err != nil {
			return nil, err
		}
	}

	inst := CommitDB.Open(&persistence)
	return inst.Session(identity), nil
}

// gitStore type-asserts a session's Store contract down to the
// concrete *ps.Store, for the few dbctl commands (snapshot/recover)
// that need persistence-layer operations outside the store.Store
// interface. Every other command stays against the interface.
func gitStore(session *CommitDB.Session) (*ps.Store, error) {
	s, ok := session.Store().(*ps.Store)
	if !ok {
		return nil, fmt.Errorf("dbctl: snapshot operations require the git-backed store")
	}
	return s, nil
}
