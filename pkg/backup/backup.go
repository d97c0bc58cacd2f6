// Package backup takes a best-effort pre-upgrade snapshot of the
// destination via its own git repository. It is invoked by the upgrade
// workflow before reconciliation starts and never by the reconciliation
// engine itself; any failure silently downgrades to "no backup taken".
package backup

import (
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Adapter is the snapshot capability injected into the upgrade workflow.
type Adapter interface {
	// IsRepo reports whether dir is inside a version-controlled tree.
	IsRepo(dir string) bool
	// CommitAll stages every change under dir and commits it with the
	// given message. Returns true only when a commit was actually
	// created; a clean tree, a missing repo, or any git failure all
	// report false.
	CommitAll(dir, message string) bool
}

// Git snapshots through the destination's git repository using go-git, so
// no git binary is required on the host.
type Git struct{}

// NewGit returns the go-git backed adapter.
func NewGit() *Git { return &Git{} }

// IsRepo walks up from dir looking for a .git directory.
func (g *Git) IsRepo(dir string) bool {
	_, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	return err == nil
}

// CommitAll creates the snapshot commit. The user's configured identity is
// used when available, with a tool identity as fallback so a missing
// user.name never blocks the upgrade.
func (g *Git) CommitAll(dir, message string) bool {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return false
	}
	wt, err := repo.Worktree()
	if err != nil {
		return false
	}
	status, err := wt.Status()
	if err != nil {
		return false
	}
	if status.IsClean() {
		return false
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return false
	}

	if _, err := wt.Commit(message, &git.CommitOptions{}); err == nil {
		return true
	}
	_, err = wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "upkeep",
			Email: "upkeep@localhost",
			When:  time.Now(),
		},
	})
	return err == nil
}

// Noop is the adapter used when backups are disabled.
type Noop struct{}

// IsRepo always reports false.
func (Noop) IsRepo(string) bool { return false }

// CommitAll never commits.
func (Noop) CommitAll(string, string) bool { return false }
