// Package scm defines the version control capability the release engine
// needs, independent of the backend that provides it.
//
// Two backends implement it: gitscm (lightweight branches, no branch
// closing) and hgscm (named persistent branches that can be closed).
// Callers check SupportsBranchClosing rather than the concrete type.
package scm

import (
	"context"
	"slices"
	"sort"
)

// Branch is a branch as reported by the backend
type Branch struct {
	Name   string
	Closed bool
}

// PullOptions selects what Pull fetches. The zero value pulls from the
// default remote.
type PullOptions struct {
	// Remote is a remote name or repository URL. Empty means the default remote.
	Remote string
	// Branch restricts the pull to a single branch.
	Branch string
	// Revision restricts the pull to the ancestry of a revision.
	Revision string
}

// SCM is the abstract version control capability used by every step.
// All mutations act on a single working copy that is exclusive to the
// running step.
type SCM interface {
	// Name returns the backend name ("git" or "hg")
	Name() string
	// Root returns the working copy root directory
	Root() string
	// SupportsBranchClosing reports whether CloseBranch has an effect
	SupportsBranchClosing() bool

	ListBranches(ctx context.Context, includeClosed bool) ([]Branch, error)
	CurrentBranch(ctx context.Context) (string, error)

	Update(ctx context.Context, revision string) error
	UpdateClean(ctx context.Context, revision string) error
	StripLocalCommits(ctx context.Context) error
	CleanWorkingCopy(ctx context.Context) error

	// MergeInto merges revision into the working copy, updating to
	// updateTo first when it is not empty. Nothing is committed. A
	// conflict returns a *errors.MergeConflictError and leaves the
	// conflicted state in place.
	MergeInto(ctx context.Context, revision, updateTo string) error
	// Add schedules new files for the next commit. Paths are relative to Root.
	Add(ctx context.Context, paths ...string) error
	// Commit records the merge in progress and changes to tracked or added
	// files. Untracked files are left out.
	Commit(ctx context.Context, message, author string) error
	// MergeOpenHeads merges extra heads of the current branch, if any
	MergeOpenHeads(ctx context.Context, message, author string) error
	// CloseBranch closes a branch. Backends without branch closing log a
	// warning and return nil.
	CloseBranch(ctx context.Context, name, message, author string) error

	Push(ctx context.Context, branches ...string) error
	// RemoteURL returns the URL of the configured remote
	RemoteURL(ctx context.Context) (string, error)
	Pull(ctx context.Context, opts PullOptions) error

	// CreateBranch creates name and switches the working copy to it. The
	// backend picks the fork point: the nearest lower release branch, or
	// the trunk.
	CreateBranch(ctx context.Context, name string) error
	// DeleteBranch removes a branch that was created but never committed to
	DeleteBranch(ctx context.Context, name string) error
	// IsMerged reports whether revision is an ancestor of (or equal to) into
	IsMerged(ctx context.Context, revision, into string) (bool, error)
}

// BranchNames returns the sorted, de-duplicated names of branches
func BranchNames(branches []Branch) []string {
	names := make([]string, 0, len(branches))
	for _, b := range branches {
		if !slices.Contains(names, b.Name) {
			names = append(names, b.Name)
		}
	}
	sort.Strings(names)
	return names
}

// HasBranch reports whether a branch with the given name exists in the backend
func HasBranch(ctx context.Context, s SCM, name string, includeClosed bool) (bool, error) {
	branches, err := s.ListBranches(ctx, includeClosed)
	if err != nil {
		return false, err
	}
	for _, b := range branches {
		if b.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// ResetWorkspace brings the working copy back to a clean checkout of
// revision, dropping uncommitted changes and untracked files.
func ResetWorkspace(ctx context.Context, s SCM, revision string) error {
	if err := s.UpdateClean(ctx, revision); err != nil {
		return err
	}
	return s.CleanWorkingCopy(ctx)
}

// Logger receives backend diagnostics such as capability downgrades
type Logger interface {
	Debug(format string, args ...interface{})
	Warn(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}

// NopLogger returns a Logger that discards everything
func NopLogger() Logger {
	return nopLogger{}
}
