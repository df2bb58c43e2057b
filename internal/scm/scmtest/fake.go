// Package scmtest provides an in-memory scm.SCM for exercising steps
// without a real repository.
package scmtest

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	gkerrors "gatekeeper.dev/gatekeeper/internal/errors"
	"gatekeeper.dev/gatekeeper/internal/release"
	"gatekeeper.dev/gatekeeper/internal/scm"
)

// Commit is a commit recorded by the fake
type Commit struct {
	Branch  string
	Message string
	Author  string
	Close   bool
}

type branch struct {
	closed  bool
	changes map[string]bool
}

// Fake models branches as sets of changes. A revision is merged into a
// branch when all of its changes are present there.
type Fake struct {
	mu sync.Mutex

	root    string
	closing bool
	naming  *release.Naming

	branches  map[string]*branch
	revisions map[string]map[string]bool
	remote    map[string]map[string]bool
	current   string
	pending   map[string]bool
	serial    int

	// Commits lists every commit in order
	Commits []Commit
	// Pushes lists the branch set of every successful push
	Pushes [][]string
	// Pulls lists every pull request made
	Pulls []scm.PullOptions
	// Added lists every path passed to Add
	Added []string
	// URL is returned by RemoteURL; empty means no remote is configured
	URL string
	// Calls lists the name of every method invoked, in order
	Calls []string
	// Conflicts marks "source->target" pairs whose merge conflicts
	Conflicts map[string]bool
	// Errors makes the named method fail with the given error
	Errors map[string]error
}

var _ scm.SCM = (*Fake)(nil)

// New creates a fake rooted at root. closing selects whether the fake
// behaves like a backend with closable branches.
func New(root string, naming *release.Naming, closing bool) *Fake {
	f := &Fake{
		root:      root,
		closing:   closing,
		naming:    naming,
		branches:  map[string]*branch{},
		revisions: map[string]map[string]bool{},
		remote:    map[string]map[string]bool{},
		Conflicts: map[string]bool{},
		Errors:    map[string]error{},
	}
	f.branches[naming.Trunk] = &branch{changes: map[string]bool{"base": true}}
	f.current = naming.Trunk
	return f
}

// AddBranch creates a branch forked from parent carrying one new change
func (f *Fake) AddBranch(name, parent string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	changes := map[string]bool{}
	if p, ok := f.branches[parent]; ok {
		maps.Copy(changes, p.changes)
	}
	changes[name] = true
	f.branches[name] = &branch{changes: changes}
}

// AddRemoteRevision makes revision available to Pull, forked from parent
func (f *Fake) AddRemoteRevision(revision, parent string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	changes := map[string]bool{}
	if p, ok := f.branches[parent]; ok {
		maps.Copy(changes, p.changes)
	}
	changes[revision] = true
	f.remote[revision] = changes
}

// Contains reports whether the change introduced by origin is on branch
func (f *Fake) Contains(branchName, origin string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.branches[branchName]
	return ok && b.changes[origin]
}

// IsClosed reports whether branch has been closed
func (f *Fake) IsClosed(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.branches[name]
	return ok && b.closed
}

// Messages returns the commit messages in order
func (f *Fake) Messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	messages := make([]string, len(f.Commits))
	for i, c := range f.Commits {
		messages[i] = c.Message
	}
	return messages
}

// Conflicted reports whether a merge was left unresolved
func (f *Fake) Conflicted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending != nil && f.pending["!conflict"]
}

func (f *Fake) call(name string) error {
	f.Calls = append(f.Calls, name)
	return f.Errors[name]
}

func (f *Fake) changesOf(rev string) (map[string]bool, bool) {
	if b, ok := f.branches[rev]; ok {
		return b.changes, true
	}
	c, ok := f.revisions[rev]
	return c, ok
}

func (f *Fake) Name() string                { return "fake" }
func (f *Fake) Root() string                { return f.root }
func (f *Fake) SupportsBranchClosing() bool { return f.closing }

func (f *Fake) ListBranches(_ context.Context, includeClosed bool) ([]scm.Branch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ListBranches"); err != nil {
		return nil, err
	}
	names := slices.Collect(maps.Keys(f.branches))
	sort.Strings(names)
	var branches []scm.Branch
	for _, name := range names {
		b := f.branches[name]
		if b.closed && !includeClosed {
			continue
		}
		branches = append(branches, scm.Branch{Name: name, Closed: b.closed})
	}
	return branches, nil
}

func (f *Fake) CurrentBranch(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.call("CurrentBranch")
}

func (f *Fake) Update(_ context.Context, revision string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("Update"); err != nil {
		return err
	}
	if _, ok := f.branches[revision]; !ok {
		return fmt.Errorf("unknown revision %s", revision)
	}
	f.current = revision
	return nil
}

func (f *Fake) UpdateClean(_ context.Context, revision string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("UpdateClean"); err != nil {
		return err
	}
	if _, ok := f.branches[revision]; !ok {
		return fmt.Errorf("unknown revision %s", revision)
	}
	f.current = revision
	f.pending = nil
	return nil
}

func (f *Fake) StripLocalCommits(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.call("StripLocalCommits")
}

func (f *Fake) CleanWorkingCopy(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.call("CleanWorkingCopy")
}

func (f *Fake) MergeInto(_ context.Context, revision, updateTo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("MergeInto"); err != nil {
		return err
	}
	if updateTo != "" {
		f.current = updateTo
	}
	changes, ok := f.changesOf(revision)
	if !ok {
		return fmt.Errorf("unknown revision %s", revision)
	}
	if f.Conflicts[revision+"->"+f.current] {
		f.pending = map[string]bool{"!conflict": true}
		return gkerrors.NewMergeConflictError(revision, f.current, []string{"conflict.txt"})
	}
	if f.pending == nil {
		f.pending = map[string]bool{}
	}
	maps.Copy(f.pending, changes)
	return nil
}

func (f *Fake) Add(_ context.Context, paths ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("Add"); err != nil {
		return err
	}
	f.Added = append(f.Added, paths...)
	return nil
}

func (f *Fake) Commit(_ context.Context, message, author string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("Commit"); err != nil {
		return err
	}
	if f.pending["!conflict"] {
		return fmt.Errorf("unresolved merge conflict")
	}
	b, ok := f.branches[f.current]
	if !ok {
		return fmt.Errorf("no branch %s", f.current)
	}
	f.serial++
	maps.Copy(b.changes, f.pending)
	b.changes[fmt.Sprintf("commit-%d", f.serial)] = true
	f.pending = nil
	f.Commits = append(f.Commits, Commit{Branch: f.current, Message: message, Author: author})
	return nil
}

func (f *Fake) MergeOpenHeads(context.Context, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.call("MergeOpenHeads")
}

func (f *Fake) CloseBranch(_ context.Context, name, message, author string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CloseBranch"); err != nil {
		return err
	}
	if !f.closing {
		return nil
	}
	b, ok := f.branches[name]
	if !ok {
		return fmt.Errorf("no branch %s", name)
	}
	b.closed = true
	f.Commits = append(f.Commits, Commit{Branch: name, Message: message, Author: author, Close: true})
	return nil
}

func (f *Fake) Push(_ context.Context, branches ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("Push"); err != nil {
		return err
	}
	f.Pushes = append(f.Pushes, slices.Clone(branches))
	return nil
}

func (f *Fake) RemoteURL(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("RemoteURL"); err != nil {
		return "", err
	}
	if f.URL == "" {
		return "", fmt.Errorf("no remote configured")
	}
	return f.URL, nil
}

func (f *Fake) Pull(_ context.Context, opts scm.PullOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("Pull"); err != nil {
		return err
	}
	f.Pulls = append(f.Pulls, opts)
	if opts.Revision != "" {
		changes, ok := f.remote[opts.Revision]
		if !ok {
			return fmt.Errorf("revision %s not found on %s", opts.Revision, opts.Remote)
		}
		f.revisions[opts.Revision] = changes
	}
	return nil
}

func (f *Fake) CreateBranch(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateBranch"); err != nil {
		return err
	}
	var open []string
	for n, b := range f.branches {
		if !b.closed {
			open = append(open, n)
		}
	}
	fork := f.naming.ForkPoint(open, name)
	changes := map[string]bool{}
	maps.Copy(changes, f.branches[fork].changes)
	f.branches[name] = &branch{changes: changes}
	f.current = name
	return nil
}

func (f *Fake) DeleteBranch(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeleteBranch"); err != nil {
		return err
	}
	delete(f.branches, name)
	return nil
}

func (f *Fake) IsMerged(_ context.Context, revision, into string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("IsMerged"); err != nil {
		return false, err
	}
	source, ok := f.changesOf(revision)
	if !ok {
		return false, fmt.Errorf("unknown revision %s", revision)
	}
	target, ok := f.changesOf(into)
	if !ok {
		return false, fmt.Errorf("unknown revision %s", into)
	}
	for change := range source {
		if !target[change] {
			return false, nil
		}
	}
	return true, nil
}
