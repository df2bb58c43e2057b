package gitscm

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	gkerrors "gatekeeper.dev/gatekeeper/internal/errors"
	"gatekeeper.dev/gatekeeper/internal/release"
	"gatekeeper.dev/gatekeeper/internal/scm"
)

// DefaultRemote is the remote used when none is configured
const DefaultRemote = "origin"

// DefaultIdentity is the author and committer of merges when Config.Author
// is empty
const DefaultIdentity = "Gatekeeper <gatekeeper@localhost>"

// incomingNamespace holds heads fetched from repository URLs that are not
// configured remotes, so they never show up as branches.
const incomingNamespace = "refs/gatekeeper/incoming/"

// Config holds the parameters for opening a git working copy
type Config struct {
	// Dir is any directory inside the working copy
	Dir string
	// Remote is the remote pushed to and pulled from. Defaults to "origin".
	Remote string
	// Naming decides fork points for new release branches
	Naming *release.Naming
	// Author is the identity every git invocation runs as, so merges never
	// depend on the user's git config. Defaults to DefaultIdentity.
	Author string
	// Logger receives warnings. If nil, nothing is logged.
	Logger scm.Logger
}

// Backend is a git working copy
type Backend struct {
	runner *scm.CommandRunner
	root   string
	remote string
	naming *release.Naming
	log    scm.Logger
}

var _ scm.SCM = (*Backend)(nil)

// Open opens the git working copy containing cfg.Dir
func Open(cfg Config) (*Backend, error) {
	if cfg.Naming == nil {
		return nil, fmt.Errorf("gitscm: Naming is required")
	}
	absPath, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	repo, err := gogit.PlainOpenWithOptions(absPath, &gogit.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}
	root := worktree.Filesystem.Root()

	remote := cfg.Remote
	if remote == "" {
		remote = DefaultRemote
	}
	logger := cfg.Logger
	if logger == nil {
		logger = scm.NopLogger()
	}
	author := cfg.Author
	if author == "" {
		author = DefaultIdentity
	}
	who, err := scm.ParseAuthor(author)
	if err != nil {
		return nil, fmt.Errorf("invalid author: %w", err)
	}

	return &Backend{
		runner: scm.NewCommandRunner("git", root, append([]string{"GIT_TERMINAL_PROMPT=0"}, who.GitEnv()...)...),
		root:   root,
		remote: remote,
		naming: cfg.Naming,
		log:    logger,
	}, nil
}

// Name returns "git"
func (b *Backend) Name() string {
	return "git"
}

// Root returns the working copy root
func (b *Backend) Root() string {
	return b.root
}

// SupportsBranchClosing returns false: git branches cannot be closed
func (b *Backend) SupportsBranchClosing() bool {
	return false
}

// repository opens the repository afresh so that refs written by the git
// binary since the last call are visible.
func (b *Backend) repository() (*gogit.Repository, error) {
	repo, err := gogit.PlainOpen(b.root)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	return repo, nil
}

// ListBranches returns local heads and the heads of the configured remote.
// includeClosed has no effect since git branches are never closed.
func (b *Backend) ListBranches(_ context.Context, _ bool) ([]scm.Branch, error) {
	repo, err := b.repository()
	if err != nil {
		return nil, err
	}
	refs, err := repo.References()
	if err != nil {
		return nil, fmt.Errorf("failed to get references: %w", err)
	}

	remotePrefix := "refs/remotes/" + b.remote + "/"
	var names []string
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		name := ref.Name()
		switch {
		case name.IsBranch():
			names = append(names, name.Short())
		case strings.HasPrefix(name.String(), remotePrefix):
			short := strings.TrimPrefix(name.String(), remotePrefix)
			if short != "HEAD" {
				names = append(names, short)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate branches: %w", err)
	}

	branches := make([]scm.Branch, 0, len(names))
	for _, name := range scm.BranchNames(toBranches(names)) {
		branches = append(branches, scm.Branch{Name: name})
	}
	return branches, nil
}

func toBranches(names []string) []scm.Branch {
	branches := make([]scm.Branch, len(names))
	for i, name := range names {
		branches[i] = scm.Branch{Name: name}
	}
	return branches
}

// CurrentBranch returns the checked out branch
func (b *Backend) CurrentBranch(_ context.Context) (string, error) {
	repo, err := b.repository()
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("HEAD is not on a branch")
	}
	return head.Name().Short(), nil
}

func (b *Backend) hasLocal(repo *gogit.Repository, name string) bool {
	_, err := repo.Reference(plumbing.NewBranchReferenceName(name), false)
	return err == nil
}

func (b *Backend) hasRemote(repo *gogit.Repository, name string) bool {
	_, err := repo.Reference(plumbing.NewRemoteReferenceName(b.remote, name), false)
	return err == nil
}

// resolve maps a branch name to a ref git can use even when the branch only
// exists on the remote. Anything else is passed through unchanged.
func (b *Backend) resolve(rev string) (string, error) {
	repo, err := b.repository()
	if err != nil {
		return "", err
	}
	switch {
	case b.hasLocal(repo, rev):
		return rev, nil
	case b.hasRemote(repo, rev):
		return b.remote + "/" + rev, nil
	default:
		return rev, nil
	}
}

// Update checks out revision. A branch that only exists on the remote gets a
// local tracking branch; a local branch behind its remote is fast-forwarded.
func (b *Backend) Update(ctx context.Context, revision string) error {
	return b.checkout(ctx, revision, false)
}

// UpdateClean checks out revision, discarding uncommitted changes and any
// merge in progress.
func (b *Backend) UpdateClean(ctx context.Context, revision string) error {
	if _, err := b.runner.Run(ctx, "reset", "--hard", "-q"); err != nil {
		b.log.Debug("reset before clean update failed: %v", err)
	}
	return b.checkout(ctx, revision, true)
}

func (b *Backend) checkout(ctx context.Context, revision string, force bool) error {
	repo, err := b.repository()
	if err != nil {
		return err
	}

	args := []string{"checkout", "-q"}
	if force {
		args = append(args, "-f")
	}

	switch {
	case b.hasLocal(repo, revision):
		args = append(args, revision)
	case b.hasRemote(repo, revision):
		args = append(args, "-B", revision, "--track", b.remote+"/"+revision)
	default:
		args = append(args, "--detach", revision)
	}

	if _, err := b.runner.Run(ctx, args...); err != nil {
		return fmt.Errorf("failed to update to %s: %w", revision, err)
	}

	if b.hasLocal(repo, revision) && b.hasRemote(repo, revision) {
		return b.fastForward(ctx, revision)
	}
	return nil
}

// fastForward moves a checked out local branch to its remote head when the
// local head is an ancestor of it.
func (b *Backend) fastForward(ctx context.Context, branch string) error {
	remoteRef := b.remote + "/" + branch
	behind, err := b.IsMerged(ctx, branch, remoteRef)
	if err != nil {
		return err
	}
	if !behind {
		return nil
	}
	if _, err := b.runner.Run(ctx, "merge", "-q", "--ff-only", remoteRef); err != nil {
		return fmt.Errorf("failed to fast-forward %s to %s: %w", branch, remoteRef, err)
	}
	return nil
}

// StripLocalCommits moves local branches back to their remote heads.
// Branches that only exist locally are left alone.
func (b *Backend) StripLocalCommits(ctx context.Context) error {
	repo, err := b.repository()
	if err != nil {
		return err
	}
	current, _ := b.CurrentBranch(ctx)

	branches, err := repo.Branches()
	if err != nil {
		return fmt.Errorf("failed to get branches: %w", err)
	}
	var locals []string
	_ = branches.ForEach(func(ref *plumbing.Reference) error {
		locals = append(locals, ref.Name().Short())
		return nil
	})

	for _, branch := range locals {
		remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName(b.remote, branch), true)
		if err != nil {
			b.log.Debug("%s has no remote head, keeping local commits", branch)
			continue
		}
		if branch == current {
			if _, err := b.runner.Run(ctx, "reset", "-q", "--hard", remoteRef.Hash().String()); err != nil {
				return fmt.Errorf("failed to strip local commits of %s: %w", branch, err)
			}
			continue
		}
		if _, err := b.runner.Run(ctx, "update-ref", "refs/heads/"+branch, remoteRef.Hash().String()); err != nil {
			return fmt.Errorf("failed to strip local commits of %s: %w", branch, err)
		}
	}
	return nil
}

// CleanWorkingCopy removes untracked and ignored files
func (b *Backend) CleanWorkingCopy(ctx context.Context) error {
	if _, err := b.runner.Run(ctx, "clean", "-q", "-fdx"); err != nil {
		return fmt.Errorf("failed to clean working copy: %w", err)
	}
	return nil
}

// MergeInto merges revision into the working copy without committing.
// The merge always creates a merge commit when committed, even when a
// fast-forward would be possible.
func (b *Backend) MergeInto(ctx context.Context, revision, updateTo string) error {
	if updateTo != "" {
		if err := b.Update(ctx, updateTo); err != nil {
			return err
		}
	}
	target, err := b.CurrentBranch(ctx)
	if err != nil {
		target = "HEAD"
	}

	resolved, err := b.resolve(revision)
	if err != nil {
		return err
	}

	_, mergeErr := b.runner.Run(ctx, "merge", "--no-ff", "--no-commit", resolved)
	if mergeErr == nil {
		return nil
	}

	files, err := b.unmergedFiles(ctx)
	if err == nil && len(files) > 0 {
		return gkerrors.NewMergeConflictError(revision, target, files)
	}
	return fmt.Errorf("failed to merge %s into %s: %w", revision, target, mergeErr)
}

func (b *Backend) unmergedFiles(ctx context.Context) ([]string, error) {
	return b.runner.RunLines(ctx, "diff", "--name-only", "--diff-filter=U")
}

// Add stages paths
func (b *Backend) Add(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	if _, err := b.runner.Run(ctx, append([]string{"add", "--"}, paths...)...); err != nil {
		return fmt.Errorf("failed to add %s: %w", strings.Join(paths, ", "), err)
	}
	return nil
}

// Commit commits the index with the given author, who is also used as
// committer. A commit without changes is allowed, so that a new release
// branch gets a creation commit like it does under hg.
func (b *Backend) Commit(ctx context.Context, message, author string) error {
	who, err := scm.ParseAuthor(author)
	if err != nil {
		return err
	}
	if _, err := b.runner.RunWithEnv(ctx, who.GitEnv(), "commit", "-q", "--no-verify", "--allow-empty", "-m", message); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// MergeOpenHeads does nothing: a git branch has exactly one head
func (b *Backend) MergeOpenHeads(_ context.Context, _, _ string) error {
	return nil
}

// CloseBranch logs a warning and leaves the branch open
func (b *Backend) CloseBranch(_ context.Context, name, _, _ string) error {
	b.log.Warn("%v: git branches cannot be closed, %s stays open", gkerrors.ErrBackendUnsupported, name)
	return nil
}

// Push pushes the named branches to the remote in a single atomic push
func (b *Backend) Push(ctx context.Context, branches ...string) error {
	if len(branches) == 0 {
		return nil
	}
	args := []string{"push", "-q", "--atomic", b.remote}
	for _, branch := range branches {
		args = append(args, "refs/heads/"+branch+":refs/heads/"+branch)
	}
	if _, err := b.runner.Run(ctx, args...); err != nil {
		return fmt.Errorf("failed to push %s: %w", strings.Join(branches, ", "), err)
	}
	return nil
}

// RemoteURL returns the first URL of the configured remote
func (b *Backend) RemoteURL(_ context.Context) (string, error) {
	repo, err := b.repository()
	if err != nil {
		return "", err
	}
	remote, err := repo.Remote(b.remote)
	if err != nil {
		return "", fmt.Errorf("failed to read remote %s: %w", b.remote, err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("remote %s has no URL", b.remote)
	}
	return urls[0], nil
}

// Pull fetches from the configured remote, or from a repository URL into a
// private namespace that is not reported as branches.
func (b *Backend) Pull(ctx context.Context, opts scm.PullOptions) error {
	source := opts.Remote
	if source == "" {
		source = b.remote
	}

	isRemote, err := b.isConfiguredRemote(source)
	if err != nil {
		return err
	}

	args := []string{"fetch", "-q"}
	switch {
	case isRemote && opts.Branch != "":
		args = append(args, source, "+refs/heads/"+opts.Branch+":refs/remotes/"+source+"/"+opts.Branch)
	case isRemote:
		args = append(args, "--prune", source)
	case opts.Branch != "":
		args = append(args, source, "+refs/heads/"+opts.Branch+":"+incomingNamespace+opts.Branch)
	default:
		args = append(args, source, "+refs/heads/*:"+incomingNamespace+"*")
	}
	if _, err := b.runner.Run(ctx, args...); err != nil {
		return fmt.Errorf("failed to pull from %s: %w", source, err)
	}

	if opts.Revision != "" {
		if _, err := b.runner.Run(ctx, "cat-file", "-e", opts.Revision+"^{commit}"); err != nil {
			return fmt.Errorf("revision %s not found after pulling from %s: %w", opts.Revision, source, err)
		}
	}
	return nil
}

func (b *Backend) isConfiguredRemote(name string) (bool, error) {
	repo, err := b.repository()
	if err != nil {
		return false, err
	}
	_, err = repo.Remote(name)
	if errors.Is(err, gogit.ErrRemoteNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read remote %s: %w", name, err)
	}
	return true, nil
}

// CreateBranch creates name from its fork point and checks it out
func (b *Backend) CreateBranch(ctx context.Context, name string) error {
	branches, err := b.ListBranches(ctx, true)
	if err != nil {
		return err
	}
	fork := b.naming.ForkPoint(scm.BranchNames(branches), name)
	start, err := b.resolve(fork)
	if err != nil {
		return err
	}
	if _, err := b.runner.Run(ctx, "checkout", "-q", "--no-track", "-b", name, start); err != nil {
		return fmt.Errorf("failed to create branch %s from %s: %w", name, fork, err)
	}
	b.log.Debug("created %s from %s", name, fork)
	return nil
}

// DeleteBranch deletes a local branch. A missing branch is not an error.
func (b *Backend) DeleteBranch(ctx context.Context, name string) error {
	repo, err := b.repository()
	if err != nil {
		return err
	}
	if !b.hasLocal(repo, name) {
		return nil
	}
	if current, err := b.CurrentBranch(ctx); err == nil && current == name {
		if _, err := b.runner.Run(ctx, "checkout", "-q", "--detach"); err != nil {
			return fmt.Errorf("failed to leave branch %s: %w", name, err)
		}
	}
	if _, err := b.runner.Run(ctx, "branch", "-D", name); err != nil {
		return fmt.Errorf("failed to delete branch %s: %w", name, err)
	}
	return nil
}

// IsMerged reports whether revision is reachable from into
func (b *Backend) IsMerged(_ context.Context, revision, into string) (bool, error) {
	repo, err := b.repository()
	if err != nil {
		return false, err
	}

	ancestorHash, err := b.resolveHash(repo, revision)
	if err != nil {
		return false, fmt.Errorf("failed to resolve %s: %w", revision, err)
	}
	descendantHash, err := b.resolveHash(repo, into)
	if err != nil {
		return false, fmt.Errorf("failed to resolve %s: %w", into, err)
	}
	if ancestorHash == descendantHash {
		return true, nil
	}

	ancestorCommit, err := repo.CommitObject(ancestorHash)
	if err != nil {
		return false, fmt.Errorf("failed to get commit %s: %w", revision, err)
	}
	descendantCommit, err := repo.CommitObject(descendantHash)
	if err != nil {
		return false, fmt.Errorf("failed to get commit %s: %w", into, err)
	}
	return ancestorCommit.IsAncestor(descendantCommit)
}

func (b *Backend) resolveHash(repo *gogit.Repository, rev string) (plumbing.Hash, error) {
	if b.hasLocal(repo, rev) {
		ref, err := repo.Reference(plumbing.NewBranchReferenceName(rev), true)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		return ref.Hash(), nil
	}
	if b.hasRemote(repo, rev) {
		ref, err := repo.Reference(plumbing.NewRemoteReferenceName(b.remote, rev), true)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		return ref.Hash(), nil
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return *hash, nil
}
