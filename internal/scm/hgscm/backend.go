package hgscm

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	gkerrors "gatekeeper.dev/gatekeeper/internal/errors"
	"gatekeeper.dev/gatekeeper/internal/release"
	"gatekeeper.dev/gatekeeper/internal/scm"
)

// DefaultTrunk is the name of the hg trunk branch
const DefaultTrunk = "default"

// Config holds the parameters for opening an hg working copy
type Config struct {
	// Dir is any directory inside the working copy
	Dir string
	// Remote is the path or URL pushed to and pulled from. Empty means the
	// "default" path from the repository's hgrc.
	Remote string
	// Naming decides fork points for new release branches
	Naming *release.Naming
	// Logger receives diagnostics. If nil, nothing is logged.
	Logger scm.Logger
}

// Backend is an hg working copy
type Backend struct {
	runner *scm.CommandRunner
	root   string
	remote string
	naming *release.Naming
	log    scm.Logger
}

var _ scm.SCM = (*Backend)(nil)

// hgEnv pins hg output to a parseable form regardless of user config
var hgEnv = []string{"HGPLAIN=1", "HGENCODING=utf-8"}

// Open opens the hg working copy containing cfg.Dir
func Open(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Naming == nil {
		return nil, fmt.Errorf("hgscm: Naming is required")
	}
	absPath, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	root, err := scm.NewCommandRunner("hg", absPath, hgEnv...).Run(ctx, "root")
	if err != nil {
		return nil, fmt.Errorf("not an hg repository: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = scm.NopLogger()
	}

	return &Backend{
		runner: scm.NewCommandRunner("hg", root, hgEnv...),
		root:   root,
		remote: cfg.Remote,
		naming: cfg.Naming,
		log:    logger,
	}, nil
}

// Name returns "hg"
func (b *Backend) Name() string {
	return "hg"
}

// Root returns the working copy root
func (b *Backend) Root() string {
	return b.root
}

// SupportsBranchClosing returns true
func (b *Backend) SupportsBranchClosing() bool {
	return true
}

func (b *Backend) branchNames(ctx context.Context, includeClosed bool) ([]string, error) {
	args := []string{"branches", "-T", "{branch}\n"}
	if includeClosed {
		args = append(args, "--closed")
	}
	names, err := b.runner.RunLines(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	return names, nil
}

// ListBranches returns the named branches. Closed branches are included,
// flagged as closed, when includeClosed is set.
func (b *Backend) ListBranches(ctx context.Context, includeClosed bool) ([]scm.Branch, error) {
	open, err := b.branchNames(ctx, false)
	if err != nil {
		return nil, err
	}
	all := open
	if includeClosed {
		if all, err = b.branchNames(ctx, true); err != nil {
			return nil, err
		}
	}

	branches := make([]scm.Branch, 0, len(all))
	for _, name := range all {
		branches = append(branches, scm.Branch{
			Name:   name,
			Closed: !slices.Contains(open, name),
		})
	}
	return branches, nil
}

// CurrentBranch returns the branch of the working directory parent
func (b *Backend) CurrentBranch(ctx context.Context) (string, error) {
	branch, err := b.runner.Run(ctx, "branch")
	if err != nil {
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}
	return branch, nil
}

// Update updates the working directory to revision
func (b *Backend) Update(ctx context.Context, revision string) error {
	if _, err := b.runner.Run(ctx, "update", "-q", revision); err != nil {
		return fmt.Errorf("failed to update to %s: %w", revision, err)
	}
	return nil
}

// UpdateClean updates to revision, discarding uncommitted changes and any
// merge in progress.
func (b *Backend) UpdateClean(ctx context.Context, revision string) error {
	if _, err := b.runner.Run(ctx, "update", "-q", "-C", revision); err != nil {
		return fmt.Errorf("failed to update to %s: %w", revision, err)
	}
	return nil
}

// StripLocalCommits strips every changeset missing from the remote
func (b *Backend) StripLocalCommits(ctx context.Context) error {
	revset := "outgoing()"
	if b.remote != "" {
		revset = "outgoing(" + quote(b.remote) + ")"
	}
	outgoing, err := b.runner.RunLines(ctx, "log", "-r", revset, "-T", "{node}\n")
	if err != nil {
		return fmt.Errorf("failed to find local commits: %w", err)
	}
	if len(outgoing) == 0 {
		return nil
	}
	b.log.Debug("stripping %d local commits", len(outgoing))
	if _, err := b.runner.Run(ctx, "--config", "extensions.strip=", "strip", "--no-backup", "-r", revset); err != nil {
		return fmt.Errorf("failed to strip local commits: %w", err)
	}
	return nil
}

// CleanWorkingCopy removes untracked and ignored files
func (b *Backend) CleanWorkingCopy(ctx context.Context) error {
	if _, err := b.runner.Run(ctx, "--config", "extensions.purge=", "purge", "--all"); err != nil {
		return fmt.Errorf("failed to clean working copy: %w", err)
	}
	return nil
}

// MergeInto merges revision into the working directory without committing
func (b *Backend) MergeInto(ctx context.Context, revision, updateTo string) error {
	if updateTo != "" {
		if err := b.Update(ctx, updateTo); err != nil {
			return err
		}
	}
	target, err := b.CurrentBranch(ctx)
	if err != nil {
		return err
	}

	_, mergeErr := b.runner.Run(ctx, "merge", "-q", "--tool", "internal:merge", "-r", revision)
	if mergeErr == nil {
		return nil
	}

	files, err := b.unresolvedFiles(ctx)
	if err == nil && len(files) > 0 {
		return gkerrors.NewMergeConflictError(revision, target, files)
	}
	return fmt.Errorf("failed to merge %s into %s: %w", revision, target, mergeErr)
}

func (b *Backend) unresolvedFiles(ctx context.Context) ([]string, error) {
	lines, err := b.runner.RunLines(ctx, "resolve", "--list")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range lines {
		if file, ok := strings.CutPrefix(line, "U "); ok {
			files = append(files, file)
		}
	}
	return files, nil
}

// Add schedules paths for addition
func (b *Backend) Add(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	if _, err := b.runner.Run(ctx, append([]string{"add", "-q", "--"}, paths...)...); err != nil {
		return fmt.Errorf("failed to add %s: %w", strings.Join(paths, ", "), err)
	}
	return nil
}

// Commit records changes to tracked and added files
func (b *Backend) Commit(ctx context.Context, message, author string) error {
	who, err := scm.ParseAuthor(author)
	if err != nil {
		return err
	}
	if _, err := b.runner.Run(ctx, "commit", "-q", "-m", message, "-u", who.String()); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// MergeOpenHeads merges every extra head of the current branch into the
// working directory parent, one commit per head.
func (b *Backend) MergeOpenHeads(ctx context.Context, message, author string) error {
	branch, err := b.CurrentBranch(ctx)
	if err != nil {
		return err
	}
	heads, err := b.runner.RunLines(ctx, "heads", "-T", "{node}\n", branch)
	if err != nil {
		if scm.ExitCode(err) == 1 {
			return nil
		}
		return fmt.Errorf("failed to list heads of %s: %w", branch, err)
	}
	if len(heads) < 2 {
		return nil
	}

	parent, err := b.runner.Run(ctx, "log", "-r", ".", "-T", "{node}")
	if err != nil {
		return fmt.Errorf("failed to identify working directory parent: %w", err)
	}
	for _, head := range heads {
		if head == parent {
			continue
		}
		b.log.Debug("merging extra head %s of %s", head[:12], branch)
		if err := b.MergeInto(ctx, head, ""); err != nil {
			return err
		}
		if err := b.Commit(ctx, message, author); err != nil {
			return err
		}
	}
	return nil
}

// CloseBranch commits a close marker on name and returns to the branch the
// working directory was on.
func (b *Backend) CloseBranch(ctx context.Context, name, message, author string) error {
	who, err := scm.ParseAuthor(author)
	if err != nil {
		return err
	}
	previous, err := b.CurrentBranch(ctx)
	if err != nil {
		return err
	}
	if err := b.Update(ctx, name); err != nil {
		return err
	}
	if _, err := b.runner.Run(ctx, "commit", "-q", "--close-branch", "-m", message, "-u", who.String()); err != nil {
		return fmt.Errorf("failed to close branch %s: %w", name, err)
	}
	if previous != name {
		return b.Update(ctx, previous)
	}
	return nil
}

// RemoteURL resolves the configured remote through the repository's
// [paths]. A remote that is not a path alias is returned as is.
func (b *Backend) RemoteURL(ctx context.Context) (string, error) {
	alias := b.remote
	if alias == "" {
		alias = "default"
	}
	url, err := b.runner.Run(ctx, "paths", alias)
	if err != nil {
		if b.remote != "" {
			return b.remote, nil
		}
		return "", fmt.Errorf("no default path configured: %w", err)
	}
	return url, nil
}

// Push pushes the named branches, creating them remotely if needed. Having
// nothing to push is not an error.
func (b *Backend) Push(ctx context.Context, branches ...string) error {
	if len(branches) == 0 {
		return nil
	}
	args := []string{"push", "-q", "--new-branch"}
	for _, branch := range branches {
		args = append(args, "-b", branch)
	}
	if b.remote != "" {
		args = append(args, b.remote)
	}
	if _, err := b.runner.Run(ctx, args...); err != nil {
		// hg push exits 1 when there are no outgoing changes
		if scm.ExitCode(err) == 1 {
			return nil
		}
		return fmt.Errorf("failed to push %s: %w", strings.Join(branches, ", "), err)
	}
	return nil
}

// Pull pulls changesets without updating the working directory
func (b *Backend) Pull(ctx context.Context, opts scm.PullOptions) error {
	args := []string{"pull", "-q"}
	if opts.Revision != "" {
		args = append(args, "-r", opts.Revision)
	}
	if opts.Branch != "" {
		args = append(args, "-b", opts.Branch)
	}
	source := opts.Remote
	if source == "" {
		source = b.remote
	}
	if source != "" {
		args = append(args, source)
	}
	if _, err := b.runner.Run(ctx, args...); err != nil {
		return fmt.Errorf("failed to pull: %w", err)
	}
	return nil
}

// CreateBranch updates to the fork point of name and marks the working
// directory as being on name. The branch exists once committed to.
func (b *Backend) CreateBranch(ctx context.Context, name string) error {
	existing, err := b.branchNames(ctx, false)
	if err != nil {
		return err
	}
	fork := b.naming.ForkPoint(existing, name)
	if err := b.Update(ctx, fork); err != nil {
		return err
	}
	if _, err := b.runner.Run(ctx, "branch", "-q", name); err != nil {
		return fmt.Errorf("failed to create branch %s from %s: %w", name, fork, err)
	}
	b.log.Debug("created %s from %s", name, fork)
	return nil
}

// DeleteBranch drops a branch that was never committed to. Committed hg
// branches are permanent and can only be closed.
func (b *Backend) DeleteBranch(ctx context.Context, name string) error {
	committed, err := b.branchNames(ctx, true)
	if err != nil {
		return err
	}
	if slices.Contains(committed, name) {
		return fmt.Errorf("%w: committed hg branch %s cannot be deleted", gkerrors.ErrBackendUnsupported, name)
	}
	current, err := b.CurrentBranch(ctx)
	if err != nil {
		return err
	}
	if current == name {
		// reset the pending branch name to the parent's branch
		if _, err := b.runner.Run(ctx, "branch", "-q", "-C"); err != nil {
			return fmt.Errorf("failed to drop branch %s: %w", name, err)
		}
	}
	return nil
}

// IsMerged reports whether revision is an ancestor of, or equal to, into
func (b *Backend) IsMerged(ctx context.Context, revision, into string) (bool, error) {
	revset := fmt.Sprintf("ancestors(%s) and %s", quote(into), quote(revision))
	nodes, err := b.runner.RunLines(ctx, "log", "-r", revset, "-T", "{node}\n")
	if err != nil {
		return false, fmt.Errorf("failed to check whether %s is merged into %s: %w", revision, into, err)
	}
	return len(nodes) > 0, nil
}

// quote renders s as a revset string literal
func quote(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s) + "'"
}
