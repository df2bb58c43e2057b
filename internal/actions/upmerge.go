package actions

import (
	"context"
	"errors"
	"fmt"

	"gatekeeper.dev/gatekeeper/internal/config"
	gkerrors "gatekeeper.dev/gatekeeper/internal/errors"
	"gatekeeper.dev/gatekeeper/internal/output"
	"gatekeeper.dev/gatekeeper/internal/release"
	"gatekeeper.dev/gatekeeper/internal/runtime"
	"gatekeeper.dev/gatekeeper/internal/scm"
)

// HopStatus is the outcome of one hop of an upmerge
type HopStatus string

const (
	// HopMerged means a merge commit was made
	HopMerged HopStatus = "merged"
	// HopNoop means the destination already contained the source, so
	// nothing was committed
	HopNoop HopStatus = "noop"
)

// Hop is one completed step of an upmerge walk
type Hop struct {
	From    string
	To      string
	Status  HopStatus
	Created bool
}

// UpmergeOptions describes an upmerge walk
type UpmergeOptions struct {
	RunID    string
	Chain    release.Chain
	Template release.Template
	Messages config.MessagesConfig
	Author   string
}

// UpmergeResult lists the hops completed, in walk order
type UpmergeResult struct {
	Chain release.Chain
	Hops  []Hop
}

// Completed returns the destinations of the completed hops
func (r *UpmergeResult) Completed() []string {
	done := make([]string, len(r.Hops))
	for i, h := range r.Hops {
		done[i] = h.To
	}
	return done
}

// Upmerger walks a release chain, merging every branch into the next
type Upmerger struct {
	rt          *runtime.Context
	provisioner *Provisioner
}

// NewUpmerger creates an Upmerger
func NewUpmerger(rt *runtime.Context) *Upmerger {
	return &Upmerger{rt: rt, provisioner: NewProvisioner(rt)}
}

// ResolveChain computes the chain from start over the open branches
func ResolveChain(ctx context.Context, rt *runtime.Context, start string) (release.Chain, error) {
	branches, err := rt.SCM.ListBranches(ctx, false)
	if err != nil {
		return nil, err
	}
	return rt.Naming.Resolve(scm.BranchNames(branches), start)
}

// RunFrom resolves the chain starting at start and walks it
func (u *Upmerger) RunFrom(ctx context.Context, start string, opts UpmergeOptions) (*UpmergeResult, error) {
	chain, err := ResolveChain(ctx, u.rt, start)
	if err != nil {
		return nil, err
	}
	opts.Chain = chain
	return u.Run(ctx, opts)
}

// Run merges each branch of the chain into the next, strictly in order.
// A conflict stops the walk with an *errors.UpmergeConflictError; hops
// completed before it stay merged and recorded for push.
func (u *Upmerger) Run(ctx context.Context, opts UpmergeOptions) (*UpmergeResult, error) {
	splog := u.rt.Splog
	result := &UpmergeResult{Chain: opts.Chain}

	if opts.RunID == "" {
		return result, gkerrors.ErrNoRunID
	}
	if len(opts.Chain) < 2 {
		splog.Info("Nothing to upmerge from %s", output.ColorBranchName(opts.Chain.Start()))
		return result, nil
	}
	splog.Info("Upmerging %s", output.FormatChain(opts.Chain))

	if u.rt.Naming.IsRelease(opts.Chain.Start()) {
		if _, err := u.ensure(ctx, opts.Chain.Start(), opts); err != nil {
			return result, err
		}
	}

	for _, pair := range opts.Chain.Hops() {
		hop, err := u.hop(ctx, pair[0], pair[1], opts)
		if err != nil {
			if errors.Is(err, gkerrors.ErrMergeConflict) {
				return result, &gkerrors.UpmergeConflictError{
					From:      pair[0],
					To:        pair[1],
					Completed: result.Completed(),
					Err:       err,
				}
			}
			return result, fmt.Errorf("upmerge %s -> %s: %w", pair[0], pair[1], err)
		}
		result.Hops = append(result.Hops, hop)
	}
	return result, nil
}

// Continue resumes a walk interrupted at from -> to once the operator has
// committed the resolved merge on to. remaining starts at to.
func (u *Upmerger) Continue(ctx context.Context, from, to string, remaining release.Chain, opts UpmergeOptions) (*UpmergeResult, error) {
	merged, err := u.rt.SCM.IsMerged(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if !merged {
		return nil, fmt.Errorf("%s is not merged into %s yet: resolve the conflict and commit first", from, to)
	}
	if err := u.rt.Registry.Add(ctx, opts.RunID, to); err != nil {
		return nil, err
	}
	opts.Chain = remaining
	result, err := u.Run(ctx, opts)
	if result != nil {
		result.Hops = append([]Hop{{From: from, To: to, Status: HopMerged}}, result.Hops...)
	}
	return result, err
}

func (u *Upmerger) ensure(ctx context.Context, branch string, opts UpmergeOptions) (bool, error) {
	prov, err := u.provisioner.Ensure(ctx, branch, ProvisionOptions{
		Template: opts.Template,
		Message:  opts.Messages.Release,
		Author:   opts.Author,
	})
	if err != nil {
		return false, err
	}
	if prov.Created() {
		if err := u.rt.Registry.Add(ctx, opts.RunID, branch); err != nil {
			return false, err
		}
	}
	return prov.Created(), nil
}

func (u *Upmerger) hop(ctx context.Context, from, to string, opts UpmergeOptions) (Hop, error) {
	s := u.rt.SCM
	splog := u.rt.Splog
	hop := Hop{From: from, To: to}

	if u.rt.Naming.IsRelease(to) {
		created, err := u.ensure(ctx, to, opts)
		if err != nil {
			return hop, err
		}
		hop.Created = created
	}

	if err := s.Update(ctx, to); err != nil {
		return hop, err
	}

	merged, err := s.IsMerged(ctx, from, to)
	if err != nil {
		return hop, err
	}
	if merged {
		hop.Status = HopNoop
		splog.Info("  %s already contains %s", output.ColorBranchName(to), from)
		return hop, nil
	}

	if err := s.MergeInto(ctx, from, ""); err != nil {
		return hop, err
	}
	message := opts.Messages.Upmerge.WithDefault(config.DefaultUpmergeMessage).Expand(map[string]string{
		config.PlaceholderSource: from,
		config.PlaceholderTarget: to,
	})
	if err := s.Commit(ctx, message, opts.Author); err != nil {
		return hop, err
	}
	if err := u.rt.Registry.Add(ctx, opts.RunID, to); err != nil {
		return hop, err
	}

	hop.Status = HopMerged
	splog.Success("Merged %s", output.FormatHop(from, to))
	return hop, nil
}
