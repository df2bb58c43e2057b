package actions

import (
	"context"
	"errors"
	"fmt"

	"gatekeeper.dev/gatekeeper/internal/config"
	gkerrors "gatekeeper.dev/gatekeeper/internal/errors"
	"gatekeeper.dev/gatekeeper/internal/output"
	"gatekeeper.dev/gatekeeper/internal/pushqueue"
	"gatekeeper.dev/gatekeeper/internal/release"
	"gatekeeper.dev/gatekeeper/internal/runtime"
	"gatekeeper.dev/gatekeeper/internal/scm"
)

// GatekeeperOptions describes one gatekeeper merge
type GatekeeperOptions struct {
	RunID  string
	Target string
	// Feature is the feature branch name. It is closed after the merge on
	// backends that support it, and labels the merge commit.
	Feature  string
	Source   Source
	Template release.Template
	Messages config.MessagesConfig
	Author   string
	// Offline skips pulling from the default remote for local sources
	Offline bool
}

// MergeResult is the outcome of a gatekeeper merge
type MergeResult struct {
	Target   string
	Source   string
	Revision string
	// Created is set when the target release branch was provisioned
	Created bool
	// NoOp is set when the revision was already part of the target
	NoOp bool
	// Closed is set when the feature branch was closed
	Closed bool
}

// Gatekeeper merges an approved change into its target release branch
type Gatekeeper struct {
	rt          *runtime.Context
	provisioner *Provisioner
}

// NewGatekeeper creates a Gatekeeper
func NewGatekeeper(rt *runtime.Context) *Gatekeeper {
	return &Gatekeeper{rt: rt, provisioner: NewProvisioner(rt)}
}

// Run pulls the source, provisions the target if needed, merges the
// approved revision into it and records the touched branches for push.
// A conflict returns a *errors.MergeConflictError and leaves the
// conflicted working copy for inspection.
func (g *Gatekeeper) Run(ctx context.Context, opts GatekeeperOptions) (*MergeResult, error) {
	s := g.rt.SCM
	splog := g.rt.Splog
	registry := g.rt.Registry

	if opts.Source == nil {
		return nil, fmt.Errorf("%w: no source given", gkerrors.ErrAmbiguousSource)
	}
	if opts.Target == "" {
		return nil, fmt.Errorf("no target branch given")
	}
	if opts.RunID == "" {
		return nil, gkerrors.ErrNoRunID
	}

	revision := opts.Source.Revision()
	label := opts.Feature
	if label == "" {
		label = opts.Source.Label()
	}
	result := &MergeResult{Target: opts.Target, Source: label, Revision: revision}

	switch src := opts.Source.(type) {
	case RemoteSource:
		splog.Info("Pulling %s from %s", src.Label(), remoteName(src.URL))
		if err := s.Pull(ctx, scm.PullOptions{Remote: src.URL, Revision: src.Rev}); err != nil {
			return nil, fmt.Errorf("failed to pull approved revision: %w", err)
		}
	case LocalSource:
		if !opts.Offline {
			if err := s.Pull(ctx, scm.PullOptions{}); err != nil {
				return nil, fmt.Errorf("failed to pull: %w", err)
			}
		}
	}

	prov, err := g.provisioner.Ensure(ctx, opts.Target, ProvisionOptions{
		Template: opts.Template,
		Message:  opts.Messages.Release,
		Author:   opts.Author,
	})
	if err != nil {
		return nil, err
	}
	result.Created = prov.Created()

	if err := s.Update(ctx, opts.Target); err != nil {
		return nil, err
	}
	headsMessage := opts.Messages.Heads.WithDefault(config.DefaultHeadsMessage).
		Expand(map[string]string{config.PlaceholderBranch: opts.Target})
	if err := s.MergeOpenHeads(ctx, headsMessage, opts.Author); err != nil {
		return nil, fmt.Errorf("failed to merge open heads of %s: %w", opts.Target, err)
	}

	merged, err := s.IsMerged(ctx, revision, opts.Target)
	if err != nil {
		return nil, err
	}
	if merged {
		result.NoOp = true
		splog.Info("%s is already merged into %s", label, output.ColorBranchName(opts.Target))
	} else {
		splog.Info("Merging %s", output.FormatHop(label, opts.Target))
		if err := s.MergeInto(ctx, revision, ""); err != nil {
			var conflict *gkerrors.MergeConflictError
			if errors.As(err, &conflict) {
				conflict.Source = label
				return nil, conflict
			}
			return nil, err
		}
		message := opts.Messages.Integration.WithDefault(config.DefaultIntegrationMessage).Expand(map[string]string{
			config.PlaceholderSource: label,
			config.PlaceholderTarget: opts.Target,
		})
		if err := s.Commit(ctx, message, opts.Author); err != nil {
			return nil, fmt.Errorf("failed to commit merge of %s into %s: %w", label, opts.Target, err)
		}
	}

	if opts.Feature != "" {
		closed, err := g.closeFeature(ctx, opts)
		if err != nil {
			return nil, err
		}
		result.Closed = closed
	}

	if err := registry.Add(ctx, opts.RunID, opts.Target); err != nil {
		return nil, err
	}
	if opts.Feature != "" {
		if err := registry.SetMeta(ctx, opts.RunID, pushqueue.MetaFeature, opts.Feature); err != nil {
			return nil, err
		}
	}
	if err := registry.SetMeta(ctx, opts.RunID, pushqueue.MetaTarget, opts.Target); err != nil {
		return nil, err
	}

	if !result.NoOp {
		splog.Success("Merged %s", output.FormatHop(label, opts.Target))
	}
	return result, nil
}

// closeFeature closes the feature branch once it is fully merged into the
// target, and records it for push so the close marker is published.
func (g *Gatekeeper) closeFeature(ctx context.Context, opts GatekeeperOptions) (bool, error) {
	s := g.rt.SCM
	splog := g.rt.Splog

	exists, err := scm.HasBranch(ctx, s, opts.Feature, false)
	if err != nil || !exists {
		return false, err
	}
	if !s.SupportsBranchClosing() {
		splog.Info("%s stays open: %v (%s cannot close branches)", opts.Feature, gkerrors.ErrBackendUnsupported, s.Name())
		return false, nil
	}
	merged, err := s.IsMerged(ctx, opts.Feature, opts.Target)
	if err != nil {
		return false, err
	}
	if !merged {
		splog.Warn("%s is not fully merged into %s, leaving it open", opts.Feature, opts.Target)
		return false, nil
	}

	message := opts.Messages.Close.WithDefault(config.DefaultCloseMessage).
		Expand(map[string]string{config.PlaceholderBranch: opts.Feature})
	if err := s.CloseBranch(ctx, opts.Feature, message, opts.Author); err != nil {
		return false, fmt.Errorf("failed to close %s: %w", opts.Feature, err)
	}
	if err := g.rt.Registry.Add(ctx, opts.RunID, opts.Feature); err != nil {
		return false, err
	}
	splog.Info("Closed %s", output.ColorBranchName(opts.Feature))
	return true, nil
}

func remoteName(url string) string {
	if url == "" {
		return "the default remote"
	}
	return url
}
