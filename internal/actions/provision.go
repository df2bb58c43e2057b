package actions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gatekeeper.dev/gatekeeper/internal/config"
	gkerrors "gatekeeper.dev/gatekeeper/internal/errors"
	"gatekeeper.dev/gatekeeper/internal/output"
	"gatekeeper.dev/gatekeeper/internal/release"
	"gatekeeper.dev/gatekeeper/internal/runtime"
	"gatekeeper.dev/gatekeeper/internal/scm"
)

// ProvisionStatus tells whether Ensure created the branch
type ProvisionStatus string

const (
	ProvisionAlreadyExists ProvisionStatus = "already-exists"
	ProvisionCreated       ProvisionStatus = "created"
)

// ProvisionResult is the outcome of Provisioner.Ensure
type ProvisionResult struct {
	Branch string
	Status ProvisionStatus
}

// Created reports whether the branch was created
func (r *ProvisionResult) Created() bool {
	return r != nil && r.Status == ProvisionCreated
}

// ProvisionOptions describes the creation commit of a new release branch
type ProvisionOptions struct {
	Template release.Template
	// Message may use {branch} and {release}
	Message config.MessageTemplate
	Author  string
}

// Provisioner creates missing release branches
type Provisioner struct {
	rt *runtime.Context
}

// NewProvisioner creates a Provisioner
func NewProvisioner(rt *runtime.Context) *Provisioner {
	return &Provisioner{rt: rt}
}

// Ensure makes sure branch exists. An existing branch, closed ones included,
// is left untouched. A missing release branch is created from its fork
// point with the rendered release file committed on it. When creation
// fails the workspace is reset to where it was before the error is returned.
func (p *Provisioner) Ensure(ctx context.Context, branch string, opts ProvisionOptions) (*ProvisionResult, error) {
	s := p.rt.SCM
	naming := p.rt.Naming

	exists, err := scm.HasBranch(ctx, s, branch, true)
	if err != nil {
		return nil, gkerrors.NewProvisionError(branch, err)
	}
	if exists {
		return &ProvisionResult{Branch: branch, Status: ProvisionAlreadyExists}, nil
	}

	if naming.IsTrunk(branch) {
		return nil, gkerrors.NewProvisionError(branch, fmt.Errorf("trunk branch is missing and is never created"))
	}
	rel, ok := naming.Parse(branch)
	if !ok {
		return nil, gkerrors.NewProvisionError(branch, fmt.Errorf("%w: %s", gkerrors.ErrNotARelease, branch))
	}
	if err := opts.Template.Validate(); err != nil {
		return nil, gkerrors.NewProvisionError(branch, err)
	}

	previous, err := s.CurrentBranch(ctx)
	if err != nil {
		previous = naming.Trunk
	}

	if err := p.create(ctx, branch, rel, opts); err != nil {
		p.rollback(ctx, branch, previous)
		return nil, gkerrors.NewProvisionError(branch, err)
	}

	p.rt.Splog.Info("Created release branch %s", output.ColorBranchName(branch))
	return &ProvisionResult{Branch: branch, Status: ProvisionCreated}, nil
}

func (p *Provisioner) create(ctx context.Context, branch string, rel release.Release, opts ProvisionOptions) error {
	s := p.rt.SCM

	if err := s.CreateBranch(ctx, branch); err != nil {
		return err
	}

	if !opts.Template.IsZero() {
		path := filepath.Join(s.Root(), opts.Template.Path)
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", opts.Template.Path, err)
		}
		if err := os.WriteFile(path, []byte(opts.Template.Render(rel)), 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", opts.Template.Path, err)
		}
		if err := s.Add(ctx, opts.Template.Path); err != nil {
			return err
		}
	}

	message := opts.Message.WithDefault(config.DefaultReleaseMessage).Expand(map[string]string{
		config.PlaceholderBranch:  branch,
		config.PlaceholderRelease: rel.String(),
	})
	return s.Commit(ctx, message, opts.Author)
}

// rollback returns the workspace to previous and drops the half-made
// branch. Failures are logged; the provisioning error is what matters.
func (p *Provisioner) rollback(ctx context.Context, branch, previous string) {
	s := p.rt.SCM
	splog := p.rt.Splog

	if err := scm.ResetWorkspace(ctx, s, previous); err != nil {
		splog.Warn("Failed to reset workspace to %s: %v", previous, err)
	}
	if err := s.DeleteBranch(ctx, branch); err != nil {
		splog.Debug("Could not delete %s: %v", branch, err)
	}
}
