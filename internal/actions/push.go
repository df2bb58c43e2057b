package actions

import (
	"context"

	gkerrors "gatekeeper.dev/gatekeeper/internal/errors"
	"gatekeeper.dev/gatekeeper/internal/output"
	"gatekeeper.dev/gatekeeper/internal/runtime"
)

// PushResult is the outcome of a push step
type PushResult struct {
	Branches []string
	// NoOp is set when nothing was pending
	NoOp bool
}

// Pusher publishes every branch recorded for a run in one push
type Pusher struct {
	rt *runtime.Context
}

// NewPusher creates a Pusher
func NewPusher(rt *runtime.Context) *Pusher {
	return &Pusher{rt: rt}
}

// Pending returns the branches recorded for runID without consuming them
func (p *Pusher) Pending(ctx context.Context, runID string) ([]string, error) {
	return p.rt.Registry.List(ctx, runID)
}

// Run drains the pending set of runID and pushes it. The drained branches
// are not re-queued when the push fails.
func (p *Pusher) Run(ctx context.Context, runID string) (*PushResult, error) {
	splog := p.rt.Splog

	branches, err := p.rt.Registry.Drain(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(branches) == 0 {
		splog.Info("Nothing to push for run %s", runID)
		return &PushResult{NoOp: true}, nil
	}

	splog.Info("Pushing %s", output.FormatBranchList(branches))
	if err := p.rt.SCM.Push(ctx, branches...); err != nil {
		return nil, &gkerrors.PushError{Branches: branches, Err: err}
	}
	splog.Success("Pushed %d branches", len(branches))
	return &PushResult{Branches: branches}, nil
}
