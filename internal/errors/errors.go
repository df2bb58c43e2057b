// Package errors provides sentinel errors and custom error types for gatekeeper.
// Use errors.Is() and errors.As() to check for specific error types.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common conditions
var (
	// ErrInvalidStartBranch indicates that a chain cannot start at the given branch
	ErrInvalidStartBranch = errors.New("invalid start branch")

	// ErrAmbiguousChain indicates that two release branches share a release identifier
	ErrAmbiguousChain = errors.New("ambiguous release chain")

	// ErrAmbiguousSource indicates that both or neither of a remote revision and a local branch were given
	ErrAmbiguousSource = errors.New("ambiguous merge source")

	// ErrProvisionFailed indicates that a release branch could not be created
	ErrProvisionFailed = errors.New("release branch provisioning failed")

	// ErrMergeConflict indicates that the gatekeeper merge hit a conflict
	ErrMergeConflict = errors.New("merge conflict")

	// ErrUpmergeConflict indicates that a hop of the upmerge walk hit a conflict
	ErrUpmergeConflict = errors.New("upmerge conflict")

	// ErrPushFailed indicates that pushing the pending branches failed
	ErrPushFailed = errors.New("push failed")

	// ErrBackendUnsupported indicates that the SCM backend lacks a capability.
	// It is a downgrade to be logged, never a step failure.
	ErrBackendUnsupported = errors.New("operation not supported by backend")

	// ErrNotARelease indicates that a branch name is not a release branch name
	ErrNotARelease = errors.New("not a release branch")

	// ErrNoRunID indicates that a step needing the pending push registry was run without a run identifier
	ErrNoRunID = errors.New("no run identifier")

	// ErrNotApproved indicates that a review case has no standing approval
	ErrNotApproved = errors.New("change is not approved")
)

// InvalidStartBranchError is returned when a chain is requested from a branch
// that is neither a release branch nor the trunk.
type InvalidStartBranchError struct {
	BranchName string
}

func (e *InvalidStartBranchError) Error() string {
	return fmt.Sprintf("cannot upmerge from %s: not a release branch and not the trunk", e.BranchName)
}

// Is returns true if the target error is ErrInvalidStartBranch
func (e *InvalidStartBranchError) Is(target error) bool {
	return target == ErrInvalidStartBranch
}

// AmbiguousChainError reports branches whose names parse to the same release.
type AmbiguousChainError struct {
	Release  string
	Branches []string
}

func (e *AmbiguousChainError) Error() string {
	return fmt.Sprintf("release %s is claimed by more than one branch: %s", e.Release, strings.Join(e.Branches, ", "))
}

// Is returns true if the target error is ErrAmbiguousChain
func (e *AmbiguousChainError) Is(target error) bool {
	return target == ErrAmbiguousChain
}

// ProvisionError represents a failure to create a release branch
type ProvisionError struct {
	BranchName string
	Err        error
}

func (e *ProvisionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to provision release branch %s: %v", e.BranchName, e.Err)
	}
	return fmt.Sprintf("failed to provision release branch %s", e.BranchName)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// Is returns true if the target error is ErrProvisionFailed
func (e *ProvisionError) Is(target error) bool {
	return target == ErrProvisionFailed
}

// NewProvisionError creates a new ProvisionError
func NewProvisionError(branchName string, err error) *ProvisionError {
	return &ProvisionError{BranchName: branchName, Err: err}
}

// MergeConflictError represents a conflict while merging a revision into a branch.
// The workspace is left in the conflicted state.
type MergeConflictError struct {
	Source string
	Target string
	Files  []string
}

func (e *MergeConflictError) Error() string {
	msg := fmt.Sprintf("merge conflict merging %s into %s", e.Source, e.Target)
	if len(e.Files) > 0 {
		msg += fmt.Sprintf(" (conflicted: %s)", strings.Join(e.Files, ", "))
	}
	return msg
}

// Is returns true if the target error is ErrMergeConflict
func (e *MergeConflictError) Is(target error) bool {
	return target == ErrMergeConflict
}

// NewMergeConflictError creates a new MergeConflictError
func NewMergeConflictError(source, target string, files []string) *MergeConflictError {
	return &MergeConflictError{Source: source, Target: target, Files: files}
}

// UpmergeConflictError reports the hop where the upmerge walk stopped.
// Completed lists the destination branches merged before the failure.
type UpmergeConflictError struct {
	From      string
	To        string
	Completed []string
	Err       error
}

func (e *UpmergeConflictError) Error() string {
	msg := fmt.Sprintf("upmerge stopped at %s -> %s", e.From, e.To)
	if len(e.Completed) > 0 {
		msg += fmt.Sprintf(" after merging into %s", strings.Join(e.Completed, ", "))
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *UpmergeConflictError) Unwrap() error {
	return e.Err
}

// Is returns true if the target error is ErrUpmergeConflict
func (e *UpmergeConflictError) Is(target error) bool {
	return target == ErrUpmergeConflict
}

// PushError represents a failed push of the pending branch set.
// The branches are not re-queued.
type PushError struct {
	Branches []string
	Err      error
}

func (e *PushError) Error() string {
	return fmt.Sprintf("failed to push %s: %v", strings.Join(e.Branches, ", "), e.Err)
}

func (e *PushError) Unwrap() error {
	return e.Err
}

// Is returns true if the target error is ErrPushFailed
func (e *PushError) Is(target error) bool {
	return target == ErrPushFailed
}

// CommandError represents an error from an SCM command execution
type CommandError struct {
	Command string
	Args    []string
	Stdout  string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s command failed", e.Command)
	if len(e.Args) > 0 {
		msg += fmt.Sprintf(" %v", e.Args)
	}
	if e.Stderr != "" {
		msg += fmt.Sprintf("\nstderr: %s", e.Stderr)
	}
	if e.Stdout != "" {
		msg += fmt.Sprintf("\nstdout: %s", e.Stdout)
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n%v", e.Err)
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError creates a new CommandError
func NewCommandError(command string, args []string, stdout, stderr string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Args:    args,
		Stdout:  stdout,
		Stderr:  stderr,
		Err:     err,
	}
}
