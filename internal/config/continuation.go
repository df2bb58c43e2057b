package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrNoContinuation is returned when no interrupted upmerge is recorded
var ErrNoContinuation = errors.New("no interrupted upmerge to continue")

// ContinuationState records an upmerge stopped by a conflict, so that it
// can resume once the operator has committed the resolution.
type ContinuationState struct {
	RunID string `yaml:"runID"`
	// From and To are the hop that conflicted
	From string `yaml:"from"`
	To   string `yaml:"to"`
	// Remaining is the rest of the chain, starting at To
	Remaining []string `yaml:"remaining"`
}

func continuationPath(root, backend string) string {
	return filepath.Join(StateDir(root, backend), continuationName)
}

// GetContinuationState reads the recorded interrupted upmerge
func GetContinuationState(root, backend string) (*ContinuationState, error) {
	data, err := os.ReadFile(continuationPath(root, backend))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoContinuation
		}
		return nil, fmt.Errorf("failed to read continuation state: %w", err)
	}

	var state ContinuationState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse continuation state: %w", err)
	}
	return &state, nil
}

// PersistContinuationState writes the interrupted upmerge to disk
func PersistContinuationState(root, backend string, state *ContinuationState) error {
	path := continuationPath(root, backend)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal continuation state: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// ClearContinuationState removes the recorded interrupted upmerge
func ClearContinuationState(root, backend string) error {
	err := os.Remove(continuationPath(root, backend))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear continuation state: %w", err)
	}
	return nil
}
