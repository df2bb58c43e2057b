package release

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Placeholder is replaced with the release identifier when a release file is rendered
const Placeholder = "{{release}}"

// Template describes the metadata file written into a new release branch.
// A zero Template writes nothing.
type Template struct {
	Path    string
	Content string
}

// IsZero reports whether no release file is configured
func (t Template) IsZero() bool {
	return t.Path == ""
}

// Validate checks that the release file stays inside the working copy
func (t Template) Validate() error {
	if t.IsZero() {
		return nil
	}
	if filepath.IsAbs(t.Path) {
		return fmt.Errorf("release file path %q must be relative to the repository root", t.Path)
	}
	clean := filepath.Clean(t.Path)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("release file path %q escapes the repository root", t.Path)
	}
	return nil
}

// Render returns the file content for the given release
func (t Template) Render(r Release) string {
	return strings.ReplaceAll(t.Content, Placeholder, r.String())
}
