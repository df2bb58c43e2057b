package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Placeholders understood by message templates
const (
	PlaceholderSource  = "{source}"
	PlaceholderTarget  = "{target}"
	PlaceholderBranch  = "{branch}"
	PlaceholderRelease = "{release}"
)

var knownPlaceholders = []string{PlaceholderSource, PlaceholderTarget, PlaceholderBranch, PlaceholderRelease}

var placeholderRegex = regexp.MustCompile(`\{[a-z]+\}`)

// MessageTemplate is a commit message with {placeholder} tokens
type MessageTemplate string

// Default commit message templates
const (
	DefaultIntegrationMessage MessageTemplate = "[Integration Merge] Merged {source} into {target}"
	DefaultUpmergeMessage     MessageTemplate = "[Upmerge] Merged {source} into {target}"
	DefaultReleaseMessage     MessageTemplate = "[Release] Created release branch {branch}"
	DefaultCloseMessage       MessageTemplate = "Closed branch {branch}"
	DefaultHeadsMessage       MessageTemplate = "[Integration Merge] Merged heads of {branch}"
)

// Validate checks that every placeholder is known and that the required
// ones are present.
func (m MessageTemplate) Validate(required ...string) error {
	if strings.TrimSpace(string(m)) == "" {
		return fmt.Errorf("message template must not be empty")
	}
	found := placeholderRegex.FindAllString(string(m), -1)
	for _, p := range found {
		if !slices.Contains(knownPlaceholders, p) {
			return fmt.Errorf("unknown placeholder %s in %q", p, string(m))
		}
	}
	for _, p := range required {
		if !slices.Contains(found, p) {
			return fmt.Errorf("message template %q must contain %s", string(m), p)
		}
	}
	return nil
}

// WithDefault returns the template, or def if empty
func (m MessageTemplate) WithDefault(def MessageTemplate) MessageTemplate {
	if m == "" {
		return def
	}
	return m
}

// Expand replaces placeholders with values. Placeholders without a value
// are left as they are.
func (m MessageTemplate) Expand(values map[string]string) string {
	return placeholderRegex.ReplaceAllStringFunc(string(m), func(p string) string {
		if v, ok := values[p]; ok {
			return v
		}
		return p
	})
}

// String returns the raw template
func (m MessageTemplate) String() string {
	return string(m)
}
