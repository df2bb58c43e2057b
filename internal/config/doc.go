// Package config loads gatekeeper settings from .gatekeeper.yaml, the
// environment and command line flags, in increasing order of precedence.
package config
