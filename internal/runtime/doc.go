// Package runtime provides the execution context shared by gatekeeper
// steps: the SCM backend, release naming, pending push registry, config
// and console output.
package runtime
