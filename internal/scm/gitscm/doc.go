// Package gitscm implements scm.SCM on top of git.
//
// Git branches are lightweight: a branch is either a local head or a
// remote-tracking head of the configured remote, and both are reported by
// ListBranches. Git has no notion of a closed branch, so CloseBranch only
// logs a warning.
//
// Reads (branch listing, current branch, ancestry) go through go-git;
// every mutation shells out to the git binary.
package gitscm
