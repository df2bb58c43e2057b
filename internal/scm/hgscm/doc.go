// Package hgscm implements scm.SCM on top of the hg command line.
//
// Mercurial named branches are permanent and recorded in every commit, so
// they cannot be deleted once committed to, but they can be closed. Closed
// branches are hidden from ListBranches unless asked for.
package hgscm
