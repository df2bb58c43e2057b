// Package release understands the release-train branching model.
//
// It handles:
//   - Parsing release branch names (a fixed prefix followed by digits)
//   - Ordering release branches into the chain an upmerge walks
//   - Rendering the release file written into freshly created release branches
//
// Nothing in this package touches a repository; callers pass branch names in.
package release
