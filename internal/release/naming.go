package release

import (
	"fmt"
	"regexp"
	"strconv"
)

// DefaultPrefix is the release branch prefix used when none is configured
const DefaultPrefix = "r"

// Release is the numeric identifier of a release branch.
// Releases compare by value, so r1340 > r1338 > r1336.
type Release uint64

// String returns the canonical decimal form of the release
func (r Release) String() string {
	return strconv.FormatUint(uint64(r), 10)
}

// Naming holds the naming convention of a repository's release train
type Naming struct {
	Prefix string
	Trunk  string

	pattern *regexp.Regexp
}

// NewNaming creates a Naming for the given prefix and trunk branch name
func NewNaming(prefix, trunk string) (*Naming, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if trunk == "" {
		return nil, fmt.Errorf("trunk branch name must not be empty")
	}
	return &Naming{
		Prefix:  prefix,
		Trunk:   trunk,
		pattern: regexp.MustCompile("^" + regexp.QuoteMeta(prefix) + "([0-9]+)$"),
	}, nil
}

// Parse returns the release identifier of a branch name.
// The second result is false when name is not a release branch name,
// including digit runs too large to be a release.
func (n *Naming) Parse(name string) (Release, bool) {
	m := n.pattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return Release(v), true
}

// IsRelease reports whether name is a release branch name
func (n *Naming) IsRelease(name string) bool {
	_, ok := n.Parse(name)
	return ok
}

// IsTrunk reports whether name is the trunk branch
func (n *Naming) IsTrunk(name string) bool {
	return name == n.Trunk
}

// BranchName returns the branch name for a release
func (n *Naming) BranchName(r Release) string {
	return n.Prefix + r.String()
}

// ForkPoint returns the branch a new release branch should be created from:
// the existing release branch with the highest identifier below name's,
// or the trunk when there is none.
func (n *Naming) ForkPoint(existing []string, name string) string {
	target, ok := n.Parse(name)
	if !ok {
		return n.Trunk
	}

	best := ""
	var bestRelease Release
	for _, branch := range existing {
		r, ok := n.Parse(branch)
		if !ok || r >= target {
			continue
		}
		if best == "" || r > bestRelease {
			best = branch
			bestRelease = r
		}
	}
	if best == "" {
		return n.Trunk
	}
	return best
}
