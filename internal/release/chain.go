package release

import (
	"slices"
	"sort"

	gkerrors "gatekeeper.dev/gatekeeper/internal/errors"
)

// Chain is the ordered list of branches an upmerge walks.
// The first element is the branch the change was integrated into and the
// last is always the trunk.
type Chain []string

// Start returns the first branch of the chain
func (c Chain) Start() string {
	if len(c) == 0 {
		return ""
	}
	return c[0]
}

// Hops returns the adjacent (from, to) pairs of the chain in walk order
func (c Chain) Hops() [][2]string {
	if len(c) < 2 {
		return nil
	}
	hops := make([][2]string, 0, len(c)-1)
	for i := 0; i+1 < len(c); i++ {
		hops = append(hops, [2]string{c[i], c[i+1]})
	}
	return hops
}

// Resolve computes the chain starting at start. all is the full branch list
// of the repository; start does not need to be part of it yet.
func (n *Naming) Resolve(all []string, start string) (Chain, error) {
	if n.IsTrunk(start) {
		return Chain{n.Trunk}, nil
	}

	startRelease, ok := n.Parse(start)
	if !ok {
		return nil, &gkerrors.InvalidStartBranchError{BranchName: start}
	}

	byRelease := map[Release][]string{
		startRelease: {start},
	}
	for _, name := range all {
		if name == start || n.IsTrunk(name) {
			continue
		}
		r, ok := n.Parse(name)
		if !ok {
			continue
		}
		if !slices.Contains(byRelease[r], name) {
			byRelease[r] = append(byRelease[r], name)
		}
	}

	releases := make([]Release, 0, len(byRelease))
	for r, names := range byRelease {
		if len(names) > 1 {
			sorted := slices.Clone(names)
			sort.Strings(sorted)
			return nil, &gkerrors.AmbiguousChainError{Release: r.String(), Branches: sorted}
		}
		if r > startRelease {
			releases = append(releases, r)
		}
	}
	slices.Sort(releases)

	chain := make(Chain, 0, len(releases)+2)
	chain = append(chain, start)
	for _, r := range releases {
		chain = append(chain, byRelease[r][0])
	}
	chain = append(chain, n.Trunk)
	return chain, nil
}

// Resolve computes a chain with the default prefix. It is a shorthand for
// callers that only know the trunk name.
func Resolve(all []string, start, trunk string) (Chain, error) {
	n, err := NewNaming(DefaultPrefix, trunk)
	if err != nil {
		return nil, err
	}
	return n.Resolve(all, start)
}
