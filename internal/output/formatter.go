package output

import (
	"strings"
)

const chainArrow = " → "

// FormatChain renders a release chain as "r1336 → r1338 → default"
func FormatChain(chain []string) string {
	parts := make([]string, len(chain))
	for i, name := range chain {
		parts[i] = ColorChainBranch(name, i)
	}
	return strings.Join(parts, ColorDim(chainArrow))
}

// FormatHop renders a single merge between two branches
func FormatHop(from, to string) string {
	return ColorBranchName(from) + ColorDim(chainArrow) + ColorBranchName(to)
}

// FormatBranchList renders branch names as a comma separated list
func FormatBranchList(branches []string) string {
	if len(branches) == 0 {
		return ColorDim("(none)")
	}
	colored := make([]string, len(branches))
	for i, b := range branches {
		colored[i] = ColorBranchName(b)
	}
	return strings.Join(colored, ", ")
}
