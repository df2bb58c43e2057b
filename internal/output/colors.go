package output

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// chainPalette colors successive branches of a release chain
var chainPalette = [][]int{
	{76, 203, 241},  // Light blue
	{77, 202, 125},  // Green
	{110, 173, 38},  // Dark green
	{245, 200, 0},   // Yellow
	{248, 144, 72},  // Orange
	{244, 98, 81},   // Red
	{235, 130, 188}, // Pink
	{159, 131, 228}, // Purple
	{80, 132, 243},  // Blue
}

// InitColors picks the color profile for f. Output that is not a terminal
// gets no escape sequences; NO_COLOR and CLICOLOR_FORCE are honored.
func InitColors(f *os.File) {
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) && os.Getenv("CLICOLOR_FORCE") == "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	lipgloss.SetColorProfile(termenv.NewOutput(f).EnvColorProfile())
}

// ColorChainBranch colors a branch by its position in a chain
func ColorChainBranch(name string, index int) string {
	c := chainPalette[index%len(chainPalette)]
	hex := lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
	return lipgloss.NewStyle().Foreground(hex).Render(name)
}

// ColorBranchName colors a branch name
func ColorBranchName(name string) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Render(name)
}

// ColorDim makes text dim/gray
func ColorDim(text string) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Render(text)
}
