// Package ui provides terminal styling for psync output.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1a7f37", Dark: "#3fb950"}).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9a6700", Dark: "#d29922"}).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#cf222e", Dark: "#f85149"}).Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#0969da", Dark: "#58a6ff"})
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6e7781", Dark: "#8b949e"})
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// RenderPass styles a success marker or message.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn styles a warning marker or message.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderFail styles an error marker or message.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderAccent styles identifiers and links.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderMuted styles secondary detail.
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// RenderHeader styles a section heading.
func RenderHeader(s string) string { return headerStyle.Render(s) }

// IsInteractive reports whether stdin and stdout are both terminals, i.e.
// whether it is reasonable to prompt.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
