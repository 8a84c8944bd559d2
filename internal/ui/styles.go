// Package ui holds the terminal styles shared by marksync commands.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Adaptive colors pick a readable shade for light and dark terminals.
var (
	ColorAccent = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
	ColorPass   = lipgloss.AdaptiveColor{Light: "#15803D", Dark: "#4ADE80"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
)

var (
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail).Bold(true)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	FolderStyle = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Init selects the color profile for output written to f. Output that is not
// a terminal, or any output when NO_COLOR is set, is rendered without escape
// sequences.
func Init(f *os.File) {
	if os.Getenv("NO_COLOR") != "" || !IsTerminal(f) {
		SetPlain()
		return
	}
	lipgloss.SetColorProfile(termenv.EnvColorProfile())
}

// SetPlain disables styling.
func SetPlain() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func RenderAccent(s string) string { return AccentStyle.Render(s) }
func RenderPass(s string) string   { return PassStyle.Render(s) }
func RenderWarn(s string) string   { return WarnStyle.Render(s) }
func RenderFail(s string) string   { return FailStyle.Render(s) }
func RenderMuted(s string) string  { return MutedStyle.Render(s) }
