// Package theme provides the Lip Gloss color palette and reusable styles
// for the relay TUI. It is a leaf package with no internal imports.
package theme

import "github.com/charmbracelet/lipgloss"

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorAccent  = lipgloss.Color("#06b6d4")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleActive = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorDanger)
)

// SessionGlyph marks a row in the session list.
func SessionGlyph(active, selected bool) string {
	switch {
	case active && selected:
		return "▶●"
	case active:
		return " ●"
	case selected:
		return "▶ "
	default:
		return "  "
	}
}
