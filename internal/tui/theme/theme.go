// Package theme provides the colour schemes for toolguard's terminal prompt.
package theme

import (
	"github.com/Dicklesworthstone/toolguard/internal/core"
	"github.com/charmbracelet/lipgloss"
)

// Theme defines a colour scheme.
type Theme struct {
	Mauve  lipgloss.Color // Titles, accents
	Blue   lipgloss.Color // Section headers
	Green  lipgloss.Color // Approved, commands, safe
	Teal   lipgloss.Color // Low risk
	Yellow lipgloss.Color // Medium risk
	Peach  lipgloss.Color // High risk
	Red    lipgloss.Color // Critical risk, denied
	Pink   lipgloss.Color // Highlights

	Text    lipgloss.Color
	Subtext lipgloss.Color

	Surface  lipgloss.Color
	Base     lipgloss.Color
	Mantle   lipgloss.Color
	Overlay0 lipgloss.Color

	Name   string
	IsDark bool
}

// FlavorName represents a Catppuccin flavor.
type FlavorName string

const (
	FlavorMocha FlavorName = "mocha"
	FlavorLatte FlavorName = "latte"
	FlavorAuto  FlavorName = "auto"
)

// Current holds the active theme.
var Current = Mocha()

// SetTheme sets the current theme by flavor name. FlavorAuto picks Latte on
// light terminals and Mocha otherwise; unknown names fall back to Mocha.
func SetTheme(flavor FlavorName) {
	switch flavor {
	case FlavorLatte:
		Current = Latte()
	case FlavorAuto:
		if lipgloss.HasDarkBackground() {
			Current = Mocha()
		} else {
			Current = Latte()
		}
	default:
		Current = Mocha()
	}
}

// LevelColor returns the colour for a risk level.
func (t *Theme) LevelColor(level core.RiskLevel) lipgloss.Color {
	switch level {
	case core.RiskCritical:
		return t.Red
	case core.RiskHigh:
		return t.Peach
	case core.RiskMedium:
		return t.Yellow
	case core.RiskLow:
		return t.Teal
	case core.RiskSafe:
		return t.Green
	default:
		return t.Text
	}
}

// LevelEmoji returns the marker shown next to a risk level.
func LevelEmoji(level core.RiskLevel) string {
	switch level {
	case core.RiskCritical:
		return "🔴"
	case core.RiskHigh:
		return "🟠"
	case core.RiskMedium:
		return "🟡"
	case core.RiskLow:
		return "🔵"
	case core.RiskSafe:
		return "🟢"
	default:
		return "⚪"
	}
}
