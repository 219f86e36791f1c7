// Package styles provides the lipgloss styles used by the approval prompt.
package styles

import (
	"github.com/Dicklesworthstone/toolguard/internal/core"
	"github.com/Dicklesworthstone/toolguard/internal/tui/theme"
	"github.com/charmbracelet/lipgloss"
)

// Styles contains all the styled lipgloss renderers.
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Label    lipgloss.Style

	Normal    lipgloss.Style
	Dimmed    lipgloss.Style
	Bold      lipgloss.Style
	Highlight lipgloss.Style
	Help      lipgloss.Style

	Approved lipgloss.Style
	Denied   lipgloss.Style

	LevelCritical lipgloss.Style
	LevelHigh     lipgloss.Style
	LevelMedium   lipgloss.Style
	LevelLow      lipgloss.Style
	LevelSafe     lipgloss.Style

	Panel lipgloss.Style
	Input lipgloss.Style
}

// New creates styles from the current theme.
func New() *Styles {
	return FromTheme(theme.Current)
}

// FromTheme creates styles from a specific theme.
func FromTheme(t *theme.Theme) *Styles {
	s := &Styles{}

	s.Title = lipgloss.NewStyle().
		Foreground(t.Mauve).
		Bold(true)

	s.Subtitle = lipgloss.NewStyle().
		Foreground(t.Subtext).
		Italic(true)

	s.Label = lipgloss.NewStyle().
		Foreground(t.Blue).
		Bold(true).
		Width(9)

	s.Normal = lipgloss.NewStyle().Foreground(t.Text)
	s.Dimmed = lipgloss.NewStyle().Foreground(t.Subtext)
	s.Bold = lipgloss.NewStyle().Foreground(t.Text).Bold(true)
	s.Highlight = lipgloss.NewStyle().Foreground(t.Pink).Bold(true)
	s.Help = lipgloss.NewStyle().Foreground(t.Overlay0)

	s.Approved = lipgloss.NewStyle().Foreground(t.Green).Bold(true)
	s.Denied = lipgloss.NewStyle().Foreground(t.Red).Bold(true)

	badgeBase := lipgloss.NewStyle().
		Padding(0, 1).
		Bold(true).
		Foreground(t.Base)

	s.LevelCritical = badgeBase.Background(t.LevelColor(core.RiskCritical))
	s.LevelHigh = badgeBase.Background(t.LevelColor(core.RiskHigh))
	s.LevelMedium = badgeBase.Background(t.LevelColor(core.RiskMedium))
	s.LevelLow = badgeBase.Background(t.LevelColor(core.RiskLow))
	s.LevelSafe = badgeBase.Background(t.LevelColor(core.RiskSafe))

	s.Panel = lipgloss.NewStyle().
		Padding(1, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Overlay0)

	s.Input = lipgloss.NewStyle().
		Foreground(t.Text).
		Border(lipgloss.NormalBorder()).
		BorderForeground(t.Mauve).
		Padding(0, 1)

	return s
}

// LevelBadge returns the badge style for a risk level.
func (s *Styles) LevelBadge(level core.RiskLevel) lipgloss.Style {
	switch level {
	case core.RiskCritical:
		return s.LevelCritical
	case core.RiskHigh:
		return s.LevelHigh
	case core.RiskMedium:
		return s.LevelMedium
	case core.RiskLow:
		return s.LevelLow
	case core.RiskSafe:
		return s.LevelSafe
	default:
		return s.Dimmed
	}
}

// RenderLevelBadge renders a risk level as a badge. An empty level renders
// as "unclassified".
func (s *Styles) RenderLevelBadge(level core.RiskLevel) string {
	text := string(level)
	if text == "" {
		text = "unclassified"
	}
	return s.LevelBadge(level).Render(theme.LevelEmoji(level) + " " + text)
}
