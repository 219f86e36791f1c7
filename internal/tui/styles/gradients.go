package styles

import (
	"strings"

	"github.com/Dicklesworthstone/toolguard/internal/tui/theme"
	"github.com/charmbracelet/lipgloss"
)

// Gradient colours text by character position.
type Gradient struct {
	Colors []lipgloss.Color
}

// NewGradient creates a gradient from the given colours.
func NewGradient(colors ...lipgloss.Color) *Gradient {
	return &Gradient{Colors: colors}
}

// MauveBlueGradient returns a mauve-to-blue gradient.
func MauveBlueGradient() *Gradient {
	t := theme.Current
	return NewGradient(t.Mauve, t.Pink, t.Blue)
}

// LevelGradient runs from safe to critical.
func LevelGradient() *Gradient {
	t := theme.Current
	return NewGradient(t.Green, t.Teal, t.Yellow, t.Peach, t.Red)
}

// Render applies the gradient to s in steps.
func (g *Gradient) Render(s string) string {
	if len(g.Colors) == 0 || s == "" {
		return s
	}

	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		idx := (i * (len(g.Colors) - 1)) / max(len(runes)-1, 1)
		if idx >= len(g.Colors) {
			idx = len(g.Colors) - 1
		}
		b.WriteString(lipgloss.NewStyle().Foreground(g.Colors[idx]).Render(string(r)))
	}
	return b.String()
}

// GradientTitle renders a title with the mauve-to-blue gradient.
func GradientTitle(text string) string {
	return MauveBlueGradient().Render(text)
}
