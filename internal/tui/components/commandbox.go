// Package components provides reusable pieces of the approval prompt.
package components

import (
	"fmt"
	"strings"

	"github.com/Dicklesworthstone/toolguard/internal/tui/theme"
	"github.com/Dicklesworthstone/toolguard/internal/utils"
	"github.com/charmbracelet/lipgloss"
)

// DefaultMaxLines caps how much of a long script the box shows.
const DefaultMaxLines = 12

// CommandBox renders agent-supplied command text in a styled box.
type CommandBox struct {
	Command  string
	MaxWidth int
	MaxLines int
}

// NewCommandBox creates a command box with default limits.
func NewCommandBox(command string) *CommandBox {
	return &CommandBox{
		Command:  command,
		MaxWidth: 80,
		MaxLines: DefaultMaxLines,
	}
}

// WithMaxWidth sets the maximum line width in runes. Zero disables it.
func (c *CommandBox) WithMaxWidth(width int) *CommandBox {
	c.MaxWidth = width
	return c
}

// WithMaxLines sets how many lines are shown. Zero disables the limit.
func (c *CommandBox) WithMaxLines(lines int) *CommandBox {
	c.MaxLines = lines
	return c
}

// Lines returns the sanitized, truncated lines the box displays.
func (c *CommandBox) Lines() []string {
	text := strings.ReplaceAll(utils.SanitizeInput(c.Command), "\t", "    ")
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")

	hidden := 0
	if c.MaxLines > 0 && len(lines) > c.MaxLines {
		hidden = len(lines) - c.MaxLines
		lines = lines[:c.MaxLines]
	}
	if c.MaxWidth > 0 {
		for i, line := range lines {
			lines[i] = utils.Truncate(line, c.MaxWidth)
		}
	}
	if hidden > 0 {
		lines = append(lines, "… "+pluralLines(hidden)+" more")
	}
	return lines
}

// Render renders the command box as a string.
func (c *CommandBox) Render() string {
	t := theme.Current

	cmdStyle := lipgloss.NewStyle().
		Foreground(t.Green)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Overlay0).
		Padding(0, 1)

	return boxStyle.Render(cmdStyle.Render(strings.Join(c.Lines(), "\n")))
}

// RenderCompact renders the command on one short line.
func (c *CommandBox) RenderCompact() string {
	t := theme.Current

	text := strings.Join(strings.Fields(utils.SanitizeInput(c.Command)), " ")
	text = utils.Truncate(text, 40)

	style := lipgloss.NewStyle().
		Foreground(t.Green).
		Background(t.Surface).
		Padding(0, 1)

	return style.Render(text)
}

func pluralLines(n int) string {
	if n == 1 {
		return "1 line"
	}
	return fmt.Sprintf("%d lines", n)
}
