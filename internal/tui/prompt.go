// Package tui implements toolguard's terminal approval prompt.
package tui

import (
	"fmt"
	"strings"

	"github.com/Dicklesworthstone/toolguard/internal/approval"
	"github.com/Dicklesworthstone/toolguard/internal/tui/components"
	"github.com/Dicklesworthstone/toolguard/internal/tui/styles"
	"github.com/Dicklesworthstone/toolguard/internal/utils"
	tea "github.com/charmbracelet/bubbletea"
)

// Model is the Bubble Tea model for a single approval request.
type Model struct {
	req    approval.Request
	styles *styles.Styles

	input    []rune
	mismatch bool

	done     bool
	approved bool
	width    int
}

// NewModel creates the prompt for req.
func NewModel(req approval.Request) Model {
	return Model{
		req:    req,
		styles: styles.New(),
		width:  80,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		if m.done {
			return m, nil
		}
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m.finish(false)
		}
		if m.req.RequiresTypedConfirmation {
			return m.updateTyped(msg)
		}
		switch msg.String() {
		case "y", "Y":
			return m.finish(true)
		case "n", "N", "q":
			return m.finish(false)
		}
	}
	return m, nil
}

func (m Model) updateTyped(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		if string(m.input) == m.req.ConfirmationToken {
			return m.finish(true)
		}
		m.mismatch = true
		m.input = nil
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeySpace:
		m.input = append(m.input, ' ')
		m.mismatch = false
	case tea.KeyRunes:
		m.input = append(m.input, msg.Runes...)
		m.mismatch = false
	}
	return m, nil
}

func (m Model) finish(approved bool) (tea.Model, tea.Cmd) {
	m.done = true
	m.approved = approved
	return m, tea.Quit
}

// Done reports whether the human has answered.
func (m Model) Done() bool {
	return m.done
}

// Approved reports whether the human approved. It is false until Done.
func (m Model) Approved() bool {
	return m.done && m.approved
}

// Input returns what has been typed so far.
func (m Model) Input() string {
	return string(m.input)
}

// View implements tea.Model.
func (m Model) View() string {
	s := m.styles
	if m.done {
		if m.approved {
			return s.Approved.Render("✓ approved") + "\n"
		}
		return s.Denied.Render("✗ denied") + "\n"
	}

	width := m.width - 8
	if width < 20 {
		width = 20
	}

	var b strings.Builder
	b.WriteString(styles.GradientTitle("toolguard approval required"))
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(s.Label.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}
	row("Tool", s.Bold.Render(utils.Truncate(utils.SanitizeInput(m.req.ToolName), width)))
	level := s.RenderLevelBadge(m.req.Level)
	if m.req.Label != "" {
		level += " " + s.Dimmed.Render(m.req.Label)
	}
	row("Risk", level)
	row("Reason", s.Normal.Render(utils.SanitizeInput(m.req.Reason)))
	b.WriteString("\n")
	b.WriteString(components.NewCommandBox(m.req.CommandText).WithMaxWidth(width).Render())
	b.WriteString("\n\n")

	if m.req.RequiresTypedConfirmation {
		b.WriteString(s.Normal.Render("Type "))
		b.WriteString(s.Highlight.Render(m.req.ConfirmationToken))
		b.WriteString(s.Normal.Render(" and press enter to approve"))
		b.WriteString("\n")
		b.WriteString(s.Input.Render(fmt.Sprintf("> %s█", string(m.input))))
		b.WriteString("\n")
		if m.mismatch {
			b.WriteString(s.Denied.Render("does not match, try again"))
			b.WriteString("\n")
		}
		b.WriteString(s.Help.Render("esc deny"))
	} else {
		b.WriteString(s.Help.Render("y approve • n deny • esc deny"))
	}

	return s.Panel.Render(b.String()) + "\n"
}
