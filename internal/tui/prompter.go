package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Dicklesworthstone/toolguard/internal/approval"
	"github.com/Dicklesworthstone/toolguard/internal/tui/theme"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"golang.org/x/term"
)

// ErrNotTerminal is returned when the prompt has no terminal to ask on.
var ErrNotTerminal = errors.New("approval prompt needs an interactive terminal")

// Options configures a Prompter.
type Options struct {
	// Input is read for key presses. Defaults to os.Stdin and must be a TTY.
	Input *os.File
	// Output receives the rendered prompt. Defaults to os.Stderr.
	Output io.Writer
	// Theme selects the colour scheme. Empty means auto-detect.
	Theme  theme.FlavorName
	Logger *log.Logger
}

// Prompter asks for approval in the terminal. It implements
// approval.Approver.
type Prompter struct {
	input  *os.File
	output io.Writer
	logger *log.Logger
}

var _ approval.Approver = (*Prompter)(nil)

// NewPrompter creates a terminal approver.
func NewPrompter(opts Options) *Prompter {
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Theme == "" {
		opts.Theme = theme.FlavorAuto
	}
	theme.SetTheme(opts.Theme)
	return &Prompter{input: opts.Input, output: opts.Output, logger: opts.Logger}
}

// AskApproval shows req and waits for an answer or for ctx to end.
func (p *Prompter) AskApproval(ctx context.Context, req approval.Request) (bool, error) {
	if !term.IsTerminal(int(p.input.Fd())) {
		return false, ErrNotTerminal
	}

	p.logger.Debug("prompting for approval", "id", req.ID, "tool", req.ToolName, "typed", req.RequiresTypedConfirmation)

	program := tea.NewProgram(
		NewModel(req),
		tea.WithContext(ctx),
		tea.WithInput(p.input),
		tea.WithOutput(p.output),
	)
	final, err := program.Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, fmt.Errorf("running approval prompt: %w", err)
	}

	m, ok := final.(Model)
	if !ok {
		return false, fmt.Errorf("approval prompt returned %T", final)
	}
	return m.Approved(), nil
}
