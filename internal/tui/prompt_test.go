package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Dicklesworthstone/toolguard/internal/approval"
	"github.com/Dicklesworthstone/toolguard/internal/core"
	"github.com/Dicklesworthstone/toolguard/internal/testutil"
	"github.com/Dicklesworthstone/toolguard/internal/tui/theme"
	tea "github.com/charmbracelet/bubbletea"
)

func standardRequest() approval.Request {
	return approval.Request{
		ID:          "req-1",
		ToolName:    "exec",
		CommandText: "git push --force origin main",
		Reason:      "Force push rewrites remote history",
		Label:       "git",
		Level:       core.RiskHigh,
	}
}

func typedRequest() approval.Request {
	return approval.Request{
		ID:                        "req-2",
		ToolName:                  "exec",
		CommandText:               "terraform destroy -auto-approve",
		Reason:                    "Destroys infrastructure",
		Level:                     core.RiskCritical,
		RequiresTypedConfirmation: true,
		ConfirmationToken:         "TERRAFORM",
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func key(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func send(m Model, msgs ...tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, msg := range msgs {
		var next tea.Model
		next, cmd = m.Update(msg)
		m = next.(Model)
	}
	return m, cmd
}

func TestModelInit(t *testing.T) {
	if cmd := NewModel(standardRequest()).Init(); cmd != nil {
		t.Error("Init should not schedule a command")
	}
}

func TestModelWindowSize(t *testing.T) {
	m, _ := send(NewModel(standardRequest()), tea.WindowSizeMsg{Width: 120, Height: 40})
	if m.width != 120 {
		t.Errorf("expected width 120, got %d", m.width)
	}
	if m.Done() {
		t.Error("resize should not answer the prompt")
	}
}

func TestModelStandardKeys(t *testing.T) {
	tests := []struct {
		name     string
		msg      tea.KeyMsg
		done     bool
		approved bool
	}{
		{"y approves", runes("y"), true, true},
		{"Y approves", runes("Y"), true, true},
		{"n denies", runes("n"), true, false},
		{"q denies", runes("q"), true, false},
		{"esc denies", key(tea.KeyEsc), true, false},
		{"ctrl+c denies", key(tea.KeyCtrlC), true, false},
		{"enter is ignored", key(tea.KeyEnter), false, false},
		{"other runes are ignored", runes("x"), false, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, cmd := send(NewModel(standardRequest()), tc.msg)
			if m.Done() != tc.done {
				t.Fatalf("Done() = %v, want %v", m.Done(), tc.done)
			}
			if m.Approved() != tc.approved {
				t.Fatalf("Approved() = %v, want %v", m.Approved(), tc.approved)
			}
			if tc.done && cmd == nil {
				t.Fatal("answering should quit the program")
			}
		})
	}
}

func TestModelIgnoresKeysAfterAnswer(t *testing.T) {
	m, _ := send(NewModel(standardRequest()), runes("n"), runes("y"))
	if m.Approved() {
		t.Fatal("a later key must not flip a denial")
	}
}

func TestModelTypedConfirmation(t *testing.T) {
	m, _ := send(NewModel(typedRequest()), runes("y"))
	if m.Done() {
		t.Fatal("y must not approve a typed confirmation")
	}
	if m.Input() != "y" {
		t.Fatalf("Input() = %q, want y", m.Input())
	}

	m, _ = send(m, key(tea.KeyBackspace), runes("TERRA"), runes("FORM"))
	if m.Input() != "TERRAFORM" {
		t.Fatalf("Input() = %q, want TERRAFORM", m.Input())
	}
	m, cmd := send(m, key(tea.KeyEnter))
	if !m.Approved() {
		t.Fatal("matching token should approve")
	}
	if cmd == nil {
		t.Fatal("approval should quit the program")
	}
}

func TestModelTypedMismatch(t *testing.T) {
	m, _ := send(NewModel(typedRequest()), runes("terraform"), key(tea.KeyEnter))
	if m.Done() {
		t.Fatal("a case-different token must not approve")
	}
	if !m.mismatch {
		t.Fatal("expected mismatch to be flagged")
	}
	if m.Input() != "" {
		t.Fatalf("input should be cleared after a mismatch, got %q", m.Input())
	}
	if !strings.Contains(m.View(), "does not match") {
		t.Error("view should report the mismatch")
	}

	m, _ = send(m, runes("TERRAFORM"), key(tea.KeySpace), key(tea.KeyEnter))
	if m.Done() {
		t.Fatal("trailing space must not match")
	}

	m, _ = send(m, key(tea.KeyEsc))
	if !m.Done() || m.Approved() {
		t.Fatal("esc should deny a typed confirmation")
	}
}

func TestModelView(t *testing.T) {
	theme.SetTheme(theme.FlavorMocha)

	view := NewModel(standardRequest()).View()
	for _, want := range []string{"exec", "git push --force origin main", "high", "Force push rewrites remote history", "y approve"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	view = NewModel(typedRequest()).View()
	for _, want := range []string{"TERRAFORM", "critical", "esc deny"} {
		if !strings.Contains(view, want) {
			t.Errorf("typed view missing %q:\n%s", want, view)
		}
	}

	unclassified := standardRequest()
	unclassified.Level = ""
	unclassified.Label = ""
	if view := NewModel(unclassified).View(); !strings.Contains(view, "unclassified") {
		t.Errorf("unclassified view should say so:\n%s", view)
	}

	m, _ := send(NewModel(standardRequest()), runes("y"))
	if !strings.Contains(m.View(), "approved") {
		t.Errorf("final view = %q", m.View())
	}
	m, _ = send(NewModel(standardRequest()), runes("n"))
	if !strings.Contains(m.View(), "denied") {
		t.Errorf("final view = %q", m.View())
	}
}

func TestModelViewSanitizesCommand(t *testing.T) {
	req := standardRequest()
	req.CommandText = "echo hi\x1b]0;pwned\x07"
	if view := NewModel(req).View(); strings.Contains(view, "pwned") {
		t.Errorf("view should strip OSC sequences:\n%s", view)
	}
}

func TestPrompterRequiresTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "stdin"))
	testutil.RequireNoError(t, err, "create fake stdin")
	defer f.Close()

	p := NewPrompter(Options{
		Input:  f,
		Output: &strings.Builder{},
		Theme:  theme.FlavorMocha,
		Logger: testutil.TestLogger(t),
	})
	ok, err := p.AskApproval(context.Background(), standardRequest())
	if !errors.Is(err, ErrNotTerminal) {
		t.Fatalf("AskApproval() error = %v, want ErrNotTerminal", err)
	}
	if ok {
		t.Fatal("a refused prompt must not approve")
	}
}
