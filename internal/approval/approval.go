// Package approval puts tool calls that need a human in front of an
// approver and turns the answer into an allow or deny outcome.
package approval

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Dicklesworthstone/toolguard/internal/core"
	"github.com/google/uuid"
	"github.com/mattn/go-shellwords"
)

// Request is what an approver is shown.
type Request struct {
	ID          string         `json:"id"`
	ToolName    string         `json:"tool_name"`
	CommandText string         `json:"command_text"`
	Reason      string         `json:"reason"`
	Label       string         `json:"label,omitempty"`
	Level       core.RiskLevel `json:"level,omitempty"`

	// RequiresTypedConfirmation means a click is not enough: the human must
	// type ConfirmationToken exactly.
	RequiresTypedConfirmation bool   `json:"requires_typed_confirmation"`
	ConfirmationToken         string `json:"confirmation_token,omitempty"`
}

// Approver asks a human about a request. It must honour ctx cancellation.
type Approver interface {
	AskApproval(ctx context.Context, req Request) (bool, error)
}

// ApproverFunc adapts a function to Approver.
type ApproverFunc func(ctx context.Context, req Request) (bool, error)

// AskApproval calls f.
func (f ApproverFunc) AskApproval(ctx context.Context, req Request) (bool, error) {
	return f(ctx, req)
}

// ErrNoApprover is returned when a call needs a human and none is configured.
var ErrNoApprover = errors.New("no approver configured")

// ErrApprovalTimeout is returned when the approver did not answer in time.
var ErrApprovalTimeout = errors.New("approval timed out")

const reasonUnclassified = "Unclassified tool call"

// NewRequest builds the approver request for a decision that needs a human.
func NewRequest(toolName string, args map[string]any, d core.Decision) Request {
	command := core.CommandText(toolName, args)
	req := Request{
		ID:          uuid.New().String(),
		ToolName:    toolName,
		CommandText: command,
		Reason:      reasonUnclassified,
	}

	switch d.Kind {
	case core.RequireTypedConfirmation:
		req.Reason = d.Reason
		req.Level = d.Level
		req.RequiresTypedConfirmation = true
		req.ConfirmationToken = ConfirmationToken(command, toolName)
		if c := core.Classify(toolName, args); c != nil {
			req.Label = c.Label
		}
	case core.RequireApproval:
		if c := d.Classification; c != nil {
			req.Reason = c.Reason
			req.Label = c.Label
			req.Level = c.Level
		}
	}
	return req
}

var envAssignment = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=`)

// ConfirmationToken returns the word a human must type to confirm a
// critical call: the upper-cased program name of the command. Leading
// environment assignments are skipped. The tool name is used when the
// command has no program word.
func ConfirmationToken(command, toolName string) string {
	words, err := shellwords.Parse(command)
	if err != nil {
		words = strings.Fields(command)
	}

	for _, w := range words {
		if envAssignment.MatchString(w) {
			continue
		}
		if prog := filepath.Base(w); prog != "" && prog != "." && prog != "/" {
			return strings.ToUpper(prog)
		}
	}

	if name := strings.TrimSpace(toolName); name != "" {
		return strings.ToUpper(name)
	}
	return "CONFIRM"
}
