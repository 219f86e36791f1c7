package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dicklesworthstone/toolguard/internal/core"
	"github.com/charmbracelet/log"
)

// DefaultTimeout bounds how long Authorize waits for a human.
const DefaultTimeout = 120 * time.Second

// Outcome is the final answer for one tool call.
type Outcome struct {
	Allowed  bool          `json:"allowed"`
	Reason   string        `json:"reason"`
	Decision core.Decision `json:"decision"`
	// Request is set when an approver was asked.
	Request *Request `json:"request,omitempty"`
	// SafeTool is set when the call skipped the approver as a safe tool.
	SafeTool bool `json:"safe_tool,omitempty"`
}

// Options configures a Gatekeeper.
type Options struct {
	Approver  Approver
	Timeout   time.Duration
	SafeTools []string
	Logger    *log.Logger
}

// Gatekeeper combines the decision gate with a human approver.
type Gatekeeper struct {
	gate      *core.Gate
	approver  Approver
	timeout   time.Duration
	safeTools map[string]struct{}
	logger    *log.Logger
}

// NewGatekeeper creates a gatekeeper. A zero timeout uses DefaultTimeout.
func NewGatekeeper(gate *core.Gate, opts Options) *Gatekeeper {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	safe := make(map[string]struct{}, len(opts.SafeTools))
	for _, name := range opts.SafeTools {
		safe[name] = struct{}{}
	}
	return &Gatekeeper{
		gate:      gate,
		approver:  opts.Approver,
		timeout:   timeout,
		safeTools: safe,
		logger:    logger,
	}
}

// IsSafeTool reports whether name is on the safe tool list.
func (g *Gatekeeper) IsSafeTool(name string) bool {
	_, ok := g.safeTools[name]
	return ok
}

// Authorize decides a tool call and, when the decision needs a human, asks
// the approver. A missing approver, an approver error, a timeout or a
// cancelled ctx all deny the call; the error is returned alongside the
// denied outcome so callers can report it.
//
// Safe tools skip the approver only when nothing about the call was
// classified. The denylist, registry and switches still apply to them.
func (g *Gatekeeper) Authorize(ctx context.Context, toolName string, args map[string]any) (Outcome, error) {
	d := g.gate.Decide(ctx, toolName, args)
	logger := g.logger.With("tool", toolName, "decision", d.Kind)

	switch d.Kind {
	case core.AutoApprove:
		logger.Info("tool call approved by policy")
		return Outcome{Allowed: true, Reason: "Allowed by allowlist", Decision: d}, nil
	case core.AutoDeny:
		logger.Info("tool call denied by policy", "reason", d.Reason)
		return Outcome{Allowed: false, Reason: d.Reason, Decision: d}, nil
	}

	if d.Kind == core.RequireApproval && d.Classification == nil && g.IsSafeTool(toolName) {
		logger.Debug("safe tool approved without prompt")
		return Outcome{Allowed: true, Reason: "Safe tool", Decision: d, SafeTool: true}, nil
	}

	req := NewRequest(toolName, args, d)
	out := Outcome{Decision: d, Request: &req}

	if g.approver == nil {
		out.Reason = "Denied: " + ErrNoApprover.Error()
		logger.Warn("tool call needs approval but no approver is configured")
		return out, ErrNoApprover
	}

	approved, err := g.ask(ctx, req)
	if err != nil {
		out.Reason = fmt.Sprintf("Denied: %v", err)
		logger.Warn("approval failed, denying", "request_id", req.ID, "error", err)
		return out, err
	}

	out.Allowed = approved
	if approved {
		out.Reason = "Approved by user"
	} else {
		out.Reason = "Denied by user"
	}
	logger.Info("approval answered", "request_id", req.ID, "approved", approved)
	return out, nil
}

type answer struct {
	approved bool
	err      error
}

// ask runs the approver under the timeout. The answer channel is buffered
// so an approver that ignores ctx cannot block forever on send.
func (g *Gatekeeper) ask(ctx context.Context, req Request) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ch := make(chan answer, 1)
	go func() {
		approved, err := g.approver.AskApproval(ctx, req)
		ch <- answer{approved: approved, err: err}
	}()

	var err error
	select {
	case a := <-ch:
		if a.err == nil && ctx.Err() == nil {
			return a.approved, nil
		}
		// An answer that arrives after the deadline is still a denial.
		err = a.err
		if err == nil {
			err = ctx.Err()
		}
	case <-ctx.Done():
		err = ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false, ErrApprovalTimeout
	}
	return false, err
}
