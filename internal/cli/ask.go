package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/Dicklesworthstone/toolguard/internal/approval"
	"github.com/Dicklesworthstone/toolguard/internal/tui"
	"github.com/Dicklesworthstone/toolguard/internal/tui/theme"
	"github.com/spf13/cobra"
)

// newApprover builds the approver used by `toolguard ask`. Tests replace it.
var newApprover = func(a *app, flavor theme.FlavorName) approval.Approver {
	return tui.NewPrompter(tui.Options{Theme: flavor, Logger: a.logger})
}

// AskResult is the output of `toolguard ask`.
type AskResult struct {
	approval.Outcome
	ToolName string `json:"tool_name"`
}

// RenderText implements output.TextRenderer.
func (r AskResult) RenderText(w io.Writer) error {
	verdict := "denied"
	if r.Allowed {
		verdict = "allowed"
	}
	_, err := fmt.Fprintf(w, "%s: %s (%s)\n", verdict, r.ToolName, r.Reason)
	return err
}

func newAskCmd() *cobra.Command {
	var (
		call    toolCallFlags
		flavor  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "ask [flags] [command...]",
		Short: "Decide a tool call, asking in the terminal when a human is needed",
		Long: `Run the full approval flow for a tool call: the decision engine first,
then an interactive prompt when the call needs a human. Critical calls may
require typing the program name back.

The command is never executed. The exit code is 0 when the call is allowed
and 1 when it is denied, so scripts can gate on it:

  toolguard ask -- git push --force && git push --force`,
		RunE: func(cmd *cobra.Command, words []string) error {
			args, err := call.build(words)
			if err != nil {
				return err
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			gate, closeFn, err := a.openGate()
			if err != nil {
				return err
			}
			defer closeFn()

			if timeout <= 0 {
				timeout = a.cfg.ApprovalTimeout()
			}
			keeper := approval.NewGatekeeper(gate, approval.Options{
				Approver:  newApprover(a, theme.FlavorName(flavor)),
				Timeout:   timeout,
				SafeTools: a.cfg.General.SafeTools,
				Logger:    a.logger,
			})

			outcome, err := keeper.Authorize(cmd.Context(), call.tool, args)
			if err != nil {
				a.logger.Debug("approval ended with error", "error", err)
			}
			if werr := a.out.Write(AskResult{Outcome: outcome, ToolName: call.tool}); werr != nil {
				return werr
			}
			if !outcome.Allowed {
				return &ExitError{Code: 1}
			}
			return nil
		},
	}
	call.register(cmd)
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVar(&flavor, "theme", string(theme.FlavorAuto), "prompt theme: auto, mocha, latte")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "how long to wait for an answer (default: general.approval_timeout_seconds)")
	return cmd
}
