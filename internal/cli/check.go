package cli

import (
	"fmt"
	"io"

	"github.com/Dicklesworthstone/toolguard/internal/core"
	"github.com/spf13/cobra"
)

// CheckResult is the output of `toolguard check`.
type CheckResult struct {
	ToolName            string               `json:"tool_name"`
	Command             string               `json:"command"`
	Decision            core.Decision        `json:"decision"`
	Classification      *core.Classification `json:"classification"`
	PrivilegeEscalation bool                 `json:"privilege_escalation"`
}

// RenderText implements output.TextRenderer.
func (r CheckResult) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "Tool:       %s\n", r.ToolName)
	fmt.Fprintf(w, "Command:    %s\n", r.Command)
	fmt.Fprintf(w, "Decision:   %s\n", r.Decision.String())
	if c := r.Classification; c != nil {
		fmt.Fprintf(w, "Risk:       %s (%s)\n", c.Level, c.Label)
		fmt.Fprintf(w, "Reason:     %s\n", c.Reason)
		fmt.Fprintf(w, "Pattern:    %s\n", c.MatchedPattern)
	} else {
		fmt.Fprintf(w, "Risk:       (unclassified)\n")
	}
	_, err := fmt.Fprintf(w, "Privileged: %v\n", r.PrivilegeEscalation)
	return err
}

func newCheckCmd() *cobra.Command {
	var (
		call     toolCallFlags
		exitCode bool
	)
	cmd := &cobra.Command{
		Use:   "check [flags] [command...]",
		Short: "Show the decision for a tool call without asking anyone",
		Long: `Evaluate a tool call against the current settings and the signature
registry and print the decision. Nothing is executed and nobody is asked.

Examples:
  toolguard check rm -rf /
  toolguard check --tool write_file --arg path=~/.ssh/authorized_keys
  toolguard check --tool http --args '{"url":"https://x","method":"DELETE"}'

Use --exit-code to exit 1 unless the call would be auto-approved.`,
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

			d := gate.Decide(cmd.Context(), call.tool, args)
			result := CheckResult{
				ToolName:            call.tool,
				Command:             core.CommandText(call.tool, args),
				Decision:            d,
				Classification:      core.Classify(call.tool, args),
				PrivilegeEscalation: core.IsPrivilegeEscalation(call.tool, args),
			}
			if err := a.out.Write(result); err != nil {
				return err
			}
			if exitCode && d.Kind != core.AutoApprove {
				return &ExitError{Code: 1}
			}
			return nil
		},
	}
	call.register(cmd)
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "exit 1 unless the call is auto-approved")
	return cmd
}
