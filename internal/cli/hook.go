package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Dicklesworthstone/toolguard/internal/core"
	"github.com/Dicklesworthstone/toolguard/internal/daemon"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// hookDaemonTimeout bounds the daemon round trip before falling back to a
// local decision.
const hookDaemonTimeout = 500 * time.Millisecond

// Permission decisions understood by the agent host.
const (
	permissionAllow = "allow"
	permissionDeny  = "deny"
	permissionAsk   = "ask"
)

// HookInput is the PreToolUse payload read from stdin. Other fields sent by
// the host are ignored.
type HookInput struct {
	ToolName  string         `json:"tool_name"`
	ToolInput map[string]any `json:"tool_input"`
}

// HookOutput is written to stdout for the host to act on.
type HookOutput struct {
	HookSpecificOutput HookSpecificOutput `json:"hookSpecificOutput"`
}

// HookSpecificOutput carries the permission decision.
type HookSpecificOutput struct {
	HookEventName            string `json:"hookEventName"`
	PermissionDecision       string `json:"permissionDecision"`
	PermissionDecisionReason string `json:"permissionDecisionReason"`
}

func newHookOutput(decision, reason string) HookOutput {
	return HookOutput{HookSpecificOutput: HookSpecificOutput{
		HookEventName:            "PreToolUse",
		PermissionDecision:       decision,
		PermissionDecisionReason: reason,
	}}
}

// hookOutputFor maps a decision onto the host's allow, deny or ask.
func hookOutputFor(d core.Decision) HookOutput {
	switch d.Kind {
	case core.AutoApprove:
		return newHookOutput(permissionAllow, "toolguard: allowed by command allowlist")
	case core.AutoDeny:
		return newHookOutput(permissionDeny, "toolguard: "+d.Reason)
	default:
		return newHookOutput(permissionAsk, "toolguard: "+d.String())
	}
}

func newHookCmd() *cobra.Command {
	var noDaemon bool

	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Decide a PreToolUse hook payload read from stdin",
		Long: `Read a PreToolUse hook payload from stdin and print the permission decision.

Input:
  {"tool_name": "Bash", "tool_input": {"command": "rm -rf build"}}

Output:
  {"hookSpecificOutput": {"hookEventName": "PreToolUse",
    "permissionDecision": "allow" | "deny" | "ask",
    "permissionDecisionReason": "..."}}

When a 'toolguard serve' daemon is listening on the configured socket the
decision is made there; otherwise it is made locally. Input that cannot be
read always results in "ask".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := runHook(cmd, noDaemon)
			enc := json.NewEncoder(cmd.OutOrStdout())
			return enc.Encode(out)
		},
	}
	cmd.Flags().BoolVar(&noDaemon, "no-daemon", false, "decide locally even if a daemon is running")
	return cmd
}

func runHook(cmd *cobra.Command, noDaemon bool) HookOutput {
	input, err := readHookInput(cmd.InOrStdin())
	if err != nil {
		return newHookOutput(permissionAsk, "toolguard: "+err.Error())
	}

	a, err := newApp(cmd)
	if err != nil {
		return newHookOutput(permissionAsk, "toolguard: "+err.Error())
	}

	if !noDaemon {
		if d, err := decideViaDaemon(cmd.Context(), a.cfg.SocketPath(), input); err == nil {
			a.logger.Debug("hook decided by daemon", "tool", input.ToolName, "decision", d.Kind)
			return hookOutputFor(d)
		} else if !errors.Is(err, os.ErrNotExist) {
			a.logger.Debug("daemon unavailable, deciding locally", "error", err)
		}
	}

	gate, closeFn, err := a.openGate()
	if err != nil {
		a.logger.Warn("settings store unavailable, using default policy", "error", err)
		gate = core.NewGate(nil, a.logger)
		closeFn = func() {}
	}
	defer closeFn()

	return hookOutputFor(gate.Decide(cmd.Context(), input.ToolName, input.ToolInput))
}

func readHookInput(r io.Reader) (HookInput, error) {
	data, err := io.ReadAll(io.LimitReader(r, 1<<20))
	if err != nil {
		return HookInput{}, fmt.Errorf("reading hook input: %w", err)
	}
	var input HookInput
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&input); err != nil {
		return HookInput{}, fmt.Errorf("invalid hook input: %w", err)
	}
	if input.ToolName == "" {
		return HookInput{}, errors.New("invalid hook input: missing tool_name")
	}
	return input, nil
}

func decideViaDaemon(ctx context.Context, socketPath string, input HookInput) (core.Decision, error) {
	if _, err := os.Stat(socketPath); err != nil {
		return core.Decision{}, err
	}
	client := daemon.NewUnixClient(socketPath, daemon.WithTimeout(hookDaemonTimeout))
	defer func() {
		if err := client.Close(); err != nil {
			log.Debug("closing daemon client", "error", err)
		}
	}()
	return client.Decide(ctx, input.ToolName, input.ToolInput)
}
