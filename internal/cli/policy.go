package cli

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/Dicklesworthstone/toolguard/internal/policy"
	"github.com/spf13/cobra"
)

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Show or change the security settings",
		Long: `Show or change the security settings consulted on every decision.

Settings live in the settings database (store.database_path). Changes take
effect on the next decision; a running 'toolguard serve' picks them up
without a restart.

Switches:
  autoDenyPrivilegeEscalation  deny sudo, su, doas and friends without asking
  autoDenyCritical             deny every critical call without asking
  requireTypeToCritical        critical calls need the program name typed back`,
	}
	cmd.AddCommand(
		newPolicyShowCmd(),
		newPolicyResetCmd(),
		newPolicyListCmd("allow", "allowlist", listAllow),
		newPolicyListCmd("deny", "denylist", listDeny),
		newPolicySetCmd(),
		newPolicyTestCmd(),
	)
	return cmd
}

// SettingsView renders SecuritySettings for the CLI.
type SettingsView struct {
	policy.SecuritySettings
}

// RenderText implements output.TextRenderer.
func (v SettingsView) RenderText(w io.Writer) error {
	for _, name := range policy.Switches() {
		on, _ := v.Switch(name)
		fmt.Fprintf(w, "%-28s %v\n", name, on)
	}
	writePatterns(w, "Allowlist", v.CommandAllowlist)
	writePatterns(w, "Denylist", v.CommandDenylist)
	return nil
}

func writePatterns(w io.Writer, title string, patterns []string) {
	fmt.Fprintf(w, "\n%s (%d)\n", title, len(patterns))
	for i, p := range patterns {
		fmt.Fprintf(w, "  %2d  %s\n", i+1, p)
	}
}

func newPolicyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current security settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			store, closeFn, err := a.openPolicy()
			if err != nil {
				return err
			}
			defer closeFn()

			settings, err := store.Load(cmd.Context())
			if err != nil {
				a.logger.Warn("loading security settings failed, showing defaults", "error", err)
			}
			return a.out.Write(SettingsView{settings})
		},
	}
}

func newPolicyResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard saved settings and return to the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			store, closeFn, err := a.openPolicy()
			if err != nil {
				return err
			}
			defer closeFn()

			if err := store.Reset(cmd.Context()); err != nil {
				return err
			}
			a.out.Success("Security settings reset to defaults")
			return nil
		},
	}
}

// listField selects the allowlist or the denylist.
type listField func(*policy.SecuritySettings) *[]string

func listAllow(s *policy.SecuritySettings) *[]string { return &s.CommandAllowlist }
func listDeny(s *policy.SecuritySettings) *[]string  { return &s.CommandDenylist }

// PatternListView is the output of the allow and deny subcommands.
type PatternListView struct {
	List     string   `json:"list"`
	Patterns []string `json:"patterns"`
}

// RenderText implements output.TextRenderer.
func (v PatternListView) RenderText(w io.Writer) error {
	title := strings.ToUpper(v.List[:1]) + v.List[1:]
	writePatterns(w, title, v.Patterns)
	return nil
}

func newPolicyListCmd(use, name string, field listField) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Manage the command %s", name),
	}

	show := func(a *app, settings policy.SecuritySettings) error {
		return a.out.Write(PatternListView{List: name, Patterns: append([]string{}, *field(&settings)...)})
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s patterns", name),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			store, closeFn, err := a.openPolicy()
			if err != nil {
				return err
			}
			defer closeFn()

			settings, err := store.Load(cmd.Context())
			if err != nil {
				a.logger.Warn("loading security settings failed, showing defaults", "error", err)
			}
			return show(a, settings)
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <pattern>...",
		Short: fmt.Sprintf("Add patterns to the %s", name),
		Long: fmt.Sprintf(`Add case-insensitive regular expressions to the %s.

Patterns are matched against the command text (the "command", "cmd" or
"script" argument). Nothing is saved if any pattern fails to compile.
Patterns already present are skipped.`, name),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range args {
				if r := policy.CompilePattern(p); !r.OK() {
					return r.Err
				}
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			store, closeFn, err := a.openPolicy()
			if err != nil {
				return err
			}
			defer closeFn()

			settings, err := store.Mutate(cmd.Context(), func(s *policy.SecuritySettings) error {
				list := field(s)
				for _, p := range args {
					if !slices.Contains(*list, p) {
						*list = append(*list, p)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			return show(a, settings)
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <pattern>...",
		Short: fmt.Sprintf("Remove patterns from the %s", name),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			store, closeFn, err := a.openPolicy()
			if err != nil {
				return err
			}
			defer closeFn()

			settings, err := store.Mutate(cmd.Context(), func(s *policy.SecuritySettings) error {
				list := field(s)
				for _, p := range args {
					i := slices.Index(*list, p)
					if i < 0 {
						return fmt.Errorf("pattern %q is not in the %s", p, name)
					}
					*list = slices.Delete(*list, i, i+1)
				}
				return nil
			})
			if err != nil {
				return err
			}
			return show(a, settings)
		},
	}

	cmd.AddCommand(listCmd, addCmd, removeCmd)
	return cmd
}

func newPolicySetCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "set <switch> <true|false>",
		Short:     "Turn a policy switch on or off",
		Args:      cobra.ExactArgs(2),
		ValidArgs: policy.Switches(),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			value, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("invalid value %q: expected true or false", args[1])
			}
			if _, ok := (policy.SecuritySettings{}).Switch(name); !ok {
				return fmt.Errorf("unknown switch %q (valid: %s)", name, strings.Join(policy.Switches(), ", "))
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			store, closeFn, err := a.openPolicy()
			if err != nil {
				return err
			}
			defer closeFn()

			settings, err := store.Mutate(cmd.Context(), func(s *policy.SecuritySettings) error {
				s.SetSwitch(name, value)
				return nil
			})
			if err != nil {
				return err
			}
			return a.out.Write(SettingsView{settings})
		},
	}
}

// PatternTestResult is the output of `toolguard policy test`.
type PatternTestResult struct {
	Pattern string `json:"pattern"`
	Command string `json:"command"`
	Valid   bool   `json:"valid"`
	Error   string `json:"error,omitempty"`
	Matches bool   `json:"matches"`
}

// RenderText implements output.TextRenderer.
func (r PatternTestResult) RenderText(w io.Writer) error {
	if !r.Valid {
		_, err := fmt.Fprintf(w, "✗ invalid pattern: %s\n", r.Error)
		return err
	}
	if r.Matches {
		_, err := fmt.Fprintf(w, "✓ %q matches %q\n", r.Pattern, r.Command)
		return err
	}
	_, err := fmt.Fprintf(w, "· %q does not match %q\n", r.Pattern, r.Command)
	return err
}

func newPolicyTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <pattern> <command...>",
		Short: "Preview whether a list pattern matches a command",
		Long: `Check a pattern before adding it. Matching is the same as for the
allow and deny lists: case-insensitive and against the trimmed command.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			pattern := args[0]
			command := strings.Join(args[1:], " ")
			result := PatternTestResult{Pattern: pattern, Command: command}
			if r := policy.CompilePattern(pattern); r.OK() {
				result.Valid = true
				result.Matches = policy.MatchesPattern(command, pattern)
			} else {
				result.Error = r.Err.Error()
			}
			return a.out.Write(result)
		},
	}
	cmd.Flags().SetInterspersed(false)
	return cmd
}
