package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Dicklesworthstone/toolguard/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or modify toolguard configuration",
		Long: `Show the effective configuration after layering defaults, the user file
(~/.toolguard/config.toml), the project file (.toolguard/config.toml),
TOOLGUARD_* environment variables and flags.

Keys:
  ` + strings.Join(config.Keys(), "\n  "),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			return a.out.Write(ConfigView{a.cfg})
		},
	}
	cmd.PersistentFlags().BoolVar(&global, "global", false, "operate on user config (~/.toolguard/config.toml)")

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a specific configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			val, ok := config.GetValue(a.cfg, args[0])
			if !ok {
				return fmt.Errorf("unknown key %q", args[0])
			}
			return a.out.Write(ConfigValue{Key: args[0], Value: val})
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value in the project (or --global) config file",
		Long: `Set a configuration value. List values are comma separated:

  toolguard config set general.safe_tools read_file,web_search`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			project, err := projectPath()
			if err != nil {
				return err
			}
			userPath, projectCfg := config.ConfigPaths(project, flagConfig)
			target := projectCfg
			if global {
				target = userPath
			}

			value, err := config.ParseValue(args[0], args[1])
			if err != nil {
				return err
			}
			if err := config.WriteValue(target, args[0], value); err != nil {
				return err
			}
			a.logger.Debug("config value written", "path", target, "key", args[0])
			return a.out.Write(ConfigValue{Path: target, Key: args[0], Value: value})
		},
	}

	cmd.AddCommand(getCmd, setCmd)
	return cmd
}

// ConfigValue is the output of `toolguard config get|set`.
type ConfigValue struct {
	Path  string `json:"path,omitempty"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// RenderText implements output.TextRenderer.
func (v ConfigValue) RenderText(w io.Writer) error {
	if v.Path != "" {
		_, err := fmt.Fprintf(w, "%s = %v (%s)\n", v.Key, v.Value, v.Path)
		return err
	}
	_, err := fmt.Fprintf(w, "%s = %v\n", v.Key, v.Value)
	return err
}

// ConfigView prints the effective configuration as TOML in text mode.
type ConfigView struct {
	config.Config
}

// RenderText implements output.TextRenderer.
func (v ConfigView) RenderText(w io.Writer) error {
	return toml.NewEncoder(w).Encode(v.Config)
}
