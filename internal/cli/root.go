// Package cli implements the Cobra command-line interface for toolguard.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/Dicklesworthstone/toolguard/internal/config"
	"github.com/Dicklesworthstone/toolguard/internal/core"
	"github.com/Dicklesworthstone/toolguard/internal/kv"
	"github.com/Dicklesworthstone/toolguard/internal/output"
	"github.com/Dicklesworthstone/toolguard/internal/policy"
	"github.com/Dicklesworthstone/toolguard/internal/utils"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// Version information set by goreleaser
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flag values
var (
	flagConfig   string
	flagOutput   string
	flagJSON     bool
	flagProject  string
	flagDB       string
	flagLogLevel string
)

// ExitError carries a process exit code. A nil Err means the command
// already reported its result and main should exit quietly.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "toolguard",
		Short: "Risk gate for AI agent tool calls",
		Long: `toolguard decides whether a tool call made by an AI agent may run.

Every call is checked in a fixed order:
  1. command denylist       → denied
  2. command allowlist      → approved
  3. signature registry     → classified as critical, high, medium, low or safe
  4. policy switches        → auto-deny privilege escalation or critical calls,
                              or require a typed confirmation for critical ones
  5. everything else        → a human approves or denies

toolguard never runs the command itself.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "project config file (default: .toolguard/config.toml)")
	pf.StringVarP(&flagOutput, "output", "o", "", "output format: text, json, yaml (env: TOOLGUARD_OUTPUT_FORMAT)")
	pf.BoolVarP(&flagJSON, "json", "j", false, "shorthand for --output=json")
	pf.StringVarP(&flagProject, "project", "C", "", "project directory (default: working directory)")
	pf.StringVar(&flagDB, "db", "", "settings database path (env: TOOLGUARD_DB)")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error (env: TOOLGUARD_LOG_LEVEL)")

	root.AddCommand(
		newVersionCmd(),
		newCheckCmd(),
		newPatternsCmd(),
		newPolicyCmd(),
		newConfigCmd(),
		newHookCmd(),
		newServeCmd(),
		newAskCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func projectPath() (string, error) {
	if flagProject != "" {
		return flagProject, nil
	}
	return os.Getwd()
}

// flagOverrides maps global flags onto config keys.
func flagOverrides() map[string]any {
	overrides := map[string]any{}
	switch {
	case flagJSON:
		overrides["output.format"] = "json"
	case flagOutput != "":
		overrides["output.format"] = flagOutput
	}
	if flagDB != "" {
		overrides["store.database_path"] = flagDB
	}
	if flagLogLevel != "" {
		overrides["general.log_level"] = flagLogLevel
	}
	return overrides
}

func loadConfig() (config.Config, error) {
	project, err := projectPath()
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(config.LoadOptions{
		ProjectDir:    project,
		ConfigPath:    flagConfig,
		FlagOverrides: flagOverrides(),
	})
}

// app is what a command needs after configuration is loaded.
type app struct {
	cfg    config.Config
	out    *output.Writer
	logger *log.Logger
	stdout io.Writer
	stderr io.Writer
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := utils.InitLogger(utils.LoggerOptions{
		Level:  cfg.General.LogLevel,
		Output: cmd.ErrOrStderr(),
		Prefix: "toolguard",
	})
	utils.SetDefaultLogger(logger)

	return &app{
		cfg: cfg,
		out: output.New(output.Format(cfg.Output.Format),
			output.WithOutput(cmd.OutOrStdout()),
			output.WithErrorOutput(cmd.ErrOrStderr()),
		),
		logger: logger,
		stdout: cmd.OutOrStdout(),
		stderr: cmd.ErrOrStderr(),
	}, nil
}

// openPolicy opens the settings database. The caller must run the returned
// close func.
func (a *app) openPolicy() (*policy.Store, func(), error) {
	store, err := kv.OpenSQLite(a.cfg.DatabasePath())
	if err != nil {
		return nil, nil, fmt.Errorf("opening settings store: %w", err)
	}
	closeFn := func() {
		if err := store.Close(); err != nil {
			a.logger.Warn("closing settings store", "error", err)
		}
	}
	return policy.NewStore(store), closeFn, nil
}

// openGate returns a decision gate over the settings database.
func (a *app) openGate() (*core.Gate, func(), error) {
	store, closeFn, err := a.openPolicy()
	if err != nil {
		return nil, nil, err
	}
	return core.NewGate(store, a.logger), closeFn, nil
}

// VersionInfo is the output of `toolguard version`.
type VersionInfo struct {
	Version     string `json:"version"`
	Commit      string `json:"commit"`
	BuildDate   string `json:"build_date"`
	GoVersion   string `json:"go_version"`
	ConfigPath  string `json:"config_path"`
	DBPath      string `json:"db_path"`
	ProjectPath string `json:"project_path"`
	PatternHash string `json:"pattern_hash"`
}

// RenderText implements output.TextRenderer.
func (v VersionInfo) RenderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "toolguard %s\n  commit:   %s\n  built:    %s\n  go:       %s\n  config:   %s\n  db:       %s\n  project:  %s\n  patterns: %s\n",
		v.Version, v.Commit, v.BuildDate, v.GoVersion, v.ConfigPath, v.DBPath, v.ProjectPath, shortHash(v.PatternHash))
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			project, _ := projectPath()
			userPath, projectCfg := config.ConfigPaths(project, flagConfig)
			configPath := projectCfg
			if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
				configPath = userPath
			}
			return a.out.Write(VersionInfo{
				Version:     version,
				Commit:      commit,
				BuildDate:   date,
				GoVersion:   runtime.Version(),
				ConfigPath:  configPath,
				DBPath:      a.cfg.DatabasePath(),
				ProjectPath: filepath.Clean(project),
				PatternHash: core.ComputeHash(),
			})
		},
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
