// Package config loads toolguard's application configuration.
//
// Sources are layered, later ones winning: built-in defaults, the user file
// (~/.toolguard/config.toml), the project file (.toolguard/config.toml),
// TOOLGUARD_* environment variables, then command-line flag overrides.
//
// Security policy (allow and deny lists, auto-deny switches) is not part of
// this file; it lives in the settings store managed by `toolguard policy`.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	General GeneralConfig `toml:"general" mapstructure:"general"`
	Store   StoreConfig   `toml:"store" mapstructure:"store"`
	Daemon  DaemonConfig  `toml:"daemon" mapstructure:"daemon"`
	Output  OutputConfig  `toml:"output" mapstructure:"output"`
}

// GeneralConfig controls logging and the approval flow.
type GeneralConfig struct {
	LogLevel            string   `toml:"log_level" mapstructure:"log_level"`
	ApprovalTimeoutSecs int      `toml:"approval_timeout_seconds" mapstructure:"approval_timeout_seconds"`
	SafeTools           []string `toml:"safe_tools" mapstructure:"safe_tools"`
}

// StoreConfig locates the settings database.
type StoreConfig struct {
	DatabasePath string `toml:"database_path" mapstructure:"database_path"`
}

// DaemonConfig configures `toolguard serve`.
type DaemonConfig struct {
	SocketPath    string   `toml:"socket_path" mapstructure:"socket_path"`
	TCPAddr       string   `toml:"tcp_addr" mapstructure:"tcp_addr"`
	TCPAuthToken  string   `toml:"tcp_auth_token" mapstructure:"tcp_auth_token"`
	TCPAllowedIPs []string `toml:"tcp_allowed_ips" mapstructure:"tcp_allowed_ips"`
}

// OutputConfig sets the default CLI output format.
type OutputConfig struct {
	Format string `toml:"format" mapstructure:"format"`
}

// DefaultSafeTools are read-only tools that skip the approval prompt when
// nothing about the call is classified.
var DefaultSafeTools = []string{
	"read_file",
	"list_directory",
	"web_search",
	"web_read",
	"web_screenshot",
	"web_browse",
	"memory_search",
	"self_info",
	"email_read",
	"slack_read",
	"list_tasks",
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			LogLevel:            "info",
			ApprovalTimeoutSecs: 120,
			SafeTools:           append([]string(nil), DefaultSafeTools...),
		},
		Store: StoreConfig{
			DatabasePath: "~/.toolguard/toolguard.db",
		},
		Daemon: DaemonConfig{
			SocketPath:    "~/.toolguard/toolguard.sock",
			TCPAddr:       "",
			TCPAuthToken:  "",
			TCPAllowedIPs: []string{},
		},
		Output: OutputConfig{
			Format: "text",
		},
	}
}

// ApprovalTimeout returns the approval wait as a duration.
func (c Config) ApprovalTimeout() time.Duration {
	return time.Duration(c.General.ApprovalTimeoutSecs) * time.Second
}

// DatabasePath returns the settings database path with ~ expanded.
func (c Config) DatabasePath() string {
	return ExpandHome(c.Store.DatabasePath)
}

// SocketPath returns the daemon socket path with ~ expanded.
func (c Config) SocketPath() string {
	return ExpandHome(c.Daemon.SocketPath)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// LoadOptions selects config sources.
type LoadOptions struct {
	// ProjectDir holds .toolguard/config.toml. Empty means the working directory.
	ProjectDir string
	// ConfigPath replaces the project config file when set.
	ConfigPath string
	// FlagOverrides are applied last, keyed by dotted config key.
	FlagOverrides map[string]any
}

// Load reads every source and validates the result.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	setDefaults(v)

	userPath, projectPath := ConfigPaths(opts.ProjectDir, opts.ConfigPath)
	if err := mergeConfigFile(v, userPath); err != nil {
		return Config{}, err
	}
	if err := mergeConfigFile(v, projectPath); err != nil {
		return Config{}, err
	}
	if err := applyEnv(v); err != nil {
		return Config{}, err
	}

	keys := make([]string, 0, len(opts.FlagOverrides))
	for k := range opts.FlagOverrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Set(k, opts.FlagOverrides[k])
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ConfigPaths returns the user and project config file paths.
func ConfigPaths(projectDir, configPath string) (string, string) {
	userPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		userPath = filepath.Join(home, ".toolguard", "config.toml")
	}
	return userPath, projectConfigPath(projectDir, configPath)
}

func projectConfigPath(projectDir, configPath string) string {
	if configPath != "" {
		return configPath
	}
	return filepath.Join(projectDir, ".toolguard", "config.toml")
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("general.log_level", d.General.LogLevel)
	v.SetDefault("general.approval_timeout_seconds", d.General.ApprovalTimeoutSecs)
	v.SetDefault("general.safe_tools", d.General.SafeTools)
	v.SetDefault("store.database_path", d.Store.DatabasePath)
	v.SetDefault("daemon.socket_path", d.Daemon.SocketPath)
	v.SetDefault("daemon.tcp_addr", d.Daemon.TCPAddr)
	v.SetDefault("daemon.tcp_auth_token", d.Daemon.TCPAuthToken)
	v.SetDefault("daemon.tcp_allowed_ips", d.Daemon.TCPAllowedIPs)
	v.SetDefault("output.format", d.Output.Format)
}

func mergeConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat config %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	v.SetConfigType("toml")
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// envBindings maps environment variables to config keys.
var envBindings = []struct {
	env string
	key string
}{
	{"TOOLGUARD_LOG_LEVEL", "general.log_level"},
	{"TOOLGUARD_APPROVAL_TIMEOUT", "general.approval_timeout_seconds"},
	{"TOOLGUARD_SAFE_TOOLS", "general.safe_tools"},
	{"TOOLGUARD_DB", "store.database_path"},
	{"TOOLGUARD_SOCKET", "daemon.socket_path"},
	{"TOOLGUARD_TCP_ADDR", "daemon.tcp_addr"},
	{"TOOLGUARD_TCP_TOKEN", "daemon.tcp_auth_token"},
	{"TOOLGUARD_TCP_ALLOWED_IPS", "daemon.tcp_allowed_ips"},
	{"TOOLGUARD_OUTPUT_FORMAT", "output.format"},
}

func applyEnv(v *viper.Viper) error {
	for _, b := range envBindings {
		raw, ok := os.LookupEnv(b.env)
		if !ok {
			continue
		}
		val, err := ParseValue(b.key, raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", b.env, err)
		}
		v.Set(b.key, val)
	}
	return nil
}

// Validate checks value ranges and enumerations.
func Validate(cfg Config) error {
	var problems []string

	switch strings.ToLower(cfg.General.LogLevel) {
	case "debug", "info", "warn", "warning", "error", "fatal":
	default:
		problems = append(problems, fmt.Sprintf("general.log_level %q is not a log level", cfg.General.LogLevel))
	}
	if cfg.General.ApprovalTimeoutSecs <= 0 {
		problems = append(problems, "general.approval_timeout_seconds must be positive")
	}
	for _, tool := range cfg.General.SafeTools {
		if strings.TrimSpace(tool) == "" {
			problems = append(problems, "general.safe_tools must not contain empty names")
			break
		}
	}
	if strings.TrimSpace(cfg.Store.DatabasePath) == "" {
		problems = append(problems, "store.database_path is required")
	}
	for _, entry := range cfg.Daemon.TCPAllowedIPs {
		if !validIPOrCIDR(entry) {
			problems = append(problems, fmt.Sprintf("daemon.tcp_allowed_ips entry %q is not an IP or CIDR", entry))
		}
	}
	switch cfg.Output.Format {
	case "text", "json", "yaml":
	default:
		problems = append(problems, fmt.Sprintf("output.format %q must be text, json or yaml", cfg.Output.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

func validIPOrCIDR(s string) bool {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		_, _, err := net.ParseCIDR(s)
		return err == nil
	}
	return net.ParseIP(s) != nil
}

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindBool
	kindStringSlice
)

var keyKinds = map[string]valueKind{
	"general.log_level":                kindString,
	"general.approval_timeout_seconds": kindInt,
	"general.safe_tools":               kindStringSlice,
	"store.database_path":              kindString,
	"daemon.socket_path":               kindString,
	"daemon.tcp_addr":                  kindString,
	"daemon.tcp_auth_token":            kindString,
	"daemon.tcp_allowed_ips":           kindStringSlice,
	"output.format":                    kindString,
}

// Keys lists every settable key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(keyKinds))
	for k := range keyKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseValue converts a command-line string into the type stored at key.
// Lists are comma separated; blank entries are dropped.
func ParseValue(key, raw string) (any, error) {
	kind, ok := keyKinds[key]
	if !ok {
		return nil, fmt.Errorf("unsupported config key %q", key)
	}
	return parseValueByKind(raw, kind)
}

func parseValueByKind(raw string, kind valueKind) (any, error) {
	switch kind {
	case kindString:
		return raw, nil
	case kindInt:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("expected integer: %w", err)
		}
		return n, nil
	case kindBool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("expected boolean: %w", err)
		}
		return b, nil
	case kindStringSlice:
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value kind %d", kind)
	}
}

// GetValue returns the value at a dotted key. Section names return the
// whole section.
func GetValue(cfg Config, key string) (any, bool) {
	switch key {
	case "general":
		return cfg.General, true
	case "general.log_level":
		return cfg.General.LogLevel, true
	case "general.approval_timeout_seconds":
		return cfg.General.ApprovalTimeoutSecs, true
	case "general.safe_tools":
		return cfg.General.SafeTools, true

	case "store":
		return cfg.Store, true
	case "store.database_path":
		return cfg.Store.DatabasePath, true

	case "daemon":
		return cfg.Daemon, true
	case "daemon.socket_path":
		return cfg.Daemon.SocketPath, true
	case "daemon.tcp_addr":
		return cfg.Daemon.TCPAddr, true
	case "daemon.tcp_auth_token":
		return cfg.Daemon.TCPAuthToken, true
	case "daemon.tcp_allowed_ips":
		return cfg.Daemon.TCPAllowedIPs, true

	case "output":
		return cfg.Output, true
	case "output.format":
		return cfg.Output.Format, true
	}
	return nil, false
}

// WriteValue sets a dotted key in the TOML file at path, creating the file
// and any missing tables.
func WriteValue(path, key string, value any) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("config path is required")
	}
	segments := strings.Split(key, ".")
	for _, s := range segments {
		if s == "" {
			return fmt.Errorf("invalid config key %q", key)
		}
	}

	doc := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return fmt.Errorf("decode config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	table := doc
	for _, seg := range segments[:len(segments)-1] {
		next, ok := table[seg]
		if !ok {
			child := map[string]any{}
			table[seg] = child
			table = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("config key %q: %s is not a table", key, seg)
		}
		table = child
	}
	table[segments[len(segments)-1]] = value

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
