package core

import (
	"context"

	"github.com/Dicklesworthstone/toolguard/internal/policy"
	"github.com/charmbracelet/log"
)

// SettingsLoader supplies the current security settings. policy.Store
// satisfies it.
type SettingsLoader interface {
	Load(ctx context.Context) (policy.SecuritySettings, error)
}

// Gate binds Decide to a settings source. Settings are read on every call
// so a saved change takes effect on the next decision.
type Gate struct {
	Settings SettingsLoader
	Logger   *log.Logger
}

// NewGate creates a gate. A nil logger uses log.Default().
func NewGate(settings SettingsLoader, logger *log.Logger) *Gate {
	if logger == nil {
		logger = log.Default()
	}
	return &Gate{Settings: settings, Logger: logger}
}

// Decide loads settings and evaluates the tool call. A settings failure is
// logged and the defaults are used instead.
func (g *Gate) Decide(ctx context.Context, toolName string, args map[string]any) Decision {
	settings := g.settings(ctx)
	d := Decide(toolName, args, settings)
	g.logger().Debug("tool call decided", "tool", toolName, "decision", d.Kind, "detail", d.String())
	return d
}

// CurrentSettings returns the settings the next decision would use.
func (g *Gate) CurrentSettings(ctx context.Context) policy.SecuritySettings {
	return g.settings(ctx)
}

func (g *Gate) settings(ctx context.Context) policy.SecuritySettings {
	if g == nil || g.Settings == nil {
		return policy.DefaultSettings()
	}
	s, err := g.Settings.Load(ctx)
	if err != nil {
		g.logger().Warn("loading security settings failed, using defaults", "error", err)
		return policy.DefaultSettings()
	}
	return s
}

func (g *Gate) logger() *log.Logger {
	if g == nil || g.Logger == nil {
		return log.Default()
	}
	return g.Logger
}
