package testutil

import (
	"context"
	"testing"

	"github.com/Dicklesworthstone/toolguard/internal/policy"
)

// SettingsOption customizes test settings.
type SettingsOption func(*policy.SecuritySettings)

// MakeSettings returns settings with every switch off and empty lists, then
// applies opts. Start from nothing so each test states what it relies on.
func MakeSettings(opts ...SettingsOption) policy.SecuritySettings {
	s := policy.SecuritySettings{}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithAllow appends allowlist patterns.
func WithAllow(patterns ...string) SettingsOption {
	return func(s *policy.SecuritySettings) {
		s.CommandAllowlist = append(s.CommandAllowlist, patterns...)
	}
}

// WithDeny appends denylist patterns.
func WithDeny(patterns ...string) SettingsOption {
	return func(s *policy.SecuritySettings) {
		s.CommandDenylist = append(s.CommandDenylist, patterns...)
	}
}

// WithAutoDenyCritical sets autoDenyCritical.
func WithAutoDenyCritical(on bool) SettingsOption {
	return func(s *policy.SecuritySettings) { s.AutoDenyCritical = on }
}

// WithAutoDenyPrivilegeEscalation sets autoDenyPrivilegeEscalation.
func WithAutoDenyPrivilegeEscalation(on bool) SettingsOption {
	return func(s *policy.SecuritySettings) { s.AutoDenyPrivilegeEscalation = on }
}

// WithRequireTypeToCritical sets requireTypeToCritical.
func WithRequireTypeToCritical(on bool) SettingsOption {
	return func(s *policy.SecuritySettings) { s.RequireTypeToCritical = on }
}

// ShellArgs builds the argument map of a shell-style tool call.
func ShellArgs(command string) map[string]any {
	return map[string]any{"command": command}
}

// SaveSettings persists settings through a policy store, failing the test
// on error.
func SaveSettings(t *testing.T, store *policy.Store, s policy.SecuritySettings) {
	t.Helper()
	RequireNoError(t, store.Save(context.Background(), s), "save settings")
}
