// Package policy holds the user-configurable security settings: the allow
// and deny lists and the auto-deny switches.
package policy

// SecuritySettings is the user policy consulted on every decision.
type SecuritySettings struct {
	// AutoDenyPrivilegeEscalation blocks privilege escalation without asking.
	AutoDenyPrivilegeEscalation bool `json:"autoDenyPrivilegeEscalation"`
	// AutoDenyCritical blocks every critical classification without asking.
	AutoDenyCritical bool `json:"autoDenyCritical"`
	// RequireTypeToCritical makes critical calls need a typed confirmation.
	RequireTypeToCritical bool `json:"requireTypeToCritical"`
	// CommandAllowlist patterns are approved without classification.
	CommandAllowlist []string `json:"commandAllowlist"`
	// CommandDenylist patterns are always denied.
	CommandDenylist []string `json:"commandDenylist"`
}

// DefaultAllowlist is the starter list of read-only and routine dev commands.
var DefaultAllowlist = []string{
	`^git\b`,
	`^npm\b`,
	`^pnpm\b`,
	`^yarn\b`,
	`^ls\b`,
	`^cat\b`,
	`^head\b`,
	`^tail\b`,
	`^wc\b`,
	`^pwd\b`,
	`^which\b`,
	`^grep\b`,
	`^rg\b`,
	`^go\s+(?:build|test|vet|fmt|version)\b`,
	`^cargo\s+(?:build|test|check)\b`,
}

// DefaultDenylist mirrors the most severe registry signatures.
var DefaultDenylist = []string{
	`\bsudo\b`,
	`\brm\s+-rf\s+/(?:\s|$|\*)`,
	`\bchmod\s+777\b`,
	`\b(?:curl|wget)\b[^|]*\|\s*(?:ba|z)?sh\b`,
	`:\s*\(\s*\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`,
	`\bmkfs\b`,
	`\bdd\s+if=.*\bof=/dev/`,
}

// DefaultSettings returns the compiled-in policy. The lists are fresh copies.
func DefaultSettings() SecuritySettings {
	return SecuritySettings{
		AutoDenyPrivilegeEscalation: true,
		AutoDenyCritical:            false,
		RequireTypeToCritical:       true,
		CommandAllowlist:            append([]string(nil), DefaultAllowlist...),
		CommandDenylist:             append([]string(nil), DefaultDenylist...),
	}
}

// Clone returns a deep copy.
func (s SecuritySettings) Clone() SecuritySettings {
	out := s
	out.CommandAllowlist = append([]string(nil), s.CommandAllowlist...)
	out.CommandDenylist = append([]string(nil), s.CommandDenylist...)
	return out
}

// Switch names accepted by SetSwitch, matching the JSON field names.
const (
	SwitchAutoDenyPrivilegeEscalation = "autoDenyPrivilegeEscalation"
	SwitchAutoDenyCritical            = "autoDenyCritical"
	SwitchRequireTypeToCritical       = "requireTypeToCritical"
)

// Switches lists the boolean settings in display order.
func Switches() []string {
	return []string{
		SwitchAutoDenyPrivilegeEscalation,
		SwitchAutoDenyCritical,
		SwitchRequireTypeToCritical,
	}
}

// SetSwitch sets a boolean setting by name. It reports false for an
// unknown name.
func (s *SecuritySettings) SetSwitch(name string, value bool) bool {
	switch name {
	case SwitchAutoDenyPrivilegeEscalation:
		s.AutoDenyPrivilegeEscalation = value
	case SwitchAutoDenyCritical:
		s.AutoDenyCritical = value
	case SwitchRequireTypeToCritical:
		s.RequireTypeToCritical = value
	default:
		return false
	}
	return true
}

// Switch returns a boolean setting by name.
func (s SecuritySettings) Switch(name string) (bool, bool) {
	switch name {
	case SwitchAutoDenyPrivilegeEscalation:
		return s.AutoDenyPrivilegeEscalation, true
	case SwitchAutoDenyCritical:
		return s.AutoDenyCritical, true
	case SwitchRequireTypeToCritical:
		return s.RequireTypeToCritical, true
	default:
		return false, false
	}
}
