package core

import (
	"fmt"

	"github.com/Dicklesworthstone/toolguard/internal/policy"
)

// DecisionKind is the verdict for a tool call.
type DecisionKind string

const (
	AutoApprove              DecisionKind = "auto_approve"
	AutoDeny                 DecisionKind = "auto_deny"
	RequireTypedConfirmation DecisionKind = "require_typed_confirmation"
	RequireApproval          DecisionKind = "require_approval"
)

// Reason strings reported by Decide.
const (
	ReasonDenylist            = "Blocked by denylist"
	ReasonPrivilegeEscalation = "Privilege escalation blocked by policy"
)

// Decision is the outcome of evaluating one tool call.
//
// Field use depends on Kind: AutoDeny carries Reason, RequireTypedConfirmation
// carries Reason and Level, RequireApproval carries Classification (which may
// be nil for an unclassified call). AutoApprove carries nothing.
type Decision struct {
	Kind           DecisionKind    `json:"kind"`
	Reason         string          `json:"reason,omitempty"`
	Level          RiskLevel       `json:"level,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
}

// Approve returns an AutoApprove decision.
func Approve() Decision {
	return Decision{Kind: AutoApprove}
}

// Deny returns an AutoDeny decision with the given reason.
func Deny(reason string) Decision {
	return Decision{Kind: AutoDeny, Reason: reason}
}

// TypedConfirmation returns a RequireTypedConfirmation decision.
func TypedConfirmation(reason string, level RiskLevel) Decision {
	return Decision{Kind: RequireTypedConfirmation, Reason: reason, Level: level}
}

// Approval returns a RequireApproval decision. c may be nil.
func Approval(c *Classification) Decision {
	return Decision{Kind: RequireApproval, Classification: c}
}

// NeedsHuman reports whether the decision must be put to an approver.
func (d Decision) NeedsHuman() bool {
	return d.Kind == RequireApproval || d.Kind == RequireTypedConfirmation
}

// String renders a one-line summary for logs and the CLI.
func (d Decision) String() string {
	switch d.Kind {
	case AutoApprove:
		return "auto-approve"
	case AutoDeny:
		return "auto-deny: " + d.Reason
	case RequireTypedConfirmation:
		return fmt.Sprintf("typed confirmation (%s): %s", d.Level, d.Reason)
	case RequireApproval:
		if d.Classification == nil {
			return "approval required (unclassified)"
		}
		return fmt.Sprintf("approval required (%s %s)", d.Classification.Level, d.Classification.Label)
	default:
		return string(d.Kind)
	}
}

// Decide evaluates a tool call against the settings. The order is fixed:
// denylist, allowlist, then classification with the auto-deny and typed
// confirmation switches. It never fails; anything it cannot place falls
// through to RequireApproval.
func Decide(toolName string, args map[string]any, settings policy.SecuritySettings) Decision {
	command := CommandText(toolName, args)

	// The denylist also sees the full search text so a denied term cannot
	// hide in a non-command argument.
	if policy.MatchesDenylist(command, settings.CommandDenylist) {
		return Deny(ReasonDenylist)
	}
	if search := BuildSearchText(toolName, args); search != command &&
		policy.MatchesDenylist(search, settings.CommandDenylist) {
		return Deny(ReasonDenylist)
	}

	if allow := AllowlistText(args); allow != "" && policy.MatchesAllowlist(allow, settings.CommandAllowlist) {
		return Approve()
	}

	c := Classify(toolName, args)
	if c == nil {
		return Approval(nil)
	}

	if settings.AutoDenyPrivilegeEscalation && IsPrivilegeEscalation(toolName, args) {
		return Deny(ReasonPrivilegeEscalation)
	}

	if c.Level == RiskCritical {
		if settings.AutoDenyCritical {
			return Deny(fmt.Sprintf("Critical risk blocked by policy: %s", c.Label))
		}
		if settings.RequireTypeToCritical {
			return TypedConfirmation(c.Reason, c.Level)
		}
	}

	return Approval(c)
}
