package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/Dicklesworthstone/toolguard/internal/policy"
	"github.com/Dicklesworthstone/toolguard/internal/testutil"
)

func (e *cliEnv) stored() policy.SecuritySettings {
	e.t.Helper()
	s, err := e.h.Policy.Load(context.Background())
	testutil.RequireNoError(e.t, err, "load settings")
	return s
}

func TestPolicyShow_Defaults(t *testing.T) {
	e := newCLIEnv(t)
	var view SettingsView
	e.runJSON(&view, "policy", "show")

	d := policy.DefaultSettings()
	testutil.RequireEqual(t, d.AutoDenyPrivilegeEscalation, view.AutoDenyPrivilegeEscalation, "escalation")
	testutil.RequireEqual(t, d.RequireTypeToCritical, view.RequireTypeToCritical, "typed")
	testutil.RequireLen(t, view.CommandDenylist, len(d.CommandDenylist), "denylist")
}

func TestPolicyShow_Text(t *testing.T) {
	e := newCLIEnv(t)
	e.save(testutil.MakeSettings(testutil.WithDeny(`\bterraform\s+destroy\b`), testutil.WithAutoDenyCritical(true)))

	stdout, _, err := e.run("", "policy", "show")
	testutil.RequireNoError(t, err, "show")
	testutil.RequireContains(t, stdout, "policy show",
		"autoDenyCritical", "true", "Denylist (1)", `\bterraform\s+destroy\b`, "Allowlist (0)")
}

func TestPolicyAllow_AddListRemove(t *testing.T) {
	e := newCLIEnv(t)
	e.save(testutil.MakeSettings())

	var view PatternListView
	e.runJSON(&view, "policy", "allow", "add", `^make\b`, `^just\b`)
	testutil.RequireEqual(t, "allowlist", view.List, "list name")
	testutil.RequireLen(t, view.Patterns, 2, "after add")

	// Adding an existing pattern is a no-op.
	e.runJSON(&view, "policy", "allow", "add", `^make\b`)
	testutil.RequireLen(t, view.Patterns, 2, "after duplicate add")

	e.runJSON(&view, "policy", "allow", "list")
	testutil.RequireLen(t, view.Patterns, 2, "list")

	e.runJSON(&view, "policy", "allow", "remove", `^just\b`)
	testutil.RequireLen(t, view.Patterns, 1, "after remove")
	testutil.RequireEqual(t, `^make\b`, view.Patterns[0], "remaining pattern")

	s := e.stored()
	testutil.RequireLen(t, s.CommandAllowlist, 1, "stored allowlist")
	testutil.RequireLen(t, s.CommandDenylist, 0, "denylist untouched")
}

func TestPolicyDeny_AddAffectsDecisions(t *testing.T) {
	e := newCLIEnv(t)
	e.save(testutil.MakeSettings(testutil.WithAllow(`^make\b`)))

	var result CheckResult
	e.runJSON(&result, "check", "make", "deploy")
	testutil.RequireEqual(t, "auto_approve", string(result.Decision.Kind), "before deny")

	var view PatternListView
	e.runJSON(&view, "policy", "deny", "add", `\bdeploy\b`)
	testutil.RequireEqual(t, "denylist", view.List, "list name")

	e.runJSON(&result, "check", "make", "deploy")
	testutil.RequireEqual(t, "auto_deny", string(result.Decision.Kind), "after deny")
}

func TestPolicyAdd_InvalidPatternSavesNothing(t *testing.T) {
	e := newCLIEnv(t)
	e.save(testutil.MakeSettings())

	_, _, err := e.run("", "policy", "deny", "add", `^ok\b`, `(unclosed`)
	testutil.RequireErrorIs(t, err, policy.ErrInvalidPattern, "invalid pattern")
	testutil.RequireLen(t, e.stored().CommandDenylist, 0, "denylist after failed add")

	_, _, err = e.run("", "policy", "allow", "add", "   ")
	testutil.RequireErrorIs(t, err, policy.ErrInvalidPattern, "blank pattern")
}

func TestPolicyRemove_Missing(t *testing.T) {
	e := newCLIEnv(t)
	e.save(testutil.MakeSettings(testutil.WithDeny(`\brm\b`)))

	_, _, err := e.run("", "policy", "deny", "remove", `\bRM\b`)
	if err == nil || !strings.Contains(err.Error(), "not in the denylist") {
		t.Fatalf("expected not-found error, got %v", err)
	}
	testutil.RequireLen(t, e.stored().CommandDenylist, 1, "denylist unchanged")
}

func TestPolicySet(t *testing.T) {
	e := newCLIEnv(t)
	e.save(testutil.MakeSettings())

	var view SettingsView
	e.runJSON(&view, "policy", "set", policy.SwitchAutoDenyCritical, "true")
	testutil.RequireEqual(t, true, view.AutoDenyCritical, "output")
	testutil.RequireEqual(t, true, e.stored().AutoDenyCritical, "stored")

	e.runJSON(&view, "policy", "set", policy.SwitchAutoDenyCritical, "false")
	testutil.RequireEqual(t, false, e.stored().AutoDenyCritical, "stored after off")
}

func TestPolicySet_Errors(t *testing.T) {
	e := newCLIEnv(t)
	e.save(testutil.MakeSettings())

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown switch", []string{"policy", "set", "autoApproveEverything", "true"}, "unknown switch"},
		{"bad value", []string{"policy", "set", policy.SwitchAutoDenyCritical, "maybe"}, "expected true or false"},
		{"missing value", []string{"policy", "set", policy.SwitchAutoDenyCritical}, "accepts 2 arg"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := e.run("", tc.args...)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestPolicyReset(t *testing.T) {
	e := newCLIEnv(t)
	e.save(testutil.MakeSettings(testutil.WithDeny(`x`)))

	_, stderr, err := e.run("", "policy", "reset")
	testutil.RequireNoError(t, err, "reset")
	if !strings.Contains(stderr, "reset to defaults") {
		t.Errorf("expected success message, got %q", stderr)
	}

	s := e.stored()
	testutil.RequireLen(t, s.CommandDenylist, len(policy.DefaultDenylist), "default denylist restored")
}

func TestPolicyTest(t *testing.T) {
	e := newCLIEnv(t)
	tests := []struct {
		name    string
		args    []string
		valid   bool
		matches bool
	}{
		{"matches case-insensitively", []string{`^GIT\s+push`, "git", "push", "--force"}, true, true},
		{"no match", []string{`^npm\b`, "git", "status"}, true, false},
		{"invalid pattern", []string{`[a-`, "anything"}, false, false},
		{"blank pattern", []string{" ", "anything"}, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var result PatternTestResult
			e.runJSON(&result, append([]string{"policy", "test"}, tc.args...)...)
			testutil.RequireEqual(t, tc.valid, result.Valid, "valid")
			testutil.RequireEqual(t, tc.matches, result.Matches, "matches")
			if !tc.valid && result.Error == "" {
				t.Error("expected an error message for an invalid pattern")
			}
		})
	}
}
