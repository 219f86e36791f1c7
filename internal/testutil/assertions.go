package testutil

import (
	"errors"
	"strings"
	"testing"
)

// RequireNoError stops the test when err is set. msg names the step that
// failed, e.g. "save settings".
func RequireNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", msg, err)
	}
}

// RequireErrorIs stops the test unless err wraps target.
func RequireErrorIs(t *testing.T, err, target error, msg string) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("%s: error %v does not wrap %v", msg, err, target)
	}
}

// RequireEqual stops the test when got differs from want.
func RequireEqual[T comparable](t *testing.T, want, got T, msg string) {
	t.Helper()
	if want != got {
		t.Fatalf("%s: got %v, want %v", msg, got, want)
	}
}

// RequireLen stops the test unless s has n elements.
func RequireLen[S ~[]E, E any](t *testing.T, s S, n int, msg string) {
	t.Helper()
	if len(s) != n {
		t.Fatalf("%s: got %d elements, want %d: %v", msg, len(s), n, s)
	}
}

// RequireContains stops the test unless s contains every substring in want.
// Decision reasons and CLI output are checked this way.
func RequireContains(t *testing.T, s string, msg string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(s, w) {
			t.Fatalf("%s: %q not found in:\n%s", msg, w, s)
		}
	}
}
