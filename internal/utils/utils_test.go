package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{"INFO", log.InfoLevel},
		{"warn", log.WarnLevel},
		{"warning", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"fatal", log.FatalLevel},
		{"unknown", log.InfoLevel},
		{"", log.InfoLevel},
	}

	for _, tc := range cases {
		if got := parseLevel(tc.in); got != tc.want {
			t.Fatalf("parseLevel(%q)=%v want %v", tc.in, got, tc.want)
		}
	}
}

func TestInitLogger_WritesOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogger(LoggerOptions{
		Level:           "debug",
		Output:          &buf,
		Prefix:          "test",
		ReportTimestamp: false,
	})

	logger.Info("hello", "k", "v")
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("expected output to contain message; got %q", buf.String())
	}
}

func TestInitLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogger(LoggerOptions{Level: "warn", Output: &buf})

	logger.Info("quiet")
	logger.Warn("loud")
	if strings.Contains(buf.String(), "quiet") || !strings.Contains(buf.String(), "loud") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestInitDefaultLogger_RespectsEnvOverride(t *testing.T) {
	t.Setenv("TOOLGUARD_LOG_LEVEL", "debug")
	logger := InitDefaultLogger()
	if logger == nil {
		t.Fatalf("expected logger")
	}
	if logger.GetLevel() != log.DebugLevel {
		t.Fatalf("level = %v, want debug", logger.GetLevel())
	}
}

func TestInitDaemonLogger_CreatesLogFileUnderHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	logger, err := InitDaemonLogger()
	if err != nil {
		t.Fatalf("InitDaemonLogger: %v", err)
	}
	if logger == nil {
		t.Fatalf("expected logger")
	}

	path := filepath.Join(home, ".toolguard", "daemon.log")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected daemon log file at %s: %v", path, err)
	}
}

func TestDefaultLogger(t *testing.T) {
	old := GetDefaultLogger()
	t.Cleanup(func() {
		SetDefaultLogger(old)
	})

	var buf bytes.Buffer
	SetDefaultLogger(InitLogger(LoggerOptions{Level: "debug", Output: &buf}))
	SetDefaultLogger(nil)

	GetDefaultLogger().Debug("debug-msg")
	if !strings.Contains(buf.String(), "debug-msg") {
		t.Fatalf("expected output to contain debug-msg; got %q", buf.String())
	}
}

func TestSanitizeInput(t *testing.T) {
	in := "\x1b[31mrm -rf /\x1b[0m\x07\nnext\tline"
	want := "rm -rf /\nnext\tline"
	if got := SanitizeInput(in); got != want {
		t.Fatalf("SanitizeInput() = %q, want %q", got, want)
	}
	if got := StripANSI("\x1b[1mbold\x1b[0m"); got != "bold" {
		t.Fatalf("StripANSI() = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"longer text", 6, "longe…"},
		{"héllo wörld", 4, "hél…"},
		{"x", 0, ""},
		{"xyz", 1, "…"},
	}
	for _, tc := range cases {
		if got := Truncate(tc.in, tc.max); got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}
