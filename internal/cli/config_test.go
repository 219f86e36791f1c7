package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Dicklesworthstone/toolguard/internal/testutil"
)

func TestConfigShow(t *testing.T) {
	e := newCLIEnv(t)
	stdout, _, err := e.run("", "config")
	testutil.RequireNoError(t, err, "config")
	for _, want := range []string{"[general]", "log_level", "[daemon]", "socket_path"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("toml output missing %q:\n%s", want, stdout)
		}
	}
}

func TestConfigGet(t *testing.T) {
	e := newCLIEnv(t)
	var v ConfigValue
	e.runJSON(&v, "config", "get", "general.approval_timeout_seconds")
	testutil.RequireEqual(t, "general.approval_timeout_seconds", v.Key, "key")
	if n, ok := v.Value.(float64); !ok || n != 120 {
		t.Errorf("expected 120, got %#v", v.Value)
	}

	e.runJSON(&v, "config", "get", "store.database_path")
	testutil.RequireEqual(t, e.h.DBPath, v.Value.(string), "flag override visible")
}

func TestConfigGet_UnknownKey(t *testing.T) {
	e := newCLIEnv(t)
	_, _, err := e.run("", "config", "get", "general.nope")
	if err == nil || !strings.Contains(err.Error(), "unknown key") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestConfigSet_Project(t *testing.T) {
	e := newCLIEnv(t)
	var v ConfigValue
	e.runJSON(&v, "config", "set", "general.safe_tools", "read_file, web_search")

	want := filepath.Join(e.h.ProjectDir, ".toolguard", "config.toml")
	testutil.RequireEqual(t, want, v.Path, "written path")
	data, err := os.ReadFile(want)
	testutil.RequireNoError(t, err, "read project config")
	if !strings.Contains(string(data), "safe_tools") {
		t.Errorf("project config missing key:\n%s", data)
	}

	e.runJSON(&v, "config", "get", "general.safe_tools")
	list, ok := v.Value.([]any)
	if !ok {
		t.Fatalf("expected list value, got %#v", v.Value)
	}
	testutil.RequireLen(t, list, 2, "safe tools")
}

func TestConfigSet_Global(t *testing.T) {
	e := newCLIEnv(t)
	_, _, err := e.run("", "config", "set", "--global", "general.log_level", "debug")
	testutil.RequireNoError(t, err, "set global")

	path := filepath.Join(e.home, ".toolguard", "config.toml")
	data, err := os.ReadFile(path)
	testutil.RequireNoError(t, err, "read user config")
	if !strings.Contains(string(data), `log_level = "debug"`) {
		t.Errorf("user config missing value:\n%s", data)
	}
	if _, err := os.Stat(filepath.Join(e.h.ProjectDir, ".toolguard", "config.toml")); !os.IsNotExist(err) {
		t.Errorf("project config should not be written, stat err = %v", err)
	}
}

func TestConfigSet_Errors(t *testing.T) {
	e := newCLIEnv(t)
	tests := []struct {
		name string
		args []string
	}{
		{"unknown key", []string{"config", "set", "general.nope", "x"}},
		{"bad integer", []string{"config", "set", "general.approval_timeout_seconds", "soon"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := e.run("", tc.args...); err == nil {
				t.Fatalf("expected error for %v", tc.args)
			}
		})
	}
}
