package testutil

import (
	"io"
	"os"
	"testing"

	"github.com/Dicklesworthstone/toolguard/internal/utils"
	"github.com/charmbracelet/log"
)

// TestLogger returns a toolguard logger for components under test. Output
// is discarded unless the run is verbose; TOOLGUARD_TEST_LOG_LEVEL picks
// the level (default debug, so decisions and daemon traffic show up).
func TestLogger(t *testing.T) *log.Logger {
	t.Helper()

	var out io.Writer = io.Discard
	if testing.Verbose() {
		out = os.Stderr
	}
	level := os.Getenv("TOOLGUARD_TEST_LOG_LEVEL")
	if level == "" {
		level = "debug"
	}
	return utils.InitLogger(utils.LoggerOptions{
		Level:  level,
		Output: out,
		Prefix: "toolguard " + t.Name(),
	})
}
