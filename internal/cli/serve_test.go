package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/Dicklesworthstone/toolguard/internal/core"
	"github.com/Dicklesworthstone/toolguard/internal/daemon"
	"github.com/Dicklesworthstone/toolguard/internal/testutil"
)

func TestRunServers_StopsOnCancel(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix socket tests not supported on windows")
	}
	logger := testutil.TestLogger(t)
	gate := core.NewGate(nil, logger)

	dir, err := os.MkdirTemp("", "tg")
	testutil.RequireNoError(t, err, "socket dir")
	t.Cleanup(func() { os.RemoveAll(dir) })
	socketPath := filepath.Join(dir, "s.sock")

	unixSrv, err := daemon.NewIPCServer(socketPath, gate, logger)
	testutil.RequireNoError(t, err, "unix server")
	tcpSrv, err := daemon.NewTCPServer(daemon.TCPServerOptions{Addr: "127.0.0.1:0"}, gate, logger)
	testutil.RequireNoError(t, err, "tcp server")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServers(ctx, []*daemon.IPCServer{unixSrv, tcpSrv}) }()

	client := daemon.NewUnixClient(socketPath)
	defer client.Close()
	testutil.RequireNoError(t, client.Ping(context.Background()), "ping")

	cancel()
	select {
	case err := <-done:
		testutil.RequireNoError(t, err, "runServers")
	case <-time.After(5 * time.Second):
		t.Fatal("servers did not stop")
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Errorf("socket not removed after stop: %v", err)
	}
}

func TestServeInfo_Text(t *testing.T) {
	var buf bytes.Buffer
	info := ServeInfo{Socket: "/tmp/x.sock", TCP: "127.0.0.1:7777", PatternHash: "0123456789abcdef"}
	testutil.RequireNoError(t, info.RenderText(&buf), "render")
	for _, want := range []string{"/tmp/x.sock", "tcp 127.0.0.1:7777", "patterns 0123456789ab"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}
}
