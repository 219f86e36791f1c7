package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/Dicklesworthstone/toolguard/internal/config"
	"github.com/Dicklesworthstone/toolguard/internal/core"
	"github.com/Dicklesworthstone/toolguard/internal/daemon"
	"github.com/Dicklesworthstone/toolguard/internal/utils"
	"github.com/spf13/cobra"
)

// ServeInfo describes the listeners a decision server opened.
type ServeInfo struct {
	Socket      string `json:"socket"`
	TCP         string `json:"tcp,omitempty"`
	PatternHash string `json:"pattern_hash"`
}

// RenderText implements output.TextRenderer.
func (s ServeInfo) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "decision server listening on %s\n", s.Socket)
	if s.TCP != "" {
		fmt.Fprintf(w, "decision server listening on tcp %s\n", s.TCP)
	}
	_, err := fmt.Fprintf(w, "patterns %s\n", shortHash(s.PatternHash))
	return err
}

func newServeCmd() *cobra.Command {
	var (
		socketPath string
		tcpAddr    string
		tcpToken   string
		allowIPs   []string
		foreground bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON-RPC decision server",
		Long: `Run a decision server speaking newline-delimited JSON-RPC.

Methods:
  ping                         {"pong": true}
  decide   {tool_name, args}   the decision for a tool call
  classify {tool_name, args}   the classification, or null
  health                       uptime and pattern registry version

The unix socket (daemon.socket_path) is always opened with mode 0600. A TCP
listener is added with --tcp; TCP clients first send {"auth": "<token>"}.

Settings are re-read on every request, so 'toolguard policy' changes apply
without a restart. Logs go to ~/.toolguard/daemon.log unless --foreground.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if !foreground {
				logger, err := utils.InitDaemonLogger()
				if err != nil {
					return err
				}
				a.logger = logger
				utils.SetDefaultLogger(logger)
			}

			if socketPath == "" {
				socketPath = a.cfg.SocketPath()
			} else {
				socketPath = config.ExpandHome(socketPath)
			}
			if !cmd.Flags().Changed("tcp") {
				tcpAddr = a.cfg.Daemon.TCPAddr
			}
			if !cmd.Flags().Changed("tcp-token") {
				tcpToken = a.cfg.Daemon.TCPAuthToken
			}
			if !cmd.Flags().Changed("allow-ip") {
				allowIPs = a.cfg.Daemon.TCPAllowedIPs
			}

			store, closeFn, err := a.openPolicy()
			if err != nil {
				return err
			}
			defer closeFn()
			gate := core.NewGate(store, a.logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			servers := make([]*daemon.IPCServer, 0, 2)
			unixSrv, err := daemon.NewIPCServer(socketPath, gate, a.logger)
			if err != nil {
				return err
			}
			servers = append(servers, unixSrv)

			if tcpAddr != "" {
				tcpSrv, err := daemon.NewTCPServer(daemon.TCPServerOptions{
					Addr:       tcpAddr,
					AllowedIPs: allowIPs,
					AuthToken:  tcpToken,
				}, gate, a.logger)
				if err != nil {
					_ = unixSrv.Stop()
					return err
				}
				servers = append(servers, tcpSrv)
				tcpAddr = tcpSrv.Addr()
			}

			if err := a.out.Write(ServeInfo{
				Socket:      unixSrv.Addr(),
				TCP:         tcpAddr,
				PatternHash: core.ComputeHash(),
			}); err != nil {
				a.logger.Warn("writing serve info", "error", err)
			}
			return runServers(ctx, servers)
		},
	}

	f := cmd.Flags()
	f.StringVar(&socketPath, "socket", "", "unix socket path (default: daemon.socket_path)")
	f.StringVar(&tcpAddr, "tcp", "", "also listen on this TCP address (default: daemon.tcp_addr)")
	f.StringVar(&tcpToken, "tcp-token", "", "token TCP clients must present (default: daemon.tcp_auth_token)")
	f.StringSliceVar(&allowIPs, "allow-ip", nil, "allowed TCP client IPs or CIDRs (default: daemon.tcp_allowed_ips)")
	f.BoolVar(&foreground, "foreground", false, "log to stderr instead of the daemon log file")
	return cmd
}

// runServers runs every server until ctx ends or one of them fails, then
// stops the rest.
func runServers(ctx context.Context, servers []*daemon.IPCServer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, len(servers))
	for _, srv := range servers {
		srv := srv
		go func() {
			errs <- srv.Start(ctx)
		}()
	}

	var result []error
	for range servers {
		if err := <-errs; err != nil {
			result = append(result, err)
			cancel()
		}
	}
	// Start can return before a concurrent Stop has removed the socket.
	for _, srv := range servers {
		_ = srv.Stop()
	}
	return errors.Join(result...)
}
