package daemon

import (
	"bufio"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/Dicklesworthstone/toolguard/internal/core"
	"github.com/charmbracelet/log"
)

// TCPServerOptions configures the optional TCP listener for agents that
// cannot reach the unix socket.
type TCPServerOptions struct {
	Addr       string
	AllowedIPs []string

	// AuthToken, when set, must be presented in the handshake.
	AuthToken string
}

// handshakeTimeout bounds how long a new client has to send its hello line.
const handshakeTimeout = 3 * time.Second

// NewTCPServer starts a TCP listener speaking the same line-delimited
// JSON-RPC protocol as the unix socket, preceded by a handshake.
//
// Handshake: the client first sends one line {"auth":"<token>"}. The token
// may be empty when no AuthToken is configured.
func NewTCPServer(opts TCPServerOptions, gate *core.Gate, logger *log.Logger) (*IPCServer, error) {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, fmt.Errorf("tcp addr is required")
	}

	allowedNets, err := parseAllowedIPNets(opts.AllowedIPs)
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen tcp %s: %w", addr, err)
	}

	token := strings.TrimSpace(opts.AuthToken)
	guard := func(conn net.Conn, scanner *bufio.Scanner) error {
		remoteIP, err := extractRemoteIP(conn.RemoteAddr())
		if err != nil {
			return err
		}
		if len(allowedNets) > 0 && !ipAllowed(remoteIP, allowedNets) {
			return fmt.Errorf("tcp client ip not allowed: %s", remoteIP.String())
		}

		_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
		defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("handshake read error: %w", err)
			}
			return fmt.Errorf("handshake missing")
		}

		var hello handshake
		if err := json.Unmarshal(scanner.Bytes(), &hello); err != nil {
			return fmt.Errorf("invalid handshake: %w", err)
		}

		if token == "" {
			return nil
		}
		auth := strings.TrimSpace(hello.Auth)
		if auth == "" {
			return fmt.Errorf("auth required")
		}
		if subtle.ConstantTimeCompare([]byte(auth), []byte(token)) != 1 {
			return fmt.Errorf("invalid auth")
		}
		return nil
	}

	return newIPCServer(ln, addr, gate, logger, nil, guard), nil
}

type handshake struct {
	Auth string `json:"auth"`
}

func parseAllowedIPNets(values []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(values))
	for _, raw := range values {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			_, n, err := net.ParseCIDR(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid allowed ip cidr %q: %w", raw, err)
			}
			nets = append(nets, n)
			continue
		}

		ip := net.ParseIP(raw)
		if ip == nil {
			return nil, fmt.Errorf("invalid allowed ip %q", raw)
		}
		if ip.To4() != nil {
			ip4 := ip.To4()
			nets = append(nets, &net.IPNet{IP: ip4, Mask: net.CIDRMask(32, 32)})
		} else if ip16 := ip.To16(); ip16 != nil {
			nets = append(nets, &net.IPNet{IP: ip16, Mask: net.CIDRMask(128, 128)})
		} else {
			return nil, fmt.Errorf("invalid allowed ip %q", raw)
		}
	}
	return nets, nil
}

func extractRemoteIP(addr net.Addr) (net.IP, error) {
	if addr == nil {
		return nil, fmt.Errorf("missing remote address")
	}

	if tcp, ok := addr.(*net.TCPAddr); ok && tcp.IP != nil {
		return tcp.IP, nil
	}

	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		ip := net.ParseIP(addr.String())
		if ip == nil {
			return nil, fmt.Errorf("unable to parse remote ip: %s", addr.String())
		}
		return ip, nil
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return nil, fmt.Errorf("unable to parse remote ip: %s", host)
	}
	return ip, nil
}

func ipAllowed(ip net.IP, allowed []*net.IPNet) bool {
	if ip == nil {
		return false
	}
	for _, n := range allowed {
		if n != nil && n.Contains(ip) {
			return true
		}
	}
	return false
}
