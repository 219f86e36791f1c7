package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/Dicklesworthstone/toolguard/internal/core"
)

// DefaultClientTimeout bounds a call when ctx has no deadline.
const DefaultClientTimeout = 5 * time.Second

// Client talks to a decision server. It holds one connection and
// serializes calls over it.
type Client struct {
	network string
	addr    string
	auth    string
	timeout time.Duration

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	nextID int64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAuthToken sets the token sent in the TCP handshake.
func WithAuthToken(token string) ClientOption {
	return func(c *Client) {
		c.auth = token
	}
}

// WithTimeout sets the per-call timeout used when ctx has no deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewUnixClient creates a client for the unix socket at path.
func NewUnixClient(path string, opts ...ClientOption) *Client {
	return newClient("unix", path, opts)
}

// NewTCPClient creates a client for a TCP server at addr.
func NewTCPClient(addr string, opts ...ClientOption) *Client {
	return newClient("tcp", addr, opts)
}

func newClient(network, addr string, opts []ClientOption) *Client {
	c := &Client{network: network, addr: addr, timeout: DefaultClientTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the server. It is a no-op when already connected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, c.network, c.addr)
	if err != nil {
		return fmt.Errorf("connecting to %s %s: %w", c.network, c.addr, err)
	}

	if c.network == "tcp" {
		hello, err := json.Marshal(handshake{Auth: c.auth})
		if err != nil {
			conn.Close()
			return fmt.Errorf("encoding handshake: %w", err)
		}
		if deadline, ok := ctx.Deadline(); ok {
			_ = conn.SetWriteDeadline(deadline)
		}
		if _, err := conn.Write(append(hello, '\n')); err != nil {
			conn.Close()
			return fmt.Errorf("sending handshake: %w", err)
		}
		_ = conn.SetWriteDeadline(time.Time{})
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// Close closes the connection. Closing an unconnected client is not an error.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}

type rawResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
	ID     int64           `json:"id"`
}

// Call sends one request and decodes the result into result, which may be
// nil. An RPC error is returned as *Error. A transport failure drops the
// connection so the next call redials.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		return err
	}

	req := RPCRequest{Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encoding %s params: %w", method, err)
		}
		req.Params = raw
	}
	c.nextID++
	req.ID = c.nextID

	line, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", method, err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	conn := c.conn
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		// Unblocks a pending read or write.
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.Write(append(line, '\n')); err != nil {
		c.closeLocked()
		return fmt.Errorf("sending %s: %w", method, err)
	}
	respLine, err := c.reader.ReadBytes('\n')
	if err != nil {
		c.closeLocked()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("waiting for %s: %w", method, ctxErr)
		}
		return fmt.Errorf("reading %s response: %w", method, err)
	}
	_ = conn.SetDeadline(time.Time{})

	var resp rawResponse
	if err := json.Unmarshal(respLine, &resp); err != nil {
		c.closeLocked()
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	if resp.ID != req.ID {
		c.closeLocked()
		return fmt.Errorf("%s response id %d does not match request %d", method, resp.ID, req.ID)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if result == nil || len(resp.Result) == 0 || string(resp.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("decoding %s result: %w", method, err)
	}
	return nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Ping checks that the server answers.
func (c *Client) Ping(ctx context.Context) error {
	var result struct {
		Pong bool `json:"pong"`
	}
	if err := c.Call(ctx, "ping", nil, &result); err != nil {
		return err
	}
	if !result.Pong {
		return fmt.Errorf("unexpected ping response")
	}
	return nil
}

// Decide asks the server to evaluate a tool call.
func (c *Client) Decide(ctx context.Context, toolName string, args map[string]any) (core.Decision, error) {
	var d core.Decision
	err := c.Call(ctx, "decide", ToolCallParams{ToolName: toolName, Args: args}, &d)
	return d, err
}

// Classify returns the server's classification, or nil when nothing matched.
func (c *Client) Classify(ctx context.Context, toolName string, args map[string]any) (*core.Classification, error) {
	var out *core.Classification
	err := c.Call(ctx, "classify", ToolCallParams{ToolName: toolName, Args: args}, &out)
	return out, err
}

// Health returns the server's health report.
func (c *Client) Health(ctx context.Context) (HealthResult, error) {
	var h HealthResult
	err := c.Call(ctx, "health", nil, &h)
	return h, err
}
