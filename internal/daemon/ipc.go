// Package daemon serves tool-call decisions over line-delimited JSON-RPC on
// a unix socket or TCP.
//
// Each request is one JSON object per line:
//
//	{"method":"decide","params":{"tool_name":"exec","args":{"command":"ls"}},"id":1}
//
// and each response is one line:
//
//	{"result":{...},"id":1} or {"error":{"code":-32601,"message":"..."},"id":1}
package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Dicklesworthstone/toolguard/internal/core"
	"github.com/charmbracelet/log"
)

// JSON-RPC error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
)

// maxLineBytes bounds a single request line.
const maxLineBytes = 1 << 20

// RPCRequest is a single request line.
type RPCRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
	ID     int64           `json:"id"`
}

// RPCResponse is a single response line.
type RPCResponse struct {
	Result any    `json:"result,omitempty"`
	Error  *Error `json:"error,omitempty"`
	ID     int64  `json:"id"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ToolCallParams are the params of decide and classify.
type ToolCallParams struct {
	ToolName string         `json:"tool_name"`
	Args     map[string]any `json:"args"`
}

// HealthResult is the result of the health method.
type HealthResult struct {
	Status       string `json:"status"`
	Uptime       int64  `json:"uptime_seconds"`
	PatternHash  string `json:"pattern_hash"`
	PatternCount int    `json:"pattern_count"`
	ServerTime   string `json:"server_time"`
}

// connGuard runs before a connection is served. A non-nil error closes it.
type connGuard func(conn net.Conn, scanner *bufio.Scanner) error

// IPCServer answers decision requests for one listener.
type IPCServer struct {
	listener  net.Listener
	addr      string
	gate      *core.Gate
	logger    *log.Logger
	startTime time.Time
	cleanup   func()
	guard     connGuard

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	closed   bool
}

// NewIPCServer listens on a unix socket at socketPath with mode 0600. A
// stale socket file is replaced; a live one is an error.
func NewIPCServer(socketPath string, gate *core.Gate, logger *log.Logger) (*IPCServer, error) {
	if strings.TrimSpace(socketPath) == "" {
		return nil, fmt.Errorf("socket path is required")
	}
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o700); err != nil {
		return nil, fmt.Errorf("creating socket directory: %w", err)
	}
	if err := removeStaleSocket(socketPath); err != nil {
		return nil, err
	}

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix %s: %w", socketPath, err)
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	cleanup := func() { _ = os.Remove(socketPath) }
	return newIPCServer(ln, socketPath, gate, logger, cleanup, nil), nil
}

func newIPCServer(ln net.Listener, addr string, gate *core.Gate, logger *log.Logger, cleanup func(), guard connGuard) *IPCServer {
	if logger == nil {
		logger = log.Default()
	}
	if gate == nil {
		gate = core.NewGate(nil, logger)
	}
	return &IPCServer{
		listener:  ln,
		addr:      addr,
		gate:      gate,
		logger:    logger,
		startTime: time.Now(),
		cleanup:   cleanup,
		guard:     guard,
		conns:     make(map[net.Conn]struct{}),
	}
}

func removeStaleSocket(path string) error {
	if _, err := os.Lstat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	conn, err := net.DialTimeout("unix", path, 200*time.Millisecond)
	if err == nil {
		conn.Close()
		return fmt.Errorf("socket %s is already in use", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing stale socket: %w", err)
	}
	return nil
}

// Addr returns the address the server listens on.
func (s *IPCServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start accepts connections until ctx is done or Stop is called.
func (s *IPCServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.Stop()
	}()

	s.logger.Info("decision server listening", "addr", s.Addr())
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		if !s.track(conn) {
			conn.Close()
			return nil
		}
		go s.handleConn(ctx, conn)
	}
}

// Stop closes the listener and every open connection, then waits for the
// handlers to return.
func (s *IPCServer) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		err = s.listener.Close()
		for c := range s.conns {
			c.Close()
		}
		s.mu.Unlock()

		s.wg.Wait()
		if s.cleanup != nil {
			s.cleanup()
		}
		s.logger.Info("decision server stopped", "addr", s.addr)
	})
	return err
}

func (s *IPCServer) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *IPCServer) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *IPCServer) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *IPCServer) handleConn(ctx context.Context, conn net.Conn) {
	defer s.untrack(conn)
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	if s.guard != nil {
		if err := s.guard(conn, scanner); err != nil {
			s.logger.Warn("connection rejected", "remote", conn.RemoteAddr(), "error", err)
			return
		}
	}

	enc := json.NewEncoder(conn)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		resp := s.handleLine(ctx, line)
		if err := enc.Encode(resp); err != nil {
			s.logger.Debug("writing response failed", "error", err)
			return
		}
	}
	if err := scanner.Err(); err != nil && !s.isClosed() {
		s.logger.Debug("connection read failed", "error", err)
	}
}

func (s *IPCServer) handleLine(ctx context.Context, line []byte) *RPCResponse {
	var req RPCRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return errorResponse(0, ErrCodeParseError, "parse error: "+err.Error())
	}
	if req.Method == "" {
		return errorResponse(req.ID, ErrCodeInvalidRequest, "method is required")
	}
	return s.dispatch(ctx, req)
}

func (s *IPCServer) dispatch(ctx context.Context, req RPCRequest) *RPCResponse {
	switch req.Method {
	case "ping":
		return &RPCResponse{Result: map[string]bool{"pong": true}, ID: req.ID}
	case "decide":
		return s.handleDecide(ctx, req)
	case "classify":
		return s.handleClassify(req)
	case "health":
		return s.handleHealth(req)
	default:
		return errorResponse(req.ID, ErrCodeMethodNotFound, "method not found: "+req.Method)
	}
}

func (s *IPCServer) handleDecide(ctx context.Context, req RPCRequest) *RPCResponse {
	params, rpcErr := decodeToolCall(req.Params)
	if rpcErr != nil {
		return &RPCResponse{Error: rpcErr, ID: req.ID}
	}
	d := s.gate.Decide(ctx, params.ToolName, params.Args)
	return &RPCResponse{Result: d, ID: req.ID}
}

func (s *IPCServer) handleClassify(req RPCRequest) *RPCResponse {
	params, rpcErr := decodeToolCall(req.Params)
	if rpcErr != nil {
		return &RPCResponse{Error: rpcErr, ID: req.ID}
	}
	// A nil classification leaves result out, which clients read as null.
	c := core.Classify(params.ToolName, params.Args)
	if c == nil {
		return &RPCResponse{ID: req.ID}
	}
	return &RPCResponse{Result: c, ID: req.ID}
}

func (s *IPCServer) handleHealth(req RPCRequest) *RPCResponse {
	return &RPCResponse{
		Result: HealthResult{
			Status:       "ok",
			Uptime:       int64(time.Since(s.startTime).Seconds()),
			PatternHash:  core.ComputeHash(),
			PatternCount: len(core.Signatures()),
			ServerTime:   time.Now().UTC().Format(time.RFC3339),
		},
		ID: req.ID,
	}
}

// decodeToolCall keeps numbers as json.Number so they render in search
// text exactly as the client sent them.
func decodeToolCall(raw json.RawMessage) (ToolCallParams, *Error) {
	var params ToolCallParams
	if len(raw) == 0 {
		return params, &Error{Code: ErrCodeInvalidParams, Message: "params are required"}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&params); err != nil {
		return params, &Error{Code: ErrCodeInvalidParams, Message: "invalid params: " + err.Error()}
	}
	if strings.TrimSpace(params.ToolName) == "" {
		return params, &Error{Code: ErrCodeInvalidParams, Message: "tool_name is required"}
	}
	return params, nil
}

func errorResponse(id int64, code int, msg string) *RPCResponse {
	return &RPCResponse{Error: &Error{Code: code, Message: msg}, ID: id}
}
