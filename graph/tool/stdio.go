package tool

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/sourcegraph/jsonrpc2"
)

// stdioTransport reaches a tool server launched as a child process,
// communicating over its stdin/stdout with line-framed JSON-RPC requests.
type stdioTransport struct {
	desc   ServerDescriptor
	cmd    *exec.Cmd
	conn   *jsonrpc2.Conn
	cancel context.CancelFunc
	mu     sync.Mutex
}

func newStdioTransport(desc ServerDescriptor) *stdioTransport {
	return &stdioTransport{desc: desc}
}

type stdioReadWriteCloser struct {
	reader io.ReadCloser
	writer io.WriteCloser
}

func (s *stdioReadWriteCloser) Read(p []byte) (int, error)  { return s.reader.Read(p) }
func (s *stdioReadWriteCloser) Write(p []byte) (int, error) { return s.writer.Write(p) }
func (s *stdioReadWriteCloser) Close() error {
	werr := s.writer.Close()
	rerr := s.reader.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// Handshake launches the child process and performs the initial
// handshake RPC.
func (t *stdioTransport) Handshake(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, t.desc.Command, t.desc.Args...)
	if t.desc.Dir != "" {
		cmd.Dir = t.desc.Dir
	}
	if len(t.desc.Env) > 0 {
		env := os.Environ()
		for k, v := range t.desc.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return err
	}

	rwc := &stdioReadWriteCloser{reader: stdout, writer: stdin}
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	handler := jsonrpc2.HandlerWithError(func(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
		// Tool servers in this spec do not push unsolicited notifications we
		// act on; acknowledge and ignore.
		return nil, nil
	})
	conn := jsonrpc2.NewConn(ctx, stream, handler)

	t.cmd = cmd
	t.conn = conn
	t.cancel = cancel

	go func() { _, _ = io.Copy(io.Discard, stderr) }()

	if err := cmd.Start(); err != nil {
		cancel()
		return err
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := conn.Call(ctx, "handshake", struct{}{}, &result); err != nil {
		cancel()
		_ = cmd.Process.Kill()
		return fmt.Errorf("handshake rpc failed: %w", err)
	}
	return nil
}

func (t *stdioTransport) ListTools(ctx context.Context) ([]Spec, error) {
	var result struct {
		Tools []Spec `json:"tools"`
	}
	if err := t.conn.Call(ctx, "list_tools", struct{}{}, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

func (t *stdioTransport) Invoke(ctx context.Context, toolName string, args map[string]interface{}, correlationID string) (Result, error) {
	params := struct {
		Tool          string                 `json:"tool"`
		Args          map[string]interface{} `json:"args"`
		CorrelationID string                 `json:"correlation_id"`
	}{Tool: toolName, Args: args, CorrelationID: correlationID}

	var reply struct {
		CorrelationID string                 `json:"correlation_id"`
		Result        map[string]interface{} `json:"result"`
		Error         string                 `json:"error"`
	}
	if err := t.conn.Call(ctx, "invoke", params, &reply); err != nil {
		return Result{}, err
	}
	if reply.CorrelationID != correlationID {
		return Result{}, fmt.Errorf("tool: correlation id mismatch: sent %q, received %q", correlationID, reply.CorrelationID)
	}
	if reply.Error != "" {
		return Result{IsError: true, ErrorMessage: reply.Error}, nil
	}
	return Result{Value: reply.Result}, nil
}

func (t *stdioTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		_ = t.conn.Notify(ctx, "shutdown", struct{}{})
		_ = t.conn.Close()
	}
	if t.cancel != nil {
		t.cancel()
	}
	if t.cmd != nil && t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}
	return nil
}
