package toolrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// client is a JSON-RPC connection to a tool server subprocess over stdio.
// Requests are framed with Content-Length headers; one request is in flight
// at a time.
type client struct {
	serverName string
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	reader     *bufio.Reader
	stderr     *tailBuffer

	exitMu  sync.RWMutex
	exited  bool
	exitErr error

	mu     sync.Mutex
	nextID int64
}

func dial(ctx context.Context, spec ServerSpec) (*client, error) {
	command := strings.TrimSpace(spec.Command)
	if command == "" {
		return nil, fmt.Errorf("tool server %q requires a command", spec.Name)
	}

	cmd := exec.CommandContext(ctx, command, spec.Args...)
	cmd.Env = mergeEnv(spec.Env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start tool server %q: %w", spec.Name, err)
	}

	c := &client{
		serverName: spec.Name,
		cmd:        cmd,
		stdin:      stdin,
		reader:     bufio.NewReader(stdout),
		stderr:     newTailBuffer(4096),
	}

	// Drain stderr so the child never blocks; keep a bounded tail for
	// diagnostics.
	go io.Copy(c.stderr, stderr)
	go func() {
		err := cmd.Wait()
		c.exitMu.Lock()
		c.exited = true
		c.exitErr = err
		c.exitMu.Unlock()
	}()

	return c, nil
}

// Invoke sends one tool invocation and waits for the matching response or
// context expiry.
func (c *client) Invoke(ctx context.Context, tool string, args json.RawMessage) (string, error) {
	if err := c.exitError(); err != nil {
		return "", c.decorate(err)
	}

	params, err := json.Marshal(invokeParams{Name: strings.TrimSpace(tool), Arguments: args})
	if err != nil {
		return "", fmt.Errorf("encode invoke params: %w", err)
	}

	id := atomic.AddInt64(&c.nextID, 1)
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Method:  "tool/invoke",
		Params:  params,
	})
	if err != nil {
		return "", fmt.Errorf("encode json-rpc request: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := writeFramed(c.stdin, payload); err != nil {
		return "", c.decorate(err)
	}

	type readResult struct {
		body []byte
		err  error
	}

	for {
		resultCh := make(chan readResult, 1)
		go func() {
			body, err := readFramed(c.reader)
			resultCh <- readResult{body: body, err: err}
		}()

		var body []byte
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res := <-resultCh:
			if res.err != nil {
				return "", c.decorate(res.err)
			}
			body = res.body
		}

		var resp rpcResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("decode json-rpc response: %w", err)
		}
		if resp.ID == nil || *resp.ID != id {
			continue
		}
		if resp.Error != nil {
			return "", resp.Error
		}
		return resultText(resp.Result), nil
	}
}

// Close terminates the server subprocess.
func (c *client) Close() error {
	_ = c.stdin.Close()
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	return nil
}

func (c *client) exitError() error {
	c.exitMu.RLock()
	defer c.exitMu.RUnlock()
	if !c.exited {
		return nil
	}
	if c.exitErr == nil {
		return fmt.Errorf("tool server %q exited", c.serverName)
	}
	return fmt.Errorf("tool server %q exited: %w", c.serverName, c.exitErr)
}

func (c *client) decorate(err error) error {
	if err == nil {
		return nil
	}
	if tail := strings.TrimSpace(c.stderr.String()); tail != "" {
		return fmt.Errorf("%w; stderr=%s", err, tail)
	}
	return err
}

func writeFramed(w io.Writer, payload []byte) error {
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(payload))
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

func readFramed(reader *bufio.Reader) ([]byte, error) {
	contentLength := -1
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read frame header: %w", err)
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			break
		}
		key, value, found := strings.Cut(trimmed, ":")
		if !found || !strings.EqualFold(strings.TrimSpace(key), "Content-Length") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid content-length header %q", trimmed)
		}
		contentLength = n
	}
	if contentLength <= 0 {
		return nil, fmt.Errorf("missing content-length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(reader, body); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return body, nil
}

func mergeEnv(extra map[string]string) []string {
	base := os.Environ()
	if len(extra) == 0 {
		return base
	}
	merged := make([]string, 0, len(base)+len(extra))
	merged = append(merged, base...)
	for key, value := range extra {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		merged = append(merged, key+"="+value)
	}
	return merged
}

type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	if max <= 0 {
		max = 1024
	}
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = append([]byte(nil), b.buf[len(b.buf)-b.max:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
