package toolrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"steward/internal/action"
)

const defaultInvokeTimeout = 30 * time.Second

// invoker is the per-server connection surface, split out so tests can
// substitute an in-memory fake for a real subprocess.
type invoker interface {
	Invoke(ctx context.Context, tool string, args json.RawMessage) (string, error)
	Close() error
}

// Manager owns connections to the configured tool servers. Connections are
// established lazily on first use and reused afterwards.
type Manager struct {
	mu      sync.Mutex
	specs   map[string]ServerSpec
	clients map[string]invoker
	connect func(ctx context.Context, spec ServerSpec) (invoker, error)
}

func NewManager(specs []ServerSpec) *Manager {
	m := &Manager{
		specs:   make(map[string]ServerSpec, len(specs)),
		clients: make(map[string]invoker),
		connect: func(ctx context.Context, spec ServerSpec) (invoker, error) {
			return dial(ctx, spec)
		},
	}
	for _, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			continue
		}
		spec.Name = name
		m.specs[name] = spec
	}
	return m
}

// Trusted reports the declared risk tier of every trusted server, keyed by
// server name. Tools on servers absent from this map classify as unknown.
func (m *Manager) Trusted() map[string]action.RiskTier {
	m.mu.Lock()
	defer m.mu.Unlock()

	trusted := make(map[string]action.RiskTier)
	for name, spec := range m.specs {
		if spec.Trusted {
			trusted[name] = spec.DeclaredTier()
		}
	}
	return trusted
}

// Invoke runs a tool on the named server, applying the server's configured
// timeout. Tool names are "server.tool" or a bare server name.
func (m *Manager) Invoke(ctx context.Context, tool string, argsJSON string) (string, error) {
	server, method := splitTool(tool)

	m.mu.Lock()
	spec, ok := m.specs[server]
	if !ok {
		m.mu.Unlock()
		return "", fmt.Errorf("unknown tool server %q", server)
	}
	client, connected := m.clients[server]
	if !connected {
		var err error
		client, err = m.connect(ctx, spec)
		if err != nil {
			m.mu.Unlock()
			return "", fmt.Errorf("connect tool server %q: %w", server, err)
		}
		m.clients[server] = client
		slog.Debug("tool server connected", "server", server)
	}
	m.mu.Unlock()

	timeout := defaultInvokeTimeout
	if spec.TimeoutSeconds > 0 {
		timeout = time.Duration(spec.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var args json.RawMessage
	if strings.TrimSpace(argsJSON) != "" {
		args = json.RawMessage(argsJSON)
	}
	return client.Invoke(ctx, method, args)
}

// Close shuts down every connected server.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, client := range m.clients {
		if err := client.Close(); err != nil {
			slog.Warn("tool server close failed", "server", name, "error", err)
		}
		delete(m.clients, name)
	}
	return nil
}

// splitTool separates "server.tool" into its parts; a bare name addresses a
// server whose tool name matches the server name.
func splitTool(tool string) (server, method string) {
	tool = strings.TrimSpace(tool)
	if server, method, found := strings.Cut(tool, "."); found {
		return server, method
	}
	return tool, tool
}
