package toolrpc

import (
	"encoding/json"
	"fmt"

	"steward/internal/action"
)

const jsonRPCVersion = "2.0"

// ServerSpec describes one registered external tool server. Only trusted
// servers let their tools classify below the unknown tier; everything else
// prompts regardless of policy.
type ServerSpec struct {
	Name           string
	Command        string
	Args           []string
	Env            map[string]string
	Trusted        bool
	Tier           string // declared tier for trusted tools: read-only or file-write
	TimeoutSeconds int
}

// DeclaredTier maps the configured tier string onto a risk tier, defaulting to
// read-only for trusted tools without a declaration.
func (s ServerSpec) DeclaredTier() action.RiskTier {
	switch s.Tier {
	case "file-write":
		return action.TierFileWrite
	case "shell-exec":
		return action.TierShellExec
	default:
		return action.TierReadOnly
	}
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("tool server error %d: %s", e.Code, e.Message)
}

type invokeParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// resultText renders a JSON-RPC result payload as tool output text.
func resultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
