package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"steward/internal/action"
	"steward/internal/engine"
	"steward/internal/render"
	"steward/internal/sandbox"
)

const defaultMaxIterations = 20

// Loop is the conversation loop: it talks to the model, turns tool calls
// into proposed actions, and folds the mediated outcomes back into the
// conversation. It never executes anything itself.
type Loop struct {
	model         model.ChatModel
	engine        *engine.Engine
	readonly      map[string]tool.InvokableTool
	maxIterations int
	workspacePath string

	mu       sync.Mutex
	messages []*schema.Message

	OnActionStart func(p action.Proposed)
	OnActionDone  func(p action.Proposed, res engine.Result)
}

// NewLoop creates a conversation loop bound to the mediation engine.
func NewLoop(chatModel model.ChatModel, eng *engine.Engine, allowlist *sandbox.Allowlist, maxIterations int) (*Loop, error) {
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	readonly := make(map[string]tool.InvokableTool)
	for _, build := range []func(*sandbox.Allowlist) (tool.InvokableTool, error){
		NewReadFileTool,
		NewListDirTool,
	} {
		t, err := build(allowlist)
		if err != nil {
			return nil, err
		}
		info, err := t.Info(context.Background())
		if err != nil {
			return nil, err
		}
		readonly[info.Name] = t
	}

	return &Loop{
		model:         chatModel,
		engine:        eng,
		readonly:      readonly,
		maxIterations: maxIterations,
		workspacePath: allowlist.Primary(),
	}, nil
}

// BindTools registers the action vocabulary and read-only tools with the model.
func (l *Loop) BindTools(ctx context.Context) error {
	if l.model == nil {
		return nil
	}

	infos := mediatedToolInfos()
	for _, t := range l.readonly {
		info, err := t.Info(ctx)
		if err != nil {
			return err
		}
		infos = append(infos, info)
	}

	if binder, ok := l.model.(interface {
		BindTools([]*schema.ToolInfo) error
	}); ok {
		return binder.BindTools(infos)
	}
	return nil
}

// Reset drops the in-memory conversation. Session history is unaffected.
func (l *Loop) Reset() {
	l.mu.Lock()
	l.messages = nil
	l.mu.Unlock()
}

func (l *Loop) systemPrompt() string {
	return fmt.Sprintf(`You are Steward, a coding assistant living in the user's terminal.
Your workspace is %s. Use the tools to inspect and change it: read_file and
list_dir are free; shell, write_file, apply_patch, and invoke_tool go through
the user's approval policy, and a denial is an answer, not an obstacle to
route around. Be precise and keep explanations short.`, l.workspacePath)
}

// Process runs one conversation turn and returns the assistant's reply.
func (l *Loop) Process(ctx context.Context, userText string) (string, error) {
	if l.model == nil {
		return "", fmt.Errorf("no model configured")
	}

	requestID := uuid.NewString()

	l.mu.Lock()
	messages := make([]*schema.Message, 0, len(l.messages)+2)
	messages = append(messages, &schema.Message{Role: schema.System, Content: l.systemPrompt()})
	messages = append(messages, l.messages...)
	messages = append(messages, &schema.Message{Role: schema.User, Content: userText})
	l.mu.Unlock()

	var finalContent string

	for i := 0; i < l.maxIterations; i++ {
		resp, err := l.model.Generate(ctx, messages)
		if err != nil {
			return "", err
		}

		if resp.Content != "" {
			finalContent = resp.Content
		}
		if len(resp.ToolCalls) == 0 {
			break
		}

		messages = append(messages, resp)

		// Tool calls run one at a time. Actions must reach the pipeline in
		// the order the model asked for them.
		for _, tc := range resp.ToolCalls {
			result := l.handleToolCall(ctx, tc, requestID)
			messages = append(messages, &schema.Message{
				Role:       schema.Tool,
				Content:    result,
				ToolCallID: tc.ID,
			})
		}
	}

	if finalContent == "" {
		finalContent = "Done."
	}

	l.mu.Lock()
	l.messages = append(l.messages,
		&schema.Message{Role: schema.User, Content: userText},
		&schema.Message{Role: schema.Assistant, Content: finalContent},
	)
	l.mu.Unlock()

	return finalContent, nil
}

func (l *Loop) handleToolCall(ctx context.Context, tc schema.ToolCall, requestID string) string {
	name := tc.Function.Name
	start := time.Now()

	if !isMediated(name) {
		t, ok := l.readonly[name]
		if !ok {
			return fmt.Sprintf("Error: unknown tool %q", name)
		}
		out, err := t.InvokableRun(ctx, tc.Function.Arguments)
		slog.Debug("read-only tool finished", "tool", name, "duration", time.Since(start).String(), "success", err == nil)
		if err != nil {
			return "Error: " + err.Error()
		}
		return out
	}

	proposed, err := parseProposed(tc, requestID)
	if err != nil {
		return "Error: " + err.Error()
	}

	if l.OnActionStart != nil {
		l.OnActionStart(proposed)
	}

	done, err := l.engine.Submit(proposed)
	if err != nil {
		return "Error: " + err.Error()
	}
	res := <-done
	if res.Err != nil {
		return "Error: " + res.Err.Error()
	}

	if l.OnActionDone != nil {
		l.OnActionDone(proposed, res)
	}

	return outcomeMessage(res.Outcome)
}

// outcomeMessage renders an outcome for the model: a status line plus the
// command output when there is any.
func outcomeMessage(o action.Outcome) string {
	var sb strings.Builder
	sb.WriteString(render.OutcomeSummary(o))
	if out := strings.TrimSpace(o.Stdout); out != "" {
		sb.WriteString("\n\nstdout:\n")
		sb.WriteString(render.TruncateLines(out, 50))
	}
	if errOut := strings.TrimSpace(o.Stderr); errOut != "" {
		sb.WriteString("\n\nstderr:\n")
		sb.WriteString(render.TruncateLines(errOut, 20))
	}
	return sb.String()
}
