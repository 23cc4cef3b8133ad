package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/components/model"

	"steward/internal/agent"
	"steward/internal/classify"
	"steward/internal/command"
	"steward/internal/compact"
	"steward/internal/config"
	"steward/internal/engine"
	"steward/internal/executor"
	"steward/internal/history"
	"steward/internal/metrics"
	"steward/internal/policy"
	"steward/internal/prompt"
	"steward/internal/provider"
	"steward/internal/sandbox"
	"steward/internal/state"
	"steward/internal/summarize"
	"steward/internal/toolrpc"
	"steward/internal/version"
)

// runtime wires the full mediation stack for the chat and run commands:
// sandbox, classifier, executor, history store, engine, conversation loop.
type runtime struct {
	cfg       *config.Config
	workspace string
	model     model.ChatModel
	engine    *engine.Engine
	loop      *agent.Loop
	registry  *command.Registry
	metrics   *metrics.RuntimeMetrics
	tools     *toolrpc.Manager
	store     *history.Store
	states    *state.Manager

	cancelRun context.CancelFunc
}

func buildRuntime(ctx context.Context, cfg *config.Config, prompter prompt.Prompter) (*runtime, error) {
	workspace, err := cfg.WorkspacePathChecked()
	if err != nil {
		return nil, fmt.Errorf("invalid workspace: %w", err)
	}

	allowlist, err := sandbox.New(workspace, cfg.Sandbox.AdditionalWritable...)
	if err != nil {
		return nil, fmt.Errorf("sandbox: %w", err)
	}

	states := state.NewManager(config.StateDir())
	st, err := states.LoadEngineState()
	if err != nil {
		slog.Warn("engine state unreadable, starting fresh", "error", err)
	}

	store, err := openStore(cfg, st.LastSessionID)
	if err != nil {
		return nil, fmt.Errorf("history store: %w", err)
	}

	toolMgr := toolrpc.NewManager(toolSpecs(cfg.Tools))
	classifier := classify.New(allowlist, toolMgr.Trusted())

	chatModel, err := provider.NewChatModel(ctx, cfg)
	if err != nil {
		slog.Warn("no model configured", "error", err)
		chatModel = nil
	}

	exec := executor.New(allowlist, executor.Options{
		ShellTimeout: time.Duration(cfg.Exec.TimeoutSeconds) * time.Second,
		KillGrace:    time.Duration(cfg.Exec.KillGraceSeconds) * time.Second,
		Tools:        toolMgr,
	})
	compactor := compact.New(cfg.History.CompactThreshold, summarize.NewModelSummarizer(chatModel))

	rt := &runtime{
		cfg:       cfg,
		workspace: workspace,
		model:     chatModel,
		metrics:   metrics.NewRuntimeMetrics(config.StateDir()),
		tools:     toolMgr,
		store:     store,
		states:    states,
	}

	hooks := engine.Hooks{
		PolicyChanged:  func(policy.Policy) { rt.persistState() },
		SessionCleared: func(oldID, newID string) { rt.persistState() },
	}

	rt.engine = engine.New(classifier, prompter, exec, store, compactor, engine.Options{
		Policy:  startupPolicy(cfg, st),
		Hooks:   hooks,
		Metrics: rt.metrics,
	})

	runCtx, cancel := context.WithCancel(context.Background())
	rt.cancelRun = cancel
	go func() {
		if err := rt.engine.Run(runCtx); err != nil && runCtx.Err() == nil {
			slog.Error("engine stopped", "error", err)
		}
	}()

	loop, err := agent.NewLoop(chatModel, rt.engine, allowlist, cfg.Agent.MaxToolIterations)
	if err != nil {
		cancel()
		return nil, err
	}
	if chatModel != nil {
		if err := loop.BindTools(ctx); err != nil {
			cancel()
			return nil, fmt.Errorf("bind tools: %w", err)
		}
	}
	rt.loop = loop
	rt.registry = command.DefaultRegistry()

	rt.persistState()
	return rt, nil
}

func (rt *runtime) env() command.Env {
	return command.Env{
		Engine:            rt.engine,
		Metrics:           rt.metrics,
		WorkspacePath:     rt.workspace,
		StateDir:          config.StateDir(),
		ModelName:         rt.cfg.Agent.Model,
		Version:           version.Version,
		ClearConversation: rt.loop.Reset,
		ListCommands:      rt.registry.List,
	}
}

func (rt *runtime) persistState() {
	snap := rt.engine.Snapshot()
	err := rt.states.SaveEngineState(state.EngineState{
		LastSessionID: snap.SessionID,
		Policy:        string(snap.Policy),
	})
	if err != nil {
		slog.Warn("failed to persist engine state", "error", err)
	}
}

func (rt *runtime) Close() {
	rt.cancelRun()
	if err := rt.tools.Close(); err != nil {
		slog.Warn("tool manager close", "error", err)
	}
	if err := rt.store.Close(); err != nil {
		slog.Warn("history store close", "error", err)
	}
}

// openStore resumes the previous session when one is recorded, otherwise
// starts a new one.
func openStore(cfg *config.Config, lastSessionID string) (*history.Store, error) {
	if lastSessionID != "" {
		store, err := history.Resume(cfg.HistoryDir(), lastSessionID)
		if err == nil {
			return store, nil
		}
		slog.Warn("could not resume session, starting new", "session", lastSessionID, "error", err)
	}
	return history.New(cfg.HistoryDir())
}

func startupPolicy(cfg *config.Config, st state.EngineState) policy.Policy {
	if st.Policy != "" {
		if pol, err := policy.Parse(st.Policy); err == nil {
			return pol
		}
	}
	if pol, err := policy.Parse(cfg.Approval.Policy); err == nil {
		return pol
	}
	return policy.Default
}

func toolSpecs(servers []config.ToolServer) []toolrpc.ServerSpec {
	specs := make([]toolrpc.ServerSpec, 0, len(servers))
	for _, s := range servers {
		specs = append(specs, toolrpc.ServerSpec{
			Name:           s.Name,
			Command:        s.Command,
			Args:           s.Args,
			Env:            s.Env,
			Trusted:        s.Trusted,
			Tier:           s.Tier,
			TimeoutSeconds: s.TimeoutSeconds,
		})
	}
	return specs
}
