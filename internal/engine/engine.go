package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"steward/internal/action"
	"steward/internal/classify"
	"steward/internal/compact"
	"steward/internal/executor"
	"steward/internal/history"
	"steward/internal/metrics"
	"steward/internal/policy"
	"steward/internal/prompt"
)

var (
	// ErrQueueFull is returned by Submit when the action queue is saturated.
	ErrQueueFull = errors.New("action queue full")
	// ErrHalted is returned once a history write failure has stopped the
	// session. No further actions execute until a new session starts.
	ErrHalted = errors.New("session halted after history write failure")
)

const defaultQueueSize = 16

// Result is what the submitter gets back for one proposed action.
type Result struct {
	Seq      int64
	Tier     action.RiskTier
	Decision action.Decision
	Outcome  action.Outcome
	Err      error
}

type request struct {
	action action.Proposed
	done   chan Result
}

// Hooks let the conversation loop react to session-level changes made
// through slash commands.
type Hooks struct {
	PolicyChanged  func(policy.Policy)
	SessionCleared func(oldID, newID string)
}

// Options configures an Engine.
type Options struct {
	QueueSize int
	Policy    policy.Policy
	Hooks     Hooks
	Metrics   *metrics.RuntimeMetrics
}

// Engine mediates every side-effecting action: classify, decide, prompt if
// needed, execute, and durably record. One goroutine (Run) owns the pipeline;
// actions are processed strictly in submission order.
type Engine struct {
	classifier classify.Classifier
	prompter   prompt.Prompter
	exec       *executor.Executor
	store      *history.Store
	compactor  *compact.Compactor
	metrics    *metrics.RuntimeMetrics
	hooks      Hooks

	queue   chan *request
	control chan func(ctx context.Context)

	// Session trust state. Written only from the Run goroutine; the mutex
	// exists so Snapshot can read concurrently.
	sessMu    sync.Mutex
	policy    policy.Policy
	overrides policy.Overrides

	halted atomic.Bool

	// Cancel for whatever the loop is currently blocked on (a prompt or an
	// execution). Interrupt fires it from any goroutine.
	intMu     sync.Mutex
	intCancel context.CancelFunc
}

func New(classifier classify.Classifier, prompter prompt.Prompter, exec *executor.Executor, store *history.Store, compactor *compact.Compactor, opts Options) *Engine {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	pol := opts.Policy
	if pol == "" {
		pol = policy.Default
	}
	return &Engine{
		classifier: classifier,
		prompter:   prompter,
		exec:       exec,
		store:      store,
		compactor:  compactor,
		metrics:    opts.Metrics,
		hooks:      opts.Hooks,
		queue:      make(chan *request, opts.QueueSize),
		control:    make(chan func(ctx context.Context)),
		policy:     pol,
	}
}

// Submit queues a proposed action and returns a channel that yields its
// Result. It never blocks on execution; a full queue fails fast.
func (e *Engine) Submit(p action.Proposed) (<-chan Result, error) {
	if e.halted.Load() {
		return nil, ErrHalted
	}
	req := &request{action: p, done: make(chan Result, 1)}
	select {
	case e.queue <- req:
		return req.done, nil
	default:
		return nil, ErrQueueFull
	}
}

// Run processes queued actions and control operations until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			e.drain(ctx.Err())
			return ctx.Err()
		case fn := <-e.control:
			fn(ctx)
		case req := <-e.queue:
			req.done <- e.process(ctx, req.action)
		}
	}
}

// drain fails every queued request so no submitter hangs after shutdown.
func (e *Engine) drain(cause error) {
	for {
		select {
		case req := <-e.queue:
			req.done <- Result{Err: cause}
		default:
			return
		}
	}
}

func (e *Engine) process(ctx context.Context, p action.Proposed) Result {
	if e.halted.Load() {
		return Result{Err: ErrHalted}
	}

	p.Seq = e.store.NextSeq()
	tier := e.classifier.Classify(p)

	e.sessMu.Lock()
	pol := e.policy
	verdict := policy.Decide(pol, tier, &e.overrides)
	e.sessMu.Unlock()

	// A file mutation whose target escapes the allowlist carries the shell
	// tier but always prompts: neither full-auto nor a session grant covers
	// an attempted containment breach.
	if verdict == policy.AutoApprove && e.classifier.Escapes(p) {
		verdict = policy.AskUser
	}

	var dec action.Decision
	switch verdict {
	case policy.AutoApprove:
		dec = action.Decision{Approved: true, Scope: action.ScopeOnce, Auto: true}
	case policy.Deny:
		dec = action.Decision{Approved: false, Scope: action.ScopeOnce, Auto: true, Reason: "tier denied for this session"}
	default:
		dec = e.ask(ctx, p, tier)
	}

	if _, err := e.metrics.RecordPrompt(dec); err != nil {
		slog.Warn("metrics persist failed", "error", err)
	}

	var out action.Outcome
	if dec.Approved {
		out = e.runInterruptible(ctx, p)
	} else {
		out = action.Outcome{Seq: p.Seq, Status: action.StatusDenied, Detail: dec.Reason}
	}

	if _, err := e.metrics.RecordAction(out); err != nil {
		slog.Warn("metrics persist failed", "error", err)
	}

	seq, err := e.store.Append(p, dec, out)
	if err != nil {
		e.halted.Store(true)
		slog.Error("history append failed, halting session", "error", err)
		return Result{Seq: p.Seq, Tier: tier, Decision: dec, Outcome: out, Err: fmt.Errorf("%w: %w", ErrHalted, err)}
	}

	slog.Info("action recorded",
		"seq", seq,
		"kind", p.Kind,
		"tier", tier.String(),
		"approved", dec.Approved,
		"auto", dec.Auto,
		"status", out.Status)

	e.maybeCompact(ctx)

	return Result{Seq: seq, Tier: tier, Decision: dec, Outcome: out}
}

// ask prompts the user, applying any session-wide scope the answer carries.
func (e *Engine) ask(ctx context.Context, p action.Proposed, tier action.RiskTier) action.Decision {
	pctx, cancel := context.WithCancel(ctx)
	e.armInterrupt(cancel)
	dec, err := e.prompter.RequestApproval(pctx, p, tier)
	e.disarmInterrupt()
	cancel()

	if err != nil {
		return action.Decision{Approved: false, Scope: action.ScopeOnce, Reason: "approval prompt failed: " + err.Error()}
	}

	e.sessMu.Lock()
	switch {
	case dec.Approved && dec.Scope == action.ScopeSessionTier:
		e.overrides.ApproveThrough(tier)
	case !dec.Approved && dec.Scope == action.ScopeSessionDeny:
		e.overrides.DenyTier(tier)
	}
	e.sessMu.Unlock()

	return dec
}

func (e *Engine) runInterruptible(ctx context.Context, p action.Proposed) action.Outcome {
	ectx, cancel := context.WithCancel(ctx)
	e.armInterrupt(cancel)
	out := e.exec.Execute(ectx, p)
	e.disarmInterrupt()
	cancel()
	return out
}

func (e *Engine) maybeCompact(ctx context.Context) {
	if e.compactor == nil || !e.compactor.Needed(len(e.store.LiveEntries())) {
		return
	}
	rec, ok, err := e.compactor.Run(ctx, e.store, false)
	if err != nil {
		if errors.Is(err, history.ErrStoreWrite) {
			e.halted.Store(true)
			slog.Error("compaction write failed, halting session", "error", err)
			return
		}
		slog.Warn("compaction skipped", "error", err)
		return
	}
	if ok {
		slog.Info("history compacted", "from_seq", rec.FromSeq, "to_seq", rec.ToSeq)
	}
}

// Interrupt cancels whatever the pipeline is blocked on. An outstanding
// prompt resolves as not approved; an in-flight execution is stopped and its
// outcome recorded as usual.
func (e *Engine) Interrupt() {
	e.intMu.Lock()
	cancel := e.intCancel
	e.intMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (e *Engine) armInterrupt(cancel context.CancelFunc) {
	e.intMu.Lock()
	e.intCancel = cancel
	e.intMu.Unlock()
}

func (e *Engine) disarmInterrupt() {
	e.intMu.Lock()
	e.intCancel = nil
	e.intMu.Unlock()
}

// SetPolicy switches the active approval policy. The change is handled by
// the pipeline goroutine, so it takes effect between actions, never in the
// middle of one.
func (e *Engine) SetPolicy(ctx context.Context, pol policy.Policy) error {
	err := e.inLoop(ctx, func(context.Context) {
		e.sessMu.Lock()
		e.policy = pol
		e.sessMu.Unlock()
		slog.Info("approval policy changed", "policy", string(pol))
	})
	if err != nil {
		return err
	}
	if e.hooks.PolicyChanged != nil {
		e.hooks.PolicyChanged(pol)
	}
	return nil
}

// ClearSession starts a fresh session: new history file, overrides reset,
// a halted engine becomes usable again. Returns the new session id.
func (e *Engine) ClearSession(ctx context.Context) (string, error) {
	var newID string
	var clearErr error
	oldID := e.store.SessionID()
	err := e.inLoop(ctx, func(context.Context) {
		newID, clearErr = e.store.Clear()
		if clearErr != nil {
			return
		}
		e.sessMu.Lock()
		e.overrides.Reset()
		e.sessMu.Unlock()
		e.halted.Store(false)
	})
	if err != nil {
		return "", err
	}
	if clearErr != nil {
		return "", clearErr
	}
	if e.hooks.SessionCleared != nil {
		e.hooks.SessionCleared(oldID, newID)
	}
	slog.Info("session cleared", "old_session", oldID, "new_session", newID)
	return newID, nil
}

// Compact forces a compaction pass regardless of the threshold.
func (e *Engine) Compact(ctx context.Context) (history.Compaction, bool, error) {
	if e.compactor == nil {
		return history.Compaction{}, false, nil
	}
	var rec history.Compaction
	var ok bool
	var runErr error
	err := e.inLoop(ctx, func(loopCtx context.Context) {
		rec, ok, runErr = e.compactor.Run(loopCtx, e.store, true)
		if runErr != nil && errors.Is(runErr, history.ErrStoreWrite) {
			e.halted.Store(true)
		}
	})
	if err != nil {
		return history.Compaction{}, false, err
	}
	return rec, ok, runErr
}

// inLoop runs fn on the pipeline goroutine and waits for it.
func (e *Engine) inLoop(ctx context.Context, fn func(ctx context.Context)) error {
	done := make(chan struct{})
	wrapped := func(loopCtx context.Context) {
		fn(loopCtx)
		close(done)
	}
	select {
	case e.control <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot is the session state surfaced by /status.
type Snapshot struct {
	SessionID   string
	Policy      policy.Policy
	Overrides   policy.Overrides
	Halted      bool
	LiveEntries int
}

func (e *Engine) Snapshot() Snapshot {
	e.sessMu.Lock()
	pol := e.policy
	ov := e.overrides
	if ov.DeniedTiers != nil {
		denied := make(map[action.RiskTier]bool, len(ov.DeniedTiers))
		for k, v := range ov.DeniedTiers {
			denied[k] = v
		}
		ov.DeniedTiers = denied
	}
	e.sessMu.Unlock()

	return Snapshot{
		SessionID:   e.store.SessionID(),
		Policy:      pol,
		Overrides:   ov,
		Halted:      e.halted.Load(),
		LiveEntries: len(e.store.LiveEntries()),
	}
}

// Store exposes the session history for read-only views.
func (e *Engine) Store() *history.Store {
	return e.store
}

// Policy returns the active approval policy.
func (e *Engine) Policy() policy.Policy {
	e.sessMu.Lock()
	defer e.sessMu.Unlock()
	return e.policy
}
