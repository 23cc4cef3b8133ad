package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"steward/internal/action"
	"steward/internal/sandbox"
)

// ToolTransport forwards an invocation to an external registered tool and
// waits for a single structured result or error. Implementations own the
// per-tool timeout.
type ToolTransport interface {
	Invoke(ctx context.Context, tool, argsJSON string) (string, error)
}

// Options configure an Executor.
type Options struct {
	ShellTimeout time.Duration
	KillGrace    time.Duration
	Tools        ToolTransport
}

// Executor runs approved actions inside the writable-path allowlist. It is a
// stateless service: it retains nothing about an action beyond the call, and
// approval never bypasses path containment.
type Executor struct {
	allowlist    *sandbox.Allowlist
	shellTimeout time.Duration
	killGrace    time.Duration
	tools        ToolTransport
}

// New creates an executor bounded by the given allowlist.
func New(allowlist *sandbox.Allowlist, opts Options) *Executor {
	if opts.ShellTimeout <= 0 {
		opts.ShellTimeout = 60 * time.Second
	}
	if opts.KillGrace <= 0 {
		opts.KillGrace = 3 * time.Second
	}
	return &Executor{
		allowlist:    allowlist,
		shellTimeout: opts.ShellTimeout,
		killGrace:    opts.KillGrace,
		tools:        opts.Tools,
	}
}

// Execute performs one approved action and returns its outcome. Side effects
// are real and not reversible here; the history log is the audit trail.
func (e *Executor) Execute(ctx context.Context, p action.Proposed) action.Outcome {
	start := time.Now()
	var out action.Outcome
	switch p.Kind {
	case action.KindShellExec:
		out = e.runShell(ctx, p)
	case action.KindFileWrite:
		out = e.writeFile(p)
	case action.KindFilePatch:
		out = e.applyPatch(p)
	case action.KindToolInvoke:
		out = e.invokeTool(ctx, p)
	default:
		out = action.Outcome{
			Status: action.StatusFailed,
			Detail: fmt.Sprintf("unsupported action kind %q", p.Kind),
		}
	}
	out.Seq = p.Seq
	out.Duration = time.Since(start)
	return out
}

func (e *Executor) writeFile(p action.Proposed) action.Outcome {
	target, violation := e.resolveTarget(p.Path)
	if violation != nil {
		return *violation
	}

	if err := writeFileAtomic(target, []byte(p.Content)); err != nil {
		return action.Outcome{Status: action.StatusFailed, Detail: err.Error()}
	}
	return action.Outcome{
		Status: action.StatusSuccess,
		Detail: fmt.Sprintf("wrote %d bytes to %s", len(p.Content), target),
	}
}

func (e *Executor) applyPatch(p action.Proposed) action.Outcome {
	target, violation := e.resolveTarget(p.Path)
	if violation != nil {
		return *violation
	}

	result, err := applyUnifiedPatch(target, p.Diff)
	if err != nil {
		return action.Outcome{Status: action.StatusFailed, Detail: err.Error()}
	}
	return action.Outcome{Status: action.StatusSuccess, Detail: result}
}

func (e *Executor) invokeTool(ctx context.Context, p action.Proposed) action.Outcome {
	if e.tools == nil {
		return action.Outcome{
			Status: action.StatusFailed,
			Detail: "no tool transport configured",
		}
	}

	result, err := e.tools.Invoke(ctx, p.Tool, p.ToolArgs)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return action.Outcome{
				Status: action.StatusTimedOut,
				Detail: fmt.Sprintf("tool %s timed out", p.Tool),
			}
		}
		return action.Outcome{Status: action.StatusFailed, Detail: err.Error()}
	}
	return action.Outcome{Status: action.StatusSuccess, Stdout: result}
}

// resolveTarget canonicalizes a file target and refuses escapes. Containment
// refusals are marked distinctly from user denials so audits can tell them
// apart.
func (e *Executor) resolveTarget(path string) (string, *action.Outcome) {
	if strings.TrimSpace(path) == "" {
		return "", &action.Outcome{Status: action.StatusFailed, Detail: "target path is required"}
	}
	resolved, err := e.allowlist.Resolve(path)
	if err != nil || !e.allowlist.Contains(path) {
		detail := fmt.Sprintf("target %q resolves outside the writable allowlist", path)
		if err != nil {
			detail = fmt.Sprintf("target %q could not be resolved: %v", path, err)
		}
		return "", &action.Outcome{
			Status:           action.StatusFailed,
			Detail:           detail,
			SandboxViolation: true,
		}
	}
	return resolved, nil
}

func statusFromExit(exitCode int) action.Status {
	if exitCode == 0 {
		return action.StatusSuccess
	}
	return action.StatusFailed
}
