package action

import "time"

// Kind identifies the side effect a proposed action would perform.
type Kind string

const (
	KindShellExec  Kind = "shell_exec"
	KindFileWrite  Kind = "file_write"
	KindFilePatch  Kind = "file_patch"
	KindToolInvoke Kind = "tool_invoke"
)

// RiskTier is an ordered classification of an action's potential for harm.
// Higher values gate on stricter approval.
type RiskTier int

const (
	TierReadOnly RiskTier = iota
	TierFileWrite
	TierShellExec
	TierToolUnknown
)

// String returns the string representation of a RiskTier.
func (t RiskTier) String() string {
	switch t {
	case TierReadOnly:
		return "read-only"
	case TierFileWrite:
		return "file-write"
	case TierShellExec:
		return "shell-exec"
	case TierToolUnknown:
		return "tool-unknown"
	default:
		return "unknown"
	}
}

// Proposed is a side-effecting operation suggested by the model, not yet
// executed. Immutable once created; produced only by the conversation loop.
type Proposed struct {
	Seq       int64  `json:"seq"`
	Kind      Kind   `json:"kind"`
	RequestID string `json:"request_id,omitempty"`

	// Shell payload.
	Command    string `json:"command,omitempty"`
	WorkingDir string `json:"working_dir,omitempty"`

	// File payload. Diff is set for KindFilePatch, Content for KindFileWrite.
	Path    string `json:"path,omitempty"`
	Content string `json:"content,omitempty"`
	Diff    string `json:"diff,omitempty"`

	// Tool payload.
	Tool     string `json:"tool,omitempty"`
	ToolArgs string `json:"tool_args,omitempty"`

	// TargetPaths are the filesystem paths the action declares it will touch.
	// Empty for actions that only read.
	TargetPaths []string `json:"target_paths,omitempty"`
}

// Status is the terminal state of an executed (or refused) action.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusDenied   Status = "denied"
	StatusTimedOut Status = "timed_out"
)

// Outcome records what happened when an action was executed or refused.
// Immutable once recorded.
type Outcome struct {
	Seq      int64         `json:"seq"`
	Status   Status        `json:"status"`
	Stdout   string        `json:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
	ExitCode int           `json:"exit_code"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration"`

	// SandboxViolation distinguishes containment refusals from user denials
	// in the persisted log.
	SandboxViolation bool `json:"sandbox_violation,omitempty"`
}

// DecisionScope controls how long an approval decision stays in force.
type DecisionScope string

const (
	// ScopeOnce applies to the single action that was prompted.
	ScopeOnce DecisionScope = "once"
	// ScopeSessionTier approves every future action at or below the prompted
	// tier for the rest of the session.
	ScopeSessionTier DecisionScope = "session_tier"
	// ScopeSessionDeny rejects the prompted tier for the rest of the session.
	ScopeSessionDeny DecisionScope = "session_deny"
)

// Decision is the resolution of an approval prompt (or of the policy engine
// when no prompt was needed).
type Decision struct {
	Approved bool          `json:"approved"`
	Scope    DecisionScope `json:"scope"`
	Reason   string        `json:"reason,omitempty"`
	Auto     bool          `json:"auto,omitempty"`
}
