package command

import (
	"context"
	"fmt"
	"strings"

	"steward/internal/policy"
)

// ApprovalCommand implements /approval: show or switch the approval policy.
type ApprovalCommand struct{}

func (c *ApprovalCommand) Name() string        { return "approval" }
func (c *ApprovalCommand) Description() string { return "Show or set the approval policy" }

func (c *ApprovalCommand) Execute(ctx context.Context, args string, env Env) Result {
	if env.Engine == nil {
		return Result{Content: "No active session."}
	}

	if strings.TrimSpace(args) == "" {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Approval policy: **%s**\n\n", env.Engine.Policy()))
		sb.WriteString("- `suggest` - every mutation asks first\n")
		sb.WriteString("- `auto-edit` - workspace file edits run, shell asks\n")
		sb.WriteString("- `full-auto` - shell runs too; unknown tools still ask\n")
		return Result{Content: sb.String()}
	}

	pol, err := policy.Parse(args)
	if err != nil {
		return Result{Content: err.Error()}
	}
	if err := env.Engine.SetPolicy(ctx, pol); err != nil {
		return Result{Content: fmt.Sprintf("Policy change failed: %v", err)}
	}
	return Result{Content: fmt.Sprintf("Approval policy set to **%s**.", pol)}
}
