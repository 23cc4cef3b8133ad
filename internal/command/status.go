package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"steward/internal/metrics"
)

// StatusCommand implements /status: session and runtime status.
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Show session status" }

func (c *StatusCommand) Execute(_ context.Context, _ string, env Env) Result {
	var sb strings.Builder
	sb.WriteString("**Steward Status**\n\n")

	if env.ModelName != "" {
		sb.WriteString(fmt.Sprintf("- **Model:** `%s`\n", env.ModelName))
	}
	sb.WriteString(fmt.Sprintf("- **Workspace:** `%s`\n", env.WorkspacePath))

	if env.Engine != nil {
		snap := env.Engine.Snapshot()
		sb.WriteString(fmt.Sprintf("- **Session:** `%s`\n", snap.SessionID))
		sb.WriteString(fmt.Sprintf("- **Policy:** `%s`\n", snap.Policy))
		if snap.Overrides.HasApproveUpTo {
			sb.WriteString(fmt.Sprintf("- **Session approval:** up to `%s`\n", snap.Overrides.ApproveUpTo))
		}
		if len(snap.Overrides.DeniedTiers) > 0 {
			tiers := make([]string, 0, len(snap.Overrides.DeniedTiers))
			for tier := range snap.Overrides.DeniedTiers {
				tiers = append(tiers, tier.String())
			}
			sb.WriteString(fmt.Sprintf("- **Session denials:** %s\n", strings.Join(tiers, ", ")))
		}
		sb.WriteString(fmt.Sprintf("- **Live entries:** %d\n", snap.LiveEntries))
		if snap.Halted {
			sb.WriteString("- **HALTED:** history writes are failing; /clearhistory to recover\n")
		}
	}

	sb.WriteString("\n**Metrics:**\n\n")
	snap := env.Metrics.Snapshot()
	if !snap.HasData() && env.StateDir != "" {
		snap, _ = metrics.ReadRuntimeSnapshot(env.StateDir)
	}
	if snap.HasData() {
		sb.WriteString(fmt.Sprintf("- Updated: `%s`\n", snap.UpdatedAt.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("- Actions: %d total, fail=%.1f%%, p95=%dms\n",
			snap.Actions.Total,
			snap.Actions.FailureRatio()*100,
			snap.Actions.P95ProxyLatencyMs,
		))
		sb.WriteString(fmt.Sprintf("- Prompts: %d asked, %d approved, %d auto\n",
			snap.Prompts.Asked,
			snap.Prompts.Approved,
			snap.Prompts.AutoApproved,
		))
	} else {
		sb.WriteString("- No data yet\n")
	}

	return Result{Content: sb.String()}
}
