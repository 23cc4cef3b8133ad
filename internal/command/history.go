package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"steward/internal/action"
	"steward/internal/history"
)

const defaultRecentCount = 10

// HistoryCommand implements /history: print the session action log.
type HistoryCommand struct{}

func (c *HistoryCommand) Name() string { return "history" }
func (c *HistoryCommand) Description() string {
	return "Show session history (all|recent [n]|compacted)"
}

func (c *HistoryCommand) Execute(_ context.Context, args string, env Env) Result {
	if env.Engine == nil {
		return Result{Content: "No active session."}
	}
	store := env.Engine.Store()

	view, rest, _ := strings.Cut(strings.TrimSpace(args), " ")
	switch strings.ToLower(view) {
	case "", "recent":
		n := defaultRecentCount
		if v, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil && v > 0 {
			n = v
		}
		entries := store.ViewRecent(n)
		if len(entries) == 0 {
			return Result{Content: "History is empty."}
		}
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Last %d entries:\n\n", len(entries)))
		for _, e := range entries {
			sb.WriteString(formatEntry(e) + "\n")
		}
		return Result{Content: sb.String()}

	case "all":
		entries := store.ViewAll()
		if len(entries) == 0 {
			return Result{Content: "History is empty."}
		}
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("All %d entries (compacted ranges included):\n\n", len(entries)))
		for _, e := range entries {
			sb.WriteString(formatEntry(e) + "\n")
		}
		return Result{Content: sb.String()}

	case "compacted":
		records := store.ViewCompacted()
		if len(records) == 0 {
			return Result{Content: "History is empty."}
		}
		var sb strings.Builder
		sb.WriteString("Compacted view:\n\n")
		for _, rec := range records {
			switch rec.Type {
			case history.RecordCompaction:
				sb.WriteString(fmt.Sprintf("#%d-%d [summary] %s\n", rec.Compaction.FromSeq, rec.Compaction.ToSeq, rec.Compaction.Summary))
			case history.RecordEntry:
				sb.WriteString(formatEntry(*rec.Entry) + "\n")
			}
		}
		return Result{Content: sb.String()}

	default:
		return Result{Content: fmt.Sprintf("Unknown view %q (want all, recent, or compacted).", view)}
	}
}

func formatEntry(e history.Entry) string {
	subject := ""
	switch e.Action.Kind {
	case action.KindShellExec:
		subject = e.Action.Command
	case action.KindFileWrite, action.KindFilePatch:
		subject = e.Action.Path
	case action.KindToolInvoke:
		subject = e.Action.Tool
	}
	if i := strings.IndexByte(subject, '\n'); i >= 0 {
		subject = subject[:i]
	}
	if len(subject) > 80 {
		subject = subject[:80] + "..."
	}

	status := string(e.Outcome.Status)
	if e.Outcome.SandboxViolation {
		status += " (sandbox)"
	}
	return fmt.Sprintf("#%d [%s] %s - %s", e.Seq, e.Action.Kind, status, subject)
}
