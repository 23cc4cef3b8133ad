package render

import (
	"fmt"
	"strings"
	"time"

	"steward/internal/action"
)

const previewMaxLines = 10

// ActionPreview renders the substance of a proposed action for display in a
// prompt or transcript: the command, the diff, the content to be written, or
// the tool arguments, truncated to a sane number of lines.
func ActionPreview(p action.Proposed) string {
	switch p.Kind {
	case action.KindShellExec:
		return TruncateLines(p.Command, previewMaxLines)
	case action.KindFileWrite:
		return TruncateLines(p.Content, previewMaxLines)
	case action.KindFilePatch:
		return TruncateLines(p.Diff, previewMaxLines)
	case action.KindToolInvoke:
		return TruncateLines(p.ToolArgs, previewMaxLines)
	default:
		return ""
	}
}

// OutcomeSummary is a one-line account of an outcome for chat output.
func OutcomeSummary(o action.Outcome) string {
	switch o.Status {
	case action.StatusSuccess:
		if s := strings.TrimSpace(o.Stdout); s != "" {
			return "ok: " + firstLine(s)
		}
		return "ok"
	case action.StatusDenied:
		if o.Detail != "" {
			return "denied: " + firstLine(o.Detail)
		}
		return "denied"
	case action.StatusTimedOut:
		return fmt.Sprintf("timed out after %s", o.Duration.Round(time.Millisecond))
	default:
		reason := o.Detail
		if reason == "" {
			reason = strings.TrimSpace(o.Stderr)
		}
		if o.ExitCode != 0 {
			return fmt.Sprintf("failed (exit %d): %s", o.ExitCode, firstLine(reason))
		}
		return "failed: " + firstLine(reason)
	}
}

// TruncateLines keeps the first max lines, marking elision with the count of
// lines dropped.
func TruncateLines(s string, max int) string {
	s = strings.TrimRight(s, "\n")
	lines := strings.Split(s, "\n")
	if len(lines) <= max {
		return s
	}
	kept := strings.Join(lines[:max], "\n")
	return fmt.Sprintf("%s\n... (%d more lines)", kept, len(lines)-max)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
