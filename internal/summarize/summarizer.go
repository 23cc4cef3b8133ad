package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"steward/internal/action"
	"steward/internal/history"
)

const systemPrompt = `You condense the action log of a coding assistant session.
Given a numbered list of actions with their approval decisions and outcomes,
write a short prose summary that preserves: which files were created or
modified, which commands ran and whether they succeeded, what was denied and
why, and any failures or timeouts. Keep it under 200 words. Output only the
summary.`

// ModelSummarizer condenses history entries with a chat model, falling back
// to a deterministic digest when no model is configured or the call fails.
type ModelSummarizer struct {
	model model.ChatModel
}

func NewModelSummarizer(chatModel model.ChatModel) *ModelSummarizer {
	return &ModelSummarizer{model: chatModel}
}

func (s *ModelSummarizer) Summarize(ctx context.Context, entries []history.Entry) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("nothing to summarize")
	}
	if s.model == nil {
		return Digest(entries), nil
	}

	messages := []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: transcript(entries)},
	}

	resp, err := s.model.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("summarize history: %w", err)
	}
	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return Digest(entries), nil
	}
	return summary, nil
}

// transcript renders entries as the numbered list the prompt expects.
func transcript(entries []history.Entry) string {
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("%d. %s", e.Seq, describe(e.Action)))
		if !e.Decision.Approved {
			sb.WriteString(" [denied")
			if reason := strings.TrimSpace(e.Decision.Reason); reason != "" {
				sb.WriteString(": " + reason)
			}
			sb.WriteString("]")
		}
		if e.Outcome.Status != "" {
			sb.WriteString(" -> " + string(e.Outcome.Status))
			if e.Outcome.Status == action.StatusFailed && e.Outcome.Detail != "" {
				sb.WriteString(" (" + firstLine(e.Outcome.Detail) + ")")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func describe(a action.Proposed) string {
	switch a.Kind {
	case action.KindShellExec:
		return "shell: " + firstLine(a.Command)
	case action.KindFileWrite:
		return "write: " + a.Path
	case action.KindFilePatch:
		return "patch: " + a.Path
	case action.KindToolInvoke:
		return "tool: " + a.Tool
	default:
		return string(a.Kind)
	}
}

// Digest is the model-free fallback: a compact count-based synopsis that
// still names every touched path.
func Digest(entries []history.Entry) string {
	counts := map[action.Status]int{}
	denied := 0
	paths := make([]string, 0, 8)
	seen := map[string]bool{}

	for _, e := range entries {
		if !e.Decision.Approved {
			denied++
			continue
		}
		counts[e.Outcome.Status]++
		for _, p := range touchedPaths(e.Action) {
			if p != "" && !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d actions", len(entries))
	if n := counts[action.StatusSuccess]; n > 0 {
		fmt.Fprintf(&sb, ", %d succeeded", n)
	}
	if n := counts[action.StatusFailed]; n > 0 {
		fmt.Fprintf(&sb, ", %d failed", n)
	}
	if n := counts[action.StatusTimedOut]; n > 0 {
		fmt.Fprintf(&sb, ", %d timed out", n)
	}
	if denied > 0 {
		fmt.Fprintf(&sb, ", %d denied", denied)
	}
	sb.WriteString(".")
	if len(paths) > 0 {
		sb.WriteString(" Touched: " + strings.Join(paths, ", ") + ".")
	}
	return sb.String()
}

func touchedPaths(a action.Proposed) []string {
	if len(a.TargetPaths) > 0 {
		return a.TargetPaths
	}
	if a.Path != "" {
		return []string{a.Path}
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}
