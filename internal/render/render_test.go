package render

import (
	"strings"
	"testing"
	"time"

	"steward/internal/action"
)

func TestSplitThinkWithBlock(t *testing.T) {
	think, response, found := SplitThink("<think>weigh the options</think>Do it.")
	if !found {
		t.Fatal("expected found")
	}
	if think != "weigh the options" {
		t.Errorf("think = %q", think)
	}
	if response != "Do it." {
		t.Errorf("response = %q", response)
	}
}

func TestSplitThinkThinkingVariant(t *testing.T) {
	think, response, found := SplitThink("<thinking>hm</thinking>answer")
	if !found || think != "hm" || response != "answer" {
		t.Fatalf("got think=%q response=%q found=%v", think, response, found)
	}
}

func TestSplitThinkUnterminated(t *testing.T) {
	think, response, found := SplitThink("<think>still going")
	if !found {
		t.Fatal("unterminated block should count as found")
	}
	if think != "still going" {
		t.Errorf("think = %q", think)
	}
	if response != "" {
		t.Errorf("response = %q", response)
	}
}

func TestSplitThinkNoBlock(t *testing.T) {
	input := "plain response"
	think, response, found := SplitThink(input)
	if found || think != "" || response != input {
		t.Fatalf("got think=%q response=%q found=%v", think, response, found)
	}
}

func TestActionPreviewTruncates(t *testing.T) {
	content := strings.Repeat("line\n", 25)
	p := action.Proposed{Kind: action.KindFileWrite, Content: content}
	got := ActionPreview(p)
	if !strings.Contains(got, "(15 more lines)") {
		t.Errorf("missing elision marker: %q", got)
	}
	if strings.Count(got, "\n") != previewMaxLines {
		t.Errorf("kept %d lines", strings.Count(got, "\n"))
	}
}

func TestActionPreviewByKind(t *testing.T) {
	if got := ActionPreview(action.Proposed{Kind: action.KindShellExec, Command: "ls"}); got != "ls" {
		t.Errorf("shell preview = %q", got)
	}
	if got := ActionPreview(action.Proposed{Kind: action.KindFilePatch, Diff: "@@ -1 +1 @@"}); got != "@@ -1 +1 @@" {
		t.Errorf("patch preview = %q", got)
	}
}

func TestOutcomeSummary(t *testing.T) {
	cases := []struct {
		outcome action.Outcome
		want    string
	}{
		{action.Outcome{Status: action.StatusSuccess}, "ok"},
		{action.Outcome{Status: action.StatusSuccess, Stdout: "done\nextra"}, "ok: done"},
		{action.Outcome{Status: action.StatusDenied, Detail: "nope"}, "denied: nope"},
		{action.Outcome{Status: action.StatusFailed, ExitCode: 2, Stderr: "bad flag"}, "failed (exit 2): bad flag"},
		{action.Outcome{Status: action.StatusTimedOut, Duration: 1500 * time.Millisecond}, "timed out after 1.5s"},
	}
	for _, tc := range cases {
		if got := OutcomeSummary(tc.outcome); got != tc.want {
			t.Errorf("OutcomeSummary(%v) = %q, want %q", tc.outcome.Status, got, tc.want)
		}
	}
}
