package compact

import (
	"context"
	"fmt"
	"testing"

	"steward/internal/action"
	"steward/internal/history"
)

type fakeSummarizer struct {
	calls int
	fail  bool
}

func (f *fakeSummarizer) Summarize(ctx context.Context, entries []history.Entry) (string, error) {
	f.calls++
	if f.fail {
		return "", fmt.Errorf("summarizer unavailable")
	}
	return fmt.Sprintf("%d actions summarized", len(entries)), nil
}

func liveEntries(n int, startSeq int64) []history.Entry {
	out := make([]history.Entry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, history.Entry{Seq: startSeq + int64(i)})
	}
	return out
}

func TestPlanRange_BelowThresholdDoesNothing(t *testing.T) {
	c := New(20, &fakeSummarizer{})

	if _, ok := c.PlanRange(liveEntries(20, 1), false); ok {
		t.Fatalf("expected no plan at threshold")
	}
}

func TestPlanRange_AboveThresholdKeepsRetentionWindow(t *testing.T) {
	c := New(20, &fakeSummarizer{})

	plan, ok := c.PlanRange(liveEntries(50, 1), false)
	if !ok {
		t.Fatalf("expected a plan above threshold")
	}
	if plan.FromSeq != 1 || plan.ToSeq != 30 {
		t.Fatalf("expected range [1, 30], got [%d, %d]", plan.FromSeq, plan.ToSeq)
	}
}

func TestPlanRange_ForcedOnShortHistoryKeepsNewestEntry(t *testing.T) {
	c := New(20, &fakeSummarizer{})

	plan, ok := c.PlanRange(liveEntries(5, 1), true)
	if !ok {
		t.Fatalf("expected forced plan")
	}
	if plan.ToSeq != 4 {
		t.Fatalf("expected newest entry (seq 5) to stay out, got range ending %d", plan.ToSeq)
	}
}

func TestPlanRange_SingleEntryNeverCompacted(t *testing.T) {
	c := New(1, &fakeSummarizer{})

	if _, ok := c.PlanRange(liveEntries(1, 7), true); ok {
		t.Fatalf("expected the only entry to never be compacted")
	}
}

func TestRun_CommitsSummaryToStore(t *testing.T) {
	store, err := history.New(t.TempDir())
	if err != nil {
		t.Fatalf("history.New error: %v", err)
	}
	defer store.Close()

	for i := 0; i < 50; i++ {
		_, err := store.Append(
			action.Proposed{Kind: action.KindShellExec, Command: "ls"},
			action.Decision{Approved: true, Scope: action.ScopeOnce},
			action.Outcome{Status: action.StatusSuccess},
		)
		if err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}

	summarizer := &fakeSummarizer{}
	c := New(20, summarizer)

	record, done, err := c.Run(context.Background(), store, true)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !done {
		t.Fatalf("expected compaction to run")
	}
	if record.FromSeq != 1 || record.ToSeq != 30 {
		t.Fatalf("expected committed range [1, 30], got [%d, %d]", record.FromSeq, record.ToSeq)
	}
	if summarizer.calls != 1 {
		t.Fatalf("expected one summarizer call, got %d", summarizer.calls)
	}

	if got := len(store.LiveEntries()); got != 20 {
		t.Fatalf("expected 20 live entries after compaction, got %d", got)
	}
	all := store.ViewAll()
	if len(all) != 50 || all[len(all)-1].Seq != 50 {
		t.Fatalf("expected view(all) to keep all 50 originals")
	}
}

func TestRun_SummarizerFailureCommitsNothing(t *testing.T) {
	store, err := history.New(t.TempDir())
	if err != nil {
		t.Fatalf("history.New error: %v", err)
	}
	defer store.Close()

	for i := 0; i < 3; i++ {
		_, err := store.Append(
			action.Proposed{Kind: action.KindShellExec, Command: "ls"},
			action.Decision{Approved: true, Scope: action.ScopeOnce},
			action.Outcome{Status: action.StatusSuccess},
		)
		if err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}

	c := New(1, &fakeSummarizer{fail: true})
	if _, _, err := c.Run(context.Background(), store, true); err == nil {
		t.Fatalf("expected error from failing summarizer")
	}
	if got := len(store.ViewCompacted()); got != 3 {
		t.Fatalf("expected no compaction committed, got %d display records", got)
	}
}
