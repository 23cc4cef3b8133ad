package compact

import (
	"context"
	"fmt"

	"steward/internal/history"
)

// Summarizer turns a block of history entries into summary text. The core
// decides when and what range to compact; how the summary reads is the
// conversation loop's business.
type Summarizer interface {
	Summarize(ctx context.Context, entries []history.Entry) (string, error)
}

// Plan is a locked compaction range, chosen but not yet committed.
type Plan struct {
	FromSeq int64
	ToSeq   int64
	Entries []history.Entry
}

// Compactor selects compaction ranges and commits summaries. Compaction
// triggers when the live entry count exceeds the threshold, or on explicit
// request; the newest entry is never compacted.
type Compactor struct {
	threshold  int
	summarizer Summarizer
}

// New creates a compactor. threshold is the live-entry count above which
// automatic compaction kicks in (also the retention window size).
func New(threshold int, summarizer Summarizer) *Compactor {
	if threshold < 1 {
		threshold = 1
	}
	return &Compactor{threshold: threshold, summarizer: summarizer}
}

// Needed reports whether the live entry count calls for automatic compaction.
func (c *Compactor) Needed(liveCount int) bool {
	return liveCount > c.threshold
}

// PlanRange picks the oldest contiguous block of live entries to summarize.
// Automatic compaction keeps the newest threshold entries; a forced request
// on a shorter history still compacts everything but the newest entry. The
// second return is false when there is nothing to compact.
func (c *Compactor) PlanRange(live []history.Entry, force bool) (Plan, bool) {
	if len(live) < 2 {
		return Plan{}, false
	}

	keep := c.threshold
	if !force && len(live) <= keep {
		return Plan{}, false
	}
	if force && len(live) <= keep {
		keep = 1
	}

	cut := len(live) - keep
	if cut < 1 {
		return Plan{}, false
	}

	// The range must be contiguous in sequence numbers; stop at the first gap
	// (a gap only appears if earlier records were lost to corruption).
	end := 1
	for end < cut && live[end].Seq == live[end-1].Seq+1 {
		end++
	}
	block := live[:end]

	return Plan{
		FromSeq: block[0].Seq,
		ToSeq:   block[len(block)-1].Seq,
		Entries: block,
	}, true
}

// Run performs the two-phase compaction against the store: plan the range,
// delegate summarization, then commit the record. Returns false when no
// compaction was needed.
func (c *Compactor) Run(ctx context.Context, store *history.Store, force bool) (history.Compaction, bool, error) {
	plan, ok := c.PlanRange(store.LiveEntries(), force)
	if !ok {
		return history.Compaction{}, false, nil
	}

	summary, err := c.summarizer.Summarize(ctx, plan.Entries)
	if err != nil {
		return history.Compaction{}, false, fmt.Errorf("summarize range [%d, %d]: %w", plan.FromSeq, plan.ToSeq, err)
	}

	record := history.Compaction{FromSeq: plan.FromSeq, ToSeq: plan.ToSeq, Summary: summary}
	if err := store.AppendCompaction(record); err != nil {
		return history.Compaction{}, false, fmt.Errorf("commit compaction: %w", err)
	}
	return record, true, nil
}
