package command

import (
	"context"
	"fmt"
)

// CompactCommand implements /compact: force a history compaction pass.
type CompactCommand struct{}

func (c *CompactCommand) Name() string        { return "compact" }
func (c *CompactCommand) Description() string { return "Compact older history into a summary" }

func (c *CompactCommand) Execute(ctx context.Context, _ string, env Env) Result {
	if env.Engine == nil {
		return Result{Content: "No active session."}
	}
	rec, ok, err := env.Engine.Compact(ctx)
	if err != nil {
		return Result{Content: fmt.Sprintf("Compaction failed: %v", err)}
	}
	if !ok {
		return Result{Content: "Nothing to compact."}
	}
	return Result{Content: fmt.Sprintf("Compacted entries %d-%d:\n\n%s", rec.FromSeq, rec.ToSeq, rec.Summary)}
}
