package prompt

import (
	"context"

	"steward/internal/action"
)

// Prompter presents one pending action to the user and returns a decision.
// The engine serializes calls: two prompts are never outstanding concurrently
// for the same session. Cancellation (user interrupt, ctx done) surfaces as a
// non-approved decision, not an error.
type Prompter interface {
	RequestApproval(ctx context.Context, p action.Proposed, tier action.RiskTier) (action.Decision, error)
}
