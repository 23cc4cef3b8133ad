package prompt

import (
	"context"
	"sync"

	"steward/internal/action"
)

// Scripted replays canned decisions in order. It exists for tests and for
// non-interactive runs that pre-authorize a fixed decision.
type Scripted struct {
	mu        sync.Mutex
	decisions []action.Decision
	next      int

	// Asked records every prompted action, in order.
	Asked []action.Proposed
}

func NewScripted(decisions ...action.Decision) *Scripted {
	return &Scripted{decisions: decisions}
}

// RequestApproval returns the next scripted decision. Once the script is
// exhausted every further prompt is refused. Context cancellation also
// refuses, matching the interactive prompter.
func (s *Scripted) RequestApproval(ctx context.Context, p action.Proposed, tier action.RiskTier) (action.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Asked = append(s.Asked, p)

	if ctx.Err() != nil {
		return action.Decision{Approved: false, Scope: action.ScopeOnce, Reason: "cancelled"}, nil
	}
	if s.next >= len(s.decisions) {
		return action.Decision{Approved: false, Scope: action.ScopeOnce, Reason: "no decision scripted"}, nil
	}
	d := s.decisions[s.next]
	s.next++
	return d, nil
}
