package policy

import (
	"fmt"
	"strings"

	"steward/internal/action"
)

// Parse normalizes a user-supplied policy name.
func Parse(raw string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(Suggest):
		return Suggest, nil
	case string(AutoEdit), "autoedit", "auto_edit":
		return AutoEdit, nil
	case string(FullAuto), "fullauto", "full_auto":
		return FullAuto, nil
	default:
		return "", fmt.Errorf("unknown approval policy %q (want suggest, auto-edit, or full-auto)", raw)
	}
}

// Decide maps (policy, tier, session overrides) to a verdict. It is a total,
// deterministic function with no side effects.
//
//	policy    read-only  file-write  shell-exec  tool-unknown
//	suggest   auto       ask         ask         ask
//	auto-edit auto       auto        ask         ask
//	full-auto auto       auto        auto        ask
//
// A session-always denial beats everything except the read-only floor.
// A session-always approval converts ask to auto for tiers it covers, but
// never covers the unknown-tool tier.
func Decide(p Policy, tier action.RiskTier, overrides *Overrides) Verdict {
	if tier == action.TierReadOnly {
		return AutoApprove
	}
	if overrides.denies(tier) {
		return Deny
	}

	// Unknown tools always prompt regardless of policy: trust for a tool
	// comes from registration, not from the approval mode.
	if tier == action.TierToolUnknown {
		return AskUser
	}

	base := AskUser
	switch p {
	case Suggest:
		// Only read-only auto-approves, handled above.
	case AutoEdit:
		if tier <= action.TierFileWrite {
			base = AutoApprove
		}
	case FullAuto:
		if tier <= action.TierShellExec {
			base = AutoApprove
		}
	default:
		return AskUser
	}

	if base == AskUser && overrides.approves(tier) {
		return AutoApprove
	}
	return base
}
