package policy

import "steward/internal/action"

// Policy is the session-wide trust setting governing which risk tiers execute
// without prompting.
type Policy string

const (
	// Suggest auto-approves only read-only actions.
	Suggest Policy = "suggest"
	// AutoEdit additionally auto-approves in-allowlist file mutations.
	AutoEdit Policy = "auto-edit"
	// FullAuto additionally auto-approves shell commands. Unknown tools still
	// prompt: the trusted-tool registry, not the policy, is that gate.
	FullAuto Policy = "full-auto"
)

// Default is the policy a fresh session starts under.
const Default = Suggest

// Verdict is the outcome of a policy decision for one action.
type Verdict string

const (
	AutoApprove Verdict = "auto_approve"
	AskUser     Verdict = "ask_user"
	Deny        Verdict = "deny"
)

// Overrides are the session-scoped decisions a user made with
// session-wide scope. They belong to the session and reset when it clears.
type Overrides struct {
	// ApproveUpTo holds the highest tier the user approved for the rest of
	// the session, when set.
	ApproveUpTo    action.RiskTier
	HasApproveUpTo bool

	// DeniedTiers are tiers explicitly rejected for the rest of the session.
	DeniedTiers map[action.RiskTier]bool
}

// ApproveThrough records a session-always approval covering tier and
// everything below it.
func (o *Overrides) ApproveThrough(tier action.RiskTier) {
	if !o.HasApproveUpTo || tier > o.ApproveUpTo {
		o.ApproveUpTo = tier
		o.HasApproveUpTo = true
	}
}

// DenyTier records a session-wide rejection of tier.
func (o *Overrides) DenyTier(tier action.RiskTier) {
	if o.DeniedTiers == nil {
		o.DeniedTiers = make(map[action.RiskTier]bool)
	}
	o.DeniedTiers[tier] = true
}

// Reset clears all session overrides.
func (o *Overrides) Reset() {
	o.ApproveUpTo = 0
	o.HasApproveUpTo = false
	o.DeniedTiers = nil
}

func (o *Overrides) approves(tier action.RiskTier) bool {
	return o != nil && o.HasApproveUpTo && tier <= o.ApproveUpTo
}

func (o *Overrides) denies(tier action.RiskTier) bool {
	return o != nil && o.DeniedTiers[tier]
}
