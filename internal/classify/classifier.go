package classify

import (
	"strings"

	"steward/internal/action"
	"steward/internal/sandbox"
)

// Classifier labels proposed actions with a risk tier from static rules.
// It is deterministic and performs no side effects: the same action and
// allowlist always produce the same tier.
type Classifier struct {
	allowlist *sandbox.Allowlist
	trusted   map[string]action.RiskTier
}

// New builds a classifier over the session allowlist and the registered
// trusted-tool set. Trusted tool names are matched case-insensitively.
func New(allowlist *sandbox.Allowlist, trusted map[string]action.RiskTier) Classifier {
	normalized := make(map[string]action.RiskTier, len(trusted))
	for name, tier := range trusted {
		key := normalizeToolName(name)
		if key == "" {
			continue
		}
		normalized[key] = tier
	}
	return Classifier{allowlist: allowlist, trusted: normalized}
}

// Classify returns the risk tier for a proposed action.
//
// Shell commands are never parsed for "safety": every KindShellExec lands at
// the shell tier regardless of its content. File mutations whose resolved
// targets all stay inside the allowlist are file-write tier; any escape
// reclassifies the whole action to shell tier, never downgrades it. Tool
// invocations are the unknown tier unless the tool is pre-registered trusted,
// in which case the registration's declared tier applies.
func (c Classifier) Classify(p action.Proposed) action.RiskTier {
	switch p.Kind {
	case action.KindShellExec:
		return action.TierShellExec
	case action.KindFileWrite, action.KindFilePatch:
		if c.Escapes(p) {
			return action.TierShellExec
		}
		return action.TierFileWrite
	case action.KindToolInvoke:
		if tier, ok := c.trusted[normalizeToolName(serverName(p.Tool))]; ok {
			return tier
		}
		return action.TierToolUnknown
	default:
		if len(c.targets(p)) == 0 {
			return action.TierReadOnly
		}
		return action.TierShellExec
	}
}

// Escapes reports whether a file mutation's resolved targets leave the
// allowlist. An escaping mutation keeps the shell tier but must always
// prompt: no approval mode or session grant covers an attempted containment
// breach.
func (c Classifier) Escapes(p action.Proposed) bool {
	switch p.Kind {
	case action.KindFileWrite, action.KindFilePatch:
		return c.allowlist == nil || !c.allowlist.ContainsAll(c.targets(p))
	default:
		return false
	}
}

func (c Classifier) targets(p action.Proposed) []string {
	if len(p.TargetPaths) > 0 {
		return p.TargetPaths
	}
	if strings.TrimSpace(p.Path) != "" {
		return []string{p.Path}
	}
	return nil
}

func normalizeToolName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// serverName strips the tool part of a server.tool invocation name; trust is
// registered per server, not per tool.
func serverName(tool string) string {
	if i := strings.IndexByte(tool, '.'); i >= 0 {
		return tool[:i]
	}
	return tool
}
