package classify

import (
	"path/filepath"
	"testing"

	"steward/internal/action"
	"steward/internal/sandbox"
)

func newTestClassifier(t *testing.T, trusted map[string]action.RiskTier) (Classifier, string) {
	t.Helper()
	workspace := t.TempDir()
	al, err := sandbox.New(workspace)
	if err != nil {
		t.Fatalf("sandbox.New error: %v", err)
	}
	return New(al, trusted), workspace
}

func TestClassify_ShellExecIsAlwaysShellTier(t *testing.T) {
	c, _ := newTestClassifier(t, nil)

	for _, cmd := range []string{"ls", "rm -rf /", "true && echo hi"} {
		p := action.Proposed{Kind: action.KindShellExec, Command: cmd}
		if got := c.Classify(p); got != action.TierShellExec {
			t.Fatalf("command %q: expected %s, got %s", cmd, action.TierShellExec, got)
		}
	}
}

func TestClassify_FileWriteInsideAllowlist(t *testing.T) {
	c, workspace := newTestClassifier(t, nil)

	p := action.Proposed{
		Kind: action.KindFileWrite,
		Path: filepath.Join(workspace, "main.go"),
	}
	if got := c.Classify(p); got != action.TierFileWrite {
		t.Fatalf("expected %s, got %s", action.TierFileWrite, got)
	}
}

func TestClassify_FileWriteEscapeReclassifiedToShellTier(t *testing.T) {
	c, workspace := newTestClassifier(t, nil)

	p := action.Proposed{
		Kind: action.KindFileWrite,
		Path: filepath.Join(workspace, "..", "..", "etc", "passwd"),
	}
	if got := c.Classify(p); got != action.TierShellExec {
		t.Fatalf("expected escape to classify as %s, got %s", action.TierShellExec, got)
	}
}

func TestClassify_FilePatchMixedTargetsUseWorstCase(t *testing.T) {
	c, workspace := newTestClassifier(t, nil)

	p := action.Proposed{
		Kind: action.KindFilePatch,
		TargetPaths: []string{
			filepath.Join(workspace, "ok.txt"),
			"/etc/hosts",
		},
	}
	if got := c.Classify(p); got != action.TierShellExec {
		t.Fatalf("expected mixed targets to classify as %s, got %s", action.TierShellExec, got)
	}
}

func TestClassify_UnknownToolIsToolUnknownTier(t *testing.T) {
	c, _ := newTestClassifier(t, map[string]action.RiskTier{"linter": action.TierReadOnly})

	p := action.Proposed{Kind: action.KindToolInvoke, Tool: "deployer"}
	if got := c.Classify(p); got != action.TierToolUnknown {
		t.Fatalf("expected %s, got %s", action.TierToolUnknown, got)
	}
}

func TestClassify_TrustedToolUsesDeclaredTier(t *testing.T) {
	c, _ := newTestClassifier(t, map[string]action.RiskTier{
		"linter":    action.TierReadOnly,
		"Formatter": action.TierFileWrite,
	})

	if got := c.Classify(action.Proposed{Kind: action.KindToolInvoke, Tool: "LINTER"}); got != action.TierReadOnly {
		t.Fatalf("expected trusted read-only tool, got %s", got)
	}
	if got := c.Classify(action.Proposed{Kind: action.KindToolInvoke, Tool: "formatter"}); got != action.TierFileWrite {
		t.Fatalf("expected trusted file-write tool, got %s", got)
	}
}

func TestClassify_IsDeterministic(t *testing.T) {
	c, workspace := newTestClassifier(t, nil)

	p := action.Proposed{
		Kind: action.KindFileWrite,
		Path: filepath.Join(workspace, "a", "b.txt"),
	}
	first := c.Classify(p)
	second := c.Classify(p)
	if first != second {
		t.Fatalf("classification not deterministic: %s then %s", first, second)
	}
}

func TestClassify_TrustedToolMatchedByServerOfDottedName(t *testing.T) {
	c, _ := newTestClassifier(t, map[string]action.RiskTier{
		"search": action.TierReadOnly,
		"fmt":    action.TierFileWrite,
	})

	if got := c.Classify(action.Proposed{Kind: action.KindToolInvoke, Tool: "search.query"}); got != action.TierReadOnly {
		t.Fatalf("expected trusted server tier for search.query, got %s", got)
	}
	if got := c.Classify(action.Proposed{Kind: action.KindToolInvoke, Tool: "fmt.rewrite"}); got != action.TierFileWrite {
		t.Fatalf("expected trusted server tier for fmt.rewrite, got %s", got)
	}
	if got := c.Classify(action.Proposed{Kind: action.KindToolInvoke, Tool: "deploy.push"}); got != action.TierToolUnknown {
		t.Fatalf("expected unknown server to stay %s, got %s", action.TierToolUnknown, got)
	}
}

func TestEscapes_OnlyForEscapingFileMutations(t *testing.T) {
	c, workspace := newTestClassifier(t, nil)

	inside := action.Proposed{Kind: action.KindFileWrite, Path: filepath.Join(workspace, "ok.txt")}
	if c.Escapes(inside) {
		t.Error("write inside the allowlist must not count as an escape")
	}

	outside := action.Proposed{Kind: action.KindFilePatch, Path: "/etc/hosts"}
	if !c.Escapes(outside) {
		t.Error("patch outside the allowlist must count as an escape")
	}

	shell := action.Proposed{Kind: action.KindShellExec, Command: "rm -rf /"}
	if c.Escapes(shell) {
		t.Error("shell commands are not escapes; they carry the shell tier directly")
	}
}
