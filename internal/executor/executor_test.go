package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"steward/internal/action"
	"steward/internal/sandbox"
)

func newTestExecutor(t *testing.T, opts Options) (*Executor, string) {
	t.Helper()
	workspace := t.TempDir()
	al, err := sandbox.New(workspace)
	if err != nil {
		t.Fatalf("sandbox.New error: %v", err)
	}
	return New(al, opts), workspace
}

func TestExecute_ShellCapturesOutputAndExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test script uses sh")
	}
	e, _ := newTestExecutor(t, Options{})

	out := e.Execute(context.Background(), action.Proposed{
		Kind:    action.KindShellExec,
		Command: "echo hello && echo oops >&2",
	})

	if out.Status != action.StatusSuccess {
		t.Fatalf("expected success, got %s (%s)", out.Status, out.Detail)
	}
	if strings.TrimSpace(out.Stdout) != "hello" {
		t.Fatalf("unexpected stdout: %q", out.Stdout)
	}
	if strings.TrimSpace(out.Stderr) != "oops" {
		t.Fatalf("unexpected stderr: %q", out.Stderr)
	}
}

func TestExecute_ShellNonZeroExitIsFailedNotTimedOut(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test script uses sh")
	}
	e, _ := newTestExecutor(t, Options{})

	out := e.Execute(context.Background(), action.Proposed{
		Kind:    action.KindShellExec,
		Command: "exit 3",
	})

	if out.Status != action.StatusFailed {
		t.Fatalf("expected failed, got %s", out.Status)
	}
	if out.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", out.ExitCode)
	}
}

func TestExecute_ShellTimeoutIsTimedOut(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test script uses sh")
	}
	e, _ := newTestExecutor(t, Options{
		ShellTimeout: 100 * time.Millisecond,
		KillGrace:    100 * time.Millisecond,
	})

	start := time.Now()
	out := e.Execute(context.Background(), action.Proposed{
		Kind:    action.KindShellExec,
		Command: "sleep 10",
	})

	if out.Status != action.StatusTimedOut {
		t.Fatalf("expected timed out, got %s", out.Status)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout took too long: %s", elapsed)
	}
}

func TestExecute_ShellInterruptRecordsCancellation(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test script uses sh")
	}
	e, _ := newTestExecutor(t, Options{KillGrace: 100 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	out := e.Execute(ctx, action.Proposed{
		Kind:    action.KindShellExec,
		Command: "sleep 10",
	})

	if out.Status != action.StatusFailed {
		t.Fatalf("expected failed on interrupt, got %s", out.Status)
	}
	if !strings.Contains(out.Detail, "cancelled") {
		t.Fatalf("expected cancellation detail, got %q", out.Detail)
	}
}

func TestExecute_ShellWorkingDirEscapeIsSandboxViolation(t *testing.T) {
	e, _ := newTestExecutor(t, Options{})

	out := e.Execute(context.Background(), action.Proposed{
		Kind:       action.KindShellExec,
		Command:    "ls",
		WorkingDir: "/etc",
	})

	if out.Status != action.StatusFailed || !out.SandboxViolation {
		t.Fatalf("expected sandbox violation, got %+v", out)
	}
}

func TestExecute_DangerousCommandRefused(t *testing.T) {
	e, _ := newTestExecutor(t, Options{})

	out := e.Execute(context.Background(), action.Proposed{
		Kind:    action.KindShellExec,
		Command: "rm -rf /",
	})

	if out.Status != action.StatusFailed {
		t.Fatalf("expected refusal, got %s", out.Status)
	}
	if !strings.Contains(out.Stderr, "refused dangerous command") {
		t.Fatalf("expected refusal message, got %q", out.Stderr)
	}
}

func TestExecute_FileWriteIsAtomicAndContained(t *testing.T) {
	e, workspace := newTestExecutor(t, Options{})
	target := filepath.Join(workspace, "pkg", "main.go")

	out := e.Execute(context.Background(), action.Proposed{
		Kind:    action.KindFileWrite,
		Path:    target,
		Content: "package main\n",
	})

	if out.Status != action.StatusSuccess {
		t.Fatalf("expected success, got %s (%s)", out.Status, out.Detail)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if string(data) != "package main\n" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestExecute_FileWriteEscapeRefusedEvenIfApproved(t *testing.T) {
	e, workspace := newTestExecutor(t, Options{})

	out := e.Execute(context.Background(), action.Proposed{
		Kind:    action.KindFileWrite,
		Path:    filepath.Join(workspace, "..", "..", "etc", "passwd"),
		Content: "nope",
	})

	if out.Status != action.StatusFailed || !out.SandboxViolation {
		t.Fatalf("expected sandbox violation, got %+v", out)
	}
}

func TestExecute_FilePatchAppliesCleanly(t *testing.T) {
	e, workspace := newTestExecutor(t, Options{})
	target := filepath.Join(workspace, "greeting.txt")
	if err := os.WriteFile(target, []byte("hello world\n"), 0644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	diff := MakePatch("hello world\n", "hello steward\n")
	out := e.Execute(context.Background(), action.Proposed{
		Kind: action.KindFilePatch,
		Path: target,
		Diff: diff,
	})

	if out.Status != action.StatusSuccess {
		t.Fatalf("expected success, got %s (%s)", out.Status, out.Detail)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if string(data) != "hello steward\n" {
		t.Fatalf("unexpected content after patch: %q", data)
	}
}

func TestExecute_FilePatchUncleanLeavesTargetUntouched(t *testing.T) {
	e, workspace := newTestExecutor(t, Options{})
	target := filepath.Join(workspace, "greeting.txt")
	original := "completely different content\n"
	if err := os.WriteFile(target, []byte(original), 0644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	// A patch built against unrelated text goes through fuzzy matching; use
	// garbage patch text to force a parse failure instead.
	out := e.Execute(context.Background(), action.Proposed{
		Kind: action.KindFilePatch,
		Path: target,
		Diff: "not a patch",
	})

	if out.Status != action.StatusFailed {
		t.Fatalf("expected failure, got %s", out.Status)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if string(data) != original {
		t.Fatalf("expected target untouched, got %q", data)
	}
}

type fakeTransport struct {
	result string
	err    error
}

func (f *fakeTransport) Invoke(ctx context.Context, tool, argsJSON string) (string, error) {
	return f.result, f.err
}

func TestExecute_ToolInvokeForwardsToTransport(t *testing.T) {
	e, _ := newTestExecutor(t, Options{Tools: &fakeTransport{result: "42 issues"}})

	out := e.Execute(context.Background(), action.Proposed{
		Kind: action.KindToolInvoke,
		Tool: "linter",
	})

	if out.Status != action.StatusSuccess || out.Stdout != "42 issues" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestExecute_ToolTimeoutIsTimedOut(t *testing.T) {
	e, _ := newTestExecutor(t, Options{Tools: &fakeTransport{err: context.DeadlineExceeded}})

	out := e.Execute(context.Background(), action.Proposed{
		Kind: action.KindToolInvoke,
		Tool: "slowpoke",
	})

	if out.Status != action.StatusTimedOut {
		t.Fatalf("expected timed out, got %s", out.Status)
	}
}

func TestExecute_ToolTransportErrorIsFailed(t *testing.T) {
	e, _ := newTestExecutor(t, Options{Tools: &fakeTransport{err: fmt.Errorf("connection refused")}})

	out := e.Execute(context.Background(), action.Proposed{
		Kind: action.KindToolInvoke,
		Tool: "linter",
	})

	if out.Status != action.StatusFailed {
		t.Fatalf("expected failed, got %s", out.Status)
	}
}
