package executor

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"time"

	"steward/internal/action"
)

// dangerousPatterns match commands refused before execution regardless of
// approval. This is a last-resort screen, not a safety parser: everything
// else still goes through the shell tier.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\brm\s+(-[a-z]*r[a-z]*\s+-[a-z]*f[a-z]*|-[a-z]*f[a-z]*\s+-[a-z]*r[a-z]*|-[a-z]*rf[a-z]*|-[a-z]*fr[a-z]*)\s+/\s*$`),
	regexp.MustCompile(`(?i)\brm\s+(-[a-z]*r[a-z]*\s+-[a-z]*f[a-z]*|-[a-z]*f[a-z]*\s+-[a-z]*r[a-z]*|-[a-z]*rf[a-z]*|-[a-z]*fr[a-z]*)\s+~`),
	regexp.MustCompile(`(?i)--no-preserve-root`),
	regexp.MustCompile(`(?i)\bmkfs\b`),
	regexp.MustCompile(`(?i)\bdd\s+if=`),
	regexp.MustCompile(`:\(\)\s*\{.*\|.*&\s*\}\s*;`),
	regexp.MustCompile(`(?i)\bformat\s+[a-z]:`),
}

func isDangerous(cmd string) (bool, string) {
	for _, pat := range dangerousPatterns {
		if pat.MatchString(cmd) {
			return true, pat.String()
		}
	}
	return false, ""
}

// runShell spawns the command in its own process group, captures output, and
// enforces the configured timeout. On expiry the group gets a termination
// signal, then a kill after the grace period, and the outcome is TimedOut;
// distinct from a command that exits non-zero on its own.
func (e *Executor) runShell(ctx context.Context, p action.Proposed) action.Outcome {
	if dangerous, pattern := isDangerous(p.Command); dangerous {
		return action.Outcome{
			Status:   action.StatusFailed,
			Stderr:   fmt.Sprintf("refused dangerous command matching pattern: %s", pattern),
			ExitCode: 1,
		}
	}

	workDir := e.allowlist.Primary()
	if strings.TrimSpace(p.WorkingDir) != "" {
		resolved, err := e.allowlist.Resolve(p.WorkingDir)
		if err != nil || !e.allowlist.Contains(p.WorkingDir) {
			return action.Outcome{
				Status:           action.StatusFailed,
				Detail:           fmt.Sprintf("working directory %q resolves outside the writable allowlist", p.WorkingDir),
				SandboxViolation: true,
				ExitCode:         1,
			}
		}
		workDir = resolved
	}

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.Command("cmd", "/C", p.Command)
	} else {
		cmd = exec.Command("sh", "-c", p.Command)
	}
	cmd.Dir = workDir

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return action.Outcome{
			Status:   action.StatusFailed,
			Stderr:   err.Error(),
			ExitCode: 1,
		}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(e.shellTimeout)
	defer timer.Stop()

	var waitErr error
	status := action.StatusSuccess

	// stop signals the group, escalates to a hard kill after the grace
	// period, and returns the final wait error.
	stop := func() error {
		terminateProcessGroup(cmd)
		select {
		case err := <-done:
			return err
		case <-time.After(e.killGrace):
			killProcessGroup(cmd)
			return <-done
		}
	}

	select {
	case waitErr = <-done:
	case <-timer.C:
		waitErr = stop()
		status = action.StatusTimedOut
	case <-ctx.Done():
		waitErr = stop()
		return action.Outcome{
			Status:   action.StatusFailed,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Detail:   "cancelled by interrupt",
			ExitCode: exitCodeOf(waitErr),
		}
	}

	exitCode := exitCodeOf(waitErr)
	if status == action.StatusTimedOut {
		return action.Outcome{
			Status:   action.StatusTimedOut,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Detail:   fmt.Sprintf("timed out after %s", e.shellTimeout),
			ExitCode: exitCode,
		}
	}
	if waitErr != nil {
		if _, ok := waitErr.(*exec.ExitError); !ok {
			return action.Outcome{
				Status:   action.StatusFailed,
				Stderr:   waitErr.Error(),
				ExitCode: 1,
			}
		}
	}

	return action.Outcome{
		Status:   statusFromExit(exitCode),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}
}

func exitCodeOf(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return 1
}
