package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"steward/internal/config"
	"steward/internal/metrics"
	"steward/internal/state"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show Steward configuration status",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	workspacePath, err := cfg.WorkspacePathChecked()
	if err != nil {
		return fmt.Errorf("invalid workspace: %w", err)
	}

	fmt.Println("=== Steward Status ===")
	fmt.Println()

	fmt.Printf("Config: %s\n", config.ConfigPath())
	if _, err := os.Stat(config.ConfigPath()); err == nil {
		fmt.Println("  Status: OK")
	} else {
		fmt.Println("  Status: Not found (run 'steward init')")
	}

	fmt.Printf("\nWorkspace: %s\n", workspacePath)
	fmt.Printf("  Mode: %s\n", cfg.Sandbox.WorkspaceMode)
	if len(cfg.Sandbox.AdditionalWritable) > 0 {
		fmt.Println("  Additional writable:")
		for _, p := range cfg.Sandbox.AdditionalWritable {
			fmt.Printf("    - %s\n", p)
		}
	}

	fmt.Printf("\nModel: %s\n", cfg.Agent.Model)

	fmt.Println("\nProviders:")
	providers := []struct {
		name string
		key  string
	}{
		{"OpenRouter", cfg.Providers.OpenRouter.APIKey},
		{"Claude", cfg.Providers.Claude.APIKey},
		{"OpenAI", cfg.Providers.OpenAI.APIKey},
		{"DeepSeek", cfg.Providers.DeepSeek.APIKey},
		{"Ollama", cfg.Providers.Ollama.BaseURL},
	}
	for _, p := range providers {
		status := "Not configured"
		if p.key != "" {
			status = "Configured"
		}
		fmt.Printf("  %s: %s\n", p.name, status)
	}

	fmt.Printf("\nApproval policy: %s\n", cfg.Approval.Policy)
	fmt.Printf("Exec timeout: %ds (kill grace %ds)\n", cfg.Exec.TimeoutSeconds, cfg.Exec.KillGraceSeconds)
	fmt.Printf("Compaction threshold: %d entries\n", cfg.History.CompactThreshold)

	fmt.Println("\nTool servers:")
	if len(cfg.Tools) == 0 {
		fmt.Println("  (none registered)")
	}
	for _, srv := range cfg.Tools {
		trust := "untrusted"
		if srv.Trusted {
			trust = "trusted"
			if srv.Tier != "" {
				trust += " (" + srv.Tier + ")"
			}
		}
		fmt.Printf("  %s: %s, %s\n", srv.Name, srv.Command, trust)
	}

	st, err := state.NewManager(config.StateDir()).LoadEngineState()
	if err == nil && st.LastSessionID != "" {
		fmt.Printf("\nLast session: %s", st.LastSessionID)
		if st.Policy != "" {
			fmt.Printf(" (policy %s)", st.Policy)
		}
		fmt.Println()
	}

	if snap, err := metrics.ReadRuntimeSnapshot(config.StateDir()); err == nil && snap.HasData() {
		fmt.Println("\nRuntime metrics:")
		fmt.Printf("  Actions: %d total, %d failed, %d timed out, %d denied\n",
			snap.Actions.Total, snap.Actions.Failures, snap.Actions.Timeouts, snap.Actions.Denials)
		fmt.Printf("  Prompts: %d asked, %d approved, %d auto-approved\n",
			snap.Prompts.Asked, snap.Prompts.Approved, snap.Prompts.AutoApproved)
		fmt.Printf("  Latency: avg %.0fms, max %dms\n", snap.Actions.AvgLatencyMs(), snap.Actions.MaxLatencyMs)
	}

	return nil
}
