package commands

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"steward/internal/action"
	"steward/internal/config"
	"steward/internal/policy"
	"steward/internal/prompt"
	"steward/internal/render"
)

func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <prompt>",
		Short: "Run a single prompt and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runOnce,
	}
	cmd.Flags().String("approval", "", "Approval policy for this run (suggest|auto-edit|full-auto)")
	return cmd
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	rt, err := buildRuntime(ctx, cfg, prompt.NewTerminal())
	if err != nil {
		return err
	}
	defer rt.Close()

	if flagPolicy, _ := cmd.Flags().GetString("approval"); flagPolicy != "" {
		pol, err := policy.Parse(flagPolicy)
		if err != nil {
			return err
		}
		if err := rt.engine.SetPolicy(ctx, pol); err != nil {
			return err
		}
	}

	rt.loop.OnActionStart = func(p action.Proposed) {
		fmt.Println("→ " + render.ActionPreview(p))
	}

	reply, err := rt.loop.Process(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}
