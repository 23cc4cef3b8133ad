package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"steward/internal/config"
	"steward/internal/policy"
	"steward/internal/state"
)

func NewApprovalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approval",
		Short: "Manage the startup approval policy",
	}

	cmd.AddCommand(
		newApprovalShowCmd(),
		newApprovalSetCmd(),
	)

	return cmd
}

func newApprovalShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the configured approval policy",
		RunE:  runApprovalShow,
	}
}

func newApprovalSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "set <policy>",
		Short:     "Set the startup approval policy",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(policy.Suggest), string(policy.AutoEdit), string(policy.FullAuto)},
		RunE:      runApprovalSet,
	}
}

func runApprovalShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Printf("Configured policy: %s\n", cfg.Approval.Policy)

	st, err := state.NewManager(config.StateDir()).LoadEngineState()
	if err == nil && st.Policy != "" && st.Policy != cfg.Approval.Policy {
		fmt.Printf("Last session policy: %s\n", st.Policy)
	}

	fmt.Println("\nPolicies:")
	for _, p := range []policy.Policy{policy.Suggest, policy.AutoEdit, policy.FullAuto} {
		marker := "  "
		if string(p) == cfg.Approval.Policy {
			marker = "* "
		}
		fmt.Printf("%s%-10s %s\n", marker, p, policyHint(p))
	}
	return nil
}

func runApprovalSet(cmd *cobra.Command, args []string) error {
	pol, err := policy.Parse(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Approval.Policy = string(pol)
	if err := config.Save(cfg); err != nil {
		return err
	}

	fmt.Printf("Approval policy set to %s\n", pol)
	return nil
}

func policyHint(p policy.Policy) string {
	switch p {
	case policy.AutoEdit:
		return "file edits run unprompted, shell commands ask"
	case policy.FullAuto:
		return "known actions run unprompted, unknown tools still ask"
	default:
		return "every side effect asks first"
	}
}
