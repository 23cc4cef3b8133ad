package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"steward/internal/config"
	"steward/internal/history"
	"steward/internal/render"
	"steward/internal/state"
)

func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the recorded action history",
		RunE:  runHistory,
	}
	cmd.Flags().String("session", "", "Session id (default: last session)")
	cmd.Flags().Bool("all", false, "Include entries hidden by compaction")
	cmd.Flags().Bool("compacted", false, "Show the compacted view with summaries")
	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	sessionID, _ := cmd.Flags().GetString("session")
	if sessionID == "" {
		st, err := state.NewManager(config.StateDir()).LoadEngineState()
		if err != nil || st.LastSessionID == "" {
			fmt.Println("No recorded sessions.")
			return nil
		}
		sessionID = st.LastSessionID
	}

	store, err := history.Resume(cfg.HistoryDir(), sessionID)
	if err != nil {
		return fmt.Errorf("open session %s: %w", sessionID, err)
	}
	defer store.Close()

	showAll, _ := cmd.Flags().GetBool("all")
	showCompacted, _ := cmd.Flags().GetBool("compacted")

	fmt.Printf("Session %s\n\n", sessionID)

	switch {
	case showCompacted:
		records := store.ViewCompacted()
		if len(records) == 0 {
			fmt.Println("History is empty.")
			return nil
		}
		for _, rec := range records {
			switch rec.Type {
			case history.RecordEntry:
				fmt.Println(historyLine(*rec.Entry))
			case history.RecordCompaction:
				fmt.Printf("[compacted %d-%d] %s\n", rec.Compaction.FromSeq, rec.Compaction.ToSeq, rec.Compaction.Summary)
			}
		}
	case showAll:
		printEntries(store.ViewAll())
	default:
		printEntries(store.LiveEntries())
	}

	return nil
}

func printEntries(entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Println("History is empty.")
		return
	}
	for _, e := range entries {
		fmt.Println(historyLine(e))
	}
}

func historyLine(e history.Entry) string {
	subject := render.ActionPreview(e.Action)
	if i := strings.IndexByte(subject, '\n'); i >= 0 {
		subject = subject[:i] + " ..."
	}
	return fmt.Sprintf("#%d %s [%s] %s", e.Seq, e.Time.Format("15:04:05"), e.Outcome.Status, subject)
}
