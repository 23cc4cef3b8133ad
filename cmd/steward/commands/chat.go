package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"steward/internal/action"
	"steward/internal/config"
	"steward/internal/engine"
	"steward/internal/prompt"
	"steward/internal/render"
)

var (
	thinkStyle   = lipgloss.NewStyle().Faint(true)
	actionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	outcomeStyle = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func NewChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with Steward",
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	rt, err := buildRuntime(ctx, cfg, prompt.NewTerminal())
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.model == nil {
		fmt.Println("Warning: no model configured. Slash commands still work; run 'steward init' and add an API key.")
	}

	// Ctrl+C interrupts the action in flight instead of killing the REPL.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			rt.engine.Interrupt()
		}
	}()

	renderer := newMarkdownRenderer()

	rt.loop.OnActionStart = func(p action.Proposed) {
		fmt.Println(actionStyle.Render("→ " + render.ActionPreview(p)))
	}
	rt.loop.OnActionDone = func(p action.Proposed, res engine.Result) {
		fmt.Println(outcomeStyle.Render("  " + render.OutcomeSummary(res.Outcome)))
	}

	snap := rt.engine.Snapshot()
	fmt.Printf("Steward ready. Session %s, policy %s. Type 'exit' to quit, /help for commands.\n", snap.SessionID, snap.Policy)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "exit" || input == "quit" {
			break
		}
		if input == "" {
			continue
		}

		if slash, rest, ok := rt.registry.Lookup(input); ok {
			res := slash.Execute(ctx, rest, rt.env())
			fmt.Println(res.Content)
			continue
		}
		if strings.HasPrefix(input, "/") {
			fmt.Println("Unknown command. Type /help for the list.")
			continue
		}

		reply, err := rt.loop.Process(ctx, input)
		if err != nil {
			fmt.Println(errorStyle.Render("Error: " + err.Error()))
			continue
		}

		think, main, hasThink := renderResponseParts(reply, renderer)
		if hasThink && think != "" {
			fmt.Println(thinkStyle.Render(think))
		}
		fmt.Println(main)
	}

	return nil
}

type markdownRenderer interface {
	Render(string) (string, error)
}

// newMarkdownRenderer returns nil when the terminal cannot be probed;
// callers fall back to plain text.
func newMarkdownRenderer() markdownRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return nil
	}
	return r
}

// renderResponseParts splits a model reply into its think block and visible
// answer and renders each as markdown.
func renderResponseParts(content string, r markdownRenderer) (think, main string, hasThink bool) {
	thinkRaw, mainRaw, hasThink := render.SplitThink(content)
	if r == nil {
		return thinkRaw, mainRaw, hasThink
	}

	if hasThink && thinkRaw != "" {
		if rendered, err := r.Render(thinkRaw); err == nil {
			thinkRaw = strings.TrimSpace(rendered)
		}
	}
	if rendered, err := r.Render(mainRaw); err == nil {
		mainRaw = strings.TrimSpace(rendered)
	}
	return thinkRaw, mainRaw, hasThink
}
