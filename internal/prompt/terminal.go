package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"steward/internal/action"
)

const previewLines = 10

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	tierStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	bodyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("7")).PaddingLeft(2)
	optionsStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Terminal is the interactive approval prompter. It runs a small bubbletea
// program per pending action and blocks until the user decides or the
// context is cancelled (which counts as a denial).
type Terminal struct{}

// NewTerminal creates the interactive prompter.
func NewTerminal() *Terminal {
	return &Terminal{}
}

// RequestApproval shows the pending action and collects a decision.
func (t *Terminal) RequestApproval(ctx context.Context, p action.Proposed, tier action.RiskTier) (action.Decision, error) {
	prog := tea.NewProgram(newPromptModel(p, tier))

	finished := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			prog.Quit()
		case <-finished:
		}
	}()

	final, err := prog.Run()
	close(finished)
	if err != nil {
		return action.Decision{}, fmt.Errorf("run approval prompt: %w", err)
	}

	m, ok := final.(promptModel)
	if !ok || !m.decided {
		// Quit without a choice (interrupt, ctx cancellation) is a denial.
		return action.Decision{Scope: action.ScopeOnce, Reason: "cancelled"}, nil
	}
	return m.decision, nil
}

type promptState int

const (
	stateChoosing promptState = iota
	stateReason
	stateDone
)

type promptModel struct {
	proposed action.Proposed
	tier     action.RiskTier

	state    promptState
	reason   textinput.Model
	decision action.Decision
	decided  bool
}

func newPromptModel(p action.Proposed, tier action.RiskTier) promptModel {
	ti := textinput.New()
	ti.Placeholder = "reason for denial (optional)"
	ti.CharLimit = 200
	return promptModel{proposed: p, tier: tier, reason: ti}
}

func (m promptModel) Init() tea.Cmd {
	return nil
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.reason, cmd = m.reason.Update(msg)
		return m, cmd
	}

	switch m.state {
	case stateChoosing:
		switch key.String() {
		case "a":
			m.decision = action.Decision{Approved: true, Scope: action.ScopeOnce}
			m.decided = true
			m.state = stateDone
			return m, tea.Quit
		case "s":
			m.decision = action.Decision{Approved: true, Scope: action.ScopeSessionTier}
			m.decided = true
			m.state = stateDone
			return m, tea.Quit
		case "d":
			m.decision = action.Decision{Scope: action.ScopeOnce}
			m.state = stateReason
			m.reason.Focus()
			return m, textinput.Blink
		case "D":
			m.decision = action.Decision{Scope: action.ScopeSessionDeny}
			m.state = stateReason
			m.reason.Focus()
			return m, textinput.Blink
		case "esc", "ctrl+c":
			m.decision = action.Decision{Scope: action.ScopeOnce, Reason: "cancelled"}
			m.decided = true
			m.state = stateDone
			return m, tea.Quit
		}
	case stateReason:
		switch key.String() {
		case "enter":
			m.decision.Reason = strings.TrimSpace(m.reason.Value())
			m.decided = true
			m.state = stateDone
			return m, tea.Quit
		case "esc", "ctrl+c":
			m.decided = true
			m.state = stateDone
			return m, tea.Quit
		default:
			var cmd tea.Cmd
			m.reason, cmd = m.reason.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m promptModel) View() string {
	if m.state == stateDone {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("steward wants to "+describe(m.proposed)) + "\n")
	b.WriteString(tierStyle.Render("risk tier: "+m.tier.String()) + "\n\n")
	b.WriteString(bodyStyle.Render(preview(m.proposed)) + "\n\n")

	if m.state == stateReason {
		b.WriteString(m.reason.View() + "\n")
		b.WriteString(optionsStyle.Render("enter to confirm denial, esc to skip the reason"))
		return b.String()
	}

	b.WriteString(optionsStyle.Render(
		"(a)pprove once  (s) approve this tier for the session  (d)eny  (D) deny tier for session  esc cancel",
	))
	return b.String()
}

func describe(p action.Proposed) string {
	switch p.Kind {
	case action.KindShellExec:
		return "run a shell command"
	case action.KindFileWrite:
		return "write " + p.Path
	case action.KindFilePatch:
		return "patch " + p.Path
	case action.KindToolInvoke:
		return "invoke tool " + p.Tool
	default:
		return "perform an action"
	}
}

func preview(p action.Proposed) string {
	switch p.Kind {
	case action.KindShellExec:
		return "$ " + p.Command
	case action.KindFileWrite:
		return truncateLines(p.Content, previewLines)
	case action.KindFilePatch:
		return truncateLines(p.Diff, previewLines)
	case action.KindToolInvoke:
		if strings.TrimSpace(p.ToolArgs) == "" {
			return p.Tool
		}
		return p.Tool + " " + p.ToolArgs
	default:
		return ""
	}
}

func truncateLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	kept := strings.Join(lines[:n], "\n")
	return fmt.Sprintf("%s\n... and %d more lines", kept, len(lines)-n)
}
