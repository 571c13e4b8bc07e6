package cli

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"

	"github.com/askdata/askdata/internal/conversation"
	"github.com/askdata/askdata/internal/flags"
)

var chatDataset string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive conversation with a dataset",
	Long: `Start an interactive conversation. Each message runs one full turn;
the input is disabled while a turn is in flight. A demo badge shows
when answers come from sample data, and it follows demo-mode commits
made anywhere, including other processes.

Press Ctrl+C or Esc to leave.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatDataset, "dataset", "d", "", "dataset id to analyze")
	_ = chatCmd.MarkFlagRequired("dataset")
}

// turnDoneMsg carries a finished turn back into the UI loop.
type turnDoneMsg struct {
	out *conversation.Outcome
	err error
}

// demoModeMsg reflects a demo-flag change, from any process.
type demoModeMsg bool

type chatModel struct {
	machine  *conversation.Machine
	input    textinput.Model
	spin     spinner.Model
	theme    Theme
	focusCmd tea.Cmd

	lines    []string
	busy     bool
	demo     bool
	quitting bool
}

func newChatModel(machine *conversation.Machine, demo bool) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask about your data..."
	focusCmd := ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return chatModel{
		machine:  machine,
		input:    ti,
		spin:     sp,
		theme:    defaultTheme,
		focusCmd: focusCmd,
		demo:     demo,
	}
}

func (m chatModel) Init() tea.Cmd {
	return m.focusCmd
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if m.busy || text == "" {
				return m, nil
			}
			m.lines = append(m.lines, m.theme.headerStyle().Render("you ")+text)
			m.input.Reset()
			m.busy = true
			return m, tea.Batch(m.spin.Tick, m.sendTurn(text))
		}

	case turnDoneMsg:
		m.busy = false
		m.lines = append(m.lines, m.renderOutcome(msg))
		return m, nil

	case demoModeMsg:
		m.demo = bool(msg)
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// sendTurn runs the turn off the UI goroutine.
func (m chatModel) sendTurn(text string) tea.Cmd {
	machine := m.machine
	return func() tea.Msg {
		out, err := machine.Send(context.Background(), text)
		return turnDoneMsg{out: out, err: err}
	}
}

func (m chatModel) renderOutcome(msg turnDoneMsg) string {
	if msg.err != nil {
		return m.theme.errorStyle().Render("turn failed: " + msg.err.Error())
	}

	switch msg.out.State {
	case conversation.StateAwaitingClarification:
		return renderClarification(msg.out.Clarification)
	case conversation.StateFinal:
		s := renderAnswer(msg.out.Answer)
		if msg.out.ReportID != "" {
			s += m.theme.hintStyle().Render("Saved as report " + msg.out.ReportID)
		}
		return s
	default:
		return m.theme.errorStyle().Render(fmt.Sprintf("unexpected outcome: %s", msg.out.State))
	}
}

func (m chatModel) View() tea.View {
	var b strings.Builder

	badge := ""
	if m.demo {
		badge = " " + m.theme.badgeStyle().Render("[demo]")
	}
	b.WriteString(m.theme.headerStyle().Render("askdata chat") + badge + "  " +
		m.theme.hintStyle().Render("dataset "+m.machine.DatasetID()) + "\n\n")

	for _, line := range m.lines {
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.quitting {
		return tea.NewView(b.String())
	}

	if m.busy {
		b.WriteString("\n" + m.spin.View() + " thinking...\n")
	} else {
		b.WriteString("\n" + m.input.View() + "\n")
		b.WriteString(m.theme.hintStyle().Render("Enter to send, Esc to quit") + "\n")
	}

	return tea.NewView(b.String())
}

func runChat(cmd *cobra.Command, args []string) error {
	machine := conversation.New(chatDataset, gw, recorder, logger)
	model := newChatModel(machine, gw.DemoMode())

	p := tea.NewProgram(model)

	// Keep the demo badge in sync with durable demo-mode commits.
	unsubscribe := flagStore.OnChange(flags.DemoMode, func(on bool) {
		p.Send(demoModeMsg(on))
	})
	defer unsubscribe()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI error: %w", err)
	}
	return nil
}
