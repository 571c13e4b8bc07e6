package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/askdata/askdata/internal/gateway"
)

// Theme holds the color scheme for rendered output.
type Theme struct {
	Header  lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
	Badge   lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Header:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Warning: lipgloss.Color("#FFAF00"), // amber
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
	Badge:   lipgloss.Color("#AF87FF"), // violet
}

func (t Theme) headerStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Header).Bold(true)
}

func (t Theme) successStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) warningStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Warning)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) badgeStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Badge).Bold(true)
}

// terminalWidth returns the current terminal width, 80 when undetectable.
func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// renderTable draws one result table sized to the terminal.
func renderTable(t gateway.Table) string {
	rows := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "-"
				continue
			}
			cells[i] = fmt.Sprint(v)
		}
		rows = append(rows, cells)
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(defaultTheme.Hint)).
		Headers(t.Columns...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return defaultTheme.headerStyle().Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})

	if w := terminalWidth(); w < 120 {
		tbl = tbl.Width(w)
	}

	title := defaultTheme.headerStyle().Render(t.Name)
	return title + "\n" + tbl.Render() + "\n"
}

// renderAnswer draws a final answer: summary, tables, then the audit trail.
func renderAnswer(answer *gateway.FinalAnswer) string {
	var b strings.Builder

	b.WriteString(answer.Summary)
	b.WriteString("\n\n")

	for _, t := range answer.Tables {
		b.WriteString(renderTable(t))
		b.WriteString("\n")
	}

	b.WriteString(renderAudit(answer))
	return b.String()
}

// renderAudit summarizes what the answer disclosed.
func renderAudit(answer *gateway.FinalAnswer) string {
	a := answer.Audit
	var parts []string
	if answer.AnalysisType != "" {
		parts = append(parts, "analysis: "+answer.AnalysisType)
	}
	if answer.Period != "" {
		parts = append(parts, "period: "+answer.Period)
	}
	if len(a.DisclosedTables) > 0 {
		parts = append(parts, "tables: "+strings.Join(a.DisclosedTables, ", "))
	}
	if a.PrivacyMode {
		parts = append(parts, "privacy mode")
	}
	if a.SafeMode {
		parts = append(parts, "safe mode")
	}
	if len(parts) == 0 {
		return ""
	}
	return defaultTheme.hintStyle().Render(strings.Join(parts, " | ")) + "\n"
}

// renderClarification draws a clarifying question with its choices.
func renderClarification(c *gateway.Clarification) string {
	var b strings.Builder
	b.WriteString(defaultTheme.headerStyle().Render(c.Question))
	b.WriteString("\n")
	for i, choice := range c.Choices {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, choice)
	}
	if c.AllowFreeText {
		b.WriteString(defaultTheme.hintStyle().Render("  (or answer in your own words)"))
		b.WriteString("\n")
	}
	return b.String()
}

// unreachableHint warns when the backend could not be reached in live mode.
func unreachableHint() string {
	if gw == nil || !gw.Unreachable() {
		return ""
	}
	return defaultTheme.warningStyle().Render(
		"Backend unreachable. Turn on demo mode to work with sample data: askdata flags set demo_mode on") + "\n"
}
