// Package board renders a project board for the terminal.
package board

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"planboard/internal/domain"
	"planboard/internal/engine"
)

const DefaultColumnWidth = 28

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	headStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#CCCCCC"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	badgeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F7B801"))

	colorStyles = map[engine.Color]lipgloss.Style{
		engine.ColorGreen: lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")),
		engine.ColorRed:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		engine.ColorAmber: lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")),
		engine.ColorBlue:  lipgloss.NewStyle().Foreground(lipgloss.Color("#4D96FF")),
	}
	urgencyLabels = map[engine.Urgency]string{
		engine.UrgencyOverdue: "OVERDUE",
		engine.UrgencyWarning: "DUE SOON",
	}
	columnTitles = map[domain.ActivityStatus]string{
		domain.StatusTodo:       "To do",
		domain.StatusInProgress: "In progress",
		domain.StatusBlocked:    "Blocked",
		domain.StatusDone:       "Done",
	}
)

// Render draws the columns side by side under a budget header line.
func Render(b engine.Board, width int) string {
	if width <= 0 {
		width = DefaultColumnWidth
	}
	cols := make([]string, 0, len(b.Columns))
	for _, col := range b.Columns {
		cols = append(cols, renderColumn(col, width))
	}
	header := titleStyle.Render(b.ProjectID) + " " + mutedStyle.Render(budgetLine(b.Budget))
	return lipgloss.JoinVertical(lipgloss.Left, header, lipgloss.JoinHorizontal(lipgloss.Top, cols...))
}

func budgetLine(s engine.BudgetSummary) string {
	return fmt.Sprintf("budget %d %s, committed %d, remaining %d, spent %d",
		s.Planned, s.Currency, s.Committed, s.Remaining, s.Spent)
}

func renderColumn(col engine.Column, width int) string {
	title := columnTitles[col.Status]
	if title == "" {
		title = string(col.Status)
	}
	lines := []string{headStyle.Render(fmt.Sprintf("%s (%d)", title, len(col.Cards)))}
	if len(col.Cards) == 0 {
		lines = append(lines, mutedStyle.Render("empty"))
	}
	for _, c := range col.Cards {
		lines = append(lines, renderCard(c, width-4))
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Width(width).
		Render(strings.Join(lines, "\n"))
}

func renderCard(c engine.Card, width int) string {
	progress := fmt.Sprintf("%d%%", c.Progress)
	if c.Derived {
		progress += "*"
	}
	style, ok := colorStyles[c.Color]
	if !ok {
		style = mutedStyle
	}
	parts := []string{
		c.Activity.Title,
		style.Render(progressBar(c.Progress, 10) + " " + progress),
	}
	var badges []string
	if c.Submitted {
		badges = append(badges, badgeStyle.Render("SUBMITTED"))
	}
	if label, ok := urgencyLabels[c.Urgency]; ok {
		badges = append(badges, colorStyles[engine.ColorRed].Render(label))
	}
	if len(badges) > 0 {
		parts = append(parts, strings.Join(badges, " "))
	}
	parts = append(parts, mutedStyle.Render(fmt.Sprintf("%s, %d", c.Activity.Assignee, c.Activity.PlannedBudget)))
	return lipgloss.NewStyle().Width(max(10, width)).PaddingTop(1).Render(strings.Join(parts, "\n"))
}

func progressBar(percent, cells int) string {
	filled := percent * cells / 100
	if filled > cells {
		filled = cells
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", cells-filled)
}
