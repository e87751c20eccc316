package board

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"planboard/internal/domain"
	"planboard/internal/engine"
)

func TestRenderShowsColumnsAndBadges(t *testing.T) {
	b := engine.Board{
		ProjectID: "proj-1",
		Budget:    engine.BudgetSummary{Planned: 1000, Committed: 600, Remaining: 400, Currency: "XOF"},
		Columns: []engine.Column{
			{Status: domain.StatusTodo, Cards: []engine.Card{{
				Activity:  domain.Activity{Title: "Wells", Assignee: "Union", PlannedBudget: 600},
				Progress:  0,
				Derived:   true,
				Color:     engine.ColorAmber,
				Urgency:   engine.UrgencyOverdue,
				Submitted: true,
			}}},
			{Status: domain.StatusInProgress, Cards: []engine.Card{}},
			{Status: domain.StatusBlocked, Cards: []engine.Card{}},
			{Status: domain.StatusDone, Cards: []engine.Card{}},
		},
	}
	out := Render(b, 30)

	for _, want := range []string{"proj-1", "remaining 400", "To do (1)", "In progress (0)", "Blocked (0)", "Done (0)", "Wells", "0%*", "SUBMITTED", "OVERDUE", "Union, 600", "╭"} {
		assert.Contains(t, out, want)
	}
	assert.GreaterOrEqual(t, strings.Count(out, "empty"), 3)
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "░░░░░░░░░░", progressBar(0, 10))
	assert.Equal(t, "████░░░░░░", progressBar(40, 10))
	assert.Equal(t, "██████████", progressBar(100, 10))
	assert.Equal(t, "██████████", progressBar(140, 10))
}
