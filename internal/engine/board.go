package engine

import (
	"context"

	"planboard/internal/domain"
	"planboard/internal/repo"
	"planboard/internal/workflowlog"
)

type Card struct {
	Activity   domain.Activity `json:"activity"`
	Progress   int             `json:"progress"`
	Derived    bool            `json:"derived"`
	Color      Color           `json:"color"`
	Urgency    Urgency         `json:"urgency,omitempty"`
	Submitted  bool            `json:"submitted"`
	Milestones int             `json:"milestones"`
}

type Column struct {
	Status domain.ActivityStatus `json:"status"`
	Cards  []Card                `json:"cards"`
}

type Board struct {
	ProjectID string        `json:"project_id"`
	Columns   []Column      `json:"columns"`
	Budget    BudgetSummary `json:"budget"`
}

// Board groups a project's activities by status with their display metrics.
// The submitted badge comes from the latest activity event in the log.
func (e Engine) Board(ctx context.Context, projectID string) (Board, error) {
	budget, err := e.BudgetSummary(ctx, projectID)
	if err != nil {
		return Board{}, err
	}
	activities, err := e.Repo.ListActivities(ctx, repo.ActivityFilters{ProjectID: projectID})
	if err != nil {
		return Board{}, err
	}
	milestones, err := e.Repo.ListMilestones(ctx, repo.MilestoneFilters{ProjectID: projectID})
	if err != nil {
		return Board{}, err
	}
	perActivity := map[string]int{}
	for _, m := range milestones {
		perActivity[m.ActivityID]++
	}
	submitted := latestActivityEvents(e.Log.List(ctx, workflowlog.Filter{ProjectID: projectID}))

	now := e.now()
	b := Board{ProjectID: projectID, Budget: budget}
	index := map[domain.ActivityStatus]int{}
	for i, status := range domain.ActivityStatuses {
		index[status] = i
		b.Columns = append(b.Columns, Column{Status: status, Cards: []Card{}})
	}
	for _, a := range activities {
		card := Card{
			Activity:   a,
			Progress:   EffectiveProgress(a),
			Derived:    a.Progress == nil,
			Submitted:  submitted[a.ID] == domain.EventActivitySubmit,
			Milestones: perActivity[a.ID],
		}
		card.Color = ProgressColor(a.Status, card.Progress)
		if a.Due != nil {
			if due, err := parseDate(*a.Due); err == nil {
				card.Urgency = DeadlineUrgency(due, a.Status, now)
			}
		}
		col, ok := index[a.Status]
		if !ok {
			continue
		}
		b.Columns[col].Cards = append(b.Columns[col].Cards, card)
	}
	return b, nil
}

// latestActivityEvents expects events newest first.
func latestActivityEvents(events []domain.WorkflowEvent) map[string]domain.EventType {
	out := map[string]domain.EventType{}
	for _, ev := range events {
		if ev.ActivityID == "" || ev.Type.Subject() != "activity" {
			continue
		}
		if _, seen := out[ev.ActivityID]; !seen {
			out[ev.ActivityID] = ev.Type
		}
	}
	return out
}
