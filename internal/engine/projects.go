package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"planboard/internal/domain"
	"planboard/internal/repo"
)

type ProjectInput struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	PlannedBudget int64  `json:"planned_budget"`
	Currency      string `json:"currency,omitempty"`
}

func (e Engine) CreateProject(ctx context.Context, in ProjectInput) (domain.Project, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return domain.Project{}, invalidf("project id is required")
	}
	if in.PlannedBudget < 0 {
		return domain.Project{}, invalidf("planned budget must not be negative")
	}
	if _, err := e.Repo.GetProject(ctx, id); err == nil {
		return domain.Project{}, invalidf("project %s already exists", id)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Project{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = id
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" && e.Config != nil {
		currency = e.Config.Project.Currency
	}
	p := domain.Project{
		ID:            id,
		Name:          name,
		Description:   in.Description,
		PlannedBudget: in.PlannedBudget,
		Currency:      currency,
		CreatedAt:     e.stamp(),
	}
	if err := e.Repo.InsertProject(ctx, p); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	e.logger().Info("project created", zap.String("project_id", p.ID), zap.Int64("planned_budget", p.PlannedBudget))
	return p, nil
}

func (e Engine) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return e.Repo.GetProject(ctx, id)
}

func (e Engine) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return e.Repo.ListProjects(ctx)
}

// SetProjectBudget refuses a ceiling below what activities already commit.
// The sum and the update share one transaction with activity creation's
// ceiling check.
func (e Engine) SetProjectBudget(ctx context.Context, id string, budget int64) (domain.Project, error) {
	if budget < 0 {
		return domain.Project{}, invalidf("planned budget must not be negative")
	}
	var p domain.Project
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := e.Repo.GetProjectTx(ctx, tx, id); err != nil {
			return err
		}
		committed, err := e.Repo.SumPlannedBudget(ctx, tx, id)
		if err != nil {
			return err
		}
		if budget < committed {
			return invalidf("planned budget %d is below the %d already committed to activities", budget, committed)
		}
		if err := e.Repo.UpdateProject(ctx, tx, id, nil, nil, &budget); err != nil {
			return err
		}
		p, err = e.Repo.GetProjectTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return domain.Project{}, err
	}
	e.logger().Info("project budget updated", zap.String("project_id", id), zap.Int64("planned_budget", budget))
	return p, nil
}

// BudgetSummary aggregates a project's money figures.
type BudgetSummary struct {
	ProjectID     string `json:"project_id"`
	Currency      string `json:"currency"`
	Planned       int64  `json:"planned"`
	Committed     int64  `json:"committed"`
	Allocated     int64  `json:"allocated"`
	Remaining     int64  `json:"remaining"`
	Spent         int64  `json:"spent"`
	ApprovedSpend int64  `json:"approved_spend"`
	Activities    int    `json:"activities"`
}

func (e Engine) BudgetSummary(ctx context.Context, projectID string) (BudgetSummary, error) {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return BudgetSummary{}, err
	}
	activities, err := e.Repo.ListActivities(ctx, repo.ActivityFilters{ProjectID: projectID})
	if err != nil {
		return BudgetSummary{}, err
	}
	s := BudgetSummary{ProjectID: p.ID, Currency: p.Currency, Planned: p.PlannedBudget, Activities: len(activities)}
	for _, a := range activities {
		s.Committed += a.PlannedBudget
		s.Allocated += a.Allocated
	}
	s.Remaining = s.Planned - s.Committed
	if s.Spent, err = e.Repo.SumExpenses(ctx, projectID, ""); err != nil {
		return BudgetSummary{}, err
	}
	if s.ApprovedSpend, err = e.Repo.SumExpenses(ctx, projectID, domain.ReviewValidated); err != nil {
		return BudgetSummary{}, err
	}
	return s, nil
}
