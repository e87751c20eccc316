package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"planboard/internal/domain"
	"planboard/internal/repo"
)

type ExpenseInput struct {
	ActivityID string `json:"activity_id"`
	Label      string `json:"label"`
	Amount     int64  `json:"amount"`
	SpentOn    string `json:"spent_on"`
}

func (e Engine) AddExpense(ctx context.Context, in ExpenseInput) (domain.Expense, error) {
	label := strings.TrimSpace(in.Label)
	if label == "" {
		return domain.Expense{}, invalidf("expense label is required")
	}
	if in.Amount <= 0 {
		return domain.Expense{}, invalidf("expense amount must be positive")
	}
	spentOn := strings.TrimSpace(in.SpentOn)
	if spentOn == "" {
		spentOn = e.now().UTC().Format(dateOnly)
	} else if _, err := parseDate(spentOn); err != nil {
		return domain.Expense{}, invalidf("spent_on %q is not YYYY-MM-DD", spentOn)
	}

	var x domain.Expense
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		a, err := e.Repo.GetActivityTx(ctx, tx, in.ActivityID)
		if err != nil {
			return fmt.Errorf("activity %s: %w", in.ActivityID, err)
		}
		now := e.stamp()
		x = domain.Expense{
			ID:           uuid.NewString(),
			ProjectID:    a.ProjectID,
			ActivityID:   a.ID,
			Label:        label,
			Amount:       in.Amount,
			SpentOn:      spentOn,
			ReviewStatus: domain.ReviewDraft,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return e.Repo.InsertExpense(ctx, tx, x)
	})
	return x, err
}

func (e Engine) GetExpense(ctx context.Context, id string) (domain.Expense, error) {
	return e.Repo.GetExpense(ctx, id)
}

func (e Engine) ListExpenses(ctx context.Context, f repo.ExpenseFilters) ([]domain.Expense, error) {
	return e.Repo.ListExpenses(ctx, f)
}

func (e Engine) SubmitExpense(ctx context.Context, id string, in ReviewInput) (domain.Expense, error) {
	return e.ReviewExpense(ctx, id, ActionSubmit, in)
}

func (e Engine) ApproveExpense(ctx context.Context, id string, in ReviewInput) (domain.Expense, error) {
	return e.ReviewExpense(ctx, id, ActionApprove, in)
}

func (e Engine) RejectExpense(ctx context.Context, id string, in ReviewInput) (domain.Expense, error) {
	return e.ReviewExpense(ctx, id, ActionReject, in)
}

func (e Engine) ReviewExpense(ctx context.Context, id string, action ReviewAction, in ReviewInput) (domain.Expense, error) {
	var x domain.Expense
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if x, err = e.Repo.GetExpenseTx(ctx, tx, id); err != nil {
			return err
		}
		next, err := ensureReviewTransition("expense", x.ID, x.ReviewStatus, action)
		if err != nil {
			return err
		}
		x.ReviewStatus = next
		x.UpdatedAt = e.stamp()
		return e.Repo.UpdateExpenseReview(ctx, tx, x.ID, x.ReviewStatus, x.UpdatedAt)
	})
	if err != nil {
		return domain.Expense{}, err
	}
	e.record(ctx, domain.EventDraft{
		ProjectID:  x.ProjectID,
		ActivityID: x.ActivityID,
		Type:       eventFor("expense", action),
		By:         in.By,
		Notes:      in.Notes,
		Payload: domain.ExpenseSnapshot{
			ExpenseID:    x.ID,
			Label:        x.Label,
			Amount:       x.Amount,
			SpentOn:      x.SpentOn,
			ReviewStatus: x.ReviewStatus,
		},
	})
	return x, nil
}
