package repo

import (
	"context"
	"database/sql"
	"errors"

	"planboard/internal/domain"
)

const expenseColumns = `id,project_id,activity_id,label,amount,spent_on,review_status,created_at,updated_at`

type ExpenseFilters struct {
	ProjectID    string
	ActivityID   string
	ReviewStatus domain.ReviewStatus
}

func scanExpense(row interface{ Scan(...any) error }) (domain.Expense, error) {
	var e domain.Expense
	err := row.Scan(&e.ID, &e.ProjectID, &e.ActivityID, &e.Label, &e.Amount, &e.SpentOn, &e.ReviewStatus, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return e, ErrNotFound
	}
	return e, err
}

func (r Repo) InsertExpense(ctx context.Context, tx *sql.Tx, e domain.Expense) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO expenses(`+expenseColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		e.ID, e.ProjectID, e.ActivityID, e.Label, e.Amount, e.SpentOn, e.ReviewStatus, e.CreatedAt, e.UpdatedAt)
	return err
}

func (r Repo) UpdateExpenseReview(ctx context.Context, tx *sql.Tx, id string, status domain.ReviewStatus, updatedAt string) error {
	return expectOne(tx.ExecContext(ctx, `UPDATE expenses SET review_status=?, updated_at=? WHERE id=?`, status, updatedAt, id))
}

func (r Repo) GetExpense(ctx context.Context, id string) (domain.Expense, error) {
	return scanExpense(r.DB.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id=?`, id))
}

func (r Repo) GetExpenseTx(ctx context.Context, tx *sql.Tx, id string) (domain.Expense, error) {
	return scanExpense(tx.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id=?`, id))
}

func (r Repo) ListExpenses(ctx context.Context, f ExpenseFilters) ([]domain.Expense, error) {
	var clauses []string
	var args []any
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.ActivityID != "" {
		clauses = append(clauses, "activity_id=?")
		args = append(args, f.ActivityID)
	}
	if f.ReviewStatus != "" {
		clauses = append(clauses, "review_status=?")
		args = append(args, f.ReviewStatus)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+expenseColumns+` FROM expenses`+whereClause(clauses)+` ORDER BY spent_on, created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// SumExpenses totals expense amounts for a project, optionally only one review status.
func (r Repo) SumExpenses(ctx context.Context, projectID string, status domain.ReviewStatus) (int64, error) {
	query := `SELECT COALESCE(SUM(amount),0) FROM expenses WHERE project_id=?`
	args := []any{projectID}
	if status != "" {
		query += ` AND review_status=?`
		args = append(args, status)
	}
	var sum int64
	err := r.DB.QueryRowContext(ctx, query, args...).Scan(&sum)
	return sum, err
}
