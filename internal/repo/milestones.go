package repo

import (
	"context"
	"database/sql"
	"errors"

	"planboard/internal/domain"
)

const milestoneColumns = `id,project_id,activity_id,label,target_date,progress,status,review_status,created_at,updated_at`

type MilestoneFilters struct {
	ProjectID  string
	ActivityID string
	Status     domain.MilestoneStatus
}

func scanMilestone(row interface{ Scan(...any) error }) (domain.Milestone, error) {
	var m domain.Milestone
	var target sql.NullString
	err := row.Scan(&m.ID, &m.ProjectID, &m.ActivityID, &m.Label, &target, &m.Progress, &m.Status, &m.ReviewStatus, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return m, ErrNotFound
	}
	if target.Valid {
		m.TargetDate = &target.String
	}
	return m, err
}

func (r Repo) InsertMilestone(ctx context.Context, tx *sql.Tx, m domain.Milestone) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO milestones(`+milestoneColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.ProjectID, m.ActivityID, m.Label, nullableStringPtr(m.TargetDate), m.Progress, m.Status, m.ReviewStatus, m.CreatedAt, m.UpdatedAt)
	return err
}

func (r Repo) UpdateMilestone(ctx context.Context, tx *sql.Tx, m domain.Milestone) error {
	return expectOne(tx.ExecContext(ctx, `UPDATE milestones SET label=?, target_date=?, progress=?, status=?, review_status=?, updated_at=? WHERE id=?`,
		m.Label, nullableStringPtr(m.TargetDate), m.Progress, m.Status, m.ReviewStatus, m.UpdatedAt, m.ID))
}

func (r Repo) GetMilestone(ctx context.Context, id string) (domain.Milestone, error) {
	return scanMilestone(r.DB.QueryRowContext(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE id=?`, id))
}

func (r Repo) GetMilestoneTx(ctx context.Context, tx *sql.Tx, id string) (domain.Milestone, error) {
	return scanMilestone(tx.QueryRowContext(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE id=?`, id))
}

func (r Repo) ListMilestones(ctx context.Context, f MilestoneFilters) ([]domain.Milestone, error) {
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
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+milestoneColumns+` FROM milestones`+whereClause(clauses)+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
