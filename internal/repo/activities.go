package repo

import (
	"context"
	"database/sql"
	"errors"

	"planboard/internal/domain"
)

const activityColumns = `id,project_id,title,description,type,status,review_status,assignee,assignee_type,category,due,planned_budget,allocated,kpi_target,kpi_unit,progress,start_date,end_date,sessions_planned,created_at,updated_at`

type ActivityFilters struct {
	ProjectID    string
	Status       domain.ActivityStatus
	ReviewStatus domain.ReviewStatus
	Type         domain.ActivityType
	Assignee     string
}

func scanActivity(row interface{ Scan(...any) error }) (domain.Activity, error) {
	var a domain.Activity
	var description, assigneeType, category, due, kpiUnit sql.NullString
	var kpiTarget sql.NullFloat64
	var progress, sessions sql.NullInt64
	err := row.Scan(&a.ID, &a.ProjectID, &a.Title, &description, &a.Type, &a.Status, &a.ReviewStatus, &a.Assignee, &assigneeType,
		&category, &due, &a.PlannedBudget, &a.Allocated, &kpiTarget, &kpiUnit, &progress, &a.StartDate, &a.EndDate, &sessions,
		&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	a.Description = description.String
	a.AssigneeType = domain.AssigneeType(assigneeType.String)
	a.Category = category.String
	a.KPIUnit = kpiUnit.String
	if due.Valid {
		a.Due = &due.String
	}
	if kpiTarget.Valid {
		a.KPITarget = &kpiTarget.Float64
	}
	if progress.Valid {
		p := int(progress.Int64)
		a.Progress = &p
	}
	if sessions.Valid {
		s := int(sessions.Int64)
		a.SessionsPlanned = &s
	}
	return a, nil
}

func (r Repo) InsertActivity(ctx context.Context, tx *sql.Tx, a domain.Activity) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO activities(`+activityColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.ProjectID, a.Title, nullable(a.Description), a.Type, a.Status, a.ReviewStatus, a.Assignee, nullable(string(a.AssigneeType)),
		nullable(a.Category), nullableStringPtr(a.Due), a.PlannedBudget, a.Allocated, nullableFloatPtr(a.KPITarget), nullable(a.KPIUnit),
		nullableIntPtr(a.Progress), a.StartDate, a.EndDate, nullableIntPtr(a.SessionsPlanned), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return err
	}
	for _, att := range a.Attachments {
		if err := r.InsertAttachment(ctx, tx, a.ID, att); err != nil {
			return err
		}
	}
	return nil
}

// UpdateActivity persists the mutable activity fields. Attachments are managed separately.
func (r Repo) UpdateActivity(ctx context.Context, tx *sql.Tx, a domain.Activity) error {
	return expectOne(tx.ExecContext(ctx, `UPDATE activities SET title=?, description=?, status=?, review_status=?, assignee=?, assignee_type=?, category=?, due=?, kpi_target=?, kpi_unit=?, progress=?, updated_at=? WHERE id=?`,
		a.Title, nullable(a.Description), a.Status, a.ReviewStatus, a.Assignee, nullable(string(a.AssigneeType)), nullable(a.Category),
		nullableStringPtr(a.Due), nullableFloatPtr(a.KPITarget), nullable(a.KPIUnit), nullableIntPtr(a.Progress), a.UpdatedAt, a.ID))
}

func (r Repo) DeleteActivity(ctx context.Context, tx *sql.Tx, id string) error {
	return expectOne(tx.ExecContext(ctx, `DELETE FROM activities WHERE id=?`, id))
}

func (r Repo) GetActivity(ctx context.Context, id string) (domain.Activity, error) {
	return getActivity(ctx, r.DB, id)
}

func (r Repo) GetActivityTx(ctx context.Context, tx *sql.Tx, id string) (domain.Activity, error) {
	return getActivity(ctx, tx, id)
}

func getActivity(ctx context.Context, q queryer, id string) (domain.Activity, error) {
	a, err := scanActivity(q.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE id=?`, id))
	if err != nil {
		return a, err
	}
	a.Attachments, err = listAttachments(ctx, q, id)
	return a, err
}

func (r Repo) ListActivities(ctx context.Context, f ActivityFilters) ([]domain.Activity, error) {
	var clauses []string
	var args []any
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.ReviewStatus != "" {
		clauses = append(clauses, "review_status=?")
		args = append(args, f.ReviewStatus)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.Assignee != "" {
		clauses = append(clauses, "assignee=?")
		args = append(args, f.Assignee)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+activityColumns+` FROM activities`+whereClause(clauses)+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	var res []domain.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, a)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	for i := range res {
		if res[i].Attachments, err = listAttachments(ctx, r.DB, res[i].ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// SumPlannedBudget totals the planned budgets of a project's activities.
func (r Repo) SumPlannedBudget(ctx context.Context, tx *sql.Tx, projectID string) (int64, error) {
	var q queryer = r.DB
	if tx != nil {
		q = tx
	}
	var sum int64
	err := q.QueryRowContext(ctx, `SELECT COALESCE(SUM(planned_budget),0) FROM activities WHERE project_id=?`, projectID).Scan(&sum)
	return sum, err
}
