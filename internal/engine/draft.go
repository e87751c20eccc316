package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"planboard/internal/domain"
)

// ActivityDraft is a candidate activity before the creation checks.
type ActivityDraft struct {
	ProjectID       string              `json:"project_id" validate:"required"`
	Title           string              `json:"title" validate:"required"`
	Description     string              `json:"description,omitempty"`
	Type            domain.ActivityType `json:"type" validate:"required,oneof=purchase production distribution training research-development other"`
	StartDate       string              `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate         string              `json:"end_date" validate:"required,datetime=2006-01-02"`
	PlannedBudget   *int64              `json:"planned_budget" validate:"required,min=0"`
	Assignee        string              `json:"assignee" validate:"required"`
	AssigneeType    domain.AssigneeType `json:"assignee_type,omitempty" validate:"omitempty,oneof=distributor producer supplier purchaser trainer project-lead field-agent other r&d"`
	Category        string              `json:"category,omitempty"`
	Due             string              `json:"due,omitempty" validate:"omitempty,datetime=2006-01-02"`
	KPITarget       *float64            `json:"kpi_target,omitempty" validate:"omitempty,min=0"`
	KPIUnit         string              `json:"kpi_unit,omitempty"`
	SessionsPlanned *int                `json:"sessions_planned,omitempty" validate:"required_if=Type training"`
	Attachments     []domain.Attachment `json:"attachments,omitempty"`
}

func (d ActivityDraft) normalized() ActivityDraft {
	d.ProjectID = strings.TrimSpace(d.ProjectID)
	d.Title = strings.TrimSpace(d.Title)
	d.StartDate = strings.TrimSpace(d.StartDate)
	d.EndDate = strings.TrimSpace(d.EndDate)
	d.Assignee = strings.TrimSpace(d.Assignee)
	d.Due = strings.TrimSpace(d.Due)
	return d
}

// BudgetCheck is the ceiling arithmetic for one candidate.
type BudgetCheck struct {
	ProjectBudget int64 `json:"project_budget"`
	Committed     int64 `json:"committed"`
	Candidate     int64 `json:"candidate"`
	// Remaining is project budget minus committed activity budgets.
	Remaining int64 `json:"remaining"`
	// Excess is how far the candidate overshoots the ceiling, 0 when it fits.
	Excess   int64 `json:"excess"`
	Exceeded bool  `json:"exceeded"`
}

// DraftCheck tells whether a draft can be created and why not.
type DraftCheck struct {
	Blocked   bool        `json:"blocked"`
	Reason    string      `json:"reason,omitempty"`
	Missing   []string    `json:"missing,omitempty"`
	Invalid   []string    `json:"invalid,omitempty"`
	Budget    BudgetCheck `json:"budget"`
	Allocated int64       `json:"allocated"`
}

type CreateResult struct {
	Activity *domain.Activity `json:"activity,omitempty"`
	Check    DraftCheck       `json:"check"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// CheckDraft runs the creation checks without writing anything.
func (e Engine) CheckDraft(ctx context.Context, draft ActivityDraft) (DraftCheck, error) {
	return e.checkDraft(ctx, nil, draft.normalized())
}

func (e Engine) checkDraft(ctx context.Context, tx *sql.Tx, d ActivityDraft) (DraftCheck, error) {
	var check DraftCheck
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return check, fmt.Errorf("validate draft: %w", err)
		}
		for _, fe := range verrs {
			switch fe.Tag() {
			case "required", "required_if":
				check.Missing = append(check.Missing, fe.Field())
			default:
				check.Invalid = append(check.Invalid, fe.Field())
			}
		}
	}
	if d.SessionsPlanned != nil && *d.SessionsPlanned < 1 {
		check.Invalid = append(check.Invalid, "sessions_planned")
	}
	if start, err := parseDate(d.StartDate); err == nil {
		if end, err := parseDate(d.EndDate); err == nil && end.Before(start) {
			check.Invalid = append(check.Invalid, "end_date")
		}
	}
	if d.ProjectID == "" {
		check.Blocked = true
		check.Reason = describeBlock(check)
		return check, nil
	}

	var (
		project domain.Project
		err     error
	)
	if tx != nil {
		project, err = e.Repo.GetProjectTx(ctx, tx, d.ProjectID)
	} else {
		project, err = e.Repo.GetProject(ctx, d.ProjectID)
	}
	if err != nil {
		return check, fmt.Errorf("project %s: %w", d.ProjectID, err)
	}
	committed, err := e.Repo.SumPlannedBudget(ctx, tx, d.ProjectID)
	if err != nil {
		return check, fmt.Errorf("sum planned budgets: %w", err)
	}

	var candidate int64
	if d.PlannedBudget != nil {
		candidate = *d.PlannedBudget
	}
	check.Budget = BudgetCheck{
		ProjectBudget: project.PlannedBudget,
		Committed:     committed,
		Candidate:     candidate,
		Remaining:     project.PlannedBudget - committed,
	}
	if over := committed + candidate - project.PlannedBudget; over > 0 {
		check.Budget.Excess = over
		check.Budget.Exceeded = true
	}
	if candidate >= 0 {
		check.Allocated = Allocate(candidate)
	}
	check.Blocked = len(check.Missing) > 0 || len(check.Invalid) > 0 || check.Budget.Exceeded
	if check.Blocked {
		check.Reason = describeBlock(check)
	}
	return check, nil
}

func describeBlock(c DraftCheck) string {
	var parts []string
	if len(c.Missing) > 0 {
		missing := append([]string(nil), c.Missing...)
		sort.Strings(missing)
		parts = append(parts, "missing "+strings.Join(missing, ", "))
	}
	if len(c.Invalid) > 0 {
		invalid := append([]string(nil), c.Invalid...)
		sort.Strings(invalid)
		parts = append(parts, "invalid "+strings.Join(invalid, ", "))
	}
	if c.Budget.Exceeded {
		parts = append(parts, fmt.Sprintf("budget exceeded by %d (remaining %d of %d)",
			c.Budget.Excess, c.Budget.Remaining, c.Budget.ProjectBudget))
	}
	return strings.Join(parts, "; ")
}

// CreateActivity stores the draft when every check passes. A blocked draft
// is reported through the result, not as an error, and nothing is written.
func (e Engine) CreateActivity(ctx context.Context, draft ActivityDraft) (CreateResult, error) {
	d := draft.normalized()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return CreateResult{}, err
	}
	defer tx.Rollback()

	check, err := e.checkDraft(ctx, tx, d)
	if err != nil {
		return CreateResult{}, err
	}
	if check.Blocked {
		e.logger().Info("activity creation blocked",
			zap.String("project_id", d.ProjectID),
			zap.String("reason", check.Reason))
		return CreateResult{Check: check}, nil
	}

	now := e.stamp()
	a := domain.Activity{
		ID:              uuid.NewString(),
		ProjectID:       d.ProjectID,
		Title:           d.Title,
		Description:     d.Description,
		Type:            d.Type,
		Status:          domain.StatusTodo,
		ReviewStatus:    domain.ReviewDraft,
		Assignee:        e.ResolveAssignee(d.AssigneeType, d.Assignee),
		AssigneeType:    d.AssigneeType,
		Category:        d.Category,
		PlannedBudget:   *d.PlannedBudget,
		Allocated:       check.Allocated,
		KPITarget:       d.KPITarget,
		KPIUnit:         d.KPIUnit,
		StartDate:       d.StartDate,
		EndDate:         d.EndDate,
		SessionsPlanned: d.SessionsPlanned,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if d.Due != "" {
		due := d.Due
		a.Due = &due
	}
	for _, att := range d.Attachments {
		if att.ID == "" {
			att.ID = uuid.NewString()
		}
		a.Attachments = append(a.Attachments, att)
	}
	if err := e.Repo.InsertActivity(ctx, tx, a); err != nil {
		return CreateResult{}, fmt.Errorf("insert activity: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return CreateResult{}, err
	}
	e.logger().Info("activity created",
		zap.String("activity_id", a.ID),
		zap.String("project_id", a.ProjectID),
		zap.Int64("planned_budget", a.PlannedBudget))
	return CreateResult{Activity: &a, Check: check}, nil
}
