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

type MilestoneInput struct {
	ActivityID string                 `json:"activity_id"`
	Label      string                 `json:"label"`
	TargetDate string                 `json:"target_date,omitempty"`
	Progress   int                    `json:"progress"`
	Status     domain.MilestoneStatus `json:"status,omitempty"`
}

// AddMilestone attaches a milestone to an activity. Status defaults to not_started.
func (e Engine) AddMilestone(ctx context.Context, in MilestoneInput) (domain.Milestone, error) {
	label := strings.TrimSpace(in.Label)
	if label == "" {
		return domain.Milestone{}, invalidf("milestone label is required")
	}
	status := in.Status
	if status == "" {
		status = domain.MilestoneNotStarted
	}
	if !status.Valid() {
		return domain.Milestone{}, invalidf("unknown milestone status %q", status)
	}
	var target *string
	if t := strings.TrimSpace(in.TargetDate); t != "" {
		if _, err := parseDate(t); err != nil {
			return domain.Milestone{}, invalidf("target date %q is not YYYY-MM-DD", t)
		}
		target = &t
	}

	var m domain.Milestone
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		a, err := e.Repo.GetActivityTx(ctx, tx, in.ActivityID)
		if err != nil {
			return fmt.Errorf("activity %s: %w", in.ActivityID, err)
		}
		now := e.stamp()
		m = domain.Milestone{
			ID:           uuid.NewString(),
			ProjectID:    a.ProjectID,
			ActivityID:   a.ID,
			Label:        label,
			TargetDate:   target,
			Progress:     clampPercent(in.Progress),
			Status:       status,
			ReviewStatus: domain.ReviewDraft,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return e.Repo.InsertMilestone(ctx, tx, m)
	})
	return m, err
}

func (e Engine) GetMilestone(ctx context.Context, id string) (domain.Milestone, error) {
	return e.Repo.GetMilestone(ctx, id)
}

// ListMilestones returns the milestones of one activity, or of a whole
// project when activityID is empty.
func (e Engine) ListMilestones(ctx context.Context, projectID, activityID string) ([]domain.Milestone, error) {
	return e.Repo.ListMilestones(ctx, repo.MilestoneFilters{ProjectID: projectID, ActivityID: activityID})
}

func (e Engine) mutateMilestone(ctx context.Context, id string, fn func(m *domain.Milestone) error) (domain.Milestone, error) {
	var m domain.Milestone
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if m, err = e.Repo.GetMilestoneTx(ctx, tx, id); err != nil {
			return err
		}
		if err := fn(&m); err != nil {
			return err
		}
		m.UpdatedAt = e.stamp()
		return e.Repo.UpdateMilestone(ctx, tx, m)
	})
	if err != nil {
		return domain.Milestone{}, err
	}
	return m, nil
}

// SetMilestoneStatus does not touch progress; the two are independent.
func (e Engine) SetMilestoneStatus(ctx context.Context, id string, status domain.MilestoneStatus) (domain.Milestone, error) {
	if !status.Valid() {
		return domain.Milestone{}, invalidf("unknown milestone status %q", status)
	}
	return e.mutateMilestone(ctx, id, func(m *domain.Milestone) error {
		m.Status = status
		return nil
	})
}

func (e Engine) SetMilestoneProgress(ctx context.Context, id string, progress int) (domain.Milestone, error) {
	return e.mutateMilestone(ctx, id, func(m *domain.Milestone) error {
		m.Progress = clampPercent(progress)
		return nil
	})
}

func (e Engine) SubmitMilestone(ctx context.Context, id string, in ReviewInput) (domain.Milestone, error) {
	return e.ReviewMilestone(ctx, id, ActionSubmit, in)
}

func (e Engine) ValidateMilestone(ctx context.Context, id string, in ReviewInput) (domain.Milestone, error) {
	return e.ReviewMilestone(ctx, id, ActionValidate, in)
}

func (e Engine) RejectMilestone(ctx context.Context, id string, in ReviewInput) (domain.Milestone, error) {
	return e.ReviewMilestone(ctx, id, ActionReject, in)
}

func (e Engine) ReviewMilestone(ctx context.Context, id string, action ReviewAction, in ReviewInput) (domain.Milestone, error) {
	m, err := e.mutateMilestone(ctx, id, func(m *domain.Milestone) error {
		next, err := ensureReviewTransition("milestone", m.ID, m.ReviewStatus, action)
		if err != nil {
			return err
		}
		m.ReviewStatus = next
		return nil
	})
	if err != nil {
		return m, err
	}
	e.record(ctx, domain.EventDraft{
		ProjectID:   m.ProjectID,
		ActivityID:  m.ActivityID,
		MilestoneID: m.ID,
		Type:        eventFor("milestone", action),
		By:          in.By,
		Notes:       in.Notes,
		Payload: domain.MilestoneSnapshot{
			Label:        m.Label,
			Status:       m.Status,
			Progress:     m.Progress,
			ReviewStatus: m.ReviewStatus,
		},
	})
	return m, nil
}
