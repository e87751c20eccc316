package engine

import (
	"context"
	"errors"
	"strings"

	"planboard/internal/domain"
)

// SubmitReport logs a report:submit event for the project.
func (e Engine) SubmitReport(ctx context.Context, projectID string, report domain.ReportSubmission, in ReviewInput) (domain.WorkflowEvent, error) {
	if strings.TrimSpace(report.Title) == "" {
		return domain.WorkflowEvent{}, invalidf("report title is required")
	}
	if strings.TrimSpace(report.Period) == "" {
		return domain.WorkflowEvent{}, invalidf("report period is required")
	}
	return e.submit(ctx, projectID, "", domain.EventReportSubmit, report, in)
}

// SubmitBeneficiaries logs reached beneficiaries, optionally for one activity.
// The breakdown must not add up to more than the total.
func (e Engine) SubmitBeneficiaries(ctx context.Context, projectID, activityID string, report domain.BeneficiariesReport, in ReviewInput) (domain.WorkflowEvent, error) {
	if report.Total < 0 {
		return domain.WorkflowEvent{}, invalidf("beneficiaries total must not be negative")
	}
	sum := 0
	for group, n := range report.Breakdown {
		if n < 0 {
			return domain.WorkflowEvent{}, invalidf("beneficiaries %s must not be negative", group)
		}
		sum += n
	}
	if sum > report.Total {
		return domain.WorkflowEvent{}, invalidf("beneficiaries breakdown %d exceeds total %d", sum, report.Total)
	}
	if activityID != "" {
		a, err := e.Repo.GetActivity(ctx, activityID)
		if err != nil {
			return domain.WorkflowEvent{}, err
		}
		if a.ProjectID != projectID {
			return domain.WorkflowEvent{}, invalidf("activity %s belongs to project %s", activityID, a.ProjectID)
		}
	}
	return e.submit(ctx, projectID, activityID, domain.EventBeneficiariesSubmit, report, in)
}

func (e Engine) submit(ctx context.Context, projectID, activityID string, t domain.EventType, payload domain.Payload, in ReviewInput) (domain.WorkflowEvent, error) {
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return domain.WorkflowEvent{}, err
	}
	draft, err := domain.NewEventDraft(projectID, t, in.By, payload)
	if err != nil {
		if errors.Is(err, domain.ErrPayloadMismatch) {
			return domain.WorkflowEvent{}, invalidf("%v", err)
		}
		return domain.WorkflowEvent{}, err
	}
	draft.ActivityID = activityID
	draft.Notes = in.Notes
	return e.record(ctx, draft), nil
}
