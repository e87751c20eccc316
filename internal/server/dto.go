package server

import (
	"encoding/json"

	"planboard/internal/domain"
	"planboard/internal/engine"
)

// Request payloads

type CreateProjectRequest struct {
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	Description   string `json:"description,omitempty"`
	PlannedBudget int64  `json:"planned_budget,omitempty" minimum:"0"`
	Currency      string `json:"currency,omitempty"`
}

type SetBudgetRequest struct {
	PlannedBudget int64 `json:"planned_budget" minimum:"0"`
}

// ActivityDraftRequest leaves every field optional so the creation checks,
// not schema validation, report what is missing.
type ActivityDraftRequest struct {
	Title           string              `json:"title,omitempty"`
	Description     string              `json:"description,omitempty"`
	Type            string              `json:"type,omitempty"`
	StartDate       string              `json:"start_date,omitempty"`
	EndDate         string              `json:"end_date,omitempty"`
	PlannedBudget   *int64              `json:"planned_budget,omitempty"`
	Assignee        string              `json:"assignee,omitempty"`
	AssigneeType    string              `json:"assignee_type,omitempty"`
	Category        string              `json:"category,omitempty"`
	Due             string              `json:"due,omitempty"`
	KPITarget       *float64            `json:"kpi_target,omitempty"`
	KPIUnit         string              `json:"kpi_unit,omitempty"`
	SessionsPlanned *int                `json:"sessions_planned,omitempty"`
	Attachments     []domain.Attachment `json:"attachments,omitempty"`
}

func (r ActivityDraftRequest) draft(projectID string) engine.ActivityDraft {
	return engine.ActivityDraft{
		ProjectID:       projectID,
		Title:           r.Title,
		Description:     r.Description,
		Type:            domain.ActivityType(r.Type),
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
		PlannedBudget:   r.PlannedBudget,
		Assignee:        r.Assignee,
		AssigneeType:    domain.AssigneeType(r.AssigneeType),
		Category:        r.Category,
		Due:             r.Due,
		KPITarget:       r.KPITarget,
		KPIUnit:         r.KPIUnit,
		SessionsPlanned: r.SessionsPlanned,
		Attachments:     r.Attachments,
	}
}

type SetStatusRequest struct {
	Status string `json:"status" enum:"todo,in_progress,blocked,done"`
}

// SetProgressRequest clears the stored value when progress is omitted.
type SetProgressRequest struct {
	Progress *int `json:"progress,omitempty"`
}

type ReviewRequest struct {
	Notes string `json:"notes,omitempty"`
}

type AddAttachmentRequest struct {
	Name string `json:"name"`
	Size int64  `json:"size,omitempty" minimum:"0"`
	Type string `json:"type,omitempty"`
}

type AddMilestoneRequest struct {
	Label      string `json:"label"`
	TargetDate string `json:"target_date,omitempty"`
	Progress   int    `json:"progress,omitempty"`
	Status     string `json:"status,omitempty" enum:"not_started,on_track,at_risk,completed"`
}

type SetMilestoneStatusRequest struct {
	Status string `json:"status" enum:"not_started,on_track,at_risk,completed"`
}

type SetMilestoneProgressRequest struct {
	Progress int `json:"progress"`
}

type AddExpenseRequest struct {
	ActivityID string `json:"activity_id"`
	Label      string `json:"label"`
	Amount     int64  `json:"amount"`
	SpentOn    string `json:"spent_on,omitempty"`
}

type SubmitReportRequest struct {
	Title   string `json:"title"`
	Period  string `json:"period"`
	Summary string `json:"summary,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

type SubmitBeneficiariesRequest struct {
	ActivityID string         `json:"activity_id,omitempty"`
	Total      int            `json:"total"`
	Breakdown  map[string]int `json:"breakdown,omitempty"`
	Notes      string         `json:"notes,omitempty"`
}

// Response payloads

type EventResponse struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"project_id"`
	ActivityID  string         `json:"activity_id,omitempty"`
	MilestoneID string         `json:"milestone_id,omitempty"`
	Type        string         `json:"type"`
	By          string         `json:"by"`
	Notes       string         `json:"notes,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	Timestamp   string         `json:"timestamp"`
}

type paginatedEvents struct {
	Items []EventResponse `json:"items"`
}

type assigneeCatalog struct {
	AssigneeType string                `json:"assignee_type,omitempty"`
	Items        []domain.Organization `json:"items"`
}

func eventResponse(ev domain.WorkflowEvent) EventResponse {
	resp := EventResponse{
		ID:          ev.ID,
		ProjectID:   ev.ProjectID,
		ActivityID:  ev.ActivityID,
		MilestoneID: ev.MilestoneID,
		Type:        string(ev.Type),
		By:          ev.By,
		Notes:       ev.Notes,
		Timestamp:   ev.Timestamp,
	}
	if ev.Payload != nil {
		if raw, err := json.Marshal(ev.Payload); err == nil {
			_ = json.Unmarshal(raw, &resp.Payload)
		}
	}
	return resp
}

func mapEvents(items []domain.WorkflowEvent) []EventResponse {
	res := make([]EventResponse, 0, len(items))
	for _, ev := range items {
		res = append(res, eventResponse(ev))
	}
	return res
}

func nonNilSlice[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
