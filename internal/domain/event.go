package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// EventType is the closed set of workflow actions recorded in the audit log.
type EventType string

const (
	EventActivitySubmit      EventType = "activity:submit"
	EventActivityApprove     EventType = "activity:approve"
	EventActivityReject      EventType = "activity:reject"
	EventMilestoneSubmit     EventType = "milestone:submit"
	EventMilestoneApprove    EventType = "milestone:approve"
	EventMilestoneReject     EventType = "milestone:reject"
	EventReportSubmit        EventType = "report:submit"
	EventBeneficiariesSubmit EventType = "beneficiaries:submit"
	EventExpenseSubmit       EventType = "expense:submit"
	EventExpenseApprove      EventType = "expense:approve"
	EventExpenseReject       EventType = "expense:reject"
)

var EventTypes = []EventType{
	EventActivitySubmit, EventActivityApprove, EventActivityReject,
	EventMilestoneSubmit, EventMilestoneApprove, EventMilestoneReject,
	EventReportSubmit, EventBeneficiariesSubmit,
	EventExpenseSubmit, EventExpenseApprove, EventExpenseReject,
}

func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Subject is the entity family before the colon ("activity", "expense", ...).
func (t EventType) Subject() string {
	subject, _, _ := strings.Cut(string(t), ":")
	return subject
}

// Payload is a snapshot attached to an event. The variant is fixed by the
// event type's subject.
type Payload interface {
	subject() string
}

type ActivitySnapshot struct {
	Title         string         `json:"title"`
	Status        ActivityStatus `json:"status"`
	ReviewStatus  ReviewStatus   `json:"review_status"`
	PlannedBudget int64          `json:"planned_budget"`
	Allocated     int64          `json:"allocated"`
}

type MilestoneSnapshot struct {
	Label        string          `json:"label"`
	Status       MilestoneStatus `json:"status"`
	Progress     int             `json:"progress"`
	ReviewStatus ReviewStatus    `json:"review_status"`
}

type ExpenseSnapshot struct {
	ExpenseID    string       `json:"expense_id"`
	Label        string       `json:"label"`
	Amount       int64        `json:"amount"`
	SpentOn      string       `json:"spent_on"`
	ReviewStatus ReviewStatus `json:"review_status"`
}

type ReportSubmission struct {
	Title   string `json:"title"`
	Period  string `json:"period"`
	Summary string `json:"summary,omitempty"`
}

type BeneficiariesReport struct {
	Total     int            `json:"total"`
	Breakdown map[string]int `json:"breakdown,omitempty"`
}

func (ActivitySnapshot) subject() string    { return "activity" }
func (MilestoneSnapshot) subject() string   { return "milestone" }
func (ExpenseSnapshot) subject() string     { return "expense" }
func (ReportSubmission) subject() string    { return "report" }
func (BeneficiariesReport) subject() string { return "beneficiaries" }

// WorkflowEvent is an immutable audit record.
type WorkflowEvent struct {
	ID          string
	ProjectID   string
	ActivityID  string
	MilestoneID string
	Type        EventType
	By          string
	Notes       string
	Payload     Payload
	Timestamp   string
}

// EventDraft is a WorkflowEvent before the log assigns its id and timestamp.
type EventDraft struct {
	ProjectID   string
	ActivityID  string
	MilestoneID string
	Type        EventType
	By          string
	Notes       string
	Payload     Payload
}

var ErrPayloadMismatch = errors.New("payload does not match event type")

// NewEventDraft builds a draft and rejects payloads of the wrong variant.
func NewEventDraft(projectID string, t EventType, by string, payload Payload) (EventDraft, error) {
	d := EventDraft{ProjectID: projectID, Type: t, By: by, Payload: payload}
	if err := d.Validate(); err != nil {
		return EventDraft{}, err
	}
	return d, nil
}

func (d EventDraft) Validate() error {
	if !d.Type.Valid() {
		return fmt.Errorf("unknown event type %q", d.Type)
	}
	if strings.TrimSpace(d.ProjectID) == "" {
		return errors.New("event project is required")
	}
	if d.Payload != nil && d.Payload.subject() != d.Type.Subject() {
		return fmt.Errorf("%w: %s carries %s payload", ErrPayloadMismatch, d.Type, d.Payload.subject())
	}
	return nil
}

type eventJSON struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id"`
	ActivityID  string          `json:"activity_id,omitempty"`
	MilestoneID string          `json:"milestone_id,omitempty"`
	Type        EventType       `json:"type"`
	By          string          `json:"by"`
	Notes       string          `json:"notes,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Timestamp   string          `json:"timestamp"`
}

func (e WorkflowEvent) MarshalJSON() ([]byte, error) {
	out := eventJSON{
		ID:          e.ID,
		ProjectID:   e.ProjectID,
		ActivityID:  e.ActivityID,
		MilestoneID: e.MilestoneID,
		Type:        e.Type,
		By:          e.By,
		Notes:       e.Notes,
		Timestamp:   e.Timestamp,
	}
	if e.Payload != nil {
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", e.Type, err)
		}
		out.Payload = raw
	}
	return json.Marshal(out)
}

func (e *WorkflowEvent) UnmarshalJSON(data []byte) error {
	var in eventJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if !in.Type.Valid() {
		return fmt.Errorf("unknown event type %q", in.Type)
	}
	*e = WorkflowEvent{
		ID:          in.ID,
		ProjectID:   in.ProjectID,
		ActivityID:  in.ActivityID,
		MilestoneID: in.MilestoneID,
		Type:        in.Type,
		By:          in.By,
		Notes:       in.Notes,
		Timestamp:   in.Timestamp,
	}
	if len(in.Payload) == 0 || string(in.Payload) == "null" {
		return nil
	}
	payload, err := decodePayload(in.Type, in.Payload)
	if err != nil {
		return err
	}
	e.Payload = payload
	return nil
}

func decodePayload(t EventType, raw json.RawMessage) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch t.Subject() {
	case "activity":
		var v ActivitySnapshot
		err = json.Unmarshal(raw, &v)
		p = v
	case "milestone":
		var v MilestoneSnapshot
		err = json.Unmarshal(raw, &v)
		p = v
	case "expense":
		var v ExpenseSnapshot
		err = json.Unmarshal(raw, &v)
		p = v
	case "report":
		var v ReportSubmission
		err = json.Unmarshal(raw, &v)
		p = v
	case "beneficiaries":
		var v BeneficiariesReport
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		return nil, fmt.Errorf("no payload variant for %s", t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return p, nil
}
