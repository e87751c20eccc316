package domain

type ActivityStatus string

const (
	StatusTodo       ActivityStatus = "todo"
	StatusInProgress ActivityStatus = "in_progress"
	StatusBlocked    ActivityStatus = "blocked"
	StatusDone       ActivityStatus = "done"
)

// ActivityStatuses lists the board columns in display order.
var ActivityStatuses = []ActivityStatus{StatusTodo, StatusInProgress, StatusBlocked, StatusDone}

func (s ActivityStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusBlocked, StatusDone:
		return true
	}
	return false
}

// ReviewStatus is the approval lifecycle shared by activities, milestones and expenses.
type ReviewStatus string

const (
	ReviewDraft     ReviewStatus = "draft"
	ReviewSubmitted ReviewStatus = "submitted"
	ReviewValidated ReviewStatus = "validated"
	ReviewRejected  ReviewStatus = "rejected"
)

func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewDraft, ReviewSubmitted, ReviewValidated, ReviewRejected:
		return true
	}
	return false
}

type ActivityType string

const (
	TypePurchase            ActivityType = "purchase"
	TypeProduction          ActivityType = "production"
	TypeDistribution        ActivityType = "distribution"
	TypeTraining            ActivityType = "training"
	TypeResearchDevelopment ActivityType = "research-development"
	TypeOther               ActivityType = "other"
)

var ActivityTypes = []ActivityType{
	TypePurchase, TypeProduction, TypeDistribution, TypeTraining, TypeResearchDevelopment, TypeOther,
}

func (t ActivityType) Valid() bool {
	for _, known := range ActivityTypes {
		if t == known {
			return true
		}
	}
	return false
}

type AssigneeType string

const (
	AssigneeDistributor AssigneeType = "distributor"
	AssigneeProducer    AssigneeType = "producer"
	AssigneeSupplier    AssigneeType = "supplier"
	AssigneePurchaser   AssigneeType = "purchaser"
	AssigneeTrainer     AssigneeType = "trainer"
	AssigneeProjectLead AssigneeType = "project-lead"
	AssigneeFieldAgent  AssigneeType = "field-agent"
	AssigneeOther       AssigneeType = "other"
	AssigneeRnD         AssigneeType = "r&d"
)

func (t AssigneeType) Valid() bool {
	switch t {
	case AssigneeDistributor, AssigneeProducer, AssigneeSupplier, AssigneePurchaser, AssigneeTrainer,
		AssigneeProjectLead, AssigneeFieldAgent, AssigneeOther, AssigneeRnD:
		return true
	}
	return false
}

type MilestoneStatus string

const (
	MilestoneNotStarted MilestoneStatus = "not_started"
	MilestoneOnTrack    MilestoneStatus = "on_track"
	MilestoneAtRisk     MilestoneStatus = "at_risk"
	MilestoneCompleted  MilestoneStatus = "completed"
)

func (s MilestoneStatus) Valid() bool {
	switch s {
	case MilestoneNotStarted, MilestoneOnTrack, MilestoneAtRisk, MilestoneCompleted:
		return true
	}
	return false
}

type Project struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	PlannedBudget int64  `json:"planned_budget"`
	Currency      string `json:"currency"`
	CreatedAt     string `json:"created_at" format:"date-time"`
}

// Attachment is file metadata only; bytes live in an external object store.
type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

type Activity struct {
	ID              string         `json:"id"`
	ProjectID       string         `json:"project_id"`
	Title           string         `json:"title"`
	Description     string         `json:"description,omitempty"`
	Type            ActivityType   `json:"type"`
	Status          ActivityStatus `json:"status"`
	ReviewStatus    ReviewStatus   `json:"review_status"`
	Assignee        string         `json:"assignee"`
	AssigneeType    AssigneeType   `json:"assignee_type,omitempty"`
	Category        string         `json:"category,omitempty"`
	Due             *string        `json:"due,omitempty" format:"date"`
	PlannedBudget   int64          `json:"planned_budget"`
	Allocated       int64          `json:"allocated"`
	KPITarget       *float64       `json:"kpi_target,omitempty"`
	KPIUnit         string         `json:"kpi_unit,omitempty"`
	Progress        *int           `json:"progress,omitempty"`
	StartDate       string         `json:"start_date" format:"date"`
	EndDate         string         `json:"end_date" format:"date"`
	SessionsPlanned *int           `json:"sessions_planned,omitempty"`
	Attachments     []Attachment   `json:"attachments,omitempty"`
	CreatedAt       string         `json:"created_at" format:"date-time"`
	UpdatedAt       string         `json:"updated_at" format:"date-time"`
}

type Milestone struct {
	ID           string          `json:"id"`
	ProjectID    string          `json:"project_id"`
	ActivityID   string          `json:"activity_id"`
	Label        string          `json:"label"`
	TargetDate   *string         `json:"target_date,omitempty" format:"date"`
	Progress     int             `json:"progress"`
	Status       MilestoneStatus `json:"status"`
	ReviewStatus ReviewStatus    `json:"review_status"`
	CreatedAt    string          `json:"created_at" format:"date-time"`
	UpdatedAt    string          `json:"updated_at" format:"date-time"`
}

type Expense struct {
	ID           string       `json:"id"`
	ProjectID    string       `json:"project_id"`
	ActivityID   string       `json:"activity_id"`
	Label        string       `json:"label"`
	Amount       int64        `json:"amount"`
	SpentOn      string       `json:"spent_on" format:"date"`
	ReviewStatus ReviewStatus `json:"review_status"`
	CreatedAt    string       `json:"created_at" format:"date-time"`
	UpdatedAt    string       `json:"updated_at" format:"date-time"`
}

type Resource struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Summary     string   `json:"summary,omitempty" yaml:"summary"`
	Tags        []string `json:"tags,omitempty" yaml:"tags"`
	Category    string   `json:"category,omitempty" yaml:"category"`
	Year        int      `json:"year,omitempty" yaml:"year"`
	Language    string   `json:"language,omitempty" yaml:"language"`
	PublishedAt string   `json:"published_at" yaml:"published_at" format:"date"`
	URL         string   `json:"url,omitempty" yaml:"url"`
}

// Organization is an entry of the assignee catalog.
type Organization struct {
	ID    string   `json:"id" yaml:"id"`
	Name  string   `json:"name" yaml:"name"`
	Roles []string `json:"roles" yaml:"roles"`
}
