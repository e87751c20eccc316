package planboardsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal planboard HTTP API client.
type Client struct {
	BaseURL     string
	ProjectID   string
	ActorID     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, projectID string) *Client {
	return &Client{
		BaseURL:   baseURL,
		ProjectID: projectID,
		Timeout:   10 * time.Second,
	}
}

// Activity represents the API activity model (partial).
type Activity struct {
	ID            string `json:"id"`
	ProjectID     string `json:"project_id"`
	Title         string `json:"title"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	ReviewStatus  string `json:"review_status"`
	Assignee      string `json:"assignee"`
	PlannedBudget int64  `json:"planned_budget"`
	Allocated     int64  `json:"allocated"`
	Progress      *int   `json:"progress,omitempty"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
}

// Draft is the payload checked before an activity is created.
type Draft struct {
	Title           string `json:"title,omitempty"`
	Description     string `json:"description,omitempty"`
	Type            string `json:"type,omitempty"`
	StartDate       string `json:"start_date,omitempty"`
	EndDate         string `json:"end_date,omitempty"`
	PlannedBudget   *int64 `json:"planned_budget,omitempty"`
	Assignee        string `json:"assignee,omitempty"`
	AssigneeType    string `json:"assignee_type,omitempty"`
	Due             string `json:"due,omitempty"`
	SessionsPlanned *int   `json:"sessions_planned,omitempty"`
}

type BudgetCheck struct {
	ProjectBudget int64 `json:"project_budget"`
	Committed     int64 `json:"committed"`
	Candidate     int64 `json:"candidate"`
	Remaining     int64 `json:"remaining"`
	Excess        int64 `json:"excess"`
	Exceeded      bool  `json:"exceeded"`
}

// DraftCheck is the outcome of the creation checks.
type DraftCheck struct {
	Blocked   bool        `json:"blocked"`
	Reason    string      `json:"reason"`
	Missing   []string    `json:"missing"`
	Invalid   []string    `json:"invalid"`
	Budget    BudgetCheck `json:"budget"`
	Allocated int64       `json:"allocated"`
}

type Milestone struct {
	ID           string `json:"id"`
	ActivityID   string `json:"activity_id"`
	Label        string `json:"label"`
	Progress     int    `json:"progress"`
	Status       string `json:"status"`
	ReviewStatus string `json:"review_status"`
}

type Expense struct {
	ID           string `json:"id"`
	ActivityID   string `json:"activity_id"`
	Label        string `json:"label"`
	Amount       int64  `json:"amount"`
	SpentOn      string `json:"spent_on"`
	ReviewStatus string `json:"review_status"`
}

type Budget struct {
	Planned       int64  `json:"planned"`
	Committed     int64  `json:"committed"`
	Allocated     int64  `json:"allocated"`
	Remaining     int64  `json:"remaining"`
	Spent         int64  `json:"spent"`
	ApprovedSpend int64  `json:"approved_spend"`
	Currency      string `json:"currency"`
}

// Event represents a workflow log entry.
type Event struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"project_id"`
	ActivityID  string         `json:"activity_id"`
	MilestoneID string         `json:"milestone_id"`
	Type        string         `json:"type"`
	By          string         `json:"by"`
	Notes       string         `json:"notes"`
	Payload     map[string]any `json:"payload"`
	Timestamp   string         `json:"timestamp"`
}

// APIError wraps non-2xx responses. Code and Details come from the error
// envelope when the body carries one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsBlocked reports whether err is a refused activity creation.
func IsBlocked(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == "creation_blocked"
}

// CheckDraft runs the creation checks without creating anything.
func (c *Client) CheckDraft(ctx context.Context, d Draft) (DraftCheck, error) {
	var resp DraftCheck
	err := c.do(ctx, http.MethodPost, c.projectPath("activities/check"), d, &resp)
	return resp, err
}

// CreateActivity creates an activity. A blocked draft returns an *APIError
// for which IsBlocked is true.
func (c *Client) CreateActivity(ctx context.Context, d Draft) (Activity, error) {
	var resp Activity
	err := c.do(ctx, http.MethodPost, c.projectPath("activities"), d, &resp)
	return resp, err
}

// Activities lists activities, optionally filtered by status.
func (c *Client) Activities(ctx context.Context, status string) ([]Activity, error) {
	endpoint := c.projectPath("activities")
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []Activity
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ReviewActivity applies submit, validate or reject.
func (c *Client) ReviewActivity(ctx context.Context, id, action, notes string) (Activity, error) {
	var resp Activity
	endpoint := c.projectPath(fmt.Sprintf("activities/%s/%s", url.PathEscape(id), url.PathEscape(action)))
	err := c.do(ctx, http.MethodPost, endpoint, reviewBody(notes), &resp)
	return resp, err
}

// AddMilestone adds a milestone to an activity.
func (c *Client) AddMilestone(ctx context.Context, activityID, label, targetDate string) (Milestone, error) {
	body := map[string]any{"label": label}
	if targetDate != "" {
		body["target_date"] = targetDate
	}
	var resp Milestone
	endpoint := c.projectPath(fmt.Sprintf("activities/%s/milestones", url.PathEscape(activityID)))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// AddExpense records an expense against an activity.
func (c *Client) AddExpense(ctx context.Context, activityID, label string, amount int64, spentOn string) (Expense, error) {
	body := map[string]any{
		"activity_id": activityID,
		"label":       label,
		"amount":      amount,
	}
	if spentOn != "" {
		body["spent_on"] = spentOn
	}
	var resp Expense
	err := c.do(ctx, http.MethodPost, c.projectPath("expenses"), body, &resp)
	return resp, err
}

// ReviewExpense applies submit, approve or reject.
func (c *Client) ReviewExpense(ctx context.Context, id, action, notes string) (Expense, error) {
	var resp Expense
	endpoint := c.projectPath(fmt.Sprintf("expenses/%s/%s", url.PathEscape(id), url.PathEscape(action)))
	err := c.do(ctx, http.MethodPost, endpoint, reviewBody(notes), &resp)
	return resp, err
}

// Budget returns the project's budget summary.
func (c *Client) Budget(ctx context.Context) (Budget, error) {
	var resp Budget
	err := c.do(ctx, http.MethodGet, c.projectPath("budget"), nil, &resp)
	return resp, err
}

// Events returns recent events, newest first.
func (c *Client) Events(ctx context.Context, activityID string, limit int) ([]Event, error) {
	q := url.Values{}
	if activityID != "" {
		q.Set("activity_id", activityID)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	endpoint := c.projectPath("events")
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Items []Event `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// SubmitReport records a progress report submission.
func (c *Client) SubmitReport(ctx context.Context, title, period, summary string) (Event, error) {
	body := map[string]any{"title": title, "period": period}
	if summary != "" {
		body["summary"] = summary
	}
	var resp Event
	err := c.do(ctx, http.MethodPost, c.projectPath("reports"), body, &resp)
	return resp, err
}

func reviewBody(notes string) map[string]any {
	if notes == "" {
		return map[string]any{}
	}
	return map[string]any{"notes": notes}
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return decodeAPIError(resp.StatusCode, b)
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var env struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Details = env.Error.Details
	}
	return apiErr
}

func (c *Client) projectPath(p string) string {
	project := url.PathEscape(c.ProjectID)
	return fmt.Sprintf("v0/projects/%s/%s", project, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
