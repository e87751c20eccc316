package planboardsdk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planboard/internal/config"
	"planboard/internal/db"
	"planboard/internal/engine"
	"planboard/internal/migrate"
	"planboard/internal/server"
)

func newClient(t *testing.T) *Client {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	e := engine.New(conn, config.Default("ngo"), nil, nil)
	_, err = e.CreateProject(context.Background(), engine.ProjectInput{ID: "ngo", PlannedBudget: 5000})
	require.NoError(t, err)

	h, err := server.New(server.Config{Engine: e, Auth: server.AuthConfig{AllowActorHeader: true}})
	require.NoError(t, err)
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	c := New(ts.URL, "ngo")
	c.ActorID = "field-officer"
	return c
}

func int64p(v int64) *int64 { return &v }

func TestClientActivityLifecycle(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	draft := Draft{
		Title:         "Cassava cuttings",
		Type:          "purchase",
		StartDate:     "2025-01-10",
		EndDate:       "2025-02-10",
		PlannedBudget: int64p(3000),
		Assignee:      "AgriSupply SARL",
		AssigneeType:  "supplier",
	}
	check, err := c.CheckDraft(ctx, draft)
	require.NoError(t, err)
	assert.False(t, check.Blocked)
	assert.Equal(t, int64(1050), check.Allocated)

	a, err := c.CreateActivity(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, "draft", a.ReviewStatus)

	a, err = c.ReviewActivity(ctx, a.ID, "submit", "")
	require.NoError(t, err)
	assert.Equal(t, "submitted", a.ReviewStatus)

	events, err := c.Events(ctx, a.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "activity:submit", events[0].Type)
	assert.Equal(t, "field-officer", events[0].By)

	list, err := c.Activities(ctx, "todo")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestClientBlockedCreation(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	_, err := c.CreateActivity(ctx, Draft{
		Title:         "Tractor",
		Type:          "purchase",
		StartDate:     "2025-01-10",
		EndDate:       "2025-02-10",
		PlannedBudget: int64p(7000),
		Assignee:      "AgriSupply SARL",
	})
	require.Error(t, err)
	assert.True(t, IsBlocked(err))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	budget, ok := apiErr.Details["budget"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2000, budget["excess"])
}

func TestClientExpensesAndBudget(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	a, err := c.CreateActivity(ctx, Draft{
		Title:         "Storage shed",
		Type:          "production",
		StartDate:     "2025-01-10",
		EndDate:       "2025-03-10",
		PlannedBudget: int64p(2000),
		Assignee:      "Coopérative du Nord",
	})
	require.NoError(t, err)

	m, err := c.AddMilestone(ctx, a.ID, "Foundation", "2025-02-01")
	require.NoError(t, err)
	assert.Equal(t, "not_started", m.Status)

	x, err := c.AddExpense(ctx, a.ID, "Cement", 400, "2025-01-20")
	require.NoError(t, err)
	_, err = c.ReviewExpense(ctx, x.ID, "approve", "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid_transition", apiErr.Code)

	_, err = c.ReviewExpense(ctx, x.ID, "submit", "")
	require.NoError(t, err)
	x, err = c.ReviewExpense(ctx, x.ID, "approve", "receipt checked")
	require.NoError(t, err)
	assert.Equal(t, "validated", x.ReviewStatus)

	b, err := c.Budget(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), b.Remaining)
	assert.Equal(t, int64(400), b.ApprovedSpend)

	ev, err := c.SubmitReport(ctx, "January", "2025-01", "")
	require.NoError(t, err)
	assert.Equal(t, "report:submit", ev.Type)
}
