package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"planboard/internal/config"
	"planboard/internal/db"
	"planboard/internal/domain"
	"planboard/internal/engine"
	"planboard/internal/events"
	"planboard/internal/kv"
	"planboard/internal/migrate"
	"planboard/internal/workflowlog"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	Bus    *events.Bus
	client *http.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, migrate.Migrate(conn))

	bus := events.NewBus(zap.NewNop())
	log := workflowlog.New(kv.NewMemory(), workflowlog.Options{Notifier: bus})
	e := engine.New(conn, config.Default("proj-1"), log, nil)
	_, err = e.CreateProject(context.Background(), engine.ProjectInput{ID: "proj-1", PlannedBudget: 100000, Currency: "XOF"})
	require.NoError(t, err)

	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: testSecret, AllowActorHeader: true},
	})
	require.NoError(t, err)
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		bus.Close()
		conn.Close()
	})
	return &testServer{URL: "http://" + ln.Addr().String() + "/v0", Engine: e, Bus: bus, client: &http.Client{}}
}

var asAmina = map[string]string{"X-Actor-Id": "amina"}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = bytes.NewReader(nil)
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := s.client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, data []byte) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(data, &env), string(data))
	return env
}

func activityRequest(title string, planned int64) map[string]any {
	return map[string]any{
		"title":          title,
		"type":           "distribution",
		"start_date":     "2025-03-01",
		"end_date":       "2025-06-30",
		"planned_budget": planned,
		"assignee":       "org-coop-nord",
		"assignee_type":  "distributor",
	}
}

func (s *testServer) createActivity(t *testing.T, title string, planned int64) domain.Activity {
	t.Helper()
	res, data := s.do(t, http.MethodPost, "/projects/proj-1/activities", activityRequest(title, planned), asAmina)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var a domain.Activity
	require.NoError(t, json.Unmarshal(data, &a))
	return a
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	res, _ := srv.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, data := srv.do(t, http.MethodGet, "/projects/proj-1/activities", nil, nil)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "unauthorized", decodeError(t, data).Error.Code)

	res, _ = srv.do(t, http.MethodGet, "/projects", nil, map[string]string{"Authorization": "Bearer not-a-token"})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestBearerTokenSetsActor(t *testing.T) {
	srv := newTestServer(t)
	a := srv.createActivity(t, "Seed distribution", 1000)

	token, err := SignToken(testSecret, "kofi", time.Hour)
	require.NoError(t, err)
	res, data := srv.do(t, http.MethodPost, "/projects/proj-1/activities/"+a.ID+"/submit",
		map[string]any{"notes": "ready"}, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	events := srv.Engine.Events(context.Background(), workflowlog.Filter{ActivityID: a.ID})
	require.Len(t, events, 1)
	assert.Equal(t, "kofi", events[0].By)
	assert.Equal(t, "ready", events[0].Notes)
}

func TestCreateActivityAndBudgetCeiling(t *testing.T) {
	srv := newTestServer(t)
	a := srv.createActivity(t, "Seed distribution", 90000)
	assert.Equal(t, "Coopérative du Nord", a.Assignee)
	assert.Equal(t, int64(31500), a.Allocated)
	assert.Equal(t, domain.ReviewDraft, a.ReviewStatus)

	res, data := srv.do(t, http.MethodPost, "/projects/proj-1/activities", activityRequest("Too much", 15000), asAmina)
	require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode, string(data))
	env := decodeError(t, data)
	assert.Equal(t, "creation_blocked", env.Error.Code)
	assert.Contains(t, env.Error.Message, "budget exceeded by 5000")
	budget, ok := env.Error.Details["budget"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 10000, budget["remaining"])
	assert.EqualValues(t, 5000, budget["excess"])

	res, data = srv.do(t, http.MethodGet, "/projects/proj-1/activities", nil, asAmina)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var list []domain.Activity
	require.NoError(t, json.Unmarshal(data, &list))
	assert.Len(t, list, 1)
}

func TestCheckDraftReportsMissing(t *testing.T) {
	srv := newTestServer(t)
	res, data := srv.do(t, http.MethodPost, "/projects/proj-1/activities/check", map[string]any{"title": "Half done"}, asAmina)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var check engine.DraftCheck
	require.NoError(t, json.Unmarshal(data, &check))
	assert.True(t, check.Blocked)
	assert.ElementsMatch(t, []string{"type", "start_date", "end_date", "planned_budget", "assignee"}, check.Missing)

	res, data = srv.do(t, http.MethodPost, "/projects/ghost/activities/check", activityRequest("A", 1), asAmina)
	require.Equal(t, http.StatusNotFound, res.StatusCode, string(data))
}

func TestReviewTransitions(t *testing.T) {
	srv := newTestServer(t)
	a := srv.createActivity(t, "Training", 1000)
	base := "/projects/proj-1/activities/" + a.ID

	res, data := srv.do(t, http.MethodPost, base+"/validate", map[string]any{}, asAmina)
	require.Equal(t, http.StatusConflict, res.StatusCode, string(data))
	assert.Equal(t, "invalid_transition", decodeError(t, data).Error.Code)

	res, data = srv.do(t, http.MethodPost, base+"/archive", map[string]any{}, asAmina)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodPost, base+"/submit", map[string]any{}, asAmina)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	res, data = srv.do(t, http.MethodPost, base+"/validate", map[string]any{"notes": "ok"}, asAmina)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var validated domain.Activity
	require.NoError(t, json.Unmarshal(data, &validated))
	assert.Equal(t, domain.ReviewValidated, validated.ReviewStatus)

	res, data = srv.do(t, http.MethodGet, "/projects/proj-1/events?activity_id="+a.ID, nil, asAmina)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var page paginatedEvents
	require.NoError(t, json.Unmarshal(data, &page))
	require.Len(t, page.Items, 2)
	assert.Equal(t, string(domain.EventActivityApprove), page.Items[0].Type)
	assert.Equal(t, string(domain.EventActivitySubmit), page.Items[1].Type)
	assert.Equal(t, "Training", page.Items[0].Payload["title"])
}

func TestStatusProgressAndBoard(t *testing.T) {
	srv := newTestServer(t)
	a := srv.createActivity(t, "Wells", 1000)
	base := "/projects/proj-1/activities/" + a.ID

	res, data := srv.do(t, http.MethodPut, base+"/status", map[string]any{"status": "blocked"}, asAmina)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	res, data = srv.do(t, http.MethodPut, base+"/progress", map[string]any{"progress": 140}, asAmina)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var updated domain.Activity
	require.NoError(t, json.Unmarshal(data, &updated))
	require.NotNil(t, updated.Progress)
	assert.Equal(t, 100, *updated.Progress)

	res, data = srv.do(t, http.MethodPut, base+"/progress", map[string]any{}, asAmina)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	updated = domain.Activity{}
	require.NoError(t, json.Unmarshal(data, &updated))
	assert.Nil(t, updated.Progress)

	res, data = srv.do(t, http.MethodGet, "/projects/proj-1/board", nil, asAmina)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var b engine.Board
	require.NoError(t, json.Unmarshal(data, &b))
	require.Len(t, b.Columns, 4)
	assert.Equal(t, domain.StatusBlocked, b.Columns[2].Status)
	require.Len(t, b.Columns[2].Cards, 1)
	assert.Equal(t, 25, b.Columns[2].Cards[0].Progress)
	assert.Equal(t, engine.ColorRed, b.Columns[2].Cards[0].Color)
}

func TestNotFoundAcrossProjects(t *testing.T) {
	srv := newTestServer(t)
	a := srv.createActivity(t, "Wells", 1000)
	_, err := srv.Engine.CreateProject(context.Background(), engine.ProjectInput{ID: "proj-2", PlannedBudget: 10})
	require.NoError(t, err)

	res, data := srv.do(t, http.MethodGet, "/projects/proj-1/activities/missing", nil, asAmina)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "not_found", decodeError(t, data).Error.Code)

	res, _ = srv.do(t, http.MethodGet, "/projects/proj-2/activities/"+a.ID, nil, asAmina)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	res, _ = srv.do(t, http.MethodDelete, "/projects/proj-2/activities/"+a.ID, nil, asAmina)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestClearActivityEventsStaysInProject(t *testing.T) {
	srv := newTestServer(t)
	a := srv.createActivity(t, "Wells", 1000)
	res, data := srv.do(t, http.MethodPost, "/projects/proj-1/activities/"+a.ID+"/submit", map[string]any{}, asAmina)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	res, _ = srv.do(t, http.MethodDelete, "/projects/other/activities/"+a.ID+"/events", nil, asAmina)
	require.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Len(t, srv.Engine.Events(context.Background(), workflowlog.Filter{ProjectID: "proj-1", ActivityID: a.ID}), 1)

	res, _ = srv.do(t, http.MethodDelete, "/projects/proj-1/activities/"+a.ID+"/events", nil, asAmina)
	require.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Empty(t, srv.Engine.Events(context.Background(), workflowlog.Filter{ProjectID: "proj-1", ActivityID: a.ID}))
}

func TestMilestonesExpensesAndDelete(t *testing.T) {
	srv := newTestServer(t)
	a := srv.createActivity(t, "Wells", 1000)
	base := "/projects/proj-1/activities/" + a.ID

	res, data := srv.do(t, http.MethodPost, base+"/milestones", map[string]any{"label": "Site survey", "target_date": "2025-04-01"}, asAmina)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var m domain.Milestone
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, domain.MilestoneNotStarted, m.Status)

	res, data = srv.do(t, http.MethodPut, "/projects/proj-1/milestones/"+m.ID+"/progress", map[string]any{"progress": 60}, asAmina)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	res, data = srv.do(t, http.MethodPost, "/projects/proj-1/milestones/"+m.ID+"/submit", map[string]any{}, asAmina)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodPost, "/projects/proj-1/expenses", map[string]any{"activity_id": a.ID, "label": "Fuel", "amount": 0}, asAmina)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	res, data = srv.do(t, http.MethodPost, "/projects/proj-1/expenses", map[string]any{"activity_id": a.ID, "label": "Fuel", "amount": 120, "spent_on": "2025-03-05"}, asAmina)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var x domain.Expense
	require.NoError(t, json.Unmarshal(data, &x))
	res, data = srv.do(t, http.MethodPost, "/projects/proj-1/expenses/"+x.ID+"/approve", map[string]any{}, asAmina)
	require.Equal(t, http.StatusConflict, res.StatusCode, string(data))
	res, data = srv.do(t, http.MethodPost, "/projects/proj-1/expenses/"+x.ID+"/submit", map[string]any{}, asAmina)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodGet, "/projects/proj-1/budget", nil, asAmina)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var sum engine.BudgetSummary
	require.NoError(t, json.Unmarshal(data, &sum))
	assert.Equal(t, int64(120), sum.Spent)
	assert.Equal(t, int64(99000), sum.Remaining)

	res, _ = srv.do(t, http.MethodDelete, base, nil, asAmina)
	require.Equal(t, http.StatusNoContent, res.StatusCode)
	res, data = srv.do(t, http.MethodGet, "/projects/proj-1/milestones", nil, asAmina)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, "[]", string(data))

	// the log outlives the activity until it is cleared explicitly
	assert.Len(t, srv.Engine.Events(context.Background(), workflowlog.Filter{ActivityID: a.ID}), 2)
	res, _ = srv.do(t, http.MethodDelete, base+"/events", nil, asAmina)
	require.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Empty(t, srv.Engine.Events(context.Background(), workflowlog.Filter{ActivityID: a.ID}))
}

func TestSubmissions(t *testing.T) {
	srv := newTestServer(t)
	res, data := srv.do(t, http.MethodPost, "/projects/proj-1/reports", map[string]any{"title": "Q1", "period": "2025-Q1"}, asAmina)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var ev EventResponse
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, string(domain.EventReportSubmit), ev.Type)
	assert.Equal(t, "amina", ev.By)

	res, data = srv.do(t, http.MethodPost, "/projects/proj-1/beneficiaries",
		map[string]any{"total": 10, "breakdown": map[string]int{"women": 8, "youth": 5}}, asAmina)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodPost, "/projects/proj-1/beneficiaries",
		map[string]any{"total": 20, "breakdown": map[string]int{"women": 8, "youth": 5}}, asAmina)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))

	res, _ = srv.do(t, http.MethodDelete, "/events", nil, asAmina)
	require.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Empty(t, srv.Engine.Events(context.Background(), workflowlog.Filter{}))
}

func TestResourcesAndAssignees(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.Engine.Repo.UpsertResources(context.Background(), []domain.Resource{
		{ID: "r1", Title: "Seed storage guide", Tags: []string{"seeds", "storage"}, Category: "guide", Year: 2023, Language: "fr", PublishedAt: "2023-05-01"},
		{ID: "r2", Title: "Irrigation basics", Tags: []string{"water"}, Category: "guide", Year: 2024, Language: "en", PublishedAt: "2024-02-01"},
		{ID: "r3", Title: "Annual report", Category: "report", Year: 2024, Language: "en", PublishedAt: "2024-12-01"},
	}))

	res, data := srv.do(t, http.MethodGet, "/resources?category=guide&sort=oldest&page_size=1", nil, asAmina)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var page struct {
		Items      []domain.Resource `json:"items"`
		Total      int               `json:"total"`
		TotalPages int               `json:"total_pages"`
	}
	require.NoError(t, json.Unmarshal(data, &page))
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "r1", page.Items[0].ID)

	res, data = srv.do(t, http.MethodGet, "/resources?tags=seeds,storage", nil, asAmina)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	require.NoError(t, json.Unmarshal(data, &page))
	assert.Equal(t, 1, page.Total)

	res, data = srv.do(t, http.MethodGet, "/assignees?assignee_type=trainer", nil, asAmina)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var catalog assigneeCatalog
	require.NoError(t, json.Unmarshal(data, &catalog))
	names := []string{}
	for _, org := range catalog.Items {
		names = append(names, org.Name)
	}
	assert.ElementsMatch(t, []string{"Centre de Formation Rurale", "Union des Groupements"}, names)

	res, _ = srv.do(t, http.MethodGet, "/assignees?assignee_type=pilot", nil, asAmina)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestWebhookDelivery(t *testing.T) {
	srv := newTestServer(t)

	var (
		mu       sync.Mutex
		received []http.Header
		bodies   []EventResponse
	)
	done := make(chan struct{}, 4)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev EventResponse
		_ = json.NewDecoder(r.Body).Decode(&ev)
		mu.Lock()
		received = append(received, r.Header.Clone())
		bodies = append(bodies, ev)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
		done <- struct{}{}
	}))
	t.Cleanup(hook.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, StartWebhooks(ctx, srv.Bus, []config.WebhookConfig{
		{URL: hook.URL, Events: []string{"report:submit"}, Secret: "s3cret"},
	}, zap.NewNop()))

	a := srv.createActivity(t, "Wells", 1000)
	res, _ := srv.do(t, http.MethodPost, "/projects/proj-1/activities/"+a.ID+"/submit", map[string]any{}, asAmina)
	require.Equal(t, http.StatusOK, res.StatusCode)
	res, _ = srv.do(t, http.MethodPost, "/projects/proj-1/reports", map[string]any{"title": "Q1", "period": "2025-Q1"}, asAmina)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("webhook not called")
	}
	// give a filtered-out delivery a chance to show up
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "report:submit", received[0].Get("X-Planboard-Event"))
	assert.Equal(t, "proj-1", received[0].Get("X-Planboard-Project"))
	assert.Equal(t, "s3cret", received[0].Get("X-Planboard-Secret"))
	assert.Equal(t, bodies[0].ID, received[0].Get("X-Planboard-Delivery"))
	assert.Equal(t, "Q1", bodies[0].Payload["title"])
}
