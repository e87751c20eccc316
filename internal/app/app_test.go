package app

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"planboard/internal/config"
	"planboard/internal/domain"
	"planboard/internal/engine"
	"planboard/internal/workflowlog"
)

func openStack(t *testing.T, workspace string, opts Options) *Stack {
	t.Helper()
	opts.Workspace = workspace
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s, err := Open(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestResolveProjectWithoutConfig(t *testing.T) {
	s := openStack(t, t.TempDir(), Options{})
	ctx := context.Background()

	_, err := ResolveProject(ctx, s.Engine, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--project")

	_, err = ResolveProject(ctx, s.Engine, "ghost")
	require.Error(t, err)

	_, err = s.Engine.CreateProject(ctx, engine.ProjectInput{ID: "only", PlannedBudget: 10})
	require.NoError(t, err)
	p, err := ResolveProject(ctx, s.Engine, "")
	require.NoError(t, err)
	assert.Equal(t, "only", p.ID)

	_, err = s.Engine.CreateProject(ctx, engine.ProjectInput{ID: "second"})
	require.NoError(t, err)
	_, err = ResolveProject(ctx, s.Engine, "")
	require.Error(t, err)
	p, err = ResolveProject(ctx, s.Engine, "second")
	require.NoError(t, err)
	assert.Equal(t, "second", p.ID)
}

func TestResolveProjectSeedsFromConfig(t *testing.T) {
	ws := t.TempDir()
	cfg := config.Default("sahel-2025")
	cfg.Project.Name = "Sahel resilience"
	cfg.Project.PlannedBudget = 250000
	require.NoError(t, config.Write(ws, cfg))

	s := openStack(t, ws, Options{EventLogBackend: config.BackendMemory})
	assert.Equal(t, config.BackendMemory, s.Config.EventLog.Backend)

	p, err := ResolveProject(context.Background(), s.Engine, "")
	require.NoError(t, err)
	assert.Equal(t, "sahel-2025", p.ID)
	assert.Equal(t, "Sahel resilience", p.Name)
	assert.Equal(t, int64(250000), p.PlannedBudget)
	assert.Equal(t, "XOF", p.Currency)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Workspace: t.TempDir(), EventLogBackend: "etcd", Logger: zap.NewNop()})
	require.Error(t, err)
}

func TestOpenRejectsBrokenConfig(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(config.Path(ws), []byte("project:\n  id: p\nevent_log:\n  backend: etcd\n"), 0o644))
	_, err := Open(context.Background(), Options{Workspace: ws, Logger: zap.NewNop()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config.event_log.backend")
}

func TestWorkflowLogPersistsInSQLiteAcrossOpens(t *testing.T) {
	ws := t.TempDir()
	ctx := context.Background()

	s := openStack(t, ws, Options{})
	_, err := s.Engine.CreateProject(ctx, engine.ProjectInput{ID: "p1", PlannedBudget: 100})
	require.NoError(t, err)
	_, err = s.Engine.SubmitReport(ctx, "p1", domain.ReportSubmission{Title: "Q1", Period: "2025-Q1"}, engine.ReviewInput{By: "amina"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	again := openStack(t, ws, Options{})
	events := again.Engine.Events(ctx, workflowlog.Filter{ProjectID: "p1"})
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventReportSubmit, events[0].Type)
	assert.Equal(t, "amina", events[0].By)
}

func TestAppendedEventsReachTheBus(t *testing.T) {
	s := openStack(t, t.TempDir(), Options{EventLogBackend: config.BackendMemory})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan domain.WorkflowEvent, 1)
	require.NoError(t, s.Bus.Subscribe(ctx, func(_ context.Context, ev domain.WorkflowEvent) error {
		got <- ev
		return nil
	}))
	_, err := s.Engine.CreateProject(ctx, engine.ProjectInput{ID: "p1"})
	require.NoError(t, err)
	_, err = s.Engine.SubmitReport(ctx, "p1", domain.ReportSubmission{Title: "Q1", Period: "2025-Q1"}, engine.ReviewInput{By: "amina"})
	require.NoError(t, err)

	select {
	case ev := <-got:
		assert.Equal(t, domain.EventReportSubmit, ev.Type)
		assert.Equal(t, "p1", ev.ProjectID)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}
