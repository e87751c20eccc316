package engine

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"planboard/internal/config"
	"planboard/internal/domain"
	"planboard/internal/kv"
	"planboard/internal/repo"
	"planboard/internal/workflowlog"
)

const timeLayout = time.RFC3339

// Engine owns activities, milestones and expenses and records review
// actions in the workflow log.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Log    *workflowlog.Log
	Config *config.Config
	Logger *zap.Logger
	Now    func() time.Time
}

// New wires an engine. A nil log falls back to an in-memory one.
func New(db *sql.DB, cfg *config.Config, log *workflowlog.Log, logger *zap.Logger) Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if log == nil {
		log = workflowlog.New(kv.NewMemory(), workflowlog.Options{Logger: logger})
	}
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Log:    log,
		Config: cfg,
		Logger: logger.With(zap.String("component", "engine")),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(timeLayout)
}

func (e Engine) logger() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.NewNop()
}

// record appends to the workflow log after the state change has committed.
func (e Engine) record(ctx context.Context, draft domain.EventDraft) domain.WorkflowEvent {
	ev := e.Log.Append(ctx, draft)
	e.logger().Info("workflow event",
		zap.String("type", string(ev.Type)),
		zap.String("project_id", ev.ProjectID),
		zap.String("activity_id", ev.ActivityID),
		zap.String("milestone_id", ev.MilestoneID),
		zap.String("by", ev.By))
	return ev
}

// Events lists the workflow log.
func (e Engine) Events(ctx context.Context, f workflowlog.Filter) []domain.WorkflowEvent {
	return e.Log.List(ctx, f)
}

func clampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
