// Package app assembles the engine stack for a workspace: database, config,
// logger, workflow log backend and event bus.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"planboard/internal/config"
	"planboard/internal/db"
	"planboard/internal/domain"
	"planboard/internal/engine"
	"planboard/internal/events"
	"planboard/internal/kv"
	"planboard/internal/logging"
	"planboard/internal/migrate"
	"planboard/internal/repo"
	"planboard/internal/workflowlog"
)

type Options struct {
	Workspace string
	// EventLogBackend overrides config.event_log.backend when set.
	EventLogBackend string
	// LogLevel overrides config.logging.level when set.
	LogLevel string
	// Logger replaces the configured logger.
	Logger *zap.Logger
}

// Stack is an opened workspace. Close releases everything it holds.
type Stack struct {
	DB     *sql.DB
	Config *config.Config
	Engine engine.Engine
	Bus    *events.Bus
	Logger *zap.Logger

	closers []func() error
}

// Open loads the workspace config, migrates the database and wires the
// engine with its workflow log.
func Open(ctx context.Context, opts Options) (*Stack, error) {
	cfg, err := config.LoadOptional(opts.Workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default("")
	}
	switch opts.EventLogBackend {
	case "":
	case config.BackendSQLite, config.BackendMemory, config.BackendRedis:
		cfg.EventLog.Backend = opts.EventLogBackend
	default:
		return nil, fmt.Errorf("event log backend must be one of sqlite, redis, memory")
	}

	logger := opts.Logger
	if logger == nil {
		lc := logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}
		if opts.LogLevel != "" {
			lc.Level = opts.LogLevel
		}
		if logger, err = logging.New(lc); err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}

	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, err
	}
	s := &Stack{DB: conn, Config: cfg, Logger: logger}
	s.closers = append(s.closers, conn.Close)
	if err := migrate.Migrate(conn); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	store, closeStore := newStore(ctx, cfg, conn, logger)
	if closeStore != nil {
		s.closers = append(s.closers, closeStore)
	}
	s.Bus = events.NewBus(logger)
	s.closers = append(s.closers, s.Bus.Close)

	log := workflowlog.New(store, workflowlog.Options{
		Scope:    cfg.EventLog.Scope,
		Logger:   logger,
		Notifier: s.Bus,
	})
	s.Engine = engine.New(conn, cfg, log, logger)
	return s, nil
}

// Close runs the closers in reverse order and returns the first error.
func (s *Stack) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	if s.Logger != nil {
		_ = s.Logger.Sync()
	}
	return first
}

// newStore picks the workflow log backend. An unreachable redis is only
// logged; the log itself degrades to empty reads.
func newStore(ctx context.Context, cfg *config.Config, conn *sql.DB, logger *zap.Logger) (workflowlog.Store, func() error) {
	switch cfg.EventLog.Backend {
	case config.BackendMemory:
		return kv.NewMemory(), nil
	case config.BackendRedis:
		r := kv.NewRedis(kv.RedisConfig{
			Addr:     cfg.EventLog.Redis.Addr,
			Password: cfg.EventLog.Redis.Password,
			DB:       cfg.EventLog.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := r.Ping(pingCtx); err != nil {
			logger.Warn("workflow log redis unreachable", zap.String("addr", cfg.EventLog.Redis.Addr), zap.Error(err))
		}
		return r, r.Close
	default:
		return kv.NewSQLite(conn), nil
	}
}

// ResolveProject picks the active project: the override, else the only
// project in the database, else the one named in the config. A project named
// in the config but missing from the database is created from it.
func ResolveProject(ctx context.Context, eng engine.Engine, override string) (domain.Project, error) {
	id := strings.TrimSpace(override)
	if id == "" {
		p, err := eng.Repo.SingleProject(ctx)
		switch {
		case err == nil:
			return p, nil
		case !errors.Is(err, repo.ErrNotFound):
			return domain.Project{}, err
		}
		if eng.Config != nil {
			id = eng.Config.Project.ID
		}
	}
	if id == "" {
		return domain.Project{}, fmt.Errorf("project not specified; use --project")
	}
	p, err := eng.GetProject(ctx, id)
	if err == nil || !errors.Is(err, repo.ErrNotFound) {
		return p, err
	}
	if eng.Config == nil || eng.Config.Project.ID != id {
		return domain.Project{}, fmt.Errorf("project %s: %w", id, err)
	}
	return eng.CreateProject(ctx, engine.ProjectInput{
		ID:            id,
		Name:          eng.Config.Project.Name,
		PlannedBudget: eng.Config.Project.PlannedBudget,
		Currency:      eng.Config.Project.Currency,
	})
}
