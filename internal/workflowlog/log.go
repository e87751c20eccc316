// Package workflowlog is the append-only audit trail of review actions.
//
// The whole log is one JSON array stored under a single key. Reads and writes
// never fail from the caller's point of view: a broken store or corrupt value
// degrades to an empty log and is reported through the logger only.
package workflowlog

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"planboard/internal/domain"
)

const (
	KeyPrefix    = "planboard:workflow-events:"
	DefaultScope = "default"

	// fixed width so stored timestamps also sort lexically
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Store is the key-value backend. A missing key reports ok=false.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Notifier receives every persisted event.
type Notifier interface {
	Notify(ctx context.Context, ev domain.WorkflowEvent)
}

type Options struct {
	Scope    string
	Now      func() time.Time
	Logger   *zap.Logger
	Notifier Notifier
}

type Filter struct {
	ProjectID   string
	ActivityID  string
	MilestoneID string
	Type        domain.EventType
}

func (f Filter) match(ev domain.WorkflowEvent) bool {
	if f.ProjectID != "" && ev.ProjectID != f.ProjectID {
		return false
	}
	if f.ActivityID != "" && ev.ActivityID != f.ActivityID {
		return false
	}
	if f.MilestoneID != "" && ev.MilestoneID != f.MilestoneID {
		return false
	}
	if f.Type != "" && ev.Type != f.Type {
		return false
	}
	return true
}

type Log struct {
	store    Store
	key      string
	now      func() time.Time
	logger   *zap.Logger
	notifier Notifier

	mu   sync.Mutex
	last time.Time
}

func New(store Store, opts Options) *Log {
	scope := opts.Scope
	if scope == "" {
		scope = DefaultScope
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{
		store:    store,
		key:      KeyPrefix + scope,
		now:      now,
		logger:   logger.With(zap.String("component", "workflowlog"), zap.String("key", KeyPrefix+scope)),
		notifier: opts.Notifier,
	}
}

// Key is the storage key this log reads and writes.
func (l *Log) Key() string { return l.key }

// Append stamps the draft with an id and timestamp and persists it.
// An invalid draft is dropped with a warning and yields the zero event.
func (l *Log) Append(ctx context.Context, draft domain.EventDraft) domain.WorkflowEvent {
	if err := draft.Validate(); err != nil {
		l.logger.Warn("dropping invalid workflow event", zap.String("type", string(draft.Type)), zap.Error(err))
		return domain.WorkflowEvent{}
	}

	l.mu.Lock()
	events := l.load(ctx)
	ev := domain.WorkflowEvent{
		ID:          uuid.NewString(),
		ProjectID:   draft.ProjectID,
		ActivityID:  draft.ActivityID,
		MilestoneID: draft.MilestoneID,
		Type:        draft.Type,
		By:          draft.By,
		Notes:       draft.Notes,
		Payload:     draft.Payload,
		Timestamp:   l.nextTimestamp(),
	}
	l.save(ctx, append(events, ev))
	l.mu.Unlock()

	if l.notifier != nil {
		l.notifier.Notify(ctx, ev)
	}
	return ev
}

// List returns events matching every set filter field, newest first.
func (l *Log) List(ctx context.Context, f Filter) []domain.WorkflowEvent {
	l.mu.Lock()
	events := l.load(ctx)
	l.mu.Unlock()

	out := make([]domain.WorkflowEvent, 0, len(events))
	// walk backwards so equal timestamps keep the later append first
	for i := len(events) - 1; i >= 0; i-- {
		if f.match(events[i]) {
			out = append(out, events[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return parseTimestamp(out[i].Timestamp).After(parseTimestamp(out[j].Timestamp))
	})
	return out
}

// ClearByActivity drops every event referencing the activity. An empty id
// matches nothing, so project-level events survive.
func (l *Log) ClearByActivity(ctx context.Context, activityID string) {
	if activityID == "" {
		return
	}
	l.clearWhere(ctx, func(ev domain.WorkflowEvent) bool {
		return ev.ActivityID == activityID
	})
}

// ClearProjectActivity is ClearByActivity restricted to one project's events.
func (l *Log) ClearProjectActivity(ctx context.Context, projectID, activityID string) {
	if projectID == "" || activityID == "" {
		return
	}
	l.clearWhere(ctx, func(ev domain.WorkflowEvent) bool {
		return ev.ProjectID == projectID && ev.ActivityID == activityID
	})
}

func (l *Log) clearWhere(ctx context.Context, drop func(domain.WorkflowEvent) bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	events := l.load(ctx)
	kept := events[:0]
	for _, ev := range events {
		if !drop(ev) {
			kept = append(kept, ev)
		}
	}
	if len(kept) == len(events) {
		return
	}
	l.save(ctx, kept)
}

func (l *Log) ClearAll(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.save(ctx, nil)
}

// nextTimestamp never repeats or goes backwards within this Log.
func (l *Log) nextTimestamp() string {
	ts := l.now().UTC()
	if !ts.After(l.last) {
		ts = l.last.Add(time.Nanosecond)
	}
	l.last = ts
	return ts.Format(timestampLayout)
}

func (l *Log) load(ctx context.Context) []domain.WorkflowEvent {
	raw, ok, err := l.store.Get(ctx, l.key)
	if err != nil {
		l.logger.Warn("read workflow log", zap.Error(err))
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		l.logger.Warn("workflow log is not a json array", zap.Error(err))
		return nil
	}
	events := make([]domain.WorkflowEvent, 0, len(items))
	for i, item := range items {
		var ev domain.WorkflowEvent
		if err := json.Unmarshal(item, &ev); err != nil {
			l.logger.Warn("skipping unreadable workflow event", zap.Int("index", i), zap.Error(err))
			continue
		}
		events = append(events, ev)
		if ts := parseTimestamp(ev.Timestamp); ts.After(l.last) {
			l.last = ts
		}
	}
	return events
}

func (l *Log) save(ctx context.Context, events []domain.WorkflowEvent) {
	if events == nil {
		events = []domain.WorkflowEvent{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		l.logger.Warn("encode workflow log", zap.Error(err))
		return
	}
	if err := l.store.Set(ctx, l.key, string(data)); err != nil {
		l.logger.Warn("write workflow log", zap.Error(err))
	}
}

func parseTimestamp(s string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return ts
}
