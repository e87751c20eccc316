// Package events fans persisted workflow events out to in-process subscribers.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"

	"planboard/internal/domain"
)

const Topic = "workflow.events"

const (
	MetaEventType = "event_type"
	MetaProjectID = "project_id"
)

type Handler func(ctx context.Context, ev domain.WorkflowEvent) error

// Bus publishes workflow events on a watermill GoChannel.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "events"))
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, zapAdapter{logger: logger}),
		logger: logger,
	}
}

func (b *Bus) Publish(ev domain.WorkflowEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := message.NewMessage(watermill.NewULID(), payload)
	msg.Metadata.Set(MetaEventType, string(ev.Type))
	msg.Metadata.Set(MetaProjectID, ev.ProjectID)
	return b.pubsub.Publish(Topic, msg)
}

// Notify publishes and only logs failures.
func (b *Bus) Notify(_ context.Context, ev domain.WorkflowEvent) {
	if err := b.Publish(ev); err != nil {
		b.logger.Warn("publish workflow event", zap.String("event_id", ev.ID), zap.Error(err))
	}
}

// Subscribe runs handler for each event until ctx is done. Handler errors are
// logged and the message is still acked; delivery is best effort.
func (b *Bus) Subscribe(ctx context.Context, handler Handler) error {
	messages, err := b.pubsub.Subscribe(ctx, Topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", Topic, err)
	}
	go func() {
		for msg := range messages {
			var ev domain.WorkflowEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				b.logger.Warn("drop undecodable event", zap.String("uuid", msg.UUID), zap.Error(err))
				msg.Ack()
				continue
			}
			if err := handler(msg.Context(), ev); err != nil {
				b.logger.Warn("event handler failed",
					zap.String("event_id", ev.ID),
					zap.String("type", string(ev.Type)),
					zap.Error(err))
			}
			msg.Ack()
		}
	}()
	return nil
}

func (b *Bus) Close() error {
	return b.pubsub.Close()
}

type zapAdapter struct {
	logger *zap.Logger
}

func (a zapAdapter) fields(f watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func (a zapAdapter) Error(msg string, err error, f watermill.LogFields) {
	a.logger.Error(msg, append(a.fields(f), zap.Error(err))...)
}

func (a zapAdapter) Info(msg string, f watermill.LogFields) {
	a.logger.Debug(msg, a.fields(f)...)
}

func (a zapAdapter) Debug(msg string, f watermill.LogFields) {
	a.logger.Debug(msg, a.fields(f)...)
}

func (a zapAdapter) Trace(string, watermill.LogFields) {}

func (a zapAdapter) With(f watermill.LogFields) watermill.LoggerAdapter {
	return zapAdapter{logger: a.logger.With(a.fields(f)...)}
}
