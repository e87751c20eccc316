package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"planboard/internal/domain"
)

func TestBusDeliversToSubscriber(t *testing.T) {
	bus := NewBus(nil)
	t.Cleanup(func() { bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan domain.WorkflowEvent, 2)
	require.NoError(t, bus.Subscribe(ctx, func(_ context.Context, ev domain.WorkflowEvent) error {
		got <- ev
		return nil
	}))

	bus.Notify(ctx, domain.WorkflowEvent{
		ID:        "ev-1",
		ProjectID: "p1",
		Type:      domain.EventReportSubmit,
		Payload:   domain.ReportSubmission{Title: "Q1", Period: "2025-Q1"},
		Timestamp: "2025-05-01T08:00:00.000000000Z",
	})

	select {
	case ev := <-got:
		require.Equal(t, "ev-1", ev.ID)
		require.Equal(t, domain.ReportSubmission{Title: "Q1", Period: "2025-Q1"}, ev.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBusHandlerErrorDoesNotRedeliver(t *testing.T) {
	bus := NewBus(nil)
	t.Cleanup(func() { bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := make(chan string, 4)
	require.NoError(t, bus.Subscribe(ctx, func(_ context.Context, ev domain.WorkflowEvent) error {
		calls <- ev.ID
		return errors.New("endpoint down")
	}))

	require.NoError(t, bus.Publish(domain.WorkflowEvent{ID: "a", ProjectID: "p1", Type: domain.EventActivitySubmit}))
	require.NoError(t, bus.Publish(domain.WorkflowEvent{ID: "b", ProjectID: "p1", Type: domain.EventActivitySubmit}))

	seen := map[string]int{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-calls:
			seen[id]++
		case <-time.After(2 * time.Second):
			t.Fatal("event not delivered")
		}
	}
	require.Equal(t, map[string]int{"a": 1, "b": 1}, seen)

	select {
	case id := <-calls:
		t.Fatalf("event %s delivered twice", id)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus(nil)
	t.Cleanup(func() { bus.Close() })
	require.NoError(t, bus.Publish(domain.WorkflowEvent{ID: "x", ProjectID: "p1", Type: domain.EventActivitySubmit}))
}
