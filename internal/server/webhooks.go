package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"planboard/internal/config"
	"planboard/internal/domain"
	"planboard/internal/events"
)

const defaultWebhookTimeout = 5 * time.Second

type webhookDispatcher struct {
	webhooks []config.WebhookConfig
	filters  []eventFilter
	client   *http.Client
	logger   *zap.Logger
}

// StartWebhooks subscribes to the event bus and posts every matching event
// to the configured webhooks until ctx is done. Delivery is best effort.
func StartWebhooks(ctx context.Context, bus *events.Bus, hooks []config.WebhookConfig, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &webhookDispatcher{
		client: &http.Client{Timeout: defaultWebhookTimeout},
		logger: logger.With(zap.String("component", "webhooks")),
	}
	for _, hook := range hooks {
		if !hook.Active() {
			continue
		}
		d.webhooks = append(d.webhooks, hook)
		d.filters = append(d.filters, newEventFilter(hook.Events))
	}
	if len(d.webhooks) == 0 {
		return nil
	}
	return bus.Subscribe(ctx, d.dispatch)
}

func (d *webhookDispatcher) dispatch(ctx context.Context, ev domain.WorkflowEvent) error {
	var errs []error
	for i, hook := range d.webhooks {
		if !d.filters[i].match(string(ev.Type)) {
			continue
		}
		if err := d.postEvent(ctx, hook, ev); err != nil {
			d.logger.Warn("webhook delivery failed",
				zap.String("url", hook.URL),
				zap.String("event_id", ev.ID),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *webhookDispatcher) postEvent(ctx context.Context, hook config.WebhookConfig, ev domain.WorkflowEvent) error {
	data, err := json.Marshal(eventResponse(ev))
	if err != nil {
		return err
	}
	client := d.client
	if hook.TimeoutSeconds > 0 {
		if timeout := time.Duration(hook.TimeoutSeconds) * time.Second; timeout != d.client.Timeout {
			client = &http.Client{Timeout: timeout}
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Planboard-Event", string(ev.Type))
	req.Header.Set("X-Planboard-Delivery", ev.ID)
	req.Header.Set("X-Planboard-Project", ev.ProjectID)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Planboard-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		if key := strings.TrimSpace(evt); key != "" {
			set[key] = struct{}{}
		}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
