package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"planboard/internal/domain"
	"planboard/internal/resources"
	"planboard/internal/workflowlog"
)

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 500 {
		return 500
	}
	return in
}

func (h handlers) registerEvents(api huma.API) {
	e := h.engine
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/events",
		Summary:     "List workflow events, newest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ProjectID   string `path:"project_id"`
		ActivityID  string `query:"activity_id"`
		MilestoneID string `query:"milestone_id"`
		Type        string `query:"type"`
		Limit       int    `query:"limit" default:"50"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		if input.Type != "" && !domain.EventType(input.Type).Valid() {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "unknown event type", map[string]any{"type": input.Type})
		}
		items := e.Events(ctx, workflowlog.Filter{
			ProjectID:   input.ProjectID,
			ActivityID:  input.ActivityID,
			MilestoneID: input.MilestoneID,
			Type:        domain.EventType(input.Type),
		})
		if limit := normalizeLimit(input.Limit); len(items) > limit {
			items = items[:limit]
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: paginatedEvents{Items: mapEvents(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "clear-activity-events",
		Method:        http.MethodDelete,
		Path:          "/projects/{project_id}/activities/{id}/events",
		Summary:       "Drop the workflow events of an activity in this project",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *activityPath) (*struct{}, error) {
		// events outlive their activity, so this is scoped on the log, not the activity row
		e.Log.ClearProjectActivity(ctx, input.ProjectID, input.ID)
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "clear-events",
		Method:        http.MethodDelete,
		Path:          "/events",
		Summary:       "Empty the workflow log",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		e.Log.ClearAll(ctx)
		return &struct{}{}, nil
	})
}

func (h handlers) registerResources(api huma.API) {
	e := h.engine
	huma.Register(api, huma.Operation{
		OperationID: "list-resources",
		Method:      http.MethodGet,
		Path:        "/resources",
		Summary:     "Search the resource library",
	}, func(ctx context.Context, input *struct {
		Search   string `query:"q"`
		Category string `query:"category"`
		Year     int    `query:"year"`
		Language string `query:"language"`
		Tags     string `query:"tags" doc:"comma separated, all must match"`
		Sort     string `query:"sort" enum:"newest,oldest"`
		Page     int    `query:"page" default:"1"`
		PageSize int    `query:"page_size" default:"10"`
	}) (*struct {
		Body resources.Page `json:"body"`
	}, error) {
		items, err := e.Repo.ListResources(ctx)
		if err != nil {
			return nil, h.handleError(err)
		}
		q := resources.Query{
			Search:   input.Search,
			Category: input.Category,
			Year:     input.Year,
			Language: input.Language,
			Sort:     input.Sort,
			Page:     input.Page,
			PageSize: input.PageSize,
		}
		for _, tag := range strings.Split(input.Tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				q.Tags = append(q.Tags, tag)
			}
		}
		return &struct {
			Body resources.Page `json:"body"`
		}{Body: resources.List(items, q)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-assignees",
		Method:      http.MethodGet,
		Path:        "/assignees",
		Summary:     "Organisations compatible with an assignee type",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		AssigneeType string `query:"assignee_type"`
	}) (*struct {
		Body assigneeCatalog `json:"body"`
	}, error) {
		t := domain.AssigneeType(input.AssigneeType)
		if t != "" && !t.Valid() {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "unknown assignee type", map[string]any{"assignee_type": input.AssigneeType})
		}
		return &struct {
			Body assigneeCatalog `json:"body"`
		}{Body: assigneeCatalog{AssigneeType: input.AssigneeType, Items: nonNilSlice(e.AssigneeCatalog(t))}}, nil
	})
}
