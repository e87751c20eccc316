package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"planboard/internal/domain"
	"planboard/internal/engine"
)

type milestoneBody struct {
	Body domain.Milestone `json:"body"`
}

func (h handlers) milestoneIn(ctx context.Context, projectID, id string) error {
	m, err := h.engine.GetMilestone(ctx, id)
	if err != nil {
		return err
	}
	return ensureProject(projectID, m.ProjectID, "milestone", id)
}

func (h handlers) registerMilestones(api huma.API) {
	e := h.engine
	huma.Register(api, huma.Operation{
		OperationID:   "add-milestone",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/activities/{id}/milestones",
		Summary:       "Add milestone to an activity",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string              `path:"project_id"`
		ID        string              `path:"id"`
		Body      AddMilestoneRequest `json:"body"`
	}) (*milestoneBody, error) {
		if _, err := h.activityIn(ctx, input.ProjectID, input.ID); err != nil {
			return nil, h.handleError(err)
		}
		m, err := e.AddMilestone(ctx, engine.MilestoneInput{
			ActivityID: input.ID,
			Label:      input.Body.Label,
			TargetDate: input.Body.TargetDate,
			Progress:   input.Body.Progress,
			Status:     domain.MilestoneStatus(input.Body.Status),
		})
		if err != nil {
			return nil, h.handleError(err)
		}
		return &milestoneBody{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-milestones",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/milestones",
		Summary:     "List milestones",
	}, func(ctx context.Context, input *struct {
		ProjectID  string `path:"project_id"`
		ActivityID string `query:"activity_id"`
	}) (*struct {
		Body []domain.Milestone `json:"body"`
	}, error) {
		items, err := e.ListMilestones(ctx, input.ProjectID, input.ActivityID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body []domain.Milestone `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-milestone-status",
		Method:      http.MethodPut,
		Path:        "/projects/{project_id}/milestones/{id}/status",
		Summary:     "Set milestone status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string                    `path:"project_id"`
		ID        string                    `path:"id"`
		Body      SetMilestoneStatusRequest `json:"body"`
	}) (*milestoneBody, error) {
		if err := h.milestoneIn(ctx, input.ProjectID, input.ID); err != nil {
			return nil, h.handleError(err)
		}
		m, err := e.SetMilestoneStatus(ctx, input.ID, domain.MilestoneStatus(input.Body.Status))
		if err != nil {
			return nil, h.handleError(err)
		}
		return &milestoneBody{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-milestone-progress",
		Method:      http.MethodPut,
		Path:        "/projects/{project_id}/milestones/{id}/progress",
		Summary:     "Set milestone progress",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string                      `path:"project_id"`
		ID        string                      `path:"id"`
		Body      SetMilestoneProgressRequest `json:"body"`
	}) (*milestoneBody, error) {
		if err := h.milestoneIn(ctx, input.ProjectID, input.ID); err != nil {
			return nil, h.handleError(err)
		}
		m, err := e.SetMilestoneProgress(ctx, input.ID, input.Body.Progress)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &milestoneBody{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "review-milestone",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/milestones/{id}/{action}",
		Summary:     "Submit, validate or reject a milestone",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ProjectID string         `path:"project_id"`
		ID        string         `path:"id"`
		Action    string         `path:"action" enum:"submit,validate,reject"`
		Body      *ReviewRequest `json:"body,omitempty" required:"false"`
	}) (*milestoneBody, error) {
		action, aerr := parseAction(input.Action, engine.ActionSubmit, engine.ActionValidate, engine.ActionReject)
		if aerr != nil {
			return nil, aerr
		}
		in, authErr := reviewInput(ctx, notesOf(input.Body))
		if authErr != nil {
			return nil, authErr
		}
		if err := h.milestoneIn(ctx, input.ProjectID, input.ID); err != nil {
			return nil, h.handleError(err)
		}
		m, err := e.ReviewMilestone(ctx, input.ID, action, in)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &milestoneBody{Body: m}, nil
	})
}
