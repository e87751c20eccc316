package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"planboard/internal/domain"
	"planboard/internal/engine"
	"planboard/internal/repo"
)

type activityPath struct {
	ProjectID string `path:"project_id"`
	ID        string `path:"id"`
}

type activityBody struct {
	Body domain.Activity `json:"body"`
}

type draftCheckBody struct {
	Body engine.DraftCheck `json:"body"`
}

// activityIn loads an activity and checks it belongs to the project in the path.
func (h handlers) activityIn(ctx context.Context, projectID, id string) (domain.Activity, error) {
	a, err := h.engine.GetActivity(ctx, id)
	if err != nil {
		return a, err
	}
	return a, ensureProject(projectID, a.ProjectID, "activity", id)
}

func (h handlers) registerActivities(api huma.API) {
	e := h.engine
	huma.Register(api, huma.Operation{
		OperationID: "check-activity",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/activities/check",
		Summary:     "Run the creation checks on a draft without saving it",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string               `path:"project_id"`
		Body      ActivityDraftRequest `json:"body"`
	}) (*draftCheckBody, error) {
		check, err := e.CheckDraft(ctx, input.Body.draft(input.ProjectID))
		if err != nil {
			return nil, h.handleError(err)
		}
		return &draftCheckBody{Body: check}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-activity",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/activities",
		Summary:       "Create activity",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ProjectID string               `path:"project_id"`
		Body      ActivityDraftRequest `json:"body"`
	}) (*activityBody, error) {
		res, err := e.CreateActivity(ctx, input.Body.draft(input.ProjectID))
		if err != nil {
			return nil, h.handleError(err)
		}
		if res.Check.Blocked || res.Activity == nil {
			return nil, blockedError(res.Check)
		}
		return &activityBody{Body: *res.Activity}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-activities",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/activities",
		Summary:     "List activities",
	}, func(ctx context.Context, input *struct {
		ProjectID    string `path:"project_id"`
		Status       string `query:"status" enum:"todo,in_progress,blocked,done"`
		ReviewStatus string `query:"review_status" enum:"draft,submitted,validated,rejected"`
		Type         string `query:"type"`
		Assignee     string `query:"assignee"`
	}) (*struct {
		Body []domain.Activity `json:"body"`
	}, error) {
		items, err := e.ListActivities(ctx, repo.ActivityFilters{
			ProjectID:    input.ProjectID,
			Status:       domain.ActivityStatus(input.Status),
			ReviewStatus: domain.ReviewStatus(input.ReviewStatus),
			Type:         domain.ActivityType(input.Type),
			Assignee:     input.Assignee,
		})
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body []domain.Activity `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-activity",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/activities/{id}",
		Summary:     "Get activity",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *activityPath) (*activityBody, error) {
		a, err := h.activityIn(ctx, input.ProjectID, input.ID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &activityBody{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-activity",
		Method:        http.MethodDelete,
		Path:          "/projects/{project_id}/activities/{id}",
		Summary:       "Delete activity with its milestones and expenses",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *activityPath) (*struct{}, error) {
		if _, err := h.activityIn(ctx, input.ProjectID, input.ID); err != nil {
			return nil, h.handleError(err)
		}
		if err := e.DeleteActivity(ctx, input.ID); err != nil {
			return nil, h.handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-activity-status",
		Method:      http.MethodPut,
		Path:        "/projects/{project_id}/activities/{id}/status",
		Summary:     "Move activity to a board column",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string           `path:"project_id"`
		ID        string           `path:"id"`
		Body      SetStatusRequest `json:"body"`
	}) (*activityBody, error) {
		if _, err := h.activityIn(ctx, input.ProjectID, input.ID); err != nil {
			return nil, h.handleError(err)
		}
		a, err := e.ChangeStatus(ctx, input.ID, domain.ActivityStatus(input.Body.Status))
		if err != nil {
			return nil, h.handleError(err)
		}
		return &activityBody{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-activity-progress",
		Method:      http.MethodPut,
		Path:        "/projects/{project_id}/activities/{id}/progress",
		Summary:     "Set or clear stored progress",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string             `path:"project_id"`
		ID        string             `path:"id"`
		Body      SetProgressRequest `json:"body"`
	}) (*activityBody, error) {
		if _, err := h.activityIn(ctx, input.ProjectID, input.ID); err != nil {
			return nil, h.handleError(err)
		}
		var (
			a   domain.Activity
			err error
		)
		if input.Body.Progress == nil {
			a, err = e.ClearProgress(ctx, input.ID)
		} else {
			a, err = e.SetProgress(ctx, input.ID, *input.Body.Progress)
		}
		if err != nil {
			return nil, h.handleError(err)
		}
		return &activityBody{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-attachment",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/activities/{id}/attachments",
		Summary:       "Attach file metadata",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string               `path:"project_id"`
		ID        string               `path:"id"`
		Body      AddAttachmentRequest `json:"body"`
	}) (*struct {
		Body domain.Attachment `json:"body"`
	}, error) {
		if _, err := h.activityIn(ctx, input.ProjectID, input.ID); err != nil {
			return nil, h.handleError(err)
		}
		att, err := e.AddAttachment(ctx, input.ID, domain.Attachment{
			Name: input.Body.Name,
			Size: input.Body.Size,
			Type: input.Body.Type,
		})
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body domain.Attachment `json:"body"`
		}{Body: att}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "remove-attachment",
		Method:        http.MethodDelete,
		Path:          "/projects/{project_id}/activities/{id}/attachments/{attachment_id}",
		Summary:       "Remove attachment",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID    string `path:"project_id"`
		ID           string `path:"id"`
		AttachmentID string `path:"attachment_id"`
	}) (*struct{}, error) {
		if _, err := h.activityIn(ctx, input.ProjectID, input.ID); err != nil {
			return nil, h.handleError(err)
		}
		if err := e.RemoveAttachment(ctx, input.ID, input.AttachmentID); err != nil {
			return nil, h.handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "review-activity",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/activities/{id}/{action}",
		Summary:     "Submit, validate or reject an activity",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ProjectID string         `path:"project_id"`
		ID        string         `path:"id"`
		Action    string         `path:"action" enum:"submit,validate,reject"`
		Body      *ReviewRequest `json:"body,omitempty" required:"false"`
	}) (*activityBody, error) {
		action, aerr := parseAction(input.Action, engine.ActionSubmit, engine.ActionValidate, engine.ActionReject)
		if aerr != nil {
			return nil, aerr
		}
		in, authErr := reviewInput(ctx, notesOf(input.Body))
		if authErr != nil {
			return nil, authErr
		}
		if _, err := h.activityIn(ctx, input.ProjectID, input.ID); err != nil {
			return nil, h.handleError(err)
		}
		a, err := e.ReviewActivity(ctx, input.ID, action, in)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &activityBody{Body: a}, nil
	})
}
