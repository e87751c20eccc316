package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"planboard/internal/domain"
	"planboard/internal/engine"
)

type projectPath struct {
	ProjectID string `path:"project_id"`
}

type projectBody struct {
	Body domain.Project `json:"body"`
}

type budgetBody struct {
	Body engine.BudgetSummary `json:"body"`
}

type boardBody struct {
	Body engine.Board `json:"body"`
}

func (h handlers) registerProjects(api huma.API) {
	e := h.engine
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*projectBody, error) {
		p, err := e.CreateProject(ctx, engine.ProjectInput{
			ID:            input.Body.ID,
			Name:          input.Body.Name,
			Description:   input.Body.Description,
			PlannedBudget: input.Body.PlannedBudget,
			Currency:      input.Body.Currency,
		})
		if err != nil {
			return nil, h.handleError(err)
		}
		return &projectBody{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Project `json:"body"`
	}, error) {
		items, err := e.ListProjects(ctx)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body []domain.Project `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*projectBody, error) {
		p, err := e.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &projectBody{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project-budget",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/budget",
		Summary:     "Budget summary",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*budgetBody, error) {
		s, err := e.BudgetSummary(ctx, input.ProjectID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &budgetBody{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-project-budget",
		Method:      http.MethodPut,
		Path:        "/projects/{project_id}/budget",
		Summary:     "Set the project budget ceiling",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string           `path:"project_id"`
		Body      SetBudgetRequest `json:"body"`
	}) (*projectBody, error) {
		p, err := e.SetProjectBudget(ctx, input.ProjectID, input.Body.PlannedBudget)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &projectBody{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project-board",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/board",
		Summary:     "Activities grouped by status",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*boardBody, error) {
		b, err := e.Board(ctx, input.ProjectID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &boardBody{Body: b}, nil
	})
}
