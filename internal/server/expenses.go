package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"planboard/internal/domain"
	"planboard/internal/engine"
	"planboard/internal/repo"
)

type expenseBody struct {
	Body domain.Expense `json:"body"`
}

type eventBody struct {
	Body EventResponse `json:"body"`
}

func (h handlers) registerExpenses(api huma.API) {
	e := h.engine
	huma.Register(api, huma.Operation{
		OperationID:   "add-expense",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/expenses",
		Summary:       "Record an expense against an activity",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string            `path:"project_id"`
		Body      AddExpenseRequest `json:"body"`
	}) (*expenseBody, error) {
		if _, err := h.activityIn(ctx, input.ProjectID, input.Body.ActivityID); err != nil {
			return nil, h.handleError(err)
		}
		x, err := e.AddExpense(ctx, engine.ExpenseInput{
			ActivityID: input.Body.ActivityID,
			Label:      input.Body.Label,
			Amount:     input.Body.Amount,
			SpentOn:    input.Body.SpentOn,
		})
		if err != nil {
			return nil, h.handleError(err)
		}
		return &expenseBody{Body: x}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-expenses",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/expenses",
		Summary:     "List expenses",
	}, func(ctx context.Context, input *struct {
		ProjectID    string `path:"project_id"`
		ActivityID   string `query:"activity_id"`
		ReviewStatus string `query:"review_status" enum:"draft,submitted,validated,rejected"`
	}) (*struct {
		Body []domain.Expense `json:"body"`
	}, error) {
		items, err := e.ListExpenses(ctx, repo.ExpenseFilters{
			ProjectID:    input.ProjectID,
			ActivityID:   input.ActivityID,
			ReviewStatus: domain.ReviewStatus(input.ReviewStatus),
		})
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body []domain.Expense `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "review-expense",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/expenses/{id}/{action}",
		Summary:     "Submit, approve or reject an expense",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ProjectID string         `path:"project_id"`
		ID        string         `path:"id"`
		Action    string         `path:"action" enum:"submit,approve,reject"`
		Body      *ReviewRequest `json:"body,omitempty" required:"false"`
	}) (*expenseBody, error) {
		action, aerr := parseAction(input.Action, engine.ActionSubmit, engine.ActionApprove, engine.ActionReject)
		if aerr != nil {
			return nil, aerr
		}
		in, authErr := reviewInput(ctx, notesOf(input.Body))
		if authErr != nil {
			return nil, authErr
		}
		x, err := e.GetExpense(ctx, input.ID)
		if err == nil {
			err = ensureProject(input.ProjectID, x.ProjectID, "expense", input.ID)
		}
		if err != nil {
			return nil, h.handleError(err)
		}
		if x, err = e.ReviewExpense(ctx, input.ID, action, in); err != nil {
			return nil, h.handleError(err)
		}
		return &expenseBody{Body: x}, nil
	})
}

func (h handlers) registerSubmissions(api huma.API) {
	e := h.engine
	huma.Register(api, huma.Operation{
		OperationID:   "submit-report",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/reports",
		Summary:       "Submit a progress report",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string              `path:"project_id"`
		Body      SubmitReportRequest `json:"body"`
	}) (*eventBody, error) {
		in, authErr := reviewInput(ctx, input.Body.Notes)
		if authErr != nil {
			return nil, authErr
		}
		ev, err := e.SubmitReport(ctx, input.ProjectID, domain.ReportSubmission{
			Title:   input.Body.Title,
			Period:  input.Body.Period,
			Summary: input.Body.Summary,
		}, in)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &eventBody{Body: eventResponse(ev)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "submit-beneficiaries",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/beneficiaries",
		Summary:       "Submit beneficiaries reached",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string                     `path:"project_id"`
		Body      SubmitBeneficiariesRequest `json:"body"`
	}) (*eventBody, error) {
		in, authErr := reviewInput(ctx, input.Body.Notes)
		if authErr != nil {
			return nil, authErr
		}
		ev, err := e.SubmitBeneficiaries(ctx, input.ProjectID, input.Body.ActivityID, domain.BeneficiariesReport{
			Total:     input.Body.Total,
			Breakdown: input.Body.Breakdown,
		}, in)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &eventBody{Body: eventResponse(ev)}, nil
	})
}
