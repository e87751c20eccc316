package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"planboard/internal/engine"
	"planboard/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Logger   *zap.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"creation_blocked"`
	Message string         `json:"message" example:"budget exceeded by 5000 (remaining 10000 of 100000)"`
	Details map[string]any `json:"details,omitempty"`
}

// apiError is the error envelope every failing route returns.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the planboard API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Auth.Logger = logger

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// schema validation is a client mistake, not a blocked creation
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			msgs := make([]string, 0, len(errs))
			for _, err := range errs {
				msgs = append(msgs, err.Error())
			}
			details = map[string]any{"errors": msgs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	// docs and the OpenAPI document stay outside basePath, so they need no token
	hcfg := huma.DefaultConfig("planboard API", "0.1.0")
	hcfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearerAuth": {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
	}
	hcfg.Security = []map[string][]string{{"bearerAuth": {}}}
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	h := handlers{engine: cfg.Engine, logger: logger.With(zap.String("component", "server"))}
	registerHealth(group)
	h.registerProjects(group)
	h.registerActivities(group)
	h.registerMilestones(group)
	h.registerExpenses(group)
	h.registerSubmissions(group)
	h.registerEvents(group)
	h.registerResources(group)

	return router, nil
}

type handlers struct {
	engine engine.Engine
	logger *zap.Logger
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func (h handlers) handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var te *engine.InvalidTransitionError
	if errors.As(err, &te) {
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), map[string]any{
			"entity": te.Entity,
			"id":     te.ID,
			"from":   string(te.From),
			"action": string(te.Action),
		})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, engine.ErrInvalidInput) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	h.logger.Error("request failed", zap.Error(err))
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "unprocessable"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// blockedError reports a draft that failed the creation checks.
func blockedError(check engine.DraftCheck) huma.StatusError {
	return newAPIError(http.StatusUnprocessableEntity, "creation_blocked", check.Reason, map[string]any{
		"missing":   nonNilSlice(check.Missing),
		"invalid":   nonNilSlice(check.Invalid),
		"budget":    check.Budget,
		"allocated": check.Allocated,
	})
}

type healthBody struct {
	Body map[string]string `json:"body"`
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(_ context.Context, _ *struct{}) (*healthBody, error) {
		return &healthBody{Body: map[string]string{"status": "ok"}}, nil
	})
}

// reviewInput builds the actor label and notes for a review action.
func reviewInput(ctx context.Context, notes string) (engine.ReviewInput, huma.StatusError) {
	actor, authErr := actorIDFromContext(ctx)
	if authErr != nil {
		return engine.ReviewInput{}, authErr
	}
	return engine.ReviewInput{By: actor, Notes: notes}, nil
}

// ensureProject keeps nested routes from reaching into another project.
func ensureProject(projectID, actual, kind, id string) error {
	if projectID != actual {
		return fmt.Errorf("%s %s in project %s: %w", kind, id, projectID, repo.ErrNotFound)
	}
	return nil
}

// parseAction narrows engine.ParseReviewAction to the actions a route accepts.
func parseAction(raw string, allowed ...engine.ReviewAction) (engine.ReviewAction, huma.StatusError) {
	action, err := engine.ParseReviewAction(raw)
	if err == nil {
		for _, a := range allowed {
			if a == action {
				return action, nil
			}
		}
	}
	return "", newAPIError(http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown action %q", raw), nil)
}

func notesOf(r *ReviewRequest) string {
	if r == nil {
		return ""
	}
	return r.Notes
}
