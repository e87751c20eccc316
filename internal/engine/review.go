package engine

import (
	"strings"

	"planboard/internal/domain"
)

type ReviewAction string

const (
	ActionSubmit   ReviewAction = "submit"
	ActionValidate ReviewAction = "validate"
	ActionApprove  ReviewAction = "approve"
	ActionReject   ReviewAction = "reject"
)

// ParseReviewAction accepts the action names used by the CLI and API.
func ParseReviewAction(s string) (ReviewAction, error) {
	switch a := ReviewAction(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionSubmit, ActionValidate, ActionApprove, ActionReject:
		return a, nil
	}
	return "", invalidf("unknown review action %q", s)
}

// ReviewInput carries the actor label and optional notes of a review action.
type ReviewInput struct {
	By    string
	Notes string
}

// ensureReviewTransition returns the status reached by applying action.
// submit: draft|rejected -> submitted; validate/approve and reject: submitted only.
func ensureReviewTransition(entity, id string, from domain.ReviewStatus, action ReviewAction) (domain.ReviewStatus, error) {
	fail := &InvalidTransitionError{Entity: entity, ID: id, From: from, Action: action}
	switch action {
	case ActionSubmit:
		if from == domain.ReviewDraft || from == domain.ReviewRejected {
			return domain.ReviewSubmitted, nil
		}
	case ActionValidate, ActionApprove:
		if from == domain.ReviewSubmitted {
			return domain.ReviewValidated, nil
		}
	case ActionReject:
		if from == domain.ReviewSubmitted {
			return domain.ReviewRejected, nil
		}
	}
	return from, fail
}

// eventFor maps an entity family and review action to the logged event type.
func eventFor(subject string, action ReviewAction) domain.EventType {
	verb := string(action)
	if action == ActionValidate {
		verb = string(ActionApprove)
	}
	return domain.EventType(subject + ":" + verb)
}
