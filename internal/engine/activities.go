package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"planboard/internal/domain"
	"planboard/internal/repo"
)

func (e Engine) GetActivity(ctx context.Context, id string) (domain.Activity, error) {
	return e.Repo.GetActivity(ctx, id)
}

func (e Engine) ListActivities(ctx context.Context, f repo.ActivityFilters) ([]domain.Activity, error) {
	return e.Repo.ListActivities(ctx, f)
}

// mutateActivity loads, changes and saves an activity in one transaction.
func (e Engine) mutateActivity(ctx context.Context, id string, fn func(a *domain.Activity) error) (domain.Activity, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Activity{}, err
	}
	defer tx.Rollback()
	a, err := e.Repo.GetActivityTx(ctx, tx, id)
	if err != nil {
		return domain.Activity{}, err
	}
	if err := fn(&a); err != nil {
		return domain.Activity{}, err
	}
	a.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateActivity(ctx, tx, a); err != nil {
		return domain.Activity{}, fmt.Errorf("update activity: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Activity{}, err
	}
	return a, nil
}

// ChangeStatus moves an activity to any status; there is no transition table.
func (e Engine) ChangeStatus(ctx context.Context, id string, status domain.ActivityStatus) (domain.Activity, error) {
	if !status.Valid() {
		return domain.Activity{}, invalidf("unknown status %q", status)
	}
	var from domain.ActivityStatus
	a, err := e.mutateActivity(ctx, id, func(a *domain.Activity) error {
		from = a.Status
		a.Status = status
		return nil
	})
	if err != nil {
		return a, err
	}
	e.logger().Info("activity status changed",
		zap.String("activity_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(status)))
	return a, nil
}

// SetProgress stores an explicit progress value clamped to 0..100.
func (e Engine) SetProgress(ctx context.Context, id string, progress int) (domain.Activity, error) {
	return e.mutateActivity(ctx, id, func(a *domain.Activity) error {
		p := clampPercent(progress)
		a.Progress = &p
		return nil
	})
}

// ClearProgress drops the stored value so the derived one is shown again.
func (e Engine) ClearProgress(ctx context.Context, id string) (domain.Activity, error) {
	return e.mutateActivity(ctx, id, func(a *domain.Activity) error {
		a.Progress = nil
		return nil
	})
}

func (e Engine) SubmitActivity(ctx context.Context, id string, in ReviewInput) (domain.Activity, error) {
	return e.ReviewActivity(ctx, id, ActionSubmit, in)
}

func (e Engine) ValidateActivity(ctx context.Context, id string, in ReviewInput) (domain.Activity, error) {
	return e.ReviewActivity(ctx, id, ActionValidate, in)
}

func (e Engine) RejectActivity(ctx context.Context, id string, in ReviewInput) (domain.Activity, error) {
	return e.ReviewActivity(ctx, id, ActionReject, in)
}

// ReviewActivity applies a review action and logs the matching activity event.
func (e Engine) ReviewActivity(ctx context.Context, id string, action ReviewAction, in ReviewInput) (domain.Activity, error) {
	a, err := e.mutateActivity(ctx, id, func(a *domain.Activity) error {
		next, err := ensureReviewTransition("activity", a.ID, a.ReviewStatus, action)
		if err != nil {
			return err
		}
		a.ReviewStatus = next
		return nil
	})
	if err != nil {
		return a, err
	}
	e.record(ctx, domain.EventDraft{
		ProjectID:  a.ProjectID,
		ActivityID: a.ID,
		Type:       eventFor("activity", action),
		By:         in.By,
		Notes:      in.Notes,
		Payload:    activitySnapshot(a),
	})
	return a, nil
}

func activitySnapshot(a domain.Activity) domain.ActivitySnapshot {
	return domain.ActivitySnapshot{
		Title:         a.Title,
		Status:        a.Status,
		ReviewStatus:  a.ReviewStatus,
		PlannedBudget: a.PlannedBudget,
		Allocated:     a.Allocated,
	}
}

// DeleteActivity removes the activity with its milestones, expenses and
// attachments. Workflow events that reference it are kept.
func (e Engine) DeleteActivity(ctx context.Context, id string) error {
	if err := e.withTx(ctx, func(tx *sql.Tx) error {
		return e.Repo.DeleteActivity(ctx, tx, id)
	}); err != nil {
		return err
	}
	e.logger().Info("activity deleted", zap.String("activity_id", id))
	return nil
}

// AddAttachment records attachment metadata; the bytes live elsewhere.
func (e Engine) AddAttachment(ctx context.Context, activityID string, att domain.Attachment) (domain.Attachment, error) {
	att.Name = strings.TrimSpace(att.Name)
	if att.Name == "" {
		return att, invalidf("attachment name is required")
	}
	if att.Size < 0 {
		return att, invalidf("attachment size must not be negative")
	}
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		a, err := e.Repo.GetActivityTx(ctx, tx, activityID)
		if err != nil {
			return err
		}
		if err := e.Repo.InsertAttachment(ctx, tx, a.ID, att); err != nil {
			return fmt.Errorf("insert attachment: %w", err)
		}
		a.UpdatedAt = e.stamp()
		return e.Repo.UpdateActivity(ctx, tx, a)
	})
	return att, err
}

func (e Engine) RemoveAttachment(ctx context.Context, activityID, attachmentID string) error {
	return e.withTx(ctx, func(tx *sql.Tx) error {
		a, err := e.Repo.GetActivityTx(ctx, tx, activityID)
		if err != nil {
			return err
		}
		if err := e.Repo.DeleteAttachment(ctx, tx, activityID, attachmentID); err != nil {
			return err
		}
		a.UpdatedAt = e.stamp()
		return e.Repo.UpdateActivity(ctx, tx, a)
	})
}

func (e Engine) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
