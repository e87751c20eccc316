package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planboard/internal/domain"
)

func TestAllocate(t *testing.T) {
	cases := map[int64]int64{
		0:      0,
		1:      0,
		2:      1, // 0.7 rounds up
		3:      1,
		90000:  31500,
		100001: 35000,
	}
	for in, want := range cases {
		assert.Equal(t, want, Allocate(in), "Allocate(%d)", in)
	}
}

func TestDerivedProgress(t *testing.T) {
	assert.Equal(t, 0, DerivedProgress(domain.StatusTodo))
	assert.Equal(t, 25, DerivedProgress(domain.StatusBlocked))
	assert.Equal(t, 40, DerivedProgress(domain.StatusInProgress))
	assert.Equal(t, 100, DerivedProgress(domain.StatusDone))

	p := 10
	assert.Equal(t, 10, EffectiveProgress(domain.Activity{Status: domain.StatusDone, Progress: &p}))
	assert.Equal(t, 100, EffectiveProgress(domain.Activity{Status: domain.StatusDone}))
}

func TestDeadlineUrgency(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		due    time.Time
		status domain.ActivityStatus
		want   Urgency
	}{
		{"done is always on track", now.Add(-72 * time.Hour), domain.StatusDone, UrgencyOnTrack},
		{"past due", now.Add(-time.Millisecond), domain.StatusInProgress, UrgencyOverdue},
		{"due now", now, domain.StatusTodo, UrgencyWarning},
		{"exactly two days", now.Add(48 * time.Hour), domain.StatusTodo, UrgencyWarning},
		{"just over two days", now.Add(48*time.Hour + time.Minute), domain.StatusBlocked, UrgencyNormal},
		{"next month", now.AddDate(0, 1, 0), domain.StatusTodo, UrgencyNormal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeadlineUrgency(tc.due, tc.status, now))
		})
	}
}

func TestProgressColor(t *testing.T) {
	assert.Equal(t, ColorGreen, ProgressColor(domain.StatusDone, 0))
	assert.Equal(t, ColorRed, ProgressColor(domain.StatusBlocked, 90))
	assert.Equal(t, ColorAmber, ProgressColor(domain.StatusTodo, 29))
	assert.Equal(t, ColorBlue, ProgressColor(domain.StatusInProgress, 30))
	assert.Equal(t, ColorBlue, ProgressColor(domain.StatusInProgress, 69))
	assert.Equal(t, ColorGreen, ProgressColor(domain.StatusInProgress, 70))
}

func TestEnsureReviewTransition(t *testing.T) {
	all := []domain.ReviewStatus{domain.ReviewDraft, domain.ReviewSubmitted, domain.ReviewValidated, domain.ReviewRejected}
	allowed := map[ReviewAction]map[domain.ReviewStatus]domain.ReviewStatus{
		ActionSubmit:   {domain.ReviewDraft: domain.ReviewSubmitted, domain.ReviewRejected: domain.ReviewSubmitted},
		ActionValidate: {domain.ReviewSubmitted: domain.ReviewValidated},
		ActionApprove:  {domain.ReviewSubmitted: domain.ReviewValidated},
		ActionReject:   {domain.ReviewSubmitted: domain.ReviewRejected},
	}
	for action, table := range allowed {
		for _, from := range all {
			next, err := ensureReviewTransition("activity", "a1", from, action)
			if want, ok := table[from]; ok {
				require.NoError(t, err, "%s from %s", action, from)
				assert.Equal(t, want, next)
				continue
			}
			var te *InvalidTransitionError
			require.ErrorAs(t, err, &te, "%s from %s", action, from)
			assert.Equal(t, from, next)
			assert.Equal(t, action, te.Action)
		}
	}
}

func TestEventFor(t *testing.T) {
	assert.Equal(t, domain.EventActivityApprove, eventFor("activity", ActionValidate))
	assert.Equal(t, domain.EventExpenseApprove, eventFor("expense", ActionApprove))
	assert.Equal(t, domain.EventMilestoneReject, eventFor("milestone", ActionReject))
}

func TestParseReviewAction(t *testing.T) {
	a, err := ParseReviewAction(" Validate ")
	require.NoError(t, err)
	assert.Equal(t, ActionValidate, a)
	_, err = ParseReviewAction("archive")
	require.ErrorIs(t, err, ErrInvalidInput)
}
