package engine

import (
	"math"
	"time"

	"planboard/internal/domain"
)

const (
	// AllocationRatio is the share of planned budget reserved at creation.
	AllocationRatio = 0.35
	// DeadlineWarningDays is how close a due date gets before it is flagged.
	DeadlineWarningDays = 2

	dayMillis = 86400000
	dateOnly  = "2006-01-02"
)

// Allocate returns round(plannedBudget * AllocationRatio).
func Allocate(plannedBudget int64) int64 {
	return int64(math.Round(float64(plannedBudget) * AllocationRatio))
}

var derivedProgress = map[domain.ActivityStatus]int{
	domain.StatusTodo:       0,
	domain.StatusBlocked:    25,
	domain.StatusInProgress: 40,
	domain.StatusDone:       100,
}

// DerivedProgress is the display fallback used when no progress is stored.
func DerivedProgress(status domain.ActivityStatus) int {
	return derivedProgress[status]
}

// EffectiveProgress prefers the stored value over the derived one.
func EffectiveProgress(a domain.Activity) int {
	if a.Progress != nil {
		return *a.Progress
	}
	return DerivedProgress(a.Status)
}

type Urgency string

const (
	UrgencyOnTrack Urgency = "on_track"
	UrgencyOverdue Urgency = "overdue"
	UrgencyWarning Urgency = "warning"
	UrgencyNormal  Urgency = "normal"
)

// DeadlineUrgency classifies a due date. Done activities are always on track.
func DeadlineUrgency(due time.Time, status domain.ActivityStatus, now time.Time) Urgency {
	if status == domain.StatusDone {
		return UrgencyOnTrack
	}
	days := float64(due.Sub(now).Milliseconds()) / dayMillis
	switch {
	case days < 0:
		return UrgencyOverdue
	case days <= DeadlineWarningDays:
		return UrgencyWarning
	default:
		return UrgencyNormal
	}
}

type Color string

const (
	ColorGreen Color = "green"
	ColorRed   Color = "red"
	ColorAmber Color = "amber"
	ColorBlue  Color = "blue"
)

func ProgressColor(status domain.ActivityStatus, progress int) Color {
	switch {
	case status == domain.StatusDone:
		return ColorGreen
	case status == domain.StatusBlocked:
		return ColorRed
	case progress < 30:
		return ColorAmber
	case progress < 70:
		return ColorBlue
	default:
		return ColorGreen
	}
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateOnly, s)
}
