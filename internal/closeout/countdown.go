package closeout

import (
	"fmt"
	"time"

	"grantwell/internal/models"
)

// DefaultGraceDays is the federal closeout grace period after the award end
// date.
const DefaultGraceDays = 120

// windowDays is the width of the "in closeout" window checked by
// WithinPeriod. It is intentionally a separate literal from the grace period:
// the source behavior this preserves checks against 120 even when a caller
// overrides daysAfter, and callers depend on that.
const windowDays = 120

// attentionDays is how close to the deadline a grant must be before it needs
// immediate attention.
const attentionDays = 30

// Deadline returns the closeout deadline: endDate plus daysAfter calendar
// days (DefaultGraceDays when daysAfter is not positive).
func Deadline(endDate time.Time, daysAfter int) time.Time {
	if daysAfter <= 0 {
		daysAfter = DefaultGraceDays
	}
	return dateOf(endDate).AddDate(0, 0, daysAfter)
}

// DaysUntil returns the signed day count from today to the closeout
// deadline; negative means overdue. A nil endDate returns -1, matching the
// contract the UI was built against (indistinguishable from one day overdue;
// use Grant.HasEndDate to tell them apart).
func DaysUntil(endDate *time.Time, daysAfter int) int {
	return daysUntilAt(endDate, daysAfter, time.Now())
}

func daysUntilAt(endDate *time.Time, daysAfter int, today time.Time) int {
	if endDate == nil || endDate.IsZero() {
		return -1
	}
	return daysBetween(today, Deadline(*endDate, daysAfter))
}

// WithinPeriod reports whether the grant is currently inside the closeout
// window: deadline not yet passed and at most windowDays away.
func WithinPeriod(endDate *time.Time, daysAfter int) bool {
	return withinPeriodAt(endDate, daysAfter, time.Now())
}

func withinPeriodAt(endDate *time.Time, daysAfter int, today time.Time) bool {
	days := daysUntilAt(endDate, daysAfter, today)
	return days >= 0 && days <= windowDays
}

// NeedsAttention reports whether the deadline is within the next
// attentionDays days.
func NeedsAttention(endDate *time.Time, daysAfter int) bool {
	return needsAttentionAt(endDate, daysAfter, time.Now())
}

func needsAttentionAt(endDate *time.Time, daysAfter int, today time.Time) bool {
	days := daysUntilAt(endDate, daysAfter, today)
	return days >= 0 && days <= attentionDays
}

// FormatCountdown renders a human-readable countdown. The second return is
// false outside the closeout window and when endDate is missing; the two
// cases are not distinguished.
func FormatCountdown(endDate *time.Time, daysAfter int) (string, bool) {
	return formatCountdownAt(endDate, daysAfter, time.Now())
}

func formatCountdownAt(endDate *time.Time, daysAfter int, today time.Time) (string, bool) {
	if endDate == nil || endDate.IsZero() {
		return "", false
	}
	days := daysUntilAt(endDate, daysAfter, today)
	switch {
	case days < 0:
		return fmt.Sprintf("Closeout overdue by %d days", -days), true
	case days == 0:
		return "Closeout due today", true
	case days <= windowDays:
		return fmt.Sprintf("Closeout in %d days", days), true
	default:
		return "", false
	}
}

// FilterPending keeps awarded grants with an end date inside the closeout
// window, preserving order.
func FilterPending(grants []models.Grant) []models.Grant {
	return filterPendingAt(grants, time.Now())
}

func filterPendingAt(grants []models.Grant, today time.Time) []models.Grant {
	var pending []models.Grant
	for _, g := range grants {
		if g.Status != models.GrantAwarded || !g.HasEndDate() {
			continue
		}
		if withinPeriodAt(g.EndDate, DefaultGraceDays, today) {
			pending = append(pending, g)
		}
	}
	return pending
}

// daysBetween counts whole calendar days from a to b, both truncated to UTC
// dates.
func daysBetween(a, b time.Time) int {
	return int(dateOf(b).Sub(dateOf(a)).Hours() / 24)
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
