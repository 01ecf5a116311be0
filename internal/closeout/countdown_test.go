package closeout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantwell/internal/models"
)

var testToday = time.Date(2024, time.July, 10, 9, 30, 0, 0, time.UTC)

func datePtr(t time.Time) *time.Time {
	return &t
}

func endDaysAgo(n int) *time.Time {
	return datePtr(testToday.AddDate(0, 0, -n))
}

func TestDeadline(t *testing.T) {
	end := time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, time.July, 29, 0, 0, 0, 0, time.UTC), Deadline(end, 0))
	assert.Equal(t, time.Date(2024, time.April, 30, 0, 0, 0, 0, time.UTC), Deadline(end, 30))
}

func TestDaysUntilBoundary(t *testing.T) {
	// End date exactly 120 days ago: the deadline is today.
	assert.Equal(t, 0, daysUntilAt(endDaysAgo(120), 0, testToday))
	// One day later the grant is one day overdue.
	assert.Equal(t, -1, daysUntilAt(endDaysAgo(121), 0, testToday))
	assert.Equal(t, 120, daysUntilAt(endDaysAgo(0), 0, testToday))
}

func TestDaysUntilMissingEndDate(t *testing.T) {
	assert.Equal(t, -1, daysUntilAt(nil, 0, testToday))
	// The sentinel collides with "one day overdue" but sits outside [0, 30],
	// so a missing end date never reads as needing attention.
	assert.False(t, needsAttentionAt(nil, 0, testToday))
	assert.False(t, withinPeriodAt(nil, 0, testToday))
}

func TestWithinPeriod(t *testing.T) {
	assert.True(t, withinPeriodAt(endDaysAgo(120), 0, testToday))
	assert.True(t, withinPeriodAt(endDaysAgo(0), 0, testToday))
	assert.False(t, withinPeriodAt(endDaysAgo(121), 0, testToday))
	assert.False(t, withinPeriodAt(endDaysAgo(-1), 0, testToday))
}

func TestWithinPeriodWindowIsFixed(t *testing.T) {
	// A custom grace period moves the deadline but the window width stays
	// 120: with daysAfter=200 and the end 50 days back, 150 days remain and
	// the grant does not count as in closeout yet.
	assert.Equal(t, 150, daysUntilAt(endDaysAgo(50), 200, testToday))
	assert.False(t, withinPeriodAt(endDaysAgo(50), 200, testToday))
	assert.True(t, withinPeriodAt(endDaysAgo(100), 200, testToday))
}

func TestNeedsAttention(t *testing.T) {
	assert.True(t, needsAttentionAt(endDaysAgo(120), 0, testToday)) // 0 days left
	assert.True(t, needsAttentionAt(endDaysAgo(90), 0, testToday))  // 30 days left
	assert.False(t, needsAttentionAt(endDaysAgo(89), 0, testToday)) // 31 days left
	assert.False(t, needsAttentionAt(endDaysAgo(121), 0, testToday))
}

func TestFormatCountdown(t *testing.T) {
	msg, ok := formatCountdownAt(endDaysAgo(120), 0, testToday)
	require.True(t, ok)
	assert.Equal(t, "Closeout due today", msg)

	msg, ok = formatCountdownAt(endDaysAgo(121), 0, testToday)
	require.True(t, ok)
	assert.Equal(t, "Closeout overdue by 1 days", msg)

	msg, ok = formatCountdownAt(endDaysAgo(130), 0, testToday)
	require.True(t, ok)
	assert.Equal(t, "Closeout overdue by 10 days", msg)

	msg, ok = formatCountdownAt(endDaysAgo(0), 0, testToday)
	require.True(t, ok)
	assert.Equal(t, "Closeout in 120 days", msg)

	_, ok = formatCountdownAt(endDaysAgo(-1), 0, testToday)
	assert.False(t, ok, "not yet within the window")

	_, ok = formatCountdownAt(nil, 0, testToday)
	assert.False(t, ok, "missing end date")
}

func TestFilterPending(t *testing.T) {
	grants := []models.Grant{
		{ID: "a", Status: models.GrantAwarded, EndDate: endDaysAgo(100)},
		{ID: "b", Status: models.GrantDraft, EndDate: endDaysAgo(100)},
		{ID: "c", Status: models.GrantAwarded},
		{ID: "d", Status: models.GrantAwarded, EndDate: endDaysAgo(200)},
		{ID: "e", Status: models.GrantAwarded, EndDate: endDaysAgo(10)},
	}

	pending := filterPendingAt(grants, testToday)
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].ID)
	assert.Equal(t, "e", pending[1].ID)
}

func TestDaysBetweenIgnoresTimeOfDay(t *testing.T) {
	a := time.Date(2024, time.July, 10, 23, 59, 0, 0, time.UTC)
	b := time.Date(2024, time.July, 11, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 1, daysBetween(a, b))
}
