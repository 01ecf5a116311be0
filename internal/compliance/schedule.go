package compliance

import (
	"time"

	"grantwell/internal/models"
)

// DefaultHorizonMonths bounds obligation generation for open-ended awards.
const DefaultHorizonMonths = 24

// obligation is a not-yet-persisted reporting requirement.
type obligation struct {
	Type  string
	DueOn time.Time
}

// scheduleObligations derives the reporting obligations for an award window.
// Quarter boundaries are fixed calendar quarters (last day of March, June,
// September, December) regardless of when the award begins, so obligations
// align with the federal fiscal calendar. Months are walked from the month
// containing start through the month containing end, inclusive.
func scheduleObligations(start, end time.Time, cadence string) []obligation {
	var obligations []obligation
	for _, quarterEnd := range quarterEnds(start, end) {
		obligations = append(obligations, obligation{Type: models.EventSF425, DueOn: quarterEnd})
		if narrativeDueAt(quarterEnd, cadence) {
			obligations = append(obligations, obligation{Type: models.EventNarrative, DueOn: quarterEnd})
		}
	}
	return obligations
}

// narrativeDueAt reports whether a narrative report is owed at the given
// quarter end. Semiannual cadence reports only at the June and December
// quarters; anything else is treated as quarterly.
func narrativeDueAt(quarterEnd time.Time, cadence string) bool {
	if cadence != models.CadenceSemiannual {
		return true
	}
	m := quarterEnd.Month()
	return m == time.June || m == time.December
}

// quarterEnds lists the last calendar day of every quarter-end month whose
// month falls within [start, end].
func quarterEnds(start, end time.Time) []time.Time {
	var ends []time.Time
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(end) {
		if cur.Month()%3 == 0 {
			ends = append(ends, endOfMonth(cur))
		}
		cur = cur.AddDate(0, 1, 0)
	}
	return ends
}

// endOfMonth returns the last day of t's month at UTC midnight.
func endOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

// dateOf truncates to a UTC calendar date.
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
