package models

import (
	"time"
)

// DateLayout is the wire format for calendar dates (due dates, submission
// dates). Events carry no time-of-day component.
const DateLayout = "2006-01-02"

// Event types persisted in Postgres. The set is closed; the generator only
// ever emits SF-425 and Narrative, Closeout is created by the closeout
// bootstrap, and Subrecipient Review rows are entered by administrators.
const (
	EventSF425              = "SF-425"
	EventNarrative          = "Narrative"
	EventSubrecipientReview = "Subrecipient Review"
	EventCloseout           = "Closeout"
)

// Event statuses. Submitted is terminal.
const (
	StatusDue       = "Due"
	StatusSubmitted = "Submitted"
	StatusLate      = "Late"
)

// Narrative reporting cadences.
const (
	CadenceQuarterly  = "quarterly"
	CadenceSemiannual = "semiannual"
)

// ComplianceEvent is one reporting obligation for a grant.
type ComplianceEvent struct {
	ID          string     `json:"id"`
	GrantID     string     `json:"grant_id"`
	Type        string     `json:"type"`
	DueOn       time.Time  `json:"due_on"`
	Status      string     `json:"status"`
	SubmittedOn *time.Time `json:"submitted_on,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	RemindedAt  *time.Time `json:"reminded_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Key is the natural identity of an obligation within a grant. The store
// enforces uniqueness on the same triple.
func (e ComplianceEvent) Key() string {
	return EventKey(e.Type, e.DueOn)
}

// EventKey builds the type|due_on dedupe key used when diffing candidate
// obligations against persisted rows.
func EventKey(eventType string, dueOn time.Time) string {
	return eventType + "|" + dueOn.Format(DateLayout)
}
