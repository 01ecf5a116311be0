package models

import (
	"time"
)

// Grant pipeline statuses. Only awarded grants accrue compliance obligations
// and closeout deadlines; the rest exist because the wider application moves
// grants through this pipeline and we read whatever it wrote.
const (
	GrantDraft     = "draft"
	GrantSubmitted = "submitted"
	GrantAwarded   = "awarded"
	GrantRejected  = "rejected"
	GrantClosed    = "closed"
)

// Grant is the slice of the grants table this service reads. The broader
// application owns the row; nothing here mutates it.
type Grant struct {
	ID               string     `json:"id"`
	Agency           string     `json:"agency"`
	Title            string     `json:"title"`
	Status           string     `json:"status"`
	AwardStart       *time.Time `json:"award_start,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	NarrativeCadence string     `json:"narrative_cadence"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// HasEndDate reports whether the award window is bounded. Closeout math
// returns its -1 sentinel when this is false.
func (g Grant) HasEndDate() bool {
	return g.EndDate != nil && !g.EndDate.IsZero()
}
