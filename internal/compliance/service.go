package compliance

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"grantwell/internal/models"
	"grantwell/internal/telemetry"
)

// Store is the persistence surface the compliance service needs.
type Store interface {
	ListEvents(ctx context.Context, grantID string) ([]models.ComplianceEvent, error)
	InsertEvents(ctx context.Context, events []models.ComplianceEvent) (int, error)
	SweepLate(ctx context.Context, grantID string, today time.Time) (int64, error)
	MarkSubmitted(ctx context.Context, eventID string, submittedOn time.Time) error
}

// Service generates a grant's recurring compliance obligations and tracks
// their status.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// GenerateEvents reconciles the store against the obligation set derived from
// the award window, inserting only obligations not already present, and
// returns how many rows were created. Repeated calls with the same inputs are
// idempotent.
//
// An unparseable awardStart is a silent no-op: no obligation set can be
// derived without a valid anchor, and callers treat zero as "nothing owed".
// A missing awardEnd defaults to awardStart plus horizonMonths.
//
// The same call sweeps the grant's prior events: anything still Due past its
// due date goes Late, whether or not new rows were generated. The sweep and
// the insert are separate store calls; a failure between them leaves the
// sweep applied.
func (s *Service) GenerateEvents(ctx context.Context, grantID, awardStart, awardEnd, cadence string, horizonMonths int) (int, error) {
	start, err := time.Parse(models.DateLayout, awardStart)
	if err != nil {
		log.WithFields(log.Fields{"grant_id": grantID, "award_start": awardStart}).
			Warn("Unparseable award start, skipping generation")
		return 0, nil
	}
	if horizonMonths <= 0 {
		horizonMonths = DefaultHorizonMonths
	}
	end, err := time.Parse(models.DateLayout, awardEnd)
	if awardEnd == "" || err != nil {
		end = start.AddDate(0, horizonMonths, 0)
	}

	today := dateOf(s.now())
	swept, err := s.store.SweepLate(ctx, grantID, today)
	if err != nil {
		return 0, fmt.Errorf("sweep late events: %w", err)
	}
	telemetry.LateTransitions.Add(float64(swept))

	existing, err := s.store.ListEvents(ctx, grantID)
	if err != nil {
		return 0, fmt.Errorf("list existing events: %w", err)
	}
	present := make(map[string]bool, len(existing))
	for _, e := range existing {
		present[e.Key()] = true
	}

	var missing []models.ComplianceEvent
	for _, ob := range scheduleObligations(start, end, cadence) {
		if present[models.EventKey(ob.Type, ob.DueOn)] {
			continue
		}
		missing = append(missing, models.ComplianceEvent{
			GrantID: grantID,
			Type:    ob.Type,
			DueOn:   ob.DueOn,
			Status:  models.StatusDue,
		})
	}

	created, err := s.store.InsertEvents(ctx, missing)
	if err != nil {
		return 0, fmt.Errorf("insert events: %w", err)
	}
	telemetry.EventsGenerated.Add(float64(created))
	if created > 0 || swept > 0 {
		log.WithFields(log.Fields{"grant_id": grantID, "created": created, "swept_late": swept}).
			Info("Compliance timeline refreshed")
	}
	return created, nil
}

// ListEvents returns the grant's events ascending by due date.
func (s *Service) ListEvents(ctx context.Context, grantID string) ([]models.ComplianceEvent, error) {
	return s.store.ListEvents(ctx, grantID)
}

// MarkSubmitted records a submission for the event. An empty submittedOn
// defaults to today. The transition is last-write-wins: re-submission and
// out-of-order submission dates are accepted as-is.
func (s *Service) MarkSubmitted(ctx context.Context, eventID, submittedOn string) error {
	on := dateOf(s.now())
	if submittedOn != "" {
		parsed, err := time.Parse(models.DateLayout, submittedOn)
		if err != nil {
			return fmt.Errorf("parse submitted_on %q: %w", submittedOn, err)
		}
		on = parsed
	}
	if err := s.store.MarkSubmitted(ctx, eventID, on); err != nil {
		return err
	}
	telemetry.Submissions.Inc()
	return nil
}
