package closeout

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"grantwell/internal/models"
	"grantwell/internal/telemetry"
)

// DefaultLeadDays is how far before the award end date closeout preparation
// begins.
const DefaultLeadDays = 90

// Store is the persistence surface the closeout bootstrap needs.
type Store interface {
	InitCloseoutTasks(ctx context.Context, grantID string) error
	CloseoutEventExists(ctx context.Context, grantID string, dueOn time.Time) (bool, error)
	InsertEvents(ctx context.Context, events []models.ComplianceEvent) (int, error)
}

// Service bridges the pure countdown math with the persisted-event model: it
// is the one place the two collaborate.
type Service struct {
	store     Store
	leadDays  int
	graceDays int
	now       func() time.Time
}

func NewService(store Store, leadDays, graceDays int) *Service {
	if leadDays <= 0 {
		leadDays = DefaultLeadDays
	}
	if graceDays <= 0 {
		graceDays = DefaultGraceDays
	}
	return &Service{store: store, leadDays: leadDays, graceDays: graceDays, now: time.Now}
}

// EnsureItems initializes the grant's closeout checklist and guarantees a
// single Closeout obligation at endDate plus the grace period, once the award
// end is at most leadDays away. Outside that window, or with no end date, it
// does nothing. Safe to call repeatedly.
func (s *Service) EnsureItems(ctx context.Context, grantID string, endDate *time.Time) error {
	if endDate == nil || endDate.IsZero() {
		return nil
	}
	daysToEnd := daysBetween(s.now(), *endDate)
	if daysToEnd < 0 || daysToEnd > s.leadDays {
		return nil
	}

	if err := s.store.InitCloseoutTasks(ctx, grantID); err != nil {
		return fmt.Errorf("initialize closeout tasks: %w", err)
	}
	telemetry.CloseoutsStarted.Inc()

	dueOn := Deadline(*endDate, s.graceDays)
	exists, err := s.store.CloseoutEventExists(ctx, grantID, dueOn)
	if err != nil {
		return fmt.Errorf("check closeout event: %w", err)
	}
	if exists {
		return nil
	}

	created, err := s.store.InsertEvents(ctx, []models.ComplianceEvent{{
		GrantID: grantID,
		Type:    models.EventCloseout,
		DueOn:   dueOn,
		Status:  models.StatusDue,
	}})
	if err != nil {
		return fmt.Errorf("insert closeout event: %w", err)
	}
	if created > 0 {
		log.WithFields(log.Fields{"grant_id": grantID, "due_on": dueOn.Format(models.DateLayout)}).
			Info("Closeout obligation created")
	}
	return nil
}
