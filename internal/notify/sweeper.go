package notify

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"grantwell/internal/telemetry"
)

// SweepStore is the slice of the store the late sweep needs.
type SweepStore interface {
	SweepLateAll(ctx context.Context, today time.Time) (int64, error)
}

// Sweeper is the cron-style periodic pass: flip overdue Due events to Late
// across all grants, then dispatch reminders. The functions it calls are
// stateless between invocations; all state lives in the store.
type Sweeper struct {
	store      SweepStore
	dispatcher *Dispatcher
	interval   time.Duration
	now        func() time.Time
}

func NewSweeper(store SweepStore, dispatcher *Dispatcher, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{store: store, dispatcher: dispatcher, interval: interval, now: time.Now}
}

// RunOnce performs a single sweep-and-dispatch pass, for use from an
// external cron trigger.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	swept, err := s.store.SweepLateAll(ctx, today)
	if err != nil {
		return fmt.Errorf("late sweep: %w", err)
	}
	telemetry.LateTransitions.Add(float64(swept))

	sent, err := s.dispatcher.DispatchDue(ctx)
	if err != nil {
		return fmt.Errorf("dispatch reminders: %w", err)
	}
	log.WithFields(log.Fields{"swept_late": swept, "reminders": sent}).Info("Sweep pass complete")
	return nil
}

// Run loops RunOnce on the configured interval until the context ends.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			log.WithError(err).Error("Sweep pass failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
