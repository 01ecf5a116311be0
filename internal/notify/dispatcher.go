package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"grantwell/internal/models"
	"grantwell/internal/telemetry"
)

// Store is the persistence surface the reminder dispatcher needs.
type Store interface {
	DueSoon(ctx context.Context, cutoff time.Time) ([]models.ComplianceEvent, error)
	MarkReminded(ctx context.Context, eventID string, at time.Time) error
}

// Reminder is the outbox payload consumed by the external notification
// sender.
type Reminder struct {
	EventID string `json:"event_id"`
	GrantID string `json:"grant_id"`
	Type    string `json:"type"`
	DueOn   string `json:"due_on"`
}

// Dispatcher pushes due-soon reminders onto a Redis outbox list. Each event
// is reminded about at most once; the stamp lives on the event row so a
// restart never re-dispatches.
type Dispatcher struct {
	store     Store
	client    *redis.Client
	outboxKey string
	leadDays  int
	now       func() time.Time
}

func NewDispatcher(store Store, client *redis.Client, outboxKey string, leadDays int) *Dispatcher {
	if leadDays <= 0 {
		leadDays = 14
	}
	return &Dispatcher{
		store:     store,
		client:    client,
		outboxKey: outboxKey,
		leadDays:  leadDays,
		now:       time.Now,
	}
}

// DispatchDue scans Due events falling within the reminder lead window and
// pushes one reminder per event. Returns how many reminders went out.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	now := d.now().UTC()
	cutoff := now.AddDate(0, 0, d.leadDays)
	events, err := d.store.DueSoon(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("scan due events: %w", err)
	}

	sent := 0
	for _, e := range events {
		payload, err := json.Marshal(Reminder{
			EventID: e.ID,
			GrantID: e.GrantID,
			Type:    e.Type,
			DueOn:   e.DueOn.Format(models.DateLayout),
		})
		if err != nil {
			return sent, fmt.Errorf("marshal reminder: %w", err)
		}
		if err := d.client.RPush(ctx, d.outboxKey, payload).Err(); err != nil {
			return sent, fmt.Errorf("push reminder: %w", err)
		}
		if err := d.store.MarkReminded(ctx, e.ID, now); err != nil {
			return sent, fmt.Errorf("stamp reminder: %w", err)
		}
		sent++
	}

	telemetry.RemindersSent.Add(float64(sent))
	if depth, err := d.client.LLen(ctx, d.outboxKey).Result(); err == nil {
		telemetry.OutboxDepthGauge.Set(float64(depth))
	}
	if sent > 0 {
		log.WithField("count", sent).Info("Reminders dispatched")
	}
	return sent, nil
}
