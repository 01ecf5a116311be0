package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"grantwell/internal/models"
)

// Memory is an in-memory store with the same surface as Postgres, used by
// tests and local development without a database.
type Memory struct {
	mu             sync.RWMutex
	grants         map[string]models.Grant
	events         map[string]models.ComplianceEvent
	closeoutInited map[string]int
}

func NewMemory() *Memory {
	return &Memory{
		grants:         make(map[string]models.Grant),
		events:         make(map[string]models.ComplianceEvent),
		closeoutInited: make(map[string]int),
	}
}

// PutGrant seeds or replaces a grant row.
func (m *Memory) PutGrant(g models.Grant) models.Grant {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	g.UpdatedAt = time.Now().UTC()
	m.grants[g.ID] = g
	return g
}

func (m *Memory) GetGrant(_ context.Context, id string) (models.Grant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.grants[id]
	if !ok {
		return models.Grant{}, fmt.Errorf("grant %s: %w", id, ErrNotFound)
	}
	return g, nil
}

func (m *Memory) ListGrants(_ context.Context) ([]models.Grant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	grants := make([]models.Grant, 0, len(m.grants))
	for _, g := range m.grants {
		grants = append(grants, g)
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].CreatedAt.After(grants[j].CreatedAt) })
	return grants, nil
}

func (m *Memory) ListEvents(_ context.Context, grantID string) ([]models.ComplianceEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := []models.ComplianceEvent{}
	for _, e := range m.events {
		if e.GrantID == grantID {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].DueOn.Before(events[j].DueOn) })
	return events, nil
}

func (m *Memory) InsertEvents(_ context.Context, events []models.ComplianceEvent) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, e := range events {
		if m.findByKey(e.GrantID, e.Key()) != "" {
			continue
		}
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.Status == "" {
			e.Status = models.StatusDue
		}
		now := time.Now().UTC()
		e.CreatedAt = now
		e.UpdatedAt = now
		m.events[e.ID] = e
		inserted++
	}
	return inserted, nil
}

func (m *Memory) SweepLate(_ context.Context, grantID string, today time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var swept int64
	for id, e := range m.events {
		if e.GrantID == grantID && e.Status == models.StatusDue && e.DueOn.Before(today) {
			e.Status = models.StatusLate
			e.UpdatedAt = time.Now().UTC()
			m.events[id] = e
			swept++
		}
	}
	return swept, nil
}

func (m *Memory) SweepLateAll(_ context.Context, today time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var swept int64
	for id, e := range m.events {
		if e.Status == models.StatusDue && e.DueOn.Before(today) {
			e.Status = models.StatusLate
			e.UpdatedAt = time.Now().UTC()
			m.events[id] = e
			swept++
		}
	}
	return swept, nil
}

func (m *Memory) MarkSubmitted(_ context.Context, eventID string, submittedOn time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok {
		return fmt.Errorf("event %s: %w", eventID, ErrNotFound)
	}
	e.Status = models.StatusSubmitted
	e.SubmittedOn = &submittedOn
	e.UpdatedAt = time.Now().UTC()
	m.events[eventID] = e
	return nil
}

func (m *Memory) CloseoutEventExists(_ context.Context, grantID string, dueOn time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findByKey(grantID, models.EventKey(models.EventCloseout, dueOn)) != "", nil
}

func (m *Memory) InitCloseoutTasks(_ context.Context, grantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeoutInited[grantID]++
	return nil
}

// CloseoutInitCount reports how many times closeout initialization ran for a
// grant, for assertions.
func (m *Memory) CloseoutInitCount(grantID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closeoutInited[grantID]
}

func (m *Memory) DueSoon(_ context.Context, cutoff time.Time) ([]models.ComplianceEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := []models.ComplianceEvent{}
	for _, e := range m.events {
		if e.Status == models.StatusDue && !e.DueOn.After(cutoff) && e.RemindedAt == nil {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].DueOn.Before(events[j].DueOn) })
	return events, nil
}

func (m *Memory) MarkReminded(_ context.Context, eventID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok {
		return fmt.Errorf("event %s: %w", eventID, ErrNotFound)
	}
	e.RemindedAt = &at
	e.UpdatedAt = time.Now().UTC()
	m.events[eventID] = e
	return nil
}

// findByKey requires the caller to hold at least a read lock.
func (m *Memory) findByKey(grantID, key string) string {
	for id, e := range m.events {
		if e.GrantID == grantID && e.Key() == key {
			return id
		}
	}
	return ""
}
