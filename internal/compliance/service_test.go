package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantwell/internal/models"
	"grantwell/internal/store"
)

func newTestService(today time.Time) (*Service, *store.Memory) {
	mem := store.NewMemory()
	svc := NewService(mem)
	svc.now = func() time.Time { return today }
	return svc, mem
}

func TestGenerateEventsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, mem := newTestService(date(2024, time.January, 2))

	created, err := svc.GenerateEvents(ctx, "g1", "2024-01-15", "2024-12-31", models.CadenceQuarterly, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, created)

	again, err := svc.GenerateEvents(ctx, "g1", "2024-01-15", "2024-12-31", models.CadenceQuarterly, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, again)

	events, err := mem.ListEvents(ctx, "g1")
	require.NoError(t, err)
	assert.Len(t, events, 8)
}

func TestGenerateEventsOrderedByDueDate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(date(2024, time.January, 2))

	_, err := svc.GenerateEvents(ctx, "g1", "2024-01-15", "2024-12-31", models.CadenceQuarterly, 0)
	require.NoError(t, err)

	events, err := svc.ListEvents(ctx, "g1")
	require.NoError(t, err)
	require.NotEmpty(t, events)
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].DueOn.Before(events[i-1].DueOn))
	}
}

func TestGenerateEventsUnparseableStart(t *testing.T) {
	ctx := context.Background()
	svc, mem := newTestService(date(2024, time.July, 10))

	_, err := mem.InsertEvents(ctx, []models.ComplianceEvent{{
		ID:      "stale",
		GrantID: "g1",
		Type:    models.EventSF425,
		DueOn:   date(2024, time.March, 31),
		Status:  models.StatusDue,
	}})
	require.NoError(t, err)

	created, err := svc.GenerateEvents(ctx, "g1", "not-a-date", "2024-12-31", models.CadenceQuarterly, 0)
	require.NoError(t, err)
	assert.Zero(t, created)

	// A bad anchor is a full no-op: nothing inserted, and not even the late
	// sweep runs.
	events, err := mem.ListEvents(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.StatusDue, events[0].Status)
}

func TestGenerateEventsDefaultHorizon(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(date(2024, time.January, 2))

	// No end date: the horizon defaults to 24 months past the start, which
	// covers the eight quarter ends of 2024 and 2025.
	created, err := svc.GenerateEvents(ctx, "g1", "2024-01-15", "", models.CadenceQuarterly, 0)
	require.NoError(t, err)
	assert.Equal(t, 16, created)
}

func TestGenerateEventsSemiannualNarrative(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(date(2024, time.January, 2))

	created, err := svc.GenerateEvents(ctx, "g1", "2024-01-15", "2024-12-31", models.CadenceSemiannual, 0)
	require.NoError(t, err)
	assert.Equal(t, 6, created) // 4 SF-425 + 2 Narrative

	events, err := svc.ListEvents(ctx, "g1")
	require.NoError(t, err)
	var narrativeDues []string
	for _, e := range events {
		if e.Type == models.EventNarrative {
			narrativeDues = append(narrativeDues, e.DueOn.Format(models.DateLayout))
		}
	}
	assert.Equal(t, []string{"2024-06-30", "2024-12-31"}, narrativeDues)
}

func TestGenerateEventsSweepsLate(t *testing.T) {
	ctx := context.Background()
	today := date(2024, time.July, 10)
	svc, mem := newTestService(today)

	_, err := mem.InsertEvents(ctx, []models.ComplianceEvent{{
		ID:      "stale",
		GrantID: "g1",
		Type:    models.EventSubrecipientReview,
		DueOn:   date(2024, time.February, 15),
		Status:  models.StatusDue,
	}})
	require.NoError(t, err)

	// Any generation call sweeps, even one whose window yields nothing new.
	created, err := svc.GenerateEvents(ctx, "g1", "2024-04-01", "2024-05-31", models.CadenceQuarterly, 0)
	require.NoError(t, err)
	require.Zero(t, created)

	events, err := mem.ListEvents(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.StatusLate, events[0].Status)
}

func TestGenerateEventsSweepRunsBeforeInsert(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(date(2024, time.July, 10))

	// Rows created by this very call keep status Due even when their due
	// date is already past; only the next call's sweep flips them.
	_, err := svc.GenerateEvents(ctx, "g1", "2024-01-15", "2024-12-31", models.CadenceQuarterly, 0)
	require.NoError(t, err)

	events, err := svc.ListEvents(ctx, "g1")
	require.NoError(t, err)
	for _, e := range events {
		assert.Equal(t, models.StatusDue, e.Status)
	}

	_, err = svc.GenerateEvents(ctx, "g1", "2024-01-15", "2024-12-31", models.CadenceQuarterly, 0)
	require.NoError(t, err)

	events, err = svc.ListEvents(ctx, "g1")
	require.NoError(t, err)
	for _, e := range events {
		if e.DueOn.Before(date(2024, time.July, 10)) {
			assert.Equal(t, models.StatusLate, e.Status, "due %s", e.DueOn.Format(models.DateLayout))
		} else {
			assert.Equal(t, models.StatusDue, e.Status, "due %s", e.DueOn.Format(models.DateLayout))
		}
	}
}

func TestMarkSubmitted(t *testing.T) {
	ctx := context.Background()
	svc, mem := newTestService(date(2024, time.July, 10))

	_, err := mem.InsertEvents(ctx, []models.ComplianceEvent{{
		ID:      "e1",
		GrantID: "g1",
		Type:    models.EventSF425,
		DueOn:   date(2024, time.June, 30),
		Status:  models.StatusDue,
	}})
	require.NoError(t, err)

	require.NoError(t, svc.MarkSubmitted(ctx, "e1", "2024-07-01"))

	events, err := svc.ListEvents(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.StatusSubmitted, events[0].Status)
	require.NotNil(t, events[0].SubmittedOn)
	assert.Equal(t, "2024-07-01", events[0].SubmittedOn.Format(models.DateLayout))
}

func TestMarkSubmittedDefaultsToToday(t *testing.T) {
	ctx := context.Background()
	today := date(2024, time.July, 10)
	svc, mem := newTestService(today)

	_, err := mem.InsertEvents(ctx, []models.ComplianceEvent{{
		ID:      "e1",
		GrantID: "g1",
		Type:    models.EventNarrative,
		DueOn:   date(2024, time.June, 30),
		Status:  models.StatusLate,
	}})
	require.NoError(t, err)

	require.NoError(t, svc.MarkSubmitted(ctx, "e1", ""))

	events, err := svc.ListEvents(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, events[0].SubmittedOn)
	assert.Equal(t, today, *events[0].SubmittedOn)
}

func TestSubmittedIsTerminal(t *testing.T) {
	ctx := context.Background()
	svc, mem := newTestService(date(2024, time.July, 10))

	_, err := mem.InsertEvents(ctx, []models.ComplianceEvent{{
		ID:      "e1",
		GrantID: "g1",
		Type:    models.EventSF425,
		DueOn:   date(2024, time.March, 31),
		Status:  models.StatusDue,
	}})
	require.NoError(t, err)
	require.NoError(t, svc.MarkSubmitted(ctx, "e1", "2024-04-02"))

	// A later generation call must not drag a Submitted event back to Late,
	// even though its due date is long past.
	_, err = svc.GenerateEvents(ctx, "g1", "2024-01-15", "2024-12-31", models.CadenceQuarterly, 0)
	require.NoError(t, err)

	events, err := svc.ListEvents(ctx, "g1")
	require.NoError(t, err)
	for _, e := range events {
		if e.ID == "e1" {
			assert.Equal(t, models.StatusSubmitted, e.Status)
		}
	}
}

func TestMarkSubmittedBadDate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(date(2024, time.July, 10))
	err := svc.MarkSubmitted(ctx, "e1", "07/01/2024")
	assert.Error(t, err)
}
