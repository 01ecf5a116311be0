package closeout

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
	svc := NewService(mem, 0, 0)
	svc.now = func() time.Time { return today }
	return svc, mem
}

func TestEnsureItemsInsideLeadWindow(t *testing.T) {
	ctx := context.Background()
	svc, mem := newTestService(testToday)
	end := testToday.AddDate(0, 0, 30)

	require.NoError(t, svc.EnsureItems(ctx, "g1", &end))

	assert.Equal(t, 1, mem.CloseoutInitCount("g1"))
	events, err := mem.ListEvents(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventCloseout, events[0].Type)
	assert.Equal(t, Deadline(end, 0), events[0].DueOn)
	assert.Equal(t, models.StatusDue, events[0].Status)
}

func TestEnsureItemsIdempotentEvent(t *testing.T) {
	ctx := context.Background()
	svc, mem := newTestService(testToday)
	end := testToday.AddDate(0, 0, 45)

	require.NoError(t, svc.EnsureItems(ctx, "g1", &end))
	require.NoError(t, svc.EnsureItems(ctx, "g1", &end))

	events, err := mem.ListEvents(ctx, "g1")
	require.NoError(t, err)
	assert.Len(t, events, 1, "repeat calls must not duplicate the Closeout event")
}

func TestEnsureItemsOutsideLeadWindow(t *testing.T) {
	ctx := context.Background()
	svc, mem := newTestService(testToday)

	farOut := testToday.AddDate(0, 0, 91)
	require.NoError(t, svc.EnsureItems(ctx, "g1", &farOut))

	past := testToday.AddDate(0, 0, -1)
	require.NoError(t, svc.EnsureItems(ctx, "g1", &past))

	require.NoError(t, svc.EnsureItems(ctx, "g1", nil))

	assert.Zero(t, mem.CloseoutInitCount("g1"))
	events, err := mem.ListEvents(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEnsureItemsAtWindowEdges(t *testing.T) {
	ctx := context.Background()
	svc, mem := newTestService(testToday)

	onEnd := time.Date(testToday.Year(), testToday.Month(), testToday.Day(), 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.EnsureItems(ctx, "edge0", &onEnd))
	assert.Equal(t, 1, mem.CloseoutInitCount("edge0"))

	atLead := testToday.AddDate(0, 0, 90)
	require.NoError(t, svc.EnsureItems(ctx, "edge90", &atLead))
	assert.Equal(t, 1, mem.CloseoutInitCount("edge90"))
}
