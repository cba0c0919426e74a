package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"franchise-dispatch-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore counts writes that go through the transfer path.
type countingStore struct {
	*MemoryStore
	caseUpdates   atomic.Int32
	recordCreates atomic.Int32
}

func (s *countingStore) UpdateCase(ctx context.Context, c *models.Case) error {
	s.caseUpdates.Add(1)
	return s.MemoryStore.UpdateCase(ctx, c)
}

func (s *countingStore) CreateDeliveryRecord(ctx context.Context, r *models.DeliveryRecord) error {
	s.recordCreates.Add(1)
	return s.MemoryStore.CreateDeliveryRecord(ctx, r)
}

func TestTransferSweepNothingDue(t *testing.T) {
	env := newTestEnv(t, deliveredAt)
	env.seedMerchants(t, "A", "B")
	env.seedCase(t, "X", "A")
	_, err := env.app.Dispatcher.ScheduleRedelivery(context.Background(), "X", deliveredAt.Add(48*time.Hour), models.RedeliveryPayload{MerchantIDs: []string{"B"}})
	require.NoError(t, err)

	store := &countingStore{MemoryStore: env.store}
	sweep := NewTransferSweep(store, nil, env.clock.Now)

	var summary SweepSummary
	require.NoError(t, sweep.Sweep(context.Background(), &summary))
	assert.Equal(t, SweepSummary{}, summary)
	assert.Zero(t, store.caseUpdates.Load())
	assert.Zero(t, store.recordCreates.Load())
}

func TestTransferSweepDispatchesDueCase(t *testing.T) {
	env := newTestEnv(t, deliveredAt)
	env.seedMerchants(t, "A", "B", "C")
	env.seedCase(t, "X", "A")
	ctx := context.Background()

	_, err := env.app.Dispatcher.ScheduleRedelivery(ctx, "X", deliveredAt.Add(time.Hour), models.RedeliveryPayload{MerchantIDs: []string{"B", "C", "B"}})
	require.NoError(t, err)
	env.clock.Advance(2 * time.Hour)

	var summary SweepSummary
	require.NoError(t, env.app.Transfer.Sweep(ctx, &summary))
	assert.Equal(t, SweepSummary{Scanned: 1, Processed: 1}, summary)

	recs, err := env.store.ListDeliveryRecordsByCase(ctx, "X")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	ranks := map[string]int{}
	for _, r := range recs {
		ranks[r.MerchantID] = r.DeliveryRank
	}
	assert.Equal(t, map[string]int{"A": 1, "B": 2, "C": 3}, ranks)

	c, err := env.store.GetCase(ctx, "X")
	require.NoError(t, err)
	assert.Nil(t, c.RedeliverAt)
	assert.Empty(t, c.RedeliveryPayload.Data().MerchantIDs)
}

func TestTransferSweepFailureClearsSlot(t *testing.T) {
	env := newTestEnv(t, deliveredAt)
	env.seedMerchants(t, "A")
	env.seedCase(t, "X")
	ctx := context.Background()

	_, err := env.app.Dispatcher.ScheduleRedelivery(ctx, "X", deliveredAt, models.RedeliveryPayload{MerchantIDs: []string{"ghost"}})
	require.NoError(t, err)

	var first SweepSummary
	require.NoError(t, env.app.Transfer.Sweep(ctx, &first))
	assert.Equal(t, SweepSummary{Scanned: 1, Failed: 1}, first)

	c, err := env.store.GetCase(ctx, "X")
	require.NoError(t, err)
	assert.Nil(t, c.RedeliverAt)

	var second SweepSummary
	require.NoError(t, env.app.Transfer.Sweep(ctx, &second))
	assert.Equal(t, SweepSummary{}, second)
}

func TestTransferSweepDropsArchivedCase(t *testing.T) {
	env := newTestEnv(t, deliveredAt)
	env.seedMerchants(t, "A")
	env.seedCase(t, "X")
	ctx := context.Background()

	_, err := env.app.Dispatcher.ScheduleRedelivery(ctx, "X", deliveredAt, models.RedeliveryPayload{MerchantIDs: []string{"A"}})
	require.NoError(t, err)
	_, err = env.app.Ledger.ArchiveCase(ctx, "X")
	require.NoError(t, err)

	var summary SweepSummary
	require.NoError(t, env.app.Transfer.Sweep(ctx, &summary))
	assert.Equal(t, SweepSummary{Scanned: 1, Failed: 1}, summary)

	recs, err := env.store.ListDeliveryRecordsByCase(ctx, "X")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestScheduleRedeliveryValidation(t *testing.T) {
	env := newTestEnv(t, deliveredAt)
	env.seedCase(t, "X")
	ctx := context.Background()

	_, err := env.app.Dispatcher.ScheduleRedelivery(ctx, "X", deliveredAt, models.RedeliveryPayload{MerchantIDs: []string{" "}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.app.Dispatcher.ScheduleRedelivery(ctx, "X", time.Time{}, models.RedeliveryPayload{MerchantIDs: []string{"A"}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.app.Dispatcher.ScheduleRedelivery(ctx, "nope", deliveredAt, models.RedeliveryPayload{MerchantIDs: []string{"A"}})
	assert.ErrorIs(t, err, ErrNotFound)
}
