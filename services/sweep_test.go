package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"franchise-dispatch-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweep struct {
	name    string
	calls   int
	err     error
	summary SweepSummary
}

func (f *fakeSweep) Name() string { return f.name }

func (f *fakeSweep) Sweep(_ context.Context, summary *SweepSummary) error {
	f.calls++
	*summary = f.summary
	return f.err
}

func TestSweepRunnerRecordsSuccess(t *testing.T) {
	clock := newTestClock(time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC))
	store := NewMemoryStore()
	sw := &fakeSweep{name: "demo", summary: SweepSummary{Scanned: 4, Processed: 3, Failed: 1}}
	runner := NewSweepRunner(store, clock.Now, time.Minute, sw)

	summary, err := runner.RunByName(context.Background(), "demo", "cron")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)

	runs, err := runner.Runs().Recent(context.Background(), "demo", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.SweepRunStatusSuccess, runs[0].Status)
	assert.Equal(t, "cron", runs[0].TriggerSource)
	assert.Equal(t, uint(4), runs[0].Scanned)
	assert.Equal(t, uint(1), runs[0].Failed)
	require.NotNil(t, runs[0].FinishedAt)

	// The lease is released, so a second run goes through.
	_, err = runner.RunByName(context.Background(), "demo", "manual")
	require.NoError(t, err)
	assert.Equal(t, 2, sw.calls)
}

func TestSweepRunnerSkipsWhileLeaseHeld(t *testing.T) {
	now := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	clock := newTestClock(now)
	store := NewMemoryStore()
	sw := &fakeSweep{name: "demo"}
	runner := NewSweepRunner(store, clock.Now, time.Minute, sw)

	ok, err := store.AcquireLease(context.Background(), "demo", "other-host", now.Add(time.Minute), now)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = runner.Run(context.Background(), sw, "cron")
	require.ErrorIs(t, err, ErrSweepAlreadyRunning)
	assert.Zero(t, sw.calls)

	runs, err := runner.Runs().Recent(context.Background(), "demo", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.SweepRunStatusSkipped, runs[0].Status)

	// An expired lease is taken over.
	clock.Advance(2 * time.Minute)
	_, err = runner.Run(context.Background(), sw, "cron")
	require.NoError(t, err)
	assert.Equal(t, 1, sw.calls)
}

func TestSweepRunnerRecordsFailure(t *testing.T) {
	clock := newTestClock(time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC))
	store := NewMemoryStore()
	boom := errors.New("store unavailable")
	sw := &fakeSweep{name: "demo", err: boom}
	runner := NewSweepRunner(store, clock.Now, time.Minute, sw)

	_, err := runner.RunByName(context.Background(), "demo", "manual")
	require.ErrorIs(t, err, boom)

	runs, err := runner.Runs().Recent(context.Background(), "demo", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.SweepRunStatusFailed, runs[0].Status)
	require.NotNil(t, runs[0].ErrorMessage)
	assert.Contains(t, *runs[0].ErrorMessage, "store unavailable")
}

func TestSweepRunnerUnknownSweep(t *testing.T) {
	runner := NewSweepRunner(NewMemoryStore(), time.Now, time.Minute)
	_, err := runner.RunByName(context.Background(), "nope", "manual")
	assert.ErrorIs(t, err, ErrUnknownSweep)
}
