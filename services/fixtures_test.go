package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"franchise-dispatch-api/models"

	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{now: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []Notification
	err   error
	flush func()
}

func (n *recordingNotifier) Notify(_ context.Context, msg Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

// all waits for in-flight notifications and returns what was delivered.
func (n *recordingNotifier) all() []Notification {
	if n.flush != nil {
		n.flush()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.sent...)
}

func (n *recordingNotifier) byKey(key string) []Notification {
	if n.flush != nil {
		n.flush()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Notification
	for _, msg := range n.sent {
		if msg.EventKey == key {
			out = append(out, msg)
		}
	}
	return out
}

type stubNarrator struct {
	text string
	err  error
}

func (s stubNarrator) Generate(context.Context, NarrativeInput) (string, error) {
	return s.text, s.err
}

var errNarratorDown = errors.New("narrator down")

type testEnv struct {
	store    *MemoryStore
	clock    *testClock
	notifier *recordingNotifier
	app      *App
}

func newTestEnv(t *testing.T, start time.Time) *testEnv {
	t.Helper()
	store := NewMemoryStore()
	clock := newTestClock(start)
	notifier := &recordingNotifier{}
	app := NewApp(store, AppConfig{
		Policy:   DefaultWindowPolicy(),
		Notifier: notifier,
		Narrator: stubNarrator{err: errNarratorDown},
		Clock:    clock.Now,
	})
	notifier.flush = app.Notifications.Wait
	return &testEnv{store: store, clock: clock, notifier: notifier, app: app}
}

func (e *testEnv) seedMerchants(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := e.app.Dispatcher.CreateMerchant(context.Background(), id, "Merchant "+id, "")
		require.NoError(t, err)
	}
}

func (e *testEnv) seedCase(t *testing.T, caseID string, merchantIDs ...string) []models.DeliveryRecord {
	t.Helper()
	ctx := context.Background()
	_, err := e.app.Dispatcher.CreateCase(ctx, CaseInput{CaseID: caseID, CustomerName: "Customer " + caseID})
	require.NoError(t, err)
	if len(merchantIDs) == 0 {
		return nil
	}
	recs, err := e.app.Dispatcher.Dispatch(ctx, caseID, merchantIDs)
	require.NoError(t, err)
	return recs
}

func (e *testEnv) record(t *testing.T, caseID, merchantID string) *models.DeliveryRecord {
	t.Helper()
	rec, err := e.store.GetDeliveryRecord(context.Background(), caseID, merchantID)
	require.NoError(t, err)
	return rec
}

func noContactInput(caseID, merchantID string, calls, sms int) CancelReportInput {
	return CancelReportInput{
		MerchantID:     merchantID,
		CaseID:         caseID,
		ReasonCategory: models.ReasonNoContact,
		ReasonDetail:   "customer never answered",
		ContactEvidence: models.ContactEvidence{
			PhoneCallCount: calls,
			SMSCount:       sms,
		},
	}
}
