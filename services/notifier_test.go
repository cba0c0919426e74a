package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func warningNotification() Notification {
	return Notification{
		EventKey: "cancellation_submitted",
		Header:   "Cancellation request: case X by Merchant A",
		Severity: SeverityWarning,
		Fields:   []NotificationField{{Label: "Case", Value: "X"}},
		Warning:  &NotificationWarning{Title: "1 other merchant(s) are actively pursuing this case", Lines: []string{"Merchant B (B): appointment-set"}},
		Body:     "Merchant A <tried> three times.",
	}
}

func TestWebhookNotifierRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Notify(context.Background(), warningNotification())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, strings.HasPrefix(got.Text, "[WARNING] "))
	assert.Equal(t, "cancellation_submitted", got.Notification.EventKey)
	require.NotNil(t, got.Notification.Warning)
}

func TestWebhookNotifierClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Notify(context.Background(), warningNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestWebhookNotifierRequiresURL(t *testing.T) {
	err := NewWebhookNotifier(" ").Notify(context.Background(), warningNotification())
	assert.Error(t, err)
}

func TestMailNotifierRendersWarningBlock(t *testing.T) {
	var subject, html string
	var to []string
	m := &MailNotifier{
		To: []string{"ops@example.com"},
		Send: func(rcpt []string, s, body string) error {
			to, subject, html = rcpt, s, body
			return nil
		},
	}

	require.NoError(t, m.Notify(context.Background(), warningNotification()))
	assert.Equal(t, []string{"ops@example.com"}, to)
	assert.Equal(t, "[WARNING] Cancellation request: case X by Merchant A", subject)
	assert.Contains(t, html, "actively pursuing this case")
	assert.Contains(t, html, "Merchant A &lt;tried&gt; three times.")
}

func TestMailNotifierWithoutRecipientsIsNoop(t *testing.T) {
	m := &MailNotifier{Send: func([]string, string, string) error {
		t.Fatal("send should not be called")
		return nil
	}}
	assert.NoError(t, m.Notify(context.Background(), warningNotification()))
}

func TestMultiNotifierJoinsFailures(t *testing.T) {
	ok := &recordingNotifier{}
	broken := &recordingNotifier{err: errors.New("smtp down")}

	err := MultiNotifier{broken, ok}.Notify(context.Background(), warningNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	assert.Len(t, ok.sent, 1)
	assert.Len(t, broken.sent, 1)
}

// gatedNotifier holds every delivery until gate is closed.
type gatedNotifier struct {
	gate chan struct{}
	next Notifier
}

func (g gatedNotifier) Notify(ctx context.Context, n Notification) error {
	<-g.gate
	return g.next.Notify(ctx, n)
}

func TestAsyncNotifierDeliversInBackground(t *testing.T) {
	gate := make(chan struct{})
	rec := &recordingNotifier{}
	async := NewAsyncNotifier(gatedNotifier{gate: gate, next: rec})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, async.Notify(ctx, warningNotification()))
	cancel()
	assert.Empty(t, rec.all())

	close(gate)
	async.Wait()
	assert.Len(t, rec.all(), 1)
}

func TestSubmitCancelReportDoesNotWaitForDelivery(t *testing.T) {
	env := newTestEnv(t, deliveredAt)
	env.seedMerchants(t, "A")
	env.seedCase(t, "X", "A")

	gate := make(chan struct{})
	rec := &recordingNotifier{}
	app := NewApp(env.store, AppConfig{
		Policy:   DefaultWindowPolicy(),
		Notifier: gatedNotifier{gate: gate, next: rec},
		Narrator: stubNarrator{err: errNarratorDown},
		Clock:    env.clock.Now,
	})

	done := make(chan error, 1)
	go func() {
		_, err := app.Cancellations.SubmitCancelReport(context.Background(), noContactInput("X", "A", 3, 1))
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		close(gate)
		t.Fatal("submission waited on notification delivery")
	}

	close(gate)
	app.Notifications.Wait()
	assert.Len(t, rec.byKey("cancellation_submitted"), 1)
}
