package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"franchise-dispatch-api/config"

	"github.com/cenkalti/backoff/v4"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

type NotificationField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type NotificationWarning struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
}

// Notification is the structured staff alert sent to the chat webhook and
// mailed to staff.
type Notification struct {
	EventKey string               `json:"event_key"`
	Header   string               `json:"header"`
	Severity Severity             `json:"severity"`
	Fields   []NotificationField  `json:"fields"`
	Warning  *NotificationWarning `json:"warning,omitempty"`
	Body     string               `json:"body,omitempty"`
	Link     string               `json:"link,omitempty"`
}

// Notifier delivers staff notifications. Callers treat failures as
// best-effort: they are logged and never surfaced to the requester.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// dispatchBestEffort sends n and absorbs any failure into the log.
func dispatchBestEffort(ctx context.Context, notifier Notifier, n Notification) {
	if notifier == nil {
		return
	}
	if err := notifier.Notify(persistentContext(ctx), n); err != nil {
		log.Printf("notification %s not delivered: %v", n.EventKey, degradedErr("notification dispatch", err))
	}
}

// AsyncNotifier hands each notification to its own goroutine so the request
// that raised it never waits on webhook retries or SMTP. Wait blocks until
// every notification handed over so far has been attempted.
type AsyncNotifier struct {
	next Notifier
	wg   sync.WaitGroup
}

func NewAsyncNotifier(next Notifier) *AsyncNotifier {
	return &AsyncNotifier{next: next}
}

func (a *AsyncNotifier) Notify(ctx context.Context, n Notification) error {
	if a.next == nil {
		return nil
	}
	detached := persistentContext(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		dispatchBestEffort(detached, a.next, n)
	}()
	return nil
}

func (a *AsyncNotifier) Wait() {
	a.wg.Wait()
}

/* ==========================
   Chat webhook
   ========================== */

type WebhookNotifier struct {
	URL        string
	Client     *http.Client
	MaxRetries uint64
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:        url,
		Client:     &http.Client{Timeout: 10 * time.Second},
		MaxRetries: 2,
	}
}

type webhookPayload struct {
	Text         string       `json:"text"`
	Notification Notification `json:"card"`
}

func summaryText(n Notification) string {
	prefix := ""
	if n.Severity == SeverityWarning {
		prefix = "[WARNING] "
	}
	return prefix + n.Header
}

func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	if strings.TrimSpace(w.URL) == "" {
		return errors.New("webhook url not configured")
	}
	body, err := json.Marshal(webhookPayload{Text: summaryText(n), Notification: n})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("webhook responded %d", resp.StatusCode)
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("webhook responded %d", resp.StatusCode))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 5 * time.Second
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, w.MaxRetries), ctx))
}

/* ==========================
   Staff email
   ========================== */

type MailNotifier struct {
	To   []string
	Send func(to []string, subject, html string) error
}

func NewMailNotifier(to []string) *MailNotifier {
	return &MailNotifier{To: to, Send: config.SendMail}
}

var mailTemplate = template.Must(template.New("notification").Parse(`<h3>{{.Header}}</h3>
{{if .Warning}}<div style="border:1px solid #d97706;padding:8px;background:#fffbeb">
<strong>{{.Warning.Title}}</strong>
<ul>{{range .Warning.Lines}}<li>{{.}}</li>{{end}}</ul>
</div>{{end}}
<table>{{range .Fields}}<tr><th align="left">{{.Label}}</th><td>{{.Value}}</td></tr>{{end}}</table>
{{if .Body}}<p style="white-space:pre-wrap">{{.Body}}</p>{{end}}
{{if .Link}}<p><a href="{{.Link}}">{{.Link}}</a></p>{{end}}`))

func (m *MailNotifier) Notify(_ context.Context, n Notification) error {
	if len(m.To) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := mailTemplate.Execute(&buf, n); err != nil {
		return fmt.Errorf("render notification mail: %w", err)
	}
	send := m.Send
	if send == nil {
		send = config.SendMail
	}
	return send(m.To, summaryText(n), buf.String())
}

/* ==========================
   Fan-out & fallback
   ========================== */

// MultiNotifier sends to every channel and joins their failures.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes notifications to the application log. Used when no
// channel is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n Notification) error {
	log.Printf("notification [%s] %s: %s", n.Severity, n.EventKey, n.Header)
	return nil
}
