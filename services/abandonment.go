package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"franchise-dispatch-api/models"

	"github.com/google/uuid"
)

const AbandonmentSweepName = "abandonment_monitor"

const (
	DefaultHeartbeatTimeout = 3 * time.Minute
	DefaultMonitorWindow    = 10 * time.Minute
)

// AbandonmentPolicy bounds intake session monitoring.
type AbandonmentPolicy struct {
	HeartbeatTimeout time.Duration
	MonitorWindow    time.Duration
}

func (p AbandonmentPolicy) withDefaults() AbandonmentPolicy {
	if p.HeartbeatTimeout <= 0 {
		p.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if p.MonitorWindow <= 0 {
		p.MonitorWindow = DefaultMonitorWindow
	}
	return p
}

// NextIntakeState evaluates an intake session at now. Sessions past the
// monitor window go quiet regardless of their heartbeat.
func (p AbandonmentPolicy) NextIntakeState(s *models.IntakeSession, now time.Time) models.IntakeState {
	p = p.withDefaults()
	if s.State != models.IntakeActive {
		return s.State
	}
	if now.Sub(s.StartedAt) > p.MonitorWindow {
		return models.IntakeOutOfWindow
	}
	last := s.StartedAt
	if s.LastHeartbeatAt != nil {
		last = *s.LastHeartbeatAt
	}
	if now.Sub(last) >= p.HeartbeatTimeout {
		return models.IntakeAbandoned
	}
	return models.IntakeActive
}

/* ==========================
   Intake sessions
   ========================== */

type IntakeService struct {
	store Store
	clock Clock
}

func NewIntakeService(store Store, clock Clock) *IntakeService {
	return &IntakeService{store: store, clock: clock}
}

func (s *IntakeService) Start(ctx context.Context, customerLabel, source string) (*models.IntakeSession, error) {
	now := s.clock.now()
	session := &models.IntakeSession{
		ID:            uuid.NewString(),
		StartedAt:     now,
		State:         models.IntakeActive,
		CustomerLabel: strings.TrimSpace(customerLabel),
		Source:        strings.TrimSpace(source),
	}
	if err := s.store.CreateIntakeSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *IntakeService) Heartbeat(ctx context.Context, id string) (*models.IntakeSession, error) {
	return s.transition(ctx, id, func(session *models.IntakeSession, now time.Time) {
		session.LastHeartbeatAt = &now
	})
}

func (s *IntakeService) Complete(ctx context.Context, id string) (*models.IntakeSession, error) {
	return s.transition(ctx, id, func(session *models.IntakeSession, now time.Time) {
		session.State = models.IntakeCompleted
		session.ClosedAt = &now
	})
}

func (s *IntakeService) transition(ctx context.Context, id string, apply func(*models.IntakeSession, time.Time)) (*models.IntakeSession, error) {
	session, err := s.store.GetIntakeSession(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "intake session %s not found", id)
	}
	if session.State.IsTerminal() {
		return nil, notEligibleErr("intake session %s is %s", id, session.State)
	}
	apply(session, s.clock.now())
	if err := s.store.UpdateIntakeSession(ctx, session); err != nil {
		return nil, casErr(err, "intake session %s was modified concurrently", id)
	}
	return session, nil
}

/* ==========================
   Monitor sweep
   ========================== */

// AbandonmentMonitor moves stalled intake sessions to a terminal state and
// alerts staff once per abandoned session.
type AbandonmentMonitor struct {
	store        Store
	notifier     Notifier
	clock        Clock
	policy       AbandonmentPolicy
	adminBaseURL string
}

func NewAbandonmentMonitor(store Store, notifier Notifier, clock Clock, policy AbandonmentPolicy, adminBaseURL string) *AbandonmentMonitor {
	return &AbandonmentMonitor{
		store:        store,
		notifier:     notifier,
		clock:        clock,
		policy:       policy.withDefaults(),
		adminBaseURL: adminBaseURL,
	}
}

func (m *AbandonmentMonitor) Name() string { return AbandonmentSweepName }

// Sweep claims each state change with a compare-and-set before notifying.
// The notification is therefore sent at most once even if sweeps overlap.
func (m *AbandonmentMonitor) Sweep(ctx context.Context, summary *SweepSummary) error {
	sessions, err := m.store.ListActiveIntakeSessions(ctx)
	if err != nil {
		return err
	}
	summary.Scanned = len(sessions)

	now := m.clock.now()
	for i := range sessions {
		s := &sessions[i]
		next := m.policy.NextIntakeState(s, now)
		if next == models.IntakeActive {
			continue
		}
		lastSeen := s.StartedAt
		if s.LastHeartbeatAt != nil {
			lastSeen = *s.LastHeartbeatAt
		}

		s.State = next
		s.ClosedAt = &now
		if next == models.IntakeAbandoned {
			s.LastHeartbeatAt = nil
		}
		if err := m.store.UpdateIntakeSession(ctx, s); err != nil {
			if errors.Is(err, ErrConflict) {
				continue
			}
			summary.Failed++
			log.Printf("abandonment monitor: session %s update failed: %v", s.ID, err)
			continue
		}
		summary.Processed++

		if next == models.IntakeAbandoned {
			dispatchBestEffort(ctx, m.notifier, m.abandonedNotification(s, lastSeen, now))
		}
	}
	return nil
}

func (m *AbandonmentMonitor) abandonedNotification(s *models.IntakeSession, lastSeen, now time.Time) Notification {
	label := s.CustomerLabel
	if label == "" {
		label = s.ID
	}
	n := Notification{
		EventKey: "intake_abandoned",
		Header:   "Intake form abandoned: " + label,
		Severity: SeverityWarning,
		Fields: []NotificationField{
			{Label: "Session", Value: s.ID},
			{Label: "Source", Value: s.Source},
			{Label: "Started", Value: s.StartedAt.Format("15:04:05")},
			{Label: "Silent for", Value: fmt.Sprintf("%.0f min", now.Sub(lastSeen).Minutes())},
		},
	}
	if m.adminBaseURL != "" {
		n.Link = strings.TrimRight(m.adminBaseURL, "/") + "/intake/" + s.ID
	}
	return n
}
