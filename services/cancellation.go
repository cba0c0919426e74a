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
	"gorm.io/datatypes"
)

// EvidenceRule is the minimum follow-up a reason category demands.
type EvidenceRule struct {
	MinPhoneCalls int
	MinSMS        int
}

func DefaultEvidenceRules() map[models.ReasonCategory]EvidenceRule {
	return map[models.ReasonCategory]EvidenceRule{
		models.ReasonNoContact: {MinPhoneCalls: 3, MinSMS: 1},
	}
}

// WorkflowOptions are shared by the merchant-facing workflows.
type WorkflowOptions struct {
	Policy        WindowPolicy
	EvidenceRules map[models.ReasonCategory]EvidenceRule
	AdminBaseURL  string
	Clock         Clock
}

type CancellationService struct {
	store    Store
	checker  *CompetitorChecker
	narrator NarrativeGenerator
	notifier Notifier
	opts     WorkflowOptions
}

func NewCancellationService(store Store, checker *CompetitorChecker, narrator NarrativeGenerator, notifier Notifier, opts WorkflowOptions) *CancellationService {
	if opts.EvidenceRules == nil {
		opts.EvidenceRules = DefaultEvidenceRules()
	}
	if checker == nil {
		checker = NewCompetitorChecker(store)
	}
	return &CancellationService{
		store:    store,
		checker:  checker,
		narrator: narrator,
		notifier: notifier,
		opts:     opts,
	}
}

// CancelableCase is a delivery record the merchant may still cancel.
type CancelableCase struct {
	Record                models.DeliveryRecord `json:"record"`
	ElapsedDays           int                   `json:"elapsed_days"`
	EffectiveDeadline     time.Time             `json:"effective_deadline"`
	HasPendingApplication bool                  `json:"has_pending_application"`
}

func (s *CancellationService) GetCancelableCases(ctx context.Context, merchantID string) ([]CancelableCase, error) {
	if strings.TrimSpace(merchantID) == "" {
		return nil, validationErr("merchant_id is required")
	}
	records, err := s.store.ListDeliveryRecordsByMerchant(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	pending, err := s.store.ListCancellations(ctx, ApplicationFilter{MerchantID: merchantID, Status: models.ApprovalPending})
	if err != nil {
		return nil, err
	}
	pendingCases := make(map[string]bool, len(pending))
	for _, a := range pending {
		pendingCases[a.CaseID] = true
	}

	now := s.opts.Clock.now()
	result := make([]CancelableCase, 0, len(records))
	for i := range records {
		r := &records[i]
		if r.DeliveryStatus != models.DeliveryStatusActive || IsClosed(r) {
			continue
		}
		elapsed, ok := s.opts.Policy.WithinCancelWindow(r, now)
		if !ok {
			continue
		}
		c, err := s.store.GetCase(ctx, r.CaseID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if c.Archived {
			continue
		}
		result = append(result, CancelableCase{
			Record:                *r,
			ElapsedDays:           elapsed,
			EffectiveDeadline:     s.opts.Policy.EffectiveDeadline(r),
			HasPendingApplication: pendingCases[r.CaseID],
		})
	}
	return result, nil
}

// CancelReportInput is the merchant's cancellation request.
type CancelReportInput struct {
	MerchantID        string
	CaseID            string
	ReasonCategory    models.ReasonCategory
	ReasonDetail      string
	StructuredAnswers []models.StructuredAnswer
	ContactEvidence   models.ContactEvidence
}

func (s *CancellationService) validate(in *CancelReportInput) error {
	in.MerchantID = strings.TrimSpace(in.MerchantID)
	in.CaseID = strings.TrimSpace(in.CaseID)
	in.ReasonDetail = strings.TrimSpace(in.ReasonDetail)
	if in.MerchantID == "" || in.CaseID == "" {
		return validationErr("merchant_id and case_id are required")
	}
	if !in.ReasonCategory.Valid() {
		return validationErr("unknown reason category %q", in.ReasonCategory)
	}
	if in.ReasonCategory == models.ReasonOther && in.ReasonDetail == "" {
		return validationErr("reason detail is required for category %q", in.ReasonCategory)
	}
	if in.ContactEvidence.PhoneCallCount < 0 || in.ContactEvidence.SMSCount < 0 {
		return validationErr("contact counts cannot be negative")
	}
	if rule, ok := s.opts.EvidenceRules[in.ReasonCategory]; ok {
		ev := in.ContactEvidence
		if ev.PhoneCallCount < rule.MinPhoneCalls || ev.SMSCount < rule.MinSMS {
			return &ServiceError{
				Kind: ErrValidation,
				Message: fmt.Sprintf("insufficient follow-up: %q requires at least %d call(s) and %d SMS, got %d and %d",
					in.ReasonCategory, rule.MinPhoneCalls, rule.MinSMS, ev.PhoneCallCount, ev.SMSCount),
			}
		}
	}
	return nil
}

// SubmitCancelReport creates a pending cancellation application and alerts
// staff. The competitor check and the narrative only annotate the alert;
// neither can block the submission.
func (s *CancellationService) SubmitCancelReport(ctx context.Context, in CancelReportInput) (*models.CancellationApplication, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}

	rec, err := s.store.GetDeliveryRecord(ctx, in.CaseID, in.MerchantID)
	if err != nil {
		return nil, lookupErr(err, "case %s is not delivered to merchant %s", in.CaseID, in.MerchantID)
	}
	c, err := s.store.GetCase(ctx, in.CaseID)
	if err != nil {
		return nil, lookupErr(err, "case %s not found", in.CaseID)
	}
	if c.Archived {
		return nil, notEligibleErr("case %s is archived", in.CaseID)
	}
	if rec.DeliveryStatus != models.DeliveryStatusActive || IsClosed(rec) {
		return nil, notEligibleErr("delivery is already closed (%s/%s)", rec.DeliveryStatus, rec.DetailStatus)
	}

	now := s.opts.Clock.now()
	elapsed, ok := s.opts.Policy.WithinCancelWindow(rec, now)
	if !ok {
		return nil, notEligibleErr("cancellation window closed: %d day(s) since delivery, deadline %s",
			elapsed, s.opts.Policy.EffectiveDeadline(rec).Format(time.RFC3339))
	}

	pending, err := s.store.ListCancellations(ctx, ApplicationFilter{
		CaseID:     in.CaseID,
		MerchantID: in.MerchantID,
		Status:     models.ApprovalPending,
	})
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		return nil, notEligibleErr("a cancellation application for case %s is already pending", in.CaseID)
	}

	snapshot, err := s.checker.Check(ctx, in.CaseID, in.MerchantID)
	if err != nil {
		log.Printf("competitor check for case %s failed: %v", in.CaseID, err)
		snapshot = models.CompetitorSnapshot{CompetitorDetails: []models.CompetitorDetail{}}
	}

	reason := models.CancelReason{
		Category: in.ReasonCategory,
		Detail:   in.ReasonDetail,
		Answers:  in.StructuredAnswers,
	}
	merchantName := in.MerchantID
	if m, err := s.store.GetMerchant(ctx, in.MerchantID); err == nil {
		merchantName = m.Name
	}
	narrative := narrate(ctx, s.narrator, NarrativeInput{
		CaseID:               in.CaseID,
		MerchantID:           in.MerchantID,
		MerchantName:         merchantName,
		ElapsedDays:          elapsed,
		Reason:               reason,
		Evidence:             in.ContactEvidence,
		HasActiveCompetitors: snapshot.HasActiveCompetitors,
	})

	app := &models.CancellationApplication{
		ID:             uuid.NewString(),
		CaseID:         in.CaseID,
		MerchantID:     in.MerchantID,
		SubmittedAt:    now,
		DeliveredAt:    rec.DeliveredAt,
		ElapsedDays:    elapsed,
		Reason:         datatypes.NewJSONType(reason),
		Evidence:       datatypes.NewJSONType(in.ContactEvidence),
		Competitors:    datatypes.NewJSONType(snapshot),
		Narrative:      narrative,
		ApprovalStatus: models.ApprovalPending,
	}
	if err := s.store.CreateCancellation(ctx, app); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, conflictErr("cancellation application %s already exists", app.ID)
		}
		return nil, err
	}

	dispatchBestEffort(ctx, s.notifier, s.buildNotification(app, merchantName, reason, snapshot))
	return app, nil
}

func (s *CancellationService) buildNotification(app *models.CancellationApplication, merchantName string, reason models.CancelReason, snapshot models.CompetitorSnapshot) Notification {
	ev := app.Evidence.Data()
	n := Notification{
		EventKey: "cancellation_submitted",
		Header:   fmt.Sprintf("Cancellation request: case %s by %s", app.CaseID, merchantName),
		Severity: SeverityInfo,
		Fields: []NotificationField{
			{Label: "Case", Value: app.CaseID},
			{Label: "Merchant", Value: fmt.Sprintf("%s (%s)", merchantName, app.MerchantID)},
			{Label: "Elapsed days", Value: fmt.Sprintf("%d", app.ElapsedDays)},
			{Label: "Reason", Value: string(reason.Category)},
			{Label: "Follow-up", Value: fmt.Sprintf("%d call(s), %d SMS", ev.PhoneCallCount, ev.SMSCount)},
		},
		Body: app.Narrative,
	}
	if s.opts.AdminBaseURL != "" {
		n.Link = strings.TrimRight(s.opts.AdminBaseURL, "/") + "/cancellations/" + app.ID
	}
	if snapshot.HasActiveCompetitors {
		n.Severity = SeverityWarning
		lines := make([]string, 0, len(snapshot.CompetitorDetails))
		for _, d := range snapshot.CompetitorDetails {
			line := fmt.Sprintf("%s (%s): %s, %d call(s), %d SMS", d.MerchantName, d.MerchantID, d.DetailStatus, d.CallCount, d.SMSCount)
			if d.AppointmentAt != nil {
				line += ", appointment " + d.AppointmentAt.Format("2006-01-02 15:04")
			}
			lines = append(lines, line)
		}
		n.Warning = &NotificationWarning{
			Title: fmt.Sprintf("%d other merchant(s) are actively pursuing this case", len(lines)),
			Lines: lines,
		}
	}
	return n
}

func (s *CancellationService) List(ctx context.Context, filter ApplicationFilter) ([]models.CancellationApplication, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, validationErr("unknown approval status %q", filter.Status)
	}
	return s.store.ListCancellations(ctx, filter)
}
