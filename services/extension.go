package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"franchise-dispatch-api/models"

	"github.com/google/uuid"
)

type ExtensionService struct {
	store    Store
	notifier Notifier
	opts     WorkflowOptions
}

func NewExtensionService(store Store, notifier Notifier, opts WorkflowOptions) *ExtensionService {
	return &ExtensionService{store: store, notifier: notifier, opts: opts}
}

// ExtendableCase is a delivery record whose pursuit window may still be
// extended, with the deadline an approval would grant.
type ExtendableCase struct {
	Record                models.DeliveryRecord `json:"record"`
	ProposedDeadline      time.Time             `json:"proposed_deadline"`
	HasPendingApplication bool                  `json:"has_pending_application"`
}

// GetEligibleCases lists the merchant's non-terminal records that have not
// used their extension yet.
func (s *ExtensionService) GetEligibleCases(ctx context.Context, merchantID string) ([]ExtendableCase, error) {
	if strings.TrimSpace(merchantID) == "" {
		return nil, validationErr("merchant_id is required")
	}
	records, err := s.store.ListDeliveryRecordsByMerchant(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	pending, err := s.store.ListExtensions(ctx, ApplicationFilter{MerchantID: merchantID, Status: models.ApprovalPending})
	if err != nil {
		return nil, err
	}
	pendingCases := make(map[string]bool, len(pending))
	for _, a := range pending {
		pendingCases[a.CaseID] = true
	}

	result := make([]ExtendableCase, 0, len(records))
	for i := range records {
		r := &records[i]
		if IsClosed(r) || r.IsExtended() {
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
		result = append(result, ExtendableCase{
			Record:                *r,
			ProposedDeadline:      s.opts.Policy.ExtendedDeadline(r.DeliveredAt),
			HasPendingApplication: pendingCases[r.CaseID],
		})
	}
	return result, nil
}

// ExtensionInput is the merchant's request for a longer pursuit window.
type ExtensionInput struct {
	MerchantID           string
	CaseID               string
	ContactAchievedAt    time.Time
	PlannedAppointmentAt time.Time
	Justification        string
}

func (in *ExtensionInput) validate() error {
	in.MerchantID = strings.TrimSpace(in.MerchantID)
	in.CaseID = strings.TrimSpace(in.CaseID)
	in.Justification = strings.TrimSpace(in.Justification)
	switch {
	case in.MerchantID == "" || in.CaseID == "":
		return validationErr("merchant_id and case_id are required")
	case in.ContactAchievedAt.IsZero():
		return validationErr("contact_achieved_at is required")
	case in.PlannedAppointmentAt.IsZero():
		return validationErr("planned_appointment_at is required")
	case in.PlannedAppointmentAt.Before(in.ContactAchievedAt):
		return validationErr("planned appointment cannot precede the achieved contact")
	case in.Justification == "":
		return validationErr("justification is required")
	}
	return nil
}

// SubmitExtension creates a pending extension application. The delivery
// record is untouched until the application is approved.
func (s *ExtensionService) SubmitExtension(ctx context.Context, in ExtensionInput) (*models.ExtensionApplication, error) {
	if err := in.validate(); err != nil {
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
	if IsClosed(rec) {
		return nil, notEligibleErr("delivery is already closed (%s/%s)", rec.DeliveryStatus, rec.DetailStatus)
	}
	if rec.IsExtended() {
		return nil, notEligibleErr("case %s already has an extended deadline", in.CaseID)
	}
	if in.ContactAchievedAt.Before(rec.DeliveredAt) {
		return nil, validationErr("contact_achieved_at precedes the delivery")
	}

	pending, err := s.store.ListExtensions(ctx, ApplicationFilter{
		CaseID:     in.CaseID,
		MerchantID: in.MerchantID,
		Status:     models.ApprovalPending,
	})
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		return nil, notEligibleErr("an extension application for case %s is already pending", in.CaseID)
	}

	app := &models.ExtensionApplication{
		ID:                       uuid.NewString(),
		CaseID:                   in.CaseID,
		MerchantID:               in.MerchantID,
		SubmittedAt:              s.opts.Clock.now(),
		DeliveredAt:              rec.DeliveredAt,
		ContactAchievedAt:        in.ContactAchievedAt,
		PlannedAppointmentAt:     in.PlannedAppointmentAt,
		Justification:            in.Justification,
		ComputedExtendedDeadline: s.opts.Policy.ExtendedDeadline(rec.DeliveredAt),
		ApprovalStatus:           models.ApprovalPending,
	}
	if err := s.store.CreateExtension(ctx, app); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, conflictErr("extension application %s already exists", app.ID)
		}
		return nil, err
	}

	n := Notification{
		EventKey: "extension_submitted",
		Header:   "Extension request: case " + app.CaseID + " by " + app.MerchantID,
		Severity: SeverityInfo,
		Fields: []NotificationField{
			{Label: "Case", Value: app.CaseID},
			{Label: "Merchant", Value: app.MerchantID},
			{Label: "Planned appointment", Value: app.PlannedAppointmentAt.In(s.opts.Policy.loc()).Format("2006-01-02 15:04")},
			{Label: "Deadline if approved", Value: app.ComputedExtendedDeadline.Format("2006-01-02 15:04:05.000")},
		},
		Body: app.Justification,
	}
	if s.opts.AdminBaseURL != "" {
		n.Link = strings.TrimRight(s.opts.AdminBaseURL, "/") + "/extensions/" + app.ID
	}
	dispatchBestEffort(ctx, s.notifier, n)
	return app, nil
}

func (s *ExtensionService) List(ctx context.Context, filter ApplicationFilter) ([]models.ExtensionApplication, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, validationErr("unknown approval status %q", filter.Status)
	}
	return s.store.ListExtensions(ctx, filter)
}
