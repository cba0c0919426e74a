package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"franchise-dispatch-api/models"
)

// QueryCategory selects delivery records by status class.
type QueryCategory string

const (
	CategoryAll     QueryCategory = ""
	CategoryPending QueryCategory = "pending"
	CategoryActive  QueryCategory = "active"
	CategoryClosed  QueryCategory = "closed"
)

func (c QueryCategory) Valid() bool {
	switch c {
	case CategoryAll, CategoryPending, CategoryActive, CategoryClosed:
		return true
	}
	return false
}

// ContactKind is a follow-up channel counted on a delivery record.
type ContactKind string

const (
	ContactCall ContactKind = "call"
	ContactSMS  ContactKind = "sms"
)

// IsClosed reports whether r no longer takes part in any workflow.
func IsClosed(r *models.DeliveryRecord) bool {
	return r.DeliveryStatus.IsTerminal() || r.DetailStatus.IsTerminal()
}

func categoryOf(r *models.DeliveryRecord) QueryCategory {
	if IsClosed(r) {
		return CategoryClosed
	}
	if r.DetailStatus.IsActive() {
		return CategoryActive
	}
	return CategoryPending
}

// Ledger owns delivery records: one per (case, merchant).
type Ledger struct {
	store Store
	clock Clock
}

func NewLedger(store Store, clock Clock) *Ledger {
	return &Ledger{store: store, clock: clock}
}

// Create records the delivery of caseID to merchantID at the given rank.
func (l *Ledger) Create(ctx context.Context, caseID, merchantID string, rank int) (*models.DeliveryRecord, error) {
	caseID = strings.TrimSpace(caseID)
	merchantID = strings.TrimSpace(merchantID)
	if caseID == "" || merchantID == "" {
		return nil, validationErr("case_id and merchant_id are required")
	}
	if rank <= 0 {
		return nil, validationErr("delivery rank must be positive")
	}

	c, err := l.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, lookupErr(err, "case %s not found", caseID)
	}
	if c.Archived {
		return nil, notEligibleErr("case %s is archived", caseID)
	}
	if _, err := l.store.GetMerchant(ctx, merchantID); err != nil {
		return nil, lookupErr(err, "merchant %s not found", merchantID)
	}

	now := l.clock.now()
	rec := &models.DeliveryRecord{
		CaseID:         caseID,
		MerchantID:     merchantID,
		DeliveredAt:    now,
		DeliveryRank:   rank,
		DeliveryStatus: models.DeliveryStatusActive,
		DetailStatus:   models.DetailNew,
		LastModifiedBy: "system",
		LastModifiedAt: now,
	}
	if err := l.store.CreateDeliveryRecord(ctx, rec); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, conflictErr("case %s is already delivered to merchant %s", caseID, merchantID)
		}
		return nil, err
	}
	return rec, nil
}

// UpdateDetailStatusInput is the merchant's progress report.
type UpdateDetailStatusInput struct {
	CaseID        string
	MerchantID    string
	Status        models.DetailStatus
	AppointmentAt *time.Time
	Actor         string
}

// UpdateDetailStatus moves the record's detail status between open stages.
// Terminal stages are reached only through MarkOutcome or an approved
// cancellation application, so coarse and fine statuses never disagree.
func (l *Ledger) UpdateDetailStatus(ctx context.Context, in UpdateDetailStatusInput) (*models.DeliveryRecord, error) {
	if !in.Status.Valid() {
		return nil, validationErr("unknown detail status %q", in.Status)
	}
	if in.Status == models.DetailCancelled {
		return nil, validationErr("cancellation must be requested through a cancellation report")
	}
	if in.Status.IsTerminal() {
		return nil, validationErr("%s closes the delivery and is recorded by an administrator", in.Status)
	}
	return l.mutate(ctx, in.CaseID, in.MerchantID, in.Actor, func(r *models.DeliveryRecord) error {
		if IsClosed(r) {
			return notEligibleErr("delivery is already closed as %s", r.DetailStatus)
		}
		r.DetailStatus = in.Status
		if in.AppointmentAt != nil {
			at := *in.AppointmentAt
			r.AppointmentAt = &at
		}
		return nil
	})
}

// RecordContact counts one follow-up attempt.
func (l *Ledger) RecordContact(ctx context.Context, caseID, merchantID string, kind ContactKind, at time.Time, actor string) (*models.DeliveryRecord, error) {
	if kind != ContactCall && kind != ContactSMS {
		return nil, validationErr("unknown contact kind %q", kind)
	}
	if at.IsZero() {
		at = l.clock.now()
	}
	return l.mutate(ctx, caseID, merchantID, actor, func(r *models.DeliveryRecord) error {
		switch kind {
		case ContactCall:
			r.CallCount++
		case ContactSMS:
			r.SMSCount++
		}
		if r.LastContactAt == nil || at.After(*r.LastContactAt) {
			contactAt := at
			r.LastContactAt = &contactAt
		}
		if r.DetailStatus == models.DetailNew {
			r.DetailStatus = models.DetailNoAppointment
		}
		return nil
	})
}

// MarkOutcome closes a record as contract or lost. Admin only.
func (l *Ledger) MarkOutcome(ctx context.Context, caseID, merchantID string, outcome models.DeliveryStatus, actor string) (*models.DeliveryRecord, error) {
	var detail models.DetailStatus
	switch outcome {
	case models.DeliveryStatusContract:
		detail = models.DetailComplete
	case models.DeliveryStatusLost:
		detail = ""
	default:
		return nil, validationErr("outcome must be contract or lost")
	}
	return l.mutate(ctx, caseID, merchantID, actor, func(r *models.DeliveryRecord) error {
		r.DeliveryStatus = outcome
		if detail != "" {
			r.DetailStatus = detail
		} else if !r.DetailStatus.IsTerminal() {
			r.DetailStatus = models.DetailLostCustomerDeclined
		}
		return nil
	})
}

// Query lists a merchant's records in the given category.
func (l *Ledger) Query(ctx context.Context, merchantID string, category QueryCategory) ([]models.DeliveryRecord, error) {
	if strings.TrimSpace(merchantID) == "" {
		return nil, validationErr("merchant_id is required")
	}
	if !category.Valid() {
		return nil, validationErr("unknown category %q", category)
	}
	rows, err := l.store.ListDeliveryRecordsByMerchant(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if category == CategoryAll {
		return rows, nil
	}
	filtered := make([]models.DeliveryRecord, 0, len(rows))
	for i := range rows {
		if categoryOf(&rows[i]) == category {
			filtered = append(filtered, rows[i])
		}
	}
	return filtered, nil
}

// ArchiveCase freezes a case. Its records stay in place but reject updates.
func (l *Ledger) ArchiveCase(ctx context.Context, caseID string) (*models.Case, error) {
	c, err := l.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, lookupErr(err, "case %s not found", caseID)
	}
	if c.Archived {
		return c, nil
	}
	c.Archived = true
	if err := l.store.UpdateCase(ctx, c); err != nil {
		return nil, casErr(err, "case %s was modified concurrently", caseID)
	}
	return c, nil
}

// applyCancellation makes the record terminal. Called by the approval pipeline.
func (l *Ledger) applyCancellation(ctx context.Context, caseID, merchantID, actor string) (*models.DeliveryRecord, error) {
	return l.mutate(ctx, caseID, merchantID, actor, func(r *models.DeliveryRecord) error {
		r.DeliveryStatus = models.DeliveryStatusCancelled
		r.DetailStatus = models.DetailCancelled
		return nil
	})
}

// applyExtension writes an approved deadline. Called by the approval pipeline.
func (l *Ledger) applyExtension(ctx context.Context, caseID, merchantID string, deadline time.Time, actor string) (*models.DeliveryRecord, error) {
	return l.mutate(ctx, caseID, merchantID, actor, func(r *models.DeliveryRecord) error {
		if r.ExtendedDeadline != nil {
			return notEligibleErr("delivery record already carries an extended deadline")
		}
		d := deadline
		r.ExtendedDeadline = &d
		return nil
	})
}

// mutate is the single read-check-write path for delivery records. The
// terminal and archive checks run on the freshly read row and the write is a
// compare-and-set against that row's version.
func (l *Ledger) mutate(ctx context.Context, caseID, merchantID, actor string, apply func(*models.DeliveryRecord) error) (*models.DeliveryRecord, error) {
	if strings.TrimSpace(caseID) == "" || strings.TrimSpace(merchantID) == "" {
		return nil, validationErr("case_id and merchant_id are required")
	}
	rec, err := l.store.GetDeliveryRecord(ctx, caseID, merchantID)
	if err != nil {
		return nil, lookupErr(err, "case %s is not delivered to merchant %s", caseID, merchantID)
	}
	c, err := l.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, lookupErr(err, "case %s not found", caseID)
	}
	if c.Archived {
		return nil, notEligibleErr("case %s is archived", caseID)
	}
	if rec.DeliveryStatus.IsTerminal() {
		return nil, notEligibleErr("delivery is already %s", rec.DeliveryStatus)
	}
	if err := apply(rec); err != nil {
		return nil, err
	}
	if actor == "" {
		actor = "system"
	}
	rec.LastModifiedBy = actor
	rec.LastModifiedAt = l.clock.now()
	if err := l.store.UpdateDeliveryRecord(ctx, rec); err != nil {
		return nil, casErr(err, "delivery record %s/%s was modified concurrently", caseID, merchantID)
	}
	return rec, nil
}

// lookupErr turns a store ErrNotFound into a NotFound service error and
// passes other failures through.
func lookupErr(err error, format string, args ...any) error {
	if errors.Is(err, ErrNotFound) {
		return notFoundErr(format, args...)
	}
	return err
}

func casErr(err error, format string, args ...any) error {
	if errors.Is(err, ErrConflict) {
		return conflictErr(format, args...)
	}
	return err
}
