package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"franchise-dispatch-api/models"

	"gorm.io/datatypes"
)

// Dispatcher hands a case to merchants by creating their delivery records.
type Dispatcher struct {
	store  Store
	ledger *Ledger
	clock  Clock
}

func NewDispatcher(store Store, ledger *Ledger, clock Clock) *Dispatcher {
	if ledger == nil {
		ledger = NewLedger(store, clock)
	}
	return &Dispatcher{store: store, ledger: ledger, clock: clock}
}

func normalizeMerchantIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Dispatch delivers caseID to each merchant in turn, ranked after the
// existing deliveries. A failure for one merchant does not stop the rest;
// the returned error joins every failure.
func (d *Dispatcher) Dispatch(ctx context.Context, caseID string, merchantIDs []string) ([]models.DeliveryRecord, error) {
	caseID = strings.TrimSpace(caseID)
	merchantIDs = normalizeMerchantIDs(merchantIDs)
	if caseID == "" {
		return nil, validationErr("case_id is required")
	}
	if len(merchantIDs) == 0 {
		return nil, validationErr("at least one merchant_id is required")
	}

	existing, err := d.store.ListDeliveryRecordsByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	rank := 0
	for _, r := range existing {
		if r.DeliveryRank > rank {
			rank = r.DeliveryRank
		}
	}

	created := make([]models.DeliveryRecord, 0, len(merchantIDs))
	var errs []error
	for _, merchantID := range merchantIDs {
		rec, err := d.ledger.Create(ctx, caseID, merchantID, rank+1)
		if err != nil {
			errs = append(errs, fmt.Errorf("merchant %s: %w", merchantID, err))
			continue
		}
		rank++
		created = append(created, *rec)
	}
	return created, errors.Join(errs...)
}

// ScheduleRedelivery stores a future dispatch on the case. The transfer
// sweep picks it up once at is reached.
func (d *Dispatcher) ScheduleRedelivery(ctx context.Context, caseID string, at time.Time, payload models.RedeliveryPayload) (*models.Case, error) {
	payload.MerchantIDs = normalizeMerchantIDs(payload.MerchantIDs)
	if len(payload.MerchantIDs) == 0 {
		return nil, validationErr("at least one merchant_id is required")
	}
	if at.IsZero() {
		return nil, validationErr("redeliver_at is required")
	}
	c, err := d.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, lookupErr(err, "case %s not found", caseID)
	}
	if c.Archived {
		return nil, notEligibleErr("case %s is archived", caseID)
	}
	c.RedeliverAt = &at
	c.RedeliveryPayload = datatypes.NewJSONType(payload)
	if err := d.store.UpdateCase(ctx, c); err != nil {
		return nil, casErr(err, "case %s was modified concurrently", caseID)
	}
	return c, nil
}

// CaseInput describes a new lead.
type CaseInput struct {
	CaseID          string
	CustomerName    string
	CustomerPhone   string
	CustomerAddress string
	IntakeAt        time.Time
}

func (d *Dispatcher) CreateCase(ctx context.Context, in CaseInput) (*models.Case, error) {
	in.CaseID = strings.TrimSpace(in.CaseID)
	if in.CaseID == "" {
		return nil, validationErr("case_id is required")
	}
	if strings.TrimSpace(in.CustomerName) == "" {
		return nil, validationErr("customer_name is required")
	}
	now := d.clock.now()
	if in.IntakeAt.IsZero() {
		in.IntakeAt = now
	}
	c := &models.Case{
		CaseID:          in.CaseID,
		IntakeAt:        in.IntakeAt,
		CustomerName:    strings.TrimSpace(in.CustomerName),
		CustomerPhone:   strings.TrimSpace(in.CustomerPhone),
		CustomerAddress: strings.TrimSpace(in.CustomerAddress),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := d.store.CreateCase(ctx, c); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, conflictErr("case %s already exists", in.CaseID)
		}
		return nil, err
	}
	return c, nil
}

func (d *Dispatcher) CreateMerchant(ctx context.Context, merchantID, name, email string) (*models.Merchant, error) {
	merchantID = strings.TrimSpace(merchantID)
	name = strings.TrimSpace(name)
	if merchantID == "" || name == "" {
		return nil, validationErr("merchant_id and name are required")
	}
	m := &models.Merchant{
		MerchantID: merchantID,
		Name:       name,
		Email:      strings.TrimSpace(email),
		IsActive:   true,
		CreatedAt:  d.clock.now(),
	}
	if err := d.store.CreateMerchant(ctx, m); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, conflictErr("merchant %s already exists", merchantID)
		}
		return nil, err
	}
	return m, nil
}
