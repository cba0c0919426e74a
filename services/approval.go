package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"franchise-dispatch-api/models"
)

// ApprovalService records admin decisions. It is the only path that moves a
// delivery record to cancelled or writes an extended deadline.
type ApprovalService struct {
	store    Store
	ledger   *Ledger
	notifier Notifier
	clock    Clock
}

func NewApprovalService(store Store, ledger *Ledger, notifier Notifier, clock Clock) *ApprovalService {
	if ledger == nil {
		ledger = NewLedger(store, clock)
	}
	return &ApprovalService{store: store, ledger: ledger, notifier: notifier, clock: clock}
}

func cleanApprover(approver string) (string, error) {
	approver = strings.TrimSpace(approver)
	if approver == "" {
		return "", validationErr("approver is required")
	}
	return approver, nil
}

func (s *ApprovalService) pendingCancellation(ctx context.Context, id string) (*models.CancellationApplication, error) {
	app, err := s.store.GetCancellation(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "cancellation application %s not found", id)
	}
	if app.ApprovalStatus != models.ApprovalPending {
		return nil, notFoundErr("cancellation application %s is not pending (%s)", id, app.ApprovalStatus)
	}
	return app, nil
}

func (s *ApprovalService) pendingExtension(ctx context.Context, id string) (*models.ExtensionApplication, error) {
	app, err := s.store.GetExtension(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "extension application %s not found", id)
	}
	if app.ApprovalStatus != models.ApprovalPending {
		return nil, notFoundErr("extension application %s is not pending (%s)", id, app.ApprovalStatus)
	}
	return app, nil
}

// ensureRecordOpen re-reads the linked record right before the decision is
// written. A terminal record means another writer got there first.
func (s *ApprovalService) ensureRecordOpen(ctx context.Context, caseID, merchantID string) error {
	rec, err := s.store.GetDeliveryRecord(ctx, caseID, merchantID)
	if err != nil {
		return lookupErr(err, "case %s is not delivered to merchant %s", caseID, merchantID)
	}
	if rec.DeliveryStatus.IsTerminal() {
		return conflictErr("delivery record %s/%s is already %s", caseID, merchantID, rec.DeliveryStatus)
	}
	return nil
}

// ApproveCancelReport approves the application and cancels the record.
//
// The application is claimed first with a compare-and-set so that two
// approvers cannot both win. If the record write then fails, the claim is
// rolled back to pending.
func (s *ApprovalService) ApproveCancelReport(ctx context.Context, id, approver string) (*models.CancellationApplication, error) {
	approver, err := cleanApprover(approver)
	if err != nil {
		return nil, err
	}
	app, err := s.pendingCancellation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureRecordOpen(ctx, app.CaseID, app.MerchantID); err != nil {
		return nil, err
	}

	now := s.clock.now()
	app.ApprovalStatus = models.ApprovalApproved
	app.Approver = &approver
	app.DecisionAt = &now
	if err := s.store.UpdateCancellation(ctx, app); err != nil {
		return nil, casErr(err, "cancellation application %s was decided concurrently", id)
	}

	if _, err := s.ledger.applyCancellation(ctx, app.CaseID, app.MerchantID, approver); err != nil {
		s.revertCancellation(ctx, app)
		if errors.Is(err, ErrNotEligible) {
			return nil, conflictErr("delivery record %s/%s changed before approval: %s", app.CaseID, app.MerchantID, PublicMessage(err))
		}
		return nil, err
	}

	dispatchBestEffort(ctx, s.notifier, decisionNotification("cancellation_approved", "Cancellation approved", app.CaseID, app.MerchantID, approver, ""))
	return app, nil
}

func (s *ApprovalService) revertCancellation(ctx context.Context, app *models.CancellationApplication) {
	app.ApprovalStatus = models.ApprovalPending
	app.Approver = nil
	app.DecisionAt = nil
	if err := s.store.UpdateCancellation(persistentContext(ctx), app); err != nil {
		log.Printf("failed to revert cancellation application %s to pending: %v", app.ID, err)
	}
}

// RejectCancelReport closes the application. The record stays active and a
// new application may be submitted while the window is open.
func (s *ApprovalService) RejectCancelReport(ctx context.Context, id, approver, reason string) (*models.CancellationApplication, error) {
	approver, err := cleanApprover(approver)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationErr("rejection reason is required")
	}
	app, err := s.pendingCancellation(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.now()
	app.ApprovalStatus = models.ApprovalRejected
	app.Approver = &approver
	app.DecisionAt = &now
	app.RejectionReason = &reason
	if err := s.store.UpdateCancellation(ctx, app); err != nil {
		return nil, casErr(err, "cancellation application %s was decided concurrently", id)
	}

	dispatchBestEffort(ctx, s.notifier, decisionNotification("cancellation_rejected", "Cancellation rejected", app.CaseID, app.MerchantID, approver, reason))
	return app, nil
}

// ApproveExtensionRequest approves the application and writes its computed
// deadline onto the record.
func (s *ApprovalService) ApproveExtensionRequest(ctx context.Context, id, approver string) (*models.ExtensionApplication, error) {
	approver, err := cleanApprover(approver)
	if err != nil {
		return nil, err
	}
	app, err := s.pendingExtension(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureRecordOpen(ctx, app.CaseID, app.MerchantID); err != nil {
		return nil, err
	}

	now := s.clock.now()
	app.ApprovalStatus = models.ApprovalApproved
	app.Approver = &approver
	app.DecisionAt = &now
	if err := s.store.UpdateExtension(ctx, app); err != nil {
		return nil, casErr(err, "extension application %s was decided concurrently", id)
	}

	if _, err := s.ledger.applyExtension(ctx, app.CaseID, app.MerchantID, app.ComputedExtendedDeadline, approver); err != nil {
		app.ApprovalStatus = models.ApprovalPending
		app.Approver = nil
		app.DecisionAt = nil
		if rerr := s.store.UpdateExtension(persistentContext(ctx), app); rerr != nil {
			log.Printf("failed to revert extension application %s to pending: %v", app.ID, rerr)
		}
		if errors.Is(err, ErrNotEligible) {
			return nil, conflictErr("delivery record %s/%s changed before approval: %s", app.CaseID, app.MerchantID, PublicMessage(err))
		}
		return nil, err
	}

	dispatchBestEffort(ctx, s.notifier, decisionNotification("extension_approved", "Extension approved", app.CaseID, app.MerchantID, approver,
		"new deadline "+app.ComputedExtendedDeadline.Format("2006-01-02 15:04:05.000")))
	return app, nil
}

func (s *ApprovalService) RejectExtensionRequest(ctx context.Context, id, approver, reason string) (*models.ExtensionApplication, error) {
	approver, err := cleanApprover(approver)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationErr("rejection reason is required")
	}
	app, err := s.pendingExtension(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.now()
	app.ApprovalStatus = models.ApprovalRejected
	app.Approver = &approver
	app.DecisionAt = &now
	app.RejectionReason = &reason
	if err := s.store.UpdateExtension(ctx, app); err != nil {
		return nil, casErr(err, "extension application %s was decided concurrently", id)
	}

	dispatchBestEffort(ctx, s.notifier, decisionNotification("extension_rejected", "Extension rejected", app.CaseID, app.MerchantID, approver, reason))
	return app, nil
}

func decisionNotification(key, title, caseID, merchantID, approver, note string) Notification {
	return Notification{
		EventKey: key,
		Header:   fmt.Sprintf("%s: case %s (%s)", title, caseID, merchantID),
		Severity: SeverityInfo,
		Fields: []NotificationField{
			{Label: "Case", Value: caseID},
			{Label: "Merchant", Value: merchantID},
			{Label: "Decided by", Value: approver},
		},
		Body: note,
	}
}
