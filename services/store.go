package services

import (
	"context"
	"time"

	"franchise-dispatch-api/models"
)

// ApplicationFilter narrows application listings. Zero fields match anything.
type ApplicationFilter struct {
	CaseID     string
	MerchantID string
	Status     models.ApprovalStatus
}

func (f ApplicationFilter) matches(caseID, merchantID string, status models.ApprovalStatus) bool {
	if f.CaseID != "" && f.CaseID != caseID {
		return false
	}
	if f.MerchantID != "" && f.MerchantID != merchantID {
		return false
	}
	if f.Status != "" && f.Status != status {
		return false
	}
	return true
}

// Store is the shared record store. It has no multi-row transactions: every
// Update* call is a single-row compare-and-set on the row's Version. It
// writes only if the stored version still equals the caller's copy, bumps the
// version on success and returns ErrConflict otherwise. Create* returns
// ErrConflict when the key already exists.
//
// Preconditions checked by callers between their read and the CAS write are
// therefore safe against lost updates, but two writers creating different
// rows that must be mutually exclusive (two pending applications for the
// same record) can still both succeed inside the read-then-write window.
type Store interface {
	CreateCase(ctx context.Context, c *models.Case) error
	GetCase(ctx context.Context, caseID string) (*models.Case, error)
	ListCasesDueForRedelivery(ctx context.Context, now time.Time) ([]models.Case, error)
	UpdateCase(ctx context.Context, c *models.Case) error

	CreateMerchant(ctx context.Context, m *models.Merchant) error
	GetMerchant(ctx context.Context, merchantID string) (*models.Merchant, error)

	CreateDeliveryRecord(ctx context.Context, r *models.DeliveryRecord) error
	GetDeliveryRecord(ctx context.Context, caseID, merchantID string) (*models.DeliveryRecord, error)
	ListDeliveryRecordsByCase(ctx context.Context, caseID string) ([]models.DeliveryRecord, error)
	ListDeliveryRecordsByMerchant(ctx context.Context, merchantID string) ([]models.DeliveryRecord, error)
	UpdateDeliveryRecord(ctx context.Context, r *models.DeliveryRecord) error

	CreateCancellation(ctx context.Context, a *models.CancellationApplication) error
	GetCancellation(ctx context.Context, id string) (*models.CancellationApplication, error)
	ListCancellations(ctx context.Context, filter ApplicationFilter) ([]models.CancellationApplication, error)
	UpdateCancellation(ctx context.Context, a *models.CancellationApplication) error

	CreateExtension(ctx context.Context, a *models.ExtensionApplication) error
	GetExtension(ctx context.Context, id string) (*models.ExtensionApplication, error)
	ListExtensions(ctx context.Context, filter ApplicationFilter) ([]models.ExtensionApplication, error)
	UpdateExtension(ctx context.Context, a *models.ExtensionApplication) error

	CreateIntakeSession(ctx context.Context, s *models.IntakeSession) error
	GetIntakeSession(ctx context.Context, id string) (*models.IntakeSession, error)
	ListActiveIntakeSessions(ctx context.Context) ([]models.IntakeSession, error)
	UpdateIntakeSession(ctx context.Context, s *models.IntakeSession) error

	// AcquireLease takes the named lease for holder until the given time if it
	// is free or expired. It reports false when someone else holds it.
	AcquireLease(ctx context.Context, name, holder string, until, now time.Time) (bool, error)
	ReleaseLease(ctx context.Context, name, holder string) error

	StartSweepRun(ctx context.Context, run *models.SweepRun) error
	FinishSweepRun(ctx context.Context, run *models.SweepRun) error
	ListSweepRuns(ctx context.Context, sweepName string, limit int) ([]models.SweepRun, error)
}
