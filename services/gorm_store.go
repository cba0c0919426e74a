package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"franchise-dispatch-api/config"
	"franchise-dispatch-api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the MySQL-backed Store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	if db == nil {
		db = config.DB
	}
	return &GormStore{db: db}
}

// AutoMigrate creates or updates the tables owned by this service.
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.Case{},
		&models.Merchant{},
		&models.DeliveryRecord{},
		&models.CancellationApplication{},
		&models.ExtensionApplication{},
		&models.IntakeSession{},
		&models.SweepRun{},
		&models.SweepLease{},
	)
}

func translateCreateErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s already exists: %w", what, ErrConflict)
	}
	return err
}

func translateFindErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

// compareAndSet writes values to the single row matched by where, only if its
// version still equals version.
func (s *GormStore) compareAndSet(ctx context.Context, model any, version int64, values map[string]any, where string, args ...any) error {
	values["version"] = gorm.Expr("version + 1")
	args = append(args, version)
	res := s.db.WithContext(ctx).Model(model).
		Where(where+" AND version = ?", args...).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

/* ==========================
   Cases & merchants
   ========================== */

func (s *GormStore) CreateCase(ctx context.Context, c *models.Case) error {
	if c.Version == 0 {
		c.Version = 1
	}
	return translateCreateErr(s.db.WithContext(ctx).Create(c).Error, "case "+c.CaseID)
}

func (s *GormStore) GetCase(ctx context.Context, caseID string) (*models.Case, error) {
	var c models.Case
	err := s.db.WithContext(ctx).Where("case_id = ?", caseID).First(&c).Error
	if err != nil {
		return nil, translateFindErr(err, "case "+caseID)
	}
	return &c, nil
}

func (s *GormStore) ListCasesDueForRedelivery(ctx context.Context, now time.Time) ([]models.Case, error) {
	var rows []models.Case
	err := s.db.WithContext(ctx).
		Where("redeliver_at IS NOT NULL AND redeliver_at <= ?", now).
		Order("redeliver_at ASC").
		Find(&rows).Error
	return rows, err
}

func (s *GormStore) UpdateCase(ctx context.Context, c *models.Case) error {
	values := map[string]any{
		"customer_name":      c.CustomerName,
		"customer_phone":     c.CustomerPhone,
		"customer_address":   c.CustomerAddress,
		"archived":           c.Archived,
		"redeliver_at":       c.RedeliverAt,
		"redelivery_payload": c.RedeliveryPayload,
	}
	if err := s.compareAndSet(ctx, &models.Case{}, c.Version, values, "case_id = ?", c.CaseID); err != nil {
		return err
	}
	c.Version++
	return nil
}

func (s *GormStore) CreateMerchant(ctx context.Context, m *models.Merchant) error {
	return translateCreateErr(s.db.WithContext(ctx).Create(m).Error, "merchant "+m.MerchantID)
}

func (s *GormStore) GetMerchant(ctx context.Context, merchantID string) (*models.Merchant, error) {
	var m models.Merchant
	err := s.db.WithContext(ctx).Where("merchant_id = ?", merchantID).First(&m).Error
	if err != nil {
		return nil, translateFindErr(err, "merchant "+merchantID)
	}
	return &m, nil
}

/* ==========================
   Delivery records
   ========================== */

func (s *GormStore) CreateDeliveryRecord(ctx context.Context, r *models.DeliveryRecord) error {
	if r.Version == 0 {
		r.Version = 1
	}
	err := s.db.WithContext(ctx).Create(r).Error
	return translateCreateErr(err, fmt.Sprintf("delivery record %s/%s", r.CaseID, r.MerchantID))
}

func (s *GormStore) GetDeliveryRecord(ctx context.Context, caseID, merchantID string) (*models.DeliveryRecord, error) {
	var r models.DeliveryRecord
	err := s.db.WithContext(ctx).
		Where("case_id = ? AND merchant_id = ?", caseID, merchantID).
		First(&r).Error
	if err != nil {
		return nil, translateFindErr(err, fmt.Sprintf("delivery record %s/%s", caseID, merchantID))
	}
	return &r, nil
}

func (s *GormStore) ListDeliveryRecordsByCase(ctx context.Context, caseID string) ([]models.DeliveryRecord, error) {
	var rows []models.DeliveryRecord
	err := s.db.WithContext(ctx).Where("case_id = ?", caseID).Order("delivery_rank ASC").Find(&rows).Error
	return rows, err
}

func (s *GormStore) ListDeliveryRecordsByMerchant(ctx context.Context, merchantID string) ([]models.DeliveryRecord, error) {
	var rows []models.DeliveryRecord
	err := s.db.WithContext(ctx).Where("merchant_id = ?", merchantID).Order("delivered_at DESC").Find(&rows).Error
	return rows, err
}

func (s *GormStore) UpdateDeliveryRecord(ctx context.Context, r *models.DeliveryRecord) error {
	values := map[string]any{
		"delivery_status":   r.DeliveryStatus,
		"detail_status":     r.DetailStatus,
		"call_count":        r.CallCount,
		"sms_count":         r.SMSCount,
		"last_contact_at":   r.LastContactAt,
		"appointment_at":    r.AppointmentAt,
		"extended_deadline": r.ExtendedDeadline,
		"last_modified_by":  r.LastModifiedBy,
		"last_modified_at":  r.LastModifiedAt,
	}
	if err := s.compareAndSet(ctx, &models.DeliveryRecord{}, r.Version, values, "id = ?", r.ID); err != nil {
		return err
	}
	r.Version++
	return nil
}

/* ==========================
   Applications
   ========================== */

func applyApplicationFilter(q *gorm.DB, f ApplicationFilter) *gorm.DB {
	if f.CaseID != "" {
		q = q.Where("case_id = ?", f.CaseID)
	}
	if f.MerchantID != "" {
		q = q.Where("merchant_id = ?", f.MerchantID)
	}
	if f.Status != "" {
		q = q.Where("approval_status = ?", f.Status)
	}
	return q
}

func (s *GormStore) CreateCancellation(ctx context.Context, a *models.CancellationApplication) error {
	if a.Version == 0 {
		a.Version = 1
	}
	return translateCreateErr(s.db.WithContext(ctx).Create(a).Error, "cancellation application "+a.ID)
}

func (s *GormStore) GetCancellation(ctx context.Context, id string) (*models.CancellationApplication, error) {
	var a models.CancellationApplication
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, translateFindErr(err, "cancellation application "+id)
	}
	return &a, nil
}

func (s *GormStore) ListCancellations(ctx context.Context, filter ApplicationFilter) ([]models.CancellationApplication, error) {
	var rows []models.CancellationApplication
	q := applyApplicationFilter(s.db.WithContext(ctx), filter)
	err := q.Order("submitted_at DESC").Find(&rows).Error
	return rows, err
}

func (s *GormStore) UpdateCancellation(ctx context.Context, a *models.CancellationApplication) error {
	values := map[string]any{
		"approval_status":  a.ApprovalStatus,
		"approver":         a.Approver,
		"decision_at":      a.DecisionAt,
		"rejection_reason": a.RejectionReason,
		"narrative":        a.Narrative,
	}
	if err := s.compareAndSet(ctx, &models.CancellationApplication{}, a.Version, values, "id = ?", a.ID); err != nil {
		return err
	}
	a.Version++
	return nil
}

func (s *GormStore) CreateExtension(ctx context.Context, a *models.ExtensionApplication) error {
	if a.Version == 0 {
		a.Version = 1
	}
	return translateCreateErr(s.db.WithContext(ctx).Create(a).Error, "extension application "+a.ID)
}

func (s *GormStore) GetExtension(ctx context.Context, id string) (*models.ExtensionApplication, error) {
	var a models.ExtensionApplication
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, translateFindErr(err, "extension application "+id)
	}
	return &a, nil
}

func (s *GormStore) ListExtensions(ctx context.Context, filter ApplicationFilter) ([]models.ExtensionApplication, error) {
	var rows []models.ExtensionApplication
	q := applyApplicationFilter(s.db.WithContext(ctx), filter)
	err := q.Order("submitted_at DESC").Find(&rows).Error
	return rows, err
}

func (s *GormStore) UpdateExtension(ctx context.Context, a *models.ExtensionApplication) error {
	values := map[string]any{
		"approval_status":  a.ApprovalStatus,
		"approver":         a.Approver,
		"decision_at":      a.DecisionAt,
		"rejection_reason": a.RejectionReason,
	}
	if err := s.compareAndSet(ctx, &models.ExtensionApplication{}, a.Version, values, "id = ?", a.ID); err != nil {
		return err
	}
	a.Version++
	return nil
}

/* ==========================
   Intake sessions
   ========================== */

func (s *GormStore) CreateIntakeSession(ctx context.Context, is *models.IntakeSession) error {
	if is.Version == 0 {
		is.Version = 1
	}
	return translateCreateErr(s.db.WithContext(ctx).Create(is).Error, "intake session "+is.ID)
}

func (s *GormStore) GetIntakeSession(ctx context.Context, id string) (*models.IntakeSession, error) {
	var is models.IntakeSession
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&is).Error; err != nil {
		return nil, translateFindErr(err, "intake session "+id)
	}
	return &is, nil
}

func (s *GormStore) ListActiveIntakeSessions(ctx context.Context) ([]models.IntakeSession, error) {
	var rows []models.IntakeSession
	err := s.db.WithContext(ctx).Where("state = ?", models.IntakeActive).Order("started_at ASC").Find(&rows).Error
	return rows, err
}

func (s *GormStore) UpdateIntakeSession(ctx context.Context, is *models.IntakeSession) error {
	values := map[string]any{
		"last_heartbeat_at": is.LastHeartbeatAt,
		"state":             is.State,
		"closed_at":         is.ClosedAt,
	}
	if err := s.compareAndSet(ctx, &models.IntakeSession{}, is.Version, values, "id = ?", is.ID); err != nil {
		return err
	}
	is.Version++
	return nil
}

/* ==========================
   Sweep leases & runs
   ========================== */

func (s *GormStore) AcquireLease(ctx context.Context, name, holder string, until, now time.Time) (bool, error) {
	seed := models.SweepLease{Name: name}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return false, err
	}
	res := s.db.WithContext(ctx).Model(&models.SweepLease{}).
		Where("name = ? AND (expires_at IS NULL OR expires_at < ? OR holder = ?)", name, now, holder).
		Updates(map[string]any{"holder": holder, "expires_at": until})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) ReleaseLease(ctx context.Context, name, holder string) error {
	return s.db.WithContext(ctx).Model(&models.SweepLease{}).
		Where("name = ? AND holder = ?", name, holder).
		Updates(map[string]any{"expires_at": nil}).Error
}

func (s *GormStore) StartSweepRun(ctx context.Context, run *models.SweepRun) error {
	return s.db.WithContext(ctx).Create(run).Error
}

func (s *GormStore) FinishSweepRun(ctx context.Context, run *models.SweepRun) error {
	updates := map[string]any{
		"status":        run.Status,
		"finished_at":   run.FinishedAt,
		"scanned":       run.Scanned,
		"processed":     run.Processed,
		"failed":        run.Failed,
		"error_message": run.ErrorMessage,
	}
	res := s.db.WithContext(ctx).Model(&models.SweepRun{}).Where("id = ?", run.ID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("sweep run %d: %w", run.ID, ErrNotFound)
	}
	return nil
}

func (s *GormStore) ListSweepRuns(ctx context.Context, sweepName string, limit int) ([]models.SweepRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []models.SweepRun
	q := s.db.WithContext(ctx).Model(&models.SweepRun{})
	if sweepName != "" {
		q = q.Where("sweep_name = ?", sweepName)
	}
	err := q.Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
