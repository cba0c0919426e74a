package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"franchise-dispatch-api/models"
)

// MemoryStore is an in-process Store with the same compare-and-set
// semantics as GormStore. It backs STORE_DRIVER=memory and the tests.
type MemoryStore struct {
	mu sync.RWMutex

	cases         map[string]models.Case
	merchants     map[string]models.Merchant
	records       map[string]models.DeliveryRecord
	nextRecordID  uint
	cancellations map[string]models.CancellationApplication
	extensions    map[string]models.ExtensionApplication
	sessions      map[string]models.IntakeSession
	leases        map[string]models.SweepLease
	runs          []models.SweepRun
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cases:         make(map[string]models.Case),
		merchants:     make(map[string]models.Merchant),
		records:       make(map[string]models.DeliveryRecord),
		cancellations: make(map[string]models.CancellationApplication),
		extensions:    make(map[string]models.ExtensionApplication),
		sessions:      make(map[string]models.IntakeSession),
		leases:        make(map[string]models.SweepLease),
	}
}

func recordKey(caseID, merchantID string) string {
	return caseID + "\x00" + merchantID
}

func (s *MemoryStore) CreateCase(_ context.Context, c *models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[c.CaseID]; ok {
		return fmt.Errorf("case %s already exists: %w", c.CaseID, ErrConflict)
	}
	c.Version = 1
	s.cases[c.CaseID] = *c
	return nil
}

func (s *MemoryStore) GetCase(_ context.Context, caseID string) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[caseID]
	if !ok {
		return nil, fmt.Errorf("case %s: %w", caseID, ErrNotFound)
	}
	return &c, nil
}

func (s *MemoryStore) ListCasesDueForRedelivery(_ context.Context, now time.Time) ([]models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []models.Case
	for _, c := range s.cases {
		if c.HasScheduledRedelivery(now) {
			due = append(due, c)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RedeliverAt.Before(*due[j].RedeliverAt) })
	return due, nil
}

func (s *MemoryStore) UpdateCase(_ context.Context, c *models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.cases[c.CaseID]
	if !ok || cur.Version != c.Version {
		return ErrConflict
	}
	c.Version++
	s.cases[c.CaseID] = *c
	return nil
}

func (s *MemoryStore) CreateMerchant(_ context.Context, m *models.Merchant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.merchants[m.MerchantID]; ok {
		return fmt.Errorf("merchant %s already exists: %w", m.MerchantID, ErrConflict)
	}
	s.merchants[m.MerchantID] = *m
	return nil
}

func (s *MemoryStore) GetMerchant(_ context.Context, merchantID string) (*models.Merchant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.merchants[merchantID]
	if !ok {
		return nil, fmt.Errorf("merchant %s: %w", merchantID, ErrNotFound)
	}
	return &m, nil
}

func (s *MemoryStore) CreateDeliveryRecord(_ context.Context, r *models.DeliveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey(r.CaseID, r.MerchantID)
	if _, ok := s.records[key]; ok {
		return fmt.Errorf("delivery record %s/%s already exists: %w", r.CaseID, r.MerchantID, ErrConflict)
	}
	s.nextRecordID++
	r.ID = s.nextRecordID
	r.Version = 1
	s.records[key] = *r
	return nil
}

func (s *MemoryStore) GetDeliveryRecord(_ context.Context, caseID, merchantID string) (*models.DeliveryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[recordKey(caseID, merchantID)]
	if !ok {
		return nil, fmt.Errorf("delivery record %s/%s: %w", caseID, merchantID, ErrNotFound)
	}
	return &r, nil
}

func (s *MemoryStore) ListDeliveryRecordsByCase(_ context.Context, caseID string) ([]models.DeliveryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []models.DeliveryRecord
	for _, r := range s.records {
		if r.CaseID == caseID {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].DeliveryRank < rows[j].DeliveryRank })
	return rows, nil
}

func (s *MemoryStore) ListDeliveryRecordsByMerchant(_ context.Context, merchantID string) ([]models.DeliveryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []models.DeliveryRecord
	for _, r := range s.records {
		if r.MerchantID == merchantID {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].DeliveredAt.After(rows[j].DeliveredAt) })
	return rows, nil
}

func (s *MemoryStore) UpdateDeliveryRecord(_ context.Context, r *models.DeliveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey(r.CaseID, r.MerchantID)
	cur, ok := s.records[key]
	if !ok || cur.ID != r.ID || cur.Version != r.Version {
		return ErrConflict
	}
	r.Version++
	s.records[key] = *r
	return nil
}

func (s *MemoryStore) CreateCancellation(_ context.Context, a *models.CancellationApplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cancellations[a.ID]; ok {
		return fmt.Errorf("cancellation application %s already exists: %w", a.ID, ErrConflict)
	}
	a.Version = 1
	s.cancellations[a.ID] = *a
	return nil
}

func (s *MemoryStore) GetCancellation(_ context.Context, id string) (*models.CancellationApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.cancellations[id]
	if !ok {
		return nil, fmt.Errorf("cancellation application %s: %w", id, ErrNotFound)
	}
	return &a, nil
}

func (s *MemoryStore) ListCancellations(_ context.Context, filter ApplicationFilter) ([]models.CancellationApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []models.CancellationApplication
	for _, a := range s.cancellations {
		if filter.matches(a.CaseID, a.MerchantID, a.ApprovalStatus) {
			rows = append(rows, a)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SubmittedAt.After(rows[j].SubmittedAt) })
	return rows, nil
}

func (s *MemoryStore) UpdateCancellation(_ context.Context, a *models.CancellationApplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.cancellations[a.ID]
	if !ok || cur.Version != a.Version {
		return ErrConflict
	}
	a.Version++
	s.cancellations[a.ID] = *a
	return nil
}

func (s *MemoryStore) CreateExtension(_ context.Context, a *models.ExtensionApplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.extensions[a.ID]; ok {
		return fmt.Errorf("extension application %s already exists: %w", a.ID, ErrConflict)
	}
	a.Version = 1
	s.extensions[a.ID] = *a
	return nil
}

func (s *MemoryStore) GetExtension(_ context.Context, id string) (*models.ExtensionApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.extensions[id]
	if !ok {
		return nil, fmt.Errorf("extension application %s: %w", id, ErrNotFound)
	}
	return &a, nil
}

func (s *MemoryStore) ListExtensions(_ context.Context, filter ApplicationFilter) ([]models.ExtensionApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []models.ExtensionApplication
	for _, a := range s.extensions {
		if filter.matches(a.CaseID, a.MerchantID, a.ApprovalStatus) {
			rows = append(rows, a)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SubmittedAt.After(rows[j].SubmittedAt) })
	return rows, nil
}

func (s *MemoryStore) UpdateExtension(_ context.Context, a *models.ExtensionApplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.extensions[a.ID]
	if !ok || cur.Version != a.Version {
		return ErrConflict
	}
	a.Version++
	s.extensions[a.ID] = *a
	return nil
}

func (s *MemoryStore) CreateIntakeSession(_ context.Context, is *models.IntakeSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[is.ID]; ok {
		return fmt.Errorf("intake session %s already exists: %w", is.ID, ErrConflict)
	}
	is.Version = 1
	s.sessions[is.ID] = *is
	return nil
}

func (s *MemoryStore) GetIntakeSession(_ context.Context, id string) (*models.IntakeSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	is, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("intake session %s: %w", id, ErrNotFound)
	}
	return &is, nil
}

func (s *MemoryStore) ListActiveIntakeSessions(_ context.Context) ([]models.IntakeSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []models.IntakeSession
	for _, is := range s.sessions {
		if is.State == models.IntakeActive {
			rows = append(rows, is)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].StartedAt.Before(rows[j].StartedAt) })
	return rows, nil
}

func (s *MemoryStore) UpdateIntakeSession(_ context.Context, is *models.IntakeSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sessions[is.ID]
	if !ok || cur.Version != is.Version {
		return ErrConflict
	}
	is.Version++
	s.sessions[is.ID] = *is
	return nil
}

func (s *MemoryStore) AcquireLease(_ context.Context, name, holder string, until, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.leases[name]
	if ok && cur.ExpiresAt != nil && !cur.ExpiresAt.Before(now) && cur.Holder != holder {
		return false, nil
	}
	s.leases[name] = models.SweepLease{Name: name, Holder: holder, ExpiresAt: &until}
	return true, nil
}

func (s *MemoryStore) ReleaseLease(_ context.Context, name, holder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.leases[name]
	if ok && cur.Holder == holder {
		cur.ExpiresAt = nil
		s.leases[name] = cur
	}
	return nil
}

func (s *MemoryStore) StartSweepRun(_ context.Context, run *models.SweepRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.ID = uint(len(s.runs) + 1)
	s.runs = append(s.runs, *run)
	return nil
}

func (s *MemoryStore) FinishSweepRun(_ context.Context, run *models.SweepRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.ID == 0 || int(run.ID) > len(s.runs) {
		return fmt.Errorf("sweep run %d: %w", run.ID, ErrNotFound)
	}
	s.runs[run.ID-1] = *run
	return nil
}

func (s *MemoryStore) ListSweepRuns(_ context.Context, sweepName string, limit int) ([]models.SweepRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 20
	}
	var rows []models.SweepRun
	for i := len(s.runs) - 1; i >= 0 && len(rows) < limit; i-- {
		if sweepName == "" || s.runs[i].SweepName == sweepName {
			rows = append(rows, s.runs[i])
		}
	}
	return rows, nil
}
