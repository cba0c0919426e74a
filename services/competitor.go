package services

import (
	"context"
	"log"

	"franchise-dispatch-api/models"
)

// CompetitorChecker finds other merchants still actively pursuing a case.
// It only reads and is safe under concurrent writers.
type CompetitorChecker struct {
	store Store
}

func NewCompetitorChecker(store Store) *CompetitorChecker {
	return &CompetitorChecker{store: store}
}

// IsActiveCompetitor reports whether r counts as a live pursuit.
func IsActiveCompetitor(r *models.DeliveryRecord) bool {
	return r.DetailStatus.IsActive() && !r.DeliveryStatus.IsTerminal()
}

func (c *CompetitorChecker) Check(ctx context.Context, caseID, requestingMerchantID string) (models.CompetitorSnapshot, error) {
	snapshot := models.CompetitorSnapshot{CompetitorDetails: []models.CompetitorDetail{}}

	records, err := c.store.ListDeliveryRecordsByCase(ctx, caseID)
	if err != nil {
		return snapshot, err
	}

	for i := range records {
		r := &records[i]
		if r.MerchantID == requestingMerchantID || !IsActiveCompetitor(r) {
			continue
		}
		detail := models.CompetitorDetail{
			MerchantID:    r.MerchantID,
			MerchantName:  r.MerchantID,
			DetailStatus:  r.DetailStatus,
			CallCount:     r.CallCount,
			SMSCount:      r.SMSCount,
			LastContactAt: r.LastContactAt,
			AppointmentAt: r.AppointmentAt,
		}
		if m, err := c.store.GetMerchant(ctx, r.MerchantID); err == nil {
			detail.MerchantName = m.Name
		} else {
			log.Printf("competitor check: merchant %s lookup failed: %v", r.MerchantID, err)
		}
		snapshot.CompetitorDetails = append(snapshot.CompetitorDetails, detail)
	}

	snapshot.HasActiveCompetitors = len(snapshot.CompetitorDetails) > 0
	return snapshot, nil
}
