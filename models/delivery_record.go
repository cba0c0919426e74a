package models

import "time"

// DeliveryRecord is one merchant's pursuit of one case. The pair
// (case_id, merchant_id) is unique.
type DeliveryRecord struct {
	ID               uint           `gorm:"primaryKey;column:id" json:"id"`
	CaseID           string         `gorm:"column:case_id;size:40;uniqueIndex:uniq_case_merchant" json:"case_id"`
	MerchantID       string         `gorm:"column:merchant_id;size:40;uniqueIndex:uniq_case_merchant;index" json:"merchant_id"`
	DeliveredAt      time.Time      `gorm:"column:delivered_at" json:"delivered_at"`
	DeliveryRank     int            `gorm:"column:delivery_rank" json:"delivery_rank"`
	DeliveryStatus   DeliveryStatus `gorm:"column:delivery_status;size:20" json:"delivery_status"`
	DetailStatus     DetailStatus   `gorm:"column:detail_status;size:40" json:"detail_status"`
	CallCount        int            `gorm:"column:call_count" json:"call_count"`
	SMSCount         int            `gorm:"column:sms_count" json:"sms_count"`
	LastContactAt    *time.Time     `gorm:"column:last_contact_at" json:"last_contact_at,omitempty"`
	AppointmentAt    *time.Time     `gorm:"column:appointment_at" json:"appointment_at,omitempty"`
	ExtendedDeadline *time.Time     `gorm:"column:extended_deadline" json:"extended_deadline,omitempty"`
	LastModifiedBy   string         `gorm:"column:last_modified_by" json:"last_modified_by"`
	LastModifiedAt   time.Time      `gorm:"column:last_modified_at" json:"last_modified_at"`
	Version          int64          `gorm:"column:version;not null;default:1" json:"version"`
}

func (DeliveryRecord) TableName() string { return "delivery_records" }

// IsExtended reports whether an approved extension replaced the base window.
func (r *DeliveryRecord) IsExtended() bool {
	return r.ExtendedDeadline != nil
}
