package models

import (
	"time"

	"gorm.io/datatypes"
)

// RedeliveryPayload lists the merchants a scheduled transfer hands the case to.
type RedeliveryPayload struct {
	MerchantIDs []string `json:"merchant_ids"`
	Note        string   `json:"note,omitempty"`
	ScheduledBy string   `json:"scheduled_by,omitempty"`
}

// Case is a customer lead distributed to one or more merchants.
type Case struct {
	CaseID            string                                `gorm:"primaryKey;column:case_id;size:40" json:"case_id"`
	IntakeAt          time.Time                             `gorm:"column:intake_at" json:"intake_at"`
	CustomerName      string                                `gorm:"column:customer_name" json:"customer_name"`
	CustomerPhone     string                                `gorm:"column:customer_phone" json:"customer_phone"`
	CustomerAddress   string                                `gorm:"column:customer_address" json:"customer_address"`
	Archived          bool                                  `gorm:"column:archived" json:"archived"`
	RedeliverAt       *time.Time                            `gorm:"column:redeliver_at;index" json:"redeliver_at,omitempty"`
	RedeliveryPayload datatypes.JSONType[RedeliveryPayload] `gorm:"column:redelivery_payload" json:"redelivery_payload"`
	Version           int64                                 `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt         time.Time                             `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time                             `gorm:"column:updated_at" json:"updated_at"`
}

func (Case) TableName() string { return "cases" }

// HasScheduledRedelivery reports whether a redelivery is due at or before now.
func (c *Case) HasScheduledRedelivery(now time.Time) bool {
	return c.RedeliverAt != nil && !c.RedeliverAt.After(now)
}
