package models

import "time"

type ExtensionApplication struct {
	ID                       string         `gorm:"primaryKey;column:id;size:36" json:"id"`
	CaseID                   string         `gorm:"column:case_id;size:40;index" json:"case_id"`
	MerchantID               string         `gorm:"column:merchant_id;size:40;index" json:"merchant_id"`
	SubmittedAt              time.Time      `gorm:"column:submitted_at" json:"submitted_at"`
	DeliveredAt              time.Time      `gorm:"column:delivered_at" json:"delivered_at"`
	ContactAchievedAt        time.Time      `gorm:"column:contact_achieved_at" json:"contact_achieved_at"`
	PlannedAppointmentAt     time.Time      `gorm:"column:planned_appointment_at" json:"planned_appointment_at"`
	Justification            string         `gorm:"column:justification;type:text" json:"justification"`
	ComputedExtendedDeadline time.Time      `gorm:"column:computed_extended_deadline" json:"computed_extended_deadline"`
	ApprovalStatus           ApprovalStatus `gorm:"column:approval_status;size:20;index" json:"approval_status"`
	Approver                 *string        `gorm:"column:approver" json:"approver,omitempty"`
	DecisionAt               *time.Time     `gorm:"column:decision_at" json:"decision_at,omitempty"`
	RejectionReason          *string        `gorm:"column:rejection_reason;type:text" json:"rejection_reason,omitempty"`
	Version                  int64          `gorm:"column:version;not null;default:1" json:"version"`
}

func (ExtensionApplication) TableName() string { return "extension_applications" }
