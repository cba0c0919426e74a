package models

import (
	"time"

	"gorm.io/datatypes"
)

// ReasonCategory is the top-level reason a merchant gives for dropping a case.
type ReasonCategory string

const (
	ReasonNoContact        ReasonCategory = "no-contact"
	ReasonDuplicate        ReasonCategory = "duplicate"
	ReasonInvalidInfo      ReasonCategory = "invalid-info"
	ReasonCustomerDeclined ReasonCategory = "customer-declined"
	ReasonOutOfArea        ReasonCategory = "out-of-area"
	ReasonOther            ReasonCategory = "other"
)

func (r ReasonCategory) Valid() bool {
	switch r {
	case ReasonNoContact, ReasonDuplicate, ReasonInvalidInfo, ReasonCustomerDeclined, ReasonOutOfArea, ReasonOther:
		return true
	}
	return false
}

// StructuredAnswer is one question/answer pair from the cancellation form.
type StructuredAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// CancelReason is the reason block stored with a cancellation application.
type CancelReason struct {
	Category ReasonCategory     `json:"category"`
	Detail   string             `json:"detail"`
	Answers  []StructuredAnswer `json:"answers,omitempty"`
}

// ContactEvidence is the follow-up history a merchant supplies as proof.
type ContactEvidence struct {
	PhoneCallCount int        `json:"phone_call_count"`
	SMSCount       int        `json:"sms_count"`
	LastAttemptAt  *time.Time `json:"last_attempt_at,omitempty"`
	Notes          string     `json:"notes,omitempty"`
}

// CompetitorDetail describes another merchant still pursuing the same case.
type CompetitorDetail struct {
	MerchantID    string       `json:"merchant_id"`
	MerchantName  string       `json:"merchant_name"`
	DetailStatus  DetailStatus `json:"detail_status"`
	CallCount     int          `json:"call_count"`
	SMSCount      int          `json:"sms_count"`
	LastContactAt *time.Time   `json:"last_contact_at,omitempty"`
	AppointmentAt *time.Time   `json:"appointment_at,omitempty"`
}

// CompetitorSnapshot is the conflict check result captured at submission.
type CompetitorSnapshot struct {
	HasActiveCompetitors bool               `json:"has_active_competitors"`
	CompetitorDetails    []CompetitorDetail `json:"competitor_details"`
}

type CancellationApplication struct {
	ID              string                                 `gorm:"primaryKey;column:id;size:36" json:"id"`
	CaseID          string                                 `gorm:"column:case_id;size:40;index" json:"case_id"`
	MerchantID      string                                 `gorm:"column:merchant_id;size:40;index" json:"merchant_id"`
	SubmittedAt     time.Time                              `gorm:"column:submitted_at" json:"submitted_at"`
	DeliveredAt     time.Time                              `gorm:"column:delivered_at" json:"delivered_at"`
	ElapsedDays     int                                    `gorm:"column:elapsed_days" json:"elapsed_days"`
	Reason          datatypes.JSONType[CancelReason]       `gorm:"column:reason" json:"reason"`
	Evidence        datatypes.JSONType[ContactEvidence]    `gorm:"column:evidence" json:"evidence"`
	Competitors     datatypes.JSONType[CompetitorSnapshot] `gorm:"column:competitors" json:"competitors"`
	Narrative       string                                 `gorm:"column:narrative;type:text" json:"narrative"`
	ApprovalStatus  ApprovalStatus                         `gorm:"column:approval_status;size:20;index" json:"approval_status"`
	Approver        *string                                `gorm:"column:approver" json:"approver,omitempty"`
	DecisionAt      *time.Time                             `gorm:"column:decision_at" json:"decision_at,omitempty"`
	RejectionReason *string                                `gorm:"column:rejection_reason;type:text" json:"rejection_reason,omitempty"`
	Version         int64                                  `gorm:"column:version;not null;default:1" json:"version"`
}

func (CancellationApplication) TableName() string { return "cancellation_applications" }
