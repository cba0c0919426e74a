package models

import "time"

// IntakeState is the monitoring state of a customer intake session.
type IntakeState string

const (
	IntakeActive      IntakeState = "active"
	IntakeAbandoned   IntakeState = "abandoned"
	IntakeOutOfWindow IntakeState = "out_of_window"
	IntakeCompleted   IntakeState = "completed"
)

func (s IntakeState) IsTerminal() bool {
	return s != IntakeActive
}

// IntakeSession tracks a customer filling in the intake form. The browser
// posts heartbeats while the form is open.
type IntakeSession struct {
	ID              string      `gorm:"primaryKey;column:id;size:36" json:"id"`
	StartedAt       time.Time   `gorm:"column:started_at" json:"started_at"`
	LastHeartbeatAt *time.Time  `gorm:"column:last_heartbeat_at" json:"last_heartbeat_at,omitempty"`
	State           IntakeState `gorm:"column:state;size:20;index" json:"state"`
	CustomerLabel   string      `gorm:"column:customer_label" json:"customer_label"`
	Source          string      `gorm:"column:source" json:"source"`
	ClosedAt        *time.Time  `gorm:"column:closed_at" json:"closed_at,omitempty"`
	Version         int64       `gorm:"column:version;not null;default:1" json:"version"`
}

func (IntakeSession) TableName() string { return "intake_sessions" }
