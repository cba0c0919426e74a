package models

import (
	"time"
)

const (
	SweepRunStatusRunning = "running"
	SweepRunStatusSuccess = "success"
	SweepRunStatusFailed  = "failed"
	SweepRunStatusSkipped = "skipped"
)

// SweepRun records one execution of a periodic sweep.
type SweepRun struct {
	ID uint `json:"id" gorm:"primaryKey;autoIncrement"`

	SweepName     string     `json:"sweep_name" gorm:"type:varchar(64);not null;index"`
	TriggerSource string     `json:"trigger_source" gorm:"type:varchar(64);not null"`
	Status        string     `json:"status" gorm:"type:enum('running','success','failed','skipped');not null;default:'running'"`
	ErrorMessage  *string    `json:"error_message" gorm:"type:text"`
	StartedAt     time.Time  `json:"started_at" gorm:"column:started_at"`
	FinishedAt    *time.Time `json:"finished_at" gorm:"column:finished_at"`

	Scanned   uint `json:"scanned" gorm:"column:scanned;not null;default:0"`
	Processed uint `json:"processed" gorm:"column:processed;not null;default:0"`
	Failed    uint `json:"failed" gorm:"column:failed;not null;default:0"`
}

func (SweepRun) TableName() string { return "sweep_runs" }

// SweepLease is the in-progress marker for a sweep. A lease past ExpiresAt
// may be taken over by another holder.
type SweepLease struct {
	Name      string     `json:"name" gorm:"primaryKey;column:name;size:64"`
	Holder    string     `json:"holder" gorm:"column:holder;size:64"`
	ExpiresAt *time.Time `json:"expires_at" gorm:"column:expires_at"`
}

func (SweepLease) TableName() string { return "sweep_leases" }
