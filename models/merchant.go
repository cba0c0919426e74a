package models

import "time"

// Merchant is a franchise partner that receives cases.
type Merchant struct {
	MerchantID string    `gorm:"primaryKey;column:merchant_id;size:40" json:"merchant_id"`
	Name       string    `gorm:"column:name" json:"name"`
	Email      string    `gorm:"column:email" json:"email"`
	IsActive   bool      `gorm:"column:is_active" json:"is_active"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Merchant) TableName() string { return "merchants" }
