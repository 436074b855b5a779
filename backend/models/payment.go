package models

import "gorm.io/gorm"

const (
	PaymentStatusPending    = "pending"
	PaymentStatusSuccessful = "successful"
	PaymentStatusFailed     = "failed"
)

type Payment struct {
	gorm.Model
	Amount        float64 `gorm:"not null"`
	Method        string
	TransactionID *string `gorm:"uniqueIndex"` // nullable, unique when present
	Status        string  `gorm:"not null;default:pending"`
	UserID        uint    `gorm:"not null"`
}
