package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/medicura/medicura-backend/pkg/enums"
)

// Payment tracks one gateway transaction. Exactly one of AppointmentID or
// OrderID is set; the confirmation state machine flips the linked row when the
// gateway validates the transaction. TransactionID is globally unique.
type Payment struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	PatientID     uuid.UUID           `gorm:"column:patient_id;type:uuid;not null;index"`
	AppointmentID *uuid.UUID          `gorm:"column:appointment_id;type:uuid"`
	OrderID       *uuid.UUID          `gorm:"column:order_id;type:uuid"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Method        string              `gorm:"column:method;not null;default:'SSLCommerz'"`
	TransactionID string              `gorm:"column:transaction_id;uniqueIndex;not null"`
	ValidationID  *string             `gorm:"column:validation_id"`
	Status        enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'Pending'"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
