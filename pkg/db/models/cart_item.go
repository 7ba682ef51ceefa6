package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartItem is a single (medicine, quantity) line. A medicine appears at most
// once per cart; adding it again bumps the quantity instead of duplicating.
type CartItem struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CartID     uuid.UUID `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:idx_cart_medicine"`
	MedicineID uuid.UUID `gorm:"column:medicine_id;type:uuid;not null;uniqueIndex:idx_cart_medicine"`
	Quantity   int       `gorm:"column:quantity;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *CartItem) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
