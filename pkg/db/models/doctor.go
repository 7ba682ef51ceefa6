package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/medicura/medicura-backend/pkg/enums"
)

// Doctor extends a User row with consultation metadata. The ID doubles as the
// user id. Availability lists are stored as text[] columns rather than JSON
// blobs so they can be filtered server-side.
type Doctor struct {
	ID                 uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	Specialization     string                   `gorm:"column:specialization;not null"`
	Department         string                   `gorm:"column:department;not null"`
	Qualification      *string                  `gorm:"column:qualification"`
	ExperienceYears    int                      `gorm:"column:experience_years;not null;default:0"`
	ConsultationFee    decimal.Decimal          `gorm:"column:consultation_fee;type:numeric(10,2);not null"`
	Rating             float64                  `gorm:"column:rating;not null;default:0"`
	Bio                *string                  `gorm:"column:bio"`
	AvailableDays      pq.StringArray           `gorm:"column:available_days;type:text[]"`
	AvailableTimeSlots pq.StringArray           `gorm:"column:available_time_slots;type:text[]"`
	AvailabilityStatus enums.DoctorAvailability `gorm:"column:availability_status;type:text;not null;default:'Available'"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *Doctor) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
