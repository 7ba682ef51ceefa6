package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/medicura/medicura-backend/pkg/enums"
)

// Appointment links a patient and a doctor at a scheduled time. Status is
// mutated by booking, payment confirmation, reschedule and cancellation;
// Completed appointments are read-only.
type Appointment struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	PatientID uuid.UUID               `gorm:"column:patient_id;type:uuid;not null;index"`
	DoctorID  uuid.UUID               `gorm:"column:doctor_id;type:uuid;not null;index"`
	DateTime  time.Time               `gorm:"column:date_time;not null"`
	Status    enums.AppointmentStatus `gorm:"column:status;type:text;not null;default:'Pending'"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Appointment) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
