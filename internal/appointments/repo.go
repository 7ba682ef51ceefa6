package appointments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/medicura/medicura-backend/pkg/db/models"
	"github.com/medicura/medicura-backend/pkg/enums"
	pkgerrors "github.com/medicura/medicura-backend/pkg/errors"
)

// Row is an appointment joined with doctor metadata for patient listings.
type Row struct {
	ID              uuid.UUID               `json:"id"`
	DoctorID        uuid.UUID               `json:"doctor_id"`
	DoctorName      string                  `json:"doctor_name"`
	Specialization  string                  `json:"specialization"`
	ConsultationFee decimal.Decimal         `json:"consultation_fee"`
	DateTime        time.Time               `json:"date_time"`
	Status          enums.AppointmentStatus `json:"status"`
	CreatedAt       time.Time               `json:"created_at"`
}

// Repository persists appointments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, appt *models.Appointment) error
	FindByID(ctx context.Context, apptID uuid.UUID) (*models.Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, status *enums.AppointmentStatus) ([]Row, error)
	Update(ctx context.Context, apptID uuid.UUID, fields map[string]any) error
	UpdateStatusFrom(ctx context.Context, apptID uuid.UUID, next enums.AppointmentStatus, from ...enums.AppointmentStatus) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided DB handle.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, appt *models.Appointment) error {
	if err := r.db.WithContext(ctx).Create(appt).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create appointment")
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, apptID uuid.UUID) (*models.Appointment, error) {
	var appt models.Appointment
	err := r.db.WithContext(ctx).Where("id = ?", apptID).First(&appt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load appointment")
	}
	return &appt, nil
}

func (r *repository) ListByPatient(ctx context.Context, patientID uuid.UUID, status *enums.AppointmentStatus) ([]Row, error) {
	query := r.db.WithContext(ctx).
		Table("appointments").
		Select(`appointments.id,
			appointments.doctor_id,
			users.username AS doctor_name,
			doctors.specialization,
			doctors.consultation_fee,
			appointments.date_time,
			appointments.status,
			appointments.created_at`).
		Joins("JOIN doctors ON doctors.id = appointments.doctor_id").
		Joins("JOIN users ON users.id = doctors.id").
		Where("appointments.patient_id = ?", patientID)
	if status != nil {
		query = query.Where("appointments.status = ?", *status)
	}

	var rows []Row
	if err := query.Order("appointments.created_at DESC").Scan(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list appointments")
	}
	return rows, nil
}

func (r *repository) Update(ctx context.Context, apptID uuid.UUID, fields map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("id = ?", apptID).
		Updates(fields)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "update appointment")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
	}
	return nil
}

// UpdateStatusFrom flips the status only when the current status is one of
// from. The returned boolean reports whether the row actually changed, so a
// callback racing a patient cancellation cannot resurrect the appointment.
func (r *repository) UpdateStatusFrom(ctx context.Context, apptID uuid.UUID, next enums.AppointmentStatus, from ...enums.AppointmentStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("id = ? AND status IN ?", apptID, from).
		Update("status", next)
	if result.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "update appointment status")
	}
	return result.RowsAffected > 0, nil
}
