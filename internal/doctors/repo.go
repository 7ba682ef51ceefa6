package doctors

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/medicura/medicura-backend/pkg/db/models"
	"github.com/medicura/medicura-backend/pkg/enums"
	pkgerrors "github.com/medicura/medicura-backend/pkg/errors"
)

// Profile is a doctor joined with the account row behind it.
type Profile struct {
	ID                 uuid.UUID                `json:"id"`
	Name               string                   `json:"name"`
	Email              string                   `json:"email"`
	Specialization     string                   `json:"specialization"`
	Department         string                   `json:"department"`
	ConsultationFee    decimal.Decimal          `json:"consultation_fee"`
	Rating             float64                  `json:"rating"`
	AvailableDays      pq.StringArray           `json:"available_days" gorm:"type:text[]"`
	AvailableTimeSlots pq.StringArray           `json:"available_time_slots" gorm:"type:text[]"`
	AvailabilityStatus enums.DoctorAvailability `json:"availability_status"`
}

// Repository reads doctor records.
type Repository interface {
	FindByID(ctx context.Context, doctorID uuid.UUID) (*models.Doctor, error)
	ListAvailable(ctx context.Context) ([]Profile, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided DB handle.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, doctorID uuid.UUID) (*models.Doctor, error) {
	var doctor models.Doctor
	err := r.db.WithContext(ctx).Where("id = ?", doctorID).First(&doctor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "doctor not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load doctor")
	}
	return &doctor, nil
}

func (r *repository) ListAvailable(ctx context.Context) ([]Profile, error) {
	var profiles []Profile
	err := r.db.WithContext(ctx).
		Table("doctors").
		Select(`doctors.id,
			users.username AS name,
			users.email,
			doctors.specialization,
			doctors.department,
			doctors.consultation_fee,
			doctors.rating,
			doctors.available_days,
			doctors.available_time_slots,
			doctors.availability_status`).
		Joins("JOIN users ON users.id = doctors.id").
		Where("doctors.availability_status = ?", enums.DoctorAvailabilityAvailable).
		Order("users.username ASC").
		Scan(&profiles).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list doctors")
	}
	return profiles, nil
}
