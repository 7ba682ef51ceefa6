package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/medicura/medicura-backend/pkg/db/models"
	"github.com/medicura/medicura-backend/pkg/enums"
	pkgerrors "github.com/medicura/medicura-backend/pkg/errors"
)

// Repository persists payment rows. All state changes key on the transaction
// id because that is the only identifier the gateway echoes back.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindByTransactionID(ctx context.Context, tranID string) (*models.Payment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]models.Payment, error)
	UpdateStatusFromPending(ctx context.Context, tranID string, next enums.PaymentStatus, validationID *string) (bool, error)
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

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
	}
	return nil
}

func (r *repository) FindByTransactionID(ctx context.Context, tranID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("transaction_id = ?", tranID).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return &payment, nil
}

func (r *repository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("created_at DESC").
		Find(&payments).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return payments, nil
}

// UpdateStatusFromPending flips the payment only when it is still Pending, so
// a replayed callback can never overwrite a terminal state. The boolean
// reports whether the row changed.
func (r *repository) UpdateStatusFromPending(ctx context.Context, tranID string, next enums.PaymentStatus, validationID *string) (bool, error) {
	fields := map[string]any{"status": next}
	if validationID != nil {
		fields["validation_id"] = *validationID
	}
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("transaction_id = ? AND status = ?", tranID, enums.PaymentStatusPending).
		Updates(fields)
	if result.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "update payment status")
	}
	return result.RowsAffected > 0, nil
}
