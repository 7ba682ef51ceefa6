package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/medicura/medicura-backend/pkg/db/models"
	pkgerrors "github.com/medicura/medicura-backend/pkg/errors"
)

// Repository is the only mutation path for medicine stock. Decrement and
// Restock are conditional single-statement updates so concurrent checkouts
// can never drive stock below zero.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, medicineID uuid.UUID) (*models.Medicine, error)
	Decrement(ctx context.Context, medicineID uuid.UUID, qty int) error
	Restock(ctx context.Context, medicineID uuid.UUID, qty int) error
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

func (r *repository) FindByID(ctx context.Context, medicineID uuid.UUID) (*models.Medicine, error) {
	var medicine models.Medicine
	err := r.db.WithContext(ctx).Where("id = ?", medicineID).First(&medicine).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "medicine not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load medicine")
	}
	return &medicine, nil
}

// Decrement subtracts qty from stock only when enough stock remains. Zero rows
// affected means a concurrent checkout won the race (or stock was already
// short) and surfaces as an insufficient-stock conflict.
func (r *repository) Decrement(ctx context.Context, medicineID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	result := r.db.WithContext(ctx).
		Model(&models.Medicine{}).
		Where("id = ? AND stock_quantity >= ?", medicineID, qty).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "decrement stock")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{"medicine_id": medicineID.String(), "requested": qty})
	}
	return nil
}

// Restock adds qty back to stock. Used by administrative restock and by
// compensation paths; never called from request handlers directly.
func (r *repository) Restock(ctx context.Context, medicineID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	result := r.db.WithContext(ctx).
		Model(&models.Medicine{}).
		Where("id = ?", medicineID).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", qty))
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "restock")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "medicine not found")
	}
	return nil
}
