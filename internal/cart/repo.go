package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/medicura/medicura-backend/pkg/db/models"
	pkgerrors "github.com/medicura/medicura-backend/pkg/errors"
)

// Line is a cart item joined with live medicine metadata. Prices here are
// current catalog prices, not locked; locking happens at checkout.
type Line struct {
	LineID     uuid.UUID       `json:"line_id"`
	MedicineID uuid.UUID       `json:"medicine_id"`
	Name       string          `json:"name"`
	Brand      string          `json:"brand"`
	Type       string          `json:"type"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Stock      int             `json:"stock_quantity"`
	ExpiryDate time.Time       `json:"expiry_date"`
}

// Repository manages persistent carts and their lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByPatient(ctx context.Context, patientID uuid.UUID) (*models.Cart, error)
	GetOrCreate(ctx context.Context, patientID uuid.UUID) (*models.Cart, error)
	FindLine(ctx context.Context, cartID, medicineID uuid.UUID) (*models.CartItem, error)
	CreateLine(ctx context.Context, line *models.CartItem) error
	BumpQuantity(ctx context.Context, lineID uuid.UUID, delta int) error
	DeleteLine(ctx context.Context, cartID, lineID uuid.UUID) (bool, error)
	LinesWithMedicine(ctx context.Context, cartID uuid.UUID) ([]Line, error)
	ClearLines(ctx context.Context, cartID uuid.UUID) error
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

func (r *repository) FindByPatient(ctx context.Context, patientID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).Where("patient_id = ?", patientID).First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return &cart, nil
}

func (r *repository) GetOrCreate(ctx context.Context, patientID uuid.UUID) (*models.Cart, error) {
	cart, err := r.FindByPatient(ctx, patientID)
	if err == nil {
		return cart, nil
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}

	fresh := &models.Cart{PatientID: patientID}
	if createErr := r.db.WithContext(ctx).Create(fresh).Error; createErr != nil {
		// A concurrent first access may have created the row between the
		// lookup and the insert; fall back to reading it.
		existing, findErr := r.FindByPatient(ctx, patientID)
		if findErr == nil {
			return existing, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "create cart")
	}
	return fresh, nil
}

func (r *repository) FindLine(ctx context.Context, cartID, medicineID uuid.UUID) (*models.CartItem, error) {
	var line models.CartItem
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND medicine_id = ?", cartID, medicineID).
		First(&line).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
	}
	return &line, nil
}

func (r *repository) CreateLine(ctx context.Context, line *models.CartItem) error {
	if err := r.db.WithContext(ctx).Create(line).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart line")
	}
	return nil
}

func (r *repository) BumpQuantity(ctx context.Context, lineID uuid.UUID, delta int) error {
	result := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", lineID).
		Update("quantity", gorm.Expr("quantity + ?", delta))
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "bump cart line quantity")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	return nil
}

// DeleteLine removes a single line. It is keyed on the owning cart as well as
// the line id so a patient cannot delete lines out of somebody else's cart.
// Removing an absent line is not an error; the boolean reports whether
// anything was deleted.
func (r *repository) DeleteLine(ctx context.Context, cartID, lineID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ? AND cart_id = ?", lineID, cartID).Delete(&models.CartItem{})
	if result.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "delete cart line")
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) LinesWithMedicine(ctx context.Context, cartID uuid.UUID) ([]Line, error) {
	var lines []Line
	err := r.db.WithContext(ctx).
		Table("cart_items").
		Select(`cart_items.id AS line_id,
			medicines.id AS medicine_id,
			medicines.name,
			medicines.brand,
			medicines.type,
			cart_items.quantity,
			medicines.price AS unit_price,
			medicines.stock_quantity AS stock,
			medicines.expiry_date`).
		Joins("JOIN medicines ON medicines.id = cart_items.medicine_id").
		Where("cart_items.cart_id = ?", cartID).
		Order("cart_items.created_at ASC").
		Scan(&lines).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart lines")
	}
	return lines, nil
}

func (r *repository) ClearLines(ctx context.Context, cartID uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}
