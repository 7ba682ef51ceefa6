package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/medicura/medicura-backend/pkg/db/models"
	"github.com/medicura/medicura-backend/pkg/enums"
	pkgerrors "github.com/medicura/medicura-backend/pkg/errors"
)

// AdminRow is an order joined with the patient's name for the admin screen.
type AdminRow struct {
	models.Order
	PatientName string `json:"patient_name" gorm:"-"`
}

// Repository persists orders and their item snapshots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	HistoryByPatient(ctx context.Context, patientID uuid.UUID) ([]models.Order, error)
	ListAll(ctx context.Context) ([]AdminRow, error)
	UpdateStatusFromPending(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus) (bool, error)
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

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").Where("id = ?", orderID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return &order, nil
}

func (r *repository) HistoryByPatient(ctx context.Context, patientID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("patient_id = ?", patientID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order history")
	}
	return orders, nil
}

func (r *repository) ListAll(ctx context.Context) ([]AdminRow, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	if len(orders) == 0 {
		return []AdminRow{}, nil
	}

	patientIDs := make([]uuid.UUID, 0, len(orders))
	seen := make(map[uuid.UUID]struct{}, len(orders))
	for _, order := range orders {
		if _, ok := seen[order.PatientID]; !ok {
			seen[order.PatientID] = struct{}{}
			patientIDs = append(patientIDs, order.PatientID)
		}
	}

	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", patientIDs).Find(&users).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order patients")
	}
	names := make(map[uuid.UUID]string, len(users))
	for _, user := range users {
		names[user.ID] = user.Username
	}

	rows := make([]AdminRow, 0, len(orders))
	for _, order := range orders {
		rows = append(rows, AdminRow{Order: order, PatientName: names[order.PatientID]})
	}
	return rows, nil
}

// UpdateStatusFromPending flips the status only when the order is still
// Pending. The returned boolean reports whether the row actually changed;
// the caller distinguishes "missing" from "already reconciled".
func (r *repository) UpdateStatusFromPending(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusPending).
		Update("status", next)
	if result.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "update order status")
	}
	return result.RowsAffected > 0, nil
}
