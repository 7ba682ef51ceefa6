package checkout

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/medicura/medicura-backend/internal/cart"
	"github.com/medicura/medicura-backend/internal/inventory"
	"github.com/medicura/medicura-backend/internal/orders"
	"github.com/medicura/medicura-backend/pkg/db/models"
	"github.com/medicura/medicura-backend/pkg/enums"
	pkgerrors "github.com/medicura/medicura-backend/pkg/errors"
	"github.com/medicura/medicura-backend/pkg/logger"
	"github.com/medicura/medicura-backend/pkg/metrics"
)

// TxRunner runs fn inside a database transaction, rolling back on error.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Result is what checkout hands back to the controller.
type Result struct {
	OrderID     uuid.UUID       `json:"order_id"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
}

// Service converts a patient's cart into an order, atomically.
type Service interface {
	Execute(ctx context.Context, patientID uuid.UUID, location string, method enums.PaymentMethod) (*Result, error)
}

type service struct {
	tx        TxRunner
	carts     cart.Repository
	orders    orders.Repository
	inventory inventory.Repository
	metrics   *metrics.PipelineMetrics
	log       *logger.Logger
}

// NewService wires the checkout pipeline with its collaborators.
func NewService(tx TxRunner, carts cart.Repository, ordersRepo orders.Repository, inv inventory.Repository, pm *metrics.PipelineMetrics, log *logger.Logger) Service {
	return &service{tx: tx, carts: carts, orders: ordersRepo, inventory: inv, metrics: pm, log: log}
}

// Execute runs the whole cart-to-order conversion inside one transaction:
// snapshot the lines at current prices, create the order, decrement stock
// per line with a conditional update, and empty the cart. Any failure rolls
// the entire thing back, so stock is only ever taken when an order exists
// and vice versa.
func (s *service) Execute(ctx context.Context, patientID uuid.UUID, location string, method enums.PaymentMethod) (*Result, error) {
	if location == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery location is required")
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}

	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)
		inv := s.inventory.WithTx(tx)

		cartRow, err := carts.FindByPatient(ctx, patientID)
		if err != nil {
			return err
		}

		lines, err := carts.LinesWithMedicine(ctx, cartRow.ID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		// Precheck gives a friendly per-medicine error before any writes;
		// the conditional decrement below is what actually guarantees
		// stock never goes negative under concurrency.
		for _, line := range lines {
			if line.Stock < line.Quantity {
				return insufficient(line)
			}
		}

		total := decimal.Zero
		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
			items = append(items, models.OrderItem{
				MedicineID: line.MedicineID,
				Name:       line.Name,
				Quantity:   line.Quantity,
				UnitPrice:  line.UnitPrice,
			})
		}

		order := &models.Order{
			PatientID:     patientID,
			Status:        enums.OrderStatusPending,
			Location:      location,
			PaymentMethod: method,
			TotalAmount:   total,
			Items:         items,
		}
		if err := ordersRepo.Create(ctx, order); err != nil {
			return err
		}

		for _, line := range lines {
			if err := inv.Decrement(ctx, line.MedicineID, line.Quantity); err != nil {
				if pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
					return insufficient(line)
				}
				return err
			}
		}

		if err := carts.ClearLines(ctx, cartRow.ID); err != nil {
			return err
		}

		result = &Result{
			OrderID:     order.ID,
			Status:      order.Status.String(),
			TotalAmount: total,
			ItemCount:   len(items),
		}
		return nil
	})
	if err != nil {
		s.metrics.IncCheckout("failure")
		return nil, err
	}

	s.metrics.IncCheckout("success")
	logCtx := s.log.WithFields(ctx, map[string]any{
		"order_id": result.OrderID.String(),
		"total":    result.TotalAmount.StringFixed(2),
		"items":    result.ItemCount,
	})
	s.log.Info(logCtx, "checkout completed")

	return result, nil
}

func insufficient(line cart.Line) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for "+line.Name).
		WithDetails(map[string]any{
			"medicine_id": line.MedicineID.String(),
			"name":        line.Name,
			"requested":   line.Quantity,
			"available":   line.Stock,
		})
}
