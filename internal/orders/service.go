package orders

import (
	"context"

	"github.com/google/uuid"

	"github.com/medicura/medicura-backend/pkg/db/models"
	"github.com/medicura/medicura-backend/pkg/enums"
	pkgerrors "github.com/medicura/medicura-backend/pkg/errors"
	"github.com/medicura/medicura-backend/pkg/logger"
)

// Service covers order reads and the admin reconciliation transitions.
// Order creation lives in internal/checkout.
type Service interface {
	HistoryByPatient(ctx context.Context, patientID uuid.UUID) ([]models.Order, error)
	ListAll(ctx context.Context) ([]AdminRow, error)
	Confirm(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Decline(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type service struct {
	repo Repository
	log  *logger.Logger
}

// NewService wires the orders service.
func NewService(repo Repository, log *logger.Logger) Service {
	return &service{repo: repo, log: log}
}

func (s *service) HistoryByPatient(ctx context.Context, patientID uuid.UUID) ([]models.Order, error) {
	return s.repo.HistoryByPatient(ctx, patientID)
}

func (s *service) ListAll(ctx context.Context) ([]AdminRow, error) {
	return s.repo.ListAll(ctx)
}

// Confirm marks a Pending order Delivered.
func (s *service) Confirm(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.reconcile(ctx, orderID, enums.OrderStatusDelivered)
}

// Decline marks a Pending order Canceled. Stock already decremented at
// checkout stays decremented; declining is a bookkeeping transition, not a
// return.
func (s *service) Decline(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.reconcile(ctx, orderID, enums.OrderStatusCanceled)
}

func (s *service) reconcile(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus) (*models.Order, error) {
	changed, err := s.repo.UpdateStatusFromPending(ctx, orderID, next)
	if err != nil {
		return nil, err
	}
	if !changed {
		// Either the order does not exist or it already left Pending;
		// a read tells the two apart.
		order, findErr := s.repo.FindByID(ctx, orderID)
		if findErr != nil {
			return nil, findErr
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order already reconciled").
			WithDetails(map[string]any{"order_id": orderID.String(), "status": order.Status.String()})
	}

	logCtx := s.log.WithFields(ctx, map[string]any{
		"order_id": orderID.String(),
		"status":   next.String(),
	})
	s.log.Info(logCtx, "order reconciled")

	return s.repo.FindByID(ctx, orderID)
}
