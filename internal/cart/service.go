package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medicura/medicura-backend/internal/inventory"
	"github.com/medicura/medicura-backend/pkg/db/models"
	pkgerrors "github.com/medicura/medicura-backend/pkg/errors"
	"github.com/medicura/medicura-backend/pkg/logger"
)

// View is the cart as shown to a patient: joined lines plus the running
// subtotal over current catalog prices.
type View struct {
	CartID   uuid.UUID       `json:"cart_id"`
	Lines    []Line          `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// Service exposes cart operations for a single patient.
type Service interface {
	Get(ctx context.Context, patientID uuid.UUID) (*View, error)
	AddItem(ctx context.Context, patientID, medicineID uuid.UUID, quantity int) (*View, error)
	RemoveLine(ctx context.Context, patientID, lineID uuid.UUID) (*View, error)
}

type service struct {
	repo      Repository
	inventory inventory.Repository
	log       *logger.Logger
}

// NewService wires the cart service with its repositories.
func NewService(repo Repository, inv inventory.Repository, log *logger.Logger) Service {
	return &service{repo: repo, inventory: inv, log: log}
}

// Get returns the patient's cart, creating an empty one on first access.
func (s *service) Get(ctx context.Context, patientID uuid.UUID) (*View, error) {
	cart, err := s.repo.GetOrCreate(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart.ID)
}

// AddItem puts quantity units of a medicine in the cart. Adding a medicine
// already present sums quantities onto the existing line rather than creating
// a duplicate.
func (s *service) AddItem(ctx context.Context, patientID, medicineID uuid.UUID, quantity int) (*View, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	medicine, err := s.inventory.FindByID(ctx, medicineID)
	if err != nil {
		return nil, err
	}

	cart, err := s.repo.GetOrCreate(ctx, patientID)
	if err != nil {
		return nil, err
	}

	line, err := s.repo.FindLine(ctx, cart.ID, medicineID)
	switch {
	case err == nil:
		if err := s.repo.BumpQuantity(ctx, line.ID, quantity); err != nil {
			return nil, err
		}
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		fresh := &models.CartItem{
			CartID:     cart.ID,
			MedicineID: medicine.ID,
			Quantity:   quantity,
		}
		if err := s.repo.CreateLine(ctx, fresh); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	logCtx := s.log.WithFields(ctx, map[string]any{
		"cart_id":     cart.ID.String(),
		"medicine_id": medicineID.String(),
	})
	s.log.Info(logCtx, "cart item added")

	return s.view(ctx, cart.ID)
}

// RemoveLine deletes a line from the patient's cart. Removing a line that is
// already gone succeeds and returns the current cart unchanged.
func (s *service) RemoveLine(ctx context.Context, patientID, lineID uuid.UUID) (*View, error) {
	cart, err := s.repo.FindByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	removed, err := s.repo.DeleteLine(ctx, cart.ID, lineID)
	if err != nil {
		return nil, err
	}
	if removed {
		logCtx := s.log.WithFields(ctx, map[string]any{
			"cart_id": cart.ID.String(),
			"line_id": lineID.String(),
		})
		s.log.Info(logCtx, "cart line removed")
	}

	return s.view(ctx, cart.ID)
}

func (s *service) view(ctx context.Context, cartID uuid.UUID) (*View, error) {
	lines, err := s.repo.LinesWithMedicine(ctx, cartID)
	if err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	return &View{CartID: cartID, Lines: lines, Subtotal: subtotal}, nil
}
