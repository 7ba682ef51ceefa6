package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/medicura/medicura-backend/internal/appointments"
	"github.com/medicura/medicura-backend/internal/doctors"
	"github.com/medicura/medicura-backend/internal/orders"
	"github.com/medicura/medicura-backend/internal/users"
	"github.com/medicura/medicura-backend/pkg/db/models"
	"github.com/medicura/medicura-backend/pkg/enums"
	pkgerrors "github.com/medicura/medicura-backend/pkg/errors"
	"github.com/medicura/medicura-backend/pkg/gateway/sslcommerz"
	"github.com/medicura/medicura-backend/pkg/logger"
	"github.com/medicura/medicura-backend/pkg/metrics"
)

// TxRunner runs fn inside a database transaction, rolling back on error.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// GatewayClient is the slice of the gateway the state machine needs.
type GatewayClient interface {
	CreateSession(ctx context.Context, req sslcommerz.SessionRequest) (*sslcommerz.Session, error)
	Validate(ctx context.Context, validationID string) (*sslcommerz.Validation, error)
}

// InitiateRequest targets exactly one payable: a booked appointment or a
// pending pharmacy order.
type InitiateRequest struct {
	AppointmentID *uuid.UUID
	OrderID       *uuid.UUID
}

// InitiateResult is handed to the client so it can redirect to the hosted
// gateway page.
type InitiateResult struct {
	TransactionID string `json:"transaction_id"`
	GatewayURL    string `json:"gateway_url"`
	Amount        string `json:"amount"`
}

// Service owns payment initiation and the gateway-callback state machine.
type Service interface {
	Initiate(ctx context.Context, patientID uuid.UUID, req InitiateRequest) (*InitiateResult, error)
	ConfirmSuccess(ctx context.Context, tranID, validationID string) error
	MarkFailed(ctx context.Context, tranID string) error
	MarkCancelled(ctx context.Context, tranID string) error
	HistoryByPatient(ctx context.Context, patientID uuid.UUID) ([]models.Payment, error)
}

type service struct {
	tx           TxRunner
	repo         Repository
	appointments appointments.Repository
	doctors      doctors.Repository
	orders       orders.Repository
	users        users.Repository
	gateway      GatewayClient
	guard        *IdempotencyGuard
	metrics      *metrics.PipelineMetrics
	log          *logger.Logger
}

// NewService wires the payments service.
func NewService(
	tx TxRunner,
	repo Repository,
	appts appointments.Repository,
	docs doctors.Repository,
	ordersRepo orders.Repository,
	usersRepo users.Repository,
	gateway GatewayClient,
	guard *IdempotencyGuard,
	pm *metrics.PipelineMetrics,
	log *logger.Logger,
) Service {
	return &service{
		tx:           tx,
		repo:         repo,
		appointments: appts,
		doctors:      docs,
		orders:       ordersRepo,
		users:        usersRepo,
		gateway:      gateway,
		guard:        guard,
		metrics:      pm,
		log:          log,
	}
}

// Initiate opens a hosted gateway session for the targeted appointment or
// order and records a Pending payment keyed by a fresh transaction id.
func (s *service) Initiate(ctx context.Context, patientID uuid.UUID, req InitiateRequest) (*InitiateResult, error) {
	if (req.AppointmentID == nil) == (req.OrderID == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "exactly one of appointment_id or order_id is required")
	}

	payment := &models.Payment{
		PatientID:     patientID,
		TransactionID: "MEDIC-" + uuid.NewString(),
		Status:        enums.PaymentStatusPending,
	}
	productName := ""

	if req.AppointmentID != nil {
		appt, err := s.appointments.FindByID(ctx, *req.AppointmentID)
		if err != nil {
			return nil, err
		}
		if appt.PatientID != patientID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "appointment belongs to another patient")
		}
		if appt.Status.IsTerminal() || appt.Status == enums.AppointmentStatusCancelled ||
			appt.Status == enums.AppointmentStatusConfirmed {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "appointment is not awaiting payment").
				WithDetails(map[string]any{"status": appt.Status.String()})
		}
		doctor, err := s.doctors.FindByID(ctx, appt.DoctorID)
		if err != nil {
			return nil, err
		}
		payment.AppointmentID = &appt.ID
		payment.Amount = doctor.ConsultationFee
		productName = "Consultation with " + doctor.Specialization
	} else {
		order, err := s.orders.FindByID(ctx, *req.OrderID)
		if err != nil {
			return nil, err
		}
		if order.PatientID != patientID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another patient")
		}
		if order.Status != enums.OrderStatusPending {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").
				WithDetails(map[string]any{"status": order.Status.String()})
		}
		payment.OrderID = &order.ID
		payment.Amount = order.TotalAmount
		productName = "Pharmacy order"
	}

	sessionReq := sslcommerz.SessionRequest{
		TransactionID: payment.TransactionID,
		Amount:        payment.Amount,
		Currency:      "BDT",
		ProductName:   productName,
	}
	if s.users != nil {
		if patient, err := s.users.FindByID(ctx, patientID); err == nil {
			sessionReq.CustomerName = patient.Username
			sessionReq.CustomerEmail = patient.Email
			if patient.ContactNo != nil {
				sessionReq.CustomerPhone = *patient.ContactNo
			}
		}
	}

	// The Pending row goes in before the gateway session exists. The other
	// way round, a Create failure would leave a live hosted-checkout session
	// whose success callback hits an unknown transaction.
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateSession(ctx, sessionReq)
	if err != nil {
		if _, markErr := s.repo.UpdateStatusFromPending(ctx, payment.TransactionID, enums.PaymentStatusFailed, nil); markErr != nil {
			s.log.Error(ctx, "mark payment failed after session error", markErr)
		}
		return nil, err
	}

	logCtx := s.log.WithTransactionID(ctx, payment.TransactionID)
	s.log.Info(logCtx, "payment initiated")

	return &InitiateResult{
		TransactionID: payment.TransactionID,
		GatewayURL:    session.GatewayPageURL,
		Amount:        payment.Amount.StringFixed(2),
	}, nil
}

// ConfirmSuccess handles the gateway's success callback. It re-validates the
// transaction server-side and, only if the gateway vouches for it, flips the
// payment and its linked appointment or order in one transaction. The caller
// never gets to pick which domain object changes; that comes from the stored
// payment row.
func (s *service) ConfirmSuccess(ctx context.Context, tranID, validationID string) error {
	logCtx := s.log.WithTransactionID(ctx, tranID)

	if !s.guard.Claim(ctx, "success", tranID) {
		s.log.Info(logCtx, "duplicate success callback dropped")
		s.metrics.IncCallback("success", "duplicate")
		return nil
	}

	err := s.confirmSuccess(ctx, tranID, validationID)
	if err != nil {
		// Free the claim so the gateway's retry can land.
		s.guard.Release(ctx, "success", tranID)
		s.metrics.IncCallback("success", "failure")
		return err
	}
	s.metrics.IncCallback("success", "success")
	return nil
}

func (s *service) confirmSuccess(ctx context.Context, tranID, validationID string) error {
	logCtx := s.log.WithTransactionID(ctx, tranID)

	payment, err := s.repo.FindByTransactionID(ctx, tranID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.log.Warn(logCtx, "success callback for unknown transaction ignored")
		}
		return err
	}
	if payment.Status.IsTerminal() {
		s.log.Info(logCtx, "success callback replay ignored, payment already settled")
		return nil
	}

	validation, err := s.gateway.Validate(ctx, validationID)
	if err != nil {
		return err
	}

	if !validation.Valid() || validation.TransactionID != payment.TransactionID ||
		!validation.Amount.Equal(payment.Amount) {
		if _, markErr := s.repo.UpdateStatusFromPending(ctx, tranID, enums.PaymentStatusFailed, nil); markErr != nil {
			return markErr
		}
		s.log.Warn(logCtx, "gateway validation mismatch, payment marked failed")
		return pkgerrors.New(pkgerrors.CodeGatewayValidation, "gateway did not validate the transaction").
			WithDetails(map[string]any{
				"gateway_status": validation.Status,
				"transaction_id": tranID,
			})
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		paymentsRepo := s.repo.WithTx(tx)

		changed, err := paymentsRepo.UpdateStatusFromPending(ctx, tranID, enums.PaymentStatusCompleted, &validation.ValidationID)
		if err != nil {
			return err
		}
		if !changed {
			// Raced with another callback that settled it first.
			s.log.Info(logCtx, "payment settled concurrently, skipping")
			return nil
		}

		// The domain flips are conditional on the current status: a success
		// callback landing after a cancellation or an admin decline settles
		// the payment but must not resurrect the appointment or order.
		switch {
		case payment.AppointmentID != nil:
			appts := s.appointments.WithTx(tx)
			flipped, err := appts.UpdateStatusFrom(ctx, *payment.AppointmentID, enums.AppointmentStatusConfirmed,
				enums.AppointmentStatusPending, enums.AppointmentStatusRescheduled)
			if err != nil {
				return err
			}
			if !flipped {
				s.log.Warn(logCtx, "appointment no longer awaiting payment, confirm flip skipped")
			}
		case payment.OrderID != nil:
			ordersRepo := s.orders.WithTx(tx)
			flipped, err := ordersRepo.UpdateStatusFromPending(ctx, *payment.OrderID, enums.OrderStatusDelivered)
			if err != nil {
				return err
			}
			if !flipped {
				s.log.Warn(logCtx, "order already reconciled, delivery flip skipped")
			}
		}

		s.log.Info(logCtx, "payment completed")
		return nil
	})
}

// MarkFailed records the gateway's fail callback. Unknown transactions and
// already-settled payments are silent no-ops.
func (s *service) MarkFailed(ctx context.Context, tranID string) error {
	return s.markTerminal(ctx, "fail", tranID, enums.PaymentStatusFailed)
}

// MarkCancelled records the shopper abandoning the hosted page.
func (s *service) MarkCancelled(ctx context.Context, tranID string) error {
	return s.markTerminal(ctx, "cancel", tranID, enums.PaymentStatusCancelled)
}

func (s *service) markTerminal(ctx context.Context, kind, tranID string, next enums.PaymentStatus) error {
	logCtx := s.log.WithTransactionID(ctx, tranID)

	changed, err := s.repo.UpdateStatusFromPending(ctx, tranID, next, nil)
	if err != nil {
		s.metrics.IncCallback(kind, "failure")
		return err
	}
	if changed {
		s.log.Info(logCtx, "payment marked "+next.String())
	} else {
		s.log.Info(logCtx, kind+" callback ignored, payment unknown or already settled")
	}
	s.metrics.IncCallback(kind, "success")
	return nil
}

func (s *service) HistoryByPatient(ctx context.Context, patientID uuid.UUID) ([]models.Payment, error) {
	return s.repo.ListByPatient(ctx, patientID)
}
