package payments

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

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

type stubGateway struct {
	session     *sslcommerz.Session
	sessionErr  error
	validation  *sslcommerz.Validation
	validateErr error

	sessionCalls  int
	validateCalls int
}

func (s *stubGateway) CreateSession(ctx context.Context, req sslcommerz.SessionRequest) (*sslcommerz.Session, error) {
	s.sessionCalls++
	if s.sessionErr != nil {
		return nil, s.sessionErr
	}
	if s.session != nil {
		return s.session, nil
	}
	return &sslcommerz.Session{GatewayPageURL: "https://gateway.example/pay"}, nil
}

func (s *stubGateway) Validate(ctx context.Context, validationID string) (*sslcommerz.Validation, error) {
	s.validateCalls++
	if s.validateErr != nil {
		return nil, s.validateErr
	}
	return s.validation, nil
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type paymentsFixture struct {
	db      *gorm.DB
	gateway *stubGateway
	svc     Service
}

func setupPayments(t *testing.T) paymentsFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:payments_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Doctor{},
		&models.Appointment{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
	))

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	gateway := &stubGateway{}
	svc := NewService(
		gormTxRunner{db: db},
		NewRepository(db),
		appointments.NewRepository(db),
		doctors.NewRepository(db),
		orders.NewRepository(db),
		users.NewRepository(db),
		gateway,
		NewIdempotencyGuard(nil, 0, logg),
		metrics.NewPipelineMetrics(nil),
		logg,
	)
	return paymentsFixture{db: db, gateway: gateway, svc: svc}
}

func (f paymentsFixture) seedPatient(t *testing.T) *models.User {
	t.Helper()
	user := &models.User{
		Username:     "karim",
		Email:        fmt.Sprintf("karim_%s@example.com", uuid.NewString()),
		PasswordHash: "hash",
		Role:         enums.UserRolePatient,
	}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

func (f paymentsFixture) seedDoctor(t *testing.T, fee string) *models.Doctor {
	t.Helper()
	account := &models.User{
		Username:     "dr-ayesha",
		Email:        fmt.Sprintf("ayesha_%s@example.com", uuid.NewString()),
		PasswordHash: "hash",
		Role:         enums.UserRoleDoctor,
	}
	require.NoError(t, f.db.Create(account).Error)
	doctor := &models.Doctor{
		ID:                 account.ID,
		Specialization:     "Cardiology",
		Department:         "Cardiology",
		ConsultationFee:    decimal.RequireFromString(fee),
		AvailabilityStatus: enums.DoctorAvailabilityAvailable,
	}
	require.NoError(t, f.db.Create(doctor).Error)
	return doctor
}

func (f paymentsFixture) seedAppointment(t *testing.T, patientID, doctorID uuid.UUID, status enums.AppointmentStatus) *models.Appointment {
	t.Helper()
	appt := &models.Appointment{
		PatientID: patientID,
		DoctorID:  doctorID,
		DateTime:  time.Now().Add(48 * time.Hour),
		Status:    status,
	}
	require.NoError(t, f.db.Create(appt).Error)
	return appt
}

func (f paymentsFixture) seedPendingPayment(t *testing.T, patientID uuid.UUID, apptID *uuid.UUID, orderID *uuid.UUID, amount string) *models.Payment {
	t.Helper()
	payment := &models.Payment{
		PatientID:     patientID,
		AppointmentID: apptID,
		OrderID:       orderID,
		Amount:        decimal.RequireFromString(amount),
		Method:        "SSLCommerz",
		TransactionID: "MEDIC-" + uuid.NewString(),
		Status:        enums.PaymentStatusPending,
	}
	require.NoError(t, f.db.Create(payment).Error)
	return payment
}

func TestInitiateAppointmentPayment(t *testing.T) {
	t.Parallel()

	f := setupPayments(t)
	patient := f.seedPatient(t)
	doctor := f.seedDoctor(t, "800.00")
	appt := f.seedAppointment(t, patient.ID, doctor.ID, enums.AppointmentStatusPending)

	result, err := f.svc.Initiate(context.Background(), patient.ID, InitiateRequest{AppointmentID: &appt.ID})
	require.NoError(t, err)
	require.Equal(t, "https://gateway.example/pay", result.GatewayURL)
	require.Equal(t, "800.00", result.Amount)
	require.Equal(t, 1, f.gateway.sessionCalls)

	var payment models.Payment
	require.NoError(t, f.db.First(&payment, "transaction_id = ?", result.TransactionID).Error)
	require.Equal(t, enums.PaymentStatusPending, payment.Status)
	require.NotNil(t, payment.AppointmentID)
	require.Equal(t, appt.ID, *payment.AppointmentID)
	require.Nil(t, payment.OrderID)
}

func TestInitiateRecordsPaymentBeforeSession(t *testing.T) {
	t.Parallel()

	f := setupPayments(t)
	patient := f.seedPatient(t)
	doctor := f.seedDoctor(t, "800.00")
	appt := f.seedAppointment(t, patient.ID, doctor.ID, enums.AppointmentStatusPending)
	f.gateway.sessionErr = pkgerrors.New(pkgerrors.CodeDependency, "gateway unreachable")

	_, err := f.svc.Initiate(context.Background(), patient.ID, InitiateRequest{AppointmentID: &appt.ID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	// The row must exist so a stray callback cannot hit an unknown
	// transaction, and it must not stay Pending.
	var payment models.Payment
	require.NoError(t, f.db.First(&payment, "appointment_id = ?", appt.ID).Error)
	require.Equal(t, enums.PaymentStatusFailed, payment.Status)
}

func TestInitiateRequiresExactlyOneTarget(t *testing.T) {
	t.Parallel()

	f := setupPayments(t)
	id := uuid.New()

	_, err := f.svc.Initiate(context.Background(), uuid.New(), InitiateRequest{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Initiate(context.Background(), uuid.New(), InitiateRequest{AppointmentID: &id, OrderID: &id})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestInitiateRejectsOtherPatientsAppointment(t *testing.T) {
	t.Parallel()

	f := setupPayments(t)
	owner := f.seedPatient(t)
	doctor := f.seedDoctor(t, "500.00")
	appt := f.seedAppointment(t, owner.ID, doctor.ID, enums.AppointmentStatusPending)

	_, err := f.svc.Initiate(context.Background(), uuid.New(), InitiateRequest{AppointmentID: &appt.ID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	require.Equal(t, 0, f.gateway.sessionCalls)
}

func TestConfirmSuccessFlipsPaymentAndAppointment(t *testing.T) {
	t.Parallel()

	f := setupPayments(t)
	patient := f.seedPatient(t)
	doctor := f.seedDoctor(t, "800.00")
	appt := f.seedAppointment(t, patient.ID, doctor.ID, enums.AppointmentStatusPending)
	payment := f.seedPendingPayment(t, patient.ID, &appt.ID, nil, "800.00")

	f.gateway.validation = &sslcommerz.Validation{
		Status:        "VALID",
		TransactionID: payment.TransactionID,
		ValidationID:  "val-123",
		Amount:        decimal.RequireFromString("800.00"),
	}

	require.NoError(t, f.svc.ConfirmSuccess(context.Background(), payment.TransactionID, "val-123"))

	var gotPayment models.Payment
	require.NoError(t, f.db.First(&gotPayment, "id = ?", payment.ID).Error)
	require.Equal(t, enums.PaymentStatusCompleted, gotPayment.Status)
	require.NotNil(t, gotPayment.ValidationID)
	require.Equal(t, "val-123", *gotPayment.ValidationID)

	var gotAppt models.Appointment
	require.NoError(t, f.db.First(&gotAppt, "id = ?", appt.ID).Error)
	require.Equal(t, enums.AppointmentStatusConfirmed, gotAppt.Status)
}

func TestConfirmSuccessFlipsLinkedOrder(t *testing.T) {
	t.Parallel()

	f := setupPayments(t)
	patient := f.seedPatient(t)
	order := &models.Order{
		PatientID:     patient.ID,
		Status:        enums.OrderStatusPending,
		Location:      "Sylhet",
		PaymentMethod: enums.PaymentMethodGateway,
		TotalAmount:   decimal.RequireFromString("240.00"),
	}
	require.NoError(t, f.db.Create(order).Error)
	payment := f.seedPendingPayment(t, patient.ID, nil, &order.ID, "240.00")

	f.gateway.validation = &sslcommerz.Validation{
		Status:        "VALIDATED",
		TransactionID: payment.TransactionID,
		ValidationID:  "val-789",
		Amount:        decimal.RequireFromString("240.00"),
	}

	require.NoError(t, f.svc.ConfirmSuccess(context.Background(), payment.TransactionID, "val-789"))

	var gotOrder models.Order
	require.NoError(t, f.db.First(&gotOrder, "id = ?", order.ID).Error)
	require.Equal(t, enums.OrderStatusDelivered, gotOrder.Status)
}

func TestConfirmSuccessAfterAdminDeclineLeavesOrderCanceled(t *testing.T) {
	t.Parallel()

	f := setupPayments(t)
	patient := f.seedPatient(t)
	order := &models.Order{
		PatientID:     patient.ID,
		Status:        enums.OrderStatusPending,
		Location:      "Sylhet",
		PaymentMethod: enums.PaymentMethodGateway,
		TotalAmount:   decimal.RequireFromString("240.00"),
	}
	require.NoError(t, f.db.Create(order).Error)
	payment := f.seedPendingPayment(t, patient.ID, nil, &order.ID, "240.00")

	// Admin declines while the shopper is still on the gateway page.
	require.NoError(t, f.db.Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("status", enums.OrderStatusCanceled).Error)

	f.gateway.validation = &sslcommerz.Validation{
		Status:        "VALID",
		TransactionID: payment.TransactionID,
		ValidationID:  "val-late",
		Amount:        decimal.RequireFromString("240.00"),
	}

	require.NoError(t, f.svc.ConfirmSuccess(context.Background(), payment.TransactionID, "val-late"))

	var gotOrder models.Order
	require.NoError(t, f.db.First(&gotOrder, "id = ?", order.ID).Error)
	require.Equal(t, enums.OrderStatusCanceled, gotOrder.Status, "late success callback must not resurrect a reconciled order")

	var gotPayment models.Payment
	require.NoError(t, f.db.First(&gotPayment, "id = ?", payment.ID).Error)
	require.Equal(t, enums.PaymentStatusCompleted, gotPayment.Status)
}

func TestConfirmSuccessAfterPatientCancelLeavesAppointmentCancelled(t *testing.T) {
	t.Parallel()

	f := setupPayments(t)
	patient := f.seedPatient(t)
	doctor := f.seedDoctor(t, "800.00")
	appt := f.seedAppointment(t, patient.ID, doctor.ID, enums.AppointmentStatusPending)
	payment := f.seedPendingPayment(t, patient.ID, &appt.ID, nil, "800.00")

	require.NoError(t, f.db.Model(&models.Appointment{}).
		Where("id = ?", appt.ID).
		Update("status", enums.AppointmentStatusCancelled).Error)

	f.gateway.validation = &sslcommerz.Validation{
		Status:        "VALID",
		TransactionID: payment.TransactionID,
		ValidationID:  "val-late",
		Amount:        decimal.RequireFromString("800.00"),
	}

	require.NoError(t, f.svc.ConfirmSuccess(context.Background(), payment.TransactionID, "val-late"))

	var gotAppt models.Appointment
	require.NoError(t, f.db.First(&gotAppt, "id = ?", appt.ID).Error)
	require.Equal(t, enums.AppointmentStatusCancelled, gotAppt.Status, "late success callback must not revive a cancelled appointment")

	var gotPayment models.Payment
	require.NoError(t, f.db.First(&gotPayment, "id = ?", payment.ID).Error)
	require.Equal(t, enums.PaymentStatusCompleted, gotPayment.Status)
}

func TestConfirmSuccessIsIdempotent(t *testing.T) {
	t.Parallel()

	f := setupPayments(t)
	patient := f.seedPatient(t)
	doctor := f.seedDoctor(t, "800.00")
	appt := f.seedAppointment(t, patient.ID, doctor.ID, enums.AppointmentStatusPending)
	payment := f.seedPendingPayment(t, patient.ID, &appt.ID, nil, "800.00")

	f.gateway.validation = &sslcommerz.Validation{
		Status:        "VALID",
		TransactionID: payment.TransactionID,
		ValidationID:  "val-123",
		Amount:        decimal.RequireFromString("800.00"),
	}

	require.NoError(t, f.svc.ConfirmSuccess(context.Background(), payment.TransactionID, "val-123"))
	require.NoError(t, f.svc.ConfirmSuccess(context.Background(), payment.TransactionID, "val-123"))

	require.Equal(t, 1, f.gateway.validateCalls, "settled payment must not be re-validated")
}

func TestConfirmSuccessAmountMismatchMarksFailed(t *testing.T) {
	t.Parallel()

	f := setupPayments(t)
	patient := f.seedPatient(t)
	doctor := f.seedDoctor(t, "800.00")
	appt := f.seedAppointment(t, patient.ID, doctor.ID, enums.AppointmentStatusPending)
	payment := f.seedPendingPayment(t, patient.ID, &appt.ID, nil, "800.00")

	f.gateway.validation = &sslcommerz.Validation{
		Status:        "VALID",
		TransactionID: payment.TransactionID,
		ValidationID:  "val-123",
		Amount:        decimal.RequireFromString("1.00"),
	}

	err := f.svc.ConfirmSuccess(context.Background(), payment.TransactionID, "val-123")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGatewayValidation))

	var gotPayment models.Payment
	require.NoError(t, f.db.First(&gotPayment, "id = ?", payment.ID).Error)
	require.Equal(t, enums.PaymentStatusFailed, gotPayment.Status)

	var gotAppt models.Appointment
	require.NoError(t, f.db.First(&gotAppt, "id = ?", appt.ID).Error)
	require.Equal(t, enums.AppointmentStatusPending, gotAppt.Status, "appointment untouched on failed validation")
}

func TestConfirmSuccessInvalidStatusMarksFailed(t *testing.T) {
	t.Parallel()

	f := setupPayments(t)
	patient := f.seedPatient(t)
	doctor := f.seedDoctor(t, "800.00")
	appt := f.seedAppointment(t, patient.ID, doctor.ID, enums.AppointmentStatusPending)
	payment := f.seedPendingPayment(t, patient.ID, &appt.ID, nil, "800.00")

	f.gateway.validation = &sslcommerz.Validation{
		Status:        "INVALID_TRANSACTION",
		TransactionID: payment.TransactionID,
		Amount:        decimal.RequireFromString("800.00"),
	}

	err := f.svc.ConfirmSuccess(context.Background(), payment.TransactionID, "val-123")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGatewayValidation))

	var gotPayment models.Payment
	require.NoError(t, f.db.First(&gotPayment, "id = ?", payment.ID).Error)
	require.Equal(t, enums.PaymentStatusFailed, gotPayment.Status)
}

func TestConfirmSuccessUnknownTransaction(t *testing.T) {
	t.Parallel()

	f := setupPayments(t)

	err := f.svc.ConfirmSuccess(context.Background(), "MEDIC-missing", "val-1")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	require.Equal(t, 0, f.gateway.validateCalls)
}

func TestMarkFailedWhilePending(t *testing.T) {
	t.Parallel()

	f := setupPayments(t)
	patient := f.seedPatient(t)
	doctor := f.seedDoctor(t, "800.00")
	appt := f.seedAppointment(t, patient.ID, doctor.ID, enums.AppointmentStatusPending)
	payment := f.seedPendingPayment(t, patient.ID, &appt.ID, nil, "800.00")

	require.NoError(t, f.svc.MarkFailed(context.Background(), payment.TransactionID))

	var got models.Payment
	require.NoError(t, f.db.First(&got, "id = ?", payment.ID).Error)
	require.Equal(t, enums.PaymentStatusFailed, got.Status)
}

func TestMarkCancelledDoesNotTouchSettledPayment(t *testing.T) {
	t.Parallel()

	f := setupPayments(t)
	patient := f.seedPatient(t)
	doctor := f.seedDoctor(t, "800.00")
	appt := f.seedAppointment(t, patient.ID, doctor.ID, enums.AppointmentStatusPending)
	payment := f.seedPendingPayment(t, patient.ID, &appt.ID, nil, "800.00")
	require.NoError(t, f.db.Model(&models.Payment{}).
		Where("id = ?", payment.ID).
		Update("status", enums.PaymentStatusCompleted).Error)

	require.NoError(t, f.svc.MarkCancelled(context.Background(), payment.TransactionID))

	var got models.Payment
	require.NoError(t, f.db.First(&got, "id = ?", payment.ID).Error)
	require.Equal(t, enums.PaymentStatusCompleted, got.Status, "terminal status must survive late callbacks")
}

func TestMarkFailedUnknownTransactionIsSilent(t *testing.T) {
	t.Parallel()

	f := setupPayments(t)
	require.NoError(t, f.svc.MarkFailed(context.Background(), "MEDIC-missing"))
}
