package appointments

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medicura/medicura-backend/internal/doctors"
	"github.com/medicura/medicura-backend/pkg/db/models"
	"github.com/medicura/medicura-backend/pkg/enums"
	pkgerrors "github.com/medicura/medicura-backend/pkg/errors"
	"github.com/medicura/medicura-backend/pkg/logger"
)

// Actor identifies who is mutating an appointment, so ownership checks can
// distinguish the patient, the doctor and an admin.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// Service owns the appointment lifecycle outside of payment confirmation
// (which flips Pending to Confirmed from internal/payments).
type Service interface {
	Book(ctx context.Context, patientID, doctorID uuid.UUID, dateTime time.Time) (*models.Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, status *enums.AppointmentStatus) ([]Row, error)
	Reschedule(ctx context.Context, actor Actor, apptID uuid.UUID, newTime time.Time) (*models.Appointment, error)
	Cancel(ctx context.Context, actor Actor, apptID uuid.UUID) (*models.Appointment, error)
	Complete(ctx context.Context, doctorID, apptID uuid.UUID) (*models.Appointment, error)
}

type service struct {
	repo    Repository
	doctors doctors.Repository
	log     *logger.Logger
}

// NewService wires the appointments service.
func NewService(repo Repository, docs doctors.Repository, log *logger.Logger) Service {
	return &service{repo: repo, doctors: docs, log: log}
}

// Book creates a Pending appointment with a doctor who exists and is taking
// patients. Confirmation happens when the consultation fee is paid.
func (s *service) Book(ctx context.Context, patientID, doctorID uuid.UUID, dateTime time.Time) (*models.Appointment, error) {
	if dateTime.Before(time.Now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "appointment time must be in the future")
	}

	doctor, err := s.doctors.FindByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if doctor.AvailabilityStatus != enums.DoctorAvailabilityAvailable {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "doctor is not taking appointments").
			WithDetails(map[string]any{"availability_status": doctor.AvailabilityStatus.String()})
	}

	appt := &models.Appointment{
		PatientID: patientID,
		DoctorID:  doctorID,
		DateTime:  dateTime,
		Status:    enums.AppointmentStatusPending,
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		return nil, err
	}

	logCtx := s.log.WithFields(ctx, map[string]any{
		"appointment_id": appt.ID.String(),
		"doctor_id":      doctorID.String(),
	})
	s.log.Info(logCtx, "appointment booked")

	return appt, nil
}

func (s *service) ListByPatient(ctx context.Context, patientID uuid.UUID, status *enums.AppointmentStatus) ([]Row, error) {
	return s.repo.ListByPatient(ctx, patientID, status)
}

// Reschedule moves an appointment to a new time and marks it Rescheduled.
// Completed appointments are read-only and Cancelled ones cannot come back.
func (s *service) Reschedule(ctx context.Context, actor Actor, apptID uuid.UUID, newTime time.Time) (*models.Appointment, error) {
	if newTime.Before(time.Now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "appointment time must be in the future")
	}

	appt, err := s.authorize(ctx, actor, apptID)
	if err != nil {
		return nil, err
	}
	switch appt.Status {
	case enums.AppointmentStatusPending, enums.AppointmentStatusConfirmed, enums.AppointmentStatusRescheduled:
	default:
		return nil, stateConflict(appt, "cannot be rescheduled")
	}

	fields := map[string]any{
		"date_time": newTime,
		"status":    enums.AppointmentStatusRescheduled,
	}
	if err := s.repo.Update(ctx, apptID, fields); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, apptID)
}

// Cancel marks an appointment Cancelled unless it already Completed.
func (s *service) Cancel(ctx context.Context, actor Actor, apptID uuid.UUID) (*models.Appointment, error) {
	appt, err := s.authorize(ctx, actor, apptID)
	if err != nil {
		return nil, err
	}
	if appt.Status == enums.AppointmentStatusCompleted {
		return nil, stateConflict(appt, "cannot be cancelled")
	}
	if appt.Status == enums.AppointmentStatusCancelled {
		return appt, nil
	}

	if err := s.repo.Update(ctx, apptID, map[string]any{"status": enums.AppointmentStatusCancelled}); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, apptID)
}

// Complete lets the assigned doctor close out a Confirmed appointment.
func (s *service) Complete(ctx context.Context, doctorID, apptID uuid.UUID) (*models.Appointment, error) {
	appt, err := s.repo.FindByID(ctx, apptID)
	if err != nil {
		return nil, err
	}
	if appt.DoctorID != doctorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "appointment belongs to another doctor")
	}
	if appt.Status != enums.AppointmentStatusConfirmed {
		return nil, stateConflict(appt, "cannot be completed")
	}

	if err := s.repo.Update(ctx, apptID, map[string]any{"status": enums.AppointmentStatusCompleted}); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, apptID)
}

func (s *service) authorize(ctx context.Context, actor Actor, apptID uuid.UUID) (*models.Appointment, error) {
	appt, err := s.repo.FindByID(ctx, apptID)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case enums.UserRoleAdmin:
	case enums.UserRoleDoctor:
		if appt.DoctorID != actor.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "appointment belongs to another doctor")
		}
	default:
		if appt.PatientID != actor.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "appointment belongs to another patient")
		}
	}
	return appt, nil
}

func stateConflict(appt *models.Appointment, suffix string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, appt.Status.String()+" appointment "+suffix).
		WithDetails(map[string]any{"appointment_id": appt.ID.String(), "status": appt.Status.String()})
}
