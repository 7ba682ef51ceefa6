package appointments

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

	"github.com/medicura/medicura-backend/internal/doctors"
	"github.com/medicura/medicura-backend/pkg/db/models"
	"github.com/medicura/medicura-backend/pkg/enums"
	pkgerrors "github.com/medicura/medicura-backend/pkg/errors"
	"github.com/medicura/medicura-backend/pkg/logger"
)

type apptFixture struct {
	db  *gorm.DB
	svc Service
}

func setupAppointments(t *testing.T) apptFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:appointments_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Doctor{}, &models.Appointment{}))

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc := NewService(NewRepository(db), doctors.NewRepository(db), logg)
	return apptFixture{db: db, svc: svc}
}

func (f apptFixture) seedDoctor(t *testing.T, availability enums.DoctorAvailability) *models.Doctor {
	t.Helper()
	account := &models.User{
		Username:     "dr-rahman",
		Email:        fmt.Sprintf("rahman_%s@example.com", uuid.NewString()),
		PasswordHash: "hash",
		Role:         enums.UserRoleDoctor,
	}
	require.NoError(t, f.db.Create(account).Error)
	doctor := &models.Doctor{
		ID:                 account.ID,
		Specialization:     "Neurology",
		Department:         "Neurology",
		ConsultationFee:    decimal.RequireFromString("600.00"),
		AvailabilityStatus: availability,
	}
	require.NoError(t, f.db.Create(doctor).Error)
	return doctor
}

func patientActor(id uuid.UUID) Actor {
	return Actor{UserID: id, Role: enums.UserRolePatient}
}

func TestBookCreatesPendingAppointment(t *testing.T) {
	t.Parallel()

	f := setupAppointments(t)
	doctor := f.seedDoctor(t, enums.DoctorAvailabilityAvailable)
	patientID := uuid.New()

	appt, err := f.svc.Book(context.Background(), patientID, doctor.ID, time.Now().Add(72*time.Hour))
	require.NoError(t, err)
	require.Equal(t, enums.AppointmentStatusPending, appt.Status)
	require.Equal(t, doctor.ID, appt.DoctorID)
}

func TestBookRejectsUnavailableDoctor(t *testing.T) {
	t.Parallel()

	f := setupAppointments(t)
	doctor := f.seedDoctor(t, enums.DoctorAvailabilityOnLeave)

	_, err := f.svc.Book(context.Background(), uuid.New(), doctor.ID, time.Now().Add(72*time.Hour))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestBookRejectsPastTime(t *testing.T) {
	t.Parallel()

	f := setupAppointments(t)

	_, err := f.svc.Book(context.Background(), uuid.New(), uuid.New(), time.Now().Add(-time.Hour))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestBookUnknownDoctor(t *testing.T) {
	t.Parallel()

	f := setupAppointments(t)

	_, err := f.svc.Book(context.Background(), uuid.New(), uuid.New(), time.Now().Add(72*time.Hour))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRescheduleMarksRescheduled(t *testing.T) {
	t.Parallel()

	f := setupAppointments(t)
	doctor := f.seedDoctor(t, enums.DoctorAvailabilityAvailable)
	patientID := uuid.New()
	appt, err := f.svc.Book(context.Background(), patientID, doctor.ID, time.Now().Add(72*time.Hour))
	require.NoError(t, err)

	newTime := time.Now().Add(96 * time.Hour)
	got, err := f.svc.Reschedule(context.Background(), patientActor(patientID), appt.ID, newTime)
	require.NoError(t, err)
	require.Equal(t, enums.AppointmentStatusRescheduled, got.Status)
	require.WithinDuration(t, newTime, got.DateTime, time.Second)
}

func TestRescheduleCompletedIsRejected(t *testing.T) {
	t.Parallel()

	f := setupAppointments(t)
	doctor := f.seedDoctor(t, enums.DoctorAvailabilityAvailable)
	patientID := uuid.New()
	appt, err := f.svc.Book(context.Background(), patientID, doctor.ID, time.Now().Add(72*time.Hour))
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.Appointment{}).
		Where("id = ?", appt.ID).
		Update("status", enums.AppointmentStatusCompleted).Error)

	_, err = f.svc.Reschedule(context.Background(), patientActor(patientID), appt.ID, time.Now().Add(96*time.Hour))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestRescheduleOtherPatientsAppointment(t *testing.T) {
	t.Parallel()

	f := setupAppointments(t)
	doctor := f.seedDoctor(t, enums.DoctorAvailabilityAvailable)
	appt, err := f.svc.Book(context.Background(), uuid.New(), doctor.ID, time.Now().Add(72*time.Hour))
	require.NoError(t, err)

	_, err = f.svc.Reschedule(context.Background(), patientActor(uuid.New()), appt.ID, time.Now().Add(96*time.Hour))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestCancelIsTolerantOfRepeats(t *testing.T) {
	t.Parallel()

	f := setupAppointments(t)
	doctor := f.seedDoctor(t, enums.DoctorAvailabilityAvailable)
	patientID := uuid.New()
	appt, err := f.svc.Book(context.Background(), patientID, doctor.ID, time.Now().Add(72*time.Hour))
	require.NoError(t, err)

	got, err := f.svc.Cancel(context.Background(), patientActor(patientID), appt.ID)
	require.NoError(t, err)
	require.Equal(t, enums.AppointmentStatusCancelled, got.Status)

	again, err := f.svc.Cancel(context.Background(), patientActor(patientID), appt.ID)
	require.NoError(t, err)
	require.Equal(t, enums.AppointmentStatusCancelled, again.Status)
}

func TestCancelCompletedIsRejected(t *testing.T) {
	t.Parallel()

	f := setupAppointments(t)
	doctor := f.seedDoctor(t, enums.DoctorAvailabilityAvailable)
	patientID := uuid.New()
	appt, err := f.svc.Book(context.Background(), patientID, doctor.ID, time.Now().Add(72*time.Hour))
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.Appointment{}).
		Where("id = ?", appt.ID).
		Update("status", enums.AppointmentStatusCompleted).Error)

	_, err = f.svc.Cancel(context.Background(), patientActor(patientID), appt.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestCompleteRequiresConfirmedAndOwnership(t *testing.T) {
	t.Parallel()

	f := setupAppointments(t)
	doctor := f.seedDoctor(t, enums.DoctorAvailabilityAvailable)
	patientID := uuid.New()
	appt, err := f.svc.Book(context.Background(), patientID, doctor.ID, time.Now().Add(72*time.Hour))
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), doctor.ID, appt.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "pending visit cannot be completed")

	require.NoError(t, f.db.Model(&models.Appointment{}).
		Where("id = ?", appt.ID).
		Update("status", enums.AppointmentStatusConfirmed).Error)

	_, err = f.svc.Complete(context.Background(), uuid.New(), appt.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	got, err := f.svc.Complete(context.Background(), doctor.ID, appt.ID)
	require.NoError(t, err)
	require.Equal(t, enums.AppointmentStatusCompleted, got.Status)
}

func TestListByPatientFiltersByStatus(t *testing.T) {
	t.Parallel()

	f := setupAppointments(t)
	doctor := f.seedDoctor(t, enums.DoctorAvailabilityAvailable)
	patientID := uuid.New()

	first, err := f.svc.Book(context.Background(), patientID, doctor.ID, time.Now().Add(72*time.Hour))
	require.NoError(t, err)
	_, err = f.svc.Book(context.Background(), patientID, doctor.ID, time.Now().Add(96*time.Hour))
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.Appointment{}).
		Where("id = ?", first.ID).
		Update("status", enums.AppointmentStatusConfirmed).Error)

	all, err := f.svc.ListByPatient(context.Background(), patientID, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "dr-rahman", all[0].DoctorName)

	confirmed := enums.AppointmentStatusConfirmed
	filtered, err := f.svc.ListByPatient(context.Background(), patientID, &confirmed)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.Equal(t, first.ID, filtered[0].ID)
}
