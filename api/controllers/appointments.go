package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/medicura/medicura-backend/api/middleware"
	"github.com/medicura/medicura-backend/api/responses"
	"github.com/medicura/medicura-backend/api/validators"
	apptsvc "github.com/medicura/medicura-backend/internal/appointments"
	"github.com/medicura/medicura-backend/pkg/enums"
	pkgerrors "github.com/medicura/medicura-backend/pkg/errors"
	"github.com/medicura/medicura-backend/pkg/logger"
)

type bookAppointmentRequest struct {
	DoctorID uuid.UUID `json:"doctor_id" validate:"required"`
	DateTime time.Time `json:"date_time" validate:"required"`
}

type rescheduleAppointmentRequest struct {
	DateTime time.Time `json:"date_time" validate:"required"`
}

// AppointmentList returns the patient's appointments with doctor details,
// optionally filtered by ?status=.
func AppointmentList(svc apptsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := actorIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var filter *enums.AppointmentStatus
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := enums.ParseAppointmentStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown status filter"))
				return
			}
			filter = &status
		}

		rows, err := svc.ListByPatient(r.Context(), patientID, filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// AppointmentBook creates a Pending appointment with an available doctor.
func AppointmentBook(svc apptsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := actorIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload bookAppointmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		appt, err := svc.Book(r.Context(), patientID, payload.DoctorID, payload.DateTime)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, appt)
	}
}

// AppointmentReschedule moves an appointment to a new time.
func AppointmentReschedule(svc apptsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		apptID, err := uuidURLParam(r, "appointmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload rescheduleAppointmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		appt, err := svc.Reschedule(r.Context(), actor, apptID, payload.DateTime)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, appt)
	}
}

// AppointmentCancel marks an appointment Cancelled.
func AppointmentCancel(svc apptsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		apptID, err := uuidURLParam(r, "appointmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		appt, err := svc.Cancel(r.Context(), actor, apptID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, appt)
	}
}

// AppointmentComplete lets the assigned doctor close out a visit.
func AppointmentComplete(svc apptsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := actorIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		apptID, err := uuidURLParam(r, "appointmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		appt, err := svc.Complete(r.Context(), doctorID, apptID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, appt)
	}
}

func actorFromRequest(r *http.Request) (apptsvc.Actor, error) {
	id, err := actorIDFromRequest(r)
	if err != nil {
		return apptsvc.Actor{}, err
	}
	role, err := enums.ParseUserRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return apptsvc.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid role context")
	}
	return apptsvc.Actor{UserID: id, Role: role}, nil
}
