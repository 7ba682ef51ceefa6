package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/medicura/medicura-backend/api/responses"
	"github.com/medicura/medicura-backend/api/validators"
	paymentssvc "github.com/medicura/medicura-backend/internal/payments"
	"github.com/medicura/medicura-backend/pkg/config"
	"github.com/medicura/medicura-backend/pkg/logger"
)

type initiatePaymentRequest struct {
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	OrderID       *uuid.UUID `json:"order_id,omitempty"`
}

// PaymentInitiate opens a gateway session for an appointment or order.
func PaymentInitiate(svc paymentssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := actorIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload initiatePaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Initiate(r.Context(), patientID, paymentssvc.InitiateRequest{
			AppointmentID: payload.AppointmentID,
			OrderID:       payload.OrderID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// PaymentHistory lists the patient's payments, newest first.
func PaymentHistory(svc paymentssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := actorIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payments, err := svc.HistoryByPatient(r.Context(), patientID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payments)
	}
}

// PaymentSuccessCallback handles the gateway's browser redirect after a paid
// transaction. The outcome is decided by server-side re-validation, never by
// the redirect itself; the browser just gets sent to the matching page.
func PaymentSuccessCallback(svc paymentssvc.Service, frontend config.FrontendConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tranID := callbackParam(r, "tran_id")
		valID := callbackParam(r, "val_id")
		if tranID == "" || valID == "" {
			http.Redirect(w, r, frontend.BaseURL+"/payment/fail", http.StatusSeeOther)
			return
		}

		if err := svc.ConfirmSuccess(r.Context(), tranID, valID); err != nil {
			logg.Error(r.Context(), "payment success callback failed", err)
			http.Redirect(w, r, frontend.BaseURL+"/payment/fail", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, frontend.BaseURL+"/payment/success", http.StatusSeeOther)
	}
}

// PaymentFailCallback records a failed transaction and sends the browser on.
func PaymentFailCallback(svc paymentssvc.Service, frontend config.FrontendConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tranID := callbackParam(r, "tran_id"); tranID != "" {
			if err := svc.MarkFailed(r.Context(), tranID); err != nil {
				logg.Error(r.Context(), "payment fail callback failed", err)
			}
		}
		http.Redirect(w, r, frontend.BaseURL+"/payment/fail", http.StatusSeeOther)
	}
}

// PaymentCancelCallback records the shopper abandoning the hosted page.
func PaymentCancelCallback(svc paymentssvc.Service, frontend config.FrontendConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tranID := callbackParam(r, "tran_id"); tranID != "" {
			if err := svc.MarkCancelled(r.Context(), tranID); err != nil {
				logg.Error(r.Context(), "payment cancel callback failed", err)
			}
		}
		http.Redirect(w, r, frontend.BaseURL+"/payment/cancel", http.StatusSeeOther)
	}
}

// callbackParam reads a gateway parameter from the form body or, failing
// that, the query string. The gateway POSTs url-encoded forms.
func callbackParam(r *http.Request, name string) string {
	if err := r.ParseForm(); err != nil {
		return r.URL.Query().Get(name)
	}
	if v := r.PostFormValue(name); v != "" {
		return v
	}
	return r.FormValue(name)
}
