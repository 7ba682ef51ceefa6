package controllers

import (
	"net/http"

	"github.com/medicura/medicura-backend/api/responses"
	"github.com/medicura/medicura-backend/api/validators"
	checkoutsvc "github.com/medicura/medicura-backend/internal/checkout"
	orderssvc "github.com/medicura/medicura-backend/internal/orders"
	"github.com/medicura/medicura-backend/pkg/enums"
	pkgerrors "github.com/medicura/medicura-backend/pkg/errors"
	"github.com/medicura/medicura-backend/pkg/logger"
)

type checkoutRequest struct {
	Location      string `json:"location" validate:"required,min=3"`
	PaymentMethod string `json:"payment_method" validate:"required"`
}

// Checkout converts the patient's cart into an order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := actorIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown payment method"))
			return
		}

		result, err := svc.Execute(r.Context(), patientID, payload.Location, method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// OrderHistory lists the patient's own orders, newest first.
func OrderHistory(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := actorIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orders, err := svc.HistoryByPatient(r.Context(), patientID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders)
	}
}
