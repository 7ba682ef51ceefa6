package controllers

import (
	"net/http"

	"github.com/medicura/medicura-backend/api/responses"
	"github.com/medicura/medicura-backend/api/validators"
	orderssvc "github.com/medicura/medicura-backend/internal/orders"
	pkgerrors "github.com/medicura/medicura-backend/pkg/errors"
	"github.com/medicura/medicura-backend/pkg/logger"
)

type adminOrderDecisionRequest struct {
	Action string `json:"action" validate:"required,oneof=confirm decline"`
}

// AdminOrderList shows every order with the patient's name attached.
func AdminOrderList(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.ListAll(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// AdminOrderDecision applies the confirm or decline transition to a pending
// order. Orders already reconciled answer with a state conflict.
func AdminOrderDecision(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := uuidURLParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adminOrderDecisionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		switch payload.Action {
		case "confirm":
			order, err := svc.Confirm(r.Context(), orderID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, order)
		case "decline":
			order, err := svc.Decline(r.Context(), orderID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, order)
		default:
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "action must be confirm or decline"))
		}
	}
}
