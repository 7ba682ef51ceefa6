package controllers

import (
	"net/http"

	"github.com/medicura/medicura-backend/api/responses"
	doctorsrepo "github.com/medicura/medicura-backend/internal/doctors"
	"github.com/medicura/medicura-backend/pkg/logger"
)

// DoctorList returns doctors currently taking appointments.
func DoctorList(repo doctorsrepo.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profiles, err := repo.ListAvailable(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profiles)
	}
}
