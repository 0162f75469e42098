package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/orro3790/shiftbid-backend/api/responses"
	"github.com/orro3790/shiftbid-backend/internal/health"
	pkgerrors "github.com/orro3790/shiftbid-backend/pkg/errors"
	"github.com/orro3790/shiftbid-backend/pkg/logger"
)

// ReinstateDriver releases a hard-stopped driver back into the bid pool.
// This is the only path that reverses the eligibility latch.
func ReinstateDriver(svc health.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "health service unavailable"))
			return
		}

		driverID, err := pathUUID(chi.URLParam(r, "driverId"), "driver id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		managerID, err := subjectID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err = svc.Reinstate(r.Context(), health.ReinstateInput{
			DriverID:  driverID,
			ManagerID: managerID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "reinstated"})
	}
}
