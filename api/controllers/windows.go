package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/orro3790/shiftbid-backend/api/responses"
	"github.com/orro3790/shiftbid-backend/api/validators"
	"github.com/orro3790/shiftbid-backend/internal/bidding"
	"github.com/orro3790/shiftbid-backend/pkg/enums"
	pkgerrors "github.com/orro3790/shiftbid-backend/pkg/errors"
	"github.com/orro3790/shiftbid-backend/pkg/logger"
)

type openWindowRequest struct {
	AssignmentID string `json:"assignment_id" validate:"required,uuid"`
	Mode         string `json:"mode" validate:"required,oneof=competitive instant emergency"`
}

type managerAssignRequest struct {
	AssignmentID string `json:"assignment_id" validate:"required,uuid"`
	DriverID     string `json:"driver_id" validate:"required,uuid"`
	Force        bool   `json:"force"`
}

// ListOpenWindows returns the open bid windows for the caller's organization.
func ListOpenWindows(repo bidding.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bidding repository unavailable"))
			return
		}

		orgID, err := organizationID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		windows, err := repo.ListOpenWindows(r.Context(), orgID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list open windows"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": windows})
	}
}

// SubmitBid enters the authenticated driver into an open window.
func SubmitBid(svc bidding.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bidding service unavailable"))
			return
		}

		windowID, err := pathUUID(chi.URLParam(r, "windowId"), "window id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		driverID, err := subjectID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bid, err := svc.SubmitBid(r.Context(), bidding.SubmitBidInput{
			WindowID: windowID,
			DriverID: driverID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, bid)
	}
}

// OpenBidWindow starts bidding for an unfilled assignment.
func OpenBidWindow(svc bidding.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bidding service unavailable"))
			return
		}

		var req openWindowRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		assignmentID, err := pathUUID(req.AssignmentID, "assignment id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		mode, err := enums.ParseBidWindowMode(req.Mode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid window mode"))
			return
		}
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		window, err := svc.OpenWindow(r.Context(), bidding.OpenWindowInput{
			AssignmentID: assignmentID,
			Mode:         mode,
			Actor:        actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, window)
	}
}

// ResolveWindow forces resolution of an open window ahead of the sweep.
func ResolveWindow(svc bidding.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bidding service unavailable"))
			return
		}

		windowID, err := pathUUID(chi.URLParam(r, "windowId"), "window id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Resolve(r.Context(), windowID, actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "resolved"})
	}
}

// ManagerAssign places a driver on an assignment directly, bypassing scoring.
func ManagerAssign(svc bidding.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bidding service unavailable"))
			return
		}

		var req managerAssignRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		assignmentID, err := pathUUID(req.AssignmentID, "assignment id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		driverID, err := pathUUID(req.DriverID, "driver id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		managerID, err := subjectID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err = svc.ManagerAssign(r.Context(), bidding.ManagerAssignInput{
			AssignmentID: assignmentID,
			DriverID:     driverID,
			ManagerID:    managerID,
			Force:        req.Force,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "assigned"})
	}
}
