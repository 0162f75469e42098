package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/orro3790/shiftbid-backend/api/responses"
	"github.com/orro3790/shiftbid-backend/api/validators"
	"github.com/orro3790/shiftbid-backend/internal/assignments"
	"github.com/orro3790/shiftbid-backend/pkg/enums"
	pkgerrors "github.com/orro3790/shiftbid-backend/pkg/errors"
	"github.com/orro3790/shiftbid-backend/pkg/logger"
	"github.com/orro3790/shiftbid-backend/pkg/pagination"
)

type completeAssignmentRequest struct {
	ParcelsDelivered int `json:"parcels_delivered" validate:"min=0"`
}

type editParcelsRequest struct {
	ParcelsDelivered int `json:"parcels_delivered" validate:"min=0"`
}

type cancelAssignmentRequest struct {
	Reason string `json:"reason" validate:"omitempty,oneof=driver_cancelled manager_cancelled"`
}

// ListMyAssignments returns the authenticated driver's assignments, newest
// first, with cursor pagination.
func ListMyAssignments(repo assignments.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignments repository unavailable"))
			return
		}

		driverID, err := subjectID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		rows, next, err := repo.ListForDriver(r.Context(), driverID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cursor := ""
		if next != nil {
			cursor = pagination.EncodeCursor(*next)
		}
		responses.WriteSuccess(w, map[string]any{"items": rows, "cursor": cursor})
	}
}

// ListAssignmentsForDate returns every assignment in the caller's
// organization on one calendar date.
func ListAssignmentsForDate(repo assignments.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignments repository unavailable"))
			return
		}

		orgID, err := organizationID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		shiftDate, err := validators.ParseQueryDate(r, "date", true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := repo.ListForDate(r.Context(), orgID, shiftDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list assignments"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": rows})
	}
}

// ConfirmAssignment records the driver's confirmation for a scheduled shift.
func ConfirmAssignment(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignments service unavailable"))
			return
		}

		assignmentID, driverID, err := assignmentAndDriver(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Confirm(r.Context(), assignmentID, driverID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "confirmed"})
	}
}

// ArriveAssignment records the driver's warehouse arrival.
func ArriveAssignment(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignments service unavailable"))
			return
		}

		assignmentID, driverID, err := assignmentAndDriver(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Arrive(r.Context(), assignmentID, driverID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "arrived"})
	}
}

// CompleteAssignment finishes a shift with its delivered-parcel count.
func CompleteAssignment(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignments service unavailable"))
			return
		}

		assignmentID, driverID, err := assignmentAndDriver(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req completeAssignmentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err = svc.Complete(r.Context(), assignments.CompleteInput{
			AssignmentID:     assignmentID,
			DriverID:         driverID,
			ParcelsDelivered: req.ParcelsDelivered,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "completed"})
	}
}

// CancelAssignment removes a driver from a shift. Drivers cancel their own
// shifts; managers can cancel any shift in their organization.
func CancelAssignment(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignments service unavailable"))
			return
		}

		assignmentID, err := pathUUID(chi.URLParam(r, "assignmentId"), "assignment id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reason := enums.CancellationReasonDriverCancelled
		if actor.Role == enums.ActorRoleManager {
			reason = enums.CancellationReasonManagerCancelled
		}
		if r.ContentLength > 0 {
			var req cancelAssignmentRequest
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if req.Reason != "" {
				parsed, err := enums.ParseCancellationReason(req.Reason)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cancellation reason"))
					return
				}
				reason = parsed
			}
		}

		err = svc.Cancel(r.Context(), assignments.CancelInput{
			AssignmentID: assignmentID,
			Actor:        actor,
			Reason:       reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}

// EditParcelCount corrects a delivered-parcel count inside the correction
// window.
func EditParcelCount(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignments service unavailable"))
			return
		}

		assignmentID, err := pathUUID(chi.URLParam(r, "assignmentId"), "assignment id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req editParcelsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err = svc.EditParcelCount(r.Context(), assignments.EditParcelsInput{
			AssignmentID:     assignmentID,
			Actor:            actor,
			ParcelsDelivered: req.ParcelsDelivered,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}

func assignmentAndDriver(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	assignmentID, err := pathUUID(chi.URLParam(r, "assignmentId"), "assignment id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	driverID, err := subjectID(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return assignmentID, driverID, nil
}
