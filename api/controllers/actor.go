package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/orro3790/shiftbid-backend/api/middleware"
	"github.com/orro3790/shiftbid-backend/internal/audit"
	"github.com/orro3790/shiftbid-backend/pkg/enums"
	pkgerrors "github.com/orro3790/shiftbid-backend/pkg/errors"
)

// subjectID resolves the authenticated subject from the request context.
func subjectID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.SubjectIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "subject context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid subject id")
	}
	return id, nil
}

// organizationID resolves the org scope from the request context.
func organizationID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.OrgIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "organization context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "invalid organization id")
	}
	return id, nil
}

// requestActor builds the audit actor for the authenticated caller.
func requestActor(r *http.Request) (audit.Actor, error) {
	id, err := subjectID(r)
	if err != nil {
		return audit.Actor{}, err
	}
	role, err := enums.ParseActorRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return audit.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid actor role")
	}
	return audit.Actor{Role: role, ID: &id}, nil
}

// pathUUID parses a chi URL parameter as a UUID.
func pathUUID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field)
	}
	return id, nil
}
