package controllers

import (
	"net/http"

	"github.com/orro3790/shiftbid-backend/api/middleware"
	"github.com/orro3790/shiftbid-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "private", "status": "ok"}
		if subject := middleware.SubjectIDFromContext(r.Context()); subject != "" {
			payload["subject_id"] = subject
		}
		if role := middleware.RoleFromContext(r.Context()); role != "" {
			payload["role"] = role
		}
		responses.WriteSuccess(w, payload)
	}
}
