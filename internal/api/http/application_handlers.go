package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/certlane/certlane-exam/internal/admission"
	authmw "github.com/certlane/certlane-exam/internal/auth/middleware"
	"github.com/certlane/certlane-exam/internal/rbac"
)

// POST /applications — create a draft with whatever intake fields are sent.
func CreateApplicationHandler(svc *admission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in admission.Intake
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		app, err := svc.CreateDraft(r.Context(), authmw.SubjectFromContext(r.Context()), in)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, app)
	}
}

// PUT /applications/{applicationID} — update intake fields while in draft.
func UpdateApplicationHandler(svc *admission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in admission.Intake
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		app, err := svc.UpdateDraft(r.Context(), chi.URLParam(r, "applicationID"),
			authmw.SubjectFromContext(r.Context()), in)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, app)
	}
}

// POST /applications/{applicationID}/submit — validates the mandatory fields
// and hands the application to the admission policy.
func SubmitApplicationHandler(svc *admission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app, err := svc.Submit(r.Context(), chi.URLParam(r, "applicationID"),
			authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, app)
	}
}

// POST /applications/{applicationID}/admit — registrar issues the admit card.
func AdmitApplicationHandler(svc *admission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app, err := svc.Admit(r.Context(), chi.URLParam(r, "applicationID"),
			authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, app)
	}
}

// POST /applications/{applicationID}/attempts — start or resume the gated
// certification session.
func StartExamHandler(svc *admission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app, attemptID, err := svc.StartExam(r.Context(), chi.URLParam(r, "applicationID"),
			authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"application": app, "attempt_id": attemptID})
	}
}

// GET /applications/{applicationID} — status plus recent audit trail and the
// linked attempt summary. Registrars and admins may view any application.
func ApplicationStatusHandler(svc *admission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := rbac.RoleFromContext(r.Context())
		view, err := svc.Status(r.Context(), chi.URLParam(r, "applicationID"),
			authmw.SubjectFromContext(r.Context()), role == "registrar" || role == "admin")
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}
