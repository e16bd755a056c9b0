package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/certlane/certlane-exam/internal/auth/middleware"
	"github.com/certlane/certlane-exam/internal/config"
	"github.com/certlane/certlane-exam/internal/errs"
	"github.com/certlane/certlane-exam/internal/exam"
)

// POST /attempts {"mode":"practice"}
// Start-or-resume: a retried start after a network failure returns the same
// attempt id instead of burning a second session.
func StartAttemptHandler(store exam.Store, settings *config.Settings) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Mode string `json:"mode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		mode := exam.Mode(req.Mode)
		if mode == "" {
			mode = exam.ModePractice
		}
		if mode != exam.ModePractice && mode != exam.ModeCertification {
			writeErr(w, errs.Validation("unknown mode", "mode"))
			return
		}
		// Certification attempts are gated behind an application; only the
		// admission service may start them.
		if mode == exam.ModeCertification {
			writeErr(w, errs.Conflict("certification attempts start through an application"))
			return
		}

		cfg := exam.SessionConfig{
			TotalQuestions:  settings.TotalQuestions(r.Context()),
			DurationMinutes: settings.DurationMinutes(r.Context()),
		}
		id, resumed, err := store.StartOrResume(r.Context(), authmw.SubjectFromContext(r.Context()), mode, cfg)
		if err != nil {
			writeErr(w, err)
			return
		}
		status := http.StatusCreated
		if resumed {
			status = http.StatusOK
		}
		writeJSON(w, status, map[string]any{"attempt_id": id, "resumed": resumed})
	}
}

// GET /attempts/{attemptID}
// In-progress attempts come back without correctness data; completed ones
// include the full review.
func LoadAttemptHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := store.Load(r.Context(), chi.URLParam(r, "attemptID"), authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// PUT /responses/{responseID} {"answer":"B"} — null clears the answer.
func SaveAnswerHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Answer *string `json:"answer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		err := store.SaveAnswer(r.Context(), chi.URLParam(r, "responseID"),
			authmw.SubjectFromContext(r.Context()), req.Answer)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
	}
}

// POST /attempts/{attemptID}/submit — idempotent; a second call returns the
// stored result.
func SubmitAttemptHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := store.Complete(r.Context(), chi.URLParam(r, "attemptID"), authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
