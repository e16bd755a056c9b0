package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/certlane/certlane-exam/internal/errs"
	"github.com/certlane/certlane-exam/internal/question"
)

// POST /questions — admin bulk upsert into the question bank. The engine only
// reads the bank; this is the door the authoring collaborator comes through.
func UpsertQuestionsHandler(store *question.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var qs []question.Question
		if err := json.NewDecoder(r.Body).Decode(&qs); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		for _, q := range qs {
			if q.ID == "" || len(q.CorrectOption) != 1 ||
				!strings.Contains(question.Options, q.CorrectOption) {
				writeErr(w, errs.Validation("question needs an id and a correct option in A-D",
					"id", "correct_option"))
				return
			}
		}
		for _, q := range qs {
			if err := store.Put(r.Context(), q); err != nil {
				writeErr(w, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]int{"upserted": len(qs)})
	}
}
