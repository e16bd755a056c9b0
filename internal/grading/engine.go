// Package grading evaluates a finished attempt's responses. Correctness is an
// exact match on the option letter; an unanswered response is incorrect but
// never penalized below zero (no negative marking).
package grading

import "strings"

// Evaluation is the outcome for a single response.
type Evaluation struct {
	Answered bool
	Correct  bool
}

// Evaluate compares a stored answer against the question's correct option.
// A nil or blank answer counts as unanswered and therefore incorrect.
func Evaluate(answer *string, correctOption string) Evaluation {
	if answer == nil {
		return Evaluation{}
	}
	got := strings.TrimSpace(*answer)
	if got == "" {
		return Evaluation{}
	}
	return Evaluation{
		Answered: true,
		Correct:  strings.EqualFold(got, strings.TrimSpace(correctOption)),
	}
}

// Summary aggregates an attempt's evaluations. Score equals the correct
// count; there is no per-question weighting.
type Summary struct {
	Total      int     `json:"total"`
	Answered   int     `json:"answered"`
	Correct    int     `json:"correct"`
	Score      int     `json:"score"`
	Percentage float64 `json:"percentage"`
}

func Summarize(evals []Evaluation) Summary {
	s := Summary{Total: len(evals)}
	for _, e := range evals {
		if e.Answered {
			s.Answered++
		}
		if e.Correct {
			s.Correct++
		}
	}
	s.Score = s.Correct
	if s.Total > 0 {
		s.Percentage = float64(s.Correct) * 100 / float64(s.Total)
	}
	return s
}
