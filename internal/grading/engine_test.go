package grading

import "testing"

func strPtr(s string) *string { return &s }

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		answer   *string
		correct  string
		answered bool
		want     bool
	}{
		{name: "exact match", answer: strPtr("A"), correct: "A", answered: true, want: true},
		{name: "case insensitive", answer: strPtr("a"), correct: "A", answered: true, want: true},
		{name: "whitespace trimmed", answer: strPtr(" B "), correct: "B", answered: true, want: true},
		{name: "wrong option", answer: strPtr("B"), correct: "A", answered: true, want: false},
		{name: "nil is unanswered", answer: nil, correct: "A", answered: false, want: false},
		{name: "blank is unanswered", answer: strPtr("  "), correct: "A", answered: false, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tc.answer, tc.correct)
			if got.Answered != tc.answered {
				t.Fatalf("answered: expected %v, got %v", tc.answered, got.Answered)
			}
			if got.Correct != tc.want {
				t.Fatalf("correct: expected %v, got %v", tc.want, got.Correct)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	// Answers [A, B, nil, C] against correct [A, A, B, C]: two right, the
	// unanswered one counts wrong but is never penalized below zero.
	answers := []*string{strPtr("A"), strPtr("B"), nil, strPtr("C")}
	correct := []string{"A", "A", "B", "C"}

	evals := make([]Evaluation, len(answers))
	for i := range answers {
		evals[i] = Evaluate(answers[i], correct[i])
	}
	sum := Summarize(evals)

	if sum.Correct != 2 {
		t.Fatalf("expected 2 correct, got %d", sum.Correct)
	}
	if sum.Score != 2 {
		t.Fatalf("expected score 2, got %d", sum.Score)
	}
	if sum.Answered != 3 {
		t.Fatalf("expected 3 answered, got %d", sum.Answered)
	}
	if sum.Percentage != 50 {
		t.Fatalf("expected 50%%, got %v", sum.Percentage)
	}
	if evals[2].Correct || evals[2].Answered {
		t.Fatalf("unanswered response must be incorrect, got %+v", evals[2])
	}
}

func TestSummarizeEmpty(t *testing.T) {
	sum := Summarize(nil)
	if sum.Score != 0 || sum.Percentage != 0 {
		t.Fatalf("empty summary should be zero, got %+v", sum)
	}
}
