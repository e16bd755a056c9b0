package exam

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

type Mode string

const (
	ModePractice      Mode = "practice"
	ModeCertification Mode = "certification"
)

// Attempt is one timed examination instance. It is never deleted; the only
// transition is in_progress -> completed, which is terminal.
type Attempt struct {
	ID              string `json:"id"`
	UserID          string `json:"user_id,omitempty"` // empty for anonymous practice
	Status          Status `json:"status"`
	Mode            Mode   `json:"mode"`
	TotalQuestions  int    `json:"total_questions"`
	DurationMinutes int    `json:"duration_minutes"`
	StartedAt       int64  `json:"started_at"`
	EndedAt         *int64 `json:"ended_at,omitempty"`
	CorrectAnswers  *int   `json:"correct_answers,omitempty"`
	Score           *int   `json:"score,omitempty"`
}

// Response binds one question to an attempt. Position is the presentation
// order and is preserved across resumes.
type Response struct {
	ID         string  `json:"id"`
	AttemptID  string  `json:"attempt_id"`
	QuestionID string  `json:"question_id"`
	Position   int     `json:"position"`
	UserAnswer *string `json:"user_answer,omitempty"`
	IsCorrect  *bool   `json:"is_correct,omitempty"`
}

// Item is a response joined with its question, shaped for the client.
// CorrectOption and IsCorrect are only populated on completed attempts.
type Item struct {
	ResponseID    string  `json:"response_id"`
	QuestionID    string  `json:"question_id"`
	Position      int     `json:"position"`
	Text          string  `json:"text"`
	OptionA       string  `json:"option_a"`
	OptionB       string  `json:"option_b"`
	OptionC       string  `json:"option_c"`
	OptionD       string  `json:"option_d"`
	UserAnswer    *string `json:"user_answer,omitempty"`
	CorrectOption string  `json:"correct_option,omitempty"`
	IsCorrect     *bool   `json:"is_correct,omitempty"`
}

// AttemptView is what Load returns: the attempt plus its ordered items.
type AttemptView struct {
	Attempt Attempt `json:"attempt"`
	Items   []Item  `json:"items"`
}

// Result is the outcome of Complete. Repeat calls return the stored result.
type Result struct {
	AttemptID      string  `json:"attempt_id"`
	CorrectAnswers int     `json:"correct_answers"`
	Score          int     `json:"score"`
	Percentage     float64 `json:"percentage"`
}

// SessionConfig fixes the shape of a new attempt at start time.
type SessionConfig struct {
	TotalQuestions  int
	DurationMinutes int
}
