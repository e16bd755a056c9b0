package question

// Difficulty tiers a question is filed under.
type Difficulty string

const (
	Easy     Difficulty = "easy"
	Moderate Difficulty = "moderate"
	Hard     Difficulty = "hard"
)

// Option letters accepted as a correct answer or a candidate response.
const Options = "ABCD"

type Question struct {
	ID            string     `json:"id"`
	Text          string     `json:"text"`
	OptionA       string     `json:"option_a"`
	OptionB       string     `json:"option_b"`
	OptionC       string     `json:"option_c"`
	OptionD       string     `json:"option_d"`
	CorrectOption string     `json:"correct_option,omitempty"` // stripped on candidate-facing views
	Difficulty    Difficulty `json:"difficulty"`
	Active        bool       `json:"active"`
}
