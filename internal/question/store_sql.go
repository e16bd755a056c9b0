package question

import (
	"context"
	"database/sql"
	"fmt"
)

// Pool reads the active question bank. The selector treats an empty tier as a
// valid result, not an error.
type Pool interface {
	FetchByDifficulty(ctx context.Context, tier Difficulty) ([]Question, error)
}

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) FetchByDifficulty(ctx context.Context, tier Difficulty) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question_text, option_a, option_b, option_c, option_d, correct_option, difficulty
		   FROM questions WHERE difficulty=$1 AND active=TRUE`, string(tier))
	if err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		q := Question{Active: true}
		if err := rows.Scan(&q.ID, &q.Text, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD,
			&q.CorrectOption, &q.Difficulty); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// Put upserts a question. Authoring is an admin concern; the engine only reads.
func (s *SQLStore) Put(ctx context.Context, q Question) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO questions (id, question_text, option_a, option_b, option_c, option_d, correct_option, difficulty, active)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 ON CONFLICT (id) DO UPDATE SET
		   question_text=EXCLUDED.question_text,
		   option_a=EXCLUDED.option_a, option_b=EXCLUDED.option_b,
		   option_c=EXCLUDED.option_c, option_d=EXCLUDED.option_d,
		   correct_option=EXCLUDED.correct_option,
		   difficulty=EXCLUDED.difficulty, active=EXCLUDED.active`,
		q.ID, q.Text, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectOption, string(q.Difficulty), q.Active)
	return err
}
