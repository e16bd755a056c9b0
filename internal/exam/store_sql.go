package exam

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/certlane/certlane-exam/internal/errs"
	"github.com/certlane/certlane-exam/internal/grading"
	"github.com/certlane/certlane-exam/internal/question"
)

// expiryGrace pads the client-side countdown before the server treats a
// stale in_progress attempt as abandoned at the next start request.
const expiryGrace = time.Minute

// CompletionHook is invoked after an attempt reaches completed, with the
// stored result. Used to advance a linked application; must be idempotent.
type CompletionHook func(ctx context.Context, attemptID string, res Result) error

type SQLStore struct {
	db       *sql.DB
	selector *Selector
	now      func() time.Time
	hook     CompletionHook
}

func NewSQLStore(db *sql.DB, selector *Selector) *SQLStore {
	return &SQLStore{db: db, selector: selector, now: time.Now}
}

// SetCompletionHook wires the admission score callback. Set once at startup.
func (s *SQLStore) SetCompletionHook(h CompletionHook) { s.hook = h }

func (s *SQLStore) StartOrResume(ctx context.Context, userID string, mode Mode, cfg SessionConfig) (string, bool, error) {
	if cfg.TotalQuestions <= 0 || cfg.DurationMinutes <= 0 {
		return "", false, errs.Validation("session config", "total_questions", "duration_minutes")
	}

	if userID != "" {
		id, resumed, err := s.resumeActive(ctx, userID, mode)
		if err != nil {
			return "", false, err
		}
		if resumed {
			return id, true, nil
		}
	}

	id, err := s.createAttempt(ctx, userID, mode, cfg)
	if err == nil {
		return id, false, nil
	}
	if !isUniqueViolation(err) {
		return "", false, err
	}
	// Lost a start race: another request created the active attempt between
	// our check and insert. The partial unique index guarantees there is
	// exactly one to return.
	id, resumed, rerr := s.resumeActive(ctx, userID, mode)
	if rerr != nil {
		return "", false, rerr
	}
	if !resumed {
		return "", false, fmt.Errorf("start attempt: %w", errs.ErrTransient)
	}
	return id, true, nil
}

// resumeActive finds the user's in_progress attempt for the mode. An attempt
// whose deadline (plus grace) has passed is finalized first so a fresh start
// is not blocked forever by a client that never submitted.
func (s *SQLStore) resumeActive(ctx context.Context, userID string, mode Mode) (string, bool, error) {
	var (
		id        string
		startedAt int64
		duration  int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, duration_minutes FROM attempts
		  WHERE user_id=$1 AND mode=$2 AND status='in_progress'`,
		userID, string(mode)).Scan(&id, &startedAt, &duration)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	deadline := time.Unix(startedAt, 0).Add(time.Duration(duration)*time.Minute + expiryGrace)
	if s.now().After(deadline) {
		if _, err := s.Complete(ctx, id, userID); err != nil {
			return "", false, fmt.Errorf("expire stale attempt %s: %w", id, err)
		}
		return "", false, nil
	}
	return id, true, nil
}

func (s *SQLStore) createAttempt(ctx context.Context, userID string, mode Mode, cfg SessionConfig) (string, error) {
	questions, err := s.selector.Select(ctx, cfg.TotalQuestions)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	id := uuid.NewString()
	owner := sql.NullString{String: userID, Valid: userID != ""}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO attempts (id, user_id, status, mode, total_questions, duration_minutes, started_at)
		 VALUES ($1,$2,'in_progress',$3,$4,$5,$6)`,
		id, owner, string(mode), cfg.TotalQuestions, cfg.DurationMinutes, s.now().Unix())
	if err != nil {
		return "", err
	}
	if err := insertResponses(ctx, tx, id, questions); err != nil {
		return "", err
	}
	return id, tx.Commit()
}

func insertResponses(ctx context.Context, tx *sql.Tx, attemptID string, questions []question.Question) error {
	for i, q := range questions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO responses (id, attempt_id, question_id, position) VALUES ($1,$2,$3,$4)`,
			uuid.NewString(), attemptID, q.ID, i); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context, attemptID, userID string) (AttemptView, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return AttemptView{}, err
	}
	if err := checkOwner(a, userID); err != nil {
		return AttemptView{}, err
	}

	items, err := s.loadItems(ctx, attemptID)
	if err != nil {
		return AttemptView{}, err
	}
	// Lazy init: an attempt created without questions (legacy rows, partial
	// failures) gets its set on first load, with the same idempotency as
	// start. A concurrent load loses on the unique position index and
	// re-reads the winner's rows.
	if len(items) == 0 && a.Status == StatusInProgress {
		if err := s.initResponses(ctx, a); err != nil && !isUniqueViolation(err) {
			return AttemptView{}, err
		}
		if items, err = s.loadItems(ctx, attemptID); err != nil {
			return AttemptView{}, err
		}
	}

	if a.Status == StatusInProgress {
		for i := range items {
			items[i].CorrectOption = ""
			items[i].IsCorrect = nil
		}
	}
	return AttemptView{Attempt: a, Items: items}, nil
}

func (s *SQLStore) initResponses(ctx context.Context, a Attempt) error {
	questions, err := s.selector.Select(ctx, a.TotalQuestions)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := insertResponses(ctx, tx, a.ID, questions); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) loadItems(ctx context.Context, attemptID string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.question_id, r.position, r.user_answer, r.is_correct,
		        q.question_text, q.option_a, q.option_b, q.option_c, q.option_d, q.correct_option
		   FROM responses r
		   JOIN questions q ON q.id = r.question_id
		  WHERE r.attempt_id=$1
		  ORDER BY r.position`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			it      Item
			answer  sql.NullString
			correct sql.NullBool
		)
		if err := rows.Scan(&it.ResponseID, &it.QuestionID, &it.Position, &answer, &correct,
			&it.Text, &it.OptionA, &it.OptionB, &it.OptionC, &it.OptionD, &it.CorrectOption); err != nil {
			return nil, err
		}
		if answer.Valid {
			v := answer.String
			it.UserAnswer = &v
		}
		if correct.Valid {
			v := correct.Bool
			it.IsCorrect = &v
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *SQLStore) SaveAnswer(ctx context.Context, responseID, userID string, answer *string) error {
	var owner sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT a.user_id FROM responses r JOIN attempts a ON a.id = r.attempt_id WHERE r.id=$1`,
		responseID).Scan(&owner)
	if err == sql.ErrNoRows {
		return errs.NotFound("response", responseID)
	}
	if err != nil {
		return err
	}
	if owner.Valid && owner.String != userID {
		return errs.Forbidden("response", responseID)
	}

	val := sql.NullString{}
	if answer != nil {
		val = sql.NullString{String: *answer, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `UPDATE responses SET user_answer=$1 WHERE id=$2`, val, responseID)
	return err
}

func (s *SQLStore) Complete(ctx context.Context, attemptID, userID string) (Result, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return Result{}, err
	}
	if err := checkOwner(a, userID); err != nil {
		return Result{}, err
	}

	res, err := s.finalize(ctx, attemptID)
	if err != nil {
		return Result{}, err
	}
	if s.hook != nil {
		if err := s.hook(ctx, attemptID, res); err != nil {
			return res, fmt.Errorf("completion hook: %w", err)
		}
	}
	return res, nil
}

// finalize claims the in_progress -> completed transition with a conditional
// update and scores inside the same transaction. The loser of a concurrent
// submit race observes zero affected rows and returns the stored result.
func (s *SQLStore) finalize(ctx context.Context, attemptID string) (Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	defer tx.Rollback()

	claim, err := tx.ExecContext(ctx,
		`UPDATE attempts SET status='completed', ended_at=$1 WHERE id=$2 AND status='in_progress'`,
		s.now().Unix(), attemptID)
	if err != nil {
		return Result{}, err
	}
	n, err := claim.RowsAffected()
	if err != nil {
		return Result{}, err
	}
	if n == 0 {
		return s.storedResult(ctx, tx, attemptID)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT r.id, r.user_answer, q.correct_option
		   FROM responses r JOIN questions q ON q.id = r.question_id
		  WHERE r.attempt_id=$1 ORDER BY r.position`, attemptID)
	if err != nil {
		return Result{}, err
	}
	type scored struct {
		id   string
		eval grading.Evaluation
	}
	var all []scored
	for rows.Next() {
		var (
			id, correct string
			answer      sql.NullString
		)
		if err := rows.Scan(&id, &answer, &correct); err != nil {
			rows.Close()
			return Result{}, err
		}
		var ans *string
		if answer.Valid {
			ans = &answer.String
		}
		all = append(all, scored{id: id, eval: grading.Evaluate(ans, correct)})
	}
	if err := rows.Close(); err != nil {
		return Result{}, err
	}

	evals := make([]grading.Evaluation, len(all))
	for i, sc := range all {
		evals[i] = sc.eval
		if _, err := tx.ExecContext(ctx,
			`UPDATE responses SET is_correct=$1 WHERE id=$2`, sc.eval.Correct, sc.id); err != nil {
			return Result{}, err
		}
	}
	sum := grading.Summarize(evals)
	if _, err := tx.ExecContext(ctx,
		`UPDATE attempts SET correct_answers=$1, score=$2 WHERE id=$3`,
		sum.Correct, sum.Score, attemptID); err != nil {
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{}, err
	}
	return Result{
		AttemptID:      attemptID,
		CorrectAnswers: sum.Correct,
		Score:          sum.Score,
		Percentage:     sum.Percentage,
	}, nil
}

func (s *SQLStore) storedResult(ctx context.Context, tx *sql.Tx, attemptID string) (Result, error) {
	var (
		correct, score sql.NullInt64
		total          int
	)
	err := tx.QueryRowContext(ctx,
		`SELECT correct_answers, score, total_questions FROM attempts WHERE id=$1`,
		attemptID).Scan(&correct, &score, &total)
	if err == sql.ErrNoRows {
		return Result{}, errs.NotFound("attempt", attemptID)
	}
	if err != nil {
		return Result{}, err
	}
	if !correct.Valid || !score.Valid {
		return Result{}, fmt.Errorf("attempt %s completed without a stored score: %w", attemptID, errs.ErrTransient)
	}
	res := Result{
		AttemptID:      attemptID,
		CorrectAnswers: int(correct.Int64),
		Score:          int(score.Int64),
	}
	if total > 0 {
		res.Percentage = float64(res.CorrectAnswers) * 100 / float64(total)
	}
	return res, nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, attemptID string) (Attempt, error) {
	var (
		a       Attempt
		owner   sql.NullString
		ended   sql.NullInt64
		correct sql.NullInt64
		score   sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, status, mode, total_questions, duration_minutes, started_at, ended_at, correct_answers, score
		   FROM attempts WHERE id=$1`, attemptID).
		Scan(&a.ID, &owner, &a.Status, &a.Mode, &a.TotalQuestions, &a.DurationMinutes,
			&a.StartedAt, &ended, &correct, &score)
	if err == sql.ErrNoRows {
		return Attempt{}, errs.NotFound("attempt", attemptID)
	}
	if err != nil {
		return Attempt{}, err
	}
	a.UserID = owner.String
	if ended.Valid {
		v := ended.Int64
		a.EndedAt = &v
	}
	if correct.Valid {
		v := int(correct.Int64)
		a.CorrectAnswers = &v
	}
	if score.Valid {
		v := int(score.Int64)
		a.Score = &v
	}
	return a, nil
}

func checkOwner(a Attempt, userID string) error {
	if a.UserID != "" && a.UserID != userID {
		return errs.Forbidden("attempt", a.ID)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value") // postgres
}
