package admission

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/certlane/certlane-exam/internal/errs"
)

type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

func (s *SQLStore) CreateDraft(ctx context.Context, userID string, in Intake) (Application, error) {
	app := Application{
		ID:     uuid.NewString(),
		UserID: userID,
		Status: StatusDraft,
	}
	applyIntake(&app, in)
	ts := s.now().Unix()
	app.CreatedAt, app.UpdatedAt = ts, ts

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO applications
		   (id, user_id, status, full_name, father_name, date_of_birth, address_line, district,
		    centre_preference, declaration_accepted, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		app.ID, app.UserID, string(app.Status), app.FullName, app.FatherName, app.DateOfBirth,
		app.AddressLine, app.District, app.CentrePreference, app.DeclarationAccepted,
		app.CreatedAt, app.UpdatedAt)
	if err != nil {
		return Application{}, err
	}
	return app, nil
}

// UpdateDraft writes intake fields while the application is still a draft.
// The status predicate in the WHERE clause keeps a post-submit edit from
// racing past the state machine.
func (s *SQLStore) UpdateDraft(ctx context.Context, appID, userID string, in Intake) (Application, error) {
	app, err := s.Get(ctx, appID)
	if err != nil {
		return Application{}, err
	}
	if app.UserID != userID {
		return Application{}, errs.Forbidden("application", appID)
	}
	if app.Status != StatusDraft {
		return Application{}, errs.Conflict("application %s is %s, drafts only", appID, app.Status)
	}
	applyIntake(&app, in)

	res, err := s.db.ExecContext(ctx,
		`UPDATE applications SET
		   full_name=$1, father_name=$2, date_of_birth=$3, address_line=$4, district=$5,
		   centre_preference=$6, declaration_accepted=$7, updated_at=$8
		 WHERE id=$9 AND status='draft'`,
		app.FullName, app.FatherName, app.DateOfBirth, app.AddressLine, app.District,
		app.CentrePreference, app.DeclarationAccepted, s.now().Unix(), appID)
	if err != nil {
		return Application{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Application{}, errs.Conflict("application %s left draft concurrently", appID)
	}
	return s.Get(ctx, appID)
}

func applyIntake(app *Application, in Intake) {
	if in.FullName != nil {
		app.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.FatherName != nil {
		app.FatherName = strings.TrimSpace(*in.FatherName)
	}
	if in.DateOfBirth != nil {
		app.DateOfBirth = strings.TrimSpace(*in.DateOfBirth)
	}
	if in.AddressLine != nil {
		app.AddressLine = strings.TrimSpace(*in.AddressLine)
	}
	if in.District != nil {
		app.District = strings.TrimSpace(*in.District)
	}
	if in.CentrePreference != nil {
		app.CentrePreference = strings.TrimSpace(*in.CentrePreference)
	}
	if in.DeclarationAccepted != nil {
		app.DeclarationAccepted = *in.DeclarationAccepted
	}
}

func (s *SQLStore) Get(ctx context.Context, appID string) (Application, error) {
	var (
		app     Application
		roll    sql.NullInt64
		seat    sql.NullString
		attempt sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, status, full_name, father_name, date_of_birth, address_line, district,
		        centre_preference, declaration_accepted, roll_number, seat_number, attempt_id,
		        created_at, updated_at
		   FROM applications WHERE id=$1`, appID).
		Scan(&app.ID, &app.UserID, &app.Status, &app.FullName, &app.FatherName, &app.DateOfBirth,
			&app.AddressLine, &app.District, &app.CentrePreference, &app.DeclarationAccepted,
			&roll, &seat, &attempt, &app.CreatedAt, &app.UpdatedAt)
	if err == sql.ErrNoRows {
		return Application{}, errs.NotFound("application", appID)
	}
	if err != nil {
		return Application{}, err
	}
	if roll.Valid {
		v := roll.Int64
		app.RollNumber = &v
	}
	app.SeatNumber = seat.String
	app.AttemptID = attempt.String
	return app, nil
}

// GetByAttempt resolves the application linked to an attempt, if any.
func (s *SQLStore) GetByAttempt(ctx context.Context, attemptID string) (Application, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM applications WHERE attempt_id=$1`, attemptID).Scan(&id)
	if err == sql.ErrNoRows {
		return Application{}, false, nil
	}
	if err != nil {
		return Application{}, false, err
	}
	app, err := s.Get(ctx, id)
	return app, err == nil, err
}

// extraWrite lets a transition carry additional row mutations (roll issue,
// attempt binding) in the same transaction as the status flip and audit row.
type extraWrite func(ctx context.Context, tx *sql.Tx, app *Application) error

// Transition applies action to the application: conditional status update,
// optional extra writes, one audit row — all or nothing. A zero-row update
// means another request changed the status first; that is a conflict, and no
// audit entry is produced.
func (s *SQLStore) Transition(ctx context.Context, appID string, action Action, actor string, extra extraWrite) (Application, error) {
	app, err := s.Get(ctx, appID)
	if err != nil {
		return Application{}, err
	}
	to, err := Next(app.Status, action)
	if err != nil {
		return Application{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Application{}, err
	}
	defer tx.Rollback()

	now := s.now().Unix()
	res, err := tx.ExecContext(ctx,
		`UPDATE applications SET status=$1, updated_at=$2 WHERE id=$3 AND status=$4`,
		string(to), now, appID, string(app.Status))
	if err != nil {
		return Application{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Application{}, errs.Conflict("application %s changed status concurrently", appID)
	}

	prev := app.Status
	app.Status = to
	app.UpdatedAt = now
	if extra != nil {
		if err := extra(ctx, tx, &app); err != nil {
			return Application{}, err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO application_audit_log (application_id, previous_status, new_status, action, actor, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		appID, string(prev), string(to), string(action), actor, now); err != nil {
		return Application{}, err
	}

	if err := tx.Commit(); err != nil {
		return Application{}, err
	}
	return app, nil
}

// issueRoll bumps the monotonic counter and stamps roll and seat numbers on
// the application row. Runs inside the admit transaction; the counter update
// is what makes duplicate rolls structurally impossible.
func (s *SQLStore) issueRoll(ctx context.Context, tx *sql.Tx, app *Application) error {
	var roll int64
	if err := tx.QueryRowContext(ctx,
		`UPDATE roll_sequence SET last_roll = last_roll + 1 WHERE id=1 RETURNING last_roll`).
		Scan(&roll); err != nil {
		return fmt.Errorf("issue roll number: %w", err)
	}
	seat := seatNumber(app.CentrePreference, roll)
	if _, err := tx.ExecContext(ctx,
		`UPDATE applications SET roll_number=$1, seat_number=$2 WHERE id=$3`,
		roll, seat, app.ID); err != nil {
		return err
	}
	app.RollNumber = &roll
	app.SeatNumber = seat
	return nil
}

func seatNumber(centre string, roll int64) string {
	prefix := "GEN"
	c := strings.ToUpper(strings.TrimSpace(centre))
	if len(c) >= 3 {
		prefix = c[:3]
	} else if c != "" {
		prefix = c
	}
	return fmt.Sprintf("%s-%04d", prefix, roll)
}

// bindAttempt links the attempt inside the start_exam transition. An attempt
// binds to at most one application; the unique constraint on attempt_id turns
// a double bind into a conflict.
func bindAttempt(attemptID string) extraWrite {
	return func(ctx context.Context, tx *sql.Tx, app *Application) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE applications SET attempt_id=$1 WHERE id=$2`, attemptID, app.ID); err != nil {
			if isUniqueViolation(err) {
				return errs.Conflict("attempt %s is bound to another application", attemptID)
			}
			return err
		}
		app.AttemptID = attemptID
		return nil
	}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value") // postgres
}

// RecentAudit returns the newest entries first.
func (s *SQLStore) RecentAudit(ctx context.Context, appID string, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, application_id, previous_status, new_status, action, actor, created_at
		   FROM application_audit_log WHERE application_id=$1
		  ORDER BY id DESC LIMIT $2`, appID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.ApplicationID, &e.PreviousStatus, &e.NewStatus,
			&e.Action, &e.Actor, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
