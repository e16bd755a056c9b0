package admission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/certlane/certlane-exam/internal/db"
	"github.com/certlane/certlane-exam/internal/errs"
	"github.com/certlane/certlane-exam/internal/exam"
	"github.com/certlane/certlane-exam/internal/question"
)

var testDBSeq atomic.Int64

type fixedSettings struct {
	total, duration int
	passMark        float64
}

func (s fixedSettings) TotalQuestions(context.Context) int      { return s.total }
func (s fixedSettings) DurationMinutes(context.Context) int     { return s.duration }
func (s fixedSettings) PassMarkPercent(context.Context) float64 { return s.passMark }

type harness struct {
	db       *sql.DB
	svc      *Service
	attempts *exam.SQLStore
	bank     map[string]string // question id -> correct option
}

func newHarness(t *testing.T, policy Policy) *harness {
	t.Helper()
	dsn := fmt.Sprintf("file:admtest%d?mode=memory&cache=shared", testDBSeq.Add(1))
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })

	questions := question.NewSQLStore(dbh)
	bank := map[string]string{}
	seed := []question.Question{
		{ID: "q-easy-1", Difficulty: question.Easy, CorrectOption: "A"},
		{ID: "q-mod-1", Difficulty: question.Moderate, CorrectOption: "B"},
		{ID: "q-mod-2", Difficulty: question.Moderate, CorrectOption: "C"},
		{ID: "q-mod-3", Difficulty: question.Moderate, CorrectOption: "D"},
	}
	for _, q := range seed {
		q.Text = "text"
		q.OptionA, q.OptionB, q.OptionC, q.OptionD = "a", "b", "c", "d"
		q.Active = true
		if err := questions.Put(context.Background(), q); err != nil {
			t.Fatal(err)
		}
		bank[q.ID] = q.CorrectOption
	}

	attempts := exam.NewSQLStore(dbh, exam.NewSelectorWithSeed(questions, 7))
	svc := NewService(NewSQLStore(dbh), attempts, policy,
		fixedSettings{total: 4, duration: 30, passMark: 50})
	attempts.SetCompletionHook(svc.ResultCallback)
	return &harness{db: dbh, svc: svc, attempts: attempts, bank: bank}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func completeIntake() Intake {
	return Intake{
		FullName:            strPtr("Asha Verma"),
		FatherName:          strPtr("R Verma"),
		DateOfBirth:         strPtr("1998-04-12"),
		AddressLine:         strPtr("12 Lake Road"),
		District:            strPtr("Pune"),
		CentrePreference:    strPtr("Pune Central"),
		DeclarationAccepted: boolPtr(true),
	}
}

func (h *harness) auditCount(t *testing.T, appID string) int {
	t.Helper()
	var n int
	if err := h.db.QueryRow(
		`SELECT COUNT(*) FROM application_audit_log WHERE application_id=$1`, appID).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestSubmitRejectsIncompleteDraft(t *testing.T) {
	h := newHarness(t, ManualReviewPolicy{})
	ctx := context.Background()

	app, err := h.svc.CreateDraft(ctx, "cand-1", Intake{FullName: strPtr("Asha")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.Submit(ctx, app.ID, "cand-1"); !errs.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	got, _ := h.svc.Get(ctx, app.ID, "cand-1", false)
	if got.Status != StatusDraft {
		t.Fatalf("failed submit must not change state, got %s", got.Status)
	}
	if n := h.auditCount(t, app.ID); n != 0 {
		t.Fatalf("failed submit must not audit, got %d entries", n)
	}
}

func TestSubmitAndManualAdmit(t *testing.T) {
	h := newHarness(t, ManualReviewPolicy{})
	ctx := context.Background()

	app, err := h.svc.CreateDraft(ctx, "cand-1", completeIntake())
	if err != nil {
		t.Fatal(err)
	}
	app, err = h.svc.Submit(ctx, app.ID, "cand-1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if app.Status != StatusSubmitted {
		t.Fatalf("manual policy should leave submitted, got %s", app.Status)
	}
	if n := h.auditCount(t, app.ID); n != 1 {
		t.Fatalf("expected 1 audit entry after submit, got %d", n)
	}

	app, err = h.svc.Admit(ctx, app.ID, "registrar-1")
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if app.Status != StatusAdmitCardIssued {
		t.Fatalf("expected admit_card_issued, got %s", app.Status)
	}
	if app.RollNumber == nil || *app.RollNumber != 1 {
		t.Fatalf("expected roll 1, got %v", app.RollNumber)
	}
	if app.SeatNumber != "PUN-0001" {
		t.Fatalf("unexpected seat number %q", app.SeatNumber)
	}
	if n := h.auditCount(t, app.ID); n != 2 {
		t.Fatalf("expected 2 audit entries, got %d", n)
	}

	// Re-admitting is a conflict and leaves no extra audit row.
	if _, err := h.svc.Admit(ctx, app.ID, "registrar-1"); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if n := h.auditCount(t, app.ID); n != 2 {
		t.Fatalf("conflicting admit must not audit, got %d entries", n)
	}
}

func TestAdmitFromWrongState(t *testing.T) {
	h := newHarness(t, ManualReviewPolicy{})
	ctx := context.Background()

	app, _ := h.svc.CreateDraft(ctx, "cand-1", completeIntake())
	if _, err := h.svc.Admit(ctx, app.ID, "registrar-1"); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected conflict admitting a draft, got %v", err)
	}
	if n := h.auditCount(t, app.ID); n != 0 {
		t.Fatalf("rejected admit must not audit, got %d entries", n)
	}
}

func TestRollNumbersMonotonic(t *testing.T) {
	h := newHarness(t, ManualReviewPolicy{})
	ctx := context.Background()

	var rolls []int64
	for i := 0; i < 3; i++ {
		app, _ := h.svc.CreateDraft(ctx, fmt.Sprintf("cand-%d", i), completeIntake())
		if _, err := h.svc.Submit(ctx, app.ID, fmt.Sprintf("cand-%d", i)); err != nil {
			t.Fatal(err)
		}
		admitted, err := h.svc.Admit(ctx, app.ID, "registrar-1")
		if err != nil {
			t.Fatal(err)
		}
		rolls = append(rolls, *admitted.RollNumber)
	}
	for i, r := range rolls {
		if r != int64(i+1) {
			t.Fatalf("expected rolls 1,2,3 got %v", rolls)
		}
	}
}

func TestAutoAdmitPolicy(t *testing.T) {
	h := newHarness(t, AutoAdmitPolicy{})
	ctx := context.Background()

	app, _ := h.svc.CreateDraft(ctx, "cand-1", completeIntake())
	app, err := h.svc.Submit(ctx, app.ID, "cand-1")
	if err != nil {
		t.Fatal(err)
	}
	if app.Status != StatusAdmitCardIssued {
		t.Fatalf("auto policy should admit on submit, got %s", app.Status)
	}
	if app.RollNumber == nil {
		t.Fatal("auto admit must still issue a roll number")
	}
	if n := h.auditCount(t, app.ID); n != 2 {
		t.Fatalf("expected submit+admit audit entries, got %d", n)
	}
}

func TestStartExamResumes(t *testing.T) {
	h := newHarness(t, AutoAdmitPolicy{})
	ctx := context.Background()

	app, _ := h.svc.CreateDraft(ctx, "cand-1", completeIntake())
	if _, err := h.svc.Submit(ctx, app.ID, "cand-1"); err != nil {
		t.Fatal(err)
	}

	app1, attempt1, err := h.svc.StartExam(ctx, app.ID, "cand-1")
	if err != nil {
		t.Fatalf("start exam: %v", err)
	}
	if app1.Status != StatusAppeared || app1.AttemptID != attempt1 {
		t.Fatalf("expected appeared with bound attempt, got %+v", app1)
	}

	// Second start request resumes the live attempt, no new transition.
	audit := h.auditCount(t, app.ID)
	app2, attempt2, err := h.svc.StartExam(ctx, app.ID, "cand-1")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if attempt2 != attempt1 {
		t.Fatalf("resume returned a different attempt: %s vs %s", attempt2, attempt1)
	}
	if app2.Status != StatusAppeared {
		t.Fatalf("unexpected status %s", app2.Status)
	}
	if h.auditCount(t, app.ID) != audit {
		t.Fatal("resume must not append audit entries")
	}
}

func TestStartExamTwoApplicationsOneCandidate(t *testing.T) {
	h := newHarness(t, AutoAdmitPolicy{})
	ctx := context.Background()

	var apps [2]Application
	for i := range apps {
		app, _ := h.svc.CreateDraft(ctx, "cand-1", completeIntake())
		if _, err := h.svc.Submit(ctx, app.ID, "cand-1"); err != nil {
			t.Fatal(err)
		}
		apps[i] = app
	}

	_, attempt1, err := h.svc.StartExam(ctx, apps[0].ID, "cand-1")
	if err != nil {
		t.Fatalf("first start: %v", err)
	}

	// The candidate's live certification attempt belongs to the first
	// application; the second must not appear on the back of it.
	if _, _, err := h.svc.StartExam(ctx, apps[1].ID, "cand-1"); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	second, _ := h.svc.Get(ctx, apps[1].ID, "cand-1", false)
	if second.Status != StatusAdmitCardIssued || second.AttemptID != "" {
		t.Fatalf("second application must stay untouched, got %+v", second)
	}

	// Once the first exam finishes, the second application gets its own
	// attempt and only the first advances to a result.
	view, err := h.attempts.Load(ctx, attempt1, "cand-1")
	if err != nil {
		t.Fatal(err)
	}
	for _, it := range view.Items {
		ans := h.bank[it.QuestionID]
		if err := h.attempts.SaveAnswer(ctx, it.ResponseID, "cand-1", &ans); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := h.attempts.Complete(ctx, attempt1, "cand-1"); err != nil {
		t.Fatal(err)
	}
	first, _ := h.svc.Get(ctx, apps[0].ID, "cand-1", false)
	if first.Status != StatusPassed {
		t.Fatalf("expected first application passed, got %s", first.Status)
	}

	_, attempt2, err := h.svc.StartExam(ctx, apps[1].ID, "cand-1")
	if err != nil {
		t.Fatalf("second start after first completed: %v", err)
	}
	if attempt2 == attempt1 {
		t.Fatalf("second application reused attempt %s", attempt1)
	}
	second, _ = h.svc.Get(ctx, apps[1].ID, "cand-1", false)
	if second.Status != StatusAppeared || second.AttemptID != attempt2 {
		t.Fatalf("expected appeared with own attempt, got %+v", second)
	}
}

func TestStartExamRequiresAdmitCard(t *testing.T) {
	h := newHarness(t, ManualReviewPolicy{})
	ctx := context.Background()

	app, _ := h.svc.CreateDraft(ctx, "cand-1", completeIntake())
	if _, _, err := h.svc.StartExam(ctx, app.ID, "cand-1"); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected conflict starting from draft, got %v", err)
	}
	if _, _, err := h.svc.StartExam(ctx, app.ID, "other"); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("expected forbidden for non-owner, got %v", err)
	}
}

func TestResultCallbackPassAndFail(t *testing.T) {
	tests := []struct {
		name        string
		answerRight bool
		want        Status
	}{
		{name: "all correct passes", answerRight: true, want: StatusPassed},
		{name: "all wrong fails", answerRight: false, want: StatusFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, AutoAdmitPolicy{})
			ctx := context.Background()

			app, _ := h.svc.CreateDraft(ctx, "cand-1", completeIntake())
			if _, err := h.svc.Submit(ctx, app.ID, "cand-1"); err != nil {
				t.Fatal(err)
			}
			_, attemptID, err := h.svc.StartExam(ctx, app.ID, "cand-1")
			if err != nil {
				t.Fatal(err)
			}

			view, err := h.attempts.Load(ctx, attemptID, "cand-1")
			if err != nil {
				t.Fatal(err)
			}
			for _, it := range view.Items {
				ans := h.bank[it.QuestionID]
				if !tc.answerRight {
					if ans == "A" {
						ans = "B"
					} else {
						ans = "A"
					}
				}
				if err := h.attempts.SaveAnswer(ctx, it.ResponseID, "cand-1", &ans); err != nil {
					t.Fatal(err)
				}
			}

			if _, err := h.attempts.Complete(ctx, attemptID, "cand-1"); err != nil {
				t.Fatalf("complete: %v", err)
			}
			got, _ := h.svc.Get(ctx, app.ID, "cand-1", false)
			if got.Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got.Status)
			}

			// Re-submitting the attempt is a no-op for the application.
			if _, err := h.attempts.Complete(ctx, attemptID, "cand-1"); err != nil {
				t.Fatalf("second complete: %v", err)
			}
			still, _ := h.svc.Get(ctx, app.ID, "cand-1", false)
			if still.Status != tc.want {
				t.Fatalf("terminal status moved: %s", still.Status)
			}
		})
	}
}

func TestUpdateDraftOnlyWhileDraft(t *testing.T) {
	h := newHarness(t, ManualReviewPolicy{})
	ctx := context.Background()

	app, _ := h.svc.CreateDraft(ctx, "cand-1", completeIntake())
	updated, err := h.svc.UpdateDraft(ctx, app.ID, "cand-1", Intake{District: strPtr("Nagpur")})
	if err != nil {
		t.Fatal(err)
	}
	if updated.District != "Nagpur" {
		t.Fatalf("draft update lost, got %q", updated.District)
	}

	if _, err := h.svc.Submit(ctx, app.ID, "cand-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.UpdateDraft(ctx, app.ID, "cand-1", Intake{District: strPtr("X")}); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected conflict editing a submitted application, got %v", err)
	}
}

func TestStatusViewIncludesAuditAndAttempt(t *testing.T) {
	h := newHarness(t, AutoAdmitPolicy{})
	ctx := context.Background()

	app, _ := h.svc.CreateDraft(ctx, "cand-1", completeIntake())
	if _, err := h.svc.Submit(ctx, app.ID, "cand-1"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := h.svc.StartExam(ctx, app.ID, "cand-1"); err != nil {
		t.Fatal(err)
	}

	view, err := h.svc.Status(ctx, app.ID, "cand-1", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Audit) != 3 { // submit, admit, start_exam
		t.Fatalf("expected 3 audit entries, got %d", len(view.Audit))
	}
	if view.Audit[0].Action != ActionStartExam {
		t.Fatalf("audit should be newest first, got %s", view.Audit[0].Action)
	}
	if view.Attempt == nil || view.Attempt.Status != exam.StatusInProgress {
		t.Fatalf("expected linked in_progress attempt, got %+v", view.Attempt)
	}

	if _, err := h.svc.Status(ctx, app.ID, "someone-else", false); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := h.svc.Status(ctx, app.ID, "registrar-1", true); err != nil {
		t.Fatalf("admin view should be allowed: %v", err)
	}
}
