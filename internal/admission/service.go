package admission

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/certlane/certlane-exam/internal/errs"
	"github.com/certlane/certlane-exam/internal/exam"
)

// Settings provides the exam tunables the service needs; implemented by the
// config settings cache.
type Settings interface {
	TotalQuestions(ctx context.Context) int
	DurationMinutes(ctx context.Context) int
	PassMarkPercent(ctx context.Context) float64
}

// Service drives the application lifecycle on top of the transition store.
type Service struct {
	store    *SQLStore
	exams    exam.Store
	policy   Policy
	settings Settings
	validate *validator.Validate
}

func NewService(store *SQLStore, exams exam.Store, policy Policy, settings Settings) *Service {
	return &Service{
		store:    store,
		exams:    exams,
		policy:   policy,
		settings: settings,
		validate: validator.New(),
	}
}

func (s *Service) CreateDraft(ctx context.Context, userID string, in Intake) (Application, error) {
	return s.store.CreateDraft(ctx, userID, in)
}

func (s *Service) UpdateDraft(ctx context.Context, appID, userID string, in Intake) (Application, error) {
	return s.store.UpdateDraft(ctx, appID, userID, in)
}

func (s *Service) Get(ctx context.Context, appID, userID string, admin bool) (Application, error) {
	app, err := s.store.Get(ctx, appID)
	if err != nil {
		return Application{}, err
	}
	if !admin && app.UserID != userID {
		return Application{}, errs.Forbidden("application", appID)
	}
	return app, nil
}

// Submit validates the mandatory intake fields and moves draft -> submitted,
// then hands off to the configured admission policy.
func (s *Service) Submit(ctx context.Context, appID, userID string) (Application, error) {
	app, err := s.Get(ctx, appID, userID, false)
	if err != nil {
		return Application{}, err
	}

	form := submitForm{
		FullName:            app.FullName,
		FatherName:          app.FatherName,
		DateOfBirth:         app.DateOfBirth,
		AddressLine:         app.AddressLine,
		District:            app.District,
		CentrePreference:    app.CentrePreference,
		DeclarationAccepted: app.DeclarationAccepted,
	}
	if err := s.validate.Struct(form); err != nil {
		var verr validator.ValidationErrors
		if errors.As(err, &verr) {
			fields := make([]string, 0, len(verr))
			for _, fe := range verr {
				fields = append(fields, fe.Field())
			}
			return Application{}, errs.Validation("application is incomplete", fields...)
		}
		return Application{}, err
	}

	app, err = s.store.Transition(ctx, appID, ActionSubmit, userID, nil)
	if err != nil {
		return Application{}, err
	}
	return s.policy.OnSubmitted(ctx, s, app)
}

// Admit issues the admit card: roll and seat numbers come from the monotonic
// counter inside the transition's transaction. Re-admitting is a conflict;
// the transition table rejects any source other than submitted.
func (s *Service) Admit(ctx context.Context, appID, actor string) (Application, error) {
	return s.store.Transition(ctx, appID, ActionAdmit, actor, s.store.issueRoll)
}

// StartExam starts (or resumes) the gated certification attempt. An already
// bound, still-running attempt is returned as-is; the same invariant the
// attempt store enforces per user, re-applied at the application layer.
func (s *Service) StartExam(ctx context.Context, appID, userID string) (Application, string, error) {
	app, err := s.Get(ctx, appID, userID, false)
	if err != nil {
		return Application{}, "", err
	}

	if app.AttemptID != "" {
		a, err := s.exams.GetAttempt(ctx, app.AttemptID)
		if err != nil {
			return Application{}, "", err
		}
		if a.Status == exam.StatusInProgress {
			return app, app.AttemptID, nil
		}
		return Application{}, "", errs.Conflict("application %s already sat its exam", appID)
	}

	if app.Status != StatusAdmitCardIssued {
		return Application{}, "", errs.Conflict("cannot start exam for application in status %q", app.Status)
	}

	cfg := exam.SessionConfig{
		TotalQuestions:  s.settings.TotalQuestions(ctx),
		DurationMinutes: s.settings.DurationMinutes(ctx),
	}
	attemptID, _, err := s.exams.StartOrResume(ctx, userID, exam.ModeCertification, cfg)
	if err != nil {
		return Application{}, "", err
	}

	// StartOrResume is keyed by (user, mode): with two admitted applications
	// it hands back the attempt the first one already bound. That attempt
	// belongs to the other application; this one waits until it finishes.
	if bound, ok, gerr := s.store.GetByAttempt(ctx, attemptID); gerr != nil {
		return Application{}, "", gerr
	} else if ok && bound.ID != appID {
		return Application{}, "", errs.Conflict(
			"candidate's running exam belongs to application %s", bound.ID)
	}

	app, err = s.store.Transition(ctx, appID, ActionStartExam, userID, bindAttempt(attemptID))
	if err != nil {
		// A parallel start may have won the transition with the same attempt
		// (StartOrResume is idempotent). Treat that as a resume.
		if errors.Is(err, errs.ErrConflict) {
			if cur, gerr := s.store.Get(ctx, appID); gerr == nil &&
				cur.Status == StatusAppeared && cur.AttemptID == attemptID {
				return cur, attemptID, nil
			}
		}
		return Application{}, "", err
	}
	return app, attemptID, nil
}

// ResultCallback is wired as the exam store's completion hook. Unlinked
// (practice) attempts are ignored; terminal applications make it a no-op so
// repeated submits stay idempotent.
func (s *Service) ResultCallback(ctx context.Context, attemptID string, res exam.Result) error {
	app, ok, err := s.store.GetByAttempt(ctx, attemptID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if app.Status.Terminal() {
		return nil
	}

	action := ActionFail
	if res.Percentage >= s.settings.PassMarkPercent(ctx) {
		action = ActionPass
	}
	if _, err := s.store.Transition(ctx, app.ID, action, "system", nil); err != nil {
		return fmt.Errorf("record result for application %s: %w", app.ID, err)
	}
	return nil
}

// StatusView is the candidate-facing status summary.
type StatusView struct {
	Application Application   `json:"application"`
	Audit       []AuditEntry  `json:"audit"`
	Attempt     *exam.Attempt `json:"attempt,omitempty"`
}

func (s *Service) Status(ctx context.Context, appID, userID string, admin bool) (StatusView, error) {
	app, err := s.Get(ctx, appID, userID, admin)
	if err != nil {
		return StatusView{}, err
	}
	audit, err := s.store.RecentAudit(ctx, appID, 20)
	if err != nil {
		return StatusView{}, err
	}
	view := StatusView{Application: app, Audit: audit}
	if app.AttemptID != "" {
		if a, err := s.exams.GetAttempt(ctx, app.AttemptID); err == nil {
			view.Attempt = &a
		}
	}
	return view, nil
}
