package admission

import "context"

// Policy decides what happens once an application is submitted. The state
// machine core stays agnostic of which review mode is active.
type Policy interface {
	// OnSubmitted runs after a successful submit transition. It may advance
	// the application further (auto-approval) or do nothing (manual review).
	OnSubmitted(ctx context.Context, svc *Service, app Application) (Application, error)
}

// AutoAdmitPolicy issues the admit card immediately, actor "system". Used by
// practice cohorts and trusted batches.
type AutoAdmitPolicy struct{}

func (AutoAdmitPolicy) OnSubmitted(ctx context.Context, svc *Service, app Application) (Application, error) {
	return svc.Admit(ctx, app.ID, "system")
}

// ManualReviewPolicy leaves the application in submitted until a registrar
// calls Admit.
type ManualReviewPolicy struct{}

func (ManualReviewPolicy) OnSubmitted(_ context.Context, _ *Service, app Application) (Application, error) {
	return app, nil
}

// PolicyByName maps the configured policy name; unknown names fall back to
// manual review, the safe default.
func PolicyByName(name string) Policy {
	if name == "auto" {
		return AutoAdmitPolicy{}
	}
	return ManualReviewPolicy{}
}
