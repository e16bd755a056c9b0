package admission

import "github.com/certlane/certlane-exam/internal/errs"

// Action names one transition of the application lifecycle.
type Action string

const (
	ActionSubmit    Action = "submit"
	ActionAdmit     Action = "admit"
	ActionStartExam Action = "start_exam"
	ActionPass      Action = "pass"
	ActionFail      Action = "fail"
)

// transitions is the single place transition validity lives. Every call site
// goes through Next, so audit logging and source-state checks cannot be
// skipped per handler.
var transitions = map[Action]struct{ From, To Status }{
	ActionSubmit:    {StatusDraft, StatusSubmitted},
	ActionAdmit:     {StatusSubmitted, StatusAdmitCardIssued},
	ActionStartExam: {StatusAdmitCardIssued, StatusAppeared},
	ActionPass:      {StatusAppeared, StatusPassed},
	ActionFail:      {StatusAppeared, StatusFailed},
}

// Next validates an action against the current status and yields the target
// state. Invalid source states are a client error, never retried.
func Next(from Status, action Action) (Status, error) {
	t, ok := transitions[action]
	if !ok {
		return "", errs.Conflict("unknown action %q", action)
	}
	if t.From != from {
		return "", errs.Conflict("cannot %s an application in status %q", action, from)
	}
	return t.To, nil
}
