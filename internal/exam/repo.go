package exam

import "context"

// Store is the attempt lifecycle surface exposed to handlers and to the
// admission service. All cross-request invariants (one active attempt per
// user and mode, at-most-once scoring) are enforced in storage, not in
// process memory: multiple gateway instances may run in parallel.
type Store interface {
	// StartOrResume returns the user's existing in_progress attempt for the
	// mode untouched, or creates a new one with a freshly selected question
	// set. The second return reports whether an existing attempt was resumed.
	StartOrResume(ctx context.Context, userID string, mode Mode, cfg SessionConfig) (string, bool, error)

	// Load returns the attempt and its ordered items, shaped by status:
	// in_progress views carry no correctness data.
	Load(ctx context.Context, attemptID, userID string) (AttemptView, error)

	// SaveAnswer upserts one response's answer. nil clears it. Attempt status
	// is deliberately not checked; a late write racing a submit is resolved
	// by scoring reading the latest persisted value.
	SaveAnswer(ctx context.Context, responseID, userID string, answer *string) error

	// Complete scores the attempt exactly once. Repeat calls return the
	// stored result without touching response correctness again.
	Complete(ctx context.Context, attemptID, userID string) (Result, error)

	// GetAttempt reads one attempt row without its responses.
	GetAttempt(ctx context.Context, attemptID string) (Attempt, error)
}
