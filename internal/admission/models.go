package admission

type Status string

const (
	StatusDraft           Status = "draft"
	StatusSubmitted       Status = "submitted"
	StatusAdmitCardIssued Status = "admit_card_issued"
	StatusAppeared        Status = "appeared"
	StatusPassed          Status = "passed" // terminal
	StatusFailed          Status = "failed" // terminal
)

func (s Status) Terminal() bool { return s == StatusPassed || s == StatusFailed }

// Application is the eligibility record gating a certification exam. It links
// to at most one attempt.
type Application struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Status Status `json:"status"`

	FullName            string `json:"full_name"`
	FatherName          string `json:"father_name"`
	DateOfBirth         string `json:"date_of_birth"`
	AddressLine         string `json:"address_line"`
	District            string `json:"district"`
	CentrePreference    string `json:"centre_preference"`
	DeclarationAccepted bool   `json:"declaration_accepted"`

	RollNumber *int64 `json:"roll_number,omitempty"`
	SeatNumber string `json:"seat_number,omitempty"`
	AttemptID  string `json:"attempt_id,omitempty"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// AuditEntry records one state transition. Entries are append-only and never
// mutated or deleted.
type AuditEntry struct {
	ID             int64  `json:"id"`
	ApplicationID  string `json:"application_id"`
	PreviousStatus Status `json:"previous_status"`
	NewStatus      Status `json:"new_status"`
	Action         Action `json:"action"`
	Actor          string `json:"actor"`
	CreatedAt      int64  `json:"created_at"`
}

// Intake carries the draft fields a candidate fills in before submitting.
// Pointer fields distinguish "not sent" from "cleared" on draft updates.
type Intake struct {
	FullName            *string `json:"full_name,omitempty"`
	FatherName          *string `json:"father_name,omitempty"`
	DateOfBirth         *string `json:"date_of_birth,omitempty"`
	AddressLine         *string `json:"address_line,omitempty"`
	District            *string `json:"district,omitempty"`
	CentrePreference    *string `json:"centre_preference,omitempty"`
	DeclarationAccepted *bool   `json:"declaration_accepted,omitempty"`
}

// submitForm is what validation runs against on submit. The tag set is the
// fixed list of mandatory intake fields.
type submitForm struct {
	FullName            string `validate:"required"`
	FatherName          string `validate:"required"`
	DateOfBirth         string `validate:"required,datetime=2006-01-02"`
	AddressLine         string `validate:"required"`
	District            string `validate:"required"`
	CentrePreference    string `validate:"required"`
	DeclarationAccepted bool   `validate:"required,eq=true"`
}
