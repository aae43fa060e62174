package models

import "time"

// StudentPhase represents the program stage a student is currently in.
// Questions are filtered by phase so surveys stay relevant.
type StudentPhase string

const (
	PhaseIndslusning  StudentPhase = "indslusning"
	PhaseHovedforloeb StudentPhase = "hovedforloeb"
	PhaseUdslusning   StudentPhase = "udslusning"
)

// Valid reports whether the phase is one of the known program stages.
func (p StudentPhase) Valid() bool {
	switch p {
	case PhaseIndslusning, PhaseHovedforloeb, PhaseUdslusning:
		return true
	}
	return false
}

// StudentStatus distinguishes active participants from deactivated records.
type StudentStatus string

const (
	StudentActive   StudentStatus = "active"
	StudentInactive StudentStatus = "inactive"
)

// Student represents a program participant. Records are soft-deactivated,
// never hard-deleted, so historic scores stay attributable.
type Student struct {
	ID            string        `db:"id" json:"id"`
	InternalID    string        `db:"internal_id" json:"internal_id"`
	Name          string        `db:"name" json:"name"`
	Email         string        `db:"email" json:"email"`
	Phase         StudentPhase  `db:"phase" json:"phase"`
	Status        StudentStatus `db:"status" json:"status"`
	ConsentStatus bool          `db:"consent_status" json:"consent_status"`
	ConsentDate   *time.Time    `db:"consent_date" json:"consent_date,omitempty"`
	ConsentToken  string        `db:"consent_token" json:"-"`
	StartDate     *time.Time    `db:"start_date" json:"start_date,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
// AssignedUserID scopes the result to one staff member's students; handlers
// set it for non-admin callers.
type StudentFilter struct {
	Search         string
	Phase          *StudentPhase
	Status         *StudentStatus
	Consent        *bool
	GroupID        string
	AssignedUserID string
	Page           int
	PageSize       int
}
