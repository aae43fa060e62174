package models

import "time"

// InterventionStatus tracks the follow-up ladder staff work through after an
// alert.
type InterventionStatus string

const (
	InterventionContacted      InterventionStatus = "contacted"
	InterventionMeetingPlanned InterventionStatus = "meeting_planned"
	InterventionStarted        InterventionStatus = "intervention_started"
	InterventionCompleted      InterventionStatus = "completed"
)

// Valid reports whether the status is a known intervention stage.
func (s InterventionStatus) Valid() bool {
	switch s {
	case InterventionContacted, InterventionMeetingPlanned, InterventionStarted, InterventionCompleted:
		return true
	}
	return false
}

// Intervention records a staff follow-up action on a student.
type Intervention struct {
	ID        string             `db:"id" json:"id"`
	StudentID string             `db:"student_id" json:"student_id"`
	UserID    string             `db:"user_id" json:"user_id"`
	Status    InterventionStatus `db:"status" json:"status"`
	Note      string             `db:"note" json:"note"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt time.Time          `db:"updated_at" json:"updated_at"`
}
