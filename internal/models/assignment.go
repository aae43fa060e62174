package models

import "time"

// AssignmentRole distinguishes the primary mentor from supporting team members.
type AssignmentRole string

const (
	AssignmentPrimaryMentor AssignmentRole = "primary_mentor"
	AssignmentTeamMember    AssignmentRole = "team_member"
)

// Valid reports whether the role is a known assignment role.
func (r AssignmentRole) Valid() bool {
	return r == AssignmentPrimaryMentor || r == AssignmentTeamMember
}

// StudentAssignment links a student to a staff member who receives alerts
// about them. Unique per (student, user) pair.
type StudentAssignment struct {
	ID        string         `db:"id" json:"id"`
	StudentID string         `db:"student_id" json:"student_id"`
	UserID    string         `db:"user_id" json:"user_id"`
	Role      AssignmentRole `db:"role" json:"role"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// AssignmentDetail joins the assignment with display names for staff views.
type AssignmentDetail struct {
	StudentAssignment
	StudentName string `db:"student_name" json:"student_name"`
	UserName    string `db:"user_name" json:"user_name"`
	UserEmail   string `db:"user_email" json:"user_email"`
}
