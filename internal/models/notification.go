package models

import "time"

// NotificationType classifies why an alert was raised.
type NotificationType string

const (
	NotificationCriticalScore NotificationType = "critical_score"
	NotificationScoreDrop     NotificationType = "score_drop"
	NotificationNonResponse   NotificationType = "non_response"
	NotificationWeeklySummary NotificationType = "weekly_summary"
)

// Notification is addressed to exactly one staff member. Dispatch to N
// assignees creates N rows, each with independent read tracking. The student
// reference is weak: nulled if the student record is ever removed.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	StudentID *string          `db:"student_id" json:"student_id,omitempty"`
	Type      NotificationType `db:"type" json:"type"`
	Title     string           `db:"title" json:"title"`
	Message   string           `db:"message" json:"message"`
	Read      bool             `db:"read" json:"read"`
	ReadAt    *time.Time       `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// NotificationDetail joins the addressed notification with the student name
// for dashboard rendering.
type NotificationDetail struct {
	Notification
	StudentName *string `db:"student_name" json:"student_name,omitempty"`
}

// NotificationFilter selects notifications for listing.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Type       *NotificationType
	Page       int
	PageSize   int
}

// AlertSummary aggregates unread notifications by type for one staff member.
type AlertSummary struct {
	Total         int `json:"total"`
	CriticalScore int `json:"critical_score"`
	ScoreDrop     int `json:"score_drop"`
	NonResponse   int `json:"non_response"`
	WeeklySummary int `json:"weekly_summary"`
}
