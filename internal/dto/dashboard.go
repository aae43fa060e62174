package dto

import "github.com/noah-isme/trivsel-api/internal/models"

// DashboardOverviewResponse is the mentor landing view: one entry per active
// consented student plus aggregate color counts.
type DashboardOverviewResponse struct {
	Students []StudentOverviewEntry `json:"students"`
	Counts   OverviewCounts         `json:"counts"`
}

// StudentOverviewEntry summarises one student's latest wellbeing state.
type StudentOverviewEntry struct {
	StudentID     string                `json:"student_id"`
	InternalID    string                `json:"internal_id"`
	Name          string                `json:"name"`
	Phase         models.StudentPhase   `json:"phase"`
	LatestScore   *float64              `json:"latest_score,omitempty"`
	LatestColor   *models.ScoreColor    `json:"latest_color,omitempty"`
	SessionStatus *models.SessionStatus `json:"session_status,omitempty"`
	WeekNumber    *int                  `json:"week_number,omitempty"`
}

// OverviewCounts aggregates students per latest color band.
type OverviewCounts struct {
	Green       int `json:"green"`
	Yellow      int `json:"yellow"`
	Red         int `json:"red"`
	NonResponse int `json:"non_response"`
}

// HighRiskEntry is one student whose latest total score is red.
type HighRiskEntry struct {
	StudentID  string  `json:"student_id"`
	InternalID string  `json:"internal_id"`
	Name       string  `json:"name"`
	Score      float64 `json:"score"`
	WeekNumber int     `json:"week_number"`
	Year       int     `json:"year"`
}
