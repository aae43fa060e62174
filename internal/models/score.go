package models

import "time"

// ScoreColor is the three-tier status derived from a numeric score.
type ScoreColor string

const (
	ColorGreen  ScoreColor = "green"
	ColorYellow ScoreColor = "yellow"
	ColorRed    ScoreColor = "red"
)

// Score is one computed value for a completed session: either a category
// score (Category set, IsTotal false) or the session total (Category empty,
// IsTotal true). Immutable once persisted.
type Score struct {
	ID        string          `db:"id" json:"id"`
	SessionID string          `db:"session_id" json:"session_id"`
	StudentID string          `db:"student_id" json:"student_id"`
	Category  *SurveyCategory `db:"category" json:"category,omitempty"`
	Value     float64         `db:"value" json:"value"`
	Color     ScoreColor      `db:"color" json:"color"`
	IsTotal   bool            `db:"is_total" json:"is_total"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// ScoreSet is the calculator output for one session: the per-category scores
// plus the total, ready for atomic persistence by the caller.
type ScoreSet struct {
	Categories []CategoryScore
	Total      float64
	TotalColor ScoreColor
}

// CategoryScore pairs one wellbeing dimension with its rounded mean.
type CategoryScore struct {
	Category SurveyCategory
	Value    float64
	Color    ScoreColor
}

// RedCategories returns the names of categories classified red, in order.
func (s ScoreSet) RedCategories() []SurveyCategory {
	var red []SurveyCategory
	for _, c := range s.Categories {
		if c.Color == ColorRed {
			red = append(red, c.Category)
		}
	}
	return red
}

// HasRed reports whether any score in the set, total included, is red.
func (s ScoreSet) HasRed() bool {
	if s.TotalColor == ColorRed {
		return true
	}
	return len(s.RedCategories()) > 0
}

// StudentLatestScore joins a student with their most recent total score and
// session state, feeding the dashboard overview.
type StudentLatestScore struct {
	StudentID     string         `db:"student_id"`
	InternalID    string         `db:"internal_id"`
	Name          string         `db:"name"`
	Phase         StudentPhase   `db:"phase"`
	Value         *float64       `db:"value"`
	Color         *ScoreColor    `db:"color"`
	SessionStatus *SessionStatus `db:"session_status"`
	WeekNumber    *int           `db:"week_number"`
	Year          *int           `db:"year"`
}

// TrendDirection labels the outcome of the longer-window trend analysis.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDeclining TrendDirection = "declining"
	TrendStable    TrendDirection = "stable"
)

// TrendAnalysis summarises a student's recent total-score trajectory.
type TrendAnalysis struct {
	Scores  []float64      `json:"scores"`
	Trend   TrendDirection `json:"trend"`
	Average float64        `json:"average"`
}
