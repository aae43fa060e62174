package models

import "time"

// AnalyticsSummary aggregates program-wide wellbeing statistics.
type AnalyticsSummary struct {
	TotalStudents     int            `json:"total_students"`
	ActiveStudents    int            `json:"active_students"`
	ConsentedStudents int            `json:"consented_students"`
	SessionsSent      int            `json:"sessions_sent"`
	SessionsCompleted int            `json:"sessions_completed"`
	ResponseRate      float64        `json:"response_rate"`
	AverageScore      float64        `json:"average_score"`
	ColorCounts       map[string]int `json:"color_counts"`
	GeneratedAt       time.Time      `json:"generated_at"`
}

// AnalyticsExportFilter scopes the pseudonymized score export. StudentID,
// WeekNumber and Year narrow the export for report generation.
type AnalyticsExportFilter struct {
	DateFrom   *time.Time
	DateTo     *time.Time
	StudentID  *string
	WeekNumber *int
	Year       *int
}

// ScoreExportRow is one pseudonymized row of the analytics export. It carries
// the internal ID only, never name or email.
type ScoreExportRow struct {
	InternalID string     `db:"internal_id" json:"internal_id"`
	Phase      string     `db:"phase" json:"phase"`
	WeekNumber int        `db:"week_number" json:"week_number"`
	Year       int        `db:"year" json:"year"`
	Category   *string    `db:"category" json:"category,omitempty"`
	Value      float64    `db:"value" json:"value"`
	Color      string     `db:"color" json:"color"`
	IsTotal    bool       `db:"is_total" json:"is_total"`
	RecordedAt time.Time  `db:"recorded_at" json:"recorded_at"`
}

// SystemStats is the monitoring snapshot served to admins.
type SystemStats struct {
	ActiveStudents    int `json:"active_students"`
	TotalStudents     int `json:"total_students"`
	PendingSessions   int `json:"pending_sessions"`
	CompletedThisWeek int `json:"completed_this_week"`
	CurrentWeek       int `json:"current_week"`
	CurrentYear       int `json:"current_year"`
}

// AnalyticsSystemMetrics represents system level analytics captured from instrumentation.
type AnalyticsSystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
