package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/trivsel-api/internal/models"
)

// AnalyticsRepository exposes read-optimised aggregate queries for the
// analytics endpoints. All queries work on pseudonymized data only.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// StudentCounts returns total, active and active-consented student counts.
func (r *AnalyticsRepository) StudentCounts(ctx context.Context) (total, active, consented int, err error) {
	const query = `SELECT COUNT(*) AS total,
        COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0) AS active,
        COALESCE(SUM(CASE WHEN status = 'active' AND consent_status = true THEN 1 ELSE 0 END), 0) AS consented
        FROM students`
	var row struct {
		Total     int `db:"total"`
		Active    int `db:"active"`
		Consented int `db:"consented"`
	}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return 0, 0, 0, fmt.Errorf("query student counts: %w", err)
	}
	return row.Total, row.Active, row.Consented, nil
}

// SessionCounts returns the number of sessions sent and completed within the
// optional date range.
func (r *AnalyticsRepository) SessionCounts(ctx context.Context, filter models.AnalyticsExportFilter) (sent, completed int, err error) {
	var builder strings.Builder
	builder.WriteString(`SELECT COUNT(*) AS sent,
        COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0) AS completed
        FROM survey_sessions WHERE 1=1`)
	var args []interface{}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		builder.WriteString(fmt.Sprintf(" AND sent_at >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		builder.WriteString(fmt.Sprintf(" AND sent_at <= $%d", len(args)))
	}

	var row struct {
		Sent      int `db:"sent"`
		Completed int `db:"completed"`
	}
	if err := r.db.GetContext(ctx, &row, builder.String(), args...); err != nil {
		return 0, 0, fmt.Errorf("query session counts: %w", err)
	}
	return row.Sent, row.Completed, nil
}

// AverageTotalScore returns the mean of all per-session total scores within
// the optional date range. Zero when no totals exist.
func (r *AnalyticsRepository) AverageTotalScore(ctx context.Context, filter models.AnalyticsExportFilter) (float64, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT COALESCE(AVG(value), 0) FROM scores WHERE is_total = true`)
	var args []interface{}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		builder.WriteString(fmt.Sprintf(" AND created_at >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		builder.WriteString(fmt.Sprintf(" AND created_at <= $%d", len(args)))
	}

	var avg float64
	if err := r.db.GetContext(ctx, &avg, builder.String(), args...); err != nil {
		return 0, fmt.Errorf("query average total score: %w", err)
	}
	return avg, nil
}

// ColorDistribution counts total scores per traffic-light color within the
// optional date range.
func (r *AnalyticsRepository) ColorDistribution(ctx context.Context, filter models.AnalyticsExportFilter) (map[string]int, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT color, COUNT(*) AS count FROM scores WHERE is_total = true`)
	var args []interface{}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		builder.WriteString(fmt.Sprintf(" AND created_at >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		builder.WriteString(fmt.Sprintf(" AND created_at <= $%d", len(args)))
	}
	builder.WriteString(" GROUP BY color")

	type row struct {
		Color string `db:"color"`
		Count int    `db:"count"`
	}
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query color distribution: %w", err)
	}
	distribution := make(map[string]int, len(rows))
	for _, rrow := range rows {
		distribution[rrow.Color] = rrow.Count
	}
	return distribution, nil
}

// ExportRows returns pseudonymized score rows for the research export:
// internal ID and phase joined with week and score data, never name or email.
func (r *AnalyticsRepository) ExportRows(ctx context.Context, filter models.AnalyticsExportFilter) ([]models.ScoreExportRow, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT s.internal_id, s.phase, ss.week_number, ss.year,
        sc.category, sc.value, sc.color, sc.is_total, sc.created_at AS recorded_at
        FROM scores sc
        JOIN survey_sessions ss ON ss.id = sc.session_id
        JOIN students s ON s.id = ss.student_id
        WHERE 1=1`)
	var args []interface{}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		builder.WriteString(fmt.Sprintf(" AND sc.created_at >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		builder.WriteString(fmt.Sprintf(" AND sc.created_at <= $%d", len(args)))
	}
	if filter.StudentID != nil {
		args = append(args, *filter.StudentID)
		builder.WriteString(fmt.Sprintf(" AND ss.student_id = $%d", len(args)))
	}
	if filter.WeekNumber != nil {
		args = append(args, *filter.WeekNumber)
		builder.WriteString(fmt.Sprintf(" AND ss.week_number = $%d", len(args)))
	}
	if filter.Year != nil {
		args = append(args, *filter.Year)
		builder.WriteString(fmt.Sprintf(" AND ss.year = $%d", len(args)))
	}
	builder.WriteString(" ORDER BY ss.year, ss.week_number, s.internal_id, sc.is_total, sc.category")

	var rows []models.ScoreExportRow
	if err := r.db.SelectContext(ctx, &rows, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query export rows: %w", err)
	}
	return rows, nil
}
