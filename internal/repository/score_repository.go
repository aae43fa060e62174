package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/trivsel-api/internal/models"
)

const scoreColumns = `id, session_id, student_id, category, value, color, is_total, created_at`

// ScoreRepository reads computed wellbeing scores. Score rows are written
// exclusively by SessionRepository.Complete inside the submission transaction
// and are immutable afterwards.
type ScoreRepository struct {
	db *sqlx.DB
}

// NewScoreRepository constructs a ScoreRepository.
func NewScoreRepository(db *sqlx.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

// ListBySession returns all scores for one session, total last.
func (r *ScoreRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Score, error) {
	query := fmt.Sprintf("SELECT %s FROM scores WHERE session_id = $1 ORDER BY is_total, category", scoreColumns)
	var scores []models.Score
	if err := r.db.SelectContext(ctx, &scores, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session scores: %w", err)
	}
	return scores, nil
}

// ListByStudent returns a student's score history, newest first.
func (r *ScoreRepository) ListByStudent(ctx context.Context, studentID string, limit int) ([]models.Score, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := fmt.Sprintf("SELECT %s FROM scores WHERE student_id = $1 ORDER BY created_at DESC LIMIT %d", scoreColumns, limit)
	var scores []models.Score
	if err := r.db.SelectContext(ctx, &scores, query, studentID); err != nil {
		return nil, fmt.Errorf("list student scores: %w", err)
	}
	return scores, nil
}

// ListRecentTotals returns a student's most recent total scores, newest
// first, optionally excluding one session. The exclusion lets drop detection
// find the baseline strictly prior to the session just completed.
func (r *ScoreRepository) ListRecentTotals(ctx context.Context, studentID, excludeSessionID string, limit int) ([]models.Score, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	query := fmt.Sprintf("SELECT %s FROM scores WHERE student_id = $1 AND is_total = true", scoreColumns)
	args := []interface{}{studentID}
	if excludeSessionID != "" {
		query += " AND session_id <> $2"
		args = append(args, excludeSessionID)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	var scores []models.Score
	if err := r.db.SelectContext(ctx, &scores, query, args...); err != nil {
		return nil, fmt.Errorf("list recent totals: %w", err)
	}
	return scores, nil
}

// LatestTotalOverview returns, per active consented student, the latest total
// score joined with the latest session state. Students without any session
// yet appear with null score fields.
func (r *ScoreRepository) LatestTotalOverview(ctx context.Context) ([]models.StudentLatestScore, error) {
	const query = `SELECT st.id AS student_id, st.internal_id, st.name, st.phase,
            sc.value, sc.color, ss.status AS session_status, ss.week_number, ss.year
        FROM students st
        LEFT JOIN LATERAL (
            SELECT id, status, week_number, year, created_at
            FROM survey_sessions WHERE student_id = st.id
            ORDER BY created_at DESC LIMIT 1
        ) ss ON true
        LEFT JOIN LATERAL (
            SELECT value, color
            FROM scores WHERE student_id = st.id AND is_total = true
            ORDER BY created_at DESC LIMIT 1
        ) sc ON true
        WHERE st.status = $1 AND st.consent_status = true
        ORDER BY st.name`
	var rows []models.StudentLatestScore
	if err := r.db.SelectContext(ctx, &rows, query, models.StudentActive); err != nil {
		return nil, fmt.Errorf("latest total overview: %w", err)
	}
	return rows, nil
}

// ListHighRisk returns students whose latest total score is red.
func (r *ScoreRepository) ListHighRisk(ctx context.Context) ([]models.StudentLatestScore, error) {
	rows, err := r.LatestTotalOverview(ctx)
	if err != nil {
		return nil, err
	}
	highRisk := make([]models.StudentLatestScore, 0)
	for _, row := range rows {
		if row.Color != nil && *row.Color == models.ColorRed {
			highRisk = append(highRisk, row)
		}
	}
	return highRisk, nil
}
