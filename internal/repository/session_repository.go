package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/trivsel-api/internal/models"
)

const sessionColumns = `id, student_id, token, token_expires_at, status, week_number, year, reminder_count, custom_questions, sent_at, completed_at, created_at`

// SessionRepository manages persistence for survey sessions. Status
// transitions are conditional UPDATEs so the store stays the single arbiter
// of terminal states under concurrent access.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new survey session.
func (r *SessionRepository) Create(ctx context.Context, session *models.SurveySession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	if session.CustomQuestions == nil {
		session.CustomQuestions = models.CustomQuestions{}
	}
	const query = `INSERT INTO survey_sessions (id, student_id, token, token_expires_at, status, week_number, year, reminder_count, custom_questions, sent_at, completed_at, created_at)
        VALUES (:id, :student_id, :token, :token_expires_at, :status, :week_number, :year, :reminder_count, :custom_questions, :sent_at, :completed_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FindByID fetches a session by ID.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.SurveySession, error) {
	query := fmt.Sprintf("SELECT %s FROM survey_sessions WHERE id = $1", sessionColumns)
	var session models.SurveySession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByToken fetches a session by its unique survey token.
func (r *SessionRepository) FindByToken(ctx context.Context, token string) (*models.SurveySession, error) {
	query := fmt.Sprintf("SELECT %s FROM survey_sessions WHERE token = $1", sessionColumns)
	var session models.SurveySession
	if err := r.db.GetContext(ctx, &session, query, token); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListByStudent returns a student's sessions, newest first.
func (r *SessionRepository) ListByStudent(ctx context.Context, studentID string, limit int) ([]models.SurveySession, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf("SELECT %s FROM survey_sessions WHERE student_id = $1 ORDER BY created_at DESC LIMIT %d", sessionColumns, limit)
	var sessions []models.SurveySession
	if err := r.db.SelectContext(ctx, &sessions, query, studentID); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// LatestByStudent returns the most recent session for a student, or nil.
func (r *SessionRepository) LatestByStudent(ctx context.Context, studentID string) (*models.SurveySession, error) {
	sessions, err := r.ListByStudent(ctx, studentID, 1)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[0], nil
}

// ListPending returns pending sessions whose token has not yet expired,
// candidates for a reminder email.
func (r *SessionRepository) ListPending(ctx context.Context, now time.Time) ([]models.SurveySession, error) {
	query := fmt.Sprintf(`SELECT %s FROM survey_sessions
        WHERE status = $1 AND token_expires_at > $2 ORDER BY created_at`, sessionColumns)
	var sessions []models.SurveySession
	if err := r.db.SelectContext(ctx, &sessions, query, models.SessionPending, now); err != nil {
		return nil, fmt.Errorf("list pending sessions: %w", err)
	}
	return sessions, nil
}

// ListSweepable returns sessions whose token expiry has passed and which the
// sweep has not yet closed: open sessions plus lazily-expired ones awaiting
// their non-response alert.
func (r *SessionRepository) ListSweepable(ctx context.Context, now time.Time) ([]models.SurveySession, error) {
	query := fmt.Sprintf(`SELECT %s FROM survey_sessions
        WHERE status IN ($1, $2, $3) AND token_expires_at < $4 ORDER BY token_expires_at`, sessionColumns)
	var sessions []models.SurveySession
	if err := r.db.SelectContext(ctx, &sessions, query, models.SessionPending, models.SessionInProgress, models.SessionExpired, now); err != nil {
		return nil, fmt.Errorf("list sweepable sessions: %w", err)
	}
	return sessions, nil
}

// MarkInProgress transitions a pending session on first access. Repeat calls
// are no-ops, so access stays idempotent.
func (r *SessionRepository) MarkInProgress(ctx context.Context, id string) error {
	const query = `UPDATE survey_sessions SET status = $2 WHERE id = $1 AND status = $3`
	if _, err := r.db.ExecContext(ctx, query, id, models.SessionInProgress, models.SessionPending); err != nil {
		return fmt.Errorf("mark session in progress: %w", err)
	}
	return nil
}

// MarkExpired lazily expires an open session discovered past its token
// expiry. Terminal sessions are left untouched.
func (r *SessionRepository) MarkExpired(ctx context.Context, id string) error {
	const query = `UPDATE survey_sessions SET status = $2 WHERE id = $1 AND status IN ($3, $4)`
	if _, err := r.db.ExecContext(ctx, query, id, models.SessionExpired, models.SessionPending, models.SessionInProgress); err != nil {
		return fmt.Errorf("mark session expired: %w", err)
	}
	return nil
}

// MarkNonResponse closes a missed session from the sweep. Returns true when
// this call performed the transition, false when another sweep already did —
// the caller alerts only on true, keeping the sweep idempotent.
func (r *SessionRepository) MarkNonResponse(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE survey_sessions SET status = $2 WHERE id = $1 AND status IN ($3, $4, $5)`
	res, err := r.db.ExecContext(ctx, query, id, models.SessionNonResponse, models.SessionPending, models.SessionInProgress, models.SessionExpired)
	if err != nil {
		return false, fmt.Errorf("mark session non-response: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark session non-response: %w", err)
	}
	return affected > 0, nil
}

// IncrementReminder bumps the reminder counter after a reminder email.
func (r *SessionRepository) IncrementReminder(ctx context.Context, id string) error {
	const query = `UPDATE survey_sessions SET reminder_count = reminder_count + 1 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("increment reminder count: %w", err)
	}
	return nil
}

// Complete atomically finishes a submission: the status flip, the response
// rows and the score rows commit together or not at all. The conditional
// UPDATE decides races between concurrent submissions; the loser sees
// completed=false and nothing from its attempt persists.
func (r *SessionRepository) Complete(ctx context.Context, sessionID string, completedAt time.Time, responses []models.SurveyResponse, scores []models.Score) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}

	const complete = `UPDATE survey_sessions SET status = $2, completed_at = $3 WHERE id = $1 AND status IN ($4, $5)`
	res, err := tx.ExecContext(ctx, complete, sessionID, models.SessionCompleted, completedAt, models.SessionPending, models.SessionInProgress)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("complete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("complete session: %w", err)
	}
	if affected == 0 {
		tx.Rollback() //nolint:errcheck
		return false, nil
	}

	for i := range responses {
		if responses[i].ID == "" {
			responses[i].ID = uuid.NewString()
		}
		if responses[i].CreatedAt.IsZero() {
			responses[i].CreatedAt = completedAt
		}
		const insertResponse = `INSERT INTO survey_responses (id, session_id, question_id, custom_question_index, answer, created_at)
            VALUES (:id, :session_id, :question_id, :custom_question_index, :answer, :created_at)`
		if _, err := tx.NamedExecContext(ctx, insertResponse, responses[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return false, fmt.Errorf("insert response: %w", err)
		}
	}

	for i := range scores {
		if scores[i].ID == "" {
			scores[i].ID = uuid.NewString()
		}
		if scores[i].CreatedAt.IsZero() {
			scores[i].CreatedAt = completedAt
		}
		const insertScore = `INSERT INTO scores (id, session_id, student_id, category, value, color, is_total, created_at)
            VALUES (:id, :session_id, :student_id, :category, :value, :color, :is_total, :created_at)`
		if _, err := tx.NamedExecContext(ctx, insertScore, scores[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return false, fmt.Errorf("insert score: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit submission: %w", err)
	}
	return true, nil
}

// CountByStatuses returns session counts grouped by the given statuses.
func (r *SessionRepository) CountByStatuses(ctx context.Context, statuses ...models.SessionStatus) (map[models.SessionStatus]int, error) {
	if len(statuses) == 0 {
		return map[models.SessionStatus]int{}, nil
	}
	placeholders := make([]string, len(statuses))
	args := make([]interface{}, len(statuses))
	for i, s := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = s
	}
	query := fmt.Sprintf(`SELECT status, COUNT(*) AS count FROM survey_sessions WHERE status IN (%s) GROUP BY status`, strings.Join(placeholders, ", "))

	rows := []struct {
		Status models.SessionStatus `db:"status"`
		Count  int                  `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	counts := make(map[models.SessionStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// CountCompletedInWeek returns completed sessions for one ISO week.
func (r *SessionRepository) CountCompletedInWeek(ctx context.Context, week, year int) (int, error) {
	const query = `SELECT COUNT(*) FROM survey_sessions WHERE status = $1 AND week_number = $2 AND year = $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, models.SessionCompleted, week, year); err != nil {
		return 0, fmt.Errorf("count completed sessions: %w", err)
	}
	return count, nil
}
