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

const questionColumns = `id, category, phase, text_da, display_order, active, created_at, updated_at`

// QuestionRepository manages the fixed survey questions.
type QuestionRepository struct {
	db *sqlx.DB
}

// NewQuestionRepository constructs a QuestionRepository.
func NewQuestionRepository(db *sqlx.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// List returns questions matching the filter, in display order.
func (r *QuestionRepository) List(ctx context.Context, filter models.QuestionFilter) ([]models.SurveyQuestion, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, *filter.Category)
	}
	if filter.Phase != nil {
		conditions = append(conditions, fmt.Sprintf("phase = $%d", len(args)+1))
		args = append(args, *filter.Phase)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}

	query := fmt.Sprintf("SELECT %s FROM survey_questions WHERE %s ORDER BY display_order, created_at",
		questionColumns, strings.Join(conditions, " AND "))

	var questions []models.SurveyQuestion
	if err := r.db.SelectContext(ctx, &questions, query, args...); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return questions, nil
}

// ActiveForPhase returns the active questions a student in the given phase
// must answer: questions scoped to "all" plus those scoped to the phase.
// This set defines the expected responses at submission time.
func (r *QuestionRepository) ActiveForPhase(ctx context.Context, phase models.StudentPhase) ([]models.SurveyQuestion, error) {
	query := fmt.Sprintf(`SELECT %s FROM survey_questions
        WHERE active = true AND phase IN ($1, $2) ORDER BY display_order, created_at`, questionColumns)
	var questions []models.SurveyQuestion
	if err := r.db.SelectContext(ctx, &questions, query, models.QuestionPhaseAll, models.QuestionPhase(phase)); err != nil {
		return nil, fmt.Errorf("list questions for phase: %w", err)
	}
	return questions, nil
}

// FindByID fetches a question by ID.
func (r *QuestionRepository) FindByID(ctx context.Context, id string) (*models.SurveyQuestion, error) {
	query := fmt.Sprintf("SELECT %s FROM survey_questions WHERE id = $1", questionColumns)
	var question models.SurveyQuestion
	if err := r.db.GetContext(ctx, &question, query, id); err != nil {
		return nil, err
	}
	return &question, nil
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, question *models.SurveyQuestion) error {
	if question.ID == "" {
		question.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if question.CreatedAt.IsZero() {
		question.CreatedAt = now
	}
	question.UpdatedAt = now
	const query = `INSERT INTO survey_questions (id, category, phase, text_da, display_order, active, created_at, updated_at)
        VALUES (:id, :category, :phase, :text_da, :display_order, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, question); err != nil {
		return fmt.Errorf("create question: %w", err)
	}
	return nil
}

// Update modifies an existing question.
func (r *QuestionRepository) Update(ctx context.Context, question *models.SurveyQuestion) error {
	question.UpdatedAt = time.Now().UTC()
	const query = `UPDATE survey_questions SET category = :category, phase = :phase, text_da = :text_da, display_order = :display_order, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, question); err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	return nil
}

// Delete removes a question. Historic responses keep their question reference
// through the database's ON DELETE behaviour.
func (r *QuestionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM survey_questions WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return nil
}

// Reorder rewrites display_order following the given ID sequence in one
// transaction.
func (r *QuestionRepository) Reorder(ctx context.Context, orderedIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for position, id := range orderedIDs {
		const query = `UPDATE survey_questions SET display_order = $2, updated_at = $3 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, query, id, position+1, now); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("reorder question %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit question reorder: %w", err)
	}
	return nil
}
