package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/trivsel-api/internal/models"
)

// InterventionRepository manages staff follow-up records.
type InterventionRepository struct {
	db *sqlx.DB
}

// NewInterventionRepository constructs an InterventionRepository.
func NewInterventionRepository(db *sqlx.DB) *InterventionRepository {
	return &InterventionRepository{db: db}
}

// Create inserts a new intervention record.
func (r *InterventionRepository) Create(ctx context.Context, intervention *models.Intervention) error {
	if intervention.ID == "" {
		intervention.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if intervention.CreatedAt.IsZero() {
		intervention.CreatedAt = now
	}
	intervention.UpdatedAt = now
	const query = `INSERT INTO interventions (id, student_id, user_id, status, note, created_at, updated_at)
        VALUES (:id, :student_id, :user_id, :status, :note, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, intervention); err != nil {
		return fmt.Errorf("create intervention: %w", err)
	}
	return nil
}

// FindByID fetches an intervention by ID.
func (r *InterventionRepository) FindByID(ctx context.Context, id string) (*models.Intervention, error) {
	const query = `SELECT id, student_id, user_id, status, note, created_at, updated_at FROM interventions WHERE id = $1`
	var intervention models.Intervention
	if err := r.db.GetContext(ctx, &intervention, query, id); err != nil {
		return nil, err
	}
	return &intervention, nil
}

// ListByStudent returns a student's interventions, newest first.
func (r *InterventionRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Intervention, error) {
	const query = `SELECT id, student_id, user_id, status, note, created_at, updated_at FROM interventions WHERE student_id = $1 ORDER BY created_at DESC`
	var interventions []models.Intervention
	if err := r.db.SelectContext(ctx, &interventions, query, studentID); err != nil {
		return nil, fmt.Errorf("list interventions: %w", err)
	}
	return interventions, nil
}

// Update modifies status and note of an intervention.
func (r *InterventionRepository) Update(ctx context.Context, intervention *models.Intervention) error {
	intervention.UpdatedAt = time.Now().UTC()
	const query = `UPDATE interventions SET status = :status, note = :note, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, intervention); err != nil {
		return fmt.Errorf("update intervention: %w", err)
	}
	return nil
}
