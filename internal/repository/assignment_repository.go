package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/trivsel-api/internal/models"
)

// AssignmentRepository manages the student-to-staff links that drive alert
// fan-out.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs an AssignmentRepository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create inserts a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.StudentAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO student_assignments (id, student_id, user_id, role, created_at)
        VALUES (:id, :student_id, :user_id, :role, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// ExistsPair checks whether the (student, user) pair is already assigned.
func (r *AssignmentRepository) ExistsPair(ctx context.Context, studentID, userID string) (bool, error) {
	const query = `SELECT 1 FROM student_assignments WHERE student_id = $1 AND user_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, userID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check assignment pair: %w", err)
	}
	return true, nil
}

// FindByID fetches an assignment by ID.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.StudentAssignment, error) {
	const query = `SELECT id, student_id, user_id, role, created_at FROM student_assignments WHERE id = $1`
	var assignment models.StudentAssignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// Delete removes an assignment.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM student_assignments WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}

// ListByStudent returns all staff assigned to a student. The alert dispatcher
// fans out one notification per returned row.
func (r *AssignmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.StudentAssignment, error) {
	const query = `SELECT id, student_id, user_id, role, created_at FROM student_assignments WHERE student_id = $1 ORDER BY created_at`
	var assignments []models.StudentAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, studentID); err != nil {
		return nil, fmt.Errorf("list assignments by student: %w", err)
	}
	return assignments, nil
}

// ListByUser returns all students a staff member is assigned to.
func (r *AssignmentRepository) ListByUser(ctx context.Context, userID string) ([]models.StudentAssignment, error) {
	const query = `SELECT id, student_id, user_id, role, created_at FROM student_assignments WHERE user_id = $1 ORDER BY created_at`
	var assignments []models.StudentAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, userID); err != nil {
		return nil, fmt.Errorf("list assignments by user: %w", err)
	}
	return assignments, nil
}

// ListDetails returns assignments joined with student and staff names.
func (r *AssignmentRepository) ListDetails(ctx context.Context, studentID string) ([]models.AssignmentDetail, error) {
	query := `SELECT a.id, a.student_id, a.user_id, a.role, a.created_at,
            s.name AS student_name, u.full_name AS user_name, u.email AS user_email
        FROM student_assignments a
        JOIN students s ON s.id = a.student_id
        JOIN users u ON u.id = a.user_id`
	args := []interface{}{}
	if studentID != "" {
		query += " WHERE a.student_id = $1"
		args = append(args, studentID)
	}
	query += " ORDER BY s.name, a.created_at"

	var details []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &details, query, args...); err != nil {
		return nil, fmt.Errorf("list assignment details: %w", err)
	}
	return details, nil
}
