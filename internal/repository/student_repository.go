package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/trivsel-api/internal/models"
)

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students s"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.GroupID != "" {
		base += " JOIN group_members gm ON gm.student_id = s.id"
		conditions = append(conditions, fmt.Sprintf("gm.group_id = $%d", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if filter.AssignedUserID != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM student_assignments sa WHERE sa.student_id = s.id AND sa.user_id = $%d)", len(args)+1))
		args = append(args, filter.AssignedUserID)
	}
	if filter.Phase != nil {
		conditions = append(conditions, fmt.Sprintf("s.phase = $%d", len(args)+1))
		args = append(args, *filter.Phase)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Consent != nil {
		conditions = append(conditions, fmt.Sprintf("s.consent_status = $%d", len(args)+1))
		args = append(args, *filter.Consent)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.name) LIKE $%d OR LOWER(s.internal_id) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT s.id, s.internal_id, s.name, s.email, s.phase, s.status, s.consent_status, s.consent_date, s.consent_token, s.start_date, s.created_at, s.updated_at
        %s ORDER BY s.created_at DESC LIMIT %d OFFSET %d`, base, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(DISTINCT s.id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, internal_id, name, email, phase, status, consent_status, consent_date, consent_token, start_date, created_at, updated_at
        FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByConsentToken fetches a student by their consent token.
func (r *StudentRepository) FindByConsentToken(ctx context.Context, token string) (*models.Student, error) {
	const query = `SELECT id, internal_id, name, email, phase, status, consent_status, consent_date, consent_token, start_date, created_at, updated_at
        FROM students WHERE consent_token = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, token); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByEmail checks if a student with the given email exists, optionally excluding an ID.
func (r *StudentRepository) ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE LOWER(email) = LOWER($1)"
	args := []interface{}{email}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student email: %w", err)
	}
	return true, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, internal_id, name, email, phase, status, consent_status, consent_date, consent_token, start_date, created_at, updated_at)
        VALUES (:id, :internal_id, :name, :email, :phase, :status, :consent_status, :consent_date, :consent_token, :start_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET name = :name, email = :email, phase = :phase, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// UpdateConsent records a consent decision for a student.
func (r *StudentRepository) UpdateConsent(ctx context.Context, id string, granted bool, decidedAt time.Time) error {
	const query = `UPDATE students SET consent_status = $2, consent_date = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, granted, decidedAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("update consent: %w", err)
	}
	return nil
}

// Deactivate marks a student as inactive. Records are never hard-deleted.
func (r *StudentRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE students SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.StudentInactive, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return nil
}

// ListEligibleForSurvey returns active students that have given consent.
func (r *StudentRepository) ListEligibleForSurvey(ctx context.Context) ([]models.Student, error) {
	const query = `SELECT id, internal_id, name, email, phase, status, consent_status, consent_date, consent_token, start_date, created_at, updated_at
        FROM students WHERE status = $1 AND consent_status = true ORDER BY created_at`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, models.StudentActive); err != nil {
		return nil, fmt.Errorf("list eligible students: %w", err)
	}
	return students, nil
}
