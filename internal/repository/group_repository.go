package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/trivsel-api/internal/models"
)

// GroupRepository manages student groups and their memberships.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs a GroupRepository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// List returns all groups with member counts, ordered by name.
func (r *GroupRepository) List(ctx context.Context) ([]models.GroupDetail, error) {
	const query = `SELECT g.id, g.name, g.description, g.created_at, g.updated_at,
            COUNT(gm.student_id) AS member_count
        FROM groups g
        LEFT JOIN group_members gm ON gm.group_id = g.id
        GROUP BY g.id
        ORDER BY g.name`
	var groups []models.GroupDetail
	if err := r.db.SelectContext(ctx, &groups, query); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// FindByID fetches a single group.
func (r *GroupRepository) FindByID(ctx context.Context, id string) (*models.Group, error) {
	const query = `SELECT id, name, description, created_at, updated_at FROM groups WHERE id = $1`
	var group models.Group
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		return nil, err
	}
	return &group, nil
}

// Create inserts a new group.
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now
	const query = `INSERT INTO groups (id, name, description, created_at, updated_at)
        VALUES (:id, :name, :description, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// Update modifies a group's name and description.
func (r *GroupRepository) Update(ctx context.Context, group *models.Group) error {
	group.UpdatedAt = time.Now().UTC()
	const query = `UPDATE groups SET name = :name, description = :description, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	return nil
}

// Delete removes a group and its memberships.
func (r *GroupRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = $1`, id); err != nil {
		return fmt.Errorf("delete group members: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return tx.Commit()
}

// AddMember attaches a student to a group. Adding twice is a no-op.
func (r *GroupRepository) AddMember(ctx context.Context, groupID, studentID string) error {
	const query = `INSERT INTO group_members (group_id, student_id, added_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (group_id, student_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, groupID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

// RemoveMember detaches a student from a group. Returns true when a row was removed.
func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, studentID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = $1 AND student_id = $2`, groupID, studentID)
	if err != nil {
		return false, fmt.Errorf("remove group member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove group member: %w", err)
	}
	return affected > 0, nil
}

// ListMembers returns the students in a group, ordered by name.
func (r *GroupRepository) ListMembers(ctx context.Context, groupID string) ([]models.Student, error) {
	const query = `SELECT s.id, s.internal_id, s.name, s.email, s.phase, s.status,
            s.consent_status, s.consent_date, s.consent_token, s.start_date, s.created_at, s.updated_at
        FROM students s
        JOIN group_members gm ON gm.student_id = s.id
        WHERE gm.group_id = $1
        ORDER BY s.name`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, groupID); err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	return students, nil
}
