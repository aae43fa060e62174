package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/trivsel-api/internal/models"
	appErrors "github.com/noah-isme/trivsel-api/pkg/errors"
)

type assignmentRepository interface {
	Create(ctx context.Context, assignment *models.StudentAssignment) error
	ExistsPair(ctx context.Context, studentID, userID string) (bool, error)
	FindByID(ctx context.Context, id string) (*models.StudentAssignment, error)
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]models.StudentAssignment, error)
	ListDetails(ctx context.Context, studentID string) ([]models.AssignmentDetail, error)
}

type assignmentStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type assignmentUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateAssignmentRequest links a staff member to a student.
type CreateAssignmentRequest struct {
	StudentID string                `json:"student_id" validate:"required"`
	UserID    string                `json:"user_id" validate:"required"`
	Role      models.AssignmentRole `json:"role" validate:"required,oneof=primary_mentor team_member"`
}

// AssignmentService maintains the student-to-staff registry that drives
// alert fan-out.
type AssignmentService struct {
	repo      assignmentRepository
	students  assignmentStudentReader
	users     assignmentUserReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService constructs the assignment service.
func NewAssignmentService(
	repo assignmentRepository,
	students assignmentStudentReader,
	users assignmentUserReader,
	validate *validator.Validate,
	logger *zap.Logger,
) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{repo: repo, students: students, users: users, validator: validate, logger: logger}
}

// Create registers an assignment. A (student, user) pair may exist only once
// regardless of role.
func (s *AssignmentService) Create(ctx context.Context, req CreateAssignmentRequest) (*models.StudentAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot assign an inactive user")
	}

	exists, err := s.repo.ExistsPair(ctx, req.StudentID, req.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user is already assigned to this student")
	}

	assignment := &models.StudentAssignment{
		StudentID: req.StudentID,
		UserID:    req.UserID,
		Role:      req.Role,
	}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	s.logger.Sugar().Infow("assignment created",
		"student_id", assignment.StudentID, "user_id", assignment.UserID, "role", assignment.Role)
	return assignment, nil
}

// Delete removes an assignment. Alerts already delivered stay untouched.
func (s *AssignmentService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	return nil
}

// ListForStudent returns the staff assigned to a student with display names.
func (s *AssignmentService) ListForStudent(ctx context.Context, studentID string) ([]models.AssignmentDetail, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	details, err := s.repo.ListDetails(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return details, nil
}

// ListForUser returns the assignments held by a staff member.
func (s *AssignmentService) ListForUser(ctx context.Context, userID string) ([]models.StudentAssignment, error) {
	assignments, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}
