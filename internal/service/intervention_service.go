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

type interventionRepository interface {
	Create(ctx context.Context, intervention *models.Intervention) error
	FindByID(ctx context.Context, id string) (*models.Intervention, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Intervention, error)
	Update(ctx context.Context, intervention *models.Intervention) error
}

type interventionStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// CreateInterventionRequest records a follow-up action on a student.
type CreateInterventionRequest struct {
	StudentID string                    `json:"student_id" validate:"required"`
	Status    models.InterventionStatus `json:"status" validate:"required,oneof=contacted meeting_planned intervention_started completed"`
	Note      string                    `json:"note" validate:"max=2000"`
}

// UpdateInterventionRequest advances or annotates an intervention.
type UpdateInterventionRequest struct {
	Status *models.InterventionStatus `json:"status,omitempty" validate:"omitempty,oneof=contacted meeting_planned intervention_started completed"`
	Note   *string                    `json:"note,omitempty" validate:"omitempty,max=2000"`
}

// InterventionService records what staff actually did after an alert.
type InterventionService struct {
	repo      interventionRepository
	students  interventionStudentReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInterventionService constructs the intervention service.
func NewInterventionService(repo interventionRepository, students interventionStudentReader, validate *validator.Validate, logger *zap.Logger) *InterventionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InterventionService{repo: repo, students: students, validator: validate, logger: logger}
}

// Create logs a new intervention by the acting staff member.
func (s *InterventionService) Create(ctx context.Context, userID string, req CreateInterventionRequest) (*models.Intervention, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid intervention payload")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	intervention := &models.Intervention{
		StudentID: req.StudentID,
		UserID:    userID,
		Status:    req.Status,
		Note:      req.Note,
	}
	if err := s.repo.Create(ctx, intervention); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create intervention")
	}
	s.logger.Sugar().Infow("intervention recorded",
		"intervention_id", intervention.ID, "student_id", intervention.StudentID, "status", intervention.Status)
	return intervention, nil
}

// ListForStudent returns a student's interventions, newest first.
func (s *InterventionService) ListForStudent(ctx context.Context, studentID string) ([]models.Intervention, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	interventions, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list interventions")
	}
	return interventions, nil
}

// Update changes status or note. Only the staff member who logged the
// intervention, or an admin, may change it; the handler enforces the role,
// this method enforces ownership.
func (s *InterventionService) Update(ctx context.Context, id, userID string, isAdmin bool, req UpdateInterventionRequest) (*models.Intervention, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid intervention payload")
	}

	intervention, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "intervention not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load intervention")
	}
	if !isAdmin && intervention.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "intervention belongs to another staff member")
	}

	if req.Status != nil {
		intervention.Status = *req.Status
	}
	if req.Note != nil {
		intervention.Note = *req.Note
	}
	if err := s.repo.Update(ctx, intervention); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update intervention")
	}
	return intervention, nil
}
