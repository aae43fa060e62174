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

type questionRepository interface {
	List(ctx context.Context, filter models.QuestionFilter) ([]models.SurveyQuestion, error)
	FindByID(ctx context.Context, id string) (*models.SurveyQuestion, error)
	Create(ctx context.Context, question *models.SurveyQuestion) error
	Update(ctx context.Context, question *models.SurveyQuestion) error
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, orderedIDs []string) error
}

// CreateQuestionRequest holds payload for a new survey question.
type CreateQuestionRequest struct {
	Category     models.SurveyCategory `json:"category" validate:"required,oneof=trivsel motivation faellesskab selvindsigt arbejdsparathed"`
	Phase        models.QuestionPhase  `json:"phase" validate:"omitempty,oneof=all indslusning hovedforloeb udslusning"`
	TextDA       string                `json:"text_da" validate:"required,min=5,max=500"`
	DisplayOrder int                   `json:"display_order" validate:"gte=0"`
	Active       *bool                 `json:"active"`
}

// UpdateQuestionRequest holds a partial question update. Category is fixed
// once a question exists so historic scores keep their meaning.
type UpdateQuestionRequest struct {
	Phase        *models.QuestionPhase `json:"phase,omitempty" validate:"omitempty,oneof=all indslusning hovedforloeb udslusning"`
	TextDA       *string               `json:"text_da,omitempty" validate:"omitempty,min=5,max=500"`
	DisplayOrder *int                  `json:"display_order,omitempty" validate:"omitempty,gte=0"`
	Active       *bool                 `json:"active,omitempty"`
}

// QuestionService manages the survey question bank.
type QuestionService struct {
	repo      questionRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewQuestionService constructs the question service.
func NewQuestionService(repo questionRepository, validate *validator.Validate, logger *zap.Logger) *QuestionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionService{repo: repo, validator: validate, logger: logger}
}

// List returns questions matching the filter in display order.
func (s *QuestionService) List(ctx context.Context, filter models.QuestionFilter) ([]models.SurveyQuestion, error) {
	questions, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list questions")
	}
	return questions, nil
}

// Get returns a single question.
func (s *QuestionService) Get(ctx context.Context, id string) (*models.SurveyQuestion, error) {
	return s.load(ctx, id)
}

// Create adds a question to the bank. New questions default to active and
// phase "all".
func (s *QuestionService) Create(ctx context.Context, req CreateQuestionRequest) (*models.SurveyQuestion, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid question payload")
	}

	phase := req.Phase
	if phase == "" {
		phase = models.QuestionPhaseAll
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	question := &models.SurveyQuestion{
		Category:     req.Category,
		Phase:        phase,
		TextDA:       req.TextDA,
		DisplayOrder: req.DisplayOrder,
		Active:       active,
	}
	if err := s.repo.Create(ctx, question); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create question")
	}
	s.logger.Sugar().Infow("question created", "question_id", question.ID, "category", question.Category)
	return question, nil
}

// Update applies a partial update. Deactivating removes the question from
// future surveys; already-submitted answers keep referencing it.
func (s *QuestionService) Update(ctx context.Context, id string, req UpdateQuestionRequest) (*models.SurveyQuestion, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid question payload")
	}

	question, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Phase != nil {
		question.Phase = *req.Phase
	}
	if req.TextDA != nil {
		question.TextDA = *req.TextDA
	}
	if req.DisplayOrder != nil {
		question.DisplayOrder = *req.DisplayOrder
	}
	if req.Active != nil {
		question.Active = *req.Active
	}
	if err := s.repo.Update(ctx, question); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update question")
	}
	return question, nil
}

// Delete removes a question that was never part of a completed survey.
// Questions with recorded answers should be deactivated instead; the
// database foreign key rejects the delete in that case.
func (s *QuestionService) Delete(ctx context.Context, id string) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "question has recorded answers; deactivate it instead")
	}
	return nil
}

// Reorder rewrites display_order for the given ID sequence.
func (s *QuestionService) Reorder(ctx context.Context, orderedIDs []string) error {
	if len(orderedIDs) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "ordered ids required")
	}
	seen := make(map[string]struct{}, len(orderedIDs))
	for _, id := range orderedIDs {
		if _, dup := seen[id]; dup {
			return appErrors.Clone(appErrors.ErrValidation, "duplicate question id in order")
		}
		seen[id] = struct{}{}
	}
	if err := s.repo.Reorder(ctx, orderedIDs); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reorder questions")
	}
	return nil
}

func (s *QuestionService) load(ctx context.Context, id string) (*models.SurveyQuestion, error) {
	question, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load question")
	}
	return question, nil
}
