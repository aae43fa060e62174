package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/trivsel-api/internal/models"
	appErrors "github.com/noah-isme/trivsel-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
}

type assignmentChecker interface {
	ExistsPair(ctx context.Context, studentID, userID string) (bool, error)
}

type studentSessionReader interface {
	ListByStudent(ctx context.Context, studentID string, limit int) ([]models.SurveySession, error)
}

type studentScoreReader interface {
	ListByStudent(ctx context.Context, studentID string, limit int) ([]models.Score, error)
}

// CreateStudentRequest holds payload for registering students. The internal
// ID and consent token are generated server-side; consent always starts out
// not given.
type CreateStudentRequest struct {
	Name      string              `json:"name" validate:"required,min=2,max=255"`
	Email     string              `json:"email" validate:"required,email,max=255"`
	Phase     models.StudentPhase `json:"phase" validate:"omitempty,oneof=indslusning hovedforloeb udslusning"`
	StartDate *time.Time          `json:"start_date,omitempty"`
}

// UpdateStudentRequest holds a partial student update. Consent is
// deliberately absent: it changes only through the student's own consent
// link.
type UpdateStudentRequest struct {
	Name   *string               `json:"name,omitempty" validate:"omitempty,min=2,max=255"`
	Email  *string               `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phase  *models.StudentPhase  `json:"phase,omitempty" validate:"omitempty,oneof=indslusning hovedforloeb udslusning"`
	Status *models.StudentStatus `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
}

// StudentService handles the student roster. Students are soft-deactivated,
// never deleted, so historic scores stay attributable.
type StudentService struct {
	repo        studentRepository
	assignments assignmentChecker
	sessions    studentSessionReader
	scores      studentScoreReader
	scoring     *ScoringService
	emails      consentMailer
	cache       cacheInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(
	repo studentRepository,
	assignments assignmentChecker,
	sessions studentSessionReader,
	scores studentScoreReader,
	scoring *ScoringService,
	emails consentMailer,
	cache cacheInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		repo:        repo,
		assignments: assignments,
		sessions:    sessions,
		scores:      scores,
		scoring:     scoring,
		emails:      emails,
		cache:       cache,
		validator:   validate,
		logger:      logger,
	}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return students, pagination, nil
}

// Get returns one student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	return s.load(ctx, id)
}

// EnsureAccess verifies that a staff member is assigned to the student.
// Admin callers skip this check at the handler.
func (s *StudentService) EnsureAccess(ctx context.Context, studentID, userID string) error {
	assigned, err := s.assignments.ExistsPair(ctx, studentID, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignment")
	}
	if !assigned {
		return appErrors.Clone(appErrors.ErrForbidden, "not assigned to this student")
	}
	return nil
}

// Create registers a new student and queues their consent-request email.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	exists, err := s.repo.ExistsByEmail(ctx, email, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a student with this email already exists")
	}

	consentToken, err := newOpaqueToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate consent token")
	}

	phase := req.Phase
	if phase == "" {
		phase = models.PhaseIndslusning
	}
	student := &models.Student{
		InternalID:   newInternalID(),
		Name:         req.Name,
		Email:        email,
		Phase:        phase,
		Status:       models.StudentActive,
		ConsentToken: consentToken,
		StartDate:    req.StartDate,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.logger.Sugar().Infow("student created", "student_id", student.ID, "internal_id", student.InternalID)

	if s.emails != nil {
		if err := s.emails.ConsentRequest(*student); err != nil {
			s.logger.Sugar().Warnw("failed to queue consent request", "student_id", student.ID, "error", err)
		}
	}
	s.invalidate(ctx, "analytics:*")
	return student, nil
}

// Update applies a partial update to a student record.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email != student.Email {
			exists, err := s.repo.ExistsByEmail(ctx, email, id)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate email")
			}
			if exists {
				return nil, appErrors.Clone(appErrors.ErrConflict, "a student with this email already exists")
			}
			student.Email = email
		}
	}
	if req.Name != nil {
		student.Name = *req.Name
	}
	if req.Phase != nil {
		student.Phase = *req.Phase
	}
	if req.Status != nil {
		student.Status = *req.Status
	}

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	s.invalidate(ctx, "dashboard:*", "analytics:*")
	return student, nil
}

// Deactivate marks a student inactive. Their history stays queryable.
func (s *StudentService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	s.logger.Sugar().Infow("student deactivated", "student_id", id)
	s.invalidate(ctx, "dashboard:*", "analytics:*")
	return nil
}

// Sessions returns a student's survey sessions, newest first.
func (s *StudentService) Sessions(ctx context.Context, id string, limit int) ([]models.SurveySession, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListByStudent(ctx, id, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

// Scores returns a student's score history, newest first.
func (s *StudentService) Scores(ctx context.Context, id string, limit int) ([]models.Score, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	scores, err := s.scores.ListByStudent(ctx, id, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scores")
	}
	return scores, nil
}

// Trend summarises a student's recent total-score trajectory.
func (s *StudentService) Trend(ctx context.Context, id string) (*models.TrendAnalysis, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	trend, err := s.scoring.AnalyzeTrend(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to analyze trend")
	}
	return trend, nil
}

func (s *StudentService) load(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

func (s *StudentService) invalidate(ctx context.Context, patterns ...string) {
	if s.cache == nil {
		return
	}
	for _, pattern := range patterns {
		if err := s.cache.Invalidate(ctx, pattern); err != nil {
			s.logger.Sugar().Warnw("failed to invalidate cache", "pattern", pattern, "error", err)
		}
	}
}

func newInternalID() string {
	return fmt.Sprintf("STU-%s", strings.ToUpper(uuid.NewString()[:8]))
}
