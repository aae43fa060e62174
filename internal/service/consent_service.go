package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/trivsel-api/internal/dto"
	"github.com/noah-isme/trivsel-api/internal/models"
	appErrors "github.com/noah-isme/trivsel-api/pkg/errors"
)

type consentStudentStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByConsentToken(ctx context.Context, token string) (*models.Student, error)
	UpdateConsent(ctx context.Context, id string, granted bool, decidedAt time.Time) error
}

type consentMailer interface {
	ConsentRequest(student models.Student) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// ConsentService handles the tokenized consent flow. The consent token stays
// valid after a decision, so students can revisit the page and change their
// answer; each decision refreshes the consent date.
type ConsentService struct {
	students consentStudentStore
	emails   consentMailer
	audit    auditWriter
	cache    cacheInvalidator
	logger   *zap.Logger
}

// NewConsentService constructs ConsentService.
func NewConsentService(students consentStudentStore, emails consentMailer, audit auditWriter, cache cacheInvalidator, logger *zap.Logger) *ConsentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsentService{students: students, emails: emails, audit: audit, cache: cache, logger: logger}
}

// Status resolves a consent token for the public consent page.
func (s *ConsentService) Status(ctx context.Context, token string) (*dto.ConsentStatusResponse, error) {
	student, err := s.findByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return &dto.ConsentStatusResponse{
		StudentName:      student.Name,
		ConsentStatus:    student.ConsentStatus,
		AlreadyResponded: student.ConsentDate != nil,
	}, nil
}

// Decide records an accept or decline for the token's student and returns
// the confirmation message for the consent page.
func (s *ConsentService) Decide(ctx context.Context, token string, granted bool) (string, error) {
	student, err := s.findByToken(ctx, token)
	if err != nil {
		return "", err
	}

	decidedAt := time.Now().UTC()
	if err := s.students.UpdateConsent(ctx, student.ID, granted, decidedAt); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record consent")
	}

	s.logger.Sugar().Infow("consent recorded", "student_id", student.ID, "granted", granted)
	s.recordDecision(ctx, student.ID)
	s.invalidateDashboard(ctx)

	if granted {
		return "Tak! Dit samtykke er registreret. Du vil modtage dit første trivselstjek snart.", nil
	}
	return "Dit valg er registreret. Du vil ikke modtage trivselstjek.", nil
}

// RequestConsent queues the consent-request email for an active student.
func (s *ConsentService) RequestConsent(ctx context.Context, studentID string) error {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Status != models.StudentActive {
		return appErrors.Clone(appErrors.ErrValidation, "student is not active")
	}
	if err := s.emails.ConsentRequest(*student); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue consent request")
	}
	return nil
}

func (s *ConsentService) findByToken(ctx context.Context, token string) (*models.Student, error) {
	student, err := s.students.FindByConsentToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invalid consent link")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load consent")
	}
	return student, nil
}

func (s *ConsentService) recordDecision(ctx context.Context, studentID string) {
	if s.audit == nil {
		return
	}
	resourceID := studentID
	entry := &models.AuditLog{
		Action:     models.AuditActionConsentDecision,
		Resource:   "students",
		ResourceID: &resourceID,
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Sugar().Warnw("failed to audit consent decision", "student_id", studentID, "error", err)
	}
}

func (s *ConsentService) invalidateDashboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "dashboard:*"); err != nil {
		s.logger.Sugar().Warnw("failed to invalidate cache", "pattern", "dashboard:*", "error", err)
	}
}
